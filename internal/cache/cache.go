// Package cache provides a keyed, TTL-based cache of custody records per
// (family, period), with non-destructive merge semantics: a refresh can add
// and update dates but can never clear ones already populated. This guards
// against the stale/empty-overwrite failure mode where a transient empty
// fetch wipes a populated display.
package cache

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/splitnest/splitnest/internal/model"
)

const (
	// CustodyTTL is how long a period entry is considered fresh.
	CustodyTTL = 2 * time.Hour

	// mutationGuardTimeout bounds the in-flight mutation guard: past this,
	// the guard releases and a retry is permitted even if no response ever
	// arrived.
	mutationGuardTimeout = 10 * time.Second

	refreshTimeout = 30 * time.Second
)

// Key identifies a cached period of custody records.
type Key struct {
	FamilyID int64
	Period   string // YYYY-MM
}

// FetchFunc loads authoritative records for a family and period. A nil error
// with no records is a valid, meaningful result; an error is a transport
// failure and must stay distinguishable from "empty".
type FetchFunc func(ctx context.Context, familyID int64, period string) ([]model.CustodyRecord, error)

type cachedRecord struct {
	record    model.CustodyRecord
	updatedAt time.Time // local clock of the last write into this cache
}

type entry struct {
	records    map[string]cachedRecord
	fetchedAt  time.Time
	refreshing bool
}

// Store is the unified keyed cache. All reads return whatever is cached,
// fresh or stale; staleness only triggers a background refresh, never a
// blocking one and never an empty answer for a populated period.
type Store struct {
	mu       sync.Mutex
	entries  map[Key]*entry
	inflight map[Key]map[string]time.Time // key -> date -> mutation start
	fetch    FetchFunc
	ttl      time.Duration
	guard    time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

func New(fetch FetchFunc, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		entries:  make(map[Key]*entry),
		inflight: make(map[Key]map[string]time.Time),
		fetch:    fetch,
		ttl:      CustodyTTL,
		guard:    mutationGuardTimeout,
		logger:   logger,
		now:      time.Now,
	}
}

// Records returns the cached records for a period, ordered by date. A cached
// entry is returned immediately whether fresh or stale; a stale one
// additionally triggers a background refresh. On a full miss the fetch runs synchronously,
// and a fetch error is returned as-is rather than being cached as "no data".
func (s *Store) Records(ctx context.Context, familyID int64, period string) ([]model.CustodyRecord, error) {
	key := Key{FamilyID: familyID, Period: period}

	s.mu.Lock()
	if e, ok := s.entries[key]; ok {
		records := snapshot(e)
		if s.now().Sub(e.fetchedAt) > s.ttl && !e.refreshing {
			e.refreshing = true
			go s.refresh(key)
		}
		s.mu.Unlock()
		return records, nil
	}
	s.mu.Unlock()

	// Stamp the fetch with its start time so a direct write landing while
	// the fetch is in flight stays newer than the fetched rows.
	started := s.now()
	records, err := s.fetch(ctx, familyID, period)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		e = &entry{records: make(map[string]cachedRecord)}
		s.entries[key] = e
	}
	s.mergeLocked(e, records, started)
	e.fetchedAt = s.now()
	return snapshot(e), nil
}

// Put writes a single record into its period entry, creating the entry if
// needed. Called after a successful mutation with the server's response
// record; no refetch of the period happens.
func (s *Store) Put(record model.CustodyRecord) {
	key := Key{FamilyID: record.FamilyID, Period: periodOf(record.Date)}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		e = &entry{records: make(map[string]cachedRecord)}
		s.entries[key] = e
	}
	e.records[record.Date] = cachedRecord{record: record, updatedAt: s.now()}
}

// BeginMutation reserves a (family, date) for an outstanding mutation.
// Returns false while another mutation for the same date is in flight and
// has not yet timed out.
func (s *Store) BeginMutation(familyID int64, date string) bool {
	key := Key{FamilyID: familyID, Period: periodOf(date)}

	s.mu.Lock()
	defer s.mu.Unlock()

	dates, ok := s.inflight[key]
	if !ok {
		dates = make(map[string]time.Time)
		s.inflight[key] = dates
	}
	if started, ok := dates[date]; ok && s.now().Sub(started) < s.guard {
		return false
	}
	dates[date] = s.now()
	return true
}

// EndMutation releases the guard for a (family, date).
func (s *Store) EndMutation(familyID int64, date string) {
	key := Key{FamilyID: familyID, Period: periodOf(date)}

	s.mu.Lock()
	defer s.mu.Unlock()
	if dates, ok := s.inflight[key]; ok {
		delete(dates, date)
	}
}

// refresh refetches a period in the background and merges the result.
// Failures are logged and leave the entry untouched.
func (s *Store) refresh(key Key) {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	started := s.now()
	records, err := s.fetch(ctx, key.FamilyID, key.Period)

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return
	}
	e.refreshing = false
	if err != nil {
		s.logger.Warn("cache refresh failed", "family_id", key.FamilyID, "period", key.Period, "error", err)
		return
	}

	s.mergeLocked(e, records, started)
	e.fetchedAt = s.now()
}

// mergeLocked folds fetched records into an entry. Dates updated by a direct
// write after the fetch started keep their newer value, and an empty fetch
// result clears nothing.
func (s *Store) mergeLocked(e *entry, records []model.CustodyRecord, fetchStart time.Time) {
	for _, r := range records {
		if existing, ok := e.records[r.Date]; ok && existing.updatedAt.After(fetchStart) {
			continue
		}
		e.records[r.Date] = cachedRecord{record: r, updatedAt: fetchStart}
	}
}

func snapshot(e *entry) []model.CustodyRecord {
	records := make([]model.CustodyRecord, 0, len(e.records))
	for _, c := range e.records {
		records = append(records, c.record)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Date < records[j].Date })
	return records
}

// periodOf extracts the YYYY-MM period from a YYYY-MM-DD date.
func periodOf(date string) string {
	if len(date) >= 7 {
		return date[:7]
	}
	return date
}
