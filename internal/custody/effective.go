package custody

import (
	"log/slog"
	"time"

	"github.com/splitnest/splitnest/internal/model"
)

// Switchover hours: the clock time at which custody is considered to have
// actually transferred on a handoff day. Separate from the handoff defaults
// in policy.go, which only decide what metadata gets stored.
const (
	weekdaySwitchoverHour = 17
	weekendSwitchoverHour = 12

	// streakCap bounds the backward walk when counting consecutive days.
	streakCap = 365
)

// EventsLookup reports whether a family's calendar has a daycare-related
// event on a date. Implementations must not fail the calculation: errors are
// the lookup's to log, and a failed lookup reads as "no daycare".
type EventsLookup interface {
	HasDaycareEvent(familyID int64, date time.Time) bool
}

// Calculator derives effective-owner views from a loaded set of custody
// records. It holds no connection to storage; callers load the date window
// they care about and index it here.
type Calculator struct {
	familyID int64
	records  map[string]model.CustodyRecord
	events   EventsLookup
	logger   *slog.Logger
}

func NewCalculator(familyID int64, records []model.CustodyRecord, events EventsLookup, logger *slog.Logger) *Calculator {
	indexed := make(map[string]model.CustodyRecord, len(records))
	for _, r := range records {
		indexed[r.Date] = r
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Calculator{
		familyID: familyID,
		records:  indexed,
		events:   events,
		logger:   logger,
	}
}

// Owner returns the custodian assigned to a calendar date, if any.
func (c *Calculator) Owner(date time.Time) (int64, bool) {
	rec, ok := c.records[date.Format(model.DateFormat)]
	if !ok {
		return 0, false
	}
	return rec.CustodianID, true
}

// SwitchoverHour returns the hour at which custody transfers on the given
// date: noon on weekends and daycare days, 17:00 otherwise.
func (c *Calculator) SwitchoverHour(date time.Time) int {
	if isWeekend(date) {
		return weekendSwitchoverHour
	}
	if c.events != nil && c.events.HasDaycareEvent(c.familyID, date) {
		return weekendSwitchoverHour
	}
	return weekdaySwitchoverHour
}

// EffectiveOwner returns the custodian in custody at the given moment. When
// the assigned owner changed at midnight but the clock has not reached the
// switchover hour, yesterday's owner is still effective.
func (c *Calculator) EffectiveOwner(at time.Time) (int64, bool) {
	today := startOfDay(at)
	ownerToday, okToday := c.Owner(today)
	ownerYesterday, okYesterday := c.Owner(today.AddDate(0, 0, -1))

	if okToday && okYesterday && ownerToday != ownerYesterday && at.Hour() < c.SwitchoverHour(today) {
		return ownerYesterday, true
	}
	return ownerToday, okToday
}

// Streak counts the consecutive days before now whose effective owner at end
// of day matches now's effective owner. Stops at the first mismatch, an unset
// day, or the 365-day cap.
func (c *Calculator) Streak(now time.Time) int {
	current, ok := c.EffectiveOwner(now)
	if !ok {
		return 0
	}

	streak := 0
	day := startOfDay(now).AddDate(0, 0, -1)
	for i := 0; i < streakCap; i++ {
		endOfDay := time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 0, 0, day.Location())
		owner, ok := c.EffectiveOwner(endOfDay)
		if !ok || owner != current {
			break
		}
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak
}

// Share returns each custodian's percentage of the days in [start, end],
// inclusive. The range is the displayed one, so adjacent-month padding days
// count, and the assigned owner is used, not the effective owner. Both are
// load-bearing for the percentages clients show.
func (c *Calculator) Share(start, end time.Time) map[int64]float64 {
	start = startOfDay(start)
	end = startOfDay(end)

	counts := make(map[int64]int)
	totalDays := 0
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		totalDays++
		if owner, ok := c.Owner(day); ok {
			counts[owner]++
		}
	}

	shares := make(map[int64]float64, len(counts))
	if totalDays == 0 {
		return shares
	}
	for owner, n := range counts {
		shares[owner] = float64(n) * 100 / float64(totalDays)
	}
	return shares
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
