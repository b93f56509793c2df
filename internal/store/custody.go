package store

import (
	"database/sql"
	"fmt"

	"github.com/splitnest/splitnest/internal/model"
)

// CustodyStore persists custody records, one row per (family, date).
// Concurrent upserts for the same date are plain overwrites; the last write
// wins with no version check.
type CustodyStore struct {
	db *sql.DB
}

func NewCustodyStore(db *sql.DB) *CustodyStore {
	return &CustodyStore{db: db}
}

// Upsert creates or replaces the custody record for a date. An existing row
// is overwritten whole: all handoff fields come from the new input, nothing
// is merged from the previous row.
func (s *CustodyStore) Upsert(familyID int64, date string, custodianID, actorID int64, handoffDay bool, handoffTime, handoffLocation *string) (*model.CustodyRecord, error) {
	var handoffInt int
	if handoffDay {
		handoffInt = 1
	}

	_, err := s.db.Exec(
		`INSERT INTO custody_records (family_id, date, custodian_id, actor_id, handoff_day, handoff_time, handoff_location)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(family_id, date) DO UPDATE SET
		   custodian_id = excluded.custodian_id,
		   actor_id = excluded.actor_id,
		   handoff_day = excluded.handoff_day,
		   handoff_time = excluded.handoff_time,
		   handoff_location = excluded.handoff_location,
		   updated_at = CURRENT_TIMESTAMP`,
		familyID, date, custodianID, actorID, handoffInt, nullString(handoffTime), nullString(handoffLocation),
	)
	if err != nil {
		return nil, fmt.Errorf("upsert custody record: %w", err)
	}

	return s.Get(familyID, date)
}

// Get returns the record for a date, or nil if the date is unset.
func (s *CustodyStore) Get(familyID int64, date string) (*model.CustodyRecord, error) {
	row := s.db.QueryRow(
		`SELECT id, family_id, date, custodian_id, actor_id, handoff_day, handoff_time, handoff_location, created_at, updated_at
		 FROM custody_records WHERE family_id = ? AND date = ?`,
		familyID, date,
	)
	rec, err := scanCustodyRecord(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query custody record: %w", err)
	}
	return rec, nil
}

// GetRange returns records for dates in [start, end], ordered by date.
// Dates with no record are simply absent; an empty result is valid.
func (s *CustodyStore) GetRange(familyID int64, start, end string) ([]model.CustodyRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, family_id, date, custodian_id, actor_id, handoff_day, handoff_time, handoff_location, created_at, updated_at
		 FROM custody_records
		 WHERE family_id = ? AND date >= ? AND date <= ?
		 ORDER BY date ASC`,
		familyID, start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("query custody records: %w", err)
	}
	defer rows.Close()

	var records []model.CustodyRecord
	for rows.Next() {
		rec, err := scanCustodyRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan custody record: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// PatchHandoffDay updates only the handoff_day flag, leaving the custodian
// and handoff time/location untouched. Returns nil if no record exists for
// the date; the patch never creates one.
func (s *CustodyStore) PatchHandoffDay(familyID int64, date string, handoffDay bool) (*model.CustodyRecord, error) {
	var handoffInt int
	if handoffDay {
		handoffInt = 1
	}

	result, err := s.db.Exec(
		`UPDATE custody_records SET handoff_day = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE family_id = ? AND date = ?`,
		handoffInt, familyID, date,
	)
	if err != nil {
		return nil, fmt.Errorf("patch handoff day: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, nil
	}

	return s.Get(familyID, date)
}

func scanCustodyRecord(scan func(...any) error) (*model.CustodyRecord, error) {
	var r model.CustodyRecord
	var handoffInt int
	var handoffTime, handoffLocation sql.NullString

	err := scan(&r.ID, &r.FamilyID, &r.Date, &r.CustodianID, &r.ActorID, &handoffInt, &handoffTime, &handoffLocation, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}

	r.HandoffDay = handoffInt != 0
	if handoffTime.Valid {
		r.HandoffTime = &handoffTime.String
	}
	if handoffLocation.Valid {
		r.HandoffLocation = &handoffLocation.String
	}
	return &r, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
