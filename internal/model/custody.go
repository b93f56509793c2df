package model

import "time"

// DateFormat is the calendar-day format used for custody record dates.
// Custody is assigned per local calendar day, so dates are stored as plain
// YYYY-MM-DD strings rather than instants.
const DateFormat = "2006-01-02"

// HandoffTimeFormat is the wall-clock format for handoff times.
const HandoffTimeFormat = "15:04"

type CustodyRecord struct {
	ID              int64     `json:"id"`
	FamilyID        int64     `json:"family_id"`
	Date            string    `json:"date"`
	CustodianID     int64     `json:"custodian_id"`
	ActorID         int64     `json:"actor_id"`
	HandoffDay      bool      `json:"handoff_day"`
	HandoffTime     *string   `json:"handoff_time"`
	HandoffLocation *string   `json:"handoff_location"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Day parses the record's date. The record date is validated on write, so a
// parse failure here means a corrupted row.
func (r *CustodyRecord) Day() (time.Time, error) {
	return time.Parse(DateFormat, r.Date)
}
