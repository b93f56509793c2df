package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/splitnest/splitnest/internal/model"
)

// EventStore reads family calendar events. The scheduling core uses it for a
// single heuristic: whether any event on a date mentions daycare, which pulls
// the custody switchover forward to noon.
type EventStore struct {
	db *sql.DB
}

func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

func (s *EventStore) Create(familyID int64, title, description string, startTime, endTime time.Time, allDay bool) (*model.CalendarEvent, error) {
	var allDayInt int
	if allDay {
		allDayInt = 1
	}

	result, err := s.db.Exec(
		`INSERT INTO calendar_events (family_id, title, description, start_time, end_time, all_day)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		familyID, title, description, startTime.UTC(), endTime.UTC(), allDayInt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert calendar event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(id)
}

func (s *EventStore) GetByID(id int64) (*model.CalendarEvent, error) {
	var e model.CalendarEvent
	var allDayInt int

	err := s.db.QueryRow(
		`SELECT id, family_id, title, description, start_time, end_time, all_day, created_at, updated_at
		 FROM calendar_events WHERE id = ?`, id,
	).Scan(&e.ID, &e.FamilyID, &e.Title, &e.Description, &e.StartTime, &e.EndTime, &allDayInt, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query calendar event: %w", err)
	}

	e.AllDay = allDayInt != 0
	return &e, nil
}

// HasDaycareEvent reports whether any event overlapping the given calendar
// day has "daycare" in its title or description.
func (s *EventStore) HasDaycareEvent(familyID int64, date time.Time) (bool, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)

	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM calendar_events
		 WHERE family_id = ? AND start_time < ? AND end_time > ?
		 AND (LOWER(title) LIKE '%daycare%' OR LOWER(description) LIKE '%daycare%')`,
		familyID, dayEnd, dayStart,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("query daycare events: %w", err)
	}
	return count > 0, nil
}
