package model

import "time"

// CalendarEvent is a family calendar entry. The scheduling core only consults
// events to decide whether a date is a daycare day; event management itself
// lives elsewhere.
type CalendarEvent struct {
	ID          int64     `json:"id"`
	FamilyID    int64     `json:"family_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	AllDay      bool      `json:"all_day"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
