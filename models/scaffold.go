package models

import "time"

// Scaffold представляет еженедельный шаблон, из которого планировщик
// порождает события.
type Scaffold struct {
	ID               int        `json:"id" db:"id"`
	DayOfWeek        string     `json:"day_of_week" db:"day_of_week"`
	TimeOfDay        string     `json:"time_of_day" db:"time_of_day"`
	Courts           int        `json:"courts" db:"courts"`
	Active           bool       `json:"active" db:"active"`
	AnnounceDeadline *string    `json:"announce_deadline,omitempty" db:"announce_deadline"`
	OwnerID          *int64     `json:"owner_id,omitempty" db:"owner_id"`
	DeletedAt        *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
}
