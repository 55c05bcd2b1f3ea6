package models

import "time"

// EventStatus представляет статусы события, соответствующие ENUM в БД.
type EventStatus string

const (
	StatusCreated   EventStatus = "created"
	StatusAnnounced EventStatus = "announced"
	StatusFinalized EventStatus = "finalized"
	StatusCancelled EventStatus = "cancelled"

	// StatusPaid зарезервирован для исторической отчётности.
	// Ни один переход в движке его не порождает.
	StatusPaid EventStatus = "paid"
)

// Event представляет одиночное игровое событие (одну бронь кортов).
type Event struct {
	ID         int         `json:"id" db:"id"`
	ScaffoldID *int        `json:"scaffold_id,omitempty" db:"scaffold_id"`
	StartsAt   time.Time   `json:"starts_at" db:"starts_at"`
	Courts     int         `json:"courts" db:"courts"`
	Status     EventStatus `json:"status" db:"status"`
	MessageID  *int        `json:"message_id,omitempty" db:"message_id"`
	OwnerID    *int64      `json:"owner_id,omitempty" db:"owner_id"`
	DeletedAt  *time.Time  `json:"deleted_at,omitempty" db:"deleted_at"`
	CreatedAt  time.Time   `json:"created_at" db:"created_at"`

	// Опциональные связанные сущности (не мапятся напрямую)
	Participants []EventParticipant `json:"participants,omitempty" db:"-"`
	Payments     []Payment          `json:"payments,omitempty" db:"-"`
}

// Editable сообщает, допускает ли текущий статус изменение состава
// участников и количества кортов.
func (e *Event) Editable() bool {
	return e.Status == StatusAnnounced
}
