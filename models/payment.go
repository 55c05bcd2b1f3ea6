package models

import "time"

// Payment - доля участника в стоимости финализированного события.
// Создаётся только финализацией, удаляется только её отменой.
// Amount хранится в минорных единицах валюты.
type Payment struct {
	ID              int        `json:"id" db:"id"`
	EventID         int        `json:"event_id" db:"event_id"`
	ParticipantID   int        `json:"participant_id" db:"participant_id"`
	Amount          int64      `json:"amount" db:"amount"`
	Paid            bool       `json:"paid" db:"paid"`
	PaidAt          *time.Time `json:"paid_at,omitempty" db:"paid_at"`
	Reminders       int        `json:"reminders" db:"reminders"`
	NoticeMessageID *int       `json:"notice_message_id,omitempty" db:"notice_message_id"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`

	// Заполняется при выборке вместе с участником
	Participant *Participant `json:"participant,omitempty" db:"-"`
}
