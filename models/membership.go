package models

import "time"

// Membership связывает событие и участника. Participations - сколько
// "слотов" занимает запись (участник мог привести с собой ещё людей).
// Инвариант: Participations > 0, пока запись существует; декремент до
// нуля удаляет запись целиком.
type Membership struct {
	EventID        int       `json:"event_id" db:"event_id"`
	ParticipantID  int       `json:"participant_id" db:"participant_id"`
	Participations int       `json:"participations" db:"participations"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// EventParticipant - участник события вместе с числом занимаемых слотов.
// Результат JOIN memberships × participants.
type EventParticipant struct {
	Participant    Participant `json:"participant"`
	Participations int         `json:"participations"`
}
