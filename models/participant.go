package models

import (
	"fmt"
	"time"
)

// Participant представляет пользователя, хотя бы раз взаимодействовавшего
// с ботом. Внешняя идентичность (Telegram ID, username) после установки
// не меняется.
type Participant struct {
	ID         int       `json:"id" db:"id"`
	TelegramID *int64    `json:"telegram_id,omitempty" db:"telegram_id"`
	Username   *string   `json:"username,omitempty" db:"username"`
	Name       string    `json:"name" db:"name"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// DisplayName возвращает имя участника для отображения: имя, затем
// username, затем синтетическая метка по Telegram ID.
func (p *Participant) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	if p.Username != nil && *p.Username != "" {
		return *p.Username
	}
	if p.TelegramID != nil {
		return fmt.Sprintf("User %d", *p.TelegramID)
	}
	return fmt.Sprintf("User #%d", p.ID)
}
