package services

import (
	"time"

	"github.com/Dosada05/court-booking-bot/schedule"
)

// Settings - read-only параметры, которые движок читает из конфигурации.
type Settings struct {
	// Цена одного корта в минорных единицах валюты.
	CourtPrice int64
	// Часовой пояс всей календарной арифметики и отображения дат.
	Location *time.Location
	// Дедлайн анонса по умолчанию; шаблон может переопределить его.
	DefaultDeadline schedule.Deadline
	// Канал, в который публикуются анонсы.
	ChannelID int64
	// Глобальный администратор; владелец событий, если у шаблона
	// владельца нет.
	AdminTelegramID int64
}
