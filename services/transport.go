package services

import (
	"context"
	"time"

	"github.com/Dosada05/court-booking-bot/models"
)

// RenderedMessage - готовый к отправке текст с транспорт-специфичной
// разметкой действий. Движок содержимое не интерпретирует.
type RenderedMessage struct {
	Text   string
	Markup interface{}
}

// AnnouncementView - данные, из которых форматтер собирает анонс.
type AnnouncementView struct {
	Event        *models.Event
	Participants []models.EventParticipant
	Payments     []models.Payment
	Location     *time.Location
}

// Renderer - внешний форматтер исходящих сообщений. Клавиатура действий
// подбирается по текущему статусу события.
type Renderer interface {
	RenderAnnouncement(view AnnouncementView) RenderedMessage
	RenderPaymentNotice(event *models.Event, payment *models.Payment, loc *time.Location) RenderedMessage
	RenderPaymentReminder(event *models.Event, payment *models.Payment, loc *time.Location) RenderedMessage
}

// Messenger - транспорт чата. Все методы возвращают ошибку явно;
// решение "best effort или нет" принимает вызывающая сторона.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, msg RenderedMessage) (messageID int, err error)
	EditMessage(ctx context.Context, chatID int64, messageID int, msg RenderedMessage) error
	PinMessage(ctx context.Context, chatID int64, messageID int) error
	UnpinMessage(ctx context.Context, chatID int64, messageID int) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
}

// AuditEvent - структурное событие аудита жизненного цикла.
type AuditEvent struct {
	Type    string      `json:"type"`
	EventID int         `json:"event_id"`
	Payload interface{} `json:"payload,omitempty"`
	At      time.Time   `json:"at"`
}

// Типы событий аудита.
const (
	AuditEventCreated     = "event_created"
	AuditEventAnnounced   = "event_announced"
	AuditEventFinalized   = "event_finalized"
	AuditEventUnfinalized = "event_unfinalized"
	AuditEventCancelled   = "event_cancelled"
	AuditEventRestored    = "event_restored"
	AuditJoined           = "participant_joined"
	AuditLeft             = "participant_left"
	AuditPaymentReceived  = "payment_received"
	AuditPaymentReverted  = "payment_reverted"
)

// AuditSink принимает события аудита. Публикация fire-and-forget и не
// должна блокировать вызвавшую операцию.
type AuditSink interface {
	Publish(event AuditEvent)
}

// NopAuditSink - заглушка для тестов и конфигураций без live-ленты.
type NopAuditSink struct{}

func (NopAuditSink) Publish(AuditEvent) {}
