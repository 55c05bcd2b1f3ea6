package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/court-booking-bot/models"
	"github.com/Dosada05/court-booking-bot/repositories"
)

// eventAction - действие над событием, меняющее его статус.
type eventAction string

const (
	actionAnnounce   eventAction = "announce"
	actionFinalize   eventAction = "finalize"
	actionUnfinalize eventAction = "unfinalize"
	actionCancel     eventAction = "cancel"
	actionRestore    eventAction = "restore"
)

// eventTransitions - явная таблица переходов статусов. Пара
// (статус, действие), отсутствующая в таблице, отклоняется.
// models.StatusPaid намеренно не встречается ни слева, ни справа.
var eventTransitions = map[models.EventStatus]map[eventAction]models.EventStatus{
	models.StatusCreated: {
		actionAnnounce: models.StatusAnnounced,
	},
	models.StatusAnnounced: {
		actionFinalize: models.StatusFinalized,
		actionCancel:   models.StatusCancelled,
	},
	models.StatusFinalized: {
		actionUnfinalize: models.StatusAnnounced,
		actionCancel:     models.StatusCancelled,
	},
	models.StatusCancelled: {
		actionRestore: models.StatusAnnounced,
	},
}

func nextStatus(current models.EventStatus, action eventAction) (models.EventStatus, error) {
	next, ok := eventTransitions[current][action]
	if !ok {
		return "", fmt.Errorf("%w: %s from %q", ErrInvalidTransition, action, current)
	}
	return next, nil
}

// Identity - внешняя идентичность пользователя чата, от имени которого
// выполняется действие.
type Identity struct {
	TelegramID int64
	Username   string
	Name       string
}

// CreateEventInput - параметры создания события (вручную или планировщиком).
type CreateEventInput struct {
	ScaffoldID *int
	StartsAt   time.Time
	Courts     int
	OwnerID    *int64
}

// EventService - движок жизненного цикла событий: машина статусов,
// учёт участников и финализация с расчётом долей.
type EventService struct {
	tx              Transactor
	eventRepo       repositories.EventRepository
	participantRepo repositories.ParticipantRepository
	membershipRepo  repositories.MembershipRepository
	paymentRepo     repositories.PaymentRepository
	lock            EventLocker
	settings        Settings
	renderer        Renderer
	messenger       Messenger
	audit           AuditSink
	logger          *slog.Logger
}

func NewEventService(
	tx Transactor,
	eventRepo repositories.EventRepository,
	participantRepo repositories.ParticipantRepository,
	membershipRepo repositories.MembershipRepository,
	paymentRepo repositories.PaymentRepository,
	lock EventLocker,
	settings Settings,
	renderer Renderer,
	messenger Messenger,
	audit AuditSink,
	logger *slog.Logger,
) *EventService {
	return &EventService{
		tx:              tx,
		eventRepo:       eventRepo,
		participantRepo: participantRepo,
		membershipRepo:  membershipRepo,
		paymentRepo:     paymentRepo,
		lock:            lock,
		settings:        settings,
		renderer:        renderer,
		messenger:       messenger,
		audit:           audit,
		logger:          logger,
	}
}

// CreateEvent создаёт событие в статусе created.
func (s *EventService) CreateEvent(ctx context.Context, in CreateEventInput) (*models.Event, error) {
	if in.Courts < 1 {
		return nil, fmt.Errorf("%w: courts must be positive", ErrInvalidScaffold)
	}
	event := &models.Event{
		ScaffoldID: in.ScaffoldID,
		StartsAt:   in.StartsAt,
		Courts:     in.Courts,
		Status:     models.StatusCreated,
		OwnerID:    in.OwnerID,
	}
	if err := s.eventRepo.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	s.publish(AuditEventCreated, event.ID, nil)
	return event, nil
}

// GetEvent возвращает событие по ID.
func (s *EventService) GetEvent(ctx context.Context, id int) (*models.Event, error) {
	event, err := s.eventRepo.GetByID(ctx, id)
	if err != nil {
		return nil, s.wrapNotFound(err)
	}
	return event, nil
}

// GetEventByMessageID находит событие по сообщению-анонсу.
func (s *EventService) GetEventByMessageID(ctx context.Context, messageID int) (*models.Event, error) {
	event, err := s.eventRepo.FindByMessageID(ctx, messageID)
	if err != nil {
		return nil, s.wrapNotFound(err)
	}
	return event, nil
}

// ListUpcoming возвращает будущие события.
func (s *EventService) ListUpcoming(ctx context.Context, from time.Time) ([]models.Event, error) {
	return s.eventRepo.ListUpcoming(ctx, from)
}

// Announce публикует анонс события в канал, закрепляет его и сохраняет
// ссылку на сообщение. Закрепление - best effort.
func (s *EventService) Announce(ctx context.Context, eventID int) error {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return s.wrapNotFound(err)
	}
	next, err := nextStatus(event.Status, actionAnnounce)
	if err != nil {
		return err
	}

	msg := s.renderer.RenderAnnouncement(AnnouncementView{
		Event:    event,
		Location: s.settings.Location,
	})
	messageID, err := s.messenger.SendMessage(ctx, s.settings.ChannelID, msg)
	if err != nil {
		return fmt.Errorf("failed to send announcement: %w", err)
	}
	if err := s.eventRepo.SetMessageID(ctx, eventID, &messageID); err != nil {
		return err
	}
	if err := s.eventRepo.SetStatus(ctx, nil, eventID, next); err != nil {
		return err
	}
	if pinErr := s.messenger.PinMessage(ctx, s.settings.ChannelID, messageID); pinErr != nil {
		s.logger.Warn("failed to pin announcement",
			slog.Int("event_id", eventID), slog.Any("error", pinErr))
	}
	s.publish(AuditEventAnnounced, eventID, map[string]int{"message_id": messageID})
	return nil
}

// Join записывает пользователя на событие. Повторная запись увеличивает
// число занимаемых слотов, а не плодит дубликаты.
func (s *EventService) Join(ctx context.Context, eventID int, who Identity) error {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return s.wrapNotFound(err)
	}
	if !event.Editable() {
		return ErrEventNotEditable
	}

	participant, err := s.ensureParticipant(ctx, who)
	if err != nil {
		return err
	}

	_, err = s.membershipRepo.FindByEventAndParticipant(ctx, eventID, participant.ID)
	switch {
	case err == nil:
		if err := s.membershipRepo.IncrementParticipations(ctx, eventID, participant.ID); err != nil {
			return err
		}
	case errors.Is(err, repositories.ErrMembershipNotFound):
		m := &models.Membership{EventID: eventID, ParticipantID: participant.ID, Participations: 1}
		if err := s.membershipRepo.Create(ctx, m); err != nil {
			return err
		}
	default:
		return err
	}

	s.refreshAnnouncement(ctx, event)
	s.publish(AuditJoined, eventID, map[string]interface{}{"participant_id": participant.ID})
	return nil
}

// Leave снимает ровно один слот участника. Последний слот удаляет
// членство целиком; попытка выйти, не будучи участником, - ошибка без
// изменения состояния.
func (s *EventService) Leave(ctx context.Context, eventID int, who Identity) error {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return s.wrapNotFound(err)
	}
	if !event.Editable() {
		return ErrEventNotEditable
	}

	participant, err := s.participantRepo.FindByTelegramID(ctx, who.TelegramID)
	if err != nil {
		if errors.Is(err, repositories.ErrParticipantNotFound) {
			return ErrNotMember
		}
		return err
	}

	if err := s.membershipRepo.DecrementOrDelete(ctx, eventID, participant.ID); err != nil {
		if errors.Is(err, repositories.ErrMembershipNotFound) {
			return ErrNotMember
		}
		return err
	}

	s.refreshAnnouncement(ctx, event)
	s.publish(AuditLeft, eventID, map[string]interface{}{"participant_id": participant.ID})
	return nil
}

// AddCourt увеличивает число кортов события на один.
func (s *EventService) AddCourt(ctx context.Context, eventID int) error {
	return s.changeCourts(ctx, eventID, +1)
}

// RemoveCourt уменьшает число кортов на один; ниже одного опуститься
// нельзя.
func (s *EventService) RemoveCourt(ctx context.Context, eventID int) error {
	return s.changeCourts(ctx, eventID, -1)
}

func (s *EventService) changeCourts(ctx context.Context, eventID, delta int) error {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return s.wrapNotFound(err)
	}
	if !event.Editable() {
		return ErrEventNotEditable
	}
	courts := event.Courts + delta
	if courts < 1 {
		return ErrLastCourt
	}
	if err := s.eventRepo.SetCourts(ctx, eventID, courts); err != nil {
		return err
	}
	event.Courts = courts
	s.refreshAnnouncement(ctx, event)
	return nil
}

// Finalize замораживает состав события и раскладывает стоимость по
// участникам. Операция многошаговая и выполняется под блокировкой
// события; запись платежей и смена статуса идут одной транзакцией.
func (s *EventService) Finalize(ctx context.Context, eventID int) error {
	if !s.lock.TryAcquire(eventID) {
		return ErrOperationInProgress
	}
	defer s.lock.Release(eventID)

	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return s.wrapNotFound(err)
	}
	next, err := nextStatus(event.Status, actionFinalize)
	if err != nil {
		return err
	}

	participants, err := s.membershipRepo.GetEventParticipants(ctx, eventID)
	if err != nil {
		return err
	}
	shares := make([]Share, 0, len(participants))
	totalParticipations := 0
	for _, ep := range participants {
		shares = append(shares, Share{ParticipantID: ep.Participant.ID, Participations: ep.Participations})
		totalParticipations += ep.Participations
	}
	if totalParticipations == 0 {
		return ErrNoParticipants
	}

	allocations := SplitCost(s.settings.CourtPrice, event.Courts, shares)
	payments := make([]*models.Payment, 0, len(allocations))
	for _, a := range allocations {
		payments = append(payments, &models.Payment{
			EventID:       eventID,
			ParticipantID: a.ParticipantID,
			Amount:        a.Amount,
		})
	}

	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.paymentRepo.CreateBatch(ctx, exec, payments); err != nil {
			return err
		}
		return s.eventRepo.SetStatus(ctx, exec, eventID, next)
	})
	if err != nil {
		return err
	}
	event.Status = next

	s.refreshAnnouncement(ctx, event)
	s.sendPaymentNotices(ctx, event, participants, payments)
	s.publish(AuditEventFinalized, eventID, map[string]interface{}{
		"total":    s.settings.CourtPrice * int64(event.Courts),
		"payments": len(payments),
	})
	return nil
}

// sendPaymentNotices рассылает личные уведомления о доле. Каждое
// уведомление - best effort: отказ логируется и не откатывает
// финализацию.
func (s *EventService) sendPaymentNotices(ctx context.Context, event *models.Event, participants []models.EventParticipant, payments []*models.Payment) {
	byParticipant := make(map[int]models.Participant, len(participants))
	for _, ep := range participants {
		byParticipant[ep.Participant.ID] = ep.Participant
	}
	for _, payment := range payments {
		participant, ok := byParticipant[payment.ParticipantID]
		if !ok || participant.TelegramID == nil {
			continue
		}
		msg := s.renderer.RenderPaymentNotice(event, payment, s.settings.Location)
		messageID, err := s.messenger.SendMessage(ctx, *participant.TelegramID, msg)
		if err != nil {
			s.logger.Warn("failed to send payment notice",
				slog.Int("event_id", event.ID),
				slog.Int("participant_id", payment.ParticipantID),
				slog.Any("error", err))
			continue
		}
		if err := s.paymentRepo.SetNoticeMessageID(ctx, payment.ID, &messageID); err != nil {
			s.logger.Warn("failed to store payment notice message id",
				slog.Int("payment_id", payment.ID), slog.Any("error", err))
		}
	}
}

// Unfinalize откатывает финализацию: личные уведомления удаляются
// (best effort), все платежи события стираются, статус возвращается в
// announced. Выполняется под блокировкой события.
func (s *EventService) Unfinalize(ctx context.Context, eventID int) error {
	if !s.lock.TryAcquire(eventID) {
		return ErrOperationInProgress
	}
	defer s.lock.Release(eventID)

	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return s.wrapNotFound(err)
	}
	next, err := nextStatus(event.Status, actionUnfinalize)
	if err != nil {
		return err
	}

	payments, err := s.paymentRepo.GetPaymentsByEvent(ctx, eventID)
	if err != nil {
		return err
	}
	for _, p := range payments {
		if p.NoticeMessageID == nil || p.Participant == nil || p.Participant.TelegramID == nil {
			continue
		}
		if delErr := s.messenger.DeleteMessage(ctx, *p.Participant.TelegramID, *p.NoticeMessageID); delErr != nil {
			s.logger.Warn("failed to delete payment notice",
				slog.Int("payment_id", p.ID), slog.Any("error", delErr))
		}
	}

	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.paymentRepo.DeleteByEvent(ctx, exec, eventID); err != nil {
			return err
		}
		return s.eventRepo.SetStatus(ctx, exec, eventID, next)
	})
	if err != nil {
		return err
	}
	event.Status = next

	s.refreshAnnouncement(ctx, event)
	s.publish(AuditEventUnfinalized, eventID, nil)
	return nil
}

// Cancel переводит событие в cancelled: анонс открепляется (best effort)
// и перерисовывается в режиме «только чтение».
func (s *EventService) Cancel(ctx context.Context, eventID int) error {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return s.wrapNotFound(err)
	}
	next, err := nextStatus(event.Status, actionCancel)
	if err != nil {
		return err
	}
	if err := s.eventRepo.SetStatus(ctx, nil, eventID, next); err != nil {
		return err
	}
	event.Status = next

	if event.MessageID != nil {
		if unpinErr := s.messenger.UnpinMessage(ctx, s.settings.ChannelID, *event.MessageID); unpinErr != nil {
			s.logger.Warn("failed to unpin announcement",
				slog.Int("event_id", eventID), slog.Any("error", unpinErr))
		}
	}
	s.refreshAnnouncement(ctx, event)
	s.publish(AuditEventCancelled, eventID, nil)
	return nil
}

// Restore возвращает отменённое событие в announced и закрепляет анонс
// обратно (best effort).
func (s *EventService) Restore(ctx context.Context, eventID int) error {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return s.wrapNotFound(err)
	}
	next, err := nextStatus(event.Status, actionRestore)
	if err != nil {
		return err
	}
	if err := s.eventRepo.SetStatus(ctx, nil, eventID, next); err != nil {
		return err
	}
	event.Status = next

	if event.MessageID != nil {
		if pinErr := s.messenger.PinMessage(ctx, s.settings.ChannelID, *event.MessageID); pinErr != nil {
			s.logger.Warn("failed to re-pin announcement",
				slog.Int("event_id", eventID), slog.Any("error", pinErr))
		}
	}
	s.refreshAnnouncement(ctx, event)
	s.publish(AuditEventRestored, eventID, nil)
	return nil
}

// SoftDeleteEvent помечает событие удалённым; запись остаётся в БД и
// может быть восстановлена.
func (s *EventService) SoftDeleteEvent(ctx context.Context, eventID int) error {
	if err := s.eventRepo.SoftDelete(ctx, eventID, time.Now()); err != nil {
		return s.wrapNotFound(err)
	}
	return nil
}

// RestoreEvent снимает пометку удаления.
func (s *EventService) RestoreEvent(ctx context.Context, eventID int) error {
	if err := s.eventRepo.Restore(ctx, eventID); err != nil {
		return s.wrapNotFound(err)
	}
	return nil
}

// ensureParticipant находит участника по Telegram ID или создаёт его.
// Имя фиксируется при первом появлении и позже не перезаписывается.
func (s *EventService) ensureParticipant(ctx context.Context, who Identity) (*models.Participant, error) {
	participant, err := s.participantRepo.FindByTelegramID(ctx, who.TelegramID)
	if err == nil {
		return participant, nil
	}
	if !errors.Is(err, repositories.ErrParticipantNotFound) {
		return nil, err
	}

	participant = &models.Participant{
		TelegramID: &who.TelegramID,
		Name:       who.Name,
	}
	if who.Username != "" {
		username := who.Username
		participant.Username = &username
	}
	if err := s.participantRepo.Create(ctx, participant); err != nil {
		// Гонка двух первых взаимодействий: участника успели создать.
		if errors.Is(err, repositories.ErrParticipantIDConflict) {
			return s.participantRepo.FindByTelegramID(ctx, who.TelegramID)
		}
		return nil, err
	}
	return participant, nil
}

// refreshAnnouncement перерисовывает сообщение-анонс под текущее
// состояние события. Best effort: отказ транспорта логируется.
func (s *EventService) refreshAnnouncement(ctx context.Context, event *models.Event) {
	if event.MessageID == nil {
		return
	}
	participants, err := s.membershipRepo.GetEventParticipants(ctx, event.ID)
	if err != nil {
		s.logger.Warn("failed to load participants for re-render",
			slog.Int("event_id", event.ID), slog.Any("error", err))
		return
	}
	view := AnnouncementView{
		Event:        event,
		Participants: participants,
		Location:     s.settings.Location,
	}
	if event.Status == models.StatusFinalized {
		payments, err := s.paymentRepo.GetPaymentsByEvent(ctx, event.ID)
		if err != nil {
			s.logger.Warn("failed to load payments for re-render",
				slog.Int("event_id", event.ID), slog.Any("error", err))
		} else {
			view.Payments = payments
		}
	}
	msg := s.renderer.RenderAnnouncement(view)
	if err := s.messenger.EditMessage(ctx, s.settings.ChannelID, *event.MessageID, msg); err != nil {
		s.logger.Warn("failed to edit announcement",
			slog.Int("event_id", event.ID), slog.Any("error", err))
	}
}

func (s *EventService) publish(eventType string, eventID int, payload interface{}) {
	s.audit.Publish(AuditEvent{
		Type:    eventType,
		EventID: eventID,
		Payload: payload,
		At:      time.Now(),
	})
}

func (s *EventService) wrapNotFound(err error) error {
	if errors.Is(err, repositories.ErrEventNotFound) ||
		errors.Is(err, repositories.ErrParticipantNotFound) ||
		errors.Is(err, repositories.ErrPaymentNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, err)
	}
	return err
}

// RefreshAnnouncement - публичная перерисовка анонса (нужна платёжному
// сервису после отметок оплаты).
func (s *EventService) RefreshAnnouncement(ctx context.Context, eventID int) {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		s.logger.Warn("failed to load event for re-render",
			slog.Int("event_id", eventID), slog.Any("error", err))
		return
	}
	s.refreshAnnouncement(ctx, event)
}
