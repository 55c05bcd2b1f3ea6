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

// PaymentService управляет отметками оплаты по финализированным
// событиям. Переключения идут под блокировкой события - той же, что и
// финализация, чтобы не гоняться с её отменой.
type PaymentService struct {
	eventRepo       repositories.EventRepository
	participantRepo repositories.ParticipantRepository
	paymentRepo     repositories.PaymentRepository
	lock            EventLocker
	events          *EventService
	settings        Settings
	renderer        Renderer
	messenger       Messenger
	audit           AuditSink
	logger          *slog.Logger
}

func NewPaymentService(
	eventRepo repositories.EventRepository,
	participantRepo repositories.ParticipantRepository,
	paymentRepo repositories.PaymentRepository,
	lock EventLocker,
	events *EventService,
	settings Settings,
	renderer Renderer,
	messenger Messenger,
	audit AuditSink,
	logger *slog.Logger,
) *PaymentService {
	return &PaymentService{
		eventRepo:       eventRepo,
		participantRepo: participantRepo,
		paymentRepo:     paymentRepo,
		lock:            lock,
		events:          events,
		settings:        settings,
		renderer:        renderer,
		messenger:       messenger,
		audit:           audit,
		logger:          logger,
	}
}

// TogglePaidByTelegram переключает отметку оплаты участника, нажавшего
// кнопку под своим уведомлением или анонсом.
func (s *PaymentService) TogglePaidByTelegram(ctx context.Context, eventID int, telegramID int64) error {
	participant, err := s.participantRepo.FindByTelegramID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, repositories.ErrParticipantNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, err)
		}
		return err
	}
	return s.togglePaid(ctx, eventID, participant.ID)
}

// MarkPaid отмечает долю участника оплаченной.
func (s *PaymentService) MarkPaid(ctx context.Context, eventID, participantID int) error {
	return s.setPaid(ctx, eventID, participantID, true)
}

// MarkUnpaid снимает отметку оплаты.
func (s *PaymentService) MarkUnpaid(ctx context.Context, eventID, participantID int) error {
	return s.setPaid(ctx, eventID, participantID, false)
}

func (s *PaymentService) togglePaid(ctx context.Context, eventID, participantID int) error {
	if !s.lock.TryAcquire(eventID) {
		return ErrOperationInProgress
	}
	defer s.lock.Release(eventID)

	payment, err := s.paymentRepo.FindByEventAndParticipant(ctx, eventID, participantID)
	if err != nil {
		if errors.Is(err, repositories.ErrPaymentNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, err)
		}
		return err
	}
	return s.apply(ctx, payment, !payment.Paid)
}

func (s *PaymentService) setPaid(ctx context.Context, eventID, participantID int, paid bool) error {
	if !s.lock.TryAcquire(eventID) {
		return ErrOperationInProgress
	}
	defer s.lock.Release(eventID)

	payment, err := s.paymentRepo.FindByEventAndParticipant(ctx, eventID, participantID)
	if err != nil {
		if errors.Is(err, repositories.ErrPaymentNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, err)
		}
		return err
	}
	if payment.Paid == paid {
		return nil
	}
	return s.apply(ctx, payment, paid)
}

func (s *PaymentService) apply(ctx context.Context, payment *models.Payment, paid bool) error {
	if paid {
		if err := s.paymentRepo.SetPaid(ctx, nil, payment.ID, time.Now()); err != nil {
			return err
		}
		s.audit.Publish(AuditEvent{
			Type:    AuditPaymentReceived,
			EventID: payment.EventID,
			Payload: map[string]interface{}{"participant_id": payment.ParticipantID, "amount": payment.Amount},
			At:      time.Now(),
		})
	} else {
		if err := s.paymentRepo.SetUnpaid(ctx, nil, payment.ID); err != nil {
			return err
		}
		s.audit.Publish(AuditEvent{
			Type:    AuditPaymentReverted,
			EventID: payment.EventID,
			Payload: map[string]interface{}{"participant_id": payment.ParticipantID},
			At:      time.Now(),
		})
	}
	s.events.RefreshAnnouncement(ctx, payment.EventID)
	return nil
}

// RemindUnpaid рассылает напоминания всем не оплатившим участникам
// события. Каждое напоминание best effort; счётчик напоминаний растёт
// только у реально отправленных. Возвращает число отправленных.
func (s *PaymentService) RemindUnpaid(ctx context.Context, eventID int) (int, error) {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, repositories.ErrEventNotFound) {
			return 0, fmt.Errorf("%w: %s", ErrNotFound, err)
		}
		return 0, err
	}
	if event.Status != models.StatusFinalized {
		return 0, fmt.Errorf("%w: reminders require a finalized event", ErrInvalidTransition)
	}

	payments, err := s.paymentRepo.GetPaymentsByEvent(ctx, eventID)
	if err != nil {
		return 0, err
	}

	sent := 0
	for i := range payments {
		p := &payments[i]
		if p.Paid || p.Participant == nil || p.Participant.TelegramID == nil {
			continue
		}
		msg := s.renderer.RenderPaymentReminder(event, p, s.settings.Location)
		if _, sendErr := s.messenger.SendMessage(ctx, *p.Participant.TelegramID, msg); sendErr != nil {
			s.logger.Warn("failed to send payment reminder",
				slog.Int("payment_id", p.ID), slog.Any("error", sendErr))
			continue
		}
		if err := s.paymentRepo.IncrementReminders(ctx, p.ID); err != nil {
			s.logger.Warn("failed to bump reminder counter",
				slog.Int("payment_id", p.ID), slog.Any("error", err))
		}
		sent++
	}
	return sent, nil
}
