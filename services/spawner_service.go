package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/court-booking-bot/models"
	"github.com/Dosada05/court-booking-bot/repositories"
	"github.com/Dosada05/court-booking-bot/schedule"
)

// SpawnerService по тику планировщика материализует активные шаблоны в
// события и сразу анонсирует их.
type SpawnerService struct {
	scaffoldRepo repositories.ScaffoldRepository
	eventRepo    repositories.EventRepository
	events       *EventService
	settings     Settings
	logger       *slog.Logger

	// подменяется в тестах
	now func() time.Time
}

func NewSpawnerService(
	scaffoldRepo repositories.ScaffoldRepository,
	eventRepo repositories.EventRepository,
	events *EventService,
	settings Settings,
	logger *slog.Logger,
) *SpawnerService {
	return &SpawnerService{
		scaffoldRepo: scaffoldRepo,
		eventRepo:    eventRepo,
		events:       events,
		settings:     settings,
		logger:       logger,
		now:          time.Now,
	}
}

// CheckAndCreateEventsFromScaffolds проходит по активным шаблонам и
// создаёт события, чей дедлайн анонса наступил. Ошибка одного шаблона
// логируется и не прерывает обход остальных. Возвращает число реально
// созданных событий.
func (s *SpawnerService) CheckAndCreateEventsFromScaffolds(ctx context.Context) (int, error) {
	scaffolds, err := s.scaffoldRepo.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list active scaffolds: %w", err)
	}

	created := 0
	for i := range scaffolds {
		scaffold := &scaffolds[i]
		ok, err := s.spawnOne(ctx, scaffold)
		if err != nil {
			s.logger.Error("scaffold spawn failed",
				slog.Int("scaffold_id", scaffold.ID), slog.Any("error", err))
			continue
		}
		if ok {
			created++
		}
	}
	return created, nil
}

// spawnOne обрабатывает один шаблон: вычисляет ближайшее вхождение,
// отсеивает дубли и несработавшие дедлайны, создаёт и анонсирует событие.
func (s *SpawnerService) spawnOne(ctx context.Context, scaffold *models.Scaffold) (bool, error) {
	now := s.now()

	occurrence, err := schedule.NextOccurrence(scaffold.DayOfWeek, scaffold.TimeOfDay, now, s.settings.Location)
	if err != nil {
		return false, fmt.Errorf("%w: %s", ErrInvalidScaffold, err)
	}

	exists, err := s.eventExists(ctx, scaffold.ID, occurrence)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	deadline := s.settings.DefaultDeadline
	if scaffold.AnnounceDeadline != nil {
		deadline, err = schedule.ParseDeadline(*scaffold.AnnounceDeadline)
		if err != nil {
			return false, fmt.Errorf("%w: %s", ErrInvalidScaffold, err)
		}
	}
	if !schedule.ShouldTrigger(deadline, occurrence, now, s.settings.Location) {
		return false, nil
	}

	owner, err := s.resolveOwner(scaffold)
	if err != nil {
		return false, err
	}

	event, err := s.events.CreateEvent(ctx, CreateEventInput{
		ScaffoldID: &scaffold.ID,
		StartsAt:   occurrence,
		Courts:     scaffold.Courts,
		OwnerID:    owner,
	})
	if err != nil {
		return false, err
	}
	if err := s.events.Announce(ctx, event.ID); err != nil {
		return false, fmt.Errorf("event %d created but not announced: %w", event.ID, err)
	}

	s.logger.Info("event spawned from scaffold",
		slog.Int("scaffold_id", scaffold.ID),
		slog.Int("event_id", event.ID),
		slog.Time("starts_at", occurrence))
	return true, nil
}

// eventExists реализует правило склейки: событие того же шаблона в
// пределах часа от кандидата считается тем же вхождением.
func (s *SpawnerService) eventExists(ctx context.Context, scaffoldID int, occurrence time.Time) (bool, error) {
	nearby, err := s.eventRepo.FindNearbyByScaffold(ctx, scaffoldID, occurrence, time.Hour)
	if err != nil {
		return false, err
	}
	for _, e := range nearby {
		if schedule.SameOccurrence(e.StartsAt, occurrence) {
			return true, nil
		}
	}
	return false, nil
}

// resolveOwner выбирает владельца события: владелец шаблона, иначе
// глобальный администратор. Без того и другого шаблон пропускается.
func (s *SpawnerService) resolveOwner(scaffold *models.Scaffold) (*int64, error) {
	if scaffold.OwnerID != nil {
		return scaffold.OwnerID, nil
	}
	if s.settings.AdminTelegramID != 0 {
		admin := s.settings.AdminTelegramID
		return &admin, nil
	}
	return nil, ErrUnconfigured
}
