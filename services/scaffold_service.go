package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/court-booking-bot/models"
	"github.com/Dosada05/court-booking-bot/repositories"
	"github.com/Dosada05/court-booking-bot/schedule"
)

// CreateScaffoldInput - параметры нового еженедельного шаблона.
type CreateScaffoldInput struct {
	DayOfWeek        string
	TimeOfDay        string
	Courts           int
	AnnounceDeadline *string
	OwnerID          *int64
}

// UpdateScaffoldInput - частичное обновление шаблона; nil-поля не трогаются.
type UpdateScaffoldInput struct {
	DayOfWeek        *string
	TimeOfDay        *string
	Courts           *int
	AnnounceDeadline *string
}

// ScaffoldService инкапсулирует работу с еженедельными шаблонами.
type ScaffoldService struct {
	repo repositories.ScaffoldRepository
}

func NewScaffoldService(repo repositories.ScaffoldRepository) *ScaffoldService {
	return &ScaffoldService{repo: repo}
}

func (s *ScaffoldService) CreateScaffold(ctx context.Context, in CreateScaffoldInput) (*models.Scaffold, error) {
	if err := validateScaffoldFields(in.DayOfWeek, in.TimeOfDay, in.Courts, in.AnnounceDeadline); err != nil {
		return nil, err
	}
	scaffold := &models.Scaffold{
		DayOfWeek:        in.DayOfWeek,
		TimeOfDay:        in.TimeOfDay,
		Courts:           in.Courts,
		Active:           true,
		AnnounceDeadline: in.AnnounceDeadline,
		OwnerID:          in.OwnerID,
	}
	if err := s.repo.Create(ctx, scaffold); err != nil {
		return nil, fmt.Errorf("failed to create scaffold: %w", err)
	}
	return scaffold, nil
}

func (s *ScaffoldService) GetScaffold(ctx context.Context, id int) (*models.Scaffold, error) {
	scaffold, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, wrapScaffoldNotFound(err)
	}
	return scaffold, nil
}

func (s *ScaffoldService) ListScaffolds(ctx context.Context, includeDeleted bool) ([]models.Scaffold, error) {
	return s.repo.List(ctx, includeDeleted)
}

func (s *ScaffoldService) UpdateScaffold(ctx context.Context, id int, in UpdateScaffoldInput) (*models.Scaffold, error) {
	scaffold, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, wrapScaffoldNotFound(err)
	}

	if in.DayOfWeek != nil {
		scaffold.DayOfWeek = *in.DayOfWeek
	}
	if in.TimeOfDay != nil {
		scaffold.TimeOfDay = *in.TimeOfDay
	}
	if in.Courts != nil {
		scaffold.Courts = *in.Courts
	}
	if in.AnnounceDeadline != nil {
		scaffold.AnnounceDeadline = in.AnnounceDeadline
	}
	if err := validateScaffoldFields(scaffold.DayOfWeek, scaffold.TimeOfDay, scaffold.Courts, scaffold.AnnounceDeadline); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, scaffold); err != nil {
		return nil, wrapScaffoldNotFound(err)
	}
	return scaffold, nil
}

// ToggleActive включает или выключает участие шаблона в автопорождении.
func (s *ScaffoldService) ToggleActive(ctx context.Context, id int) (bool, error) {
	scaffold, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return false, wrapScaffoldNotFound(err)
	}
	active := !scaffold.Active
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return false, wrapScaffoldNotFound(err)
	}
	return active, nil
}

// TransferOwner передаёт шаблон другому владельцу.
func (s *ScaffoldService) TransferOwner(ctx context.Context, id int, ownerID int64) error {
	if err := s.repo.SetOwner(ctx, id, &ownerID); err != nil {
		return wrapScaffoldNotFound(err)
	}
	return nil
}

// SoftDeleteScaffold помечает шаблон удалённым. Порождённые им события
// остаются и ссылку на шаблон не теряют.
func (s *ScaffoldService) SoftDeleteScaffold(ctx context.Context, id int) error {
	if err := s.repo.SoftDelete(ctx, id, time.Now()); err != nil {
		return wrapScaffoldNotFound(err)
	}
	return nil
}

func (s *ScaffoldService) RestoreScaffold(ctx context.Context, id int) error {
	if err := s.repo.Restore(ctx, id); err != nil {
		return wrapScaffoldNotFound(err)
	}
	return nil
}

func validateScaffoldFields(dayOfWeek, timeOfDay string, courts int, deadline *string) error {
	if _, err := schedule.ParseDayOfWeek(dayOfWeek); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidScaffold, err)
	}
	if _, _, err := schedule.ParseTimeOfDay(timeOfDay); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidScaffold, err)
	}
	if courts < 1 {
		return fmt.Errorf("%w: courts must be positive", ErrInvalidScaffold)
	}
	if deadline != nil {
		if _, err := schedule.ParseDeadline(*deadline); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidScaffold, err)
		}
	}
	return nil
}

func wrapScaffoldNotFound(err error) error {
	if errors.Is(err, repositories.ErrScaffoldNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, err)
	}
	return err
}
