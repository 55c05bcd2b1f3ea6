package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Dosada05/court-booking-bot/models"
	"github.com/lib/pq"
)

var (
	ErrEventNotFound        = errors.New("event not found")
	ErrEventInvalidScaffold = errors.New("invalid scaffold reference")
)

type EventRepository interface {
	Create(ctx context.Context, event *models.Event) error
	GetByID(ctx context.Context, id int) (*models.Event, error)
	FindByMessageID(ctx context.Context, messageID int) (*models.Event, error)
	// FindNearbyByScaffold возвращает события шаблона в окне ±window
	// вокруг instant - для правила склейки почти-одинаковых вхождений.
	FindNearbyByScaffold(ctx context.Context, scaffoldID int, instant time.Time, window time.Duration) ([]models.Event, error)
	ListUpcoming(ctx context.Context, from time.Time) ([]models.Event, error)
	SetStatus(ctx context.Context, exec SQLExecutor, id int, status models.EventStatus) error
	SetMessageID(ctx context.Context, id int, messageID *int) error
	SetCourts(ctx context.Context, id int, courts int) error
	SetOwner(ctx context.Context, id int, ownerID *int64) error
	SoftDelete(ctx context.Context, id int, at time.Time) error
	Restore(ctx context.Context, id int) error
}

type postgresEventRepository struct {
	db *sql.DB
}

func NewPostgresEventRepository(db *sql.DB) EventRepository {
	return &postgresEventRepository{db: db}
}

func (r *postgresEventRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const eventColumns = `id, scaffold_id, starts_at, courts, status, message_id, owner_id, deleted_at, created_at`

func scanEvent(row interface{ Scan(...interface{}) error }, e *models.Event) error {
	return row.Scan(
		&e.ID, &e.ScaffoldID, &e.StartsAt, &e.Courts, &e.Status,
		&e.MessageID, &e.OwnerID, &e.DeletedAt, &e.CreatedAt,
	)
}

func (r *postgresEventRepository) Create(ctx context.Context, e *models.Event) error {
	query := `
		INSERT INTO events (scaffold_id, starts_at, courts, status, owner_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		e.ScaffoldID, e.StartsAt, e.Courts, e.Status, e.OwnerID,
	).Scan(&e.ID, &e.CreatedAt)

	return r.handleEventError(err)
}

func (r *postgresEventRepository) GetByID(ctx context.Context, id int) (*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`

	e := &models.Event{}
	err := scanEvent(r.db.QueryRowContext(ctx, query, id), e)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return e, nil
}

func (r *postgresEventRepository) FindByMessageID(ctx context.Context, messageID int) (*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE message_id = $1`

	e := &models.Event{}
	err := scanEvent(r.db.QueryRowContext(ctx, query, messageID), e)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return e, nil
}

func (r *postgresEventRepository) FindNearbyByScaffold(ctx context.Context, scaffoldID int, instant time.Time, window time.Duration) ([]models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events
		WHERE scaffold_id = $1
		AND deleted_at IS NULL
		AND starts_at > $2 AND starts_at < $3
		ORDER BY starts_at`

	return r.queryEvents(ctx, query, scaffoldID, instant.Add(-window), instant.Add(window))
}

func (r *postgresEventRepository) ListUpcoming(ctx context.Context, from time.Time) ([]models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events
		WHERE starts_at >= $1 AND deleted_at IS NULL
		ORDER BY starts_at`
	return r.queryEvents(ctx, query, from)
}

func (r *postgresEventRepository) queryEvents(ctx context.Context, query string, args ...interface{}) ([]models.Event, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]models.Event, 0)
	for rows.Next() {
		var e models.Event
		if scanErr := scanEvent(rows, &e); scanErr != nil {
			return nil, scanErr
		}
		events = append(events, e)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func (r *postgresEventRepository) SetStatus(ctx context.Context, exec SQLExecutor, id int, status models.EventStatus) error {
	executor := r.getExecutor(exec)
	query := `UPDATE events SET status = $1 WHERE id = $2`
	result, err := executor.ExecContext(ctx, query, status, id)
	if err != nil {
		return r.handleEventError(err)
	}
	return checkAffectedRows(result, ErrEventNotFound)
}

func (r *postgresEventRepository) SetMessageID(ctx context.Context, id int, messageID *int) error {
	query := `UPDATE events SET message_id = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, messageID, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrEventNotFound)
}

func (r *postgresEventRepository) SetCourts(ctx context.Context, id int, courts int) error {
	query := `UPDATE events SET courts = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, courts, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrEventNotFound)
}

func (r *postgresEventRepository) SetOwner(ctx context.Context, id int, ownerID *int64) error {
	query := `UPDATE events SET owner_id = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, ownerID, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrEventNotFound)
}

func (r *postgresEventRepository) SoftDelete(ctx context.Context, id int, at time.Time) error {
	query := `UPDATE events SET deleted_at = $1 WHERE id = $2 AND deleted_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, at, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrEventNotFound)
}

func (r *postgresEventRepository) Restore(ctx context.Context, id int) error {
	query := `UPDATE events SET deleted_at = NULL WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrEventNotFound)
}

func (r *postgresEventRepository) handleEventError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		if pqErr.Code == "23503" && pqErr.Constraint == "events_scaffold_id_fkey" {
			return ErrEventInvalidScaffold
		}
	}
	return err
}
