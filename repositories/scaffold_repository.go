package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/court-booking-bot/models"
)

var ErrScaffoldNotFound = errors.New("scaffold not found")

type ScaffoldRepository interface {
	Create(ctx context.Context, scaffold *models.Scaffold) error
	GetByID(ctx context.Context, id int) (*models.Scaffold, error)
	ListActive(ctx context.Context) ([]models.Scaffold, error)
	List(ctx context.Context, includeDeleted bool) ([]models.Scaffold, error)
	Update(ctx context.Context, scaffold *models.Scaffold) error
	SetActive(ctx context.Context, id int, active bool) error
	SetOwner(ctx context.Context, id int, ownerID *int64) error
	SoftDelete(ctx context.Context, id int, at time.Time) error
	Restore(ctx context.Context, id int) error
}

type postgresScaffoldRepository struct {
	db *sql.DB
}

func NewPostgresScaffoldRepository(db *sql.DB) ScaffoldRepository {
	return &postgresScaffoldRepository{db: db}
}

const scaffoldColumns = `id, day_of_week, time_of_day, courts, active, announce_deadline, owner_id, deleted_at, created_at`

func scanScaffold(row interface{ Scan(...interface{}) error }, s *models.Scaffold) error {
	return row.Scan(
		&s.ID, &s.DayOfWeek, &s.TimeOfDay, &s.Courts, &s.Active,
		&s.AnnounceDeadline, &s.OwnerID, &s.DeletedAt, &s.CreatedAt,
	)
}

func (r *postgresScaffoldRepository) Create(ctx context.Context, s *models.Scaffold) error {
	query := `
		INSERT INTO scaffolds (day_of_week, time_of_day, courts, active, announce_deadline, owner_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		s.DayOfWeek, s.TimeOfDay, s.Courts, s.Active, s.AnnounceDeadline, s.OwnerID,
	).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create scaffold: %w", err)
	}
	return nil
}

func (r *postgresScaffoldRepository) GetByID(ctx context.Context, id int) (*models.Scaffold, error) {
	query := `SELECT ` + scaffoldColumns + ` FROM scaffolds WHERE id = $1`

	s := &models.Scaffold{}
	err := scanScaffold(r.db.QueryRowContext(ctx, query, id), s)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrScaffoldNotFound
		}
		return nil, err
	}
	return s, nil
}

// ListActive возвращает шаблоны, участвующие в автопорождении событий:
// активные и не удалённые.
func (r *postgresScaffoldRepository) ListActive(ctx context.Context) ([]models.Scaffold, error) {
	query := `SELECT ` + scaffoldColumns + ` FROM scaffolds
		WHERE active = TRUE AND deleted_at IS NULL
		ORDER BY id`
	return r.queryScaffolds(ctx, query)
}

func (r *postgresScaffoldRepository) List(ctx context.Context, includeDeleted bool) ([]models.Scaffold, error) {
	query := `SELECT ` + scaffoldColumns + ` FROM scaffolds`
	if !includeDeleted {
		query += ` WHERE deleted_at IS NULL`
	}
	query += ` ORDER BY id`
	return r.queryScaffolds(ctx, query)
}

func (r *postgresScaffoldRepository) queryScaffolds(ctx context.Context, query string, args ...interface{}) ([]models.Scaffold, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	scaffolds := make([]models.Scaffold, 0)
	for rows.Next() {
		var s models.Scaffold
		if scanErr := scanScaffold(rows, &s); scanErr != nil {
			return nil, scanErr
		}
		scaffolds = append(scaffolds, s)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return scaffolds, nil
}

func (r *postgresScaffoldRepository) Update(ctx context.Context, s *models.Scaffold) error {
	query := `
		UPDATE scaffolds SET
			day_of_week = $1,
			time_of_day = $2,
			courts = $3,
			active = $4,
			announce_deadline = $5
		WHERE id = $6`

	result, err := r.db.ExecContext(ctx, query,
		s.DayOfWeek, s.TimeOfDay, s.Courts, s.Active, s.AnnounceDeadline, s.ID,
	)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrScaffoldNotFound)
}

func (r *postgresScaffoldRepository) SetActive(ctx context.Context, id int, active bool) error {
	query := `UPDATE scaffolds SET active = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, active, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrScaffoldNotFound)
}

func (r *postgresScaffoldRepository) SetOwner(ctx context.Context, id int, ownerID *int64) error {
	query := `UPDATE scaffolds SET owner_id = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, ownerID, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrScaffoldNotFound)
}

func (r *postgresScaffoldRepository) SoftDelete(ctx context.Context, id int, at time.Time) error {
	query := `UPDATE scaffolds SET deleted_at = $1 WHERE id = $2 AND deleted_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, at, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrScaffoldNotFound)
}

func (r *postgresScaffoldRepository) Restore(ctx context.Context, id int) error {
	query := `UPDATE scaffolds SET deleted_at = NULL WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrScaffoldNotFound)
}
