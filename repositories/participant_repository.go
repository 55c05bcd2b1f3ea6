package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Dosada05/court-booking-bot/models"
	"github.com/lib/pq"
)

var (
	ErrParticipantNotFound   = errors.New("participant not found")
	ErrParticipantIDConflict = errors.New("participant telegram id already registered")
)

type ParticipantRepository interface {
	Create(ctx context.Context, participant *models.Participant) error
	GetByID(ctx context.Context, id int) (*models.Participant, error)
	FindByTelegramID(ctx context.Context, telegramID int64) (*models.Participant, error)
	FindByUsername(ctx context.Context, username string) (*models.Participant, error)
}

type postgresParticipantRepository struct {
	db *sql.DB
}

func NewPostgresParticipantRepository(db *sql.DB) ParticipantRepository {
	return &postgresParticipantRepository{db: db}
}

const participantColumns = `id, telegram_id, username, name, created_at`

func scanParticipant(row interface{ Scan(...interface{}) error }, p *models.Participant) error {
	return row.Scan(&p.ID, &p.TelegramID, &p.Username, &p.Name, &p.CreatedAt)
}

func (r *postgresParticipantRepository) Create(ctx context.Context, p *models.Participant) error {
	query := `
		INSERT INTO participants (telegram_id, username, name)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query, p.TelegramID, p.Username, p.Name).
		Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrParticipantIDConflict
		}
		return err
	}
	return nil
}

func (r *postgresParticipantRepository) GetByID(ctx context.Context, id int) (*models.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants WHERE id = $1`
	return r.queryOne(ctx, query, id)
}

func (r *postgresParticipantRepository) FindByTelegramID(ctx context.Context, telegramID int64) (*models.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants WHERE telegram_id = $1`
	return r.queryOne(ctx, query, telegramID)
}

func (r *postgresParticipantRepository) FindByUsername(ctx context.Context, username string) (*models.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants WHERE username = $1`
	return r.queryOne(ctx, query, username)
}

func (r *postgresParticipantRepository) queryOne(ctx context.Context, query string, arg interface{}) (*models.Participant, error) {
	p := &models.Participant{}
	err := scanParticipant(r.db.QueryRowContext(ctx, query, arg), p)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrParticipantNotFound
		}
		return nil, err
	}
	return p, nil
}
