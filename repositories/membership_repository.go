package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Dosada05/court-booking-bot/models"
)

var ErrMembershipNotFound = errors.New("membership not found")

type MembershipRepository interface {
	Create(ctx context.Context, membership *models.Membership) error
	FindByEventAndParticipant(ctx context.Context, eventID, participantID int) (*models.Membership, error)
	// GetEventParticipants возвращает участников события вместе с числом
	// занимаемых слотов (JOIN с participants).
	GetEventParticipants(ctx context.Context, eventID int) ([]models.EventParticipant, error)
	IncrementParticipations(ctx context.Context, eventID, participantID int) error
	// DecrementOrDelete уменьшает participations на единицу; запись,
	// дошедшая до нуля, удаляется - нулевых членств не бывает.
	DecrementOrDelete(ctx context.Context, eventID, participantID int) error
	Delete(ctx context.Context, eventID, participantID int) error
}

type postgresMembershipRepository struct {
	db *sql.DB
}

func NewPostgresMembershipRepository(db *sql.DB) MembershipRepository {
	return &postgresMembershipRepository{db: db}
}

func (r *postgresMembershipRepository) Create(ctx context.Context, m *models.Membership) error {
	query := `
		INSERT INTO memberships (event_id, participant_id, participations)
		VALUES ($1, $2, $3)
		RETURNING created_at`

	return r.db.QueryRowContext(ctx, query, m.EventID, m.ParticipantID, m.Participations).
		Scan(&m.CreatedAt)
}

func (r *postgresMembershipRepository) FindByEventAndParticipant(ctx context.Context, eventID, participantID int) (*models.Membership, error) {
	query := `
		SELECT event_id, participant_id, participations, created_at
		FROM memberships
		WHERE event_id = $1 AND participant_id = $2`

	m := &models.Membership{}
	err := r.db.QueryRowContext(ctx, query, eventID, participantID).
		Scan(&m.EventID, &m.ParticipantID, &m.Participations, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMembershipNotFound
		}
		return nil, err
	}
	return m, nil
}

func (r *postgresMembershipRepository) GetEventParticipants(ctx context.Context, eventID int) ([]models.EventParticipant, error) {
	query := `
		SELECT p.id, p.telegram_id, p.username, p.name, p.created_at, m.participations
		FROM memberships m
		JOIN participants p ON p.id = m.participant_id
		WHERE m.event_id = $1
		ORDER BY m.created_at`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	participants := make([]models.EventParticipant, 0)
	for rows.Next() {
		var ep models.EventParticipant
		if scanErr := rows.Scan(
			&ep.Participant.ID, &ep.Participant.TelegramID, &ep.Participant.Username,
			&ep.Participant.Name, &ep.Participant.CreatedAt, &ep.Participations,
		); scanErr != nil {
			return nil, scanErr
		}
		participants = append(participants, ep)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return participants, nil
}

func (r *postgresMembershipRepository) IncrementParticipations(ctx context.Context, eventID, participantID int) error {
	query := `
		UPDATE memberships SET participations = participations + 1
		WHERE event_id = $1 AND participant_id = $2`

	result, err := r.db.ExecContext(ctx, query, eventID, participantID)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrMembershipNotFound)
}

func (r *postgresMembershipRepository) DecrementOrDelete(ctx context.Context, eventID, participantID int) error {
	query := `
		UPDATE memberships SET participations = participations - 1
		WHERE event_id = $1 AND participant_id = $2 AND participations > 1`

	result, err := r.db.ExecContext(ctx, query, eventID, participantID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}
	// participations == 1: декремент обнуляет запись, удаляем её.
	return r.Delete(ctx, eventID, participantID)
}

func (r *postgresMembershipRepository) Delete(ctx context.Context, eventID, participantID int) error {
	query := `DELETE FROM memberships WHERE event_id = $1 AND participant_id = $2`
	result, err := r.db.ExecContext(ctx, query, eventID, participantID)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrMembershipNotFound)
}
