package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/court-booking-bot/models"
	"github.com/lib/pq"
)

var (
	ErrPaymentNotFound = errors.New("payment not found")
	ErrPaymentConflict = errors.New("payment already exists for this event and participant")
)

type PaymentRepository interface {
	// CreateBatch создаёт все строки платежей финализируемого события.
	// Вызывается внутри транзакции финализации.
	CreateBatch(ctx context.Context, exec SQLExecutor, payments []*models.Payment) error
	GetByID(ctx context.Context, id int) (*models.Payment, error)
	FindByEventAndParticipant(ctx context.Context, eventID, participantID int) (*models.Payment, error)
	// GetPaymentsByEvent возвращает платежи события вместе с участниками.
	GetPaymentsByEvent(ctx context.Context, eventID int) ([]models.Payment, error)
	SetPaid(ctx context.Context, exec SQLExecutor, id int, paidAt time.Time) error
	SetUnpaid(ctx context.Context, exec SQLExecutor, id int) error
	IncrementReminders(ctx context.Context, id int) error
	SetNoticeMessageID(ctx context.Context, id int, messageID *int) error
	DeleteByEvent(ctx context.Context, exec SQLExecutor, eventID int) error
}

type postgresPaymentRepository struct {
	db *sql.DB
}

func NewPostgresPaymentRepository(db *sql.DB) PaymentRepository {
	return &postgresPaymentRepository{db: db}
}

func (r *postgresPaymentRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresPaymentRepository) CreateBatch(ctx context.Context, exec SQLExecutor, payments []*models.Payment) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO payments (event_id, participant_id, amount)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	for _, p := range payments {
		err := executor.QueryRowContext(ctx, query, p.EventID, p.ParticipantID, p.Amount).
			Scan(&p.ID, &p.CreatedAt)
		if err != nil {
			if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
				return ErrPaymentConflict
			}
			return fmt.Errorf("failed to create payment for participant %d: %w", p.ParticipantID, err)
		}
	}
	return nil
}

const paymentColumns = `id, event_id, participant_id, amount, paid, paid_at, reminders, notice_message_id, created_at`

func scanPayment(row interface{ Scan(...interface{}) error }, p *models.Payment) error {
	return row.Scan(
		&p.ID, &p.EventID, &p.ParticipantID, &p.Amount, &p.Paid,
		&p.PaidAt, &p.Reminders, &p.NoticeMessageID, &p.CreatedAt,
	)
}

func (r *postgresPaymentRepository) GetByID(ctx context.Context, id int) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

	p := &models.Payment{}
	err := scanPayment(r.db.QueryRowContext(ctx, query, id), p)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *postgresPaymentRepository) FindByEventAndParticipant(ctx context.Context, eventID, participantID int) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE event_id = $1 AND participant_id = $2`

	p := &models.Payment{}
	err := scanPayment(r.db.QueryRowContext(ctx, query, eventID, participantID), p)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *postgresPaymentRepository) GetPaymentsByEvent(ctx context.Context, eventID int) ([]models.Payment, error) {
	query := `
		SELECT pay.id, pay.event_id, pay.participant_id, pay.amount, pay.paid,
			pay.paid_at, pay.reminders, pay.notice_message_id, pay.created_at,
			p.id, p.telegram_id, p.username, p.name, p.created_at
		FROM payments pay
		JOIN participants p ON p.id = pay.participant_id
		WHERE pay.event_id = $1
		ORDER BY pay.id`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]models.Payment, 0)
	for rows.Next() {
		var pay models.Payment
		var part models.Participant
		if scanErr := rows.Scan(
			&pay.ID, &pay.EventID, &pay.ParticipantID, &pay.Amount, &pay.Paid,
			&pay.PaidAt, &pay.Reminders, &pay.NoticeMessageID, &pay.CreatedAt,
			&part.ID, &part.TelegramID, &part.Username, &part.Name, &part.CreatedAt,
		); scanErr != nil {
			return nil, scanErr
		}
		pay.Participant = &part
		payments = append(payments, pay)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *postgresPaymentRepository) SetPaid(ctx context.Context, exec SQLExecutor, id int, paidAt time.Time) error {
	executor := r.getExecutor(exec)
	query := `UPDATE payments SET paid = TRUE, paid_at = $1 WHERE id = $2`
	result, err := executor.ExecContext(ctx, query, paidAt, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrPaymentNotFound)
}

func (r *postgresPaymentRepository) SetUnpaid(ctx context.Context, exec SQLExecutor, id int) error {
	executor := r.getExecutor(exec)
	query := `UPDATE payments SET paid = FALSE, paid_at = NULL WHERE id = $1`
	result, err := executor.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrPaymentNotFound)
}

func (r *postgresPaymentRepository) IncrementReminders(ctx context.Context, id int) error {
	query := `UPDATE payments SET reminders = reminders + 1 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrPaymentNotFound)
}

func (r *postgresPaymentRepository) SetNoticeMessageID(ctx context.Context, id int, messageID *int) error {
	query := `UPDATE payments SET notice_message_id = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, messageID, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrPaymentNotFound)
}

// DeleteByEvent удаляет все платежи события. Ноль удалённых строк не
// считается ошибкой: отменять финализацию события без платежей законно.
func (r *postgresPaymentRepository) DeleteByEvent(ctx context.Context, exec SQLExecutor, eventID int) error {
	executor := r.getExecutor(exec)
	query := `DELETE FROM payments WHERE event_id = $1`
	_, err := executor.ExecContext(ctx, query, eventID)
	return err
}
