package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Dosada05/court-booking-bot/models"
	"github.com/Dosada05/court-booking-bot/repositories"
	"github.com/Dosada05/court-booking-bot/storage"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

const reportTokenTTL = 24 * time.Hour

// ReportService собирает CSV-отчёт по платежам финализированного
// события, загружает его в объектное хранилище и выдаёт подписанные
// токены на скачивание. При отсутствии хранилища фича деградирует в
// ErrReportsDisabled, а не в отказ при старте.
type ReportService struct {
	eventRepo   repositories.EventRepository
	paymentRepo repositories.PaymentRepository
	uploader    storage.FileUploader // nil, если хранилище не настроено
	jwtSecret   []byte
}

func NewReportService(
	eventRepo repositories.EventRepository,
	paymentRepo repositories.PaymentRepository,
	uploader storage.FileUploader,
	jwtSecret []byte,
) *ReportService {
	return &ReportService{
		eventRepo:   eventRepo,
		paymentRepo: paymentRepo,
		uploader:    uploader,
		jwtSecret:   jwtSecret,
	}
}

// Enabled сообщает, настроено ли объектное хранилище отчётов.
func (s *ReportService) Enabled() bool {
	return s.uploader != nil
}

// Report - результат сборки отчёта.
type Report struct {
	EventID int
	Key     string
	URL     string
}

// BuildAndUpload собирает CSV по событию и загружает его в хранилище.
func (s *ReportService) BuildAndUpload(ctx context.Context, eventID int) (*Report, error) {
	if !s.Enabled() {
		return nil, ErrReportsDisabled
	}

	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, repositories.ErrEventNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, err)
		}
		return nil, err
	}
	if event.Status != models.StatusFinalized {
		return nil, fmt.Errorf("%w: report requires a finalized event", ErrInvalidTransition)
	}

	payments, err := s.paymentRepo.GetPaymentsByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	body, err := buildPaymentsCSV(payments)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("reports/event-%d-%s.csv", eventID, uuid.New().String())
	result, err := s.uploader.Upload(ctx, key, "text/csv", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to upload report for event %d: %w", eventID, err)
	}

	return &Report{EventID: eventID, Key: result.Key, URL: result.Location}, nil
}

func buildPaymentsCSV(payments []models.Payment) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"participant", "amount", "paid", "paid_at", "reminders"}); err != nil {
		return nil, err
	}
	for _, p := range payments {
		name := ""
		if p.Participant != nil {
			name = p.Participant.DisplayName()
		}
		paidAt := ""
		if p.PaidAt != nil {
			paidAt = p.PaidAt.UTC().Format(time.RFC3339)
		}
		record := []string{
			name,
			strconv.FormatInt(p.Amount, 10),
			strconv.FormatBool(p.Paid),
			paidAt,
			strconv.Itoa(p.Reminders),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type reportClaims struct {
	Key string `json:"key"`
	jwt.RegisteredClaims
}

// SignDownloadToken выпускает короткоживущий токен на скачивание
// конкретного объекта отчёта.
func (s *ReportService) SignDownloadToken(eventID int, key string) (string, error) {
	claims := reportClaims{
		Key: key,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(eventID),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(reportTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// VerifyDownloadToken проверяет токен и возвращает ключ объекта.
func (s *ReportService) VerifyDownloadToken(tokenString string, eventID int) (string, error) {
	claims := &reportClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrForbidden, err)
	}
	if !token.Valid || claims.Subject != strconv.Itoa(eventID) {
		return "", ErrForbidden
	}
	return claims.Key, nil
}

// PublicURL возвращает публичный адрес объекта отчёта.
func (s *ReportService) PublicURL(key string) string {
	if !s.Enabled() {
		return ""
	}
	return s.uploader.GetPublicURL(key)
}
