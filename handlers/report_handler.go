package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Dosada05/court-booking-bot/services"
	"github.com/go-chi/chi/v5"
)

// ReportHandler отдаёт ссылки на CSV-отчёты по подписанному токену.
type ReportHandler struct {
	reports *services.ReportService
	logger  *slog.Logger
}

func NewReportHandler(reports *services.ReportService, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{reports: reports, logger: logger}
}

// Download проверяет токен из query-параметра и перенаправляет на
// публичный URL объекта в хранилище.
func (h *ReportHandler) Download(w http.ResponseWriter, r *http.Request) {
	if !h.reports.Enabled() {
		http.Error(w, "reports are not configured", http.StatusNotImplemented)
		return
	}

	eventID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid event id", http.StatusBadRequest)
		return
	}
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	key, err := h.reports.VerifyDownloadToken(token, eventID)
	if err != nil {
		if errors.Is(err, services.ErrForbidden) {
			http.Error(w, "invalid or expired token", http.StatusForbidden)
			return
		}
		h.logger.Error("report token verification failed", slog.Any("error", err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, h.reports.PublicURL(key), http.StatusFound)
}
