package routes

import (
	"github.com/Dosada05/court-booking-bot/handlers"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes настраивает служебный HTTP-интерфейс: пробы живости,
// скачивание отчётов и websocket-ленту аудита.
func SetupRoutes(
	router *chi.Mux,
	healthHandler *handlers.HealthHandler,
	reportHandler *handlers.ReportHandler,
	liveHandler *handlers.LiveHandler,
) {
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET"},
	}))

	router.Get("/healthz", healthHandler.Healthz)
	router.Get("/reports/{id}", reportHandler.Download)
	router.Get("/ws", liveHandler.Feed)
}
