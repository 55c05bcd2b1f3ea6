package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dosada05/court-booking-bot/config"
	"github.com/Dosada05/court-booking-bot/db"
	"github.com/Dosada05/court-booking-bot/handlers"
	"github.com/Dosada05/court-booking-bot/live"
	"github.com/Dosada05/court-booking-bot/repositories"
	api "github.com/Dosada05/court-booking-bot/routes"
	"github.com/Dosada05/court-booking-bot/schedule"
	"github.com/Dosada05/court-booking-bot/services"
	"github.com/Dosada05/court-booking-bot/storage"
	"github.com/Dosada05/court-booking-bot/telegram"
	"github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("failed to load timezone", slog.String("timezone", cfg.Timezone), slog.Any("error", err))
		os.Exit(1)
	}
	defaultDeadline, err := schedule.ParseDeadline(cfg.AnnounceDeadline)
	if err != nil {
		logger.Error("invalid ANNOUNCE_DEADLINE", slog.Any("error", err))
		os.Exit(1)
	}

	// Подключение к базе данных
	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		}
	}()
	logger.Info("database connection established")

	// Хранилище отчётов опционально: без него бот просто отвечает, что
	// отчёты не настроены.
	var uploader storage.FileUploader
	if cfg.ReportsConfigured() {
		uploader, err = storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize report storage", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("report storage initialized")
	} else {
		logger.Info("report storage not configured, reports disabled")
	}

	// Лента аудита
	hub := live.NewHub(logger)
	go hub.Run()

	// Telegram
	botAPI, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		logger.Error("failed to initialize telegram bot", slog.Any("error", err))
		os.Exit(1)
	}
	tgClient := telegram.NewClient(botAPI)
	formatter := telegram.NewFormatter()

	settings := services.Settings{
		CourtPrice:      cfg.CourtPrice,
		Location:        location,
		DefaultDeadline: defaultDeadline,
		ChannelID:       cfg.AnnounceChannelID,
		AdminTelegramID: cfg.AdminTelegramID,
	}

	// Инициализация репозиториев
	eventRepo := repositories.NewPostgresEventRepository(dbConn)
	scaffoldRepo := repositories.NewPostgresScaffoldRepository(dbConn)
	participantRepo := repositories.NewPostgresParticipantRepository(dbConn)
	membershipRepo := repositories.NewPostgresMembershipRepository(dbConn)
	paymentRepo := repositories.NewPostgresPaymentRepository(dbConn)

	// Инициализация сервисов
	lock := services.NewEventLock()
	eventService := services.NewEventService(
		services.NewSQLTransactor(dbConn),
		eventRepo,
		participantRepo,
		membershipRepo,
		paymentRepo,
		lock,
		settings,
		formatter,
		tgClient,
		hub,
		logger,
	)
	paymentService := services.NewPaymentService(
		eventRepo,
		participantRepo,
		paymentRepo,
		lock,
		eventService,
		settings,
		formatter,
		tgClient,
		hub,
		logger,
	)
	scaffoldService := services.NewScaffoldService(scaffoldRepo)
	spawnerService := services.NewSpawnerService(scaffoldRepo, eventRepo, eventService, settings, logger)
	reportService := services.NewReportService(eventRepo, paymentRepo, uploader, []byte(cfg.JWTSecretKey))
	logger.Info("services initialized")

	// Обработчики Telegram
	tgHandlers := telegram.NewHandlers(
		eventService,
		paymentService,
		scaffoldService,
		spawnerService,
		reportService,
		tgClient,
		settings,
		logger,
	)
	bot := telegram.NewBot(botAPI, tgHandlers, logger)

	// HTTP: пробы, отчёты, лента аудита
	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		handlers.NewHealthHandler(dbConn),
		handlers.NewReportHandler(reportService, logger),
		handlers.NewLiveHandler(hub, logger),
	)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Планировщик порождения событий из шаблонов
	scheduler := cron.New()
	_, err = scheduler.AddFunc(cfg.SpawnerCron, func() {
		created, err := spawnerService.CheckAndCreateEventsFromScaffolds(ctx)
		if err != nil {
			logger.Error("spawner run failed", slog.Any("error", err))
			return
		}
		if created > 0 {
			logger.Info("spawner run finished", slog.Int("created", created))
		}
	})
	if err != nil {
		logger.Error("invalid SPAWNER_CRON", slog.Any("error", err))
		os.Exit(1)
	}
	scheduler.Start()
	defer scheduler.Stop()
	logger.Info("spawner scheduler started", slog.String("cron", cfg.SpawnerCron))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		if err := bot.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("application stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("application exited")
}
