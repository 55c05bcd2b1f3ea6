package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	TelegramToken string
	DatabaseURL   string
	ServerPort    int
	JWTSecretKey  string

	// Цена одного корта в минорных единицах валюты.
	CourtPrice int64
	// Часовой пояс календарной арифметики, имя из базы tz.
	Timezone string
	// Канал анонсов.
	AnnounceChannelID int64
	// Глобальный администратор.
	AdminTelegramID int64
	// Дедлайн анонса по умолчанию, например "-1d 12:00" или "-36h".
	AnnounceDeadline string
	// Расписание проверки шаблонов в формате robfig/cron.
	SpawnerCron string

	// Хранилище отчётов (Cloudflare R2); блок опционален.
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicBaseURL   string
}

// ReportsConfigured сообщает, задан ли блок R2 целиком.
func (c *Config) ReportsConfigured() bool {
	return c.R2AccountID != "" && c.R2AccessKeyID != "" && c.R2SecretAccessKey != "" &&
		c.R2BucketName != "" && c.R2PublicBaseURL != ""
}

// Load загружает конфигурацию из переменных окружения.
// Опционально подгружает .env файл (полезно для локальной разработки).
func Load() (*Config, error) {
	// Загружаем .env файл, если он есть. Ошибку не считаем фатальной.
	_ = godotenv.Load()

	cfg := &Config{
		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		JWTSecretKey:  os.Getenv("JWT_SECRET_KEY"),
		Timezone:      getEnvOrDefault("TIMEZONE", "Europe/Moscow"),

		AnnounceDeadline: getEnvOrDefault("ANNOUNCE_DEADLINE", "-1d 12:00"),
		SpawnerCron:      getEnvOrDefault("SPAWNER_CRON", "@every 5m"),

		R2AccountID:       os.Getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:      os.Getenv("R2_BUCKET_NAME"),
		R2PublicBaseURL:   os.Getenv("R2_PUBLIC_BASE_URL"),
	}

	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable is not set")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}
	if cfg.JWTSecretKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	port, err := strconv.Atoi(getEnvOrDefault("SERVER_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT environment variable: %w", err)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}
	cfg.ServerPort = port

	courtPrice, err := strconv.ParseInt(getEnvOrDefault("COURT_PRICE", "0"), 10, 64)
	if err != nil || courtPrice < 0 {
		return nil, fmt.Errorf("COURT_PRICE must be a non-negative integer in minor currency units")
	}
	cfg.CourtPrice = courtPrice

	channelID, err := strconv.ParseInt(os.Getenv("ANNOUNCE_CHANNEL_ID"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("ANNOUNCE_CHANNEL_ID environment variable is not set or invalid")
	}
	cfg.AnnounceChannelID = channelID

	// Администратор опционален: без него шаблоны без владельца будут
	// пропускаться планировщиком.
	if raw := os.Getenv("ADMIN_TELEGRAM_ID"); raw != "" {
		adminID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID environment variable: %w", err)
		}
		cfg.AdminTelegramID = adminID
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
