package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"booknow/internal/cache"
	"booknow/internal/external"
	"booknow/internal/flow"
	"booknow/internal/ledger"
	"booknow/internal/messaging"
	"booknow/internal/session"
	"booknow/internal/timer"

	"github.com/joho/godotenv"
)

// Config содержит конфигурацию приложения
type Config struct {
	Port            string
	GinMode         string
	LogLevel        string
	LogFormat       string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string

	// Performance monitoring
	PprofEnabled bool
	PprofPort    string

	BookingAPI external.BookingAPIConfig
	Cache      cache.Config
	NATS       messaging.Config
	Flow       flow.Config
	Sessions   session.Config
}

// Load загружает конфигурацию из переменных окружения, предварительно подхватывая .env
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	return &Config{
		Port:            getEnv("PORT", "8081"),
		GinMode:         getEnv("GIN_MODE", "debug"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "json"),
		RequestTimeout:  time.Duration(getEnvInt("REQUEST_TIMEOUT_SEC", 30)) * time.Second,
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		AllowedOrigins:  getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),

		// Performance monitoring
		PprofEnabled: getEnv("PPROF_ENABLED", "false") == "true",
		PprofPort:    getEnv("PPROF_PORT", "6060"),

		BookingAPI: external.BookingAPIConfig{
			BaseURL: getEnv("BOOKING_API_URL", "http://localhost:8080"),
			Timeout: time.Duration(getEnvInt("BOOKING_API_TIMEOUT_SEC", 15)) * time.Second,
		},

		Cache: cache.Config{
			Addr:      getEnv("VALKEY_ADDR", "localhost:6379"),
			Password:  getEnv("VALKEY_PASSWORD", ""),
			DB:        getEnvInt("VALKEY_DB", 0),
			KeyPrefix: getEnv("VALKEY_KEY_PREFIX", "booknow"),
			EventsTTL: getEnvDuration("EVENTS_CACHE_TTL", cache.DefaultEventsTTL),
			DraftTTL:  getEnvDuration("DRAFT_TTL", cache.DefaultDraftTTL),
		},

		NATS: messaging.Config{
			Enabled:   getEnv("NATS_ENABLED", "true") == "true",
			URL:       getEnv("NATS_URL", "nats://localhost:4222"),
			ClusterID: getEnv("NATS_CLUSTER_ID", "booknow"),
			ClientID:  getEnv("NATS_CLIENT_ID", "booknow-gateway"),
		},

		Flow: flow.Config{
			MaxSeats: getEnvInt("MAX_SEATS", 6),
			PageSize: getEnvInt("SEATS_PAGE_SIZE", 50),
			Timer: timer.Config{
				ExtendIncrement: getEnvDuration("TIMER_EXTEND_INCREMENT", 300*time.Second),
				ExtendThreshold: getEnvDuration("TIMER_EXTEND_THRESHOLD", 300*time.Second),
				ExtendCooldown:  getEnvDuration("TIMER_EXTEND_COOLDOWN", 60*time.Second),
				TickInterval:    time.Second,
			},
			Ledger: ledger.Config{
				SuccessTTL:    getEnvDuration("LEDGER_SUCCESS_TTL", 3*time.Second),
				ErrorTTL:      getEnvDuration("LEDGER_ERROR_TTL", 5*time.Second),
				PurgeInterval: time.Second,
			},
		},

		Sessions: session.Config{
			IdleTimeout:   getEnvDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
			SweepInterval: getEnvDuration("SESSION_SWEEP_INTERVAL", time.Minute),
		},
	}
}

// getEnv получает значение переменной окружения или возвращает значение по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt получает целочисленное значение переменной окружения
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvDuration понимает как "90s", так и число секунд
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

// getEnvList разбирает список через запятую
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
