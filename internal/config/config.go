package config

import (
	"errors"
	"log/slog"
	"time"

	"parkly/internal/cache"
	"parkly/internal/database"
	"parkly/internal/external"
	"parkly/internal/messaging"
	"parkly/internal/service"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	Port           string
	GinMode        string
	LogLevel       string
	LogFormat      string
	RequestTimeout time.Duration

	JWTSecret   string
	RateLimit   RateLimitConfig
	JobInterval time.Duration

	Database database.Config
	Redis    cache.Config
	NATS     messaging.Config
	Payment  external.PaymentConfig
	Booking  service.Options
}

// RateLimitConfig limits mutating requests per client
type RateLimitConfig struct {
	RPS   float64
	Burst int
}

// Load reads configuration from .env, an optional config/config.yaml and the environment
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file loaded", "error", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")
	setDefaults(v)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Warn("Failed to read config file, using environment only", "error", err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Port:           v.GetString("PORT"),
		GinMode:        v.GetString("GIN_MODE"),
		LogLevel:       v.GetString("LOG_LEVEL"),
		LogFormat:      v.GetString("LOG_FORMAT"),
		RequestTimeout: time.Duration(v.GetInt("REQUEST_TIMEOUT_SEC")) * time.Second,

		JWTSecret: v.GetString("JWT_SECRET"),
		RateLimit: RateLimitConfig{
			RPS:   v.GetFloat64("RATE_LIMIT_RPS"),
			Burst: v.GetInt("RATE_LIMIT_BURST"),
		},
		JobInterval: time.Duration(v.GetInt("JOB_INTERVAL_SEC")) * time.Second,

		Database: database.Config{
			Host:               v.GetString("DB_HOST"),
			Port:               v.GetInt("DB_PORT"),
			User:               v.GetString("DB_USER"),
			Password:           v.GetString("DB_PASSWORD"),
			DBName:             v.GetString("DB_NAME"),
			SSLMode:            v.GetString("DB_SSLMODE"),
			MaxOpenConns:       v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:       v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetimeMin: v.GetInt("DB_CONN_MAX_LIFETIME_MIN"),
			ConnMaxIdleTimeMin: v.GetInt("DB_CONN_MAX_IDLE_TIME_MIN"),
		},

		Redis: cache.Config{
			Addr:        v.GetString("REDIS_ADDR"),
			Password:    v.GetString("REDIS_PASSWORD"),
			DB:          v.GetInt("REDIS_DB"),
			PendingTTL:  time.Duration(v.GetInt("EXTENSION_PENDING_TTL_MIN")) * time.Minute,
			DialTimeout: 5 * time.Second,
		},

		NATS: messaging.Config{
			URL:       v.GetString("NATS_URL"),
			ClusterID: v.GetString("NATS_CLUSTER_ID"),
			ClientID:  v.GetString("NATS_CLIENT_ID"),
		},

		Payment: external.PaymentConfig{
			BaseURL:  v.GetString("PAYMENT_GATEWAY_URL"),
			TeamSlug: v.GetString("PAYMENT_TEAM_SLUG"),
			Password: v.GetString("PAYMENT_PASSWORD"),
			Timeout:  time.Duration(v.GetInt("PAYMENT_TIMEOUT_SEC")) * time.Second,
		},

		Booking: service.Options{
			Fees: service.FeePolicy{
				Version:           v.GetString("PLATFORM_FEE_VERSION"),
				ServiceFeeBps:     v.GetInt64("SERVICE_FEE_BPS"),
				HostCommissionBps: hostCommissionBps(v),
			},
			HoldTTL:                        time.Duration(v.GetInt("HOLD_TTL_MIN")) * time.Minute,
			RefundExtensionOnCommitFailure: v.GetBool("EXTENSION_REFUND_ON_COMMIT_FAILURE"),
		},
	}
}

// hostCommissionBps defaults to the service fee rate, so one platform percentage applies to both sides
func hostCommissionBps(v *viper.Viper) int64 {
	if v.GetString("HOST_COMMISSION_BPS") == "" {
		return v.GetInt64("SERVICE_FEE_BPS")
	}
	return v.GetInt64("HOST_COMMISSION_BPS")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8081")
	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("REQUEST_TIMEOUT_SEC", 30)

	v.SetDefault("JWT_SECRET", "change-me")
	v.SetDefault("RATE_LIMIT_RPS", 10)
	v.SetDefault("RATE_LIMIT_BURST", 20)
	v.SetDefault("JOB_INTERVAL_SEC", 30)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "parkly")
	v.SetDefault("DB_PASSWORD", "parkly")
	v.SetDefault("DB_NAME", "parkly")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 50)
	v.SetDefault("DB_MAX_IDLE_CONNS", 10)
	v.SetDefault("DB_CONN_MAX_LIFETIME_MIN", 5)
	v.SetDefault("DB_CONN_MAX_IDLE_TIME_MIN", 1)

	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("EXTENSION_PENDING_TTL_MIN", 30)

	v.SetDefault("NATS_URL", "nats://localhost:4222")
	v.SetDefault("NATS_CLUSTER_ID", "parkly")
	v.SetDefault("NATS_CLIENT_ID", "parkly-api")

	v.SetDefault("PAYMENT_GATEWAY_URL", "http://localhost:8090")
	v.SetDefault("PAYMENT_TEAM_SLUG", "")
	v.SetDefault("PAYMENT_PASSWORD", "")
	v.SetDefault("PAYMENT_TIMEOUT_SEC", 30)

	v.SetDefault("PLATFORM_FEE_VERSION", "2024-01")
	v.SetDefault("SERVICE_FEE_BPS", 1000)
	v.SetDefault("HOLD_TTL_MIN", 24*60)
	v.SetDefault("EXTENSION_REFUND_ON_COMMIT_FAILURE", false)
}
