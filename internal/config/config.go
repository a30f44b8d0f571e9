package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// 有効なEMAIL_PROVIDERの値
var emailProviders = map[string]bool{
	"resend":  true,
	"mailjet": true,
	"log":     true,
}

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Digest
	AppURL           string
	DigestDailyCron  string
	DigestWeeklyCron string
	DigestTimezone   *time.Location

	// Email
	EmailProvider       string
	EmailAPIURL         string
	EmailAPIKey         string
	EmailFrom           string
	EmailMaxRetries     int
	EmailRetryBaseDelay time.Duration
	EmailTimeout        time.Duration

	// Trigger
	CronSecret      string
	RateLimitDigest int
	RateLimitBurst  int

	// Cleanup
	NotificationRetentionDays int
	CleanupInterval           time.Duration

	// Server
	ServerPort        string
	WorkerMetricsPort string
	LogLevel          string
}

// Load は.envファイルと環境変数からConfigを読み込む。
// .envは存在しなくてもよく、既に設定済みの環境変数は上書きしない。
// EMAIL_API_KEY、EMAIL_FROM、CRON_SECRETは利用時に検証するため、ここでは必須としない。
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("required environment variables are not set: [DATABASE_URL]")
	}

	cfg.AppURL = getEnvString("APP_URL", "http://localhost:3000")
	cfg.DigestDailyCron = getEnvString("DIGEST_DAILY_CRON", "0 8 * * *")
	cfg.DigestWeeklyCron = getEnvString("DIGEST_WEEKLY_CRON", "0 8 * * 1")

	tzName := getEnvString("DIGEST_TIMEZONE", "UTC")
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("DIGEST_TIMEZONE の値が不正です（%s）: %w", tzName, err)
	}
	cfg.DigestTimezone = loc

	cfg.EmailProvider = strings.ToLower(getEnvString("EMAIL_PROVIDER", "resend"))
	if !emailProviders[cfg.EmailProvider] {
		return nil, fmt.Errorf("EMAIL_PROVIDER の値が不正です: %q", cfg.EmailProvider)
	}
	cfg.EmailAPIURL = os.Getenv("EMAIL_API_URL")
	cfg.EmailAPIKey = os.Getenv("EMAIL_API_KEY")
	cfg.EmailFrom = os.Getenv("EMAIL_FROM")
	cfg.EmailMaxRetries = getEnvNonNegativeInt("EMAIL_MAX_RETRIES", 3)
	cfg.EmailRetryBaseDelay = getEnvDuration("EMAIL_RETRY_BASE_DELAY", 500*time.Millisecond)
	cfg.EmailTimeout = getEnvDuration("EMAIL_TIMEOUT", 10*time.Second)

	cfg.CronSecret = os.Getenv("CRON_SECRET")
	cfg.RateLimitDigest = getEnvInt("RATE_LIMIT_DIGEST", 30)
	cfg.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", 10)

	cfg.NotificationRetentionDays = getEnvInt("NOTIFICATION_RETENTION_DAYS", 90)
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", 24*time.Hour)

	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.WorkerMetricsPort = getEnvString("WORKER_METRICS_PORT", "9091")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// getEnvInt は正の整数を読み込む。不正値・0以下はデフォルト値になる。
func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil || i <= 0 {
		return defaultVal
	}
	return i
}

// getEnvNonNegativeInt は0を許容する。
func getEnvNonNegativeInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil || i < 0 {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
