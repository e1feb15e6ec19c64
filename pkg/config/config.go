package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	Applications  ApplicationsConfig
	Notifications NotificationsConfig
	Mail          MailConfig
	Reviews       ReviewsConfig
	Verifications VerificationsConfig
	RateLimit     RateLimitConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
	Issuer            string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// ApplicationsConfig tunes the application workflow.
// StrictTransitions rejects repeated accept/reject calls with a conflict.
type ApplicationsConfig struct {
	StrictTransitions bool
}

// NotificationsConfig configures the asynchronous email delivery queue.
type NotificationsConfig struct {
	EmailEnabled      bool
	WorkerConcurrency int
	WorkerRetries     int
	RetryDelay        time.Duration
	BufferSize        int
}

// MailConfig holds SES transport settings.
type MailConfig struct {
	Provider  string
	AWSRegion string
	FromEmail string
	Timeout   time.Duration
}

// ReviewsConfig governs caching of review summaries.
type ReviewsConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// VerificationsConfig controls document storage & validation.
type VerificationsConfig struct {
	StorageDir       string
	SignedURLSecret  string
	SignedURLTTL     time.Duration
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
}

// RateLimitConfig limits unauthenticated auth endpoints per client IP.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	Burst             int
	IdleTTL           time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
		Issuer:            v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Applications = ApplicationsConfig{
		StrictTransitions: v.GetBool("APPLICATION_STRICT_TRANSITIONS"),
	}

	cfg.Notifications = NotificationsConfig{
		EmailEnabled:      v.GetBool("NOTIFICATION_EMAIL_ENABLED"),
		WorkerConcurrency: v.GetInt("NOTIFICATION_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("NOTIFICATION_WORKER_RETRIES"),
		RetryDelay:        parseDuration(v.GetString("NOTIFICATION_RETRY_DELAY"), 5*time.Second),
		BufferSize:        v.GetInt("NOTIFICATION_QUEUE_BUFFER"),
	}

	cfg.Mail = MailConfig{
		Provider:  strings.ToLower(v.GetString("MAIL_PROVIDER")),
		AWSRegion: v.GetString("AWS_REGION"),
		FromEmail: v.GetString("MAIL_FROM"),
		Timeout:   parseDuration(v.GetString("MAIL_TIMEOUT"), 10*time.Second),
	}

	cfg.Reviews = ReviewsConfig{
		CacheEnabled: v.GetBool("REVIEW_CACHE_ENABLED"),
		CacheTTL:     parseDuration(v.GetString("REVIEW_CACHE_TTL"), 10*time.Minute),
	}

	maxDocSize := v.GetInt64("VERIFICATION_MAX_FILE_SIZE")
	if maxDocSize <= 0 {
		maxDocSize = 10 * 1024 * 1024
	}
	cfg.Verifications = VerificationsConfig{
		StorageDir:       v.GetString("VERIFICATION_STORAGE_DIR"),
		SignedURLSecret:  v.GetString("VERIFICATION_SIGNED_URL_SECRET"),
		SignedURLTTL:     parseDuration(v.GetString("VERIFICATION_SIGNED_URL_TTL"), 30*time.Minute),
		MaxFileSizeBytes: maxDocSize,
		AllowedMIMEs:     splitAndTrim(v.GetString("VERIFICATION_ALLOWED_MIME_TYPES")),
	}

	cfg.RateLimit = RateLimitConfig{
		Enabled:           v.GetBool("AUTH_RATE_LIMIT_ENABLED"),
		RequestsPerSecond: v.GetFloat64("AUTH_RATE_LIMIT_RPS"),
		Burst:             v.GetInt("AUTH_RATE_LIMIT_BURST"),
		IdleTTL:           parseDuration(v.GetString("AUTH_RATE_LIMIT_IDLE_TTL"), 10*time.Minute),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "dmatch")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", true)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")
	v.SetDefault("JWT_ISSUER", "dmatch-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("APPLICATION_STRICT_TRANSITIONS", true)

	v.SetDefault("NOTIFICATION_EMAIL_ENABLED", false)
	v.SetDefault("NOTIFICATION_WORKER_CONCURRENCY", 2)
	v.SetDefault("NOTIFICATION_WORKER_RETRIES", 3)
	v.SetDefault("NOTIFICATION_RETRY_DELAY", "5s")
	v.SetDefault("NOTIFICATION_QUEUE_BUFFER", 64)

	v.SetDefault("MAIL_PROVIDER", "log")
	v.SetDefault("AWS_REGION", "ap-northeast-2")
	v.SetDefault("MAIL_FROM", "no-reply@dmatch.local")
	v.SetDefault("MAIL_TIMEOUT", "10s")

	v.SetDefault("REVIEW_CACHE_ENABLED", true)
	v.SetDefault("REVIEW_CACHE_TTL", "10m")

	v.SetDefault("VERIFICATION_STORAGE_DIR", "./verifications")
	v.SetDefault("VERIFICATION_SIGNED_URL_SECRET", "dev_verification_secret")
	v.SetDefault("VERIFICATION_SIGNED_URL_TTL", "30m")
	v.SetDefault("VERIFICATION_MAX_FILE_SIZE", 10*1024*1024)
	v.SetDefault("VERIFICATION_ALLOWED_MIME_TYPES", "application/pdf,image/jpeg,image/png")

	v.SetDefault("AUTH_RATE_LIMIT_ENABLED", true)
	v.SetDefault("AUTH_RATE_LIMIT_RPS", 1)
	v.SetDefault("AUTH_RATE_LIMIT_BURST", 5)
	v.SetDefault("AUTH_RATE_LIMIT_IDLE_TTL", "10m")
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
