package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds runtime configuration loaded from environment variables.
type Config struct {
	Port        string
	DatabaseURL string
	JWTSecret   string
	JWTIssuer   string
	TokenTTL    time.Duration
	CorsOrigins []string

	MediaStoragePath string
	MetricsDiskPath  string

	BackupDir       string
	BackupSchedule  string
	BackupRetention time.Duration

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	MailFrom     string

	GoogleClientID            string
	GoogleJWKSURL             string
	GoogleCalendarCredentials string
	GoogleCalendarID          string
	GoogleHolidayCalendarID   string

	RedisAddr     string
	RedisPassword string

	AllowAdminSignup       bool
	TrustProxyHeaders      bool
	DefaultStudentPassword string
	LoginAttemptLimit      int
	LoginAttemptWindow     time.Duration

	LogDir           string
	LogRetentionDays int
}

func Load() Config {
	return Config{
		Port:        envOr("PORT", "8080"),
		DatabaseURL: mustEnv("DATABASE_URL"),
		JWTSecret:   mustEnv("JWT_SECRET"),
		JWTIssuer:   envOr("JWT_ISSUER", "dormsync"),
		TokenTTL:    time.Duration(envOrInt("TOKEN_TTL_HOURS", 30*24)) * time.Hour,
		CorsOrigins: parseCSV(envOr("CORS_ORIGINS", "")),

		MediaStoragePath: envOr("MEDIA_STORAGE_PATH", "storage/media"),
		MetricsDiskPath:  envOr("METRICS_DISK_PATH", "storage/media"),

		BackupDir:       envOr("BACKUP_DIR", "storage/backups"),
		BackupSchedule:  envOr("BACKUP_SCHEDULE", "*/10 * * * *"),
		BackupRetention: time.Duration(envOrInt("BACKUP_RETENTION_DAYS", 7)) * 24 * time.Hour,

		SMTPHost:     envOr("SMTP_HOST", ""),
		SMTPPort:     envOrInt("SMTP_PORT", 587),
		SMTPUsername: envOr("SMTP_USERNAME", ""),
		SMTPPassword: envOr("SMTP_PASSWORD", ""),
		MailFrom:     envOr("MAIL_FROM", "DormSync <no-reply@dormsync.local>"),

		GoogleClientID:            envOr("GOOGLE_CLIENT_ID", ""),
		GoogleJWKSURL:             envOr("GOOGLE_JWKS_URL", "https://www.googleapis.com/oauth2/v3/certs"),
		GoogleCalendarCredentials: envOr("GOOGLE_CALENDAR_CREDENTIALS", ""),
		GoogleCalendarID:          envOr("GOOGLE_CALENDAR_ID", "primary"),
		GoogleHolidayCalendarID:   envOr("GOOGLE_HOLIDAY_CALENDAR_ID", ""),

		RedisAddr:     envOr("REDIS_ADDR", ""),
		RedisPassword: envOr("REDIS_PASSWORD", ""),

		AllowAdminSignup:       envOrBool("ALLOW_ADMIN_SIGNUP", true),
		TrustProxyHeaders:      envOrBool("TRUST_PROXY_HEADERS", false),
		DefaultStudentPassword: envOr("DEFAULT_STUDENT_PASSWORD", ""),
		LoginAttemptLimit:      envOrInt("LOGIN_ATTEMPT_LIMIT", 10),
		LoginAttemptWindow:     time.Duration(envOrInt("LOGIN_ATTEMPT_WINDOW_MINUTES", 15)) * time.Minute,

		LogDir:           envOr("LOG_DIR", "storage/logs"),
		LogRetentionDays: envOrInt("LOG_RETENTION_DAYS", 7),
	}
}

func (c Config) SMTPEnabled() bool {
	return c.SMTPHost != ""
}

func (c Config) CalendarEnabled() bool {
	return c.GoogleCalendarCredentials != ""
}

func mustEnv(key string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		panic("missing env var: " + key)
	}
	return value
}

func envOr(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envOrBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		value := strings.TrimSpace(part)
		if value != "" {
			items = append(items, value)
		}
	}
	return items
}
