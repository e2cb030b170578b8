package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/dormsync")
	t.Setenv("JWT_SECRET", "secret")

	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "dormsync", cfg.JWTIssuer)
	assert.Equal(t, 30*24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, "*/10 * * * *", cfg.BackupSchedule)
	assert.Equal(t, 7*24*time.Hour, cfg.BackupRetention)
	assert.True(t, cfg.AllowAdminSignup)
	assert.False(t, cfg.TrustProxyHeaders)
	assert.Equal(t, 10, cfg.LoginAttemptLimit)
	assert.Equal(t, 15*time.Minute, cfg.LoginAttemptWindow)
	assert.False(t, cfg.SMTPEnabled())
	assert.False(t, cfg.CalendarEnabled())
	assert.Nil(t, cfg.CorsOrigins)
	assert.Equal(t, "storage/logs", cfg.LogDir)
	assert.Equal(t, 7, cfg.LogRetentionDays)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/dormsync")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("PORT", "9090")
	t.Setenv("TOKEN_TTL_HOURS", "12")
	t.Setenv("CORS_ORIGINS", "http://a.test, ,http://b.test")
	t.Setenv("ALLOW_ADMIN_SIGNUP", "false")
	t.Setenv("TRUST_PROXY_HEADERS", "true")
	t.Setenv("SMTP_HOST", "smtp.test")
	t.Setenv("LOGIN_ATTEMPT_LIMIT", "not-a-number")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 12*time.Hour, cfg.TokenTTL)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CorsOrigins)
	assert.False(t, cfg.AllowAdminSignup)
	assert.True(t, cfg.TrustProxyHeaders)
	assert.True(t, cfg.SMTPEnabled())
	assert.Equal(t, 10, cfg.LoginAttemptLimit)
}

func TestLoadPanicsWithoutSecret(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/dormsync")
	t.Setenv("JWT_SECRET", "")

	require.PanicsWithValue(t, "missing env var: JWT_SECRET", func() { Load() })
}
