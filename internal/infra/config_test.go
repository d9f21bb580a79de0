package infra

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("PRETIX_TOKEN", "tok")
	t.Setenv("CERTIFICATE_ITEM_IDS", "1,2,3")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, LedgerFile, cfg.LedgerBackend)
	assert.Equal(t, 5*time.Minute, cfg.PretixRefreshInterval)
	assert.Equal(t, 10*time.Second, cfg.IntegrationTimeout)
	assert.Equal(t, []int64{1, 2, 3}, cfg.CertificateItems)
	assert.Equal(t, "tok", cfg.PretixToken)
	assert.Equal(t, 5, cfg.BreakerFailures)
	assert.Equal(t, "confops-audit-consumer", cfg.KafkaGroupID)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			LedgerBackend:      LedgerFile,
			IntegrationTimeout: time.Second,
			JWTSecret:          strings.Repeat("s", 32),
			InteractionsSecret: "shh",
		}
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("unknown ledger backend", func(t *testing.T) {
		c := valid()
		c.LedgerBackend = "sqlite"
		assert.ErrorContains(t, c.Validate(), "LEDGER_BACKEND")
	})

	t.Run("insecure JWT default rejected", func(t *testing.T) {
		c := valid()
		c.JWTSecret = "change-me-in-production"
		assert.ErrorContains(t, c.Validate(), "JWT_SECRET")
	})

	t.Run("short JWT secret rejected", func(t *testing.T) {
		c := valid()
		c.JWTSecret = "short"
		assert.ErrorContains(t, c.Validate(), "too short")
	})

	t.Run("missing interactions secret rejected", func(t *testing.T) {
		c := valid()
		c.InteractionsSecret = ""
		assert.ErrorContains(t, c.Validate(), "INTERACTIONS_SECRET")
	})

	t.Run("insecure defaults allowed in dev", func(t *testing.T) {
		c := valid()
		c.JWTSecret = "change-me-in-production"
		c.InteractionsSecret = ""
		c.AllowInsecureDefaults = true
		assert.NoError(t, c.Validate())
	})

	t.Run("ledger backend checked even in dev", func(t *testing.T) {
		c := valid()
		c.AllowInsecureDefaults = true
		c.LedgerBackend = ""
		assert.Error(t, c.Validate())
	})
}

func TestConfig_DSN(t *testing.T) {
	c := &Config{PGUser: "u", PGPassword: "p", PGHost: "h", PGPort: 5432, PGDatabase: "d"}
	assert.Equal(t, "postgres://u:p@h:5432/d?sslmode=disable", c.DSN())

	c.DatabaseURL = "postgres://override"
	assert.Equal(t, "postgres://override", c.DSN())
}

func TestConfig_PretixEventURL(t *testing.T) {
	c := &Config{PretixBaseURL: "https://pretix.eu/api/v1/", PretixOrganizer: "pyladiescon", PretixEvent: "2024"}
	assert.Equal(t, "https://pretix.eu/api/v1/organizers/pyladiescon/events/2024", c.PretixEventURL())
}

func TestConfig_PretalxEventURL(t *testing.T) {
	c := &Config{PretalxBaseURL: "https://pretalx.com/api/events/", PretalxEvent: "pyladiescon-2024"}
	assert.Equal(t, "https://pretalx.com/api/events/pyladiescon-2024", c.PretalxEventURL())
}

func TestConfig_SlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, (&Config{LogLevel: "DEBUG"}).SlogLevel())
	assert.Equal(t, slog.LevelWarn, (&Config{LogLevel: "warning"}).SlogLevel())
	assert.Equal(t, slog.LevelError, (&Config{LogLevel: "error"}).SlogLevel())
	assert.Equal(t, slog.LevelInfo, (&Config{LogLevel: "nonsense"}).SlogLevel())
}
