package infra

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Ledger backends.
const (
	LedgerFile     = "file"
	LedgerPostgres = "postgres"
	LedgerRedis    = "redis"
)

// Config holds all application configuration parsed from environment variables.
// It is built once in main and passed by pointer into each constructor.
type Config struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Ledgers
	LedgerBackend          string `env:"LEDGER_BACKEND" envDefault:"file"`
	RegistrationLedgerPath string `env:"REGISTRATION_LEDGER_PATH" envDefault:"data/registered_log.txt"`
	CertificateLedgerPath  string `env:"CERTIFICATE_LEDGER_PATH" envDefault:"data/email_sent_certificates.txt"`

	// Database
	DatabaseURL string `env:"DATABASE_URL"`
	PGHost      string `env:"PGHOST" envDefault:"localhost"`
	PGPort      int    `env:"PGPORT" envDefault:"5432"`
	PGUser      string `env:"PGUSER" envDefault:"confops"`
	PGPassword  string `env:"PGPASSWORD" envDefault:"confops"`
	PGDatabase  string `env:"PGDATABASE" envDefault:"confops"`

	// Redis
	RedisURL       string `env:"REDIS_URL" envDefault:"redis://localhost:6379"`
	RedisKeyPrefix string `env:"REDIS_KEY_PREFIX" envDefault:"confops:"`

	// Ticketing platform
	PretixBaseURL         string        `env:"PRETIX_BASE_URL" envDefault:"https://pretix.eu/api/v1/"`
	PretixOrganizer       string        `env:"PRETIX_ORGANIZER" envDefault:"pyladiescon"`
	PretixEvent           string        `env:"PRETIX_EVENT" envDefault:"2024"`
	PretixToken           string        `env:"PRETIX_TOKEN"`
	PretixRefreshInterval time.Duration `env:"PRETIX_REFRESH_INTERVAL" envDefault:"5m"`

	// Talk-submission platform
	PretalxBaseURL string `env:"PRETALX_API_BASE_URL" envDefault:"https://pretalx.com/api/events/"`
	PretalxEvent   string `env:"PRETALX_API_EVENT" envDefault:"pyladiescon-2024"`
	PretalxToken   string `env:"PRETALX_API_TOKEN"`

	// Chat platform
	DiscordAPIBaseURL  string `env:"DISCORD_API_BASE_URL" envDefault:"https://discord.com/api/v10"`
	DiscordToken       string `env:"DISCORD_BOT_TOKEN"`
	DiscordGuildID     string `env:"DISCORD_GUILD_ID"`
	RegLogChannelID    string `env:"REG_LOG_CHANNEL_ID"`
	RegHelpChannelID   string `env:"REG_HELP_CHANNEL_ID"`
	LogChannelID       string `env:"LOG_CHANNEL_ID"`
	DonationsChannelID string `env:"DONATIONS_CHANNEL_ID"`
	VolunteerRoleID    string `env:"VOLUNTEER_ROLE_ID"`
	RoleMappingPath    string `env:"ROLE_MAPPING_PATH" envDefault:"config/roles.yaml"`

	// Interaction boundary
	HTTPPort           int    `env:"HTTP_PORT" envDefault:"3100"`
	InteractionsSecret string `env:"INTERACTIONS_SECRET"`

	// Registration attempt limits per chat user
	RegistrationAttempts int           `env:"REGISTRATION_ATTEMPTS" envDefault:"5"`
	RegistrationWindow   time.Duration `env:"REGISTRATION_WINDOW" envDefault:"10m"`

	// Donations
	DonationsEnabled  bool          `env:"DONATIONS_ENABLED" envDefault:"false"`
	DonationsInterval time.Duration `env:"DONATIONS_INTERVAL" envDefault:"15m"`
	DonationsURL      string        `env:"DONATIONS_URL" envDefault:"https://pretix.eu/pyladiescon/2024/"`
	DonationsCurrency string        `env:"DONATIONS_CURRENCY" envDefault:"USD"`

	// Trivia game
	GameEnabled          bool          `env:"GAME_ENABLED" envDefault:"false"`
	GameChaptersPath     string        `env:"GAME_CHAPTERS_PATH" envDefault:"data/chapters.csv"`
	GameScoresPath       string        `env:"GAME_SCORES_PATH" envDefault:"data/users.json"`
	GameBackupDir        string        `env:"GAME_BACKUP_DIR" envDefault:"data/bak"`
	GameRankingChannelID string        `env:"GAME_RANKING_CHANNEL_ID"`
	GameRankingInterval  time.Duration `env:"GAME_RANKING_INTERVAL" envDefault:"5m"`
	GameRankingSize      int           `env:"GAME_RANKING_SIZE" envDefault:"10"`
	GameBackupInterval   time.Duration `env:"GAME_BACKUP_INTERVAL" envDefault:"10m"`
	GameQuestionTTL      time.Duration `env:"GAME_QUESTION_TTL" envDefault:"8s"`

	// Mail
	GmailBaseURL     string  `env:"GMAIL_BASE_URL" envDefault:"https://gmail.googleapis.com"`
	GmailAccessToken string  `env:"GMAIL_ACCESS_TOKEN"`
	SenderName       string  `env:"SENDER_NAME" envDefault:"PyLadiesCon Organizers"`
	SenderEmail      string  `env:"SENDER_EMAIL" envDefault:"pyladiescon@pyladies.com"`
	CertificateDir   string  `env:"CERTIFICATE_DIR" envDefault:"certificates"`
	CertificateItems []int64 `env:"CERTIFICATE_ITEM_IDS" envSeparator:"," envDefault:"609703,641803,641804"`
	ConferenceName   string  `env:"CONFERENCE_NAME" envDefault:"PyLadiesCon 2024"`
	ConferenceDates  string  `env:"CONFERENCE_DATES" envDefault:"December 6th-December 8th, 2024"`

	// Operator JWT
	JWTSecret         string        `env:"JWT_SECRET" envDefault:"change-me-in-production"`
	JWTOperatorExpiry time.Duration `env:"JWT_OPERATOR_EXPIRY" envDefault:"8h"`

	// Kafka audit stream
	KafkaBrokers    string `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	KafkaEnabled    bool   `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaAuditTopic string `env:"KAFKA_AUDIT_TOPIC" envDefault:"confops.audit"`
	KafkaGroupID    string `env:"KAFKA_GROUP_ID" envDefault:"confops-audit-consumer"`

	// Upstream call limits
	HTTPTimeout        time.Duration `env:"HTTP_TIMEOUT" envDefault:"10s"`
	IntegrationTimeout time.Duration `env:"INTEGRATION_TIMEOUT" envDefault:"10s"`
	BreakerFailures    int           `env:"BREAKER_FAILURES" envDefault:"5"`
	BreakerReset       time.Duration `env:"BREAKER_RESET" envDefault:"30s"`

	// Dev
	AllowInsecureDefaults bool `env:"ALLOW_INSECURE_DEFAULTS" envDefault:"false"`
}

// LoadConfig parses environment variables into a Config struct.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration that must hold regardless of environment, then
// insecure configuration that must not run in production.
// Set ALLOW_INSECURE_DEFAULTS=true to bypass the latter (local dev only).
func (c *Config) Validate() error {
	switch c.LedgerBackend {
	case LedgerFile, LedgerPostgres, LedgerRedis:
	default:
		return fmt.Errorf("LEDGER_BACKEND must be one of file, postgres, redis; got %q", c.LedgerBackend)
	}
	if c.IntegrationTimeout <= 0 {
		return fmt.Errorf("INTEGRATION_TIMEOUT must be positive")
	}

	if c.AllowInsecureDefaults {
		return nil
	}
	if c.JWTSecret == "change-me-in-production" {
		return fmt.Errorf("JWT_SECRET is set to the insecure default; set a strong secret or set ALLOW_INSECURE_DEFAULTS=true for local dev")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET is too short (%d chars); minimum 32 characters required", len(c.JWTSecret))
	}
	if c.InteractionsSecret == "" {
		return fmt.Errorf("INTERACTIONS_SECRET is required; set ALLOW_INSECURE_DEFAULTS=true to accept unsigned interactions in local dev")
	}
	return nil
}

// DSN returns the PostgreSQL connection string, preferring DATABASE_URL if set.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.PGUser, c.PGPassword, c.PGHost, c.PGPort, c.PGDatabase)
}

// PretixEventURL returns the base URL of the configured event's API resources.
func (c *Config) PretixEventURL() string {
	return fmt.Sprintf("%s/organizers/%s/events/%s",
		strings.TrimRight(c.PretixBaseURL, "/"), c.PretixOrganizer, c.PretixEvent)
}

// PretalxEventURL returns the base URL of the configured talk-submission event.
func (c *Config) PretalxEventURL() string {
	return strings.TrimRight(c.PretalxBaseURL, "/") + "/" + c.PretalxEvent
}

// SlogLevel maps LOG_LEVEL to a slog level. Unknown values fall back to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
