package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/AlibekovAA/lingo-cms/backend/internal/common/constants"
)

const (
	AdapterPostgres = "postgres"
	AdapterSQLite   = "sqlite"
)

var (
	ErrInvalidSecret  = fmt.Errorf("PAYLOAD_SECRET must be at least %d bytes", constants.SecretMinLength)
	ErrInvalidAdapter = errors.New("DB_ADAPTER must be one of postgres, sqlite")
	ErrMissingDSN     = errors.New("missing database connection string")
)

type SMTPConfig struct {
	Host        string `env:"SMTP_HOST"`
	Port        int    `env:"SMTP_PORT" envDefault:"587"`
	User        string `env:"SMTP_USER"`
	Password    string `env:"SMTP_PASS"`
	FromAddress string `env:"SMTP_FROM_ADDRESS" envDefault:"info@lmail.lingo-plus.ir"`
	FromName    string `env:"SMTP_FROM_NAME" envDefault:"lingo+"`
}

func (c SMTPConfig) Enabled() bool {
	return strings.TrimSpace(c.Host) != ""
}

type SeedConfig struct {
	Email    string        `env:"SEED_EMAIL" envDefault:"dev@payloadcms.com"`
	Password string        `env:"SEED_PASSWORD" envDefault:"test"`
	Timeout  time.Duration `env:"SEED_TIMEOUT" envDefault:"30s"`
}

// CMSConfig is built once at startup and handed to every collaborator that
// needs it; nothing else reads the process environment.
type CMSConfig struct {
	Secret          string        `env:"PAYLOAD_SECRET,required,notEmpty"`
	Environment     string        `env:"environment"`
	HTTPPort        string        `env:"CMS_HTTP_PORT" envDefault:"3000"`
	ServerURL       string        `env:"SERVER_URL" envDefault:"http://localhost:3000"`
	DBAdapter       string        `env:"DB_ADAPTER" envDefault:"postgres"`
	PostgresURI     string        `env:"POSTGRES_URI"`
	SQLitePath      string        `env:"SQLITE_PATH" envDefault:"lingo-cms.db"`
	UploadDir       string        `env:"UPLOAD_DIR" envDefault:"media"`
	CollectionsFile string        `env:"COLLECTIONS_FILE"`
	LogDir          string        `env:"LOG_DIR"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	RequestTimeout  time.Duration `env:"CMS_REQUEST_TIMEOUT" envDefault:"5s"`
	TokenTTL        time.Duration `env:"CMS_TOKEN_TTL" envDefault:"2h"`
	SMTP            SMTPConfig
	Seed            SeedConfig
}

func (c CMSConfig) IsProduction() bool {
	return c.Environment == "production"
}

func Load() (CMSConfig, error) {
	return LoadWithOptions(env.Options{})
}

// LoadWithOptions parses with explicit env options so tests can supply an
// environment map instead of mutating the process.
func LoadWithOptions(opts env.Options) (CMSConfig, error) {
	cfg, err := env.ParseAsWithOptions[CMSConfig](opts)
	if err != nil {
		return CMSConfig{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return CMSConfig{}, err
	}

	return cfg, nil
}

func (c CMSConfig) validate() error {
	if len(c.Secret) < constants.SecretMinLength {
		return fmt.Errorf("%w: got %d bytes", ErrInvalidSecret, len(c.Secret))
	}

	switch c.DBAdapter {
	case AdapterPostgres:
		if strings.TrimSpace(c.PostgresURI) == "" {
			return fmt.Errorf("%w: POSTGRES_URI", ErrMissingDSN)
		}
	case AdapterSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("%w: SQLITE_PATH", ErrMissingDSN)
		}
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidAdapter, c.DBAdapter)
	}

	return nil
}
