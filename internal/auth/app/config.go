package app

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	_ "github.com/joho/godotenv/autoload"
)

// Config is populated from the environment (and a local .env in dev).
type Config struct {
	Env  string `env:"WARDEN_ENV" envDefault:"dev"`
	Port int    `env:"WARDEN_PORT" envDefault:"8080"`

	DatabaseFile string `env:"WARDEN_DATABASE_FILE" envDefault:"warden.db"`

	// SigningSecret signs all JWTs; at least 32 bytes.
	SigningSecret string `env:"WARDEN_SIGNING_SECRET,required"`

	// EncryptionKey protects stored TOTP seeds; exactly 32 bytes.
	EncryptionKey string `env:"WARDEN_ENCRYPTION_KEY,required"`

	TokenIssuer   string   `env:"WARDEN_TOKEN_ISSUER" envDefault:"warden"`
	TokenAudience []string `env:"WARDEN_TOKEN_AUDIENCE" envDefault:"warden-api"`

	AccessTTL     time.Duration `env:"WARDEN_ACCESS_TTL" envDefault:"15m"`
	RefreshTTL    time.Duration `env:"WARDEN_REFRESH_TTL" envDefault:"720h"`
	SweepInterval time.Duration `env:"WARDEN_SWEEP_INTERVAL" envDefault:"1h"`
	ShutdownGrace time.Duration `env:"WARDEN_SHUTDOWN_GRACE" envDefault:"10s"`

	LogLevel  string `env:"WARDEN_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"WARDEN_LOG_FORMAT" envDefault:"json"`
}

// LoadConfig parses and sanity-checks the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	if len(cfg.SigningSecret) < 32 {
		return Config{}, fmt.Errorf("WARDEN_SIGNING_SECRET must be at least 32 bytes")
	}
	if len(cfg.EncryptionKey) != 32 {
		return Config{}, fmt.Errorf("WARDEN_ENCRYPTION_KEY must be exactly 32 bytes")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return Config{}, fmt.Errorf("token lifetimes must be positive")
	}

	return cfg, nil
}
