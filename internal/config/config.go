package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	applog "moneymate/internal/log"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config is the server configuration, read from the environment.
type Config struct {
	Port          string `env:"PORT" env-default:"8080" env-description:"HTTP listen port"`
	DBPath        string `env:"DB_PATH" env-default:"moneymate.db" env-description:"SQLite database file"`
	SessionSecret string `env:"SESSION_SECRET" env-description:"Secret used to sign session cookies"`
	SecureCookie  bool   `env:"SECURE_COOKIE" env-default:"false" env-description:"Mark cookies Secure (HTTPS only)"`

	LogLevel  string `env:"LOG_LEVEL" env-default:"info" env-description:"debug, info, warn or error"`
	LogFormat string `env:"LOG_FORMAT" env-default:"text" env-description:"text or json"`

	AdminEmail    string `env:"ADMIN_EMAIL" env-description:"Bootstrap user created when no users exist"`
	AdminPassword string `env:"ADMIN_PASSWORD" env-description:"Password of the bootstrap user"`

	SessionSweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" env-default:"1h" env-description:"How often expired sessions are removed"`
}

// MinSecretLength is the shortest accepted SESSION_SECRET.
const MinSecretLength = 16

// Load reads an optional .env file from envFile (if non-empty) and then the process environment.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	return &cfg, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var problems []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		problems = append(problems, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if strings.TrimSpace(c.DBPath) == "" {
		problems = append(problems, "database path cannot be empty")
	}

	if len(c.SessionSecret) < MinSecretLength {
		problems = append(problems, fmt.Sprintf("SESSION_SECRET must be at least %d characters", MinSecretLength))
	}

	if _, err := applog.ParseLevel(c.LogLevel); err != nil {
		problems = append(problems, err.Error())
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		problems = append(problems, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}

	if (c.AdminEmail == "") != (c.AdminPassword == "") {
		problems = append(problems, "ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}

	if c.SessionSweepInterval < time.Minute {
		problems = append(problems, fmt.Sprintf("invalid session sweep interval %v: must be at least 1 minute", c.SessionSweepInterval))
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

// Logger builds the application logger described by the configuration.
func (c *Config) Logger() *applog.Logger {
	cfg := applog.DefaultConfig()
	if level, err := applog.ParseLevel(c.LogLevel); err == nil {
		cfg.Level = level
	}
	cfg.Format = c.LogFormat
	return applog.New(cfg)
}
