package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"

	"dailylog-bot/internal/apperr"
)

type StoreBackend string

const (
	BackendDrive StoreBackend = "drive"
	BackendLocal StoreBackend = "local"
)

type Config struct {
	TelegramBotToken string  `env:"TELEGRAM_BOT_TOKEN,required"`
	Superusers       []int64 `env:"SUPERUSERS" envSeparator:":"`

	// Remote store
	StoreBackend          StoreBackend `env:"STORE_BACKEND" envDefault:"drive"`
	GoogleCredentialsJSON string       `env:"GOOGLE_CREDENTIALS_JSON"`
	GoogleRefreshToken    string       `env:"GOOGLE_REFRESH_TOKEN"`
	DriveFolderID         string       `env:"DRIVE_FOLDER_ID"`
	LocalStoreDir         string       `env:"LOCAL_STORE_DIR" envDefault:"data/remote"`
	AllowlistName         string       `env:"ALLOWLIST_NAME" envDefault:"allowlist.json"`

	// Scratch copies of remote files
	ScratchDir string `env:"SCRATCH_DIR"`

	// Conversation
	Timezone     string `env:"TIMEZONE" envDefault:"UTC"`
	ConfirmToken string `env:"CONFIRM_TOKEN" envDefault:"ДА"`

	// Push delivery; polling is used when WebhookURL is empty
	WebhookURL string `env:"WEBHOOK_URL"`
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`

	ReportCron string `env:"REPORT_CRON" envDefault:"0 21 * * *"`
	// Daily audit journals; empty disables the journal
	AuditDir string `env:"AUDIT_DIR" envDefault:"logs/audit"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	Env      string `env:"ENV"`
}

// New parses the environment and validates credentials. Any error is an
// apperr.ErrConfiguration and must stop the process.
func New() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, apperr.Configuration("parse env: %v", err)
	}
	if cfg.ScratchDir == "" {
		cfg.ScratchDir = filepath.Join(os.TempDir(), "dailylog-scratch")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.TelegramBotToken) == "" {
		return apperr.Configuration("TELEGRAM_BOT_TOKEN is empty")
	}
	switch c.StoreBackend {
	case BackendDrive:
		if c.GoogleCredentialsJSON == "" {
			return apperr.Configuration("GOOGLE_CREDENTIALS_JSON is required for the drive backend")
		}
		if c.DriveFolderID == "" {
			return apperr.Configuration("DRIVE_FOLDER_ID is required for the drive backend")
		}
	case BackendLocal:
		if c.LocalStoreDir == "" {
			return apperr.Configuration("LOCAL_STORE_DIR is required for the local backend")
		}
	default:
		return apperr.Configuration("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if _, err := c.Location(); err != nil {
		return apperr.Configuration("TIMEZONE %q: %v", c.Timezone, err)
	}
	if strings.TrimSpace(c.ConfirmToken) == "" {
		return apperr.Configuration("CONFIRM_TOKEN is empty")
	}
	return nil
}

// Location resolves Timezone; daily keys and timestamps use it.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}
