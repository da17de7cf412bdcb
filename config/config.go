// Package config loads the application configuration from a YAML file and
// AUTOACCEPT_* environment variables.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "AUTOACCEPT_"

// SysConfig system configuration
type SysConfig struct {
	Appid    string `yaml:"appid"`
	Location string `yaml:"location"`
	Workdir  string `yaml:"workdir"`
	Debug    bool   `yaml:"debug"`
}

// LogConfig logging configuration
type LogConfig struct {
	Mode       string `yaml:"mode"` // development | production
	FileEnable bool   `yaml:"file_enable"`
	Filename   string `yaml:"filename"`
}

// TelegramConfig bot configuration
type TelegramConfig struct {
	Token        string        `yaml:"token"`
	Owners       []int64       `yaml:"owners"`
	PollTimeout  time.Duration `yaml:"poll_timeout"`
	PairingDelay time.Duration `yaml:"pairing_delay"`
}

// WhatsAppConfig session and auto-accept configuration
type WhatsAppConfig struct {
	SessionPath          string        `yaml:"session_path"`
	SessionPrefix        string        `yaml:"session_prefix"`
	ReconnectDelay       time.Duration `yaml:"reconnect_delay"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	QRCooldown           time.Duration `yaml:"qr_cooldown"`
	PairingTimeout       time.Duration `yaml:"pairing_timeout"`
	PairingRetries       int           `yaml:"pairing_retries"`
	LeaveDelay           time.Duration `yaml:"leave_delay"`
	WorkerPoolSize       int           `yaml:"worker_pool_size"`
	PrintQR              bool          `yaml:"print_qr"`
}

// WebConfig admin API configuration
type WebConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	// APIKey is the bearer key every /api request must carry.
	APIKey string `yaml:"api_key"`
}

type AppConfig struct {
	System   SysConfig      `yaml:"system"`
	Logger   LogConfig      `yaml:"logger"`
	Telegram TelegramConfig `yaml:"telegram"`
	WhatsApp WhatsAppConfig `yaml:"whatsapp"`
	Web      WebConfig      `yaml:"web"`
}

// Default returns the built-in configuration.
func Default() *AppConfig {
	return &AppConfig{
		System: SysConfig{
			Appid:    "AutoAccept",
			Location: "Asia/Jakarta",
			Workdir:  "./data",
		},
		Logger: LogConfig{
			Mode:     "development",
			Filename: "./data/logs/autoaccept.log",
		},
		Telegram: TelegramConfig{
			PollTimeout:  10 * time.Second,
			PairingDelay: 3 * time.Second,
		},
		WhatsApp: WhatsAppConfig{
			SessionPath:          "./sessions",
			SessionPrefix:        "wa_",
			ReconnectDelay:       5 * time.Second,
			MaxReconnectAttempts: 3,
			QRCooldown:           30 * time.Second,
			PairingTimeout:       60 * time.Second,
			PairingRetries:       3,
			LeaveDelay:           2 * time.Second,
			WorkerPoolSize:       64,
		},
		Web: WebConfig{
			Host: "127.0.0.1",
			Port: 1818,
		},
	}
}

// Load reads file on top of the defaults and applies environment overrides.
// An empty file name skips the file.
func Load(file string) (*AppConfig, error) {
	cfg := Default()
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, errors.Wrapf(err, "read config %s", file)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config %s", file)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports configuration that makes the service unusable.
func (c *AppConfig) Validate() error {
	if c.Telegram.Token == "" {
		return errors.New("telegram.token is required")
	}
	if len(c.Telegram.Owners) == 0 {
		return errors.New("telegram.owners must list at least one user id")
	}
	if c.WhatsApp.SessionPath == "" {
		return errors.New("whatsapp.session_path is required")
	}
	if c.Web.Enabled && c.Web.APIKey == "" {
		return errors.New("web.api_key is required when the admin api is enabled")
	}
	return nil
}

// IsOwner reports whether the Telegram user may control the bot.
func (c *AppConfig) IsOwner(userID int64) bool {
	for _, id := range c.Telegram.Owners {
		if id == userID {
			return true
		}
	}
	return false
}

func (c *AppConfig) GetLogDir() string {
	return filepath.Join(c.System.Workdir, "logs")
}

func (c *AppConfig) applyEnv() error {
	setEnvValue("SYSTEM_LOCATION", &c.System.Location)
	setEnvValue("SYSTEM_WORKDIR", &c.System.Workdir)
	setEnvBoolValue("SYSTEM_DEBUG", &c.System.Debug)

	setEnvValue("LOGGER_MODE", &c.Logger.Mode)
	setEnvBoolValue("LOGGER_FILE_ENABLE", &c.Logger.FileEnable)
	setEnvValue("LOGGER_FILENAME", &c.Logger.Filename)

	setEnvValue("TELEGRAM_TOKEN", &c.Telegram.Token)
	if v, ok := lookupEnv("TELEGRAM_OWNERS"); ok {
		owners, err := parseOwners(v)
		if err != nil {
			return err
		}
		c.Telegram.Owners = owners
	}
	setEnvDurationValue("TELEGRAM_PAIRING_DELAY", &c.Telegram.PairingDelay)

	setEnvValue("WHATSAPP_SESSION_PATH", &c.WhatsApp.SessionPath)
	setEnvValue("WHATSAPP_SESSION_PREFIX", &c.WhatsApp.SessionPrefix)
	setEnvDurationValue("WHATSAPP_RECONNECT_DELAY", &c.WhatsApp.ReconnectDelay)
	setEnvIntValue("WHATSAPP_MAX_RECONNECT_ATTEMPTS", &c.WhatsApp.MaxReconnectAttempts)
	setEnvDurationValue("WHATSAPP_QR_COOLDOWN", &c.WhatsApp.QRCooldown)
	setEnvDurationValue("WHATSAPP_PAIRING_TIMEOUT", &c.WhatsApp.PairingTimeout)
	setEnvIntValue("WHATSAPP_PAIRING_RETRIES", &c.WhatsApp.PairingRetries)
	setEnvDurationValue("WHATSAPP_LEAVE_DELAY", &c.WhatsApp.LeaveDelay)
	setEnvIntValue("WHATSAPP_WORKER_POOL_SIZE", &c.WhatsApp.WorkerPoolSize)
	setEnvBoolValue("WHATSAPP_PRINT_QR", &c.WhatsApp.PrintQR)

	setEnvBoolValue("WEB_ENABLED", &c.Web.Enabled)
	setEnvValue("WEB_HOST", &c.Web.Host)
	setEnvIntValue("WEB_PORT", &c.Web.Port)
	setEnvValue("WEB_API_KEY", &c.Web.APIKey)
	return nil
}

// parseOwners accepts a comma separated list of Telegram user ids.
func parseOwners(v string) ([]int64, error) {
	var owners []int64
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := cast.ToInt64E(part)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid owner id %q", part)
		}
		owners = append(owners, id)
	}
	return owners, nil
}

func lookupEnv(name string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + name)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func setEnvValue(name string, val *string) {
	if v, ok := lookupEnv(name); ok {
		*val = v
	}
}

func setEnvBoolValue(name string, val *bool) {
	if v, ok := lookupEnv(name); ok {
		*val = cast.ToBool(v)
	}
}

func setEnvIntValue(name string, val *int) {
	if v, ok := lookupEnv(name); ok {
		if i, err := cast.ToIntE(v); err == nil {
			*val = i
		}
	}
}

func setEnvDurationValue(name string, val *time.Duration) {
	if v, ok := lookupEnv(name); ok {
		if d, err := cast.ToDurationE(v); err == nil {
			*val = d
		}
	}
}
