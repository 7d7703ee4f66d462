package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

const (
	EnvDev   = "dev"
	EnvProd  = "prod"
	EnvLocal = "local"

	xdgAppName = "taskflow"
	configFile = "config.yaml"

	// PathEnv names the config file when no --config flag is given.
	PathEnv = "TASKFLOW_CONFIG"
)

type Config struct {
	Env      string         `yaml:"env" env:"ENV" env-default:"local"`
	HTTP     HTTPConfig     `yaml:"http"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	Calendar CalendarConfig `yaml:"calendar"`
	Google   GoogleConfig   `yaml:"google"`
	Sync     SyncConfig     `yaml:"sync"`
	Reminder ReminderConfig `yaml:"reminder"`
	Log      LogConfig      `yaml:"log"`
}

type HTTPConfig struct {
	Host            string        `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port            string        `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"5s"`
}

// PostgresConfig with an empty Host selects the in-memory store.
type PostgresConfig struct {
	Host           string        `yaml:"host" env:"POSTGRES_HOST"`
	Port           int           `yaml:"port" env:"POSTGRES_PORT" env-default:"5432"`
	Username       string        `yaml:"username" env:"POSTGRES_USERNAME"`
	Password       string        `yaml:"password" env:"POSTGRES_PASSWORD"`
	Database       string        `yaml:"database" env:"POSTGRES_DATABASE" env-default:"taskflow"`
	SSLMode        string        `yaml:"ssl_mode" env:"POSTGRES_SSL_MODE" env-default:"disable"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"POSTGRES_CONNECT_TIMEOUT" env-default:"10s"`
	PingTimeout    time.Duration `yaml:"ping_timeout" env:"POSTGRES_PING_TIMEOUT" env-default:"10s"`
}

func (c PostgresConfig) Enabled() bool {
	return c.Host != ""
}

func (c PostgresConfig) ConnURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Username, c.Password),
		Host:     c.Host + ":" + strconv.Itoa(c.Port),
		Path:     "/" + c.Database,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

// RedisConfig with an empty Addr selects the log notifier and a
// process-local run lock.
type RedisConfig struct {
	Addr     string        `yaml:"addr" env:"REDIS_ADDR"`
	Password string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int           `yaml:"db" env:"REDIS_DB" env-default:"0"`
	Channel  string        `yaml:"channel" env:"REDIS_CHANNEL" env-default:"taskflow:notifications"`
	LockKey  string        `yaml:"lock_key" env:"REDIS_LOCK_KEY" env-default:"taskflow:sync-lock"`
	LockTTL  time.Duration `yaml:"lock_ttl" env:"REDIS_LOCK_TTL" env-default:"10m"`
}

func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// CalendarConfig keeps the mapping and verifier list raw; they are parsed
// each time they are used.
type CalendarConfig struct {
	DefaultCalendarID string `yaml:"default_calendar_id" env:"DEFAULT_CALENDAR_ID"`
	UserCalendarMap   string `yaml:"user_calendar_map" env:"USER_CALENDAR_MAP"`
	GlobalVerifiers   string `yaml:"global_verifiers" env:"GLOBAL_VERIFIERS"`
	LookbackDays      int    `yaml:"lookback_days" env:"CALENDAR_LOOKBACK_DAYS" env-default:"7"`
	LookaheadDays     int    `yaml:"lookahead_days" env:"CALENDAR_LOOKAHEAD_DAYS" env-default:"30"`
}

func (c CalendarConfig) Lookback() time.Duration {
	return time.Duration(c.LookbackDays) * 24 * time.Hour
}

func (c CalendarConfig) Lookahead() time.Duration {
	return time.Duration(c.LookaheadDays) * 24 * time.Hour
}

// GoogleConfig paths default to files under the user config directory.
type GoogleConfig struct {
	CredentialsFile    string `yaml:"credentials_file" env:"GOOGLE_CREDENTIALS_FILE"`
	TokenFile          string `yaml:"token_file" env:"GOOGLE_TOKEN_FILE"`
	ServiceAccountFile string `yaml:"service_account_file" env:"GOOGLE_SERVICE_ACCOUNT_FILE"`
}

type SyncConfig struct {
	Interval   time.Duration `yaml:"interval" env:"SYNC_INTERVAL" env-default:"15m"`
	RunOnStart bool          `yaml:"run_on_start" env:"SYNC_RUN_ON_START"`
}

type ReminderConfig struct {
	CooldownHours int `yaml:"cooldown_hours" env:"REMINDER_COOLDOWN_HOURS" env-default:"12"`
}

func (c ReminderConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownHours) * time.Hour
}

type LogConfig struct {
	File       string `yaml:"file" env:"LOG_FILE"`
	MaxSizeMB  int    `yaml:"max_size_mb" env:"LOG_MAX_SIZE_MB" env-default:"100"`
	MaxBackups int    `yaml:"max_backups" env:"LOG_MAX_BACKUPS" env-default:"3"`
	MaxAgeDays int    `yaml:"max_age_days" env:"LOG_MAX_AGE_DAYS" env-default:"28"`
}

func GetXdgHome() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", xdgAppName), nil
}

// GetConfigPath resolves the config file: explicit path, then
// TASKFLOW_CONFIG, then the user config directory.
func GetConfigPath(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if p := os.Getenv(PathEnv); p != "" {
		return p, nil
	}
	dir, err := GetXdgHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

// Load reads the YAML file at path when it exists and applies environment
// overrides and defaults on top.
func Load(path string) (*Config, error) {
	cfg := new(Config)
	_, err := os.Stat(path)
	switch {
	case path != "" && err == nil:
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	case path == "" || errors.Is(err, os.ErrNotExist):
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read env: %w", err)
		}
	default:
		return nil, err
	}

	switch cfg.Env {
	case EnvLocal, EnvDev, EnvProd:
	default:
		return nil, fmt.Errorf("unknown env: %s", cfg.Env)
	}
	if err := cfg.fillGooglePaths(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) fillGooglePaths() error {
	if c.Google.CredentialsFile != "" && c.Google.TokenFile != "" {
		return nil
	}
	dir, err := GetXdgHome()
	if err != nil {
		return err
	}
	if c.Google.CredentialsFile == "" {
		c.Google.CredentialsFile = filepath.Join(dir, "credentials.json")
	}
	if c.Google.TokenFile == "" {
		c.Google.TokenFile = filepath.Join(dir, "token.json")
	}
	return nil
}

// LoadFile reads only the YAML file, without env or defaults, so a
// subsequent Save does not bake environment values into it. A missing
// file yields an empty config.
func LoadFile(path string) (*Config, error) {
	cfg := new(Config)
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to open config file for writing: %w", err)
	}
	defer f.Close()

	encoder := yaml.NewEncoder(f)
	encoder.SetIndent(2)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return encoder.Close()
}
