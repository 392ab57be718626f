package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Environment string         `mapstructure:"environment"` // "dev" or "prod"
	Broker      BrokerConfig   `mapstructure:"broker"`
	Market      MarketConfig   `mapstructure:"market"`
	Scrip       ScripConfig    `mapstructure:"scrip"`
	Server      ServerConfig   `mapstructure:"server"`
	Storage     StorageConfig  `mapstructure:"storage"`
	Log         LogConfig      `mapstructure:"log"`
	Postgres    PostgresConfig `mapstructure:"postgres"`
}

type BrokerConfig struct {
	REST        RESTConfig        `mapstructure:"rest"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
}

type RESTConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// CredentialsConfig holds the broker token. In prod the values are read from
// SSM parameters instead of the file.
type CredentialsConfig struct {
	AccessToken    string `mapstructure:"access_token"`
	ClientID       string `mapstructure:"client_id"`
	SSMAccessToken string `mapstructure:"ssm_access_token"` // parameter name
	SSMClientID    string `mapstructure:"ssm_client_id"`    // parameter name
	RefreshCron    string `mapstructure:"refresh_cron"`     // with seconds field
}

type MarketConfig struct {
	Timezone     string `mapstructure:"timezone"`
	MIC          string `mapstructure:"mic"`
	SessionOpen  string `mapstructure:"session_open"`
	SessionClose string `mapstructure:"session_close"`
}

// Location resolves the market timezone, falling back to local time.
func (m MarketConfig) Location() *time.Location {
	if m.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(m.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

type ScripConfig struct {
	Path string `mapstructure:"path"`
}

type ServerConfig struct {
	Addr             string        `mapstructure:"addr"`
	SessionCookie    string        `mapstructure:"session_cookie"`
	AllowOrigins     []string      `mapstructure:"allow_origins"`
	SessionIdle      time.Duration `mapstructure:"session_idle"`       // drop sessions unseen this long
	SessionSweepCron string        `mapstructure:"session_sweep_cron"` // with seconds field
}

type StorageConfig struct {
	Driver        string        `mapstructure:"driver"` // "none", "memory", "sqlite" or "postgres"
	SQLitePath    string        `mapstructure:"sqlite_path"`
	Retention     time.Duration `mapstructure:"retention"` // 0 keeps bars forever
	RetentionCron string        `mapstructure:"retention_cron"`
}

// Options defines the logger configuration options.
type LogConfig struct {
	Level       string `mapstructure:"level"`       // log level: "debug", "info", "warn", "error"
	Format      string `mapstructure:"format"`      // log format: "json" or "console"
	OutputFile  string `mapstructure:"output_file"` // file path to store logs (optional)
	Environment string `mapstructure:"environment"` // environment: "dev" or "prod"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "dev")
	v.SetDefault("broker.rest.base_url", "https://api.dhan.co")
	v.SetDefault("broker.rest.timeout", "15s")
	v.SetDefault("broker.credentials.refresh_cron", "0 */30 * * * *")
	v.SetDefault("market.timezone", "Asia/Kolkata")
	v.SetDefault("market.mic", "xnse")
	v.SetDefault("market.session_open", "09:15:00")
	v.SetDefault("market.session_close", "15:30:00")
	v.SetDefault("scrip.path", "data/scrip-master.csv")
	v.SetDefault("server.addr", ":8501")
	v.SetDefault("server.session_cookie", "spreadboard_session")
	v.SetDefault("server.session_idle", "2h")
	v.SetDefault("server.session_sweep_cron", "0 */5 * * * *")
	v.SetDefault("storage.driver", "memory")
	v.SetDefault("storage.sqlite_path", "data/spreadboard.db")
	v.SetDefault("storage.retention", "0s")
	v.SetDefault("storage.retention_cron", "0 30 3 * * *")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// configDir picks where config.yaml lives: CONFIG_PATH, then next to the
// binary, or the repo's config dir under go run / go test.
func configDir() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	ex, _ := os.Executable()
	if strings.Contains(ex, "go-build") {
		pwd, _ := os.Getwd()
		return filepath.Join(pwd, "../../config")
	}
	return filepath.Join(filepath.Dir(ex), "../config")
}

func newViper(dir string) *viper.Viper {
	v := viper.New()

	v.SetConfigName("config") // config.yaml
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	// Support environment variables with dot notation (e.g., BROKER_REST_BASE_URL)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.Log.Environment == "" {
		cfg.Log.Environment = cfg.Environment
	}
	return &cfg, nil
}

// Load loads application configuration using Viper.
// It reads .env, then config.yaml, and overrides with environment variables.
// A missing config.yaml is not an error; defaults and env apply.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return LoadFrom(configDir())
}

// LoadFrom reads config.yaml from dir.
func LoadFrom(dir string) (*Config, error) {
	v := newViper(dir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return decode(v)
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	if c.Broker.REST.BaseURL == "" {
		return fmt.Errorf("broker.rest.base_url is required")
	}
	if c.Environment == "prod" {
		if c.Broker.Credentials.SSMAccessToken == "" || c.Broker.Credentials.SSMClientID == "" {
			return fmt.Errorf("broker.credentials.ssm_access_token and ssm_client_id are required in prod")
		}
	} else if c.Broker.Credentials.AccessToken == "" || c.Broker.Credentials.ClientID == "" {
		return fmt.Errorf("broker.credentials.access_token and client_id are required")
	}
	if c.Scrip.Path == "" {
		return fmt.Errorf("scrip.path is required")
	}
	if _, err := time.LoadLocation(c.Market.Timezone); err != nil {
		return fmt.Errorf("market.timezone: %w", err)
	}
	for _, hhmmss := range []string{c.Market.SessionOpen, c.Market.SessionClose} {
		if _, err := time.Parse("15:04:05", hhmmss); err != nil {
			return fmt.Errorf("market session time %q: %w", hhmmss, err)
		}
	}
	if c.Server.SessionIdle <= 0 {
		return fmt.Errorf("server.session_idle must be positive")
	}
	if c.Storage.Retention < 0 {
		return fmt.Errorf("storage.retention must not be negative")
	}
	switch c.Storage.Driver {
	case "", "none", "memory":
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path is required for sqlite")
		}
	case "postgres":
		if c.Postgres.DBName == "" {
			return fmt.Errorf("postgres.dbname is required for postgres storage")
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}
	return nil
}
