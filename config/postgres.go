package config

import (
	"context"
	"fmt"
	"time"
)

// PostgresConfig defines the configuration for connecting to a PostgreSQL database.
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	TimeZone string `mapstructure:"timezone"`

	// SSM parameter names used in prod for host, user and password.
	SSMHost     string `mapstructure:"ssm_host"`
	SSMUser     string `mapstructure:"ssm_user"`
	SSMPassword string `mapstructure:"ssm_password"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// SecretGetter is satisfied by *ParameterStore.
type SecretGetter interface {
	Get(ctx context.Context, name string) (string, error)
}

// DSN builds the connection string from the file values.
func (cfg *PostgresConfig) DSN() string {
	return cfg.dsn(cfg.Host, cfg.User, cfg.Password, cfg.DBName)
}

// AdminDSN points at the maintenance "postgres" database, used to create DBName.
func (cfg *PostgresConfig) AdminDSN() string {
	return cfg.dsn(cfg.Host, cfg.User, cfg.Password, "postgres")
}

// ResolveSecrets replaces host, user and password with their SSM values.
// Parameters left unnamed keep the file value.
func (cfg *PostgresConfig) ResolveSecrets(ctx context.Context, secrets SecretGetter) error {
	targets := []struct {
		name string
		dst  *string
	}{
		{cfg.SSMHost, &cfg.Host},
		{cfg.SSMUser, &cfg.User},
		{cfg.SSMPassword, &cfg.Password},
	}
	for _, t := range targets {
		if t.name == "" {
			continue
		}
		val, err := secrets.Get(ctx, t.name)
		if err != nil {
			return fmt.Errorf("resolve postgres secret: %w", err)
		}
		*t.dst = val
	}
	return nil
}

func (cfg *PostgresConfig) dsn(host, user, password, dbname string) string {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		host, cfg.Port, user, password, dbname, cfg.SSLMode,
	)

	if cfg.TimeZone != "" {
		dsn += fmt.Sprintf(" TimeZone=%s", cfg.TimeZone)
	}

	return dsn
}
