package components

import (
	"fmt"

	"beacons-sync/internal/config/shared"
	"beacons-sync/internal/interfaces"
)

type PostgresConfig interface {
	interfaces.Config
	GetDsn() string
}

type PostgresConfigImpl struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
	TimeZone string `json:"timezone"`
}

func NewPostgresConfig() PostgresConfigImpl {
	config := PostgresConfigImpl{}
	config.Load()
	config.SetDefaults()
	return config
}

func (P *PostgresConfigImpl) Load() {
	P.Host = shared.GetEnv("POSTGRES_HOST")
	P.Port = shared.GetEnvAsInt("POSTGRES_PORT")
	P.User = shared.GetEnv("POSTGRES_USER")
	P.Password = shared.GetEnv("POSTGRES_PASSWORD")
	P.Database = shared.GetEnv("POSTGRES_DB")
	P.SSLMode = shared.GetEnv("POSTGRES_SSL_MODE")
	P.TimeZone = shared.GetEnv("TZ")
}

func (P *PostgresConfigImpl) SetDefaults() {
	if P.Host == "" {
		P.Host = "localhost"
	}
	if P.Port == 0 {
		P.Port = 5432
	}
	if P.User == "" {
		P.User = "postgres"
	}
	if P.Database == "" {
		P.Database = "beacons"
	}
	if P.SSLMode == "" || P.SSLMode == "false" {
		P.SSLMode = "disable"
	}
	if P.SSLMode == "true" {
		P.SSLMode = "require"
	}
	if P.TimeZone == "" {
		P.TimeZone = "UTC"
	}
}

func (P *PostgresConfigImpl) Validate() error {
	if P.Host == "" {
		return shared.NewConfigError("postgres", "host", nil, "POSTGRES_HOST is required")
	}
	if P.Port == 0 {
		return shared.NewConfigError("postgres", "port", nil, "POSTGRES_PORT is required")
	}
	if P.User == "" {
		return shared.NewConfigError("postgres", "user", nil, "POSTGRES_USER is required")
	}
	if P.Database == "" {
		return shared.NewConfigError("postgres", "database", nil, "POSTGRES_DB is required")
	}
	switch P.SSLMode {
	case "disable", "require", "verify-ca", "verify-full":
	default:
		return shared.NewConfigError("postgres", "ssl_mode", P.SSLMode, "must be one of: disable, require, verify-ca, verify-full")
	}
	return nil
}

func (P *PostgresConfigImpl) GetDsn() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s&TimeZone=%s", P.User, P.Password, P.Host, P.Port, P.Database, P.SSLMode, P.TimeZone)
}

var _ PostgresConfig = (*PostgresConfigImpl)(nil)
