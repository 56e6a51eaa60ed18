package components

import (
	"strings"

	"beacons-sync/internal/config/shared"
	"beacons-sync/internal/interfaces"
)

type LoggerConfig interface {
	interfaces.Config
}

type LoggerConfigImpl struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

func NewLoggerConfig() LoggerConfigImpl {
	config := LoggerConfigImpl{}
	config.Load()
	config.SetDefaults()
	return config
}

func (L *LoggerConfigImpl) Load() {
	L.Level = shared.GetEnv("LOG_LEVEL")
	L.Format = shared.GetEnv("LOG_FORMAT")
}

func (L *LoggerConfigImpl) SetDefaults() {
	if L.Level == "" {
		L.Level = "info"
	}
	if L.Format == "" {
		L.Format = "console"
	}
}

func (L *LoggerConfigImpl) Validate() error {
	switch strings.ToLower(L.Level) {
	case "debug", "info", "warn", "error", "fatal":
	default:
		return shared.NewConfigError("logger", "level", L.Level, "must be one of: debug, info, warn, error, fatal")
	}

	if L.Format != "console" && L.Format != "json" {
		return shared.NewConfigError("logger", "format", L.Format, "must be console or json")
	}

	return nil
}

var _ LoggerConfig = (*LoggerConfigImpl)(nil)
