package components

import (
	"time"

	"beacons-sync/internal/config/shared"
	"beacons-sync/internal/interfaces"
)

type ServiceConfig interface {
	interfaces.Config
}

type ServiceConfigImpl struct {
	Name            string        `json:"name"`
	Version         string        `json:"version"`
	HandlerTimeout  time.Duration `json:"handler_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	TimeFormat      string        `json:"time_format"`
}

func NewServiceConfig() ServiceConfigImpl {
	config := ServiceConfigImpl{}
	config.Load()
	config.SetDefaults()
	return config
}

func (S *ServiceConfigImpl) Load() {
	S.Name = shared.GetEnv("SERVICE_NAME")
	S.Version = shared.GetEnv("SERVICE_VERSION")
	S.HandlerTimeout = shared.GetEnvAsDuration("SERVICE_HANDLER_TIMEOUT")
	S.ShutdownTimeout = shared.GetEnvAsDuration("SERVICE_SHUTDOWN_TIMEOUT")
	S.TimeFormat = shared.GetEnv("SERVICE_TIME_FORMAT")
}

func (S *ServiceConfigImpl) SetDefaults() {
	if S.Name == "" {
		S.Name = "beacons-sync"
	}
	if S.Version == "" {
		S.Version = "1.0.0"
	}
	if S.HandlerTimeout <= 0 {
		S.HandlerTimeout = 30 * time.Second
	}
	if S.ShutdownTimeout <= 0 {
		S.ShutdownTimeout = 10 * time.Second
	}
	if S.TimeFormat == "" {
		S.TimeFormat = "01/02/2006 15:04:05"
	}
}

func (S *ServiceConfigImpl) Validate() error {
	if S.Name == "" {
		return shared.NewConfigError("service", "name", nil, "is required")
	}

	if S.Version == "" {
		return shared.NewConfigError("service", "version", nil, "is required")
	}

	if S.HandlerTimeout <= 0 {
		return shared.NewConfigError("service", "handler_timeout", S.HandlerTimeout, "must be greater than 0")
	}

	if S.ShutdownTimeout <= 0 {
		return shared.NewConfigError("service", "shutdown_timeout", S.ShutdownTimeout, "must be greater than 0")
	}

	return nil
}

var _ ServiceConfig = (*ServiceConfigImpl)(nil)
