package config

import (
	"fmt"

	"beacons-sync/internal/config/components"
	"beacons-sync/internal/interfaces"

	"github.com/joho/godotenv"
)

type Config struct {
	MQTT     components.MQTTConfigImpl     `json:"mqtt"`
	Postgres components.PostgresConfigImpl `json:"postgres"`
	InfluxDB components.InfluxConfigImpl   `json:"influxdb"`
	Logger   components.LoggerConfigImpl   `json:"logger"`
	Service  components.ServiceConfigImpl  `json:"service"`
	Beacon   components.BeaconConfigImpl   `json:"beacon"`
}

// Load reads an optional .env file, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	config := &Config{
		MQTT:     components.NewMQTTConfig(),
		Postgres: components.NewPostgresConfig(),
		InfluxDB: components.NewInfluxConfig(),
		Logger:   components.NewLoggerConfig(),
		Service:  components.NewServiceConfig(),
		Beacon:   components.NewBeaconConfig(),
	}

	return config, config.validate()
}

func (c *Config) validate() error {
	checks := []struct {
		name   string
		config interfaces.Config
	}{
		{"mqtt", &c.MQTT},
		{"postgres", &c.Postgres},
		{"influxdb", &c.InfluxDB},
		{"logger", &c.Logger},
		{"service", &c.Service},
		{"beacon", &c.Beacon},
	}

	for _, check := range checks {
		if err := check.config.Validate(); err != nil {
			return fmt.Errorf("invalid %s config: %w", check.name, err)
		}
	}
	return nil
}
