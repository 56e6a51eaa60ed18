package influx

import (
	"context"
	"fmt"
	"time"

	"beacons-sync/internal/models"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
)

const (
	RangingMeasurement     = "beacon_ranging"
	RegionEventMeasurement = "beacon_region_event"
)

type pointWriter interface {
	WritePoint(point *write.Point)
}

// ObservationWriter turns reconciled observations into time series points.
type ObservationWriter struct {
	writeAPI pointWriter
	now      func() time.Time
	logger   zerolog.Logger
}

func NewObservationWriter(writeAPI pointWriter, logger zerolog.Logger) *ObservationWriter {
	return &ObservationWriter{
		writeAPI: writeAPI,
		now:      time.Now,
		logger:   logger,
	}
}

func (w *ObservationWriter) WriteObservations(ctx context.Context, deviceID string, list models.ListName, observations []models.BeaconObservation) error {
	timestamp := w.now()

	for _, observation := range observations {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("writing observations aborted: %w", err)
		}

		point, err := w.point(deviceID, list, observation, timestamp)
		if err != nil {
			return err
		}
		w.writeAPI.WritePoint(point)
	}

	w.logger.Debug().
		Str("device_id", deviceID).
		Str("list", string(list)).
		Int("points", len(observations)).
		Msg("Added observations to InfluxDB")

	return nil
}

func (w *ObservationWriter) point(deviceID string, list models.ListName, observation models.BeaconObservation, timestamp time.Time) (*write.Point, error) {
	identity := observation.Identity()
	tags := map[string]string{
		"device_id": deviceID,
		"uuid":      identity.UUID,
		"major":     fmt.Sprintf("%d", identity.Major),
		"minor":     fmt.Sprintf("%d", identity.Minor),
	}
	if observation.Identifier != "" {
		tags["identifier"] = observation.Identifier
	}

	switch list {
	case models.RangingList:
		if observation.Proximity != "" {
			tags["proximity"] = observation.Proximity
		}

		fields := map[string]interface{}{}
		if observation.RSSI != nil {
			fields["rssi"] = *observation.RSSI
		}
		if observation.Distance != nil {
			fields["distance"] = *observation.Distance
		}
		if len(fields) == 0 {
			fields["seen"] = true
		}

		return influxdb2.NewPoint(RangingMeasurement, tags, fields, timestamp), nil

	case models.MonitorEnterList, models.MonitorExitList:
		tags["event"] = "enter"
		if list == models.MonitorExitList {
			tags["event"] = "exit"
		}

		fields := map[string]interface{}{"count": 1}
		return influxdb2.NewPoint(RegionEventMeasurement, tags, fields, timestamp), nil

	default:
		return nil, fmt.Errorf("no measurement for list %q", list)
	}
}
