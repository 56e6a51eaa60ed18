package listeners

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"beacons-sync/internal/interfaces"
	"beacons-sync/internal/models"

	"github.com/rs/zerolog"
)

type RegionEventTopics interface {
	GetRegionEventTopic(event string) string
}

type RegionForgetter interface {
	Forget(ctx context.Context, region models.Region) error
}

// RegionEvent is published for every change to the regions table.
type RegionEvent struct {
	Event     string         `json:"event"`
	DeviceID  string         `json:"device_id"`
	Region    *models.Region `json:"region,omitempty"`
	Previous  *models.Region `json:"previous,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

type regionRow struct {
	DeviceID   string `json:"device_id"`
	Identifier string `json:"identifier"`
	UUID       string `json:"uuid"`
	Major      *int   `json:"major"`
	Minor      *int   `json:"minor"`
	Monitoring bool   `json:"monitoring"`
	Ranging    bool   `json:"ranging"`
}

func (r regionRow) toModel() models.Region {
	return models.Region{
		DeviceID:   r.DeviceID,
		Identifier: r.Identifier,
		UUID:       r.UUID,
		Major:      r.Major,
		Minor:      r.Minor,
		Monitoring: r.Monitoring,
		Ranging:    r.Ranging,
	}
}

func decodeRegion(data map[string]interface{}) (*models.Region, error) {
	if data == nil {
		return nil, nil
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var row regionRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, fmt.Errorf("could not decode region row: %w", err)
	}

	region := row.toModel()
	return &region, nil
}

type RegionTableListener struct {
	*BaseTableListener
	logger    zerolog.Logger
	publisher interfaces.IMqPublisher
	topics    RegionEventTopics
	regions   RegionForgetter
}

func NewRegionTableListener(
	logger zerolog.Logger,
	publisher interfaces.IMqPublisher,
	topics RegionEventTopics,
	regions RegionForgetter,
) *RegionTableListener {
	return &RegionTableListener{
		BaseTableListener: NewBaseTableListener("regions"),
		logger:            logger,
		publisher:         publisher,
		topics:            topics,
		regions:           regions,
	}
}

func (l *RegionTableListener) HandleChange(ctx context.Context, event *interfaces.TableChangeEvent) error {
	l.logger.Info().
		Str("operation", string(event.Operation)).
		Str("table", event.Table).
		Time("timestamp", event.Timestamp).
		Msg("Region table change detected")

	current, err := decodeRegion(event.NewData)
	if err != nil {
		return err
	}
	previous, err := decodeRegion(event.OldData)
	if err != nil {
		return err
	}

	switch event.Operation {
	case interfaces.InsertOperation:
		return l.publish("created", current, nil, event.Timestamp)

	case interfaces.UpdateOperation:
		return l.publish("updated", current, previous, event.Timestamp)

	case interfaces.DeleteOperation:
		if previous != nil && l.regions != nil {
			if err := l.regions.Forget(ctx, *previous); err != nil {
				l.logger.Error().Err(err).
					Str("region", previous.String()).
					Msg("Failed to stop deleted region on device")
			}
		}
		return l.publish("deleted", nil, previous, event.Timestamp)

	default:
		return fmt.Errorf("unknown operation: %s", event.Operation)
	}
}

func (l *RegionTableListener) publish(name string, current, previous *models.Region, timestamp time.Time) error {
	event := RegionEvent{
		Event:     "region_" + name,
		Region:    current,
		Previous:  previous,
		Timestamp: timestamp,
	}
	switch {
	case current != nil:
		event.DeviceID = current.DeviceID
	case previous != nil:
		event.DeviceID = previous.DeviceID
	}

	if err := l.publisher.PublishJSON(l.topics.GetRegionEventTopic(name), event, false); err != nil {
		return fmt.Errorf("failed to publish region %s event: %w", name, err)
	}
	return nil
}

var _ interfaces.ITableListener = (*RegionTableListener)(nil)
