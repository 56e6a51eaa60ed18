// Package bridge drives the native beacon module on a device by publishing
// commands to the device's command topic. The Android and iOS modules accept
// different command shapes, so each platform has its own Manager.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"beacons-sync/internal/config/components"
	"beacons-sync/internal/interfaces"
	"beacons-sync/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Platform string

const (
	PlatformAndroid Platform = components.PlatformAndroid
	PlatformIOS     Platform = components.PlatformIOS
)

var ErrUnknownPlatform = errors.New("unknown platform")

// Command is the envelope body the device-side bridge executes.
type Command struct {
	ID     string        `json:"id"`
	Method string        `json:"method"`
	Args   []interface{} `json:"args"`
}

type CommandTopics interface {
	GetCommandTopic(deviceID string) string
}

type Manager interface {
	Platform() Platform
	DeviceID() string
	Configure(ctx context.Context, cfg components.BeaconConfigImpl) error
	StartMonitoringForRegion(ctx context.Context, region models.Region) error
	StopMonitoringForRegion(ctx context.Context, region models.Region) error
	StartRangingBeaconsInRegion(ctx context.Context, region models.Region) error
	StopRangingBeaconsInRegion(ctx context.Context, region models.Region) error
	RequestStateForRegion(ctx context.Context, region models.Region) error
	MonitoredRegions() []models.Region
	RangedRegions() []models.Region
}

func New(platform Platform, deviceID string, publisher interfaces.IMqPublisher, topics CommandTopics, logger zerolog.Logger) (Manager, error) {
	c := newCommander(deviceID, publisher, topics, logger.With().Str("platform", string(platform)).Logger())

	switch platform {
	case PlatformAndroid:
		return &Android{commander: c}, nil
	case PlatformIOS:
		return &IOS{commander: c}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlatform, platform)
	}
}

type commander struct {
	deviceID  string
	publisher interfaces.IMqPublisher
	topics    CommandTopics
	logger    zerolog.Logger

	mu        sync.RWMutex
	monitored map[string]models.Region
	ranged    map[string]models.Region
}

func newCommander(deviceID string, publisher interfaces.IMqPublisher, topics CommandTopics, logger zerolog.Logger) *commander {
	return &commander{
		deviceID:  deviceID,
		publisher: publisher,
		topics:    topics,
		logger:    logger,
		monitored: make(map[string]models.Region),
		ranged:    make(map[string]models.Region),
	}
}

func (c *commander) DeviceID() string {
	return c.deviceID
}

func (c *commander) send(ctx context.Context, method string, args ...interface{}) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("command %s not sent: %w", method, err)
	}

	if args == nil {
		args = []interface{}{}
	}

	command := Command{
		ID:     uuid.NewString(),
		Method: method,
		Args:   args,
	}

	topic := c.topics.GetCommandTopic(c.deviceID)
	if err := c.publisher.PublishJSON(topic, command, false); err != nil {
		return fmt.Errorf("failed to send command %s: %w", method, err)
	}

	c.logger.Debug().
		Str("command_id", command.ID).
		Str("method", method).
		Str("device_id", c.deviceID).
		Msg("Command sent")

	return nil
}

func (c *commander) track(set map[string]models.Region, region models.Region) {
	c.mu.Lock()
	defer c.mu.Unlock()
	set[region.Identifier] = region.Target()
}

func (c *commander) untrack(set map[string]models.Region, region models.Region) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(set, region.Identifier)
}

func (c *commander) list(set map[string]models.Region) []models.Region {
	c.mu.RLock()
	defer c.mu.RUnlock()

	regions := make([]models.Region, 0, len(set))
	for _, region := range set {
		regions = append(regions, region)
	}
	sort.Slice(regions, func(i, j int) bool {
		return regions[i].Identifier < regions[j].Identifier
	})
	return regions
}

func (c *commander) MonitoredRegions() []models.Region {
	return c.list(c.monitored)
}

func (c *commander) RangedRegions() []models.Region {
	return c.list(c.ranged)
}

func validate(region models.Region) error {
	if err := region.Validate(); err != nil {
		return fmt.Errorf("invalid region %s: %w", region.Identifier, err)
	}
	return nil
}
