package handlers

import (
	"context"
	"fmt"

	"beacons-sync/internal/models"
	"beacons-sync/internal/mq"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type ListApplier interface {
	Apply(ctx context.Context, deviceID string, batch models.ObservationBatch, list models.ListName) (models.BeaconLists, error)
	EndSession(deviceID string) error
}

type RegionRestorer interface {
	Restore(ctx context.Context, deviceID string) error
}

// readPayload returns the event body with any envelope removed.
func readPayload(msg mqtt.Message) ([]byte, error) {
	if msg == nil {
		return nil, fmt.Errorf("received nil message: %w", ErrMessageIsNil)
	}

	if len(msg.Payload()) == 0 {
		return nil, ErrEmptyMessage
	}

	body, source := mq.Unwrap(msg.Payload())
	if source == mq.SourceSync {
		return nil, ErrOwnMessage
	}

	return body, nil
}

type RegionController interface {
	DeviceID() string
	StartMonitoring(ctx context.Context, region models.Region) error
	StopMonitoring(ctx context.Context, region models.Region) error
	StartRanging(ctx context.Context, region models.Region) error
	StopRanging(ctx context.Context, region models.Region) error
	RequestState(ctx context.Context, region models.Region) error
}
