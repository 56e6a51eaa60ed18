package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"beacons-sync/internal/bridge"
	"beacons-sync/internal/interfaces"
	"beacons-sync/internal/mq"
	"beacons-sync/internal/mq/messages"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

type StatusHandler struct {
	regions      RegionRestorer
	lists        ListApplier
	logger       zerolog.Logger
	topicManager interfaces.ITopicManager
}

func NewStatusHandler(topicManager interfaces.ITopicManager, regions RegionRestorer, lists ListApplier, logger zerolog.Logger) *StatusHandler {
	return &StatusHandler{
		regions:      regions,
		lists:        lists,
		logger:       logger,
		topicManager: topicManager,
	}
}

func (h *StatusHandler) Topic() string {
	return h.topicManager.GetStatusTopic()
}

func (h *StatusHandler) TransformMessage(msg mqtt.Message) (*messages.StatusMessage, error) {
	payload, err := readPayload(msg)
	if err != nil {
		return nil, err
	}

	var statusMessage messages.StatusMessage
	if err := json.Unmarshal(payload, &statusMessage); err != nil {
		return nil, fmt.Errorf("could not parse status data: %v: %w", err, ErrInvalidMessage)
	}

	if err := statusMessage.Validate(); err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrInvalidMessage)
	}

	return &statusMessage, nil
}

func (h *StatusHandler) Process(ctx context.Context, msg mqtt.Message) error {
	deviceID, err := h.topicManager.ExtractDeviceID(msg.Topic(), mq.StatusTopicTemplate)
	if err != nil {
		return err
	}

	statusMessage, err := h.TransformMessage(msg)
	if err != nil {
		if errors.Is(err, ErrEmptyMessage) || errors.Is(err, ErrOwnMessage) {
			return nil
		}

		h.logger.Error().Err(err).
			Str("topic", msg.Topic()).
			Str("payload", string(msg.Payload())).
			Msg("Failed to transform status message")
		return err
	}

	switch statusMessage.Event {
	case messages.BeaconServiceConnected:
		h.logger.Info().Str("device_id", deviceID).Msg("Beacon service connected, restoring regions")
		if err := h.regions.Restore(ctx, deviceID); err != nil {
			return fmt.Errorf("failed to restore regions for device %s: %w", deviceID, err)
		}

	case messages.BeaconServiceDisconnected:
		h.logger.Info().Str("device_id", deviceID).Msg("Beacon service disconnected, ending session")
		if err := h.lists.EndSession(deviceID); err != nil {
			return fmt.Errorf("failed to end session for device %s: %w", deviceID, err)
		}

	case messages.AuthorizationStatusDidChange:
		status, err := bridge.ParseAuthorizationStatus(statusMessage.Status)
		if err != nil {
			return fmt.Errorf("%v: %w", err, ErrInvalidMessage)
		}

		event := h.logger.Info()
		if !status.CanRange() {
			event = h.logger.Warn()
		}
		event.Str("device_id", deviceID).
			Str("status", string(status)).
			Bool("can_range", status.CanRange()).
			Msg("Authorization status changed")
	}

	return nil
}
