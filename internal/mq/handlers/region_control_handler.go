package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"beacons-sync/internal/interfaces"
	"beacons-sync/internal/mq"
	"beacons-sync/internal/mq/messages"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

type RegionControlHandler struct {
	regions      RegionController
	logger       zerolog.Logger
	topicManager interfaces.ITopicManager
}

func NewRegionControlHandler(topicManager interfaces.ITopicManager, regions RegionController, logger zerolog.Logger) *RegionControlHandler {
	return &RegionControlHandler{
		regions:      regions,
		logger:       logger,
		topicManager: topicManager,
	}
}

func (h *RegionControlHandler) Topic() string {
	return h.topicManager.GetRegionControlTopic()
}

func (h *RegionControlHandler) TransformMessage(msg mqtt.Message) (*messages.RegionControlMessage, error) {
	payload, err := readPayload(msg)
	if err != nil {
		return nil, err
	}

	var control messages.RegionControlMessage
	if err := json.Unmarshal(payload, &control); err != nil {
		return nil, fmt.Errorf("could not parse region control data: %v: %w", err, ErrInvalidMessage)
	}

	if err := control.Validate(); err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrInvalidMessage)
	}

	return &control, nil
}

func (h *RegionControlHandler) Process(ctx context.Context, msg mqtt.Message) error {
	deviceID, err := h.topicManager.ExtractDeviceID(msg.Topic(), mq.RegionControlTopicTemplate)
	if err != nil {
		return err
	}

	control, err := h.TransformMessage(msg)
	if err != nil {
		if errors.Is(err, ErrEmptyMessage) || errors.Is(err, ErrOwnMessage) {
			return nil
		}

		h.logger.Error().Err(err).
			Str("topic", msg.Topic()).
			Str("payload", string(msg.Payload())).
			Msg("Failed to transform region control message")
		return err
	}

	if deviceID != h.regions.DeviceID() {
		h.logger.Warn().
			Str("device_id", deviceID).
			Str("action", string(control.Action)).
			Msg("Region control for unbridged device ignored")
		return nil
	}

	switch control.Action {
	case messages.StartMonitoring:
		err = h.regions.StartMonitoring(ctx, control.Region)
	case messages.StopMonitoring:
		err = h.regions.StopMonitoring(ctx, control.Region)
	case messages.StartRanging:
		err = h.regions.StartRanging(ctx, control.Region)
	case messages.StopRanging:
		err = h.regions.StopRanging(ctx, control.Region)
	case messages.RequestStateForRegion:
		err = h.regions.RequestState(ctx, control.Region)
	}
	if err != nil {
		return fmt.Errorf("failed to %s region %s: %w", control.Action, control.Region.Identifier, err)
	}

	return nil
}
