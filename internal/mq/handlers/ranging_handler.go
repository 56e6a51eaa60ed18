package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"beacons-sync/internal/interfaces"
	"beacons-sync/internal/models"
	"beacons-sync/internal/mq"
	"beacons-sync/internal/mq/messages"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

type RangingHandler struct {
	lists        ListApplier
	logger       zerolog.Logger
	topicManager interfaces.ITopicManager
}

func NewRangingHandler(topicManager interfaces.ITopicManager, lists ListApplier, logger zerolog.Logger) *RangingHandler {
	return &RangingHandler{
		lists:        lists,
		logger:       logger,
		topicManager: topicManager,
	}
}

func (h *RangingHandler) Topic() string {
	return h.topicManager.GetRangingTopic()
}

func (h *RangingHandler) TransformMessage(msg mqtt.Message) (*messages.RangingMessage, error) {
	payload, err := readPayload(msg)
	if err != nil {
		return nil, err
	}

	var rangingMessage messages.RangingMessage
	if err := json.Unmarshal(payload, &rangingMessage); err != nil {
		return nil, fmt.Errorf("could not parse ranging data: %v: %w", err, ErrInvalidMessage)
	}

	if err := rangingMessage.Validate(); err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrInvalidMessage)
	}

	return &rangingMessage, nil
}

func (h *RangingHandler) Process(ctx context.Context, msg mqtt.Message) error {
	deviceID, err := h.topicManager.ExtractDeviceID(msg.Topic(), mq.RangingTopicTemplate)
	if err != nil {
		return err
	}

	rangingMessage, err := h.TransformMessage(msg)
	if err != nil {
		if errors.Is(err, ErrEmptyMessage) || errors.Is(err, ErrOwnMessage) {
			return nil
		}

		h.logger.Error().Err(err).
			Str("topic", msg.Topic()).
			Str("payload", string(msg.Payload())).
			Msg("Failed to transform ranging message")
		return err
	}

	batch := rangingMessage.ToBatch()
	if _, err := h.lists.Apply(ctx, deviceID, batch, models.RangingList); err != nil {
		return fmt.Errorf("failed to apply ranging batch for device %s: %w", deviceID, err)
	}

	h.logger.Debug().
		Str("device_id", deviceID).
		Str("region", rangingMessage.RegionIdentifier()).
		Int("beacons", batch.Len()).
		Msg("Ranging batch applied")

	return nil
}
