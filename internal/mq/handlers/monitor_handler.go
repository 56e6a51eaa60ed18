package handlers

import (
	"context"
	"errors"
	"fmt"

	"beacons-sync/internal/interfaces"
	"beacons-sync/internal/models"
	"beacons-sync/internal/mq"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// MonitorHandler handles regionDidEnter or regionDidExit, depending on construction.
type MonitorHandler struct {
	lists        ListApplier
	logger       zerolog.Logger
	topicManager interfaces.ITopicManager
	template     string
	target       models.ListName
}

func NewMonitorEnterHandler(topicManager interfaces.ITopicManager, lists ListApplier, logger zerolog.Logger) *MonitorHandler {
	return &MonitorHandler{
		lists:        lists,
		logger:       logger,
		topicManager: topicManager,
		template:     mq.MonitorEnterTopicTemplate,
		target:       models.MonitorEnterList,
	}
}

func NewMonitorExitHandler(topicManager interfaces.ITopicManager, lists ListApplier, logger zerolog.Logger) *MonitorHandler {
	return &MonitorHandler{
		lists:        lists,
		logger:       logger,
		topicManager: topicManager,
		template:     mq.MonitorExitTopicTemplate,
		target:       models.MonitorExitList,
	}
}

func (h *MonitorHandler) Topic() string {
	if h.target == models.MonitorExitList {
		return h.topicManager.GetMonitorExitTopic()
	}
	return h.topicManager.GetMonitorEnterTopic()
}

func (h *MonitorHandler) TransformMessage(msg mqtt.Message) (models.ObservationBatch, error) {
	payload, err := readPayload(msg)
	if err != nil {
		return models.Malformed(), err
	}

	batch, err := models.DecodeBatch(payload)
	if err != nil {
		return batch, fmt.Errorf("%v: %w", err, ErrInvalidMessage)
	}

	return batch, nil
}

func (h *MonitorHandler) Process(ctx context.Context, msg mqtt.Message) error {
	deviceID, err := h.topicManager.ExtractDeviceID(msg.Topic(), h.template)
	if err != nil {
		return err
	}

	batch, err := h.TransformMessage(msg)
	if err != nil {
		if errors.Is(err, ErrEmptyMessage) || errors.Is(err, ErrOwnMessage) {
			return nil
		}

		h.logger.Error().Err(err).
			Str("topic", msg.Topic()).
			Str("payload", string(msg.Payload())).
			Msg("Failed to transform region message")
		return err
	}

	if _, err := h.lists.Apply(ctx, deviceID, batch, h.target); err != nil {
		return fmt.Errorf("failed to apply %s batch for device %s: %w", h.target, deviceID, err)
	}

	h.logger.Debug().
		Str("device_id", deviceID).
		Str("list", string(h.target)).
		Str("kind", batch.Kind().String()).
		Msg("Region event applied")

	return nil
}
