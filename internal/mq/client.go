package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"beacons-sync/internal/config/components"
	"beacons-sync/internal/interfaces"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

const SourceSync = "SYNC"

var _ interfaces.IMqClient = (*Client)(nil)

type MessageOptions struct {
	Qos      byte          `json:"qos"`
	Retained bool          `json:"retained"`
	Timeout  time.Duration `json:"timeout"`
	Source   string        `json:"source"`
}

func DefaultMessageOptions() *MessageOptions {
	return &MessageOptions{
		Qos:      1,
		Retained: false,
		Timeout:  5 * time.Second,
		Source:   SourceSync,
	}
}

type Client struct {
	client    mqtt.Client
	config    components.MQTTConfigImpl
	logger    zerolog.Logger
	connected atomic.Bool
}

func NewClient(cfg components.MQTTConfigImpl, logger zerolog.Logger) *Client {
	opts := mqtt.NewClientOptions()

	opts.AddBroker(cfg.GetUrl())
	opts.SetClientID(fmt.Sprintf("%s-%d", cfg.ClientID, rand.Intn(10000)))

	if cfg.Username != "" && cfg.Password != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetKeepAlive(cfg.KeepAlive)
	opts.SetAutoReconnect(cfg.AutoReconnect)
	opts.SetMaxReconnectInterval(cfg.MaxReconnectInterval)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetCleanSession(cfg.CleanSession)
	// handlers publish and wait for acks, which deadlocks paho's ordered delivery
	opts.SetOrderMatters(false)

	mqttClient := &Client{
		config: cfg,
		logger: logger,
	}

	opts.SetOnConnectHandler(mqttClient.onConnect)
	opts.SetConnectionLostHandler(mqttClient.onConnectionLost)

	mqttClient.client = mqtt.NewClient(opts)

	return mqttClient
}

func (c *Client) Connect(ctx context.Context) error {
	token := c.client.Connect()

	select {
	case <-token.Done():
		if token.Error() != nil {
			return fmt.Errorf("error connecting to MQTT broker: %w", token.Error())
		}
		c.connected.Store(true)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("connection to MQTT broker timed out: %w", ctx.Err())
	}
}

func (c *Client) Disconnect(ctx context.Context) {
	if !c.IsConnected() {
		c.logger.Warn().Msg("MQTT client is not connected, nothing to disconnect")
		return
	}

	c.client.Disconnect(250)

	select {
	case <-ctx.Done():
		c.logger.Warn().Msg("MQTT client disconnect timed out")
	default:
		c.connected.Store(false)
		c.logger.Info().Msg("MQTT client disconnected successfully")
	}
}

func (c *Client) Subscribe(topic string, handler mqtt.MessageHandler) error {
	if !c.client.IsConnected() {
		return fmt.Errorf("MQTT client is not connected, cannot subscribe to topic %s", topic)
	}

	token := c.client.Subscribe(topic, c.config.QoS, handler)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscribe to topic %s timed out", topic)
	}

	if token.Error() != nil {
		return fmt.Errorf("error subscribing to topic %s: %w", topic, token.Error())
	}

	c.logger.Info().Str("topic", topic).Msg("Added topic subscription")

	return nil
}

func (c *Client) PublishWithOptions(topic string, payload []byte, options *MessageOptions) error {
	if !c.IsConnected() {
		return fmt.Errorf("MQTT client is not connected")
	}

	token := c.client.Publish(topic, options.Qos, options.Retained, payload)
	if !token.WaitTimeout(options.Timeout) {
		return fmt.Errorf("publish to topic %s timed out", topic)
	}

	if token.Error() != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, token.Error())
	}

	c.logger.Debug().
		Str("topic", topic).
		Int("payload_size", len(payload)).
		Bool("retained", options.Retained).
		Msg("successfully published message")

	return nil
}

// PublishJSON wraps data in the {data, source} envelope.
func (c *Client) PublishJSON(topic string, data interface{}, retained bool) error {
	options := DefaultMessageOptions()
	options.Qos = c.config.QoS
	options.Retained = retained

	payload, err := json.Marshal(Message{Data: data, Source: options.Source})
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	return c.PublishWithOptions(topic, payload, options)
}

// ClearRetained removes the broker's retained message for topic.
func (c *Client) ClearRetained(topic string) error {
	options := DefaultMessageOptions()
	options.Retained = true
	return c.PublishWithOptions(topic, nil, options)
}

func (c *Client) IsConnected() bool {
	return c.connected.Load() && c.client.IsConnected()
}

func (c *Client) onConnect(client mqtt.Client) {
	c.connected.Store(true)

	c.logger.Info().
		Msg("Successfully connected to broker")
}

func (c *Client) onConnectionLost(client mqtt.Client, err error) {
	c.connected.Store(false)
	c.logger.Warn().Err(err).Msg("lost connection to broker")
}
