package mq

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

type subscribeClient interface {
	Subscribe(topic string, handler mqtt.MessageHandler) error
}

type Subscriber struct {
	client  subscribeClient
	router  *Router
	timeout time.Duration
	logger  zerolog.Logger
}

func NewSubscriber(client subscribeClient, router *Router, timeout time.Duration, logger zerolog.Logger) *Subscriber {
	return &Subscriber{
		client:  client,
		router:  router,
		timeout: timeout,
		logger:  logger.With().Str("component", "subscriber").Logger(),
	}
}

// SubscribeAll subscribes every pattern registered on the router.
func (s *Subscriber) SubscribeAll() error {
	for _, topic := range s.router.Patterns() {
		if err := s.client.Subscribe(topic, s.HandleMessage); err != nil {
			return fmt.Errorf("failed to subscribe to topic %s: %w", topic, err)
		}
	}
	return nil
}

func (s *Subscriber) HandleMessage(client mqtt.Client, msg mqtt.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	topic := msg.Topic()

	s.logger.Debug().
		Str("topic", topic).
		Int("size", len(msg.Payload())).
		Msg("Message received")

	if err := s.router.Route(ctx, msg); err != nil {
		s.logger.Error().Err(err).
			Str("topic", topic).
			Msg("Handler failed")
	}
}
