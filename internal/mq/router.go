package mq

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

type TopicHandler interface {
	Process(ctx context.Context, msg mqtt.Message) error
}

type route struct {
	pattern string
	regex   *regexp.Regexp
	handler TopicHandler
}

// Router dispatches a message to the first handler whose pattern matches its topic.
type Router struct {
	logger zerolog.Logger
	routes []route
	mu     sync.RWMutex
}

func NewRouter(logger zerolog.Logger) *Router {
	return &Router{
		logger: logger.With().Str("component", "router").Logger(),
	}
}

func (r *Router) RegisterHandler(topicPattern string, handler TopicHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.routes = append(r.routes, route{
		pattern: topicPattern,
		regex:   regexp.MustCompile(topicToRegex(topicPattern)),
		handler: handler,
	})

	r.logger.Info().
		Str("topic_pattern", topicPattern).
		Msg("Handler registered")
}

func (r *Router) RegisterMultipleTopics(topicPatterns []string, handler TopicHandler) {
	for _, topicPattern := range topicPatterns {
		r.RegisterHandler(topicPattern, handler)
	}
}

// Patterns returns the registered topic filters in registration order.
func (r *Router) Patterns() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	patterns := make([]string, 0, len(r.routes))
	for _, rt := range r.routes {
		patterns = append(patterns, rt.pattern)
	}
	return patterns
}

func (r *Router) Route(ctx context.Context, msg mqtt.Message) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	topic := msg.Topic()
	for _, rt := range r.routes {
		if rt.regex.MatchString(topic) {
			return rt.handler.Process(ctx, msg)
		}
	}

	return fmt.Errorf("no handler found for topic '%s'", topic)
}

func topicToRegex(topic string) string {
	pattern := regexp.QuoteMeta(topic)
	pattern = "^" + pattern + "$"
	pattern = strings.ReplaceAll(pattern, `\+`, `[^/]+`)
	pattern = strings.ReplaceAll(pattern, "#", ".*")

	return pattern
}
