// Package mqtest provides in-memory stand-ins for the broker types used in tests.
package mqtest

import (
	"encoding/json"
	"errors"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Message implements mqtt.Message.
type Message struct {
	TopicName string
	Body      []byte
	acked     bool
}

func NewMessage(topic string, payload []byte) *Message {
	return &Message{TopicName: topic, Body: payload}
}

func (m *Message) Duplicate() bool   { return false }
func (m *Message) Qos() byte         { return 1 }
func (m *Message) Retained() bool    { return false }
func (m *Message) Topic() string     { return m.TopicName }
func (m *Message) MessageID() uint16 { return 1 }
func (m *Message) Payload() []byte   { return m.Body }
func (m *Message) Ack()              { m.acked = true }

var _ mqtt.Message = (*Message)(nil)

type Published struct {
	Topic    string
	Data     interface{}
	Retained bool
}

// Publisher records everything published through it.
type Publisher struct {
	mu        sync.Mutex
	published []Published
	cleared   []string
	Err       error
}

func (p *Publisher) PublishJSON(topic string, data interface{}, retained bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Err != nil {
		return p.Err
	}
	p.published = append(p.published, Published{Topic: topic, Data: data, Retained: retained})
	return nil
}

func (p *Publisher) ClearRetained(topic string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Err != nil {
		return p.Err
	}
	p.cleared = append(p.cleared, topic)
	return nil
}

func (p *Publisher) Published() []Published {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]Published(nil), p.published...)
}

// OnTopic returns what was published to topic, in order.
func (p *Publisher) OnTopic(topic string) []Published {
	var out []Published
	for _, msg := range p.Published() {
		if msg.Topic == topic {
			out = append(out, msg)
		}
	}
	return out
}

func (p *Publisher) Cleared() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]string(nil), p.cleared...)
}

// Decode round-trips a published value through JSON into out.
func Decode(msg Published, out interface{}) error {
	if msg.Data == nil {
		return errors.New("no data published")
	}
	raw, err := json.Marshal(msg.Data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
