package mq

import (
	"bytes"
	"encoding/json"
)

// Message is the envelope for everything this service publishes.
type Message struct {
	Data   interface{} `json:"data"`
	Source string      `json:"source"`
}

type incomingMessage struct {
	Data   json.RawMessage `json:"data"`
	Source string          `json:"source"`
}

// Unwrap strips the {data, source} envelope when present. Bare event bodies
// are returned unchanged with an empty source.
func Unwrap(payload []byte) ([]byte, string) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return payload, ""
	}

	var envelope incomingMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return payload, ""
	}
	if envelope.Source == "" || len(envelope.Data) == 0 {
		return payload, ""
	}

	return envelope.Data, envelope.Source
}
