// Package broker wraps RabbitMQ in the two topologies the pipeline needs:
// a durable acknowledged work queue for inbound dispatch, and a TTL plus
// dead-letter-exchange pattern that turns message expiry into "deliver after
// N minutes" without a timer service.
package broker

import (
	"encoding/json"
	"time"
)

// Envelope is the wire format for every queued message. Every dequeued
// envelope is eventually acked or nacked, never silently dropped.
type Envelope struct {
	Type       string          `json:"type"`
	Value      json.RawMessage `json:"value"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// NewEnvelope wraps a payload; marshal errors surface at publish time where
// the caller can handle them.
func NewEnvelope(msgType string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: msgType, Value: raw, EnqueuedAt: time.Now().UTC()}, nil
}

// Topology names the queues one deployment uses. The work queue dead-letters
// rejected messages to the parking queue for inspection; the delay queue has
// no consumers and dead-letters expired messages into the review queue.
type Topology struct {
	WorkQueue    string
	ParkingQueue string
	DelayQueue   string
	ReviewQueue  string
}
