// Package pubsub carries optimizer events to whoever listens: the dev server's
// websocket stream in-process, or other tooling through a Redis channel.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Message represents a pub/sub message
type Message struct {
	// Channel is the channel the message was published to
	Channel string `json:"channel"`

	// Payload is the message content
	Payload []byte `json:"payload"`
}

// PubSub is the interface for pub/sub backends.
// Implementations should handle concurrent access safely.
type PubSub interface {
	// Publish sends a message to all subscribers of a channel.
	Publish(ctx context.Context, channel string, payload []byte) error

	// Subscribe returns a channel that receives messages published to the given channel.
	// The returned channel is closed when the context is cancelled or Close is called.
	// Multiple calls to Subscribe with the same channel create independent subscriptions.
	Subscribe(ctx context.Context, channel string) (<-chan Message, error)

	// Close releases all resources and closes all subscriptions.
	Close() error
}

// EventsChannel is the default channel optimizer events are published on
const EventsChannel = "unbarrel:events"

// EventType names what happened
type EventType string

const (
	EventEntryAnalyzed    EventType = "entry.analyzed"
	EventEntryInvalidated EventType = "entry.invalidated"
	EventModuleRewritten  EventType = "module.rewritten"
	EventDiagnostic       EventType = "diagnostic"
)

// Event is the payload of every message on the events channel.
type Event struct {
	ID   string         `json:"id"`
	Type EventType      `json:"type"`
	Path string         `json:"path"`
	Time time.Time      `json:"time"`
	Data map[string]any `json:"data,omitempty"`
}

// NewEvent creates an event with a fresh ID.
func NewEvent(typ EventType, path string, data map[string]any) Event {
	return Event{
		ID:   uuid.NewString(),
		Type: typ,
		Path: path,
		Time: time.Now().UTC(),
		Data: data,
	}
}

// PublishEvent encodes ev and publishes it on channel.
func PublishEvent(ctx context.Context, ps PubSub, channel string, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return ps.Publish(ctx, channel, payload)
}

// DecodeEvent decodes a message published with PublishEvent.
func DecodeEvent(msg Message) (Event, error) {
	var ev Event
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return Event{}, fmt.Errorf("decode event from %s: %w", msg.Channel, err)
	}
	return ev, nil
}
