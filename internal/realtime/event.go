// Package realtime carries server-pushed transaction changes over a websocket.
//
// Every frame is a JSON object {"event": <name>, "data": <payload>, "ts": <time>}.
// Created and updated events carry a full transaction; deleted events carry
// only {"id": <server id>}.
package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fintrack/fintrack/internal/schema"
)

// EventKind names a push event.
type EventKind string

const (
	EventCreated EventKind = "transaction:created"
	EventUpdated EventKind = "transaction:updated"
	EventDeleted EventKind = "transaction:deleted"
)

// Frame is the wire envelope.
type Frame struct {
	Event     EventKind       `json:"event"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"ts,omitzero"`
}

// Event is a decoded push event.
type Event struct {
	Kind EventKind

	// Transaction is set for created and updated events.
	Transaction schema.Transaction

	// ID is the affected transaction id for every kind.
	ID string
}

type deletedData struct {
	ID string `json:"id"`
}

// NewFrame encodes ev as a frame stamped with now.
func NewFrame(ev Event, now time.Time) (Frame, error) {
	var payload any
	switch ev.Kind {
	case EventCreated, EventUpdated:
		payload = ev.Transaction
	case EventDeleted:
		payload = deletedData{ID: ev.ID}
	default:
		return Frame{}, fmt.Errorf("unknown event kind %q", ev.Kind)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, fmt.Errorf("failed to encode %s payload: %w", ev.Kind, err)
	}
	return Frame{Event: ev.Kind, Data: data, Timestamp: now}, nil
}

// Decode parses a raw frame into an Event.
func Decode(raw []byte) (Event, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Event{}, fmt.Errorf("failed to decode frame: %w", err)
	}
	return f.Decode()
}

// Decode parses the frame payload according to its event kind.
func (f Frame) Decode() (Event, error) {
	ev := Event{Kind: f.Event}

	switch f.Event {
	case EventCreated, EventUpdated:
		if err := json.Unmarshal(f.Data, &ev.Transaction); err != nil {
			return Event{}, fmt.Errorf("failed to decode %s payload: %w", f.Event, err)
		}
		ev.ID = ev.Transaction.ID
	case EventDeleted:
		var d deletedData
		if err := json.Unmarshal(f.Data, &d); err != nil {
			return Event{}, fmt.Errorf("failed to decode %s payload: %w", f.Event, err)
		}
		ev.ID = d.ID
	default:
		return Event{}, fmt.Errorf("unknown event kind %q", f.Event)
	}

	if ev.ID == "" {
		return Event{}, fmt.Errorf("%s event without id", f.Event)
	}
	return ev, nil
}
