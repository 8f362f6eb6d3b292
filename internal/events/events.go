// Package events publishes session lifecycle events for other marketplace
// services (audit, notifications). Delivery is best effort.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type Type string

const (
	SessionCreated     Type = "session.created"
	SessionRevoked     Type = "session.revoked"
	SessionsRevokedAll Type = "sessions.revoked_all"
	TokenBlacklisted   Type = "token.blacklisted"
)

// Event never carries token strings.
type Event struct {
	Type       Type              `json:"type"`
	UserID     string            `json:"user_id"`
	SessionID  string            `json:"session_id,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

func (e Event) encode() ([]byte, error) {
	return json.Marshal(e)
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the event types in publish order.
func (r *Recorder) Types() []Type {
	evs := r.Events()
	out := make([]Type, len(evs))
	for i, e := range evs {
		out[i] = e.Type
	}
	return out
}
