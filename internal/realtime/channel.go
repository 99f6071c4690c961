package realtime

import (
	"context"
	"errors"
	"time"
)

// Event kinds carried over a room's broadcast channel. The wire names
// match what the browser clients subscribe to.
type Event string

const (
	EventMessage   Event = "message"
	EventDelivered Event = "delivered_status"
	EventRead      Event = "read_status"
)

var ErrNotConnected = errors.New("realtime: channel not connected")

// Handler receives the raw JSON payload of one event.
type Handler func(payload []byte)

// Channel is one logical per-room broadcast channel. Open is idempotent
// per room per client and Connected reports true only after the
// transport has acknowledged the subscription. Send is fire-and-forget;
// handlers also see events the same client published (self-echo), which
// callers are expected to deduplicate.
type Channel interface {
	Open(ctx context.Context) error
	Send(ctx context.Context, event Event, payload any) error
	On(event Event, h Handler)
	Connected() bool
	Close() error
}

// StatusPayload is the body of a delivered_status or read_status event.
type StatusPayload struct {
	MessageID string    `json:"messageId"`
	Timestamp time.Time `json:"timestamp"`
}
