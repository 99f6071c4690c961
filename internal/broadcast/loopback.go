package broadcast

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/elliot-conan/mindwellness-chat/internal/realtime"
)

// LoopbackBus is an in-process stand-in for the pub/sub transport. Every
// channel opened for the same room sees every published event, the
// publisher included, delivered synchronously. Tests use it to exercise
// the full fan-out path without a broker.
type LoopbackBus struct {
	mu   sync.RWMutex
	subs map[string][]*LoopbackChannel
}

func NewLoopbackBus() *LoopbackBus {
	return &LoopbackBus{subs: make(map[string][]*LoopbackChannel)}
}

// Channel creates an unopened channel bound to roomID.
func (b *LoopbackBus) Channel(roomID string) *LoopbackChannel {
	return &LoopbackChannel{
		bus:      b,
		room:     roomID,
		handlers: make(map[realtime.Event][]realtime.Handler),
	}
}

func (b *LoopbackBus) attach(c *LoopbackChannel) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[c.room] = append(b.subs[c.room], c)
}

func (b *LoopbackBus) detach(c *LoopbackChannel) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cur := b.subs[c.room]
	next := cur[:0]
	for _, s := range cur {
		if s != c {
			next = append(next, s)
		}
	}
	if len(next) == 0 {
		delete(b.subs, c.room)
	} else {
		b.subs[c.room] = next
	}
}

func (b *LoopbackBus) publish(room string, frame envelope) {
	b.mu.RLock()
	subs := append([]*LoopbackChannel(nil), b.subs[room]...)
	b.mu.RUnlock()
	for _, s := range subs {
		s.deliver(frame)
	}
}

// LoopbackChannel implements realtime.Channel against a LoopbackBus.
type LoopbackChannel struct {
	bus  *LoopbackBus
	room string

	mu        sync.RWMutex
	handlers  map[realtime.Event][]realtime.Handler
	connected bool
}

func (c *LoopbackChannel) Open(ctx context.Context) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return nil
	}
	c.connected = true
	c.mu.Unlock()
	c.bus.attach(c)
	return nil
}

func (c *LoopbackChannel) Send(ctx context.Context, event realtime.Event, payload any) error {
	if !c.Connected() {
		return realtime.ErrNotConnected
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	c.bus.publish(c.room, envelope{Event: event, Payload: raw})
	return nil
}

func (c *LoopbackChannel) On(event realtime.Event, h realtime.Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = append(c.handlers[event], h)
}

func (c *LoopbackChannel) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *LoopbackChannel) Close() error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return nil
	}
	c.connected = false
	c.mu.Unlock()
	c.bus.detach(c)
	return nil
}

func (c *LoopbackChannel) deliver(frame envelope) {
	c.mu.RLock()
	hs := append([]realtime.Handler(nil), c.handlers[frame.Event]...)
	c.mu.RUnlock()
	for _, h := range hs {
		h(frame.Payload)
	}
}
