// Package broadcast provides the transport implementations behind the
// realtime.Channel contract: Redis pub/sub for deployments and an
// in-process loopback bus for tests and single-node setups.
package broadcast

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/redis/go-redis/v9"

	"github.com/elliot-conan/mindwellness-chat/internal/realtime"
)

// envelope is the wire frame shared by both channel implementations.
type envelope struct {
	Event   realtime.Event  `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// ChannelName derives the pub/sub channel for a room.
func ChannelName(roomID string) string { return "room:" + roomID }

// RedisChannel is a realtime.Channel over one Redis pub/sub channel.
// Redis delivers published messages back to the publishing subscriber,
// which matches the self-echo contract the store deduplicates against.
type RedisChannel struct {
	rdb  *redis.Client
	name string

	mu       sync.RWMutex
	handlers map[realtime.Event][]realtime.Handler
	sub      *redis.PubSub

	connected atomic.Bool
	closeOnce sync.Once
}

func NewRedisChannel(rdb *redis.Client, roomID string) *RedisChannel {
	return &RedisChannel{
		rdb:      rdb,
		name:     ChannelName(roomID),
		handlers: make(map[realtime.Event][]realtime.Handler),
	}
}

// Open subscribes and blocks until Redis acknowledges the
// subscription; only then does Connected flip true. Calling Open on an
// already open channel is a no-op.
func (c *RedisChannel) Open(ctx context.Context) error {
	c.mu.Lock()
	if c.sub != nil {
		c.mu.Unlock()
		return nil
	}
	sub := c.rdb.Subscribe(ctx, c.name)
	c.sub = sub
	c.mu.Unlock()

	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		c.mu.Lock()
		c.sub = nil
		c.mu.Unlock()
		return err
	}
	c.connected.Store(true)

	go c.dispatch(sub.Channel())
	return nil
}

func (c *RedisChannel) dispatch(msgs <-chan *redis.Message) {
	for m := range msgs {
		var env envelope
		if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
			continue
		}
		c.mu.RLock()
		hs := c.handlers[env.Event]
		c.mu.RUnlock()
		for _, h := range hs {
			h(env.Payload)
		}
	}
}

func (c *RedisChannel) Send(ctx context.Context, event realtime.Event, payload any) error {
	if !c.connected.Load() {
		return realtime.ErrNotConnected
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(envelope{Event: event, Payload: raw})
	if err != nil {
		return err
	}
	return c.rdb.Publish(ctx, c.name, frame).Err()
}

func (c *RedisChannel) On(event realtime.Event, h realtime.Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = append(c.handlers[event], h)
}

func (c *RedisChannel) Connected() bool { return c.connected.Load() }

func (c *RedisChannel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.connected.Store(false)
		c.mu.Lock()
		sub := c.sub
		c.sub = nil
		c.mu.Unlock()
		if sub != nil {
			err = sub.Close()
		}
	})
	return err
}
