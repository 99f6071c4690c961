package broadcast

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elliot-conan/mindwellness-chat/internal/realtime"
)

func TestLoopbackFanOutIncludesSender(t *testing.T) {
	bus := NewLoopbackBus()
	a := bus.Channel("room-1")
	b := bus.Channel("room-1")
	other := bus.Channel("room-2")

	var got []string
	collect := func(tag string) realtime.Handler {
		return func(payload []byte) { got = append(got, tag+":"+string(payload)) }
	}
	a.On(realtime.EventMessage, collect("a"))
	b.On(realtime.EventMessage, collect("b"))
	other.On(realtime.EventMessage, collect("other"))

	ctx := context.Background()
	require.NoError(t, a.Open(ctx))
	require.NoError(t, b.Open(ctx))
	require.NoError(t, other.Open(ctx))

	require.NoError(t, a.Send(ctx, realtime.EventMessage, "hi"))

	// Same room sees the frame, the publisher included; other rooms don't.
	assert.Equal(t, []string{`a:"hi"`, `b:"hi"`}, got)
}

func TestLoopbackSendGatedOnOpen(t *testing.T) {
	bus := NewLoopbackBus()
	c := bus.Channel("room-1")

	err := c.Send(context.Background(), realtime.EventMessage, "hi")
	require.ErrorIs(t, err, realtime.ErrNotConnected)

	require.NoError(t, c.Open(context.Background()))
	assert.True(t, c.Connected())
	require.NoError(t, c.Close())
	assert.False(t, c.Connected())

	// Closed channels no longer receive.
	d := bus.Channel("room-1")
	require.NoError(t, d.Open(context.Background()))
	require.NoError(t, d.Send(context.Background(), realtime.EventMessage, "bye"))
}

func TestLoopbackOpenIdempotent(t *testing.T) {
	bus := NewLoopbackBus()
	c := bus.Channel("room-1")

	seen := 0
	c.On(realtime.EventMessage, func([]byte) { seen++ })

	ctx := context.Background()
	require.NoError(t, c.Open(ctx))
	require.NoError(t, c.Open(ctx)) // second open must not double-subscribe

	require.NoError(t, c.Send(ctx, realtime.EventMessage, "x"))
	assert.Equal(t, 1, seen)
}
