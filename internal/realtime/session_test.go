package realtime_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/elliot-conan/mindwellness-chat/internal/broadcast"
	"github.com/elliot-conan/mindwellness-chat/internal/domain"
	"github.com/elliot-conan/mindwellness-chat/internal/realtime"
)

// fakePersister records status writes and serves a canned snapshot for
// the reconciliation pull.
type fakePersister struct {
	mu        sync.Mutex
	delivered map[string]time.Time
	read      map[string]time.Time
	snapshot  map[string]realtime.StatusTimes
}

func newFakePersister() *fakePersister {
	return &fakePersister{
		delivered: make(map[string]time.Time),
		read:      make(map[string]time.Time),
		snapshot:  make(map[string]realtime.StatusTimes),
	}
}

func (f *fakePersister) MarkDelivered(ctx context.Context, id string) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ts, ok := f.delivered[id]
	if !ok {
		ts = time.Now().UTC()
		f.delivered[id] = ts
	}
	return ts, nil
}

func (f *fakePersister) MarkRead(ctx context.Context, id string) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ts, ok := f.read[id]
	if !ok {
		ts = time.Now().UTC()
		f.read[id] = ts
	}
	return ts, nil
}

func (f *fakePersister) StatusSnapshot(ctx context.Context, roomID string) (map[string]realtime.StatusTimes, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]realtime.StatusTimes, len(f.snapshot))
	for k, v := range f.snapshot {
		out[k] = v
	}
	return out, nil
}

func (f *fakePersister) deliveredCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.delivered)
}

func (f *fakePersister) readCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.read)
}

func testConfig(room, observer string) realtime.SessionConfig {
	return realtime.SessionConfig{
		RoomID:          room,
		ObserverID:      observer,
		DeliverDebounce: 10 * time.Millisecond,
		ReadSettle:      10 * time.Millisecond,
		RefreshInterval: time.Hour, // effectively off unless a test wants it
	}
}

func openSession(t *testing.T, bus *broadcast.LoopbackBus, cfg realtime.SessionConfig, p realtime.Persister) *realtime.Session {
	t.Helper()
	s := realtime.NewSession(cfg, realtime.NewStore(), bus.Channel(cfg.RoomID), p, zap.NewNop().Sugar())
	require.NoError(t, s.Open(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPublishReachesPeerAndGetsDelivered(t *testing.T) {
	bus := broadcast.NewLoopbackBus()
	pa, pb := newFakePersister(), newFakePersister()
	alice := openSession(t, bus, testConfig("room-1", "alice"), pa)
	bob := openSession(t, bus, testConfig("room-1", "bob"), pb)

	m := msg("m1", "alice", time.Now().UTC())
	require.NoError(t, alice.Publish(context.Background(), m))

	// Bob receives the message and, after the debounce, marks it
	// delivered; the status echo updates Alice's view too.
	require.Eventually(t, func() bool {
		got, ok := alice.Store().Get("m1")
		return ok && got.DeliveredAt != nil
	}, time.Second, 5*time.Millisecond)

	got, _ := bob.Store().Get("m1")
	require.NotNil(t, got.DeliveredAt)
	assert.Equal(t, 1, pb.deliveredCount())
	// The author never marks their own message delivered.
	assert.Equal(t, 0, pa.deliveredCount())
}

func TestOwnEchoIsDeduplicated(t *testing.T) {
	bus := broadcast.NewLoopbackBus()
	p := newFakePersister()
	alice := openSession(t, bus, testConfig("room-1", "alice"), p)

	require.NoError(t, alice.Publish(context.Background(), msg("m1", "alice", time.Now().UTC())))

	// The loopback bus delivered Alice's own frame back to her; the
	// store still holds exactly one copy and no delivery was scheduled.
	assert.Equal(t, 1, alice.Store().Len())
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, p.deliveredCount())
}

func TestLoadHistoryBatchMarksDelivered(t *testing.T) {
	bus := broadcast.NewLoopbackBus()
	p := newFakePersister()
	bob := openSession(t, bus, testConfig("room-1", "bob"), p)

	deliveredAt := base.Add(time.Minute)
	already := msg("h1", "alice", base)
	already.DeliveredAt = &deliveredAt

	bob.LoadHistory(context.Background(), []domain.Message{
		already,
		msg("h2", "alice", base.Add(time.Minute)),
		msg("h3", "bob", base.Add(2*time.Minute)),
	})

	// Only the other author's undelivered message gets marked.
	require.Eventually(t, func() bool { return p.deliveredCount() == 1 }, time.Second, 5*time.Millisecond)
	got, _ := bob.Store().Get("h2")
	require.NotNil(t, got.DeliveredAt)
	own, _ := bob.Store().Get("h3")
	assert.Nil(t, own.DeliveredAt)
}

func TestRoomVisibleMarksUnreadAfterSettle(t *testing.T) {
	bus := broadcast.NewLoopbackBus()
	p := newFakePersister()
	bob := openSession(t, bus, testConfig("room-1", "bob"), p)

	bob.LoadHistory(context.Background(), []domain.Message{
		msg("h1", "alice", base),
		msg("h2", "alice", base.Add(time.Minute)),
		msg("h3", "bob", base.Add(2*time.Minute)),
	})
	bob.RoomVisible()

	require.Eventually(t, func() bool { return p.readCount() == 2 }, time.Second, 5*time.Millisecond)
	for _, id := range []string{"h1", "h2"} {
		got, _ := bob.Store().Get(id)
		require.NotNil(t, got.ReadAt, "message %s", id)
		assert.Equal(t, domain.StatusRead, got.DisplayStatus())
	}
	own, _ := bob.Store().Get("h3")
	assert.Nil(t, own.ReadAt)
}

func TestReconciliationPullSuppliesMissedStatus(t *testing.T) {
	bus := broadcast.NewLoopbackBus()
	p := newFakePersister()
	deliveredAt := time.Now().UTC()
	p.mu.Lock()
	p.snapshot["c1"] = realtime.StatusTimes{DeliveredAt: &deliveredAt}
	p.mu.Unlock()

	cfg := testConfig("room-1", "alice")
	cfg.RefreshInterval = 15 * time.Millisecond
	alice := openSession(t, bus, cfg, p)

	// Alice's own message arrives with no delivered mark; the broadcast
	// carrying delivered_status was dropped. The periodic pull repairs it.
	require.NoError(t, alice.Publish(context.Background(), msg("c1", "alice", time.Now().UTC())))
	require.Eventually(t, func() bool {
		got, ok := alice.Store().Get("c1")
		return ok && got.DeliveredAt != nil && got.DeliveredAt.Equal(deliveredAt)
	}, time.Second, 5*time.Millisecond)
}

func TestCloseCancelsPendingTimers(t *testing.T) {
	bus := broadcast.NewLoopbackBus()
	pa, pb := newFakePersister(), newFakePersister()
	alice := openSession(t, bus, testConfig("room-1", "alice"), pa)

	cfg := testConfig("room-1", "bob")
	cfg.DeliverDebounce = 50 * time.Millisecond
	bob := openSession(t, bus, cfg, pb)

	require.NoError(t, alice.Publish(context.Background(), msg("m1", "alice", time.Now().UTC())))
	// Tear Bob down before the debounce fires.
	require.NoError(t, bob.Close())

	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, 0, pb.deliveredCount())
}

func TestPublishRequiresConnection(t *testing.T) {
	bus := broadcast.NewLoopbackBus()
	s := realtime.NewSession(testConfig("room-1", "alice"), realtime.NewStore(), bus.Channel("room-1"), newFakePersister(), zap.NewNop().Sugar())

	err := s.Publish(context.Background(), msg("m1", "alice", time.Now().UTC()))
	require.ErrorIs(t, err, realtime.ErrNotConnected)
}

func TestOnChangeFiresOnMutations(t *testing.T) {
	bus := broadcast.NewLoopbackBus()
	p := newFakePersister()
	cfg := testConfig("room-1", "bob")
	s := realtime.NewSession(cfg, realtime.NewStore(), bus.Channel(cfg.RoomID), p, zap.NewNop().Sugar())

	var mu sync.Mutex
	fired := 0
	s.OnChange(func() {
		mu.Lock()
		fired++
		mu.Unlock()
	})
	require.NoError(t, s.Open(context.Background()))
	t.Cleanup(func() { _ = s.Close() })

	s.LoadHistory(context.Background(), []domain.Message{msg("h1", "alice", base)})
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return fired >= 2 // history load + delivered transition
	}, time.Second, 5*time.Millisecond)
}
