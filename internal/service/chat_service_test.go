package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/elliot-conan/mindwellness-chat/internal/broadcast"
	"github.com/elliot-conan/mindwellness-chat/internal/domain"
	"github.com/elliot-conan/mindwellness-chat/internal/realtime"
	"github.com/elliot-conan/mindwellness-chat/internal/repository"
)

// memPersistence keeps messages in memory and satisfies the message
// storage contract of the chat path.
type memPersistence struct {
	mu       sync.Mutex
	messages map[string]*domain.Message
}

func newMemPersistence() *memPersistence {
	return &memPersistence{messages: make(map[string]*domain.Message)}
}

func (m *memPersistence) Insert(ctx context.Context, msg *domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.messages[msg.ID]; ok {
		return nil
	}
	cp := *msg
	m.messages[msg.ID] = &cp
	return nil
}

func (m *memPersistence) Get(ctx context.Context, id string) (*domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *msg
	return &cp, nil
}

func (m *memPersistence) History(ctx context.Context, roomID string) ([]domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Message{}
	for _, msg := range m.messages {
		if msg.RoomID == roomID {
			out = append(out, *msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memPersistence) MarkDelivered(ctx context.Context, id string) (time.Time, error) {
	return m.mark(id, true)
}

func (m *memPersistence) MarkRead(ctx context.Context, id string) (time.Time, error) {
	return m.mark(id, false)
}

func (m *memPersistence) mark(id string, delivered bool) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	now := time.Now().UTC()
	if !ok {
		return now, nil
	}
	if delivered && msg.DeliveredAt == nil {
		msg.DeliveredAt = &now
	}
	if !delivered && msg.ReadAt == nil {
		msg.ReadAt = &now
	}
	return now, nil
}

func (m *memPersistence) StatusSnapshot(ctx context.Context, roomID string) (map[string]realtime.StatusTimes, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]realtime.StatusTimes)
	for id, msg := range m.messages {
		if msg.RoomID == roomID {
			out[id] = realtime.StatusTimes{DeliveredAt: msg.DeliveredAt, ReadAt: msg.ReadAt}
		}
	}
	return out, nil
}

func (m *memPersistence) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

// memRooms is the room side of the storage contract.
type memRooms struct {
	mu      sync.Mutex
	rooms   map[string]*domain.Room
	touched int
}

func newMemRooms(rooms ...*domain.Room) *memRooms {
	m := &memRooms{rooms: make(map[string]*domain.Room)}
	for _, r := range rooms {
		m.rooms[r.ID] = r
	}
	return m
}

func (m *memRooms) Get(ctx context.Context, id string) (*domain.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memRooms) Touch(ctx context.Context, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touched++
	return nil
}

func newTestChatService(bus *broadcast.LoopbackBus, store *memPersistence, rooms *memRooms) *ChatService {
	tuning := SessionTuning{
		DeliverDebounce: 10 * time.Millisecond,
		ReadSettle:      10 * time.Millisecond,
		RefreshInterval: time.Hour,
	}
	factory := func(roomID string) realtime.Channel { return bus.Channel(roomID) }
	return NewChatService(store, rooms, factory, nil, tuning, zap.NewNop().Sugar())
}

func groupRoom(id string, participants ...string) *domain.Room {
	return &domain.Room{
		ID:           id,
		Name:         "room " + id,
		RoomType:     domain.RoomGroup,
		Status:       domain.RoomActive,
		Participants: participants,
	}
}

func profile(id string) *domain.Profile {
	return &domain.Profile{ID: id, Username: "user-" + id, Role: domain.RolePatient}
}

func TestSendWritesThroughAndReachesPeer(t *testing.T) {
	bus := broadcast.NewLoopbackBus()
	store := newMemPersistence()
	svc := newTestChatService(bus, store, newMemRooms(groupRoom("room-1", "alice", "bob")))
	ctx := context.Background()

	alice, err := svc.OpenRoom(ctx, "room-1", profile("alice"))
	require.NoError(t, err)
	defer alice.Close()
	bob, err := svc.OpenRoom(ctx, "room-1", profile("bob"))
	require.NoError(t, err)
	defer bob.Close()

	res, err := alice.Send(ctx, "hello there")
	require.NoError(t, err)
	assert.Empty(t, res.CrisisKeywords)
	assert.Equal(t, "user-alice", res.Message.AuthorName)

	// Both live views hold the message under the same client-generated id.
	require.Eventually(t, func() bool {
		return len(bob.View()) == 1 && len(alice.View()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, res.Message.ID, bob.View()[0].ID)

	// The async write-through lands in persistence.
	require.Eventually(t, func() bool { return store.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestSendRejectsEmptyContent(t *testing.T) {
	bus := broadcast.NewLoopbackBus()
	svc := newTestChatService(bus, newMemPersistence(), newMemRooms(groupRoom("room-1", "alice")))

	sess, err := svc.OpenRoom(context.Background(), "room-1", profile("alice"))
	require.NoError(t, err)
	defer sess.Close()

	_, err = sess.Send(context.Background(), "")
	require.ErrorIs(t, err, ErrEmptyMessage)
}

func TestSendSurfacesCrisisResources(t *testing.T) {
	bus := broadcast.NewLoopbackBus()
	svc := newTestChatService(bus, newMemPersistence(), newMemRooms(groupRoom("room-1", "alice")))

	sess, err := svc.OpenRoom(context.Background(), "room-1", profile("alice"))
	require.NoError(t, err)
	defer sess.Close()

	res, err := sess.Send(context.Background(), "everything feels hopeless")
	require.NoError(t, err)
	assert.Equal(t, []string{"hopeless"}, res.CrisisKeywords)
	assert.NotEmpty(t, res.Resources)
}

func TestOpenRoomSeedsHistoryPage(t *testing.T) {
	bus := broadcast.NewLoopbackBus()
	store := newMemPersistence()
	created := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, store.Insert(context.Background(), &domain.Message{
		ID: "old-1", RoomID: "room-1", AuthorID: "bob", AuthorName: "user-bob",
		Content: "earlier message", CreatedAt: created,
	}))

	svc := newTestChatService(bus, store, newMemRooms(groupRoom("room-1", "alice", "bob")))
	alice, err := svc.OpenRoom(context.Background(), "room-1", profile("alice"))
	require.NoError(t, err)
	defer alice.Close()

	view := alice.View()
	require.Len(t, view, 1)
	assert.Equal(t, "old-1", view[0].ID)

	// Loading history marks the other author's message delivered.
	require.Eventually(t, func() bool {
		v := alice.View()
		return len(v) == 1 && v[0].DeliveredAt != nil
	}, time.Second, 5*time.Millisecond)
}

func TestReceiptMarksRequireParticipantNonAuthor(t *testing.T) {
	bus := broadcast.NewLoopbackBus()
	store := newMemPersistence()
	ctx := context.Background()
	require.NoError(t, store.Insert(ctx, &domain.Message{
		ID: "msg-1", RoomID: "room-1", AuthorID: "alice", AuthorName: "user-alice",
		Content: "hello", CreatedAt: time.Now().UTC(),
	}))
	svc := newTestChatService(bus, store, newMemRooms(groupRoom("room-1", "alice", "bob")))

	// Outsiders cannot flip receipts in rooms they are not part of.
	_, err := svc.MarkDelivered(ctx, "msg-1", "mallory")
	require.ErrorIs(t, err, ErrNotParticipant)
	_, err = svc.MarkRead(ctx, "msg-1", "mallory")
	require.ErrorIs(t, err, ErrNotParticipant)

	// The author cannot acknowledge their own message.
	_, err = svc.MarkRead(ctx, "msg-1", "alice")
	require.ErrorIs(t, err, ErrOwnReceipt)

	// A fellow participant can.
	_, err = svc.MarkDelivered(ctx, "msg-1", "bob")
	require.NoError(t, err)
	msg, err := store.Get(ctx, "msg-1")
	require.NoError(t, err)
	assert.NotNil(t, msg.DeliveredAt)

	_, err = svc.MarkRead(ctx, "unknown", "bob")
	require.ErrorIs(t, err, repository.ErrNotFound)
}
