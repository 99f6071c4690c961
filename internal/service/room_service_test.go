package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/elliot-conan/mindwellness-chat/internal/domain"
	"github.com/elliot-conan/mindwellness-chat/internal/repository"
)

type memRoomStore struct {
	mu    sync.Mutex
	rooms map[string]*domain.Room
	added int
}

func newMemRoomStore(rooms ...*domain.Room) *memRoomStore {
	m := &memRoomStore{rooms: make(map[string]*domain.Room)}
	for _, r := range rooms {
		m.rooms[r.ID] = r
	}
	return m
}

func (m *memRoomStore) Create(ctx context.Context, room *domain.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *room
	m.rooms[room.ID] = &cp
	return nil
}

func (m *memRoomStore) Get(ctx context.Context, id string) (*domain.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r
	cp.Participants = append([]string(nil), r.Participants...)
	return &cp, nil
}

func (m *memRoomStore) ListForProfile(ctx context.Context, profileID string) ([]domain.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Room{}
	for _, r := range m.rooms {
		if r.HasParticipant(profileID) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memRoomStore) ListPublic(ctx context.Context) ([]domain.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Room{}
	for _, r := range m.rooms {
		if r.RoomType == domain.RoomGroup && !r.IsPrivate && r.Status == domain.RoomActive {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memRoomStore) SetStatus(ctx context.Context, id string, status domain.RoomStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	if !ok {
		return repository.ErrNotFound
	}
	r.Status = status
	return nil
}

func (m *memRoomStore) AddParticipant(ctx context.Context, roomID, profileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[roomID]
	if !ok {
		return repository.ErrNotFound
	}
	r.Participants = append(r.Participants, profileID)
	m.added++
	return nil
}

type memProfiles struct {
	profiles map[string]*domain.Profile
}

func newMemProfiles(profiles ...*domain.Profile) *memProfiles {
	m := &memProfiles{profiles: make(map[string]*domain.Profile)}
	for _, p := range profiles {
		m.profiles[p.ID] = p
	}
	return m
}

func (m *memProfiles) Get(ctx context.Context, id string) (*domain.Profile, error) {
	p, ok := m.profiles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

type memNotifications struct {
	mu   sync.Mutex
	rows []domain.Notification
}

func (m *memNotifications) Insert(ctx context.Context, n *domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, *n)
	return nil
}

func newTestRoomService(rooms *memRoomStore, profiles *memProfiles, notifications *memNotifications) *RoomService {
	return NewRoomService(rooms, profiles, notifications, zap.NewNop().Sugar())
}

func TestInviteAddsMemberToPrivateGroup(t *testing.T) {
	room := groupRoom("room-1", "alice")
	room.IsPrivate = true
	store := newMemRoomStore(room)
	notifications := &memNotifications{}
	svc := newTestRoomService(store, newMemProfiles(profile("alice"), profile("bob")), notifications)

	got, err := svc.Invite(context.Background(), profile("alice"), "room-1", "bob")
	require.NoError(t, err)
	assert.True(t, got.HasParticipant("bob"))

	require.Len(t, notifications.rows, 1)
	n := notifications.rows[0]
	assert.Equal(t, "bob", n.ProfileID)
	assert.Equal(t, domain.NotificationRoomInvite, n.Type)
	assert.Equal(t, `You've been invited to join "room room-1"`, n.Content)
	assert.Equal(t, "room-1", n.Metadata["room_id"])
	assert.Equal(t, "alice", n.Metadata["invited_by"])
}

func TestInviteRejectsOutsideInviter(t *testing.T) {
	store := newMemRoomStore(groupRoom("room-1", "alice"))
	svc := newTestRoomService(store, newMemProfiles(profile("bob")), &memNotifications{})

	_, err := svc.Invite(context.Background(), profile("mallory"), "room-1", "bob")
	require.ErrorIs(t, err, ErrNotParticipant)
	assert.Zero(t, store.added)
}

func TestInviteRejectsNonInvitableRooms(t *testing.T) {
	oneToOne := &domain.Room{
		ID: "pair-1", RoomType: domain.RoomOneToOne, Status: domain.RoomActive,
		Participants: []string{"alice", "doc"},
	}
	closed := groupRoom("room-2", "alice")
	closed.Status = domain.RoomClosed
	store := newMemRoomStore(oneToOne, closed)
	svc := newTestRoomService(store, newMemProfiles(profile("bob")), &memNotifications{})

	_, err := svc.Invite(context.Background(), profile("alice"), "pair-1", "bob")
	require.ErrorIs(t, err, ErrNotInvitable)
	_, err = svc.Invite(context.Background(), profile("alice"), "room-2", "bob")
	require.ErrorIs(t, err, ErrNotInvitable)
	assert.Zero(t, store.added)
}

func TestInviteIsIdempotentForExistingMembers(t *testing.T) {
	store := newMemRoomStore(groupRoom("room-1", "alice", "bob"))
	notifications := &memNotifications{}
	svc := newTestRoomService(store, newMemProfiles(profile("alice"), profile("bob")), notifications)

	got, err := svc.Invite(context.Background(), profile("alice"), "room-1", "bob")
	require.NoError(t, err)
	assert.True(t, got.HasParticipant("bob"))
	assert.Zero(t, store.added)
	assert.Empty(t, notifications.rows)
}
