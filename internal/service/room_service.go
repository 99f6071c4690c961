package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/elliot-conan/mindwellness-chat/internal/domain"
)

var (
	ErrNotParticipant = errors.New("profile is not a room participant")
	ErrNotPending     = errors.New("room is not a pending request")
	ErrNotDoctor      = errors.New("only the professional can act on a request")
	ErrNotInvitable   = errors.New("room does not accept invitations")
)

// RoomStore is the room storage surface the lifecycle operations need.
type RoomStore interface {
	Create(ctx context.Context, room *domain.Room) error
	Get(ctx context.Context, id string) (*domain.Room, error)
	ListForProfile(ctx context.Context, profileID string) ([]domain.Room, error)
	ListPublic(ctx context.Context) ([]domain.Room, error)
	SetStatus(ctx context.Context, id string, status domain.RoomStatus) error
	AddParticipant(ctx context.Context, roomID, profileID string) error
}

// ProfileStore resolves profile ids to rows.
type ProfileStore interface {
	Get(ctx context.Context, id string) (*domain.Profile, error)
}

// NotificationStore writes the notification rows lifecycle events emit.
type NotificationStore interface {
	Insert(ctx context.Context, n *domain.Notification) error
}

// RoomService owns the room lifecycle: a 1:1 room starts as a pending
// message request from a patient to a professional and becomes active
// only when the professional accepts; group rooms are active from
// creation, joinable by anyone when public and by invite when private.
type RoomService struct {
	rooms         RoomStore
	profiles      ProfileStore
	notifications NotificationStore
	log           *zap.SugaredLogger
}

func NewRoomService(
	rooms RoomStore,
	profiles ProfileStore,
	notifications NotificationStore,
	log *zap.SugaredLogger,
) *RoomService {
	return &RoomService{rooms: rooms, profiles: profiles, notifications: notifications, log: log}
}

// RequestOneToOne creates the pending 1:1 room and notifies the
// professional of the message request.
func (s *RoomService) RequestOneToOne(ctx context.Context, patient *domain.Profile, doctorID, name string) (*domain.Room, error) {
	doctor, err := s.profiles.Get(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	room := &domain.Room{
		ID:           uuid.NewString(),
		Name:         name,
		RoomType:     domain.RoomOneToOne,
		Status:       domain.RoomPending,
		IsPrivate:    true,
		CreatedBy:    patient.ID,
		PatientID:    patient.ID,
		DoctorID:     doctor.ID,
		Participants: []string{patient.ID, doctor.ID},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.rooms.Create(ctx, room); err != nil {
		return nil, err
	}

	n := &domain.Notification{
		ID:        uuid.NewString(),
		ProfileID: doctor.ID,
		Type:      domain.NotificationMessageRequest,
		Content:   patient.DisplayName() + " sent you a message request",
		Metadata: map[string]string{
			"room_id":    room.ID,
			"room_name":  room.Name,
			"patient_id": patient.ID,
		},
		CreatedAt: now,
	}
	if err := s.notifications.Insert(ctx, n); err != nil {
		s.log.Warnw("request notification insert failed", "room", room.ID, "err", err)
	}
	return room, nil
}

// CreateGroup creates an active group room owned by the creator.
func (s *RoomService) CreateGroup(ctx context.Context, creator *domain.Profile, name, description string, private bool) (*domain.Room, error) {
	now := time.Now().UTC()
	room := &domain.Room{
		ID:           uuid.NewString(),
		Name:         name,
		Description:  description,
		RoomType:     domain.RoomGroup,
		Status:       domain.RoomActive,
		IsPrivate:    private,
		CreatedBy:    creator.ID,
		Participants: []string{creator.ID},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.rooms.Create(ctx, room); err != nil {
		return nil, err
	}
	return room, nil
}

// HandleRequest accepts or declines a pending 1:1 request. Only the
// professional on the room may act on it.
func (s *RoomService) HandleRequest(ctx context.Context, roomID, doctorID string, accept bool) (*domain.Room, error) {
	room, err := s.rooms.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.RoomType != domain.RoomOneToOne || room.Status != domain.RoomPending {
		return nil, ErrNotPending
	}
	if room.DoctorID != doctorID {
		return nil, ErrNotDoctor
	}

	status := domain.RoomClosed
	if accept {
		status = domain.RoomActive
	}
	if err := s.rooms.SetStatus(ctx, roomID, status); err != nil {
		return nil, err
	}
	room.Status = status
	return room, nil
}

// JoinPublic adds a profile to a joinable group room.
func (s *RoomService) JoinPublic(ctx context.Context, roomID, profileID string) (*domain.Room, error) {
	room, err := s.rooms.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.RoomType != domain.RoomGroup || room.IsPrivate || room.Status != domain.RoomActive {
		return nil, ErrNotParticipant
	}
	if err := s.rooms.AddParticipant(ctx, roomID, profileID); err != nil {
		return nil, err
	}
	return s.rooms.Get(ctx, roomID)
}

// Invite adds another profile to a group room on behalf of an existing
// participant and notifies the invitee. Private group rooms gain
// members only through this path; 1:1 rooms are a fixed pair and never
// accept invites.
func (s *RoomService) Invite(ctx context.Context, inviter *domain.Profile, roomID, inviteeID string) (*domain.Room, error) {
	room, err := s.rooms.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.HasParticipant(inviter.ID) {
		return nil, ErrNotParticipant
	}
	if room.RoomType != domain.RoomGroup || room.Status != domain.RoomActive {
		return nil, ErrNotInvitable
	}
	invitee, err := s.profiles.Get(ctx, inviteeID)
	if err != nil {
		return nil, err
	}
	if room.HasParticipant(invitee.ID) {
		return room, nil
	}
	if err := s.rooms.AddParticipant(ctx, roomID, invitee.ID); err != nil {
		return nil, err
	}

	n := &domain.Notification{
		ID:        uuid.NewString(),
		ProfileID: invitee.ID,
		Type:      domain.NotificationRoomInvite,
		Content:   `You've been invited to join "` + room.Name + `"`,
		Metadata: map[string]string{
			"room_id":    room.ID,
			"room_name":  room.Name,
			"invited_by": inviter.ID,
		},
		CreatedAt: time.Now().UTC(),
	}
	if err := s.notifications.Insert(ctx, n); err != nil {
		s.log.Warnw("invite notification insert failed", "room", room.ID, "err", err)
	}
	return s.rooms.Get(ctx, roomID)
}

// ListForProfile returns the profile's rooms, most recently active
// first.
func (s *RoomService) ListForProfile(ctx context.Context, profileID string) ([]domain.Room, error) {
	return s.rooms.ListForProfile(ctx, profileID)
}

// ListPublic returns joinable group rooms.
func (s *RoomService) ListPublic(ctx context.Context) ([]domain.Room, error) {
	return s.rooms.ListPublic(ctx)
}

// Authorize checks the profile may open the room.
func (s *RoomService) Authorize(ctx context.Context, roomID, profileID string) (*domain.Room, error) {
	room, err := s.rooms.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.HasParticipant(profileID) {
		return nil, ErrNotParticipant
	}
	return room, nil
}
