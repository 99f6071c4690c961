package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/elliot-conan/mindwellness-chat/internal/domain"
	"github.com/elliot-conan/mindwellness-chat/internal/events"
	"github.com/elliot-conan/mindwellness-chat/internal/repository"
)

// NotificationService turns message.created events into notification
// rows for the other room participants and serves the bell endpoints.
type NotificationService struct {
	notifications *repository.NotificationRepository
	rooms         *repository.RoomRepository
	log           *zap.SugaredLogger
}

func NewNotificationService(
	notifications *repository.NotificationRepository,
	rooms *repository.RoomRepository,
	log *zap.SugaredLogger,
) *NotificationService {
	return &NotificationService{notifications: notifications, rooms: rooms, log: log}
}

// HandleMessageCreated is the Kafka consumer handler. One notification
// row per participant except the author; failures are logged per row so
// one bad participant does not drop the rest.
func (s *NotificationService) HandleMessageCreated(key string, value []byte) {
	var ev events.MessageCreated
	if err := json.Unmarshal(value, &ev); err != nil {
		s.log.Warnw("drop malformed message.created", "key", key, "err", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	room, err := s.rooms.Get(ctx, ev.RoomID)
	if err != nil {
		s.log.Warnw("room lookup for notification failed", "room", ev.RoomID, "err", err)
		return
	}

	for _, pid := range room.Participants {
		if pid == ev.Message.AuthorID {
			continue
		}
		n := &domain.Notification{
			ID:        uuid.NewString(),
			ProfileID: pid,
			Type:      domain.NotificationMessage,
			Content:   ev.Message.AuthorName + " sent a message in " + room.Name,
			Metadata: map[string]string{
				"room_id":   room.ID,
				"room_name": room.Name,
			},
			CreatedAt: time.Now().UTC(),
		}
		if err := s.notifications.Insert(ctx, n); err != nil {
			s.log.Warnw("notification insert failed", "profile", pid, "room", room.ID, "err", err)
		}
	}
}

func (s *NotificationService) List(ctx context.Context, profileID string, limit int64) ([]domain.Notification, error) {
	return s.notifications.ListForProfile(ctx, profileID, limit)
}

func (s *NotificationService) UnreadCount(ctx context.Context, profileID string) (int64, error) {
	return s.notifications.UnreadCount(ctx, profileID)
}

func (s *NotificationService) MarkRead(ctx context.Context, id, profileID string) error {
	return s.notifications.MarkRead(ctx, id, profileID)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, profileID string) error {
	return s.notifications.MarkAllRead(ctx, profileID)
}
