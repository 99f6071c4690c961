package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/elliot-conan/mindwellness-chat/internal/crisis"
	"github.com/elliot-conan/mindwellness-chat/internal/domain"
	"github.com/elliot-conan/mindwellness-chat/internal/events"
	"github.com/elliot-conan/mindwellness-chat/internal/realtime"
)

var (
	ErrEmptyMessage = errors.New("message content empty")
	ErrOwnReceipt   = errors.New("author cannot mark their own message")
)

// ChannelFactory builds the broadcast channel for one room. Wired to
// Redis pub/sub in production and the loopback bus in tests.
type ChannelFactory func(roomID string) realtime.Channel

// MessagePersistence is the message side of the storage contract: the
// realtime status procedures plus the write-through insert and the
// history page.
type MessagePersistence interface {
	realtime.Persister
	Insert(ctx context.Context, m *domain.Message) error
	Get(ctx context.Context, id string) (*domain.Message, error)
	History(ctx context.Context, roomID string) ([]domain.Message, error)
}

// RoomPersistence is the slice of room storage the chat path needs.
type RoomPersistence interface {
	Get(ctx context.Context, id string) (*domain.Room, error)
	Touch(ctx context.Context, roomID string) error
}

// SessionTuning carries the timing knobs every room session shares.
type SessionTuning struct {
	DeliverDebounce time.Duration
	ReadSettle      time.Duration
	RefreshInterval time.Duration
	RetainLimit     int
}

// ChatService opens room sessions and performs the send write-through:
// local store, broadcast channel, persistence row, notification event,
// crisis scan.
type ChatService struct {
	messages MessagePersistence
	rooms    RoomPersistence
	channels ChannelFactory
	producer *events.Producer
	tuning   SessionTuning
	log      *zap.SugaredLogger
}

func NewChatService(
	messages MessagePersistence,
	rooms RoomPersistence,
	channels ChannelFactory,
	producer *events.Producer,
	tuning SessionTuning,
	log *zap.SugaredLogger,
) *ChatService {
	return &ChatService{
		messages: messages,
		rooms:    rooms,
		channels: channels,
		producer: producer,
		tuning:   tuning,
		log:      log,
	}
}

// RoomSession is one observer's live view of one open room. Each open
// room per client gets its own store and session; nothing is shared
// across rooms.
type RoomSession struct {
	RoomID   string
	Observer *domain.Profile

	sess *realtime.Session
	svc  *ChatService
}

// SendResult reports what happened to one outgoing message. Crisis
// keywords, when present, make the UI surface the helpline resources.
type SendResult struct {
	Message        domain.Message    `json:"message"`
	CrisisKeywords []string          `json:"crisis_keywords,omitempty"`
	Resources      []crisis.Resource `json:"resources,omitempty"`
}

// OpenRoom subscribes the observer to the room's channel, loads the
// persisted history page and seeds the session from it. The returned
// session must be closed on room switch or disconnect.
func (s *ChatService) OpenRoom(ctx context.Context, roomID string, observer *domain.Profile) (*RoomSession, error) {
	store := realtime.NewStoreWithLimit(s.tuning.RetainLimit)
	sess := realtime.NewSession(realtime.SessionConfig{
		RoomID:          roomID,
		ObserverID:      observer.ID,
		DeliverDebounce: s.tuning.DeliverDebounce,
		ReadSettle:      s.tuning.ReadSettle,
		RefreshInterval: s.tuning.RefreshInterval,
	}, store, s.channels(roomID), s.messages, s.log)

	if err := sess.Open(ctx); err != nil {
		return nil, err
	}

	history, err := s.messages.History(ctx, roomID)
	if err != nil {
		_ = sess.Close()
		return nil, err
	}
	sess.LoadHistory(ctx, history)

	return &RoomSession{RoomID: roomID, Observer: observer, sess: sess, svc: s}, nil
}

// Send validates, builds and publishes one message, then asynchronously
// writes it through to persistence and the notification topic. The
// optimistic ordering mirrors the client behavior: the live view never
// waits on storage.
func (rs *RoomSession) Send(ctx context.Context, content string) (*SendResult, error) {
	if content == "" {
		return nil, ErrEmptyMessage
	}

	m := domain.Message{
		ID:         uuid.NewString(),
		RoomID:     rs.RoomID,
		AuthorID:   rs.Observer.ID,
		AuthorName: rs.Observer.DisplayName(),
		Content:    content,
		CreatedAt:  time.Now().UTC(),
	}
	if err := rs.sess.Publish(ctx, m); err != nil {
		return nil, err
	}

	hits := crisis.Scan(content)
	go rs.svc.persistSend(m, hits)

	res := &SendResult{Message: m, CrisisKeywords: hits}
	if len(hits) > 0 {
		res.Resources = crisis.Resources()
	}
	return res, nil
}

// persistSend is the best-effort tail of the send path. Failures are
// logged and left for the reconciliation pull or a later page load;
// the live view already moved on.
func (s *ChatService) persistSend(m domain.Message, hits []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.messages.Insert(ctx, &m); err != nil {
		s.log.Errorw("message persist failed", "room", m.RoomID, "message", m.ID, "err", err)
		return
	}
	if err := s.rooms.Touch(ctx, m.RoomID); err != nil {
		s.log.Warnw("room touch failed", "room", m.RoomID, "err", err)
	}
	if s.producer != nil {
		ev := events.MessageCreated{RoomID: m.RoomID, Message: m, Crisis: hits}
		if err := s.producer.PublishMessageCreated(ctx, ev); err != nil {
			s.log.Warnw("message.created publish failed", "room", m.RoomID, "err", err)
		}
	}
}

// MarkDelivered marks a message delivered on behalf of an observer that
// has no open channel. The caller must be a participant of the
// message's room and not its author; peers with a live session converge
// on the next reconciliation pull.
func (s *ChatService) MarkDelivered(ctx context.Context, messageID, observerID string) (time.Time, error) {
	return s.markReceipt(ctx, messageID, observerID, s.messages.MarkDelivered)
}

// MarkRead is the read counterpart of MarkDelivered, under the same
// authorization rules.
func (s *ChatService) MarkRead(ctx context.Context, messageID, observerID string) (time.Time, error) {
	return s.markReceipt(ctx, messageID, observerID, s.messages.MarkRead)
}

func (s *ChatService) markReceipt(ctx context.Context, messageID, observerID string, mark func(context.Context, string) (time.Time, error)) (time.Time, error) {
	m, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return time.Time{}, err
	}
	room, err := s.rooms.Get(ctx, m.RoomID)
	if err != nil {
		return time.Time{}, err
	}
	if !room.HasParticipant(observerID) {
		return time.Time{}, ErrNotParticipant
	}
	if m.OwnedBy(observerID) {
		return time.Time{}, ErrOwnReceipt
	}
	return mark(ctx, messageID)
}

// View returns the merged, sorted snapshot for rendering.
func (rs *RoomSession) View() []domain.Message { return rs.sess.Store().View() }

// Visible tells the tracker the room is on screen; unread messages get
// marked read after the settle delay.
func (rs *RoomSession) Visible() { rs.sess.RoomVisible() }

// OnChange registers the re-render callback.
func (rs *RoomSession) OnChange(fn func()) { rs.sess.OnChange(fn) }

// Close tears down the subscription and timers. Idempotent.
func (rs *RoomSession) Close() error { return rs.sess.Close() }
