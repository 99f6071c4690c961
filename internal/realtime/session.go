package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/elliot-conan/mindwellness-chat/internal/domain"
)

// StatusTimes is one message's authoritative receipt pair as reported
// by persistence.
type StatusTimes struct {
	DeliveredAt *time.Time
	ReadAt      *time.Time
}

// Persister is the slice of the persistence contract the session needs:
// two idempotent status procedures returning the server-assigned
// timestamp, and a snapshot query backing the reconciliation pull.
type Persister interface {
	MarkDelivered(ctx context.Context, messageID string) (time.Time, error)
	MarkRead(ctx context.Context, messageID string) (time.Time, error)
	StatusSnapshot(ctx context.Context, roomID string) (map[string]StatusTimes, error)
}

// SessionConfig tunes one room session. Zero durations fall back to the
// defaults the browser client shipped with.
type SessionConfig struct {
	RoomID     string
	ObserverID string

	// DeliverDebounce delays the delivered mark after a live arrival so
	// it cannot race the sender's own local echo.
	DeliverDebounce time.Duration
	// ReadSettle delays the read mark after the room becomes visible
	// until the messages are actually on screen.
	ReadSettle time.Duration
	// RefreshInterval paces the reconciliation pull that repairs missed
	// broadcast events from persistence.
	RefreshInterval time.Duration
}

func (c *SessionConfig) defaults() {
	if c.DeliverDebounce <= 0 {
		c.DeliverDebounce = 500 * time.Millisecond
	}
	if c.ReadSettle <= 0 {
		c.ReadSettle = time.Second
	}
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = 5 * time.Second
	}
}

// Session is the delivery/read receipt state machine for one observer
// in one open room. It owns the channel subscription lifecycle, decides
// when a message transitions Sent -> Delivered -> Read from this
// observer's point of view, and propagates each transition three ways:
// the local store (synchronous), the broadcast channel (so peer clients
// update immediately), and persistence (best effort, asynchronous).
//
// Transitions are one-way; every merge goes through the store's
// forward-only rule, so re-observing an already read message never
// regresses it. Persistence failures are logged and left for the next
// reconciliation pull; nothing here surfaces as a hard failure.
type Session struct {
	cfg     SessionConfig
	store   *Store
	ch      Channel
	persist Persister
	log     *zap.SugaredLogger

	onChange func()

	mu       sync.Mutex
	deliverT map[string]*time.Timer
	readT    *time.Timer
	closed   bool
	done     chan struct{}
}

func NewSession(cfg SessionConfig, store *Store, ch Channel, persist Persister, log *zap.SugaredLogger) *Session {
	cfg.defaults()
	return &Session{
		cfg:      cfg,
		store:    store,
		ch:       ch,
		persist:  persist,
		log:      log,
		deliverT: make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}
}

// Store exposes the session's message store for rendering.
func (s *Session) Store() *Store { return s.store }

// OnChange registers a callback fired after any store mutation the
// session performs. Consumers re-derive their view from the store; the
// callback carries no payload on purpose.
func (s *Session) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Open subscribes to the room channel, registers the event handlers and
// starts the reconciliation loop. It returns once the transport has
// acknowledged the subscription.
func (s *Session) Open(ctx context.Context) error {
	s.ch.On(EventMessage, s.handleLiveMessage)
	s.ch.On(EventDelivered, s.handleStatus(FieldDelivered))
	s.ch.On(EventRead, s.handleStatus(FieldRead))
	if err := s.ch.Open(ctx); err != nil {
		return err
	}
	go s.refreshLoop()
	return nil
}

// LoadHistory seeds the store from the persisted page and batch-marks
// every loaded message from another author that is not yet delivered,
// sequentially, each producing its own propagation.
func (s *Session) LoadHistory(ctx context.Context, msgs []domain.Message) {
	s.store.LoadHistory(msgs)
	s.notify()
	for _, m := range s.store.PendingDelivery(s.cfg.ObserverID) {
		s.markDelivered(ctx, m.ID)
	}
}

// Publish applies the observer's own outgoing message locally and
// broadcasts it. Persistence of the message row is the caller's
// concern (write-through happens above this layer).
func (s *Session) Publish(ctx context.Context, m domain.Message) error {
	if !s.ch.Connected() {
		return ErrNotConnected
	}
	s.store.ApplyLive(m)
	s.notify()
	return s.ch.Send(ctx, EventMessage, m)
}

// RoomVisible tells the session the room view is on screen. After a
// settle delay, every message unread by this observer is marked read
// sequentially. Calling it again restarts the delay.
func (s *Session) RoomVisible() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.readT != nil {
		s.readT.Stop()
	}
	s.readT = time.AfterFunc(s.cfg.ReadSettle, func() {
		ctx := context.Background()
		for _, m := range s.store.Unread(s.cfg.ObserverID) {
			s.markRead(ctx, m.ID)
		}
	})
}

// Close tears the session down: pending timers are cancelled so they
// cannot fire against a closed subscription, the reconciliation loop
// stops, and the channel is unsubscribed. Close is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for id, t := range s.deliverT {
		t.Stop()
		delete(s.deliverT, id)
	}
	if s.readT != nil {
		s.readT.Stop()
		s.readT = nil
	}
	close(s.done)
	s.mu.Unlock()
	return s.ch.Close()
}

func (s *Session) handleLiveMessage(payload []byte) {
	var m domain.Message
	if err := json.Unmarshal(payload, &m); err != nil {
		s.log.Warnw("drop malformed message event", "room", s.cfg.RoomID, "err", err)
		return
	}
	if !s.store.ApplyLive(m) {
		// Own echo or duplicate delivery.
		return
	}
	s.notify()
	if m.OwnedBy(s.cfg.ObserverID) {
		return
	}
	s.scheduleDeliver(m.ID)
}

func (s *Session) handleStatus(field StatusField) Handler {
	return func(payload []byte) {
		var p StatusPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			s.log.Warnw("drop malformed status event", "room", s.cfg.RoomID, "err", err)
			return
		}
		if s.store.MergeStatus(p.MessageID, field, p.Timestamp) {
			s.notify()
		}
	}
}

func (s *Session) scheduleDeliver(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if _, pending := s.deliverT[id]; pending {
		return
	}
	s.deliverT[id] = time.AfterFunc(s.cfg.DeliverDebounce, func() {
		s.mu.Lock()
		delete(s.deliverT, id)
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return
		}
		s.markDelivered(context.Background(), id)
	})
}

func (s *Session) markDelivered(ctx context.Context, id string) {
	s.transition(ctx, id, FieldDelivered, EventDelivered, s.persist.MarkDelivered)
}

func (s *Session) markRead(ctx context.Context, id string) {
	s.transition(ctx, id, FieldRead, EventRead, s.persist.MarkRead)
}

// transition performs one receipt transition: local merge first, then
// the broadcast echo, then the best-effort persistence write. The local
// state is already updated when either propagation fails, so the user
// never sees the failure; the next reconciliation pull squares it up.
func (s *Session) transition(ctx context.Context, id string, field StatusField, ev Event, persist func(context.Context, string) (time.Time, error)) {
	ts := time.Now().UTC()
	if !s.store.MergeStatus(id, field, ts) {
		return
	}
	s.notify()

	if err := s.ch.Send(ctx, ev, StatusPayload{MessageID: id, Timestamp: ts}); err != nil {
		s.log.Warnw("status broadcast failed", "room", s.cfg.RoomID, "message", id, "event", ev, "err", err)
	}

	go func() {
		pctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := persist(pctx, id); err != nil {
			s.log.Warnw("status persistence failed", "room", s.cfg.RoomID, "message", id, "field", field, "err", err)
		}
	}()
}

// refreshLoop is the correctness backstop for dropped broadcasts: it
// periodically re-fetches authoritative receipts from persistence and
// merges them in under the same forward-only rule.
func (s *Session) refreshLoop() {
	ticker := time.NewTicker(s.cfg.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.refresh()
		}
	}
}

func (s *Session) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snap, err := s.persist.StatusSnapshot(ctx, s.cfg.RoomID)
	if err != nil {
		s.log.Warnw("status refresh failed", "room", s.cfg.RoomID, "err", err)
		return
	}
	changed := false
	for id, st := range snap {
		if st.DeliveredAt != nil && s.store.MergeStatus(id, FieldDelivered, *st.DeliveredAt) {
			changed = true
		}
		if st.ReadAt != nil && s.store.MergeStatus(id, FieldRead, *st.ReadAt) {
			changed = true
		}
	}
	if changed {
		s.notify()
	}
}

func (s *Session) notify() {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}
