package realtime

import (
	"sort"
	"sync"
	"time"

	"github.com/elliot-conan/mindwellness-chat/internal/domain"
)

// StatusField names one of the two receipt timestamps on a message.
type StatusField string

const (
	FieldDelivered StatusField = "delivered"
	FieldRead      StatusField = "read"
)

// DefaultRetainLimit bounds how many messages one open room keeps in
// memory. Long-lived rooms evict their oldest messages instead of
// growing without bound; older pages stay available from persistence.
const DefaultRetainLimit = 500

// Store holds the reconciled message set for one open room. It merges
// two independent sources, the persisted history page and the live
// broadcast stream, which may race and overlap. All merges follow the
// forward-only rule: a receipt timestamp, once set, is never cleared
// and never moves backwards, so applying events in any order yields the
// same final state.
//
// A Store is owned by exactly one open room but its methods are safe
// for concurrent use, since channel handlers, timers and the periodic
// reconciliation pull all touch it.
type Store struct {
	mu           sync.RWMutex
	byID         map[string]*domain.Message
	evicted      map[string]struct{}
	evictedOrder []string
	limit        int
}

func NewStore() *Store {
	return NewStoreWithLimit(DefaultRetainLimit)
}

func NewStoreWithLimit(limit int) *Store {
	if limit <= 0 {
		limit = DefaultRetainLimit
	}
	return &Store{
		byID:    make(map[string]*domain.Message),
		evicted: make(map[string]struct{}),
		limit:   limit,
	}
}

// LoadHistory seeds the store from the persisted page. The caller
// supplies messages already ordered ascending by CreatedAt. Messages
// already present (a live arrival raced the load) keep their identity;
// any receipt timestamps carried by the history row merge in under the
// forward-only rule.
func (s *Store) LoadHistory(msgs []domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range msgs {
		m := msgs[i]
		if existing, ok := s.byID[m.ID]; ok {
			mergeForward(&existing.DeliveredAt, m.DeliveredAt)
			mergeForward(&existing.ReadAt, m.ReadAt)
			continue
		}
		if _, gone := s.evicted[m.ID]; gone {
			continue
		}
		s.insertLocked(m)
	}
}

// ApplyLive inserts a message arriving from the broadcast channel.
// A duplicate ID (the sender's own echo, or a redelivery) is a no-op:
// no second copy, and the existing receipt fields are left untouched.
// It reports whether the message was actually added.
func (s *Store) ApplyLive(m domain.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[m.ID]; ok {
		return false
	}
	if _, gone := s.evicted[m.ID]; gone {
		return false
	}
	s.insertLocked(m)
	return true
}

// MergeStatus updates one receipt field under the forward-only rule and
// reports whether anything changed. An unknown message ID is dropped
// silently: status events may race ahead of the message itself, and the
// periodic reconciliation pull repairs the gap later.
func (s *Store) MergeStatus(id string, field StatusField, ts time.Time) bool {
	if ts.IsZero() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[id]
	if !ok {
		return false
	}
	switch field {
	case FieldDelivered:
		return mergeForward(&m.DeliveredAt, &ts)
	case FieldRead:
		return mergeForward(&m.ReadAt, &ts)
	}
	return false
}

// View re-derives the merged snapshot from current state: every call
// returns a fresh copy sorted ascending by CreatedAt (ties broken by
// ID so the order is stable across clients).
func (s *Store) View() []domain.Message {
	s.mu.RLock()
	out := make([]domain.Message, 0, len(s.byID))
	for _, m := range s.byID {
		out = append(out, *m)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Get returns a copy of one message by ID.
func (s *Store) Get(id string) (domain.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.byID[id]
	if !ok {
		return domain.Message{}, false
	}
	return *m, true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// PendingDelivery lists messages authored by someone other than the
// observer that carry no delivered timestamp yet, in view order.
func (s *Store) PendingDelivery(observerID string) []domain.Message {
	return s.filter(func(m *domain.Message) bool {
		return !m.OwnedBy(observerID) && m.DeliveredAt == nil && m.ReadAt == nil
	})
}

// Unread lists messages authored by someone other than the observer
// that carry no read timestamp yet, in view order.
func (s *Store) Unread(observerID string) []domain.Message {
	return s.filter(func(m *domain.Message) bool {
		return !m.OwnedBy(observerID) && m.ReadAt == nil
	})
}

func (s *Store) filter(keep func(*domain.Message) bool) []domain.Message {
	all := s.View()
	out := all[:0]
	for i := range all {
		if keep(&all[i]) {
			out = append(out, all[i])
		}
	}
	return out
}

// insertLocked adds m and evicts the oldest message when the retention
// window overflows. Evicted IDs are remembered so a late redelivery of
// an evicted message cannot reappear as a duplicate. The tombstone set
// is bounded too: it ages out oldest-first once it holds limit entries,
// since a redelivery that late has long stopped being a realistic race.
func (s *Store) insertLocked(m domain.Message) {
	cp := m
	s.byID[m.ID] = &cp
	if len(s.byID) <= s.limit {
		return
	}
	var oldest *domain.Message
	for _, cand := range s.byID {
		if oldest == nil || cand.CreatedAt.Before(oldest.CreatedAt) ||
			(cand.CreatedAt.Equal(oldest.CreatedAt) && cand.ID < oldest.ID) {
			oldest = cand
		}
	}
	delete(s.byID, oldest.ID)
	s.evicted[oldest.ID] = struct{}{}
	s.evictedOrder = append(s.evictedOrder, oldest.ID)
	if len(s.evictedOrder) > s.limit {
		expired := s.evictedOrder[0]
		s.evictedOrder = s.evictedOrder[1:]
		delete(s.evicted, expired)
	}
}

// mergeForward applies the monotonic receipt rule: set when unset,
// advance when newer, ignore when older or equal. Reports change.
func mergeForward(dst **time.Time, src *time.Time) bool {
	if src == nil || src.IsZero() {
		return false
	}
	if *dst == nil || src.After(**dst) {
		ts := *src
		*dst = &ts
		return true
	}
	return false
}
