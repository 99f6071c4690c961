package domain

import "time"

// MessageStatus is the display-level status of a message from the
// recipient's point of view.
type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

// Message is a single chat line. The ID is generated by the sending
// client, not assigned by the server, so the same message keeps one
// identity across the live broadcast and later history loads.
type Message struct {
	ID          string     `bson:"_id" json:"id"`
	RoomID      string     `bson:"room_id" json:"room_id"`
	AuthorID    string     `bson:"author_id" json:"author_id"`
	AuthorName  string     `bson:"author_name" json:"author_name"`
	RecipientID string     `bson:"recipient_id,omitempty" json:"recipient_id,omitempty"`
	Content     string     `bson:"content" json:"content"`
	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
	DeliveredAt *time.Time `bson:"delivered_at,omitempty" json:"delivered_at,omitempty"`
	ReadAt      *time.Time `bson:"read_at,omitempty" json:"read_at,omitempty"`
}

// DisplayStatus reports the status a client should render. A read
// message counts as read even when no delivered timestamp was ever
// observed locally.
func (m *Message) DisplayStatus() MessageStatus {
	switch {
	case m.ReadAt != nil:
		return StatusRead
	case m.DeliveredAt != nil:
		return StatusDelivered
	default:
		return StatusSent
	}
}

// OwnedBy compares by the stable profile identifier. Display names are
// mutable and may collide, so they are never used for identity.
func (m *Message) OwnedBy(profileID string) bool {
	return m.AuthorID == profileID
}
