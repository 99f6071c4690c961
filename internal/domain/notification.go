package domain

import "time"

type NotificationType string

const (
	NotificationMessage        NotificationType = "message"
	NotificationMessageRequest NotificationType = "message_request"
	NotificationRoomInvite     NotificationType = "room_invitation"
	NotificationSystem         NotificationType = "system"
)

type Notification struct {
	ID        string            `bson:"_id" json:"id"`
	ProfileID string            `bson:"profile_id" json:"profile_id"`
	Type      NotificationType  `bson:"type" json:"type"`
	Content   string            `bson:"content" json:"content"`
	IsRead    bool              `bson:"is_read" json:"is_read"`
	Metadata  map[string]string `bson:"metadata,omitempty" json:"metadata,omitempty"`
	CreatedAt time.Time         `bson:"created_at" json:"created_at"`
}
