package domain

import "time"

type RoomType string

const (
	RoomOneToOne RoomType = "1:1"
	RoomGroup    RoomType = "group"
)

type RoomStatus string

const (
	RoomPending RoomStatus = "pending"
	RoomActive  RoomStatus = "active"
	RoomClosed  RoomStatus = "closed"
)

// Room is a conversation between a patient and a professional (1:1) or
// a support group. A 1:1 room starts as a pending message request and
// becomes active only after the professional accepts it.
type Room struct {
	ID           string     `bson:"_id" json:"id"`
	Name         string     `bson:"name" json:"name"`
	Description  string     `bson:"description,omitempty" json:"description,omitempty"`
	RoomType     RoomType   `bson:"room_type" json:"room_type"`
	Status       RoomStatus `bson:"status" json:"status"`
	IsPrivate    bool       `bson:"is_private" json:"is_private"`
	CreatedBy    string     `bson:"created_by,omitempty" json:"created_by,omitempty"`
	PatientID    string     `bson:"patient_id,omitempty" json:"patient_id,omitempty"`
	DoctorID     string     `bson:"doctor_id,omitempty" json:"doctor_id,omitempty"`
	Participants []string   `bson:"participants" json:"participants"`
	CreatedAt    time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `bson:"updated_at" json:"updated_at"`
}

func (r *Room) HasParticipant(profileID string) bool {
	for _, p := range r.Participants {
		if p == profileID {
			return true
		}
	}
	return false
}
