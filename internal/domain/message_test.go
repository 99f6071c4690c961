package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDisplayStatus(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name        string
		deliveredAt *time.Time
		readAt      *time.Time
		want        MessageStatus
	}{
		{name: "no timestamps", want: StatusSent},
		{name: "delivered only", deliveredAt: &now, want: StatusDelivered},
		{name: "delivered and read", deliveredAt: &now, readAt: &now, want: StatusRead},
		{name: "read without delivered", readAt: &now, want: StatusRead},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Message{DeliveredAt: tt.deliveredAt, ReadAt: tt.readAt}
			assert.Equal(t, tt.want, m.DisplayStatus())
		})
	}
}

func TestOwnedBy(t *testing.T) {
	m := Message{ID: "m1", AuthorID: "p1", AuthorName: "Alice"}

	assert.True(t, m.OwnedBy("p1"))
	assert.False(t, m.OwnedBy("p2"))
	assert.False(t, m.OwnedBy("Alice"), "display names are not identities")
}
