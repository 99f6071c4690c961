package domain

import "time"

// Reaction is one emoji attached to one message by one profile.
type Reaction struct {
	ID        string    `bson:"_id" json:"id"`
	MessageID string    `bson:"message_id" json:"message_id"`
	ProfileID string    `bson:"profile_id" json:"profile_id"`
	Emoji     string    `bson:"emoji" json:"emoji"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// CommonReaction is an entry of the curated quick-pick emoji list.
type CommonReaction struct {
	Emoji        string `bson:"emoji" json:"emoji"`
	EmojiName    string `bson:"emoji_name" json:"emoji_name"`
	DisplayOrder int    `bson:"display_order" json:"-"`
}
