package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/elliot-conan/mindwellness-chat/internal/domain"
)

type ReactionRepository struct {
	reactions *mongo.Collection
	common    *mongo.Collection
}

func NewReactionRepository(db *mongo.Database) *ReactionRepository {
	r := &ReactionRepository{
		reactions: db.Collection("message_reactions"),
		common:    db.Collection("common_reactions"),
	}
	_, _ = r.reactions.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys:    bson.D{{Key: "message_id", Value: 1}, {Key: "profile_id", Value: 1}, {Key: "emoji", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return r
}

// Toggle adds the reaction if absent, removes it if present, and
// reports whether it is now set.
func (r *ReactionRepository) Toggle(ctx context.Context, messageID, profileID, emoji string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	filter := bson.M{"message_id": messageID, "profile_id": profileID, "emoji": emoji}
	res, err := r.reactions.DeleteOne(ctx, filter)
	if err != nil {
		return false, err
	}
	if res.DeletedCount > 0 {
		return false, nil
	}
	_, err = r.reactions.InsertOne(ctx, &domain.Reaction{
		ID:        uuid.NewString(),
		MessageID: messageID,
		ProfileID: profileID,
		Emoji:     emoji,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *ReactionRepository) ListForMessage(ctx context.Context, messageID string) ([]domain.Reaction, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	cur, err := r.reactions.Find(ctx, bson.M{"message_id": messageID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []domain.Reaction{}
	for cur.Next(ctx) {
		var rx domain.Reaction
		if err := cur.Decode(&rx); err != nil {
			return nil, err
		}
		out = append(out, rx)
	}
	return out, cur.Err()
}

// CommonReactions returns the curated quick-pick list in display order.
func (r *ReactionRepository) CommonReactions(ctx context.Context) ([]domain.CommonReaction, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	opts := options.Find().SetSort(bson.D{{Key: "display_order", Value: 1}})
	cur, err := r.common.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []domain.CommonReaction{}
	for cur.Next(ctx) {
		var cr domain.CommonReaction
		if err := cur.Decode(&cr); err != nil {
			return nil, err
		}
		out = append(out, cr)
	}
	return out, cur.Err()
}
