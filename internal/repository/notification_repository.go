package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/elliot-conan/mindwellness-chat/internal/domain"
)

type NotificationRepository struct {
	coll *mongo.Collection
}

func NewNotificationRepository(db *mongo.Database) *NotificationRepository {
	r := &NotificationRepository{coll: db.Collection("notifications")}
	_, _ = r.coll.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys: bson.D{{Key: "profile_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	return r
}

func (r *NotificationRepository) Insert(ctx context.Context, n *domain.Notification) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	_, err := r.coll.InsertOne(ctx, n)
	return err
}

// ListForProfile returns the newest notifications first.
func (r *NotificationRepository) ListForProfile(ctx context.Context, profileID string, limit int64) ([]domain.Notification, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if limit <= 0 {
		limit = 20
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit)
	cur, err := r.coll.Find(ctx, bson.M{"profile_id": profileID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []domain.Notification{}
	for cur.Next(ctx) {
		var n domain.Notification
		if err := cur.Decode(&n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, cur.Err()
}

func (r *NotificationRepository) UnreadCount(ctx context.Context, profileID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return r.coll.CountDocuments(ctx, bson.M{"profile_id": profileID, "is_read": false})
}

func (r *NotificationRepository) MarkRead(ctx context.Context, id, profileID string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "profile_id": profileID},
		bson.M{"$set": bson.M{"is_read": true}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, profileID string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	_, err := r.coll.UpdateMany(ctx,
		bson.M{"profile_id": profileID, "is_read": false},
		bson.M{"$set": bson.M{"is_read": true}},
	)
	return err
}
