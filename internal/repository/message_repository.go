package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/elliot-conan/mindwellness-chat/internal/domain"
	"github.com/elliot-conan/mindwellness-chat/internal/realtime"
)

// HistoryPageSize caps the persisted page a room loads on open.
const HistoryPageSize = 50

// MessageRepository persists messages keyed by the client-generated id,
// so a message keeps one identity across the live session and later
// page loads. It also implements realtime.Persister.
type MessageRepository struct {
	coll *mongo.Collection
}

func NewMessageRepository(db *mongo.Database) *MessageRepository {
	r := &MessageRepository{coll: db.Collection("messages")}
	_, _ = r.coll.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys: bson.D{{Key: "room_id", Value: 1}, {Key: "created_at", Value: 1}},
	})
	return r
}

// Insert writes the message row, deduplicating on _id: re-sending the
// same client-generated id is a harmless no-op.
func (r *MessageRepository) Insert(ctx context.Context, m *domain.Message) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": m.ID},
		bson.M{"$setOnInsert": m},
		options.Update().SetUpsert(true),
	)
	return err
}

// Get returns one message by its client-generated id.
func (r *MessageRepository) Get(ctx context.Context, id string) (*domain.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	var m domain.Message
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&m)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// History returns up to HistoryPageSize messages for the room, ordered
// ascending by creation time, each carrying its prior receipt
// timestamps.
func (r *MessageRepository) History(ctx context.Context, roomID string) ([]domain.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetLimit(HistoryPageSize)
	cur, err := r.coll.Find(ctx, bson.M{"room_id": roomID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []domain.Message{}
	for cur.Next(ctx) {
		var m domain.Message
		if err := cur.Decode(&m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, cur.Err()
}

// MarkDelivered sets delivered_at if unset and returns the
// authoritative timestamp either way. Idempotent by construction.
func (r *MessageRepository) MarkDelivered(ctx context.Context, messageID string) (time.Time, error) {
	return r.markStatus(ctx, messageID, "delivered_at")
}

// MarkRead sets read_at if unset and returns the authoritative
// timestamp either way. Idempotent by construction.
func (r *MessageRepository) MarkRead(ctx context.Context, messageID string) (time.Time, error) {
	return r.markStatus(ctx, messageID, "read_at")
}

func (r *MessageRepository) markStatus(ctx context.Context, messageID, field string) (time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	now := time.Now().UTC()
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": messageID, field: nil},
		bson.M{"$set": bson.M{field: now}},
	)
	if err != nil {
		return time.Time{}, err
	}

	// Read back the authoritative value: if another client won the
	// race the earlier timestamp stands.
	var row struct {
		DeliveredAt *time.Time `bson:"delivered_at"`
		ReadAt      *time.Time `bson:"read_at"`
	}
	err = r.coll.FindOne(ctx, bson.M{"_id": messageID},
		options.FindOne().SetProjection(bson.M{"delivered_at": 1, "read_at": 1}),
	).Decode(&row)
	if err == mongo.ErrNoDocuments {
		return time.Time{}, ErrNotFound
	}
	if err != nil {
		return time.Time{}, err
	}
	switch field {
	case "delivered_at":
		if row.DeliveredAt != nil {
			return *row.DeliveredAt, nil
		}
	case "read_at":
		if row.ReadAt != nil {
			return *row.ReadAt, nil
		}
	}
	return now, nil
}

// StatusSnapshot returns the authoritative receipt pair for every
// message in the room, feeding the periodic reconciliation pull.
func (r *MessageRepository) StatusSnapshot(ctx context.Context, roomID string) (map[string]realtime.StatusTimes, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := options.Find().SetProjection(bson.M{"delivered_at": 1, "read_at": 1})
	cur, err := r.coll.Find(ctx, bson.M{"room_id": roomID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make(map[string]realtime.StatusTimes)
	for cur.Next(ctx) {
		var row struct {
			ID          string     `bson:"_id"`
			DeliveredAt *time.Time `bson:"delivered_at"`
			ReadAt      *time.Time `bson:"read_at"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		out[row.ID] = realtime.StatusTimes{DeliveredAt: row.DeliveredAt, ReadAt: row.ReadAt}
	}
	return out, cur.Err()
}
