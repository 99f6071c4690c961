package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/elliot-conan/mindwellness-chat/internal/domain"
)

type RoomRepository struct {
	coll *mongo.Collection
}

func NewRoomRepository(db *mongo.Database) *RoomRepository {
	r := &RoomRepository{coll: db.Collection("rooms")}
	_, _ = r.coll.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys: bson.D{{Key: "participants", Value: 1}, {Key: "updated_at", Value: -1}},
	})
	return r
}

func (r *RoomRepository) Create(ctx context.Context, room *domain.Room) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	_, err := r.coll.InsertOne(ctx, room)
	return err
}

func (r *RoomRepository) Get(ctx context.Context, id string) (*domain.Room, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	var room domain.Room
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&room)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// ListForProfile returns the rooms a profile participates in, most
// recently active first.
func (r *RoomRepository) ListForProfile(ctx context.Context, profileID string) ([]domain.Room, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	cur, err := r.coll.Find(ctx, bson.M{"participants": profileID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	return decodeRooms(ctx, cur)
}

// ListPublic returns joinable group rooms.
func (r *RoomRepository) ListPublic(ctx context.Context) ([]domain.Room, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	filter := bson.M{
		"room_type":  domain.RoomGroup,
		"is_private": false,
		"status":     domain.RoomActive,
	}
	cur, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	return decodeRooms(ctx, cur)
}

// SetStatus moves a room between pending/active/closed and reports
// whether anything matched.
func (r *RoomRepository) SetStatus(ctx context.Context, id string, status domain.RoomStatus) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	res, err := r.coll.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"status": status, "updated_at": time.Now().UTC()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// AddParticipant joins a profile to a room; duplicates are absorbed by
// $addToSet.
func (r *RoomRepository) AddParticipant(ctx context.Context, roomID, profileID string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	res, err := r.coll.UpdateByID(ctx, roomID, bson.M{
		"$addToSet": bson.M{"participants": profileID},
		"$set":      bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Touch bumps updated_at so the room sorts to the top of the list.
func (r *RoomRepository) Touch(ctx context.Context, roomID string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	_, err := r.coll.UpdateByID(ctx, roomID, bson.M{
		"$set": bson.M{"updated_at": time.Now().UTC()},
	})
	return err
}

func decodeRooms(ctx context.Context, cur *mongo.Cursor) ([]domain.Room, error) {
	out := []domain.Room{}
	for cur.Next(ctx) {
		var room domain.Room
		if err := cur.Decode(&room); err != nil {
			return nil, err
		}
		out = append(out, room)
	}
	return out, cur.Err()
}
