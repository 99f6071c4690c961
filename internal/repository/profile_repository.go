package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/elliot-conan/mindwellness-chat/internal/domain"
)

type ProfileRepository struct {
	coll *mongo.Collection
}

func NewProfileRepository(db *mongo.Database) *ProfileRepository {
	return &ProfileRepository{coll: db.Collection("profiles")}
}

func (r *ProfileRepository) Get(ctx context.Context, id string) (*domain.Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	var p domain.Profile
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProfileRepository) GetMany(ctx context.Context, ids []string) ([]domain.Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	cur, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []domain.Profile{}
	for cur.Next(ctx) {
		var p domain.Profile
		if err := cur.Decode(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, cur.Err()
}

// Upsert creates or updates the profile row, preserving created_at.
func (r *ProfileRepository) Upsert(ctx context.Context, p *domain.Profile) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	now := time.Now().UTC()
	_, err := r.coll.UpdateByID(ctx, p.ID, bson.M{
		"$set": bson.M{
			"username":    p.Username,
			"first_name":  p.FirstName,
			"last_name":   p.LastName,
			"avatar_url":  p.AvatarURL,
			"role":        p.Role,
			"is_verified": p.IsVerified,
			"updated_at":  now,
		},
		"$setOnInsert": bson.M{"created_at": now},
	}, optionsUpsert())
	return err
}
