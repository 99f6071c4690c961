// Package presence tracks which profiles currently hold an open
// connection to a room. State lives in Redis so every instance serves
// the same active-user list.
package presence

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long a member stays active without a heartbeat.
const DefaultTTL = 60 * time.Second

// Tracker is a per-room presence set. Members carry their last
// heartbeat as the sorted-set score; anything older than the TTL is
// treated as gone, so a crashed client disappears without an explicit
// Leave.
type Tracker struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewTracker(rdb *redis.Client, ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Tracker{rdb: rdb, ttl: ttl}
}

func key(roomID string) string { return "presence:room:" + roomID }

// Join registers the profile as active in the room. Calling it again
// refreshes the heartbeat, so Join doubles as the heartbeat call.
func (t *Tracker) Join(ctx context.Context, roomID, profileID string) error {
	return t.rdb.ZAdd(ctx, key(roomID), redis.Z{
		Score:  float64(time.Now().Unix()),
		Member: profileID,
	}).Err()
}

// Leave removes the profile from the room's active set.
func (t *Tracker) Leave(ctx context.Context, roomID, profileID string) error {
	return t.rdb.ZRem(ctx, key(roomID), profileID).Err()
}

// Active returns the profile ids seen within the TTL window, purging
// expired members as a side effect.
func (t *Tracker) Active(ctx context.Context, roomID string) ([]string, error) {
	k := key(roomID)
	cutoff := time.Now().Add(-t.ttl).Unix()
	if err := t.rdb.ZRemRangeByScore(ctx, k, "-inf", strconv.FormatInt(cutoff, 10)).Err(); err != nil {
		return nil, err
	}
	return t.rdb.ZRange(ctx, k, 0, -1).Result()
}
