package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/elliot-conan/mindwellness-chat/internal/domain"
	"github.com/elliot-conan/mindwellness-chat/internal/repository"
)

const (
	commonReactionsKey = "cache:common_reactions"
	commonReactionsTTL = 10 * time.Minute
)

// ReactionService toggles per-message emoji reactions and serves the
// quick-pick list through an explicitly injected Redis cache with TTL
// invalidation rather than a process-wide singleton.
type ReactionService struct {
	reactions *repository.ReactionRepository
	cache     *redis.Client
	log       *zap.SugaredLogger
}

func NewReactionService(reactions *repository.ReactionRepository, cache *redis.Client, log *zap.SugaredLogger) *ReactionService {
	return &ReactionService{reactions: reactions, cache: cache, log: log}
}

func (s *ReactionService) Toggle(ctx context.Context, messageID, profileID, emoji string) (bool, error) {
	return s.reactions.Toggle(ctx, messageID, profileID, emoji)
}

func (s *ReactionService) ListForMessage(ctx context.Context, messageID string) ([]domain.Reaction, error) {
	return s.reactions.ListForMessage(ctx, messageID)
}

// CommonReactions serves the curated list, cache first. A cache miss or
// error falls through to the repository; caching failures are logged
// and never fail the request.
func (s *ReactionService) CommonReactions(ctx context.Context) ([]domain.CommonReaction, error) {
	if s.cache != nil {
		if b, err := s.cache.Get(ctx, commonReactionsKey).Bytes(); err == nil {
			var out []domain.CommonReaction
			if err := json.Unmarshal(b, &out); err == nil {
				return out, nil
			}
		} else if err != redis.Nil {
			s.log.Warnw("common reactions cache read failed", "err", err)
		}
	}

	out, err := s.reactions.CommonReactions(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if b, err := json.Marshal(out); err == nil {
			if err := s.cache.Set(ctx, commonReactionsKey, b, commonReactionsTTL).Err(); err != nil {
				s.log.Warnw("common reactions cache write failed", "err", err)
			}
		}
	}
	return out, nil
}

// InvalidateCommonReactions drops the cached list after the curated
// set changes.
func (s *ReactionService) InvalidateCommonReactions(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Del(ctx, commonReactionsKey).Err()
}
