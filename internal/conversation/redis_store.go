package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	turnKeyPrefix      = "baymax:turns:"
	defaultTurnTTL     = 30 * 24 * time.Hour
	defaultMaxRedisLen = 200
)

// RedisTurnStore keeps each user's turns in a capped Redis list, newest at the tail.
type RedisTurnStore struct {
	redis    *redis.Client
	tracer   trace.Tracer
	ttl      time.Duration
	maxTurns int64
}

func NewRedisTurnStore(client *redis.Client) *RedisTurnStore {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	return &RedisTurnStore{
		redis:    client,
		tracer:   otel.Tracer("baymax.internal.conversation.redis"),
		ttl:      defaultTurnTTL,
		maxTurns: defaultMaxRedisLen,
	}
}

func (s *RedisTurnStore) AppendTurn(ctx context.Context, turn Turn) error {
	if turn.UserHash == "" {
		return errors.New("conversation: turn user hash required")
	}
	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("conversation: marshal turn: %w", err)
	}

	ctx, span := s.tracer.Start(ctx, "conversation.redis.append_turn")
	defer span.End()

	key := turnKey(turn.UserHash)
	pipe := s.redis.TxPipeline()
	pipe.RPush(ctx, key, data)
	if s.maxTurns > 0 {
		pipe.LTrim(ctx, key, -s.maxTurns, -1)
	}
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: append turn: %w", err)
	}
	return nil
}

func (s *RedisTurnStore) FindRecentTurns(ctx context.Context, userHash string, limit int) ([]Turn, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.redis.recent_turns")
	defer span.End()

	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}
	raw, err := s.redis.LRange(ctx, turnKey(userHash), start, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []Turn{}, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: list turns: %w", err)
	}

	out := make([]Turn, 0, len(raw))
	for _, item := range raw {
		var turn Turn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			span.RecordError(err)
			continue
		}
		out = append(out, turn)
	}
	return out, nil
}

func (s *RedisTurnStore) FindLastTurn(ctx context.Context, userHash string) (*Turn, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.redis.last_turn")
	defer span.End()

	raw, err := s.redis.LIndex(ctx, turnKey(userHash), -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: load last turn: %w", err)
	}
	var turn Turn
	if err := json.Unmarshal([]byte(raw), &turn); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: decode last turn: %w", err)
	}
	return &turn, nil
}

func turnKey(userHash string) string {
	return turnKeyPrefix + userHash
}
