package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	errx "github.com/stayfinder/agent/internal/core/error"
	logx "github.com/stayfinder/agent/pkg/logger"

	"github.com/stayfinder/agent/internal/agent/model"
)

// RedisSessionRepository persists the session snapshot and the bounded turn
// history. Every touch refreshes the TTL so active sessions stay alive.
type RedisSessionRepository struct {
	rdb      redis.Cmdable
	ttl      time.Duration
	maxTurns int
}

func NewRedisSessionRepository(rdb redis.Cmdable, ttl time.Duration, maxTurns int) *RedisSessionRepository {
	return &RedisSessionRepository{rdb: rdb, ttl: ttl, maxTurns: maxTurns}
}

func (r *RedisSessionRepository) snapshotKey(sessionID string) string {
	return fmt.Sprintf("session:%s:snapshot", sessionID)
}

func (r *RedisSessionRepository) turnsKey(sessionID string) string {
	return fmt.Sprintf("session:%s:turns", sessionID)
}

// LoadSnapshot returns the stored snapshot, or nil for a fresh session.
func (r *RedisSessionRepository) LoadSnapshot(ctx context.Context, sessionID string) (*model.SessionSnapshot, error) {
	key := r.snapshotKey(sessionID)

	raw, err := r.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load session snapshot from redis")
		return nil, errx.WrapRedis(err)
	}

	var snap model.SessionSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		logx.Error().Err(err).Str("sessionID", sessionID).Msg("failed to unmarshal session snapshot")
		return nil, fmt.Errorf("unmarshal session snapshot: %w", err)
	}
	return &snap, nil
}

// SaveSnapshot stores the snapshot and refreshes the session TTL.
func (r *RedisSessionRepository) SaveSnapshot(ctx context.Context, sessionID string, snap *model.SessionSnapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		logx.Error().Err(err).Str("sessionID", sessionID).Msg("failed to marshal session snapshot")
		return fmt.Errorf("marshal session snapshot: %w", err)
	}
	key := r.snapshotKey(sessionID)

	if err := r.rdb.Set(ctx, key, b, r.ttl).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to store session snapshot in redis")
		return errx.WrapRedis(err)
	}
	return nil
}

// AppendTurn appends a turn record, trims history to the configured bound and
// extends the TTL on touch.
func (r *RedisSessionRepository) AppendTurn(ctx context.Context, sessionID string, rec model.TurnRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		logx.Error().Err(err).Str("sessionID", sessionID).Msg("failed to marshal turn record")
		return fmt.Errorf("marshal turn record: %w", err)
	}
	key := r.turnsKey(sessionID)

	if err := r.rdb.RPush(ctx, key, b).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to push turn record to redis")
		return errx.WrapRedis(err)
	}
	if r.maxTurns > 0 {
		if err := r.rdb.LTrim(ctx, key, int64(-r.maxTurns), -1).Err(); err != nil {
			logx.Error().Err(err).Str("key", key).Msg("failed to trim turn history")
			return errx.WrapRedis(err)
		}
	}
	if r.ttl > 0 {
		if ok, err := r.rdb.Expire(ctx, key, r.ttl).Result(); err != nil {
			logx.Error().Err(err).Str("key", key).Msg("failed to set expire")
			return errx.WrapRedis(err)
		} else if !ok {
			logx.Warn().Str("key", key).Dur("ttl", r.ttl).Msg("failed to set TTL on turns key")
		}
	}
	return nil
}

// RecentTurns returns up to n most recent turn records in order.
func (r *RedisSessionRepository) RecentTurns(ctx context.Context, sessionID string, n int) ([]model.TurnRecord, error) {
	key := r.turnsKey(sessionID)

	rows, err := r.rdb.LRange(ctx, key, int64(-n), -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load turn history from redis")
		return nil, errx.WrapRedis(err)
	}

	records := make([]model.TurnRecord, 0, len(rows))
	for i, s := range rows {
		var rec model.TurnRecord
		if err := json.Unmarshal([]byte(s), &rec); err != nil {
			logx.Error().Err(err).Str("sessionID", sessionID).Int("index", i).Msg("failed to unmarshal turn record")
			return nil, fmt.Errorf("unmarshal turn record at index %d: %w", i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Clear removes the snapshot and turn history for a session.
func (r *RedisSessionRepository) Clear(ctx context.Context, sessionID string) error {
	if err := r.rdb.Del(ctx, r.snapshotKey(sessionID), r.turnsKey(sessionID)).Err(); err != nil {
		logx.Error().Err(err).Str("sessionID", sessionID).Msg("failed to delete session from redis")
		return errx.WrapRedis(err)
	}
	return nil
}
