package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/courierhq/courier/pkg/cache"
)

// timelineKey indexes every exchange id by creation time.
const timelineKey = "exchanges:timeline"

// RedisStore implements Store using one JSON document per exchange plus a
// sorted-set timeline, so listings come back newest first without a scan.
type RedisStore struct {
	rdb *cache.Client
	ttl time.Duration // How long to keep records (e.g., 30 days)
}

// NewRedisStore creates a new Redis-backed store
func NewRedisStore(rdb *cache.Client, retention time.Duration) *RedisStore {
	if retention == 0 {
		retention = 30 * 24 * time.Hour // Default 30 days
	}
	return &RedisStore{
		rdb: rdb,
		ttl: retention,
	}
}

func exchangeKey(id string) string {
	return fmt.Sprintf("exchange:%s", id)
}

// Create stores an exchange document and indexes it on the timeline. The
// nanosecond score keeps back-to-back records in creation order.
func (s *RedisStore) Create(ctx context.Context, ex *Exchange) (string, error) {
	ex.ID = newID()
	ex.CreatedAt = time.Now().UTC()

	data, err := json.Marshal(ex)
	if err != nil {
		return "", err
	}
	if err := s.rdb.Set(ctx, exchangeKey(ex.ID), data, s.ttl); err != nil {
		return "", err
	}

	score := float64(ex.CreatedAt.UnixNano())
	if err := s.rdb.Redis().ZAdd(ctx, timelineKey, redis.Z{
		Score:  score,
		Member: ex.ID,
	}).Err(); err != nil {
		return "", err
	}

	// Trim index entries past retention so the timeline cannot grow forever.
	cutoff := fmt.Sprintf("%f", float64(time.Now().Add(-s.ttl).UnixNano()))
	s.rdb.Redis().ZRemRangeByScore(ctx, timelineKey, "-inf", cutoff)
	s.rdb.Redis().Expire(ctx, timelineKey, s.ttl)

	return ex.ID, nil
}

// ListRecent walks the timeline from the newest end and loads each document.
func (s *RedisStore) ListRecent(ctx context.Context, limit int) ([]*Exchange, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	ids, err := s.rdb.Redis().ZRevRange(ctx, timelineKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	exchanges := make([]*Exchange, 0, len(ids))
	for _, id := range ids {
		ex, err := s.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				// Document expired ahead of its index entry.
				continue
			}
			return nil, err
		}
		exchanges = append(exchanges, ex)
	}

	return exchanges, nil
}

// GetByID retrieves a single exchange by id
func (s *RedisStore) GetByID(ctx context.Context, id string) (*Exchange, error) {
	data, err := s.rdb.Get(ctx, exchangeKey(id))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var ex Exchange
	if err := json.Unmarshal(data, &ex); err != nil {
		return nil, err
	}

	return &ex, nil
}

// DeleteByID removes one exchange and its timeline entry
func (s *RedisStore) DeleteByID(ctx context.Context, id string) error {
	if err := s.rdb.Redis().ZRem(ctx, timelineKey, id).Err(); err != nil {
		return err
	}
	return s.rdb.Redis().Del(ctx, exchangeKey(id)).Err()
}

// DeleteAll removes every exchange document and the timeline itself
func (s *RedisStore) DeleteAll(ctx context.Context) error {
	ids, err := s.rdb.Redis().ZRange(ctx, timelineKey, 0, -1).Result()
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, exchangeKey(id))
	}
	keys = append(keys, timelineKey)

	return s.rdb.Redis().Del(ctx, keys...).Err()
}

// Ping checks Redis connection
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Redis().Ping(ctx).Err()
}
