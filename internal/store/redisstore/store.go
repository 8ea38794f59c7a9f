package redisstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a key or hash field does not exist.
var ErrNotFound = errors.New("redisstore: not found")

// KV is the fast-store port the session and chat packages depend on.
// Every operation is individually atomic; there are no multi-key
// transactions, so callers must order operations themselves.
type KV interface {
	HSetAll(ctx context.Context, key string, fields map[string]string) error
	HGet(ctx context.Context, key, field string) (string, error)
	Set(ctx context.Context, key, value string) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	RPush(ctx context.Context, key, value string) error
	LRange(ctx context.Context, key string) ([]string, error)
	LPop(ctx context.Context, key string) (string, error)
	SAdd(ctx context.Context, key, member string) (bool, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// Store adapts a redis client to KV. Every call carries a bounded
// timeout; hitting it surfaces as a plain error to the caller.
type Store struct {
	rdb     *redis.Client
	timeout time.Duration
}

func New(addr, password string, db int, timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Store{
		rdb: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		timeout: timeout,
	}
}

func (s *Store) Close() error { return s.rdb.Close() }

func (s *Store) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Store) HSetAll(ctx context.Context, key string, fields map[string]string) error {
	cctx, cancel := s.bound(ctx)
	defer cancel()
	args := make(map[string]any, len(fields))
	for k, v := range fields {
		args[k] = v
	}
	return s.rdb.HSet(cctx, key, args).Err()
}

func (s *Store) HGet(ctx context.Context, key, field string) (string, error) {
	cctx, cancel := s.bound(ctx)
	defer cancel()
	v, err := s.rdb.HGet(cctx, key, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return v, err
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	cctx, cancel := s.bound(ctx)
	defer cancel()
	return s.rdb.Set(cctx, key, value, 0).Err()
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	cctx, cancel := s.bound(ctx)
	defer cancel()
	v, err := s.rdb.Get(cctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return v, err
}

func (s *Store) Del(ctx context.Context, keys ...string) error {
	cctx, cancel := s.bound(ctx)
	defer cancel()
	return s.rdb.Del(cctx, keys...).Err()
}

func (s *Store) RPush(ctx context.Context, key, value string) error {
	cctx, cancel := s.bound(ctx)
	defer cancel()
	return s.rdb.RPush(cctx, key, value).Err()
}

func (s *Store) LRange(ctx context.Context, key string) ([]string, error) {
	cctx, cancel := s.bound(ctx)
	defer cancel()
	return s.rdb.LRange(cctx, key, 0, -1).Result()
}

func (s *Store) LPop(ctx context.Context, key string) (string, error) {
	cctx, cancel := s.bound(ctx)
	defer cancel()
	v, err := s.rdb.LPop(cctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return v, err
}

func (s *Store) SAdd(ctx context.Context, key, member string) (bool, error) {
	cctx, cancel := s.bound(ctx)
	defer cancel()
	n, err := s.rdb.SAdd(cctx, key, member).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	cctx, cancel := s.bound(ctx)
	defer cancel()
	n, err := s.rdb.Exists(cctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
