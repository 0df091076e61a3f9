// Package redisstore keeps outcome history in Redis: one capped list per
// (kind, venue) key, newest first, plus a set indexing the keys.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fd1az/mev-bundler/business/attribution/domain"
	"github.com/fd1az/mev-bundler/internal/apperror"
)

const (
	defaultPrefix = "mev:outcomes"
	defaultLimit  = 100
)

// Config holds connection and retention settings.
type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	Limit    int           // outcomes kept per key
	TTL      time.Duration // 0 keeps lists forever
}

// Store is an OutcomeStore backed by Redis.
type Store struct {
	client *redis.Client
	config Config
}

// New creates a store with its own client. The connection is established
// lazily by the first command.
func New(cfg Config) *Store {
	return NewWithClient(redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}), cfg)
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, cfg Config) *Store {
	if cfg.Prefix == "" {
		cfg.Prefix = defaultPrefix
	}
	if cfg.Limit <= 0 {
		cfg.Limit = defaultLimit
	}
	return &Store{client: client, config: cfg}
}

func (s *Store) listKey(key string) string { return s.config.Prefix + ":" + key }
func (s *Store) indexKey() string          { return s.config.Prefix + ":keys" }

// Record pushes o onto its key's list and trims the list to Limit.
func (s *Store) Record(ctx context.Context, o domain.Outcome) error {
	data, err := json.Marshal(o)
	if err != nil {
		return apperror.New(apperror.CodeInvalidInput, apperror.WithCause(err))
	}

	key := o.Key()
	list := s.listKey(key)

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, list, data)
		pipe.LTrim(ctx, list, 0, int64(s.config.Limit-1))
		pipe.SAdd(ctx, s.indexKey(), key)
		if s.config.TTL > 0 {
			pipe.Expire(ctx, list, s.config.TTL)
		}
		return nil
	})
	if err != nil {
		return unavailable("record "+key, err)
	}
	return nil
}

// Recent returns up to limit outcomes for key, oldest first.
func (s *Store) Recent(ctx context.Context, key string, limit int) ([]domain.Outcome, error) {
	if limit <= 0 || limit > s.config.Limit {
		limit = s.config.Limit
	}

	raw, err := s.client.LRange(ctx, s.listKey(key), 0, int64(limit-1)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, unavailable("recent "+key, err)
	}

	out := make([]domain.Outcome, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var o domain.Outcome
		if err := json.Unmarshal([]byte(raw[i]), &o); err != nil {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

// Keys lists every key with recorded history. Keys whose list expired are
// dropped from the index.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	keys, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, unavailable("keys", err)
	}

	live := keys[:0]
	for _, k := range keys {
		n, err := s.client.Exists(ctx, s.listKey(k)).Result()
		if err != nil {
			return nil, unavailable("keys", err)
		}
		if n == 0 {
			s.client.SRem(ctx, s.indexKey(), k)
			continue
		}
		live = append(live, k)
	}
	sort.Strings(live)
	return live, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}

func unavailable(op string, err error) error {
	return apperror.New(apperror.CodeStoreUnavailable,
		apperror.WithCause(err),
		apperror.WithContext("redis: "+op))
}
