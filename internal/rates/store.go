package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"budget/internal/currency"
)

// Store keeps the last good rate table.
type Store interface {
	Load(ctx context.Context) (currency.RateTable, error)
	Save(ctx context.Context, tbl currency.RateTable) error
}

// MemoryStore keeps the table in process memory.
type MemoryStore struct {
	mu  sync.RWMutex
	tbl currency.RateTable
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(_ context.Context) (currency.RateTable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.tbl.IsEmpty() {
		return currency.RateTable{}, ErrNoRates
	}
	return s.tbl, nil
}

func (s *MemoryStore) Save(_ context.Context, tbl currency.RateTable) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tbl = tbl
	return nil
}

// DefaultRedisKey is where RedisStore keeps the serialized table.
const DefaultRedisKey = "budget:rates:latest"

// RedisStore shares the table between the server and workers through Redis.
type RedisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisStore connects to addr and verifies the connection.
func NewRedisStore(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	return NewRedisStoreFromClient(client, DefaultRedisKey, ttl), nil
}

func NewRedisStoreFromClient(client *redis.Client, key string, ttl time.Duration) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key, ttl: ttl}
}

func (s *RedisStore) Load(ctx context.Context) (currency.RateTable, error) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return currency.RateTable{}, ErrNoRates
	}
	if err != nil {
		return currency.RateTable{}, fmt.Errorf("redis get %s: %w", s.key, err)
	}
	var tbl currency.RateTable
	if err := json.Unmarshal(raw, &tbl); err != nil {
		return currency.RateTable{}, fmt.Errorf("decode cached rates: %w", err)
	}
	if tbl.IsEmpty() {
		return currency.RateTable{}, ErrNoRates
	}
	return tbl, nil
}

func (s *RedisStore) Save(ctx context.Context, tbl currency.RateTable) error {
	raw, err := json.Marshal(tbl)
	if err != nil {
		return fmt.Errorf("encode rates: %w", err)
	}
	if err := s.client.Set(ctx, s.key, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
