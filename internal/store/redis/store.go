package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Store implements store.Store on top of plain Redis strings.
// Keys never expire: tombstones and counters must outlive restarts.
type Store struct {
	client *redis.Client
	prefix string
}

// NewStore creates a new Redis backed store. An empty prefix falls back to
// DefaultKeyPrefix.
func NewStore(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Store{
		client: client,
		prefix: prefix,
	}
}

// Read fetches the value stored at key, or nil if it was never written
func (s *Store) Read(ctx context.Context, key []byte) ([]byte, error) {
	data, err := s.client.Get(ctx, Key(s.prefix, key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read key: %w", err)
	}
	if data == nil {
		data = []byte{}
	}
	return data, nil
}

// Write sets key to value without TTL
func (s *Store) Write(ctx context.Context, key, value []byte) error {
	if err := s.client.Set(ctx, Key(s.prefix, key), value, 0).Err(); err != nil {
		return fmt.Errorf("failed to write key: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}
