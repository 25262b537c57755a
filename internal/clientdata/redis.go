package clientdata

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is the Redis Store. Each entry is a hash with the JSON data and
// its logical expiry; Redis drops the key StaleRetention after that.
type RedisStore struct {
	client    *redis.Client
	retention time.Duration
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, retention: StaleRetention}
}

// NewRedisStoreFromURL connects using a redis:// URL.
func NewRedisStoreFromURL(url string) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return NewRedisStore(redis.NewClient(opt)), nil
}

// Ping checks the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func redisKey(table, key string) string {
	return table + ":" + key
}

// Store saves data with expiration = now + ttl.
func (s *RedisStore) Store(ctx context.Context, table, key string, data interface{}, ttl time.Duration) error {
	if err := ValidateTable(table); err != nil {
		return err
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	k := redisKey(table, key)
	keep := ttl + s.retention
	if keep <= 0 {
		keep = time.Second
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, k, "data", string(jsonData), "expires_at", time.Now().Add(ttl).Unix())
		pipe.Expire(ctx, k, keep)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store %s: %w", k, err)
	}
	return nil
}

// GetIfFresh returns data only if it has not expired.
func (s *RedisStore) GetIfFresh(ctx context.Context, table, key string) (json.RawMessage, error) {
	data, expiresAt, err := s.load(ctx, table, key)
	if err != nil || data == nil {
		return nil, err
	}
	if expiresAt <= time.Now().Unix() {
		return nil, nil
	}
	return data, nil
}

// Get returns data regardless of expiration status.
func (s *RedisStore) Get(ctx context.Context, table, key string) (json.RawMessage, error) {
	data, _, err := s.load(ctx, table, key)
	return data, err
}

func (s *RedisStore) load(ctx context.Context, table, key string) (json.RawMessage, int64, error) {
	if err := ValidateTable(table); err != nil {
		return nil, 0, err
	}

	k := redisKey(table, key)
	fields, err := s.client.HGetAll(ctx, k).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get %s: %w", k, err)
	}
	data, ok := fields["data"]
	if !ok {
		return nil, 0, nil
	}
	expiresAt, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		expiresAt = 0
	}
	return json.RawMessage(data), expiresAt, nil
}

// Delete removes a specific entry.
func (s *RedisStore) Delete(ctx context.Context, table, key string) error {
	if err := ValidateTable(table); err != nil {
		return err
	}
	if err := s.client.Del(ctx, redisKey(table, key)).Err(); err != nil {
		return fmt.Errorf("failed to delete %s: %w", redisKey(table, key), err)
	}
	return nil
}
