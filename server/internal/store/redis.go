package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/motortwin/motortwin/pkg/types"
	"github.com/motortwin/motortwin/server/internal/config"
)

// Redis stores readings as JSON members of a sorted set scored by timestamp.
// Each motor also gets its own set under "<key>:motor:<id>".
type Redis struct {
	client *redis.Client
	key    string
}

// OpenRedis connects to the configured Redis server and verifies it with PING.
func OpenRedis(ctx context.Context, cfg config.RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password(),
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("store: redis ping %s: %w", cfg.Addr, err)
	}
	return NewRedis(client, cfg.Key), nil
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client, key string) *Redis {
	return &Redis{client: client, key: key}
}

func (s *Redis) Append(ctx context.Context, r types.Reading) error {
	member, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("store: encode reading: %w", err)
	}
	z := redis.Z{Score: r.Timestamp, Member: member}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, s.key, z)
		pipe.ZAdd(ctx, s.motorKey(r.MotorID), z)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store: redis zadd: %w", err)
	}
	return nil
}

func (s *Redis) motorKey(motorID string) string { return s.key + ":motor:" + motorID }

func (s *Redis) Recent(ctx context.Context, limit int) ([]types.Reading, error) {
	return s.newest(ctx, s.key, limit)
}

func (s *Redis) RecentByMotor(ctx context.Context, motorID string, limit int) ([]types.Reading, error) {
	return s.newest(ctx, s.motorKey(motorID), limit)
}

func (s *Redis) newest(ctx context.Context, key string, limit int) ([]types.Reading, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	members, err := s.client.ZRevRange(ctx, key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("store: redis zrevrange: %w", err)
	}
	return decodeMembers(members)
}

func (s *Redis) Count(ctx context.Context) (int, error) {
	n, err := s.client.ZCard(ctx, s.key).Result()
	if err != nil {
		return 0, fmt.Errorf("store: redis zcard: %w", err)
	}
	return int(n), nil
}

func (s *Redis) Close() error { return s.client.Close() }

func decodeMembers(members []string) ([]types.Reading, error) {
	out := make([]types.Reading, 0, len(members))
	for _, m := range members {
		var r types.Reading
		if err := json.Unmarshal([]byte(m), &r); err != nil {
			return nil, fmt.Errorf("store: decode reading: %w", err)
		}
		out = append(out, r)
	}
	return out, nil
}
