// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL bounds how long a link may be served after the table changes
const DefaultTTL = 24 * time.Hour

const redisKeyPrefix = "wevote:voter_device_link:"

// Redis is a DeviceLinks shared between server instances.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(ctx context.Context, url string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("error parsing redis URL: %w", err)
	}

	c := redis.NewClient(opts)

	if err := c.Ping(ctx).Err(); err != nil {
		c.Close()
		return nil, fmt.Errorf("error connecting to redis: %w", err)
	}

	return &Redis{client: c, ttl: ttl}, nil
}

func redisKey(voterDeviceID string) string {
	return redisKeyPrefix + voterDeviceID
}

func (r *Redis) Get(ctx context.Context, voterDeviceID string) (int64, bool, error) {
	s, err := r.client.Get(ctx, redisKey(voterDeviceID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("error reading device link from redis: %w", err)
	}

	voterID, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt device link in redis: %w", err)
	}
	return voterID, true, nil
}

func (r *Redis) Set(ctx context.Context, voterDeviceID string, voterID int64) error {
	if err := r.client.Set(ctx, redisKey(voterDeviceID), voterID, r.ttl).Err(); err != nil {
		return fmt.Errorf("error writing device link to redis: %w", err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, voterDeviceIDs ...string) error {
	if len(voterDeviceIDs) == 0 {
		return nil
	}
	keys := make([]string, len(voterDeviceIDs))
	for i, id := range voterDeviceIDs {
		keys[i] = redisKey(id)
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("error deleting device links from redis: %w", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
