// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cache

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wevote/wevote-server/cliparse"
)

// DeviceLinks caches voter_device_id -> voter id lookups. A miss is not
// an error; callers fall back to the voter_device_link table.
type DeviceLinks interface {
	Get(ctx context.Context, voterDeviceID string) (int64, bool, error)
	Set(ctx context.Context, voterDeviceID string, voterID int64) error
	Delete(ctx context.Context, voterDeviceIDs ...string) error
	Close() error
}

// New builds the cache selected by cfg.CacheBackend
func New(ctx context.Context, cfg cliparse.Config) (DeviceLinks, error) {
	switch cfg.CacheBackend {
	case cliparse.CacheRedis:
		c, err := NewRedis(ctx, cfg.RedisURL, DefaultTTL)
		if err != nil {
			return nil, err
		}
		slog.Info("device link cache ready", "backend", "redis")
		return c, nil
	case cliparse.CacheMemory, "":
		c, err := NewLRU(cfg.CacheSize, DefaultTTL)
		if err != nil {
			return nil, err
		}
		slog.Info("device link cache ready", "backend", "memory", "size", cfg.CacheSize)
		return c, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
}
