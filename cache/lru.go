// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// LRU is an in-process DeviceLinks backed by hashicorp's expirable LRU.
// Entries expire after ttl so every live device is read back from the
// table, and its link touched, at least once per ttl.
type LRU struct {
	lru *expirable.LRU[string, int64]
}

func NewLRU(size int, ttl time.Duration) (*LRU, error) {
	if size < 1 {
		return nil, fmt.Errorf("failed to create lru cache: size %d must be positive", size)
	}
	c := expirable.NewLRU[string, int64](size, func(voterDeviceID string, voterID int64) {
		slog.Debug("device link evicted from cache", "voter_id", voterID)
	}, ttl)
	return &LRU{lru: c}, nil
}

func (c *LRU) Get(_ context.Context, voterDeviceID string) (int64, bool, error) {
	voterID, ok := c.lru.Get(voterDeviceID)
	return voterID, ok, nil
}

func (c *LRU) Set(_ context.Context, voterDeviceID string, voterID int64) error {
	c.lru.Add(voterDeviceID, voterID)
	return nil
}

func (c *LRU) Delete(_ context.Context, voterDeviceIDs ...string) error {
	for _, id := range voterDeviceIDs {
		c.lru.Remove(id)
	}
	return nil
}

// Len is the number of cached links
func (c *LRU) Len() int {
	return c.lru.Len()
}

func (c *LRU) Close() error {
	c.lru.Purge()
	return nil
}
