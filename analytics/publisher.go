// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package analytics

import (
	"context"
	"sync"

	"github.com/wevote/wevote-server/models"
)

// Publisher streams saved analytics actions to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, action models.AnalyticsAction) error
	Close() error
}

// NopPublisher drops every action. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, models.AnalyticsAction) error { return nil }
func (NopPublisher) Close() error                                          { return nil }

// MemoryPublisher keeps published actions in memory for tests
type MemoryPublisher struct {
	mu      sync.Mutex
	actions []models.AnalyticsAction
	Err     error
}

func (m *MemoryPublisher) Publish(_ context.Context, action models.AnalyticsAction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.actions = append(m.actions, action)
	return nil
}

func (m *MemoryPublisher) Close() error { return nil }

// Actions returns a copy of everything published so far
func (m *MemoryPublisher) Actions() []models.AnalyticsAction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.AnalyticsAction(nil), m.actions...)
}
