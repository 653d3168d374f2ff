package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/lorrc/repair-desk/internal/core/domain"
	apperrors "github.com/lorrc/repair-desk/internal/core/errors"
	"github.com/lorrc/repair-desk/internal/core/ports"
)

// cacheEnvelope is the stored form of a snapshot.
type cacheEnvelope struct {
	Data      []domain.Ticket `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// SnapshotCache keeps a time-boxed copy of the whole ticket collection.
// It never reports failures: a broken backend behaves like an empty cache.
type SnapshotCache struct {
	store    ports.KeyValueStore
	key      string
	duration time.Duration
	now      Clock
	logger   *slog.Logger
}

// NewSnapshotCache creates a cache that stores its envelope under key.
func NewSnapshotCache(store ports.KeyValueStore, key string, duration time.Duration, now Clock, logger *slog.Logger) *SnapshotCache {
	return &SnapshotCache{
		store:    store,
		key:      key,
		duration: duration,
		now:      now,
		logger:   logger.With("component", "snapshot_cache", "cache_key", key),
	}
}

// Read returns the cached tickets while the snapshot is fresh.
func (c *SnapshotCache) Read(ctx context.Context) ([]domain.Ticket, bool) {
	raw, err := c.store.Get(ctx, c.key)
	if err != nil {
		if !errors.Is(err, apperrors.ErrKeyNotFound) {
			c.logger.WarnContext(ctx, "cache read failed", "error", err)
		}
		return nil, false
	}

	var envelope cacheEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		c.logger.WarnContext(ctx, "cache envelope is corrupt", "error", err)
		return nil, false
	}

	age := c.now().UnixMilli() - envelope.Timestamp
	if age >= c.duration.Milliseconds() {
		return nil, false
	}
	if envelope.Data == nil {
		envelope.Data = []domain.Ticket{}
	}
	return envelope.Data, true
}

// Write replaces the snapshot with tickets stamped with the current time.
func (c *SnapshotCache) Write(ctx context.Context, tickets []domain.Ticket) {
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	raw, err := json.Marshal(cacheEnvelope{
		Data:      tickets,
		Timestamp: c.now().UnixMilli(),
	})
	if err != nil {
		c.logger.WarnContext(ctx, "cache envelope encoding failed", "error", err)
		return
	}
	if err := c.store.Set(ctx, c.key, raw, c.duration); err != nil {
		c.logger.WarnContext(ctx, "cache write failed", "error", err)
	}
}

// FilterPreference persists the last chosen status filter. Like the cache
// it swallows backend failures.
type FilterPreference struct {
	store  ports.KeyValueStore
	key    string
	logger *slog.Logger
}

// NewFilterPreference creates a preference stored under key.
func NewFilterPreference(store ports.KeyValueStore, key string, logger *slog.Logger) *FilterPreference {
	return &FilterPreference{
		store:  store,
		key:    key,
		logger: logger.With("component", "filter_preference"),
	}
}

// Load returns the saved filter if one exists and is still a known status.
func (p *FilterPreference) Load(ctx context.Context) (domain.TicketStatus, bool) {
	raw, err := p.store.Get(ctx, p.key)
	if err != nil {
		if !errors.Is(err, apperrors.ErrKeyNotFound) {
			p.logger.WarnContext(ctx, "preference read failed", "error", err)
		}
		return "", false
	}
	status := domain.TicketStatus(raw)
	if !status.IsValid() {
		return "", false
	}
	return status, true
}

// Save stores the filter without expiry.
func (p *FilterPreference) Save(ctx context.Context, status domain.TicketStatus) {
	if err := p.store.Set(ctx, p.key, []byte(status), 0); err != nil {
		p.logger.WarnContext(ctx, "preference write failed", "error", err)
	}
}
