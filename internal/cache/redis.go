// Package cache provides Redis-backed storage for data the dashboard
// refetches often, such as tenant subscription history.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MacJediWizard/parkadmin/internal/models"
	"github.com/redis/go-redis/v9"
)

const historyKeyPrefix = "parkadmin:history:"

// Connect parses a redis:// URL, opens a client, and checks the connection.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

// HistoryCache stores full tenant history lists as JSON with a TTL.
type HistoryCache struct {
	client redis.UniversalClient
}

// NewHistoryCache creates a HistoryCache on client.
func NewHistoryCache(client redis.UniversalClient) *HistoryCache {
	return &HistoryCache{client: client}
}

func historyKey(tenantID string) string {
	return historyKeyPrefix + tenantID
}

// Get returns the cached history for the tenant. A miss is (nil, false, nil).
func (c *HistoryCache) Get(ctx context.Context, tenantID string) ([]models.HistoryEntry, bool, error) {
	data, err := c.client.Get(ctx, historyKey(tenantID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cached history: %w", err)
	}

	var entries []models.HistoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached history: %w", err)
	}
	return entries, true, nil
}

// Set stores the tenant's history for ttl.
func (c *HistoryCache) Set(ctx context.Context, tenantID string, entries []models.HistoryEntry, ttl time.Duration) error {
	if entries == nil {
		entries = []models.HistoryEntry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	if err := c.client.Set(ctx, historyKey(tenantID), data, ttl).Err(); err != nil {
		return fmt.Errorf("set cached history: %w", err)
	}
	return nil
}

// Delete removes the tenant's cached history.
func (c *HistoryCache) Delete(ctx context.Context, tenantID string) error {
	if err := c.client.Del(ctx, historyKey(tenantID)).Err(); err != nil {
		return fmt.Errorf("delete cached history: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (c *HistoryCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
