package redis

import (
	"context"
	"fmt"
	"time"
)

// SeenStore implements dispatch.SeenStore on Redis, so duplicate transfer
// events are suppressed across process restarts. Keys expire instead of
// being evicted by count.
type SeenStore struct {
	client *Client
	ttl    time.Duration
}

// NewSeenStore creates a Redis-backed seen store.
func NewSeenStore(client *Client, ttl time.Duration) *SeenStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SeenStore{client: client, ttl: ttl}
}

func seenKey(id string) string {
	return fmt.Sprintf("alert_seen:%s", id)
}

// MarkSeen records an event id and reports whether it was already present.
func (s *SeenStore) MarkSeen(ctx context.Context, id string) (bool, error) {
	created, err := s.client.rdb.SetNX(ctx, seenKey(id), "1", s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx failed: %w", err)
	}
	return !created, nil
}
