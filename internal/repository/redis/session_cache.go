package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SnapshotTTL bounds how long a snapshot survives a party that never
// reports the end of its session.
const SnapshotTTL = 2 * time.Hour

func snapshotKey(sessionID, party string) string {
	return "session:" + sessionID + ":snapshot:" + party
}

func turnKey(sessionID string) string { return "session:" + sessionID + ":turns" }

// SetSnapshot stores the latest decision snapshot of one party.
func (c *Client) SetSnapshot(ctx context.Context, sessionID, party string, snapshot json.RawMessage) error {
	pipe := c.rdb.TxPipeline()
	pipe.Set(ctx, snapshotKey(sessionID, party), []byte(snapshot), SnapshotTTL)
	pipe.HIncrBy(ctx, turnKey(sessionID), party, 1)
	pipe.Expire(ctx, turnKey(sessionID), SnapshotTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("set snapshot: %w", err)
	}
	return nil
}

// GetSnapshot returns the stored snapshot, or nil if none exists.
func (c *Client) GetSnapshot(ctx context.Context, sessionID, party string) (json.RawMessage, error) {
	data, err := c.rdb.Get(ctx, snapshotKey(sessionID, party)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	return json.RawMessage(data), nil
}

// SnapshotCount returns how many snapshots a party has written this session.
func (c *Client) SnapshotCount(ctx context.Context, sessionID, party string) (int, error) {
	n, err := c.rdb.HGet(ctx, turnKey(sessionID), party).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get snapshot count: %w", err)
	}
	return n, nil
}

// DeleteSession removes all live state for a session.
func (c *Client) DeleteSession(ctx context.Context, sessionID string, parties []string) error {
	keys := []string{turnKey(sessionID)}
	for _, p := range parties {
		keys = append(keys, snapshotKey(sessionID, p))
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
