package perm

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedStore decorates a Store with a Redis read-through cache. Role
// records are read-many write-rare; a short TTL bounds staleness and every
// grant mutation must call Invalidate for the affected user.
//
// Cache failures degrade to the inner store. A cache problem can therefore
// slow a permission check down but never change its outcome.
type CachedStore struct {
	inner  Store
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedStore constructs a CachedStore.
func NewCachedStore(inner Store, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedStore {
	return &CachedStore{inner: inner, client: client, ttl: ttl, logger: logger}
}

var _ Store = (*CachedStore)(nil)

// RoleData returns the cached role data for userID, falling back to the
// inner store on a miss.
func (c *CachedStore) RoleData(ctx context.Context, userID string) (RoleData, error) {
	key := c.key(userID)

	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var data RoleData
		if jsonErr := json.Unmarshal(payload, &data); jsonErr == nil && data.validate() == nil {
			if data.HouseRoles == nil {
				data.HouseRoles = map[string]HouseRole{}
			}
			return data, nil
		}
		// Corrupt entry: drop it and fall through to the inner store.
		_ = c.client.Del(ctx, key).Err()
	} else if !errors.Is(err, redis.Nil) && c.logger != nil {
		c.logger.Warn("perm cache read failed", slog.String("user_id", userID), slog.Any("error", err))
	}

	data, err := c.inner.RoleData(ctx, userID)
	if err != nil {
		return RoleData{}, err
	}

	if encoded, jsonErr := json.Marshal(data); jsonErr == nil {
		if setErr := c.client.Set(ctx, key, encoded, c.ttl).Err(); setErr != nil && c.logger != nil {
			c.logger.Warn("perm cache write failed", slog.String("user_id", userID), slog.Any("error", setErr))
		}
	}
	return data, nil
}

// Invalidate drops the cached entry for userID. Callers performing grant
// mutations must invoke this before relying on a fresh permission decision.
func (c *CachedStore) Invalidate(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, c.key(userID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

func (c *CachedStore) key(userID string) string {
	return "perm:roles:" + userID
}

// validate rejects cached payloads containing role strings outside the
// closed enums.
func (d RoleData) validate() error {
	if _, err := ParseSystemRole(string(d.SystemRole)); err != nil {
		return err
	}
	for _, role := range d.HouseRoles {
		if _, err := ParseHouseRole(string(role)); err != nil {
			return err
		}
	}
	return nil
}
