package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/achtaA-a/projet-de-fin/internal/model"
)

// CachedDestinationLookup is a read-through cache in front of another
// DestinationLookup.  Misses are never cached so a destination added to
// the catalog becomes visible immediately.  With a nil client every call
// goes straight to the wrapped lookup.
//
// A cached snapshot may outlive a catalog delete or deactivation by up to
// ttl, so the lookup must not back reservation writes, which snapshot the
// destination and its price.
type CachedDestinationLookup struct {
	next   DestinationLookup
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

// NewCachedDestinationLookup wraps next with a redis cache.
func NewCachedDestinationLookup(next DestinationLookup, rdb *redis.Client, ttl time.Duration) *CachedDestinationLookup {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedDestinationLookup{next: next, rdb: rdb, ttl: ttl, prefix: "destination"}
}

func (c *CachedDestinationLookup) key(id string) string {
	return c.prefix + ":" + id
}

// Lookup serves the snapshot from redis when present, else from the
// wrapped lookup, storing the result.  Redis errors fall through.
func (c *CachedDestinationLookup) Lookup(ctx context.Context, destinationID string) (*model.DestinationSnapshot, error) {
	if c.rdb == nil {
		return c.next.Lookup(ctx, destinationID)
	}
	if bs, err := c.rdb.Get(ctx, c.key(destinationID)).Bytes(); err == nil {
		var snap model.DestinationSnapshot
		if json.Unmarshal(bs, &snap) == nil {
			return &snap, nil
		}
	}

	snap, err := c.next.Lookup(ctx, destinationID)
	if err != nil {
		return nil, err
	}
	if bs, err := json.Marshal(snap); err == nil {
		_ = c.rdb.SetEx(ctx, c.key(destinationID), bs, c.ttl).Err()
	}
	return snap, nil
}
