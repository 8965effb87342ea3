// Package slotcache keeps a short-lived redis cache of availability listings.
// Everything here is best-effort: a cache failure degrades to a store read,
// never to a request failure. Booking correctness does not depend on the
// cache; the store's uniqueness constraint is the arbiter.
package slotcache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func NewRedisClient(addr, username, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Username:     username,
		Password:     password,
		DB:           0,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 1,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return rdb, nil
}

type Cache struct {
	client *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

// New returns a cache over client. All methods are safe on a nil *Cache,
// which behaves as a permanent miss.
func New(client *redis.Client, ttl time.Duration, log zerolog.Logger) *Cache {
	return &Cache{client: client, ttl: ttl, log: log}
}

func key(doctorID int64, date string) string {
	return fmt.Sprintf("slots:%d:%s", doctorID, date)
}

func (c *Cache) Get(ctx context.Context, doctorID int64, date string) ([]string, bool) {
	if c == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, key(doctorID, date)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Debug().Err(err).Msg("slot cache read failed")
		}
		return nil, false
	}

	var slots []string
	if err := json.Unmarshal(raw, &slots); err != nil {
		c.log.Debug().Err(err).Msg("slot cache entry corrupt, dropping")
		_ = c.client.Del(ctx, key(doctorID, date)).Err()
		return nil, false
	}
	return slots, true
}

func (c *Cache) Put(ctx context.Context, doctorID int64, date string, slots []string) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(slots)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key(doctorID, date), raw, c.ttl).Err(); err != nil {
		c.log.Debug().Err(err).Msg("slot cache write failed")
	}
}

func (c *Cache) Invalidate(ctx context.Context, doctorID int64, date string) {
	if c == nil {
		return
	}
	if err := c.client.Del(ctx, key(doctorID, date)).Err(); err != nil {
		c.log.Debug().Err(err).Msg("slot cache invalidation failed")
	}
}
