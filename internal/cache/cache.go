// Package cache keeps single-event reads in Redis. Every invalidation bumps a
// per-event generation; a read-through fill only lands if the generation it
// started from is still current, so a row read before a commit cannot
// overwrite the invalidation that followed it.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/Shivanand-hulikatti/event-reservations/internal/model"
)

const (
	keyPrefix = "cache:events:item:"
	genPrefix = "cache:events:gen:"
	// genTTL outlives any in-flight fill by a wide margin.
	genTTL = 24 * time.Hour
)

// Version identifies the generation a cache miss was observed at. A negative
// Version never fills.
type Version int64

// NoFill is returned when the generation could not be read.
const NoFill Version = -1

// EventCache stores events by id. Implementations never fail the caller: a
// broken cache behaves like an empty one.
type EventCache interface {
	// Get returns the cached event, or on a miss the Version to hand to Set.
	Get(ctx context.Context, id string) (*model.Event, Version, bool)
	// Set stores e unless the event was invalidated since v was observed.
	Set(ctx context.Context, e *model.Event, v Version)
	Invalidate(ctx context.Context, ids ...string)
}

func key(id string) string    { return keyPrefix + id }
func genKey(id string) string { return genPrefix + id }

// fillScript writes KEYS[1] only while KEYS[2] still holds ARGV[1].
var fillScript = redis.NewScript(`
local gen = redis.call("GET", KEYS[2]) or "0"
if gen ~= ARGV[1] then
	return 0
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 1
`)

// RedisCache is an EventCache backed by go-redis.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

// Connect dials Redis and pings it once.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return rdb, nil
}

func (c *RedisCache) Get(ctx context.Context, id string) (*model.Event, Version, bool) {
	vals, err := c.rdb.MGet(ctx, key(id), genKey(id)).Result()
	if err != nil {
		logrus.WithError(err).WithField("event_id", id).Warn("event cache get failed")
		return nil, NoFill, false
	}
	gen := Version(0)
	if s, ok := vals[1].(string); ok {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, NoFill, false
		}
		gen = Version(n)
	}
	raw, ok := vals[0].(string)
	if !ok {
		return nil, gen, false
	}
	var e model.Event
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		logrus.WithError(err).WithField("event_id", id).Warn("dropping undecodable cache entry")
		c.Invalidate(ctx, id)
		return nil, NoFill, false
	}
	return &e, gen, true
}

func (c *RedisCache) Set(ctx context.Context, e *model.Event, v Version) {
	if v < 0 {
		return
	}
	b, err := json.Marshal(e)
	if err != nil {
		return
	}
	err = fillScript.Run(ctx, c.rdb,
		[]string{key(e.ID), genKey(e.ID)},
		strconv.FormatInt(int64(v), 10), string(b), c.ttl.Milliseconds(),
	).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		logrus.WithError(err).WithField("event_id", e.ID).Warn("event cache set failed")
	}
}

func (c *RedisCache) Invalidate(ctx context.Context, ids ...string) {
	if len(ids) == 0 {
		return
	}
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.Del(ctx, key(id))
			pipe.Incr(ctx, genKey(id))
			pipe.Expire(ctx, genKey(id), genTTL)
		}
		return nil
	})
	if err != nil {
		logrus.WithError(err).WithField("event_ids", ids).Warn("event cache invalidation failed")
	}
}

// Noop is used when no Redis address is configured.
type Noop struct{}

func (Noop) Get(context.Context, string) (*model.Event, Version, bool) { return nil, NoFill, false }
func (Noop) Set(context.Context, *model.Event, Version)                {}
func (Noop) Invalidate(context.Context, ...string)                     {}
