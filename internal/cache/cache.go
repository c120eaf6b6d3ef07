package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JustinTDCT/SerialDesk/internal/logger"
)

const (
	// SnapshotKeyPrefix prefixes the encoded snapshot of each generation.
	SnapshotKeyPrefix = "snapshot:all:"
	// GenerationKey counts invalidations. A snapshot is only ever read from,
	// and written to, the key of the generation current when its load began.
	GenerationKey = "snapshot:gen"
)

// SnapshotCache is a Redis cache-aside layer for the aggregate snapshot. A nil
// or disabled cache turns every operation into a no-op.
type SnapshotCache struct {
	rdb *redis.Client
	ttl time.Duration
	log *logger.Logger
}

// ParseOptions accepts a redis:// URL or a bare host:port address.
func ParseOptions(redisURL string) (*redis.Options, error) {
	if !strings.Contains(redisURL, "://") {
		return &redis.Options{Addr: redisURL}, nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	return opts, nil
}

// New connects to Redis. An empty URL or a failed ping disables caching.
func New(ctx context.Context, redisURL string, ttl time.Duration, log *logger.Logger) *SnapshotCache {
	if redisURL == "" {
		log.Info("redis: no URL configured, snapshot caching disabled")
		return nil
	}
	opts, err := ParseOptions(redisURL)
	if err != nil {
		log.Warn("redis: invalid URL, snapshot caching disabled", "error", err)
		return nil
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Warn("redis: connection failed, snapshot caching disabled", "error", err)
		_ = rdb.Close()
		return nil
	}
	log.Info("redis: connected, snapshot caching enabled", "ttl", ttl)
	return NewWithClient(rdb, ttl, log)
}

func NewWithClient(rdb *redis.Client, ttl time.Duration, log *logger.Logger) *SnapshotCache {
	return &SnapshotCache{rdb: rdb, ttl: ttl, log: log}
}

func (c *SnapshotCache) Enabled() bool {
	return c != nil && c.rdb != nil
}

func snapshotKey(gen int64) string {
	return SnapshotKeyPrefix + strconv.FormatInt(gen, 10)
}

// Get returns the snapshot cached for the current generation. gen is the
// generation a freshly loaded snapshot must be stored under; it is -1 when
// the generation could not be read, which makes the following Set a no-op.
func (c *SnapshotCache) Get(ctx context.Context) (data []byte, gen int64, ok bool) {
	if !c.Enabled() {
		return nil, -1, false
	}
	gen, err := c.rdb.Get(ctx, GenerationKey).Int64()
	if errors.Is(err, redis.Nil) {
		gen, err = 0, nil
	}
	if err != nil {
		c.log.Warn("redis: snapshot generation read failed", "error", err)
		return nil, -1, false
	}
	data, err = c.rdb.Get(ctx, snapshotKey(gen)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, gen, false
	}
	if err != nil {
		c.log.Warn("redis: snapshot read failed", "error", err)
		return nil, gen, false
	}
	return data, gen, true
}

// Set stores data for generation gen. A write that invalidated the cache
// after gen was read has already moved readers to a newer key, so a stale
// snapshot stored here is never served.
func (c *SnapshotCache) Set(ctx context.Context, gen int64, data []byte) {
	if !c.Enabled() || gen < 0 {
		return
	}
	if err := c.rdb.Set(ctx, snapshotKey(gen), data, c.ttl).Err(); err != nil {
		c.log.Warn("redis: snapshot write failed", "error", err)
	}
}

// Invalidate starts a new generation after a write.
func (c *SnapshotCache) Invalidate(ctx context.Context) {
	if !c.Enabled() {
		return
	}
	if err := c.rdb.Incr(ctx, GenerationKey).Err(); err != nil {
		c.log.Warn("redis: snapshot invalidation failed", "error", err)
	}
}

// Ping reports Redis reachability for the status endpoint.
func (c *SnapshotCache) Ping(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	return c.rdb.Ping(ctx).Err()
}

func (c *SnapshotCache) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.rdb.Close()
}
