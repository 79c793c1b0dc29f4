// Package redisx wraps go-redis with the namespacing, DB isolation,
// and pipeline access that RipTide's cache, coordination, workflow,
// and health packages share, following the same pattern as the
// teacher's Redis client abstraction.
package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/riptide/core/logging"
	"github.com/riptide/core/rerrors"
)

// Standard DB allocation. Components pick one of these by default so
// that a single Redis instance can host all of RipTide's state
// without key collisions; any may be overridden explicitly.
const (
	DBCache        = 0
	DBCoordination = 1
	DBWorkflow     = 2
	DBBudget       = 3
	DBJobState     = 4
)

// Client wraps a *redis.Client with a namespace prefix and DB
// isolation, and exposes the subset of operations RipTide's
// components need: string get/set, TTL, sorted sets for rate
// windows, hashes, pub/sub, and pipelines for atomic batches.
type Client struct {
	raw       *redis.Client
	db        int
	namespace string
	logger    logging.Logger
}

// Options configures a new Client.
type Options struct {
	URL          string
	DB           int
	Namespace    string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	Logger       logging.Logger
}

// New parses opts.URL, overrides the DB for isolation, and verifies
// connectivity with a bounded Ping before returning.
func New(opts Options) (*Client, error) {
	if opts.Logger == nil {
		opts.Logger = logging.NoOp{}
	}
	if opts.URL == "" {
		return nil, rerrors.New("redisx.New", rerrors.KindInvalidRequest, "", fmt.Errorf("redis URL is required"))
	}

	redisOpt, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, rerrors.New("redisx.New", rerrors.KindInvalidRequest, opts.URL, err)
	}
	if opts.DB >= 0 && opts.DB <= 15 {
		redisOpt.DB = opts.DB
	}
	if opts.PoolSize > 0 {
		redisOpt.PoolSize = opts.PoolSize
	}
	if opts.MinIdleConns > 0 {
		redisOpt.MinIdleConns = opts.MinIdleConns
	}
	if opts.DialTimeout > 0 {
		redisOpt.DialTimeout = opts.DialTimeout
	}

	raw := redis.NewClient(redisOpt)

	dialTimeout := opts.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	if err := raw.Ping(ctx).Err(); err != nil {
		opts.Logger.Error("redis connection failed", map[string]interface{}{
			"db": redisOpt.DB, "error": err,
		})
		return nil, rerrors.New("redisx.New", rerrors.KindTransport, opts.URL, err)
	}

	opts.Logger.Info("redis client connected", map[string]interface{}{
		"db": redisOpt.DB, "namespace": opts.Namespace,
	})

	return &Client{raw: raw, db: redisOpt.DB, namespace: opts.Namespace, logger: opts.Logger}, nil
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.raw.Close()
}

// DB returns the Redis database index this client is pinned to.
func (c *Client) DB() int {
	return c.db
}

// Raw exposes the underlying *redis.Client for components that need
// operations this wrapper does not cover (e.g. pub/sub subscribe).
func (c *Client) Raw() *redis.Client {
	return c.raw
}

func (c *Client) key(k string) string {
	if c.namespace == "" {
		return k
	}
	return fmt.Sprintf("%s:%s", c.namespace, k)
}

// Get retrieves a string value. Returns rerrors.KindNotFound when
// absent.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	v, err := c.raw.Get(ctx, c.key(key)).Result()
	if err == redis.Nil {
		return "", rerrors.New("redisx.Get", rerrors.KindNotFound, key, nil)
	}
	if err != nil {
		return "", rerrors.New("redisx.Get", rerrors.KindTransport, key, err)
	}
	return v, nil
}

// Set stores value with an optional TTL (zero means no expiry).
func (c *Client) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if err := c.raw.Set(ctx, c.key(key), value, ttl).Err(); err != nil {
		return rerrors.New("redisx.Set", rerrors.KindTransport, key, err)
	}
	return nil
}

// SetNX stores value only if key is absent, used for idempotency
// locks and leader election. Returns true if the lock was acquired.
func (c *Client) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	ok, err := c.raw.SetNX(ctx, c.key(key), value, ttl).Result()
	if err != nil {
		return false, rerrors.New("redisx.SetNX", rerrors.KindTransport, key, err)
	}
	return ok, nil
}

// Del removes one or more keys.
func (c *Client) Del(ctx context.Context, keys ...string) error {
	formatted := make([]string, len(keys))
	for i, k := range keys {
		formatted[i] = c.key(k)
	}
	if err := c.raw.Del(ctx, formatted...).Err(); err != nil {
		return rerrors.New("redisx.Del", rerrors.KindTransport, "", err)
	}
	return nil
}

// Exists reports whether key is present.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.raw.Exists(ctx, c.key(key)).Result()
	if err != nil {
		return false, rerrors.New("redisx.Exists", rerrors.KindTransport, key, err)
	}
	return n > 0, nil
}

// TTL returns the remaining time to live for key.
func (c *Client) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := c.raw.TTL(ctx, c.key(key)).Result()
	if err != nil {
		return 0, rerrors.New("redisx.TTL", rerrors.KindTransport, key, err)
	}
	return d, nil
}

// MGet retrieves multiple keys in one round trip, preserving order;
// missing keys come back as nil entries.
func (c *Client) MGet(ctx context.Context, keys ...string) ([]interface{}, error) {
	formatted := make([]string, len(keys))
	for i, k := range keys {
		formatted[i] = c.key(k)
	}
	vals, err := c.raw.MGet(ctx, formatted...).Result()
	if err != nil {
		return nil, rerrors.New("redisx.MGet", rerrors.KindTransport, "", err)
	}
	return vals, nil
}

// HSet writes field/value pairs into a hash.
func (c *Client) HSet(ctx context.Context, key string, values ...interface{}) error {
	if err := c.raw.HSet(ctx, c.key(key), values...).Err(); err != nil {
		return rerrors.New("redisx.HSet", rerrors.KindTransport, key, err)
	}
	return nil
}

// HGetAll reads every field of a hash.
func (c *Client) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m, err := c.raw.HGetAll(ctx, c.key(key)).Result()
	if err != nil {
		return nil, rerrors.New("redisx.HGetAll", rerrors.KindTransport, key, err)
	}
	return m, nil
}

// ZAdd adds scored members to a sorted set, used by the coordination
// package's expiry-scored cluster membership set.
func (c *Client) ZAdd(ctx context.Context, key string, members ...*redis.Z) error {
	if err := c.raw.ZAdd(ctx, c.key(key), members...).Err(); err != nil {
		return rerrors.New("redisx.ZAdd", rerrors.KindTransport, key, err)
	}
	return nil
}

// ZRemRangeByScore trims a sorted set down to its current window.
func (c *Client) ZRemRangeByScore(ctx context.Context, key, min, max string) error {
	if err := c.raw.ZRemRangeByScore(ctx, c.key(key), min, max).Err(); err != nil {
		return rerrors.New("redisx.ZRemRangeByScore", rerrors.KindTransport, key, err)
	}
	return nil
}

// ZCount counts members scored within [min, max].
func (c *Client) ZCount(ctx context.Context, key, min, max string) (int64, error) {
	n, err := c.raw.ZCount(ctx, c.key(key), min, max).Result()
	if err != nil {
		return 0, rerrors.New("redisx.ZCount", rerrors.KindTransport, key, err)
	}
	return n, nil
}

// ZRangeByScore lists sorted-set members scored within [min, max],
// used by the coordination package to list live cluster members
// after pruning expired ones.
func (c *Client) ZRangeByScore(ctx context.Context, key, min, max string) ([]string, error) {
	members, err := c.raw.ZRangeByScore(ctx, c.key(key), &redis.ZRangeBy{Min: min, Max: max}).Result()
	if err != nil {
		return nil, rerrors.New("redisx.ZRangeByScore", rerrors.KindTransport, key, err)
	}
	return members, nil
}

// Publish broadcasts a message on channel, used for cache invalidation
// notices and coordination events.
func (c *Client) Publish(ctx context.Context, channel string, message interface{}) error {
	if err := c.raw.Publish(ctx, c.key(channel), message).Err(); err != nil {
		return rerrors.New("redisx.Publish", rerrors.KindTransport, channel, err)
	}
	return nil
}

// Subscribe opens a pub/sub subscription on channel. Callers must
// close the returned *redis.PubSub.
func (c *Client) Subscribe(ctx context.Context, channel string) *redis.PubSub {
	return c.raw.Subscribe(ctx, c.key(channel))
}

// TxPipeline opens a transactional pipeline (MULTI/EXEC) for atomic
// multi-key operations, used by the cache package's SetBatch.
func (c *Client) TxPipeline() redis.Pipeliner {
	return c.raw.TxPipeline()
}

// Eval runs a Lua script, used for the coordination package's
// compare-and-delete leader election release.
func (c *Client) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	formatted := make([]string, len(keys))
	for i, k := range keys {
		formatted[i] = c.key(k)
	}
	v, err := c.raw.Eval(ctx, script, formatted, args...).Result()
	if err != nil && err != redis.Nil {
		return nil, rerrors.New("redisx.Eval", rerrors.KindTransport, "", err)
	}
	return v, nil
}

// HealthCheck pings Redis and returns any connectivity error, used by
// the health package's component probes.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := c.raw.Ping(ctx).Err(); err != nil {
		return rerrors.New("redisx.HealthCheck", rerrors.KindTransport, "", err)
	}
	return nil
}
