// Package cache implements RipTide's persistent extraction cache: a
// Redis-backed store keyed by a namespaced, versioned hash of the
// cache key, with optional zstd compression and SHA-256 integrity
// verification on read, following the teacher's in-memory Memory
// store generalized onto a durable backend.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/riptide/core/logging"
	"github.com/riptide/core/redisx"
	"github.com/riptide/core/rerrors"
)

// Mode controls how Set interacts with distributed invalidation.
type Mode string

const (
	// ModeReadWrite is the default: writes populate the cache and
	// broadcast an invalidation notice to other instances so their
	// local views stay consistent.
	ModeReadWrite Mode = "read_write"
	// ModeWriteOnly writes to the backing store but skips local
	// population elsewhere — used when warming the cache from a
	// batch job. It still broadcasts invalidation: any instance
	// already holding state for that key in a downstream layer must
	// be told to refetch, even though this writer doesn't care about
	// read-your-write visibility for itself.
	ModeWriteOnly Mode = "write_only"
)

// Entry is a cached extraction result envelope.
type Entry struct {
	Value       []byte    `json:"value"`
	ContentType string    `json:"content_type"`
	StoredAt    time.Time `json:"stored_at"`
}

// Options configures a Cache.
type Options struct {
	Redis             *redisx.Client
	KeyPrefix         string
	Namespace         string
	KeyVersion        string
	DefaultTTL        time.Duration
	CompressionEnable bool
	// CompressionMinBytes is the smallest payload size compression is
	// attempted on; below this the overhead isn't worth it.
	CompressionMinBytes int
	// CompressionMinRatio rejects compression unless the compressed
	// payload is at most this fraction of the original size, storing
	// the original instead.
	CompressionMinRatio float64
	InvalidationChannel string
	Logger              logging.Logger
}

// Cache is RipTide's persistent, namespaced extraction cache.
type Cache struct {
	redis     *redisx.Client
	prefix    string
	namespace string
	version   string
	ttl       time.Duration

	compress    bool
	minBytes    int
	minRatio    float64
	encoder     *zstd.Encoder
	decoder     *zstd.Decoder

	invalidationChannel string
	logger               logging.Logger
}

// New constructs a Cache. A nil/zero CompressionMinRatio defaults to
// 0.9 (require at least 10% size reduction).
func New(opts Options) (*Cache, error) {
	if opts.Redis == nil {
		return nil, rerrors.New("cache.New", rerrors.KindInvalidRequest, "", fmt.Errorf("redis client is required"))
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOp{}
	}
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "riptide:cache"
	}
	if opts.KeyVersion == "" {
		opts.KeyVersion = "v1"
	}
	if opts.CompressionMinBytes <= 0 {
		opts.CompressionMinBytes = 1024
	}
	if opts.CompressionMinRatio <= 0 {
		opts.CompressionMinRatio = 0.9
	}
	if opts.InvalidationChannel == "" {
		opts.InvalidationChannel = "riptide:cache:invalidate"
	}

	c := &Cache{
		redis:                opts.Redis,
		prefix:               opts.KeyPrefix,
		namespace:            opts.Namespace,
		version:              opts.KeyVersion,
		ttl:                  opts.DefaultTTL,
		compress:             opts.CompressionEnable,
		minBytes:             opts.CompressionMinBytes,
		minRatio:             opts.CompressionMinRatio,
		invalidationChannel:  opts.InvalidationChannel,
		logger:               opts.Logger,
	}

	if c.compress {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, rerrors.New("cache.New", rerrors.KindInternal, "", err)
		}
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, rerrors.New("cache.New", rerrors.KindInternal, "", err)
		}
		c.encoder = enc
		c.decoder = dec
	}

	return c, nil
}

// namespacedKey produces {prefix}:{namespace?}:{version}:{sha256(key)[0..16]}.
func (c *Cache) namespacedKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	digest := hex.EncodeToString(sum[:])[:16]
	if c.namespace != "" {
		return fmt.Sprintf("%s:%s:%s:%s", c.prefix, c.namespace, c.version, digest)
	}
	return fmt.Sprintf("%s:%s:%s", c.prefix, c.version, digest)
}

// wireRecord is the on-disk envelope: the (possibly compressed)
// payload, a flag noting whether it's compressed, and a SHA-256
// integrity hash of the original uncompressed bytes.
type wireRecord struct {
	Data       []byte `json:"data"`
	Compressed bool   `json:"compressed"`
	Hash       string `json:"hash"`
}

func hashOf(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func (c *Cache) encode(entry Entry) ([]byte, error) {
	raw, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}
	rec := wireRecord{Data: raw, Hash: hashOf(raw)}

	if c.compress && len(raw) >= c.minBytes {
		compressed := c.encoder.EncodeAll(raw, nil)
		if float64(len(compressed)) <= float64(len(raw))*c.minRatio {
			rec.Data = compressed
			rec.Compressed = true
		}
	}
	return json.Marshal(rec)
}

func (c *Cache) decode(wire []byte) (Entry, error) {
	var rec wireRecord
	if err := json.Unmarshal(wire, &rec); err != nil {
		return Entry{}, rerrors.New("cache.decode", rerrors.KindIntegrity, "", err)
	}

	raw := rec.Data
	if rec.Compressed {
		if c.decoder == nil {
			return Entry{}, rerrors.New("cache.decode", rerrors.KindIntegrity, "", fmt.Errorf("compressed entry but compression disabled"))
		}
		decompressed, err := c.decoder.DecodeAll(rec.Data, nil)
		if err != nil {
			return Entry{}, rerrors.New("cache.decode", rerrors.KindIntegrity, "", err)
		}
		raw = decompressed
	}

	if hashOf(raw) != rec.Hash {
		return Entry{}, rerrors.New("cache.decode", rerrors.KindIntegrity, "", fmt.Errorf("integrity hash mismatch"))
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return Entry{}, rerrors.New("cache.decode", rerrors.KindIntegrity, "", err)
	}
	return entry, nil
}

// Get retrieves an entry, verifying its integrity hash and
// transparently decompressing it. Returns rerrors.KindNotFound when
// absent or expired (the backing TTL already enforces expiry, this
// surfaces it as a cache-shaped error).
func (c *Cache) Get(ctx context.Context, key string) (Entry, error) {
	raw, err := c.redis.Get(ctx, c.namespacedKey(key))
	if err != nil {
		if rerrors.Is(err, rerrors.KindNotFound) {
			c.logger.Debug("cache miss", map[string]interface{}{"key": key})
		}
		return Entry{}, err
	}
	entry, err := c.decode([]byte(raw))
	if err != nil {
		c.logger.Warn("cache entry failed integrity check, treating as miss", map[string]interface{}{"key": key, "error": err})
		return Entry{}, rerrors.New("cache.Get", rerrors.KindNotFound, key, err)
	}
	c.logger.Debug("cache hit", map[string]interface{}{"key": key})
	return entry, nil
}

// Set stores entry under key with the cache's default TTL (or ttl if
// non-zero), and broadcasts a distributed invalidation notice so
// other instances drop any stale local copy — including in
// ModeWriteOnly, since the point of invalidation is telling other
// instances "this changed," independent of whether this writer wants
// to read its own write back.
func (c *Cache) Set(ctx context.Context, key string, entry Entry, ttl time.Duration, mode Mode) error {
	if ttl <= 0 {
		ttl = c.ttl
	}
	entry.StoredAt = time.Now()

	wire, err := c.encode(entry)
	if err != nil {
		return rerrors.New("cache.Set", rerrors.KindInternal, key, err)
	}

	nsKey := c.namespacedKey(key)
	if err := c.redis.Set(ctx, nsKey, wire, ttl); err != nil {
		return err
	}

	if pubErr := c.redis.Publish(ctx, c.invalidationChannel, nsKey); pubErr != nil {
		c.logger.Warn("cache invalidation broadcast failed", map[string]interface{}{"key": key, "error": pubErr})
	}
	return nil
}

// Delete removes an entry and broadcasts invalidation.
func (c *Cache) Delete(ctx context.Context, key string) error {
	nsKey := c.namespacedKey(key)
	if err := c.redis.Del(ctx, nsKey); err != nil {
		return err
	}
	if pubErr := c.redis.Publish(ctx, c.invalidationChannel, nsKey); pubErr != nil {
		c.logger.Warn("cache invalidation broadcast failed", map[string]interface{}{"key": key, "error": pubErr})
	}
	return nil
}

// GetBatch retrieves multiple keys in one round trip. Missing or
// corrupt entries are simply absent from the result map.
func (c *Cache) GetBatch(ctx context.Context, keys []string) (map[string]Entry, error) {
	nsKeys := make([]string, len(keys))
	for i, k := range keys {
		nsKeys[i] = c.namespacedKey(k)
	}
	vals, err := c.redis.MGet(ctx, nsKeys...)
	if err != nil {
		return nil, err
	}

	out := make(map[string]Entry, len(keys))
	for i, v := range vals {
		if v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		entry, err := c.decode([]byte(s))
		if err != nil {
			c.logger.Warn("cache batch entry failed integrity check", map[string]interface{}{"key": keys[i], "error": err})
			continue
		}
		out[keys[i]] = entry
	}
	return out, nil
}

// SetBatch stores multiple entries via a pipeline for efficiency,
// then broadcasts one invalidation notice per key.
func (c *Cache) SetBatch(ctx context.Context, entries map[string]Entry, ttl time.Duration, mode Mode) error {
	if ttl <= 0 {
		ttl = c.ttl
	}
	pipe := c.redis.TxPipeline()
	nsKeys := make([]string, 0, len(entries))
	for key, entry := range entries {
		entry.StoredAt = time.Now()
		wire, err := c.encode(entry)
		if err != nil {
			return rerrors.New("cache.SetBatch", rerrors.KindInternal, key, err)
		}
		nsKey := c.namespacedKey(key)
		nsKeys = append(nsKeys, nsKey)
		pipe.Set(ctx, nsKey, wire, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return rerrors.New("cache.SetBatch", rerrors.KindTransport, "", err)
	}

	for _, nsKey := range nsKeys {
		if pubErr := c.redis.Publish(ctx, c.invalidationChannel, nsKey); pubErr != nil {
			c.logger.Warn("cache invalidation broadcast failed", map[string]interface{}{"key": nsKey, "error": pubErr})
		}
	}
	return nil
}

// ClearPattern deletes every key under this cache's namespace whose
// unhashed form matched a caller-supplied prefix is not knowable post
// hash, so ClearPattern instead scans and deletes all keys sharing
// this cache's prefix:namespace:version stem — used to evict an
// entire namespace (e.g. one tenant) in one call.
func (c *Cache) ClearPattern(ctx context.Context) (int, error) {
	pattern := c.stemPattern()
	iter := c.redis.Raw().Scan(ctx, 0, pattern, 200).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, rerrors.New("cache.ClearPattern", rerrors.KindTransport, pattern, err)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := c.redis.Raw().Del(ctx, keys...).Err(); err != nil {
		return 0, rerrors.New("cache.ClearPattern", rerrors.KindTransport, pattern, err)
	}
	for _, k := range keys {
		if pubErr := c.redis.Publish(ctx, c.invalidationChannel, k); pubErr != nil {
			c.logger.Warn("cache invalidation broadcast failed", map[string]interface{}{"key": k, "error": pubErr})
		}
	}
	return len(keys), nil
}

func (c *Cache) stemPattern() string {
	if c.namespace != "" {
		return fmt.Sprintf("%s:%s:%s:*", c.prefix, c.namespace, c.version)
	}
	return fmt.Sprintf("%s:%s:*", c.prefix, c.version)
}

// Subscribe returns a channel of namespaced keys invalidated by any
// instance (including this one), for callers maintaining a local
// hot-path cache in front of Redis.
func (c *Cache) Subscribe(ctx context.Context) (<-chan string, func()) {
	sub := c.redis.Subscribe(ctx, c.invalidationChannel)
	out := make(chan string, 64)
	go func() {
		defer close(out)
		ch := sub.Channel()
		for msg := range ch {
			select {
			case out <- msg.Payload:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, func() { sub.Close() }
}
