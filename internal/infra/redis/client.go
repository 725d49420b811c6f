package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/vietddude/flightontime/internal/core/domain"
)

// Client wraps Redis operations for batch coordination.
type Client struct {
	rdb        *redis.Client
	lockTTL    time.Duration
	summaryTTL time.Duration
}

// Config holds Redis connection configuration. An empty URL disables Redis.
type Config struct {
	URL        string        `yaml:"url"`
	Password   string        `yaml:"password"`
	LockTTL    time.Duration `yaml:"lock_ttl"`
	SummaryTTL time.Duration `yaml:"summary_ttl"`
}

// Enabled reports whether a Redis URL was configured.
func (c Config) Enabled() bool {
	return c.URL != ""
}

// NewClient creates a new Redis client.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb, lockTTL: cfg.LockTTL, summaryTTL: cfg.SummaryTTL}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Key helpers
func lockKey(batchID string) string {
	return fmt.Sprintf("flightontime:batch:lock:%s", batchID)
}

func summaryKey(batchID string) string {
	return fmt.Sprintf("flightontime:batch:summary:%s", batchID)
}

// ErrLockLost is returned when a batch lock expired or was taken by another upload.
var ErrLockLost = errors.New("batch lock lost")

// releaseScript deletes the lock only while it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// refreshScript extends the lock TTL only while it still holds the caller's token.
var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// AcquireBatch takes the processing lock for a batch ID and returns the token
// that owns it. Returns domain.ErrBatchInProgress when another upload holds it.
func (c *Client) AcquireBatch(ctx context.Context, batchID string) (string, error) {
	token := uuid.NewString()
	ok, err := c.rdb.SetNX(ctx, lockKey(batchID), token, c.lockTTL).Result()
	if err != nil {
		return "", fmt.Errorf("setnx failed: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrBatchInProgress, batchID)
	}
	return token, nil
}

// RefreshBatch extends the lock TTL. Returns ErrLockLost when token no longer owns it.
func (c *Client) RefreshBatch(ctx context.Context, batchID, token string) error {
	n, err := refreshScript.Run(ctx, c.rdb, []string{lockKey(batchID)}, token, c.lockTTL.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("refresh lock failed: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrLockLost, batchID)
	}
	return nil
}

// ReleaseBatch releases the processing lock if token still owns it.
func (c *Client) ReleaseBatch(ctx context.Context, batchID, token string) error {
	n, err := releaseScript.Run(ctx, c.rdb, []string{lockKey(batchID)}, token).Int()
	if err != nil {
		return fmt.Errorf("release lock failed: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrLockLost, batchID)
	}
	return nil
}

// SaveSummary caches the outcome of a finished batch.
func (c *Client) SaveSummary(ctx context.Context, batchID string, summary domain.BatchSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	return c.rdb.Set(ctx, summaryKey(batchID), data, c.summaryTTL).Err()
}

// GetSummary returns a cached batch summary. found is false when nothing is cached.
func (c *Client) GetSummary(
	ctx context.Context,
	batchID string,
) (summary domain.BatchSummary, found bool, err error) {
	val, err := c.rdb.Get(ctx, summaryKey(batchID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return summary, false, nil
	}
	if err != nil {
		return summary, false, fmt.Errorf("get failed: %w", err)
	}
	if err := json.Unmarshal(val, &summary); err != nil {
		return summary, false, fmt.Errorf("invalid summary payload: %w", err)
	}
	return summary, true, nil
}
