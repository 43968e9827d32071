// Package cache memoizes pipeline decisions in Redis, keyed by the content
// fingerprint and sensitivity level. A cache hit skips tier inference but
// never skips the audit trail: every request still writes its ledger entry.
//
// The cache is strictly best-effort. Redis being down degrades to computing
// the decision; it never fails a request.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"sentra/internal/ledger"
)

// Entry is the cached decision payload.
type Entry struct {
	Decision        string   `json:"decision"`
	Confidence      float64  `json:"confidence"`
	Reasons         []string `json:"reasons,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
	Method          string   `json:"method"`
}

// Cache wraps a Redis client. A nil *Cache is valid and always misses.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// New creates a decision cache. TTL defaults to 10 minutes when zero.
func New(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{client: client, ttl: ttl, logger: logger}
}

func key(inputHash string, level ledger.SensitivityLevel) string {
	return fmt.Sprintf("sentra:decision:%s:%s", level, inputHash)
}

// Get returns the cached entry for the fingerprint, or ok=false on miss or
// any Redis failure.
func (c *Cache) Get(ctx context.Context, inputHash string, level ledger.SensitivityLevel) (Entry, bool) {
	if c == nil || c.client == nil {
		return Entry{}, false
	}
	raw, err := c.client.Get(ctx, key(inputHash, level)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Debug("decision cache read failed", "error", err)
		}
		return Entry{}, false
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return Entry{}, false
	}
	return entry, true
}

// Put stores a decision. Failures are logged and swallowed.
func (c *Cache) Put(ctx context.Context, inputHash string, level ledger.SensitivityLevel, entry Entry) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key(inputHash, level), raw, c.ttl).Err(); err != nil {
		c.logger.Debug("decision cache write failed", "error", err)
	}
}
