package cache_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"sentra/internal/ledger"
	"sentra/internal/pipeline/cache"
)

// A nil cache is the disabled configuration; it must behave like a permanent miss.
func TestNilCacheAlwaysMisses(t *testing.T) {
	var c *cache.Cache

	_, ok := c.Get(context.Background(), "sha256:x", ledger.SensitivityPublic)
	assert.False(t, ok)

	// Put on a nil cache is a no-op, not a panic.
	c.Put(context.Background(), "sha256:x", ledger.SensitivityPublic, cache.Entry{Decision: "allow"})
}
