//go:build integration

package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"sentra/internal/ledger"
	"sentra/internal/pipeline/cache"
	"sentra/pkg/testutil/containers"
)

type CacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *cache.Cache
}

func TestCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(CacheSuite))
}

func (s *CacheSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.cache = cache.New(s.redis.Client, time.Minute, nil)
}

func (s *CacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *CacheSuite) TestRoundTrip() {
	ctx := context.Background()
	hash := ledger.Fingerprint("some text")

	_, ok := s.cache.Get(ctx, hash, ledger.SensitivityPersonal)
	s.False(ok)

	entry := cache.Entry{
		Decision:   "allow",
		Confidence: 0.91,
		Reasons:    []string{"no policy violation"},
		Method:     "ACCELERATED_LOCAL",
	}
	s.cache.Put(ctx, hash, ledger.SensitivityPersonal, entry)

	got, ok := s.cache.Get(ctx, hash, ledger.SensitivityPersonal)
	s.Require().True(ok)
	s.Equal(entry, got)
}

// The same fingerprint at a different level is a different cache slot:
// sanitization differs per level, so decisions must not cross levels.
func (s *CacheSuite) TestLevelIsolation() {
	ctx := context.Background()
	hash := ledger.Fingerprint("some text")

	s.cache.Put(ctx, hash, ledger.SensitivityPersonal, cache.Entry{Decision: "allow", Method: "CPU_FALLBACK"})

	_, ok := s.cache.Get(ctx, hash, ledger.SensitivityConfidential)
	s.False(ok)
}

func (s *CacheSuite) TestExpiry() {
	ctx := context.Background()
	short := cache.New(s.redis.Client, 50*time.Millisecond, nil)
	hash := ledger.Fingerprint("short lived")

	short.Put(ctx, hash, ledger.SensitivityPublic, cache.Entry{Decision: "allow", Method: "PATTERN_FALLBACK"})
	_, ok := short.Get(ctx, hash, ledger.SensitivityPublic)
	s.Require().True(ok)

	s.Eventually(func() bool {
		_, ok := short.Get(ctx, hash, ledger.SensitivityPublic)
		return !ok
	}, 2*time.Second, 25*time.Millisecond)
}
