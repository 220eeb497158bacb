package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientRateLimiter_Acquire(t *testing.T) {
	t.Run("allows requests under limit", func(t *testing.T) {
		limiter := NewClientRateLimiter(10, 5)

		for i := 0; i < 5; i++ {
			release, reason := limiter.Acquire()
			require.NotNil(t, release)
			assert.Empty(t, reason)
		}
	})

	t.Run("rejects when concurrent limit exceeded", func(t *testing.T) {
		limiter := NewClientRateLimiter(100, 2)

		release, _ := limiter.Acquire()
		_, _ = limiter.Acquire()

		denied, reason := limiter.Acquire()
		assert.Nil(t, denied)
		assert.Equal(t, "too many concurrent requests", reason)

		release()
		release()
		again, _ := limiter.Acquire()
		assert.NotNil(t, again)
	})

	t.Run("rejects when rate limit exceeded", func(t *testing.T) {
		limiter := NewClientRateLimiter(3, 10)

		for i := 0; i < 3; i++ {
			release, _ := limiter.Acquire()
			require.NotNil(t, release)
			release()
		}

		denied, reason := limiter.Acquire()
		assert.Nil(t, denied)
		assert.Equal(t, "rate limit exceeded", reason)
	})

	t.Run("window slides", func(t *testing.T) {
		now := time.Now()
		limiter := NewClientRateLimiter(1, 10)
		limiter.now = func() time.Time { return now }

		release, _ := limiter.Acquire()
		release()
		denied, _ := limiter.Acquire()
		assert.Nil(t, denied)

		now = now.Add(rateWindow + time.Second)
		allowed, _ := limiter.Acquire()
		assert.NotNil(t, allowed)

		count, concurrent := limiter.GetStats()
		assert.Equal(t, 1, count)
		assert.Equal(t, 1, concurrent)
	})
}

func TestNewClientRateLimiter_Defaults(t *testing.T) {
	limiter := NewClientRateLimiter(0, 0)
	assert.Equal(t, defaultRequestsPerMinute, limiter.requestsPerMinute)
	assert.Equal(t, defaultMaxConcurrent, limiter.maxConcurrent)
}

func TestLimiterRegistry(t *testing.T) {
	reg := newLimiterRegistry(5, 1)
	a := reg.get("10.0.0.1")
	assert.Same(t, a, reg.get("10.0.0.1"))
	assert.NotSame(t, a, reg.get("10.0.0.2"))
}
