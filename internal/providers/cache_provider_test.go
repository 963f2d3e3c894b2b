package providers

import (
	"anonbot/internal/structures"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// local mock logger to avoid import cycle with testutil
type cacheTestLogger struct {
	warnings int
}

func (m *cacheTestLogger) Errorf(_ TypeEnum, _ string, _ ...interface{}) {}
func (m *cacheTestLogger) Warnf(_ TypeEnum, _ string, _ ...interface{})  { m.warnings++ }
func (m *cacheTestLogger) Debugf(_ TypeEnum, _ string, _ ...interface{}) {}
func (m *cacheTestLogger) Infof(_ TypeEnum, _ string, _ ...interface{})  {}
func (m *cacheTestLogger) Fatalf(_ TypeEnum, _ string, _ ...interface{}) {}
func (m *cacheTestLogger) Close()                                        {}

func cacheConfig(enabled bool, size int, ttl time.Duration) *structures.Config {
	return &structures.Config{
		Cache: structures.CacheConfig{
			Enabled:    enabled,
			Size:       size,
			TTLSeconds: int(ttl.Seconds()),
		},
	}
}

func TestCacheProvider_DisabledWarnsAndReturnsNoop(t *testing.T) {
	logger := &cacheTestLogger{}
	c := NewCacheProvider(cacheConfig(false, 10, 5*time.Second), logger)

	assert.IsType(t, &noopCache{}, c)
	assert.Equal(t, 1, logger.warnings)

	c.Set([]byte("k"), []byte("v"))
	_, ok := c.Get([]byte("k"))
	assert.False(t, ok)
	assert.Zero(t, c.Len())
	assert.False(t, c.Del([]byte("k")))
}

func TestCacheProvider_ZeroSizeReturnsNoop(t *testing.T) {
	c := NewCacheProvider(cacheConfig(true, 0, 5*time.Second), &cacheTestLogger{})
	assert.IsType(t, &noopCache{}, c)
}

func TestCacheProvider_SetGetOverwrite(t *testing.T) {
	c := NewCacheProvider(cacheConfig(true, 1, time.Minute), &cacheTestLogger{})
	require.IsType(t, &CacheProvider{}, c)

	key := []byte{0, 0, 0, 1, 0, 0, 0, 2}
	c.Set(key, []byte("v1"))
	c.Set(key, []byte("v2"))

	val, ok := c.Get(key)
	assert.True(t, ok)
	assert.Equal(t, []byte("v2"), val)
	assert.Equal(t, int64(1), c.Len())

	_, ok = c.Get([]byte("other"))
	assert.False(t, ok)
}

func TestCacheProvider_Del(t *testing.T) {
	c := NewCacheProvider(cacheConfig(true, 1, time.Minute), &cacheTestLogger{})

	c.Set([]byte("a"), []byte("1"))
	c.Set([]byte("b"), []byte("2"))

	assert.True(t, c.Del([]byte("a")))
	assert.False(t, c.Del([]byte("a")))
	_, ok := c.Get([]byte("a"))
	assert.False(t, ok)
	assert.Equal(t, int64(1), c.Len())
}

func TestCacheProvider_OversizedValueWarns(t *testing.T) {
	logger := &cacheTestLogger{}
	c := NewCacheProvider(cacheConfig(true, 1, time.Minute), logger)

	// freecache refuses entries larger than 1/1024 of its size
	c.Set([]byte("big"), make([]byte, 4096))
	assert.Equal(t, 1, logger.warnings)
	_, ok := c.Get([]byte("big"))
	assert.False(t, ok)
}

func TestCacheProvider_TTLExpiry(t *testing.T) {
	c := NewCacheProvider(cacheConfig(true, 1, time.Second), &cacheTestLogger{})

	c.Set([]byte("key1"), []byte("value1"))
	_, ok := c.Get([]byte("key1"))
	require.True(t, ok)

	time.Sleep(2100 * time.Millisecond)

	_, ok = c.Get([]byte("key1"))
	assert.False(t, ok)
}
