package providers

import (
	"anonbot/internal/structures"

	"github.com/coocood/freecache"
)

// CacheProviderInterface is a TTL cache with binary keys. Entries may be
// evicted early under memory pressure.
type CacheProviderInterface interface {
	Get(key []byte) ([]byte, bool)
	Set(key, value []byte)
	Del(key []byte) bool
	Len() int64
}

type CacheProvider struct {
	cache  *freecache.Cache
	ttl    int
	logger Logger
}

func NewCacheProvider(conf *structures.Config, logger Logger) CacheProviderInterface {
	if !conf.Cache.Enabled || conf.Cache.Size <= 0 {
		logger.Warnf(TypeApp, "Cache disabled, admin replies to forwarded messages cannot be routed")
		return &noopCache{}
	}

	ttl := max(conf.Cache.TTLSeconds, 0)
	logger.Infof(TypeApp, "Reply route cache: %dMB, TTL=%ds", conf.Cache.Size, ttl)

	return &CacheProvider{
		cache:  freecache.NewCache(conf.Cache.Size * 1024 * 1024),
		ttl:    ttl,
		logger: logger,
	}
}

func (c *CacheProvider) Get(key []byte) ([]byte, bool) {
	val, err := c.cache.Get(key)
	if err != nil {
		return nil, false
	}
	return val, true
}

func (c *CacheProvider) Set(key, value []byte) {
	if err := c.cache.Set(key, value, c.ttl); err != nil {
		c.logger.Warnf(TypeApp, "Cache set: %s", err)
	}
}

func (c *CacheProvider) Del(key []byte) bool {
	return c.cache.Del(key)
}

func (c *CacheProvider) Len() int64 {
	return c.cache.EntryCount()
}

type noopCache struct{}

func (n *noopCache) Get(_ []byte) ([]byte, bool) { return nil, false }
func (n *noopCache) Set(_, _ []byte)             {}
func (n *noopCache) Del(_ []byte) bool           { return false }
func (n *noopCache) Len() int64                  { return 0 }
