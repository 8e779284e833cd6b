package cache

import (
	"errors"
	"time"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"
)

// Cache holds rendered public responses keyed by resource.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
	Invalidate(keys ...string)
	Clear()
}

var _ Cache = (*ContentCache)(nil)

type ContentCache struct {
	mainCache     *freecache.Cache
	expireSeconds int
}

// NewContentCache creates a freecache backed cache of sizeMB megabytes.
// freecache enforces a 512KB minimum.
func NewContentCache(sizeMB int, ttl time.Duration) *ContentCache {
	megabyte := 1024 * 1024
	return &ContentCache{
		mainCache:     freecache.NewCache(sizeMB * megabyte),
		expireSeconds: int(ttl.Seconds()),
	}
}

func (c *ContentCache) Get(key string) ([]byte, bool) {
	val, err := c.mainCache.Get([]byte(key))
	if err != nil {
		if !errors.Is(err, freecache.ErrNotFound) {
			log.Errorf("content cache get [%s]: %s", key, err)
		}
		return nil, false
	}
	return val, true
}

func (c *ContentCache) Set(key string, value []byte) {
	if err := c.mainCache.Set([]byte(key), value, c.expireSeconds); err != nil {
		log.Errorf("content cache set [%s]: %s", key, err)
	}
}

func (c *ContentCache) Invalidate(keys ...string) {
	for _, key := range keys {
		c.mainCache.Del([]byte(key))
	}
}

func (c *ContentCache) Clear() {
	c.mainCache.Clear()
}

// Nop never caches anything.
type Nop struct{}

func (Nop) Get(string) ([]byte, bool) { return nil, false }
func (Nop) Set(string, []byte)        {}
func (Nop) Invalidate(...string)      {}
func (Nop) Clear()                    {}
