package docstore

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/plastic-io/graph-server/internal/config"
)

// readCache holds serialized latest projections keyed by blob key. Bytes are
// cached rather than decoded documents so a cached read can never alias state
// a later mutation touches.
type readCache interface {
	get(key string) ([]byte, bool)
	add(key string, body []byte)
	remove(key string)
}

type lruCache struct {
	inner *lru.Cache[string, []byte]
}

func newReadCache(policy config.CachePolicy) readCache {
	if !policy.Enabled {
		return noopCache{}
	}
	size := policy.Size
	if size <= 0 {
		size = 128
	}
	inner, err := lru.New[string, []byte](size)
	if err != nil {
		return noopCache{}
	}
	return &lruCache{inner: inner}
}

func (c *lruCache) get(key string) ([]byte, bool) { return c.inner.Get(key) }
func (c *lruCache) add(key string, body []byte)   { c.inner.Add(key, body) }
func (c *lruCache) remove(key string)             { c.inner.Remove(key) }

type noopCache struct{}

func (noopCache) get(string) ([]byte, bool) { return nil, false }
func (noopCache) add(string, []byte)        {}
func (noopCache) remove(string)             {}
