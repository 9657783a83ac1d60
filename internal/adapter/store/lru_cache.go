package store

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// LRUCache is the bounded prompt -> answer store. Reads and writes of an
// existing key refresh its recency.
type LRUCache struct {
	entries *lru.Cache[string, string]
}

func NewLRUCache(capacity int, log *zap.Logger) (*LRUCache, error) {
	log = log.Named("cache")
	entries, err := lru.NewWithEvict(capacity, func(key string, _ string) {
		log.Debug("evicted", zap.String("key", key))
	})
	if err != nil {
		return nil, err
	}
	return &LRUCache{entries: entries}, nil
}

func (c *LRUCache) Get(key string) (string, bool) {
	return c.entries.Get(key)
}

func (c *LRUCache) Put(key, text string) {
	c.entries.Add(key, text)
}

func (c *LRUCache) Len() int {
	return c.entries.Len()
}
