package common

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// Cache holds rendered content listings and posts. Entries live for the ttl
// given to NewCache.
type Cache struct {
	c *cache.Cache
}

// NewCache returns a cache whose entries expire after ttl. A zero ttl keeps
// entries until Flush.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		return &Cache{c: cache.New(cache.NoExpiration, 0)}
	}
	return &Cache{c: cache.New(ttl, 2*ttl)}
}

func (c *Cache) Set(key string, value any) {
	c.c.Set(key, value, cache.DefaultExpiration)
}

func (c *Cache) Get(key string) (any, bool) {
	return c.c.Get(key)
}

// Flush drops every entry. Called whenever the content on disk changes.
func (c *Cache) Flush() {
	c.c.Flush()
}

func (c *Cache) Len() int {
	return c.c.ItemCount()
}

// CacheKeyPosts keys the published listing of a post type. An empty type
// means all types.
func CacheKeyPosts(postType string) string {
	if postType == "" {
		return "posts:all"
	}
	return "posts:" + postType
}

func CacheKeyPost(postType, slug string) string {
	return "post:" + postType + ":" + slug
}
