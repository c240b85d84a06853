package reference

import (
	"context"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cached memoizes successful lookups of another Lookup. Errors are not
// cached.
type Cached struct {
	next  Lookup
	cache *lru.Cache[string, []Code]
}

// NewCached wraps next with an LRU cache of size entries.
func NewCached(next Lookup, size int) (*Cached, error) {
	cache, err := lru.New[string, []Code](size)
	if err != nil {
		return nil, err
	}
	return &Cached{next: next, cache: cache}, nil
}

func (c *Cached) ByPrefix(ctx context.Context, prefix string) ([]Code, error) {
	return c.load("p\x00"+prefix, func() ([]Code, error) {
		return c.next.ByPrefix(ctx, prefix)
	})
}

func (c *Cached) Search(ctx context.Context, text string, limit int) ([]Code, error) {
	return c.load("s\x00"+strconv.Itoa(limit)+"\x00"+text, func() ([]Code, error) {
		return c.next.Search(ctx, text, limit)
	})
}

func (c *Cached) load(key string, fetch func() ([]Code, error)) ([]Code, error) {
	if codes, ok := c.cache.Get(key); ok {
		return codes, nil
	}
	codes, err := fetch()
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, codes)
	return codes, nil
}
