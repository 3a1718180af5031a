package fetch

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"fundboard/pkg/storage"
)

const (
	DefaultCacheTTL = 5 * time.Minute
	CacheKeyPrefix  = "cache_"
)

// CacheEntry is the persisted form of a cached response.
type CacheEntry struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"` // unix milliseconds
}

// CacheKey derives the store key for a request.
func CacheKey(url string, opts Options) string {
	b, _ := json.Marshal(opts)
	return CacheKeyPrefix + url + "_" + string(b)
}

// FetchCached returns a cached response younger than ttl, or fetches, stores
// and returns a fresh one. Failures are returned as-is and leave the cache
// untouched. Expired entries are only overwritten, never evicted.
//
// Concurrent misses for one key share a single fetch that is detached from
// the caller that started it. A caller whose ctx ends stops waiting and gets
// a NetworkError wrapping ctx.Err(); the fetch still completes for the rest.
func (c *Client) FetchCached(ctx context.Context, url string, opts Options, ttl time.Duration) (json.RawMessage, error) {
	key := CacheKey(url, opts)
	if data, ok := c.lookup(key, ttl); ok {
		return data, nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		if data, ok := c.lookup(key, ttl); ok {
			return data, nil
		}
		data, err := c.Fetch(context.WithoutCancel(ctx), url, opts, c.retries)
		if err != nil {
			return nil, err
		}
		c.store.Save(key, CacheEntry{Data: data, Timestamp: c.now().UnixMilli()})
		return data, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			c.logger.Debug("Shared in-flight fetch", zap.String("url", url))
		}
		return res.Val.(json.RawMessage), nil
	case <-ctx.Done():
		return nil, &NetworkError{URL: url, Err: ctx.Err()}
	}
}

func (c *Client) lookup(key string, ttl time.Duration) (json.RawMessage, bool) {
	entry := storage.Load(c.store, key, CacheEntry{})
	if entry.Data == nil && entry.Timestamp == 0 {
		return nil, false
	}
	if c.now().Sub(time.UnixMilli(entry.Timestamp)) < ttl {
		return entry.Data, true
	}
	return nil, false
}
