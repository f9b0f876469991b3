// Package remotedata caches paginated data-endpoint responses keyed by
// endpoint and query-parameter set.
package remotedata

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/screenflow/screenflow/internal/api"
	"github.com/screenflow/screenflow/internal/cache"
	"github.com/screenflow/screenflow/internal/logging"
)

// PageConfig drives pagination math and field-rename projection.
type PageConfig struct {
	PageSize     int               `json:"pageSize"`
	FieldMapping map[string]string `json:"fieldMapping,omitempty"`
}

// DataPage is one window of rows from a data endpoint. HasNextPage is the
// page-size heuristic: a full page is assumed to have a successor, so an
// exactly-full last page reads as "more data exists" until the empty page
// after it.
type DataPage struct {
	Items       []map[string]any
	HasNextPage bool
}

// Fetcher is the transport the cache pulls payloads through.
type Fetcher interface {
	FetchData(ctx context.Context, endpoint string, params url.Values) (json.RawMessage, error)
}

// Cache caches normalized data-endpoint responses. Distinct parameter sets
// get distinct entries; an identical (endpoint, params) pair within TTL is
// served without a network call. Concurrent loads for the same key collapse
// into a single fetch.
type Cache struct {
	store   *cache.Store[map[string]any]
	fetcher Fetcher
	group   singleflight.Group
}

// NewCache creates a data cache holding at most capacity entries for ttl.
func NewCache(fetcher Fetcher, capacity int, ttl time.Duration, opts ...cache.Option[map[string]any]) *Cache {
	return &Cache{
		store:   cache.NewStore(capacity, ttl, opts...),
		fetcher: fetcher,
	}
}

// Load returns the normalized payload for (endpoint, params), fetching at
// most once per key while the entry is fresh. On a transient fetch failure an
// expired entry is served silently instead.
func (c *Cache) Load(ctx context.Context, endpoint string, params url.Values) (map[string]any, error) {
	key := cacheKey(endpoint, params)

	if payload, ok := c.store.Get(key); ok {
		return payload, nil
	}

	ctx = logging.WithEndpoint(logging.WithComponent(ctx, "data-cache"), endpoint)
	result, err, _ := c.group.Do(key, func() (any, error) {
		raw, err := c.fetcher.FetchData(ctx, endpoint, params)
		if err != nil {
			if stale, ok := c.store.GetStale(key); ok && api.IsTransient(err) {
				logging.FromContext(ctx).Debug().
					Err(err).
					Msg("data fetch failed, serving stale entry")
				return stale, nil
			}
			return nil, err
		}

		payload, err := Normalize(raw)
		if err != nil {
			return nil, err
		}
		c.store.Put(key, payload, "")
		return payload, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(map[string]any), nil
}

// LoadNextPage fetches the page window starting at currentOffset and applies
// the screen's field mapping to the rows.
func (c *Cache) LoadNextPage(ctx context.Context, endpoint string, cfg PageConfig, currentOffset int) (*DataPage, error) {
	params := url.Values{}
	params.Set("offset", strconv.Itoa(currentOffset))
	if cfg.PageSize > 0 {
		params.Set("limit", strconv.Itoa(cfg.PageSize))
	}

	payload, err := c.Load(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}

	items := applyFieldMapping(ExtractItems(payload), cfg.FieldMapping)
	return &DataPage{
		Items:       items,
		HasNextPage: cfg.PageSize > 0 && len(items) >= cfg.PageSize,
	}, nil
}

// InvalidateOlderThan evicts every entry older than maxAge, independent of
// the capacity-based LRU eviction.
func (c *Cache) InvalidateOlderThan(maxAge time.Duration) {
	c.store.InvalidateOlderThan(maxAge)
}

// Clear drops every cached payload.
func (c *Cache) Clear() {
	c.store.Clear()
}

// Len returns the number of cached parameter sets.
func (c *Cache) Len() int {
	return c.store.Len()
}

// cacheKey canonicalizes (endpoint, params) into one string. Values.Encode
// sorts by key, so parameter order never splits the cache.
func cacheKey(endpoint string, params url.Values) string {
	if len(params) == 0 {
		return endpoint
	}
	return endpoint + "?" + params.Encode()
}
