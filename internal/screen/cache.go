// Package screen caches parsed screen definitions by screen key, with
// conditional revalidation, version-comparison invalidation and bulk seeding
// from server-pushed bundles.
package screen

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/screenflow/screenflow/internal/api"
	"github.com/screenflow/screenflow/internal/cache"
	"github.com/screenflow/screenflow/internal/logging"
	"github.com/screenflow/screenflow/internal/remotedata"
)

// seedConcurrency bounds the number of bundle entries processed in parallel.
const seedConcurrency = 8

// Fetcher is the transport the screen cache revalidates through.
type Fetcher interface {
	// FetchScreen fetches the payload for key, sending validator as
	// If-None-Match when non-empty. Returns notModified=true on a 304.
	FetchScreen(ctx context.Context, key, validator string) (*api.ScreenPayload, bool, error)

	// FetchVersion fetches the current semver string for key.
	FetchVersion(ctx context.Context, key string) (string, error)
}

// Cache resolves screen keys to parsed definitions with at most one network
// round trip per key while an entry is fresh.
type Cache struct {
	store   *cache.Store[*Definition]
	fetcher Fetcher
	policy  TTLPolicy
	group   singleflight.Group
}

// NewCache creates a screen cache with the given capacity and TTL policy.
func NewCache(fetcher Fetcher, capacity int, policy TTLPolicy, opts ...cache.Option[*Definition]) *Cache {
	return &Cache{
		store:   cache.NewStore(capacity, policy.Default, opts...),
		fetcher: fetcher,
		policy:  policy,
	}
}

// Load resolves key to a definition. A fresh cache hit returns immediately
// with zero network calls. On miss or expiry the fetch is conditional when a
// validator is held: a 304 refreshes recency without re-parsing. A transient
// fetch failure falls back to the resident entry, expired or not; without
// one, the failure propagates. Concurrent loads for the same key collapse
// into a single fetch.
func (c *Cache) Load(ctx context.Context, key string) (*Definition, error) {
	if def, ok := c.store.Get(key); ok {
		return def, nil
	}

	ctx = logging.WithComponent(ctx, "screen-cache")
	result, err, _ := c.group.Do(key, func() (any, error) {
		return c.fetch(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	return result.(*Definition), nil
}

func (c *Cache) fetch(ctx context.Context, key string) (*Definition, error) {
	ctx = logging.WithScreenKey(ctx, key)
	log := logging.FromContext(ctx)

	validator, _ := c.store.Validator(key)
	payload, notModified, err := c.fetcher.FetchScreen(ctx, key, validator)
	if err != nil {
		if stale, ok := c.store.GetStale(key); ok && api.IsTransient(err) {
			log.Debug().Err(err).
				Msg("screen fetch failed, serving stale definition")
			return stale, nil
		}
		return nil, fmt.Errorf("load screen %q: %w", key, err)
	}

	if notModified {
		// The server confirmed our copy; restart its TTL and keep the
		// parsed definition as-is.
		c.store.Touch(key)
		if def, ok := c.store.GetStale(key); ok {
			return def, nil
		}
		// 304 without a resident entry means the validator outlived the
		// value; refetch unconditionally.
		payload, _, err = c.fetcher.FetchScreen(ctx, key, "")
		if err != nil {
			return nil, fmt.Errorf("load screen %q: %w", key, err)
		}
	}

	def, err := definitionFromPayload(key, payload)
	if err != nil {
		return nil, fmt.Errorf("load screen %q: %w", key, err)
	}
	c.store.PutTTL(key, def, payload.Validator, c.policy.For(def.Pattern))
	return def, nil
}

// SeedFromBundle bulk-ingests a server-pushed snapshot without network
// calls. Entries are processed concurrently and validated independently:
// unparseable templates, bad version strings and zero-TTL patterns are
// skipped without affecting the rest of the bundle.
func (c *Cache) SeedFromBundle(ctx context.Context, bundle map[string]BundleEntry) {
	ctx = logging.WithComponent(ctx, "screen-cache")
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(seedConcurrency)

	for key, entry := range bundle {
		key, entry := key, entry
		g.Go(func() error {
			c.seedEntry(ctx, key, entry)
			return nil
		})
	}
	// Per-entry failures are swallowed above, so Wait never errors.
	_ = g.Wait()
}

func (c *Cache) seedEntry(ctx context.Context, key string, entry BundleEntry) {
	log := logging.FromContext(logging.WithScreenKey(ctx, key))

	pattern := ParsePattern(entry.Pattern)
	ttl := c.policy.For(pattern)
	if ttl <= 0 {
		log.Debug().Str("pattern", entry.Pattern).
			Msg("skipping bundle entry with zero-TTL pattern")
		return
	}

	major, err := majorVersion(entry.Version)
	if err != nil {
		log.Debug().Err(err).
			Msg("skipping bundle entry with bad version")
		return
	}

	tpl, err := parseTemplate(entry.Template)
	if err != nil {
		log.Debug().Err(err).
			Msg("skipping bundle entry with unparseable template")
		return
	}

	def := &Definition{
		Key:          key,
		Name:         entry.ScreenName,
		Pattern:      pattern,
		MajorVersion: major,
		Template:     tpl,
		DataEndpoint: entry.DataEndpoint,
		PageConfig:   entry.DataConfig,
		SlotData:     entry.SlotData,
		HandlerKey:   entry.HandlerKey,
	}
	c.store.PutTTL(key, def, "", ttl)
}

// CheckVersion asks the server for the current version of key and compares
// the major component against the cached definition. A differing major
// invalidates the entry and returns true. Any failure, network or parse, is
// silent: the cache is never evicted speculatively on error.
func (c *Cache) CheckVersion(ctx context.Context, key string) bool {
	ctx = logging.WithScreenKey(logging.WithComponent(ctx, "screen-cache"), key)
	log := logging.FromContext(ctx)

	def, ok := c.store.Peek(key)
	if !ok {
		return false
	}

	remote, err := c.fetcher.FetchVersion(ctx, key)
	if err != nil {
		log.Debug().Err(err).
			Msg("version check failed, keeping cached definition")
		return false
	}
	major, err := majorVersion(remote)
	if err != nil {
		log.Debug().Err(err).
			Msg("unparseable remote version, keeping cached definition")
		return false
	}

	if major == def.MajorVersion {
		return false
	}
	c.store.Invalidate(key)
	return true
}

// Invalidate drops the cached definition for key, validator included.
func (c *Cache) Invalidate(key string) {
	c.store.Invalidate(key)
}

// ClearCache drops every cached definition along with all validator and
// version bookkeeping.
func (c *Cache) ClearCache() {
	c.store.Clear()
}

// Len returns the number of resident definitions.
func (c *Cache) Len() int {
	return c.store.Len()
}

func definitionFromPayload(key string, payload *api.ScreenPayload) (*Definition, error) {
	tpl, err := parseTemplate(payload.Template)
	if err != nil {
		return nil, err
	}

	var pageCfg *remotedata.PageConfig
	if payload.DataConfig != nil {
		pageCfg = &remotedata.PageConfig{
			PageSize:     payload.DataConfig.PageSize,
			FieldMapping: payload.DataConfig.FieldMapping,
		}
	}

	return &Definition{
		Key:          key,
		Name:         payload.ScreenName,
		Pattern:      ParsePattern(payload.Pattern),
		MajorVersion: payload.Version,
		Template:     tpl,
		DataEndpoint: payload.DataEndpoint,
		PageConfig:   pageCfg,
		SlotData:     payload.SlotData,
		HandlerKey:   payload.HandlerKey,
	}, nil
}
