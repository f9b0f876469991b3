// Package engine wires the caches and coordinators into one client-side
// runtime and exposes the high-level screen resolution flow.
package engine

import (
	"context"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/screenflow/screenflow/internal/api"
	"github.com/screenflow/screenflow/internal/config"
	"github.com/screenflow/screenflow/internal/notify"
	"github.com/screenflow/screenflow/internal/optimistic"
	"github.com/screenflow/screenflow/internal/pendingdelete"
	"github.com/screenflow/screenflow/internal/prefetch"
	"github.com/screenflow/screenflow/internal/remotedata"
	"github.com/screenflow/screenflow/internal/screen"
)

// Engine owns one backend client and the full cache and coordinator stack
// built on top of it.
type Engine struct {
	client   *api.Client
	notifier notify.Notifier
	log      zerolog.Logger

	Screens    *screen.Cache
	Data       *remotedata.Cache
	Prefetch   *prefetch.Coordinator
	Optimistic *optimistic.Coordinator
	Deletes    *pendingdelete.Controller
}

// Option configures an Engine.
type Option func(*options)

type options struct {
	client      *api.Client
	notifier    notify.Notifier
	deleteHooks pendingdelete.Hooks
}

// WithClient injects a pre-built backend client instead of constructing one
// from the configuration.
func WithClient(client *api.Client) Option {
	return func(o *options) {
		o.client = client
	}
}

// WithNotifier replaces the default log-backed notifier.
func WithNotifier(n notify.Notifier) Option {
	return func(o *options) {
		o.notifier = n
	}
}

// WithDeleteHooks sets the view callbacks driven by the pending-delete
// controller.
func WithDeleteHooks(hooks pendingdelete.Hooks) Option {
	return func(o *options) {
		o.deleteHooks = hooks
	}
}

// New builds the engine from configuration.
func New(cfg *config.Config, log zerolog.Logger, opts ...Option) *Engine {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.client == nil {
		o.client = api.New(cfg.API.BaseURL, cfg.API.Platform, api.WithTimeout(cfg.API.Timeout))
	}
	if o.notifier == nil {
		o.notifier = notify.NewLogNotifier(log)
	}

	return &Engine{
		client:   o.client,
		notifier: o.notifier,
		log:      log,
		Screens: screen.NewCache(o.client, cfg.ScreenCache.Capacity,
			ttlPolicyFromConfig(cfg.ScreenCache)),
		Data:     remotedata.NewCache(o.client, cfg.DataCache.Capacity, cfg.DataCache.TTL),
		Prefetch: prefetch.New(cfg.Prefetch.Threshold),
		Optimistic: optimistic.New(o.notifier, log,
			optimistic.WithTimeout(cfg.Optimistic.Timeout)),
		Deletes: pendingdelete.New(o.client, o.deleteHooks, o.notifier, log,
			pendingdelete.WithGraceWindow(cfg.PendingDelete.GraceWindow)),
	}
}

// ttlPolicyFromConfig translates the string-keyed config map into the
// pattern-keyed policy. Unknown pattern names are dropped.
func ttlPolicyFromConfig(cfg config.ScreenCacheConfig) screen.TTLPolicy {
	policy := screen.TTLPolicy{
		Default:    cfg.TTL,
		PerPattern: make(map[screen.Pattern]time.Duration, len(cfg.PatternTTLs)),
	}
	for name, ttl := range cfg.PatternTTLs {
		pattern := screen.ParsePattern(name)
		if pattern == screen.PatternUnknown {
			continue
		}
		policy.PerPattern[pattern] = ttl
	}
	return policy
}

// ResolveScreen loads the definition for key and, when the screen binds a
// data endpoint, its first data page. A data fetch failure still returns the
// definition so the screen can render an error state: the caller gets
// (def, nil, err) rather than losing the layout.
func (e *Engine) ResolveScreen(ctx context.Context, key string) (*screen.Definition, *remotedata.DataPage, error) {
	def, err := e.Screens.Load(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	if def.DataEndpoint == "" {
		return def, nil, nil
	}

	cfg := remotedata.PageConfig{}
	if def.PageConfig != nil {
		cfg = *def.PageConfig
	}
	page, err := e.Data.LoadNextPage(ctx, def.DataEndpoint, cfg, 0)
	if err != nil {
		return def, nil, err
	}
	return def, page, nil
}

// LoadData loads an arbitrary data endpoint through the cache.
func (e *Engine) LoadData(ctx context.Context, endpoint string, params url.Values) (map[string]any, error) {
	return e.Data.Load(ctx, endpoint, params)
}

// EvaluatePrefetch considers a scroll position change for def's list and
// kicks off a speculative next-page load when warranted.
func (e *Engine) EvaluatePrefetch(ctx context.Context, def *screen.Definition, visibleIndex, totalItems int, hasMore bool) {
	if def.DataEndpoint == "" || def.PageConfig == nil {
		return
	}
	endpoint := def.DataEndpoint
	cfg := *def.PageConfig
	e.Prefetch.Evaluate(ctx, visibleIndex, totalItems, hasMore, func(ctx context.Context) (*remotedata.DataPage, error) {
		return e.Data.LoadNextPage(ctx, endpoint, cfg, totalItems)
	})
}

// Warmup seeds the screen cache from a bundle while holding the caller for
// at least minDuration, so a splash screen driven by this call never
// flashes. Seeding faster than minDuration does not shorten the wait;
// seeding slower extends it.
func (e *Engine) Warmup(ctx context.Context, bundle map[string]screen.BundleEntry, minDuration time.Duration) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		e.Screens.SeedFromBundle(ctx, bundle)
		return nil
	})
	g.Go(func() error {
		select {
		case <-time.After(minDuration):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	return g.Wait()
}

// RequestCount returns the number of backend round trips issued so far.
func (e *Engine) RequestCount() int64 {
	return e.client.RequestCount()
}
