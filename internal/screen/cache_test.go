package screen

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screenflow/screenflow/internal/api"
	"github.com/screenflow/screenflow/internal/cache"
)

var validTemplate = json.RawMessage(`{"zones": [{"id": "main", "type": "list"}]}`)

// MockFetcher is a func-field fetcher with call tracking.
type MockFetcher struct {
	mu          sync.Mutex
	ScreenFunc  func(ctx context.Context, key, validator string) (*api.ScreenPayload, bool, error)
	VersionFunc func(ctx context.Context, key string) (string, error)

	ScreenCalls  []string // validators sent, in call order
	VersionCalls int
}

func (m *MockFetcher) FetchScreen(ctx context.Context, key, validator string) (*api.ScreenPayload, bool, error) {
	m.mu.Lock()
	m.ScreenCalls = append(m.ScreenCalls, validator)
	m.mu.Unlock()
	return m.ScreenFunc(ctx, key, validator)
}

func (m *MockFetcher) FetchVersion(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	m.VersionCalls++
	m.mu.Unlock()
	return m.VersionFunc(ctx, key)
}

func (m *MockFetcher) ScreenCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ScreenCalls)
}

func listPayload(key string, version int) *api.ScreenPayload {
	return &api.ScreenPayload{
		ScreenKey:  key,
		ScreenName: "Screen " + key,
		Pattern:    "list",
		Version:    version,
		Template:   validTemplate,
		Validator:  fmt.Sprintf(`"v%d"`, version),
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func withClock(c *fakeClock) cache.Option[*Definition] {
	return cache.WithClock[*Definition](c.Now)
}

func TestCache_LoadCachesWithinTTL(t *testing.T) {
	fetcher := &MockFetcher{
		ScreenFunc: func(ctx context.Context, key, validator string) (*api.ScreenPayload, bool, error) {
			return listPayload(key, 1), false, nil
		},
	}
	c := NewCache(fetcher, 10, DefaultTTLPolicy())
	ctx := context.Background()

	def, err := c.Load(ctx, "home")
	require.NoError(t, err)
	assert.Equal(t, "home", def.Key)
	assert.Equal(t, PatternList, def.Pattern)
	assert.Equal(t, 1, def.MajorVersion)

	// Second load within TTL: zero network calls.
	again, err := c.Load(ctx, "home")
	require.NoError(t, err)
	assert.Same(t, def, again)
	assert.Equal(t, 1, fetcher.ScreenCallCount())
}

func TestCache_LoadRevalidatesWithValidatorAfterExpiry(t *testing.T) {
	clock := newFakeClock()
	fetcher := &MockFetcher{
		ScreenFunc: func(ctx context.Context, key, validator string) (*api.ScreenPayload, bool, error) {
			if validator == `"v1"` {
				return nil, true, nil // not modified
			}
			return listPayload(key, 1), false, nil
		},
	}
	c := NewCache(fetcher, 10, DefaultTTLPolicy(), withClock(clock))
	ctx := context.Background()

	first, err := c.Load(ctx, "home")
	require.NoError(t, err)

	clock.Advance(time.Hour)

	// Expired: the refetch goes out with If-None-Match and gets a 304,
	// which refreshes recency without re-parsing.
	second, err := c.Load(ctx, "home")
	require.NoError(t, err)
	assert.Same(t, first, second, "304 must keep the already-parsed definition")
	require.Equal(t, 2, fetcher.ScreenCallCount())
	assert.Equal(t, `"v1"`, fetcher.ScreenCalls[1])

	// The 304 restarted the TTL: a third load is a pure hit.
	_, err = c.Load(ctx, "home")
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.ScreenCallCount())
}

func TestCache_LoadServesStaleOnTransientFailure(t *testing.T) {
	clock := newFakeClock()
	healthy := true
	fetcher := &MockFetcher{
		ScreenFunc: func(ctx context.Context, key, validator string) (*api.ScreenPayload, bool, error) {
			if !healthy {
				return nil, false, &api.TransportError{URL: key, Err: context.DeadlineExceeded}
			}
			return listPayload(key, 1), false, nil
		},
	}
	c := NewCache(fetcher, 10, DefaultTTLPolicy(), withClock(clock))
	ctx := context.Background()

	def, err := c.Load(ctx, "home")
	require.NoError(t, err)

	clock.Advance(time.Hour)
	healthy = false

	stale, err := c.Load(ctx, "home")
	require.NoError(t, err, "expired entry must be served when the network is down")
	assert.Same(t, def, stale)
}

func TestCache_LoadFailurePropagatesWithoutEntry(t *testing.T) {
	fetcher := &MockFetcher{
		ScreenFunc: func(ctx context.Context, key, validator string) (*api.ScreenPayload, bool, error) {
			return nil, false, &api.TransportError{URL: key, Err: context.DeadlineExceeded}
		},
	}
	c := NewCache(fetcher, 10, DefaultTTLPolicy())

	_, err := c.Load(context.Background(), "home")
	require.Error(t, err)
}

func TestCache_LoadMalformedTemplateFails(t *testing.T) {
	fetcher := &MockFetcher{
		ScreenFunc: func(ctx context.Context, key, validator string) (*api.ScreenPayload, bool, error) {
			payload := listPayload(key, 1)
			payload.Template = json.RawMessage(`{"zones": "not a list"}`)
			return payload, false, nil
		},
	}
	c := NewCache(fetcher, 10, DefaultTTLPolicy())

	_, err := c.Load(context.Background(), "home")
	require.Error(t, err)
	assert.Equal(t, 0, c.Len())
}

func TestCache_LoginPatternNeverCached(t *testing.T) {
	fetcher := &MockFetcher{
		ScreenFunc: func(ctx context.Context, key, validator string) (*api.ScreenPayload, bool, error) {
			payload := listPayload(key, 1)
			payload.Pattern = "login"
			return payload, false, nil
		},
	}
	c := NewCache(fetcher, 10, DefaultTTLPolicy())
	ctx := context.Background()

	def, err := c.Load(ctx, "signin")
	require.NoError(t, err)
	assert.Equal(t, PatternLogin, def.Pattern)
	assert.Equal(t, 0, c.Len())

	_, err = c.Load(ctx, "signin")
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.ScreenCallCount(), "login screens refetch every time")
}

func TestCache_SeedFromBundle(t *testing.T) {
	c := NewCache(&MockFetcher{}, 50, DefaultTTLPolicy())

	bundle := map[string]BundleEntry{
		"home": {
			ScreenName: "Home",
			Pattern:    "list",
			Version:    "2.1.0",
			Template:   validTemplate,
		},
		"profile": {
			ScreenName:   "Profile",
			Pattern:      "detail",
			Version:      "1.0.3",
			Template:     validTemplate,
			DataEndpoint: "/api/profile",
		},
		"signin": { // zero-TTL pattern: skipped
			ScreenName: "Sign In",
			Pattern:    "login",
			Version:    "1.0.0",
			Template:   validTemplate,
		},
		"broken": { // unparseable template: skipped
			ScreenName: "Broken",
			Pattern:    "list",
			Version:    "1.0.0",
			Template:   json.RawMessage(`{"zones": 5}`),
		},
		"noversion": { // bad version string: skipped
			ScreenName: "No Version",
			Pattern:    "list",
			Version:    "not-semver",
			Template:   validTemplate,
		},
	}

	c.SeedFromBundle(context.Background(), bundle)

	assert.Equal(t, 2, c.Len())

	def, err := c.Load(context.Background(), "home")
	require.NoError(t, err)
	assert.Equal(t, "Home", def.Name)
	assert.Equal(t, 2, def.MajorVersion, "major parsed from leading semver component")

	profile, err := c.Load(context.Background(), "profile")
	require.NoError(t, err)
	assert.Equal(t, "/api/profile", profile.DataEndpoint)
}

func TestCache_SeedFromBundleOneBadEntryDoesNotBlockRest(t *testing.T) {
	c := NewCache(&MockFetcher{}, 50, DefaultTTLPolicy())

	bundle := make(map[string]BundleEntry, 20)
	for i := 0; i < 19; i++ {
		bundle[fmt.Sprintf("screen-%d", i)] = BundleEntry{
			ScreenName: fmt.Sprintf("Screen %d", i),
			Pattern:    "list",
			Version:    "1.0.0",
			Template:   validTemplate,
		}
	}
	bundle["bad"] = BundleEntry{
		ScreenName: "Bad",
		Pattern:    "list",
		Version:    "1.0.0",
		Template:   json.RawMessage(`not json at all`),
	}

	c.SeedFromBundle(context.Background(), bundle)
	assert.Equal(t, 19, c.Len())
}

func TestCache_CheckVersion(t *testing.T) {
	remote := "2.0.0"
	var versionErr error
	fetcher := &MockFetcher{
		ScreenFunc: func(ctx context.Context, key, validator string) (*api.ScreenPayload, bool, error) {
			return listPayload(key, 2), false, nil
		},
		VersionFunc: func(ctx context.Context, key string) (string, error) {
			return remote, versionErr
		},
	}
	c := NewCache(fetcher, 10, DefaultTTLPolicy())
	ctx := context.Background()

	_, err := c.Load(ctx, "home")
	require.NoError(t, err)

	// Same major: no invalidation.
	assert.False(t, c.CheckVersion(ctx, "home"))
	assert.Equal(t, 1, c.Len())

	// Patch bump, same major: still current.
	remote = "2.9.9"
	assert.False(t, c.CheckVersion(ctx, "home"))
	assert.Equal(t, 1, c.Len())

	// Network error: silent, cache untouched.
	versionErr = &api.TransportError{URL: "home", Err: context.DeadlineExceeded}
	assert.False(t, c.CheckVersion(ctx, "home"))
	assert.Equal(t, 1, c.Len())
	versionErr = nil

	// Major bump: invalidate and report.
	remote = "3.0.0"
	assert.True(t, c.CheckVersion(ctx, "home"))
	assert.Equal(t, 0, c.Len())

	// Nothing cached: nothing to invalidate, no network call either.
	calls := fetcher.VersionCalls
	assert.False(t, c.CheckVersion(ctx, "home"))
	assert.Equal(t, calls, fetcher.VersionCalls)
}

func TestCache_ClearCacheDropsValidators(t *testing.T) {
	clock := newFakeClock()
	fetcher := &MockFetcher{
		ScreenFunc: func(ctx context.Context, key, validator string) (*api.ScreenPayload, bool, error) {
			return listPayload(key, 1), false, nil
		},
	}
	c := NewCache(fetcher, 10, DefaultTTLPolicy(), withClock(clock))
	ctx := context.Background()

	_, err := c.Load(ctx, "home")
	require.NoError(t, err)

	c.ClearCache()
	assert.Equal(t, 0, c.Len())

	_, err = c.Load(ctx, "home")
	require.NoError(t, err)
	require.Equal(t, 2, fetcher.ScreenCallCount())
	assert.Empty(t, fetcher.ScreenCalls[1], "cleared cache must not send a remembered validator")
}

func TestCache_LRUEvictionAcrossScreenKeys(t *testing.T) {
	fetcher := &MockFetcher{
		ScreenFunc: func(ctx context.Context, key, validator string) (*api.ScreenPayload, bool, error) {
			return listPayload(key, 1), false, nil
		},
	}
	c := NewCache(fetcher, 2, DefaultTTLPolicy())
	ctx := context.Background()

	_, err := c.Load(ctx, "a")
	require.NoError(t, err)
	_, err = c.Load(ctx, "b")
	require.NoError(t, err)

	// Re-access "a" so "b" is the eviction candidate.
	_, err = c.Load(ctx, "a")
	require.NoError(t, err)

	_, err = c.Load(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())

	calls := fetcher.ScreenCallCount()
	_, err = c.Load(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, calls, fetcher.ScreenCallCount(), "a survived eviction")

	_, err = c.Load(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, calls+1, fetcher.ScreenCallCount(), "b was evicted and refetched")
}

func TestMajorVersion(t *testing.T) {
	major, err := majorVersion("4.2.1")
	require.NoError(t, err)
	assert.Equal(t, 4, major)

	major, err = majorVersion("12")
	require.NoError(t, err)
	assert.Equal(t, 12, major)

	_, err = majorVersion("v1.2.3")
	assert.Error(t, err)

	_, err = majorVersion("")
	assert.Error(t, err)
}
