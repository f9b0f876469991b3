// Package prefetch pre-warms the next data page while the user scrolls.
package prefetch

import (
	"context"
	"sync"

	"github.com/screenflow/screenflow/internal/logging"
	"github.com/screenflow/screenflow/internal/remotedata"
)

// DefaultThreshold triggers a prefetch when the visible position is within
// this many items of the end of the loaded list.
const DefaultThreshold = 5

// LoadFunc fetches the next page. Typically a closure over
// remotedata.Cache.LoadNextPage.
type LoadFunc func(ctx context.Context) (*remotedata.DataPage, error)

// Coordinator runs at most one speculative next-page fetch at a time and
// buffers a single unconsumed result for hand-off. Prefetching is
// best-effort: a failed fetch leaves nothing buffered and the list falls
// back to an on-demand load later.
type Coordinator struct {
	mu        sync.Mutex
	threshold int
	inFlight  bool
	cancel    context.CancelFunc
	buffer    *remotedata.DataPage

	// gen distinguishes the current task from cancelled ones so a stale
	// goroutine unwinding late cannot clobber a newer prefetch.
	gen uint64
}

// New creates a coordinator with the given trigger threshold; a
// non-positive threshold falls back to DefaultThreshold.
func New(threshold int) *Coordinator {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Coordinator{threshold: threshold}
}

// Evaluate kicks off a background prefetch when the scroll position is
// within threshold items of the end, more data exists and no prefetch is
// already running. Calls during an in-flight prefetch are no-ops.
func (c *Coordinator) Evaluate(ctx context.Context, visibleIndex, totalItems int, hasMore bool, load LoadFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !hasMore || c.inFlight || totalItems-visibleIndex > c.threshold {
		return
	}

	runCtx, cancel := context.WithCancel(logging.WithComponent(ctx, "prefetch"))
	c.inFlight = true
	c.cancel = cancel
	c.gen++

	go c.run(runCtx, load, c.gen)
}

func (c *Coordinator) run(ctx context.Context, load LoadFunc, gen uint64) {
	page, err := load(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		// A cancel (and possibly a newer prefetch) superseded this task.
		return
	}
	c.inFlight = false
	c.cancel = nil

	if ctx.Err() != nil {
		// Cancelled while loading; the result, if any, is dropped.
		return
	}
	if err != nil {
		logging.FromContext(ctx).Debug().Err(err).Msg("prefetch failed")
		return
	}
	c.buffer = page
}

// Consume returns the buffered page and clears the slot. The call after a
// successful hand-off returns nil.
func (c *Coordinator) Consume() *remotedata.DataPage {
	c.mu.Lock()
	defer c.mu.Unlock()

	page := c.buffer
	c.buffer = nil
	return page
}

// Cancel aborts any in-flight prefetch and clears the buffer. InProgress
// reports false immediately, even before the cancelled task unwinds.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.gen++
	c.inFlight = false
	c.buffer = nil
}

// InProgress reports whether a prefetch is currently running.
func (c *Coordinator) InProgress() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}
