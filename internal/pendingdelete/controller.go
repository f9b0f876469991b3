// Package pendingdelete implements delayed-commit destructive actions: the
// item disappears immediately, the user gets a fixed undo window, and the
// real network call only goes out once the window elapses uncancelled.
package pendingdelete

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/screenflow/screenflow/internal/notify"
)

// DefaultGraceWindow is the undo window before the destructive call commits.
const DefaultGraceWindow = 5 * time.Second

// DeleteInfo identifies the scheduled deletion.
type DeleteInfo struct {
	ScreenKey   string
	ItemID      string
	Endpoint    string
	Method      string
	ScheduledAt time.Time
}

// Deleter issues the destructive network call.
type Deleter interface {
	Delete(ctx context.Context, endpoint, method string) error
}

// Hooks are the view-layer callbacks the controller drives. Remove hides the
// item optimistically; Refresh re-fetches server truth (used to restore a
// cancelled delete and to reconcile after a failed one).
type Hooks struct {
	Remove  func(info DeleteInfo)
	Refresh func()
}

// Controller owns at most one scheduled delete at a time. A new Schedule
// supersedes the previous one: its timer is stopped and its network call
// never issued. Cancel works until the instant the call starts; after that
// it has no effect.
type Controller struct {
	mu       sync.Mutex
	deleter  Deleter
	hooks    Hooks
	notifier notify.Notifier
	log      zerolog.Logger
	grace    time.Duration

	current *DeleteInfo
	timer   *time.Timer
	// gen identifies the armed schedule; a timer from a superseded schedule
	// carries a stale gen and must not commit.
	gen uint64
	// committed counts destructive calls actually issued; tests use it.
	committed int
}

// Option configures a Controller.
type Option func(*Controller)

// WithGraceWindow overrides the undo window.
func WithGraceWindow(d time.Duration) Option {
	return func(c *Controller) {
		c.grace = d
	}
}

// New creates a controller. Hooks may have nil members; missing callbacks
// are skipped.
func New(deleter Deleter, hooks Hooks, notifier notify.Notifier, log zerolog.Logger, opts ...Option) *Controller {
	c := &Controller{
		deleter:  deleter,
		hooks:    hooks,
		notifier: notifier,
		log:      log,
		grace:    DefaultGraceWindow,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Schedule arms a deferred delete for info. Any previously scheduled delete
// is dropped without its network call. The item is removed from visible
// state immediately.
func (c *Controller) Schedule(ctx context.Context, info DeleteInfo) {
	c.mu.Lock()

	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if info.ScheduledAt.IsZero() {
		info.ScheduledAt = time.Now()
	}
	c.current = &info
	c.gen++
	gen := c.gen
	// The commit outlives the request that scheduled it; a caller context
	// cancelled mid-window must not fail the delete.
	deferredCtx := context.WithoutCancel(ctx)
	c.timer = time.AfterFunc(c.grace, func() {
		c.commit(deferredCtx, info, gen)
	})
	c.mu.Unlock()

	if c.hooks.Remove != nil {
		c.hooks.Remove(info)
	}
}

// Cancel aborts the scheduled delete and triggers a refresh so the removed
// item reappears from server truth rather than a stale local snapshot.
// Returns false when there is nothing to cancel or the delete already
// committed.
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	if c.timer == nil || !c.timer.Stop() {
		c.mu.Unlock()
		return false
	}
	c.timer = nil
	c.current = nil
	c.mu.Unlock()

	if c.hooks.Refresh != nil {
		c.hooks.Refresh()
	}
	return true
}

// Pending reports whether a delete is currently scheduled.
func (c *Controller) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}

// CommittedCount returns the number of destructive calls issued.
func (c *Controller) CommittedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.committed
}

// commit runs when the grace window elapses uncancelled.
func (c *Controller) commit(ctx context.Context, info DeleteInfo, gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.current == nil {
		// Superseded between timer fire and lock acquisition.
		c.mu.Unlock()
		return
	}
	c.current = nil
	c.timer = nil
	c.committed++
	c.mu.Unlock()

	if err := c.deleter.Delete(ctx, info.Endpoint, info.Method); err != nil {
		c.log.Error().
			Str("endpoint", info.Endpoint).
			Str("item_id", info.ItemID).
			Err(err).
			Msg("deferred delete failed")
		c.notifier.Notify(notify.LevelError, "Couldn't delete the item. The list has been refreshed.")
		// Reconcile with server truth; the delete is not retried.
		if c.hooks.Refresh != nil {
			c.hooks.Refresh()
		}
	}
}
