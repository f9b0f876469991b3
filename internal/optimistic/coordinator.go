// Package optimistic tracks speculative local mutations applied ahead of
// server confirmation and reconciles them once the server answers.
package optimistic

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/screenflow/screenflow/internal/notify"
)

// DefaultTimeout is how long an update may stay pending before it is marked
// timed out.
const DefaultTimeout = 15 * time.Second

// eventBuffer sizes subscriber channels; events beyond it are dropped rather
// than blocking the coordinator.
const eventBuffer = 16

// Status is the lifecycle state of an update. Pending is the only
// non-terminal state; there is no transition out of a terminal state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusRolledBack Status = "rolled_back"
	StatusTimedOut   Status = "timed_out"
)

// Row is one visible list row.
type Row = map[string]any

// Event is one status transition, delivered to every subscriber.
type Event struct {
	UpdateID uuid.UUID
	Status   Status
}

// pendingUpdate is the coordinator-side record of an in-flight mutation.
type pendingUpdate struct {
	id        uuid.UUID
	snapshot  []Row
	appliedAt time.Time
	timer     *time.Timer
}

// Coordinator applies optimistic row mutations, retains rollback snapshots
// and broadcasts status transitions to subscribers. All state is guarded by
// one mutex; timers fire on background goroutines and re-enter through it.
type Coordinator struct {
	mu      sync.Mutex
	pending map[uuid.UUID]*pendingUpdate
	subs    map[uint64]chan Event
	nextSub uint64

	timeout  time.Duration
	notifier notify.Notifier
	log      zerolog.Logger
	now      func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithTimeout overrides the pending-update timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		c.timeout = d
	}
}

// WithClock overrides the time source used for AppliedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// New creates a coordinator. The notifier surfaces rollback errors and
// timeout warnings to the user.
func New(notifier notify.Notifier, log zerolog.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		pending:  make(map[uuid.UUID]*pendingUpdate),
		subs:     make(map[uint64]chan Event),
		timeout:  DefaultTimeout,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Apply merges mutation into rows (insert when no row carries the same id,
// merge field-wise into the matching row otherwise) and returns the updated
// rows plus the update's id. The pre-mutation state is deep-copied and kept
// for rollback. An unconfirmed update transitions to TimedOut after the
// configured duration.
func (c *Coordinator) Apply(rows []Row, mutation Row) ([]Row, uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := uuid.New()
	update := &pendingUpdate{
		id:        id,
		snapshot:  deepCopyRows(rows),
		appliedAt: c.now(),
	}
	update.timer = time.AfterFunc(c.timeout, func() {
		c.timeOut(id)
	})
	c.pending[id] = update

	return mergeRows(rows, mutation), id
}

// Confirm marks the update as server-confirmed. Visible state already
// reflects the optimistic value, so nothing changes besides clearing the
// pending marker.
func (c *Coordinator) Confirm(id uuid.UUID) {
	c.mu.Lock()
	update, ok := c.pending[id]
	if ok {
		update.timer.Stop()
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if !ok {
		return
	}
	c.broadcast(Event{UpdateID: id, Status: StatusConfirmed})
}

// Rollback rejects the update and returns the retained pre-mutation
// snapshot for the caller to restore. A user-visible error is surfaced.
// Returns (nil, false) when the update already reached a terminal state.
func (c *Coordinator) Rollback(id uuid.UUID) ([]Row, bool) {
	c.mu.Lock()
	update, ok := c.pending[id]
	if ok {
		update.timer.Stop()
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if !ok {
		return nil, false
	}

	c.notifier.Notify(notify.LevelError, "We couldn't save your change. It has been undone.")
	c.broadcast(Event{UpdateID: id, Status: StatusRolledBack})
	return update.snapshot, true
}

// timeOut fires from the update's timer. The pending marker clears and a
// warning is surfaced, but visible state is left as-is: a timeout is not
// necessarily a failure.
func (c *Coordinator) timeOut(id uuid.UUID) {
	c.mu.Lock()
	_, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if !ok {
		return
	}

	c.log.Warn().Str("update_id", id.String()).Msg("optimistic update timed out without confirmation")
	c.notifier.Notify(notify.LevelWarning, "A change is taking longer than expected to sync.")
	c.broadcast(Event{UpdateID: id, Status: StatusTimedOut})
}

// PendingCount returns the number of unresolved updates.
func (c *Coordinator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Subscribe registers a status-event consumer. The returned channel is
// buffered; events beyond the buffer are dropped for that subscriber rather
// than blocking the coordinator. Callers must Unsubscribe on teardown or the
// observer leaks.
func (c *Coordinator) Subscribe() (uint64, <-chan Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++
	ch := make(chan Event, eventBuffer)
	c.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a consumer and closes its channel.
func (c *Coordinator) Unsubscribe(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ch, ok := c.subs[id]; ok {
		delete(c.subs, id)
		close(ch)
	}
}

// SubscriberCount returns the number of active subscribers.
func (c *Coordinator) SubscriberCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

func (c *Coordinator) broadcast(event Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, ch := range c.subs {
		select {
		case ch <- event:
		default:
			// Subscriber fell behind; dropping beats blocking every
			// other consumer.
		}
	}
}

// mergeRows applies mutation to a copy of rows: merge-by-id into the
// matching row, append when the id is absent.
func mergeRows(rows []Row, mutation Row) []Row {
	out := make([]Row, len(rows))
	mutID := fmt.Sprint(mutation["id"])

	merged := false
	for i, row := range rows {
		if !merged && fmt.Sprint(row["id"]) == mutID {
			next := make(Row, len(row)+len(mutation))
			for k, v := range row {
				next[k] = v
			}
			for k, v := range mutation {
				next[k] = v
			}
			out[i] = next
			merged = true
			continue
		}
		out[i] = row
	}
	if !merged {
		out = append(out, mutation)
	}
	return out
}

// deepCopyRows clones rows so later mutations cannot reach the snapshot.
func deepCopyRows(rows []Row) []Row {
	copied := make([]Row, len(rows))
	for i, row := range rows {
		copied[i] = deepCopyRow(row)
	}
	return copied
}

func deepCopyRow(row Row) Row {
	out := make(Row, len(row))
	for k, v := range row {
		switch val := v.(type) {
		case map[string]any:
			out[k] = deepCopyRow(val)
		case []any:
			out[k] = deepCopySlice(val)
		default:
			out[k] = v
		}
	}
	return out
}

func deepCopySlice(in []any) []any {
	out := make([]any, len(in))
	for i, v := range in {
		switch val := v.(type) {
		case map[string]any:
			out[i] = deepCopyRow(val)
		case []any:
			out[i] = deepCopySlice(val)
		default:
			out[i] = v
		}
	}
	return out
}
