package optimistic

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screenflow/screenflow/internal/notify"
)

// recordingNotifier captures surfaced notifications.
type recordingNotifier struct {
	mu       sync.Mutex
	messages []notify.Level
}

func (n *recordingNotifier) Notify(level notify.Level, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, level)
}

func (n *recordingNotifier) Levels() []notify.Level {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Level(nil), n.messages...)
}

func newCoordinator(t *testing.T, opts ...Option) (*Coordinator, *recordingNotifier) {
	t.Helper()
	notifier := &recordingNotifier{}
	return New(notifier, zerolog.Nop(), opts...), notifier
}

func sampleRows() []Row {
	return []Row{
		{"id": "1", "title": "First", "done": false},
		{"id": "2", "title": "Second", "done": true},
	}
}

func awaitEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case event := <-ch:
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
		return Event{}
	}
}

func TestCoordinator_ApplyMergesIntoExistingRow(t *testing.T) {
	c, _ := newCoordinator(t)

	rows, id := c.Apply(sampleRows(), Row{"id": "2", "done": false, "note": "edited"})
	require.NotEqual(t, "", id.String())

	require.Len(t, rows, 2)
	assert.Equal(t, "Second", rows[1]["title"], "unmutated fields survive the merge")
	assert.Equal(t, false, rows[1]["done"])
	assert.Equal(t, "edited", rows[1]["note"])
	assert.Equal(t, 1, c.PendingCount())
}

func TestCoordinator_ApplyInsertsNewRow(t *testing.T) {
	c, _ := newCoordinator(t)

	rows, _ := c.Apply(sampleRows(), Row{"id": "3", "title": "Third"})
	require.Len(t, rows, 3)
	assert.Equal(t, "Third", rows[2]["title"])
}

func TestCoordinator_ConfirmClearsPendingWithoutVisualChange(t *testing.T) {
	c, notifier := newCoordinator(t)
	subID, events := c.Subscribe()
	defer c.Unsubscribe(subID)

	_, id := c.Apply(sampleRows(), Row{"id": "1", "done": true})
	c.Confirm(id)

	event := awaitEvent(t, events)
	assert.Equal(t, id, event.UpdateID)
	assert.Equal(t, StatusConfirmed, event.Status)
	assert.Equal(t, 0, c.PendingCount())
	assert.Empty(t, notifier.Levels(), "confirmation surfaces nothing")
}

func TestCoordinator_RollbackRestoresSnapshotExactly(t *testing.T) {
	c, notifier := newCoordinator(t)
	subID, events := c.Subscribe()
	defer c.Unsubscribe(subID)

	original := sampleRows()
	mutated, id := c.Apply(original, Row{"id": "1", "title": "Hacked"})

	// Corrupt the visible rows further, then roll back.
	mutated[0]["title"] = "Hacked again"

	snapshot, ok := c.Rollback(id)
	require.True(t, ok)
	assert.Equal(t, sampleRows(), snapshot, "snapshot equals pre-mutation state exactly")

	event := awaitEvent(t, events)
	assert.Equal(t, StatusRolledBack, event.Status)
	require.Len(t, notifier.Levels(), 1)
	assert.Equal(t, notify.LevelError, notifier.Levels()[0], "rollback surfaces an error")
}

func TestCoordinator_SnapshotUnaffectedByLaterMutationOfInputRows(t *testing.T) {
	c, _ := newCoordinator(t)

	original := sampleRows()
	_, id := c.Apply(original, Row{"id": "1", "done": true})

	// Mutating the caller's slice must not reach the retained snapshot.
	original[0]["title"] = "tampered"

	snapshot, ok := c.Rollback(id)
	require.True(t, ok)
	assert.Equal(t, "First", snapshot[0]["title"])
}

func TestCoordinator_TerminalStatesAreSticky(t *testing.T) {
	c, _ := newCoordinator(t)

	_, id := c.Apply(sampleRows(), Row{"id": "1", "done": true})
	c.Confirm(id)

	// Any further transition on the same id is a no-op.
	snapshot, ok := c.Rollback(id)
	assert.False(t, ok)
	assert.Nil(t, snapshot)

	c.Confirm(id) // must not panic or emit
	assert.Equal(t, 0, c.PendingCount())
}

func TestCoordinator_TimeoutClearsPendingAndWarnsButKeepsState(t *testing.T) {
	c, notifier := newCoordinator(t, WithTimeout(20*time.Millisecond))
	subID, events := c.Subscribe()
	defer c.Unsubscribe(subID)

	_, id := c.Apply(sampleRows(), Row{"id": "1", "done": true})

	event := awaitEvent(t, events)
	assert.Equal(t, id, event.UpdateID)
	assert.Equal(t, StatusTimedOut, event.Status)
	assert.Equal(t, 0, c.PendingCount())

	require.Len(t, notifier.Levels(), 1)
	assert.Equal(t, notify.LevelWarning, notifier.Levels()[0], "timeout warns, it does not error")

	// Timed out is terminal: no rollback afterwards.
	_, ok := c.Rollback(id)
	assert.False(t, ok)
}

func TestCoordinator_ConfirmBeatsTimeout(t *testing.T) {
	c, notifier := newCoordinator(t, WithTimeout(50*time.Millisecond))
	subID, events := c.Subscribe()
	defer c.Unsubscribe(subID)

	_, id := c.Apply(sampleRows(), Row{"id": "1", "done": true})
	c.Confirm(id)

	event := awaitEvent(t, events)
	assert.Equal(t, StatusConfirmed, event.Status)

	// Past the timeout window: no late TimedOut event.
	time.Sleep(80 * time.Millisecond)
	select {
	case extra := <-events:
		t.Fatalf("unexpected extra event: %+v", extra)
	default:
	}
	assert.Empty(t, notifier.Levels())
}

func TestCoordinator_SubscribeUnsubscribe(t *testing.T) {
	c, _ := newCoordinator(t)

	first, _ := c.Subscribe()
	second, secondCh := c.Subscribe()
	assert.Equal(t, 2, c.SubscriberCount())

	c.Unsubscribe(first)
	assert.Equal(t, 1, c.SubscriberCount())

	// Remaining subscriber still receives events.
	_, id := c.Apply(sampleRows(), Row{"id": "1"})
	c.Confirm(id)
	event := awaitEvent(t, secondCh)
	assert.Equal(t, StatusConfirmed, event.Status)

	c.Unsubscribe(second)
	assert.Equal(t, 0, c.SubscriberCount())

	// Double unsubscribe must not panic.
	c.Unsubscribe(second)
}

func TestCoordinator_SlowSubscriberDoesNotBlock(t *testing.T) {
	c, _ := newCoordinator(t)

	subID, _ := c.Subscribe() // never drained
	defer c.Unsubscribe(subID)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < eventBuffer*3; i++ {
			_, id := c.Apply(sampleRows(), Row{"id": "1"})
			c.Confirm(id)
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("coordinator blocked on a slow subscriber")
	}
}
