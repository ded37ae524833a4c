package server

import (
	"errors"
	"testing"
	"time"

	"github.com/psantanna/webchat/internal/stats"
	"github.com/psantanna/webchat/internal/testutil"
	"github.com/stretchr/testify/assert"
)

func Test_storeWriter_runsTasks(t *testing.T) {
	w := newStoreWriter(testutil.TestLogger(t), permissiveStats(), 4)
	go w.run()

	executed := make(chan struct{})
	ok := w.enqueue("test write", func() error {
		close(executed)
		return nil
	})
	assert.True(t, ok, "expected the task to be accepted")

	select {
	case <-executed:
	case <-time.After(time.Second):
		t.Fatal("expected the enqueued task to run")
	}

	w.stop()
}

func Test_storeWriter_failedTaskDoesNotStopConsumer(t *testing.T) {
	w := newStoreWriter(testutil.TestLogger(t), permissiveStats(), 4)
	go w.run()

	w.enqueue("failing write", func() error {
		return errors.New("connection reset")
	})

	executed := make(chan struct{})
	w.enqueue("next write", func() error {
		close(executed)
		return nil
	})

	select {
	case <-executed:
	case <-time.After(time.Second):
		t.Fatal("expected the consumer to survive a failed task")
	}

	w.stop()
}

func Test_storeWriter_enqueueAfterStop(t *testing.T) {
	w := newStoreWriter(testutil.TestLogger(t), permissiveStats(), 4)
	go w.run()
	w.stop()

	assert.NotPanics(t, func() {
		ok := w.enqueue("late write", func() error { return nil })
		assert.False(t, ok, "expected the write to be dropped after stop")
	})

	assert.NotPanics(t, w.stop, "expected stop to be safe to call twice")
}

func Test_storeWriter_dropsWhenFull(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)
	su.On("Incr", stats.PersistWritesDropped).Once()

	// No consumer running, so the single slot fills immediately.
	w := newStoreWriter(testutil.TestLogger(t), su, 1)

	assert.True(t, w.enqueue("first", func() error { return nil }))
	assert.False(t, w.enqueue("second", func() error { return nil }),
		"expected the write to be dropped, not block")
}
