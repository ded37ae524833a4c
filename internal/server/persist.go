package server

import (
	"log"
	"sync"

	"github.com/psantanna/webchat/internal/stats"
)

// storeWriter is the best-effort side channel to the durable store. Writes
// are enqueued without blocking and executed by a single consumer; a failed
// or dropped write is logged and never rolled back or surfaced to clients.
type storeWriter struct {
	log    *log.Logger
	stats  stats.StatsProvider
	mu     sync.Mutex
	closed bool
	tasks  chan storeTask
	done   chan struct{}
}

type storeTask struct {
	name string
	fn   func() error
}

func newStoreWriter(logger *log.Logger, sp stats.StatsProvider, queueSize int) *storeWriter {
	return &storeWriter{
		log:   logger,
		stats: sp,
		tasks: make(chan storeTask, queueSize),
		done:  make(chan struct{}),
	}
}

func (w *storeWriter) run() {
	for task := range w.tasks {
		if err := task.fn(); err != nil {
			w.log.Printf("persist %s: %v", task.name, err)
		}
	}
	close(w.done)
}

// enqueue never blocks: a full queue drops the write so persistence
// backpressure cannot stall the broadcast path. After stop, writes are
// dropped; read pumps unwind through their disconnect path asynchronously
// during shutdown and must not hit a closed channel.
func (w *storeWriter) enqueue(name string, fn func() error) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		w.log.Printf("persist queue closed, dropping %s", name)
		return false
	}

	select {
	case w.tasks <- storeTask{name: name, fn: fn}:
		return true
	default:
		w.log.Printf("persist queue full, dropping %s", name)
		w.stats.Incr(stats.PersistWritesDropped)
		return false
	}
}

// stop drains the queue and waits for the consumer. Safe to call twice.
func (w *storeWriter) stop() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.tasks)
	}
	w.mu.Unlock()

	<-w.done
}
