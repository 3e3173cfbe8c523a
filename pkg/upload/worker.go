package upload

import (
	"context"
	"sync"
	"time"

	"github.com/cuemby/glean/pkg/clock"
	"github.com/cuemby/glean/pkg/log"
	"github.com/cuemby/glean/pkg/types"
	"github.com/rs/zerolog"
)

// TaskKind identifies what the worker should do next
type TaskKind int

const (
	// TaskUpload carries a ping to send
	TaskUpload TaskKind = iota
	// TaskWait asks the worker to sleep until the rate limiter opens
	TaskWait
	// TaskDone ends the current job
	TaskDone
)

// String returns the task kind name
func (k TaskKind) String() string {
	switch k {
	case TaskUpload:
		return "upload"
	case TaskWait:
		return "wait"
	default:
		return "done"
	}
}

// Task is handed out by the manager to the worker
type Task struct {
	Kind TaskKind
	Ping types.QueuedPing
	// Wait is how long to sleep for TaskWait
	Wait time.Duration
}

// taskSource is the part of the manager the worker drives
type taskSource interface {
	GetUploadTask() Task
	upload(ctx context.Context, ping types.QueuedPing)
}

// Worker runs at most one upload job at a time. A job pulls tasks until it
// is told it is done.
type Worker struct {
	source taskSource
	clock  clock.Clock
	logger zerolog.Logger

	mu       sync.Mutex
	running  bool
	pending  bool
	blocking bool
	cancel   chan struct{}
	done     chan struct{}
}

func newWorker(source taskSource, c clock.Clock) *Worker {
	return &Worker{
		source: source,
		clock:  c,
		logger: log.WithComponent("upload_worker"),
	}
}

// Work starts a job if none is running. If one is running it is asked to
// look at the queue again once it finishes.
func (w *Worker) Work() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		w.pending = true
		return
	}

	w.running = true
	w.pending = false
	w.blocking = false
	w.cancel = make(chan struct{})
	w.done = make(chan struct{})
	go w.run(w.cancel, w.done)
}

func (w *Worker) run(cancel <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		w.job(cancel)

		w.mu.Lock()
		if w.pending && !w.blocking {
			w.pending = false
			w.mu.Unlock()
			continue
		}
		w.running = false
		w.pending = false
		w.mu.Unlock()
		return
	}
}

func (w *Worker) job(cancel <-chan struct{}) {
	for {
		task := w.source.GetUploadTask()
		switch task.Kind {
		case TaskUpload:
			w.source.upload(context.Background(), task.Ping)

		case TaskWait:
			if w.isBlocking() {
				return
			}
			w.logger.Debug().Dur("wait", task.Wait).Msg("Upload throttled, waiting")
			select {
			case <-w.clock.After(task.Wait):
			case <-cancel:
				return
			}

		default:
			return
		}
	}
}

func (w *Worker) isBlocking() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.blocking
}

// IsRunning reports whether a job is in progress
func (w *Worker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// BlockOnCurrentJob cancels any throttling wait and blocks until the
// current job returns. It returns immediately when no job is running.
func (w *Worker) BlockOnCurrentJob(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	if !w.blocking {
		w.blocking = true
		close(w.cancel)
	}
	done := w.done
	w.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
