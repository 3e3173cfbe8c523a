/*
Package dispatcher serializes all mutating work of the Glean client.

Recording a metric never touches storage on the caller's goroutine. The
recording API enqueues a Task and returns immediately; the Dispatcher runs
tasks one at a time in FIFO order on a background goroutine. Because nothing
else mutates storage, no two recordings ever interleave.

# Architecture

	┌──────────────────── DISPATCHER ──────────────────────────┐
	│                                                            │
	│  Launch / LaunchPersistent / TestLaunch  ──► tail          │
	│  Stop / Clear                            ──► head          │
	│  FlushInit(init)                         ──► head (once)   │
	│  Shutdown                                ──► tail          │
	│                                                            │
	│  queue: [cmd][cmd][cmd]...                                 │
	│            │                                               │
	│            ▼                                               │
	│  execute() burst: pop, run, repeat until empty             │
	│    - at most one task in flight                            │
	│    - tasks launched from inside a task join this burst     │
	│    - errors and panics are logged and swallowed            │
	└────────────────────────────────────────────────────────┘

# States

	Uninitialized ──FlushInit──► Idle ◄──────► Processing
	                               ▲              │
	                               └──Resume── Stopped
	        any ──Shutdown (drained)──► Shutdown (terminal)

Uninitialized:
  - Tasks are queued but not run, up to the pre-init bound (100 by default)
  - Launch beyond the bound returns false and the task is dropped

Idle / Processing:
  - Launch triggers a burst if none is running

Stopped:
  - The running task finishes, queued tasks wait for Resume or Clear

Shutdown:
  - Every later Launch is rejected
  - Test tasks that never ran receive ErrTaskDropped

# Init Failure

If the init task passed to FlushInit returns an error the client cannot work:
the queue is cleared (persistent tasks survive) and a shutdown is appended.

# Usage

	d := dispatcher.New(dispatcher.DefaultMaxPreInitQueueSize)

	d.Launch(func(ctx context.Context) error {
		return db.Record(ctx, metric, value)
	})

	d.FlushInit(func(ctx context.Context) error {
		return openStorage(ctx)
	})

	// In tests
	err := <-d.TestLaunch(func(ctx context.Context) error { return nil })

	<-d.Shutdown()
*/
package dispatcher
