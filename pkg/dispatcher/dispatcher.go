package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cuemby/glean/pkg/log"
	"github.com/cuemby/glean/pkg/metrics"
	"github.com/rs/zerolog"
)

// DefaultMaxPreInitQueueSize bounds the tasks accepted before FlushInit
const DefaultMaxPreInitQueueSize = 100

// ErrTaskDropped is delivered to test tasks that never ran
var ErrTaskDropped = errors.New("dispatcher: task dropped")

// State represents the lifecycle state of a Dispatcher
type State int

const (
	StateUninitialized State = iota
	StateIdle
	StateProcessing
	StateStopped
	StateShutdown
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateIdle:
		return "idle"
	case StateProcessing:
		return "processing"
	case StateStopped:
		return "stopped"
	case StateShutdown:
		return "shutdown"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Task is a unit of deferred work. Returned errors are logged and swallowed.
type Task func(ctx context.Context) error

// CommandKind identifies what the run loop does with a queued command
type CommandKind int

const (
	CommandTask CommandKind = iota
	CommandPersistentTask
	CommandInitTask
	CommandStop
	CommandClear
	CommandShutdown
	CommandTestTask
)

type command struct {
	kind   CommandKind
	task   Task
	result chan error
}

// Dispatcher executes tasks one at a time in FIFO order. It is the only
// path through which metric and event storage is mutated.
type Dispatcher struct {
	mu                  sync.Mutex
	queue               []command
	state               State
	shuttingDown        bool
	maxPreInitQueueSize int

	// burstDone is closed when the current processing burst ends
	burstDone    chan struct{}
	shutdownDone chan struct{}

	ctx    context.Context
	logger zerolog.Logger
}

// New creates a dispatcher in the Uninitialized state
func New(maxPreInitQueueSize int) *Dispatcher {
	if maxPreInitQueueSize <= 0 {
		maxPreInitQueueSize = DefaultMaxPreInitQueueSize
	}
	return &Dispatcher{
		state:               StateUninitialized,
		maxPreInitQueueSize: maxPreInitQueueSize,
		shutdownDone:        make(chan struct{}),
		ctx:                 context.Background(),
		logger:              log.WithComponent("dispatcher"),
	}
}

// State returns the current lifecycle state
func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// QueueLength returns the number of commands waiting to run
func (d *Dispatcher) QueueLength() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Launch enqueues a task at the tail of the queue
func (d *Dispatcher) Launch(task Task) bool {
	return d.launch(command{kind: CommandTask, task: task}, false)
}

// LaunchPersistent enqueues a task that survives Clear
func (d *Dispatcher) LaunchPersistent(task Task) bool {
	return d.launch(command{kind: CommandPersistentTask, task: task}, false)
}

// TestLaunch enqueues a task and returns a channel that receives the
// task's error once it has run, or ErrTaskDropped if it never runs.
func (d *Dispatcher) TestLaunch(task Task) <-chan error {
	result := make(chan error, 1)
	d.launch(command{kind: CommandTestTask, task: task, result: result}, false)
	return result
}

// FlushInit moves the dispatcher out of Uninitialized. If initTask is
// given it runs before anything queued so far.
func (d *Dispatcher) FlushInit(initTask Task) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateUninitialized {
		d.logger.Warn().Msg("Attempted to initialize the dispatcher, but it is already initialized. Ignoring")
		return
	}

	if initTask != nil {
		d.queue = append([]command{{kind: CommandInitTask, task: initTask}}, d.queue...)
	}
	d.state = StateIdle
	d.triggerLocked()
}

// Stop pauses processing once the running task completes. Queued tasks are kept.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	shuttingDown := d.shuttingDown
	d.mu.Unlock()

	if shuttingDown {
		d.Clear()
		return
	}
	d.launch(command{kind: CommandStop}, true)
}

// Resume restarts processing after Stop
func (d *Dispatcher) Resume() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == StateStopped {
		d.state = StateIdle
		d.triggerLocked()
	}
}

// Clear discards every queued task except persistent ones and a pending
// shutdown, then resumes processing. While a task runs the clear waits for
// it; otherwise it applies before Clear returns, so later launches survive.
func (d *Dispatcher) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.state {
	case StateShutdown:
		d.logger.Warn().Msg("Attempted to clear the dispatcher after it was shutdown. Ignoring")
		return
	case StateProcessing:
		d.queue = append([]command{{kind: CommandClear}}, d.queue...)
		metrics.DispatcherQueueLength.Set(float64(len(d.queue)))
		return
	case StateStopped:
		d.state = StateIdle
	}

	d.clearLocked()
	d.triggerLocked()
}

// Shutdown drains the remaining tasks and moves to the terminal Shutdown
// state. The returned channel is closed once that state is reached.
func (d *Dispatcher) Shutdown() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.state {
	case StateShutdown:
		return d.shutdownDone
	case StateUninitialized:
		d.dropLocked(d.queue, "cleared")
		d.queue = nil
		d.enterShutdownLocked()
		return d.shutdownDone
	}

	if !d.shuttingDown {
		d.shuttingDown = true
		d.queue = append(d.queue, command{kind: CommandShutdown})
		metrics.DispatcherQueueLength.Set(float64(len(d.queue)))
	}
	if d.state == StateStopped {
		d.state = StateIdle
	}
	d.triggerLocked()
	return d.shutdownDone
}

// TestBlockOnQueue waits until the current processing burst has finished
func (d *Dispatcher) TestBlockOnQueue(ctx context.Context) error {
	for {
		d.mu.Lock()
		if d.state != StateProcessing {
			d.mu.Unlock()
			return nil
		}
		done := d.burstDone
		d.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (d *Dispatcher) launch(cmd command, priority bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == StateShutdown {
		d.logger.Warn().Msg("Attempted to enqueue a new task after the dispatcher was shutdown. Ignoring")
		d.dropLocked([]command{cmd}, "shutdown")
		return false
	}

	if !priority && d.state == StateUninitialized && len(d.queue) >= d.maxPreInitQueueSize {
		d.logger.Warn().Int("max", d.maxPreInitQueueSize).Msg("Unable to enqueue task, pre-init queue is full")
		d.dropLocked([]command{cmd}, "preinit_full")
		return false
	}

	if priority {
		d.queue = append([]command{cmd}, d.queue...)
	} else {
		d.queue = append(d.queue, cmd)
	}
	metrics.DispatcherQueueLength.Set(float64(len(d.queue)))

	d.triggerLocked()
	return true
}

// triggerLocked starts a processing burst if there is work and nobody is running
func (d *Dispatcher) triggerLocked() {
	if d.state != StateIdle || len(d.queue) == 0 {
		return
	}
	d.state = StateProcessing
	d.burstDone = make(chan struct{})
	go d.execute(d.burstDone)
}

// execute drains the queue. Tasks enqueued while it runs, including from
// inside a task, are picked up by the same burst.
func (d *Dispatcher) execute(done chan struct{}) {
	defer close(done)

	for {
		d.mu.Lock()
		if len(d.queue) == 0 {
			if d.state == StateProcessing {
				d.state = StateIdle
			}
			d.mu.Unlock()
			return
		}

		cmd := d.queue[0]
		d.queue = d.queue[1:]
		metrics.DispatcherQueueLength.Set(float64(len(d.queue)))

		switch cmd.kind {
		case CommandStop:
			if d.shuttingDown {
				d.clearLocked()
				d.mu.Unlock()
				continue
			}
			d.state = StateStopped
			d.mu.Unlock()
			return

		case CommandClear:
			d.clearLocked()
			d.mu.Unlock()
			continue

		case CommandShutdown:
			d.dropLocked(d.queue, "cleared")
			d.queue = nil
			d.enterShutdownLocked()
			d.mu.Unlock()
			return

		case CommandInitTask:
			d.mu.Unlock()
			if err := d.run(cmd); err != nil {
				d.logger.Error().Err(err).Msg("Error initializing dispatcher, won't execute anything further. There might be more error logs above")
				d.mu.Lock()
				d.clearLocked()
				if !d.shuttingDown {
					d.shuttingDown = true
					d.queue = append(d.queue, command{kind: CommandShutdown})
				}
				d.mu.Unlock()
			}

		default:
			d.mu.Unlock()
			err := d.run(cmd)
			if cmd.result != nil {
				cmd.result <- err
			}
		}
	}
}

// run executes one task, converting panics into errors
func (d *Dispatcher) run(cmd command) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
		if err != nil {
			metrics.DispatcherTasksTotal.WithLabelValues("failure").Inc()
			d.logger.Error().Err(err).Msg("Error executing task")
		} else {
			metrics.DispatcherTasksTotal.WithLabelValues("success").Inc()
		}
	}()
	return cmd.task(d.ctx)
}

// clearLocked keeps only persistent tasks and shutdown commands
func (d *Dispatcher) clearLocked() {
	kept := d.queue[:0:0]
	var dropped []command
	for _, cmd := range d.queue {
		if cmd.kind == CommandPersistentTask || cmd.kind == CommandShutdown {
			kept = append(kept, cmd)
		} else {
			dropped = append(dropped, cmd)
		}
	}
	d.queue = kept
	d.dropLocked(dropped, "cleared")
	metrics.DispatcherQueueLength.Set(float64(len(d.queue)))
}

func (d *Dispatcher) dropLocked(cmds []command, reason string) {
	for _, cmd := range cmds {
		if cmd.task == nil {
			continue
		}
		metrics.DispatcherTasksDropped.WithLabelValues(reason).Inc()
		if cmd.result != nil {
			cmd.result <- ErrTaskDropped
		}
	}
}

func (d *Dispatcher) enterShutdownLocked() {
	d.state = StateShutdown
	d.shuttingDown = false
	metrics.DispatcherQueueLength.Set(0)
	close(d.shutdownDone)
}
