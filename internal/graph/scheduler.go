package graph

import (
	"context"
	"log/slog"

	"github.com/ssured/drawbot/internal/queue"
)

// Scheduler runs graph housekeeping: feed drains, dispatch to sinks and view
// re-runs. The graph never holds its lock while calling a task.
type Scheduler func(task func())

// Immediate runs every task synchronously on the calling goroutine. It is the
// default, and makes writes visible to sinks before Set returns.
func Immediate(task func()) {
	task()
}

// Loop is a single-writer scheduler: tasks are queued and executed one at a
// time by Run.
//
// Thread-safety model:
//   - Schedule(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
type Loop struct {
	tasks *queue.Queue[func()]
}

// NewLoop creates a stopped loop. Tasks scheduled before Run are kept.
func NewLoop() *Loop {
	return &Loop{tasks: queue.New[func()]()}
}

// Schedule queues a task. Tasks scheduled after Stop are dropped.
func (l *Loop) Schedule(task func()) {
	if !l.tasks.Push(task) {
		slog.Debug("scheduler stopped, dropping task")
	}
}

// Scheduler returns the loop as a graph Scheduler.
func (l *Loop) Scheduler() Scheduler {
	return l.Schedule
}

// Run executes queued tasks until ctx is cancelled or Stop is called.
// A task that panics is logged and the loop continues.
func (l *Loop) Run(ctx context.Context) error {
	slog.Debug("scheduler loop starting")

	for {
		if task, ok := l.tasks.TryPop(); ok {
			l.runTask(task)
			continue
		}

		select {
		case <-ctx.Done():
			slog.Debug("scheduler loop stopping: context cancelled")
			l.tasks.Close()
			return ctx.Err()

		case <-l.tasks.Wait():
			if l.tasks.Closed() && l.tasks.Len() == 0 {
				slog.Debug("scheduler loop stopping: closed")
				return nil
			}
		}
	}
}

func (l *Loop) runTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("scheduled task panicked", "panic", r)
		}
	}()
	task()
}

// Stop closes the loop. Run returns once the remaining tasks have run.
func (l *Loop) Stop() {
	l.tasks.Close()
}
