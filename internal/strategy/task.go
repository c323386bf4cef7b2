package strategy

import (
	"context"
	"sync"
)

// Op names a strategy command.
type Op string

const (
	OpRefresh Op = "refresh"
	OpCreate  Op = "create"
	OpUpdate  Op = "update"
	OpDelete  Op = "delete"
)

// Outcome is the settled result of a command.
type Outcome struct {
	// Op is the command that produced this outcome.
	Op Op

	// Key is the pending-op key: the entity id, or the temporary token of
	// a create. Empty for refreshes.
	Key string

	// ID is the store-assigned id after a successful create, or the target
	// id of an update or delete.
	ID string

	// Err is nil on success, otherwise a *gateway.Error.
	Err error
}

// OK reports whether the command succeeded.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Task is the pending result of a command. It resolves exactly once.
//
// Thread-safety: all methods are safe for concurrent use. Coalesced
// refreshes hand the same Task to every requester.
type Task struct {
	done    chan struct{}
	once    sync.Once
	outcome Outcome
}

func newTask() *Task {
	return &Task{done: make(chan struct{})}
}

func (t *Task) resolve(o Outcome) {
	t.once.Do(func() {
		t.outcome = o
		close(t.done)
	})
}

// Done returns a channel that is closed once the task settles.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task settles or ctx is done. A cancelled ctx only
// stops the wait; the command itself keeps running.
func (t *Task) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-t.done:
		return t.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Result returns the outcome without blocking. The bool is false while the
// task is still pending.
func (t *Task) Result() (Outcome, bool) {
	select {
	case <-t.done:
		return t.outcome, true
	default:
		return Outcome{}, false
	}
}
