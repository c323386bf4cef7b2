package strategy

import (
	"context"

	"github.com/roach88/crudsync/internal/entity"
	"github.com/roach88/crudsync/internal/gateway"
)

// Invalidate is the strategy that leaves the view untouched while a
// mutation is in flight and refetches after success.
//
// Every success requests a refetch right away, whatever else is pending.
// Successes that land while a fetch is in flight share one follow-up, and
// that follow-up is skipped when the in-flight fetch already shows them,
// so a burst of successes usually costs a single fetch. A failed mutation
// requests nothing on its own.
type Invalidate struct {
	*core
}

var _ Strategy = (*Invalidate)(nil)

// NewInvalidate creates an invalidate-on-success strategy over gw.
func NewInvalidate(gw gateway.Gateway, opts ...Option) *Invalidate {
	return &Invalidate{core: newCore(KindInvalidate, gw, opts)}
}

// SubmitCreate implements Strategy.
func (v *Invalidate) SubmitCreate(ctx context.Context, d entity.Draft) *Task {
	d, verr := validateDraft(d)
	if verr != nil {
		return v.reject(OpCreate, "", verr)
	}

	key := v.newKey()
	t := newTask()
	v.mu.Lock()
	p := v.beginLocked(OpCreate, key, "")
	v.mu.Unlock()

	go func() {
		var id string
		err := v.call(ctx, gateway.OpCreate, "", func(ctx context.Context) error {
			var err error
			id, err = v.gw.Create(ctx, d)
			return err
		})
		v.settle(ctx, p, t, Outcome{Op: OpCreate, Key: key, ID: id, Err: err}, v.onSettled(OpCreate, id, entity.Patch{}, err))
	}()
	return t
}

// SubmitUpdate implements Strategy.
func (v *Invalidate) SubmitUpdate(ctx context.Context, id string, patch entity.Patch) *Task {
	patch, verr := validatePatch(id, patch)
	if verr != nil {
		return v.reject(OpUpdate, id, verr)
	}

	t := newTask()
	v.mu.Lock()
	p := v.beginLocked(OpUpdate, id, id)
	v.mu.Unlock()

	go func() {
		err := v.call(ctx, gateway.OpUpdate, id, func(ctx context.Context) error {
			return v.gw.Update(ctx, id, patch)
		})
		v.settle(ctx, p, t, Outcome{Op: OpUpdate, Key: id, ID: id, Err: err}, v.onSettled(OpUpdate, id, patch, err))
	}()
	return t
}

// SubmitDelete implements Strategy.
func (v *Invalidate) SubmitDelete(ctx context.Context, id string) *Task {
	if verr := validateID(gateway.OpDelete, id); verr != nil {
		return v.reject(OpDelete, id, verr)
	}

	t := newTask()
	v.mu.Lock()
	p := v.beginLocked(OpDelete, id, id)
	v.mu.Unlock()

	go func() {
		err := v.call(ctx, gateway.OpDelete, id, func(ctx context.Context) error {
			return v.gw.Delete(ctx, id)
		})
		v.settle(ctx, p, t, Outcome{Op: OpDelete, Key: id, ID: id, Err: err}, v.onSettled(OpDelete, id, entity.Patch{}, err))
	}()
	return t
}

// onSettled marks the view stale and requests a refresh on success.
func (v *Invalidate) onSettled(op Op, id string, patch entity.Patch, err error) func() *Task {
	return func() *Task {
		if err != nil {
			return nil
		}
		v.markStaleLocked(op, id, patch)
		t, start := v.requestRefreshLocked()
		if !start {
			return nil
		}
		return t
	}
}
