package strategy

import (
	"context"

	"github.com/roach88/crudsync/internal/entity"
	"github.com/roach88/crudsync/internal/gateway"
)

// Manual is the strategy that leaves the view untouched on every mutation.
// A successful mutation only marks the view stale; the user is expected to
// Refresh.
type Manual struct {
	*core
}

var _ Strategy = (*Manual)(nil)

// NewManual creates a manual strategy over gw.
func NewManual(gw gateway.Gateway, opts ...Option) *Manual {
	return &Manual{core: newCore(KindManual, gw, opts)}
}

// SubmitCreate implements Strategy.
func (m *Manual) SubmitCreate(ctx context.Context, d entity.Draft) *Task {
	d, verr := validateDraft(d)
	if verr != nil {
		return m.reject(OpCreate, "", verr)
	}

	key := m.newKey()
	t := newTask()
	m.mu.Lock()
	p := m.beginLocked(OpCreate, key, "")
	m.mu.Unlock()

	go func() {
		var id string
		err := m.call(ctx, gateway.OpCreate, "", func(ctx context.Context) error {
			var err error
			id, err = m.gw.Create(ctx, d)
			return err
		})
		m.settle(ctx, p, t, Outcome{Op: OpCreate, Key: key, ID: id, Err: err}, m.onSettled(OpCreate, id, entity.Patch{}, err))
	}()
	return t
}

// SubmitUpdate implements Strategy.
func (m *Manual) SubmitUpdate(ctx context.Context, id string, patch entity.Patch) *Task {
	patch, verr := validatePatch(id, patch)
	if verr != nil {
		return m.reject(OpUpdate, id, verr)
	}

	t := newTask()
	m.mu.Lock()
	p := m.beginLocked(OpUpdate, id, id)
	m.mu.Unlock()

	go func() {
		err := m.call(ctx, gateway.OpUpdate, id, func(ctx context.Context) error {
			return m.gw.Update(ctx, id, patch)
		})
		m.settle(ctx, p, t, Outcome{Op: OpUpdate, Key: id, ID: id, Err: err}, m.onSettled(OpUpdate, id, patch, err))
	}()
	return t
}

// SubmitDelete implements Strategy.
func (m *Manual) SubmitDelete(ctx context.Context, id string) *Task {
	if verr := validateID(gateway.OpDelete, id); verr != nil {
		return m.reject(OpDelete, id, verr)
	}

	t := newTask()
	m.mu.Lock()
	p := m.beginLocked(OpDelete, id, id)
	m.mu.Unlock()

	go func() {
		err := m.call(ctx, gateway.OpDelete, id, func(ctx context.Context) error {
			return m.gw.Delete(ctx, id)
		})
		m.settle(ctx, p, t, Outcome{Op: OpDelete, Key: id, ID: id, Err: err}, m.onSettled(OpDelete, id, entity.Patch{}, err))
	}()
	return t
}

func (m *Manual) onSettled(op Op, id string, patch entity.Patch, err error) func() *Task {
	return func() *Task {
		if err == nil {
			m.markStaleLocked(op, id, patch)
		}
		return nil
	}
}
