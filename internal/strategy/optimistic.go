package strategy

import (
	"context"

	"github.com/roach88/crudsync/internal/entity"
	"github.com/roach88/crudsync/internal/gateway"
)

// Optimistic is the strategy that applies each mutation to the view before
// the gateway call and undoes it if the call fails.
//
// Rollbacks restore what the mutation replaced:
//   - create: the provisional entry (keyed by a temporary token) is removed
//   - update: the entry is restored from the snapshot taken at dispatch
//   - delete: the entry is re-inserted at its original index, clamped
//
// When two optimistic mutations on the same key overlap and the older one
// fails after the newer one was applied, the default is that the last
// settled rollback wins. WithGenerationGuard skips such stale rollbacks.
//
// A successful create triggers a refresh so the provisional entry is
// replaced by the stored one. Successful updates and deletes fetch nothing
// unless a fetch replaced the view while the call was out; the view then
// shows the store from before the mutation and is refreshed again.
type Optimistic struct {
	*core
}

var _ Strategy = (*Optimistic)(nil)

// NewOptimistic creates an optimistic strategy over gw.
func NewOptimistic(gw gateway.Gateway, opts ...Option) *Optimistic {
	return &Optimistic{core: newCore(KindOptimistic, gw, opts)}
}

// SubmitCreate implements Strategy.
func (s *Optimistic) SubmitCreate(ctx context.Context, d entity.Draft) *Task {
	d, verr := validateDraft(d)
	if verr != nil {
		return s.reject(OpCreate, "", verr)
	}

	key := s.newKey()
	t := newTask()
	s.mu.Lock()
	s.view = append(s.view, d.WithID(key))
	s.bumpLocked(key)
	p := s.beginLocked(OpCreate, key, "")
	s.mu.Unlock()

	go func() {
		var id string
		err := s.call(ctx, gateway.OpCreate, "", func(ctx context.Context) error {
			var err error
			id, err = s.gw.Create(ctx, d)
			return err
		})
		s.settle(ctx, p, t, Outcome{Op: OpCreate, Key: key, ID: id, Err: err}, func() *Task {
			if err != nil {
				if i := entity.IndexOf(s.view, key); i >= 0 {
					s.view = append(s.view[:i:i], s.view[i+1:]...)
				}
				return nil
			}
			s.markStaleLocked(OpCreate, id, entity.Patch{})
			refresh, start := s.requestRefreshLocked()
			if !start {
				return nil
			}
			return refresh
		})
	}()
	return t
}

// SubmitUpdate implements Strategy.
func (s *Optimistic) SubmitUpdate(ctx context.Context, id string, patch entity.Patch) *Task {
	patch, verr := validatePatch(id, patch)
	if verr != nil {
		return s.reject(OpUpdate, id, verr)
	}

	t := newTask()
	s.mu.Lock()
	var snapshot *entity.User
	if i := entity.IndexOf(s.view, id); i >= 0 {
		prev := s.view[i]
		snapshot = &prev
		s.view[i] = patch.Apply(prev)
	}
	gen := s.bumpLocked(id)
	fetched := s.fetched
	p := s.beginLocked(OpUpdate, id, id)
	s.mu.Unlock()

	go func() {
		err := s.call(ctx, gateway.OpUpdate, id, func(ctx context.Context) error {
			return s.gw.Update(ctx, id, patch)
		})
		s.settle(ctx, p, t, Outcome{Op: OpUpdate, Key: id, ID: id, Err: err}, func() *Task {
			if err == nil {
				return s.confirmLocked(OpUpdate, id, patch, fetched)
			}
			if snapshot == nil {
				return nil
			}
			if s.supersededLocked(id, gen) {
				s.logger.Debug("rollback superseded", "op", OpUpdate, "key", id)
				return nil
			}
			if i := entity.IndexOf(s.view, id); i >= 0 {
				s.view[i] = *snapshot
			}
			return nil
		})
	}()
	return t
}

// SubmitDelete implements Strategy.
func (s *Optimistic) SubmitDelete(ctx context.Context, id string) *Task {
	if verr := validateID(gateway.OpDelete, id); verr != nil {
		return s.reject(OpDelete, id, verr)
	}

	t := newTask()
	s.mu.Lock()
	var snapshot *entity.User
	index := entity.IndexOf(s.view, id)
	if index >= 0 {
		prev := s.view[index]
		snapshot = &prev
		s.view = append(s.view[:index:index], s.view[index+1:]...)
	}
	gen := s.bumpLocked(id)
	fetched := s.fetched
	p := s.beginLocked(OpDelete, id, id)
	s.mu.Unlock()

	go func() {
		err := s.call(ctx, gateway.OpDelete, id, func(ctx context.Context) error {
			return s.gw.Delete(ctx, id)
		})
		s.settle(ctx, p, t, Outcome{Op: OpDelete, Key: id, ID: id, Err: err}, func() *Task {
			if err == nil {
				return s.confirmLocked(OpDelete, id, entity.Patch{}, fetched)
			}
			if snapshot == nil {
				return nil
			}
			if s.supersededLocked(id, gen) {
				s.logger.Debug("rollback superseded", "op", OpDelete, "key", id)
				return nil
			}
			if entity.IndexOf(s.view, id) >= 0 {
				return nil
			}
			at := min(index, len(s.view))
			s.view = append(s.view[:at:at], append([]entity.User{*snapshot}, s.view[at:]...)...)
			return nil
		})
	}()
	return t
}

// confirmLocked settles a successful update or delete dispatched when the
// fetch counter was at fetched.
func (s *Optimistic) confirmLocked(op Op, id string, patch entity.Patch, fetched int64) *Task {
	if s.fetched == fetched && s.inflight == nil {
		s.noteLocked(op, id, patch)
		return nil
	}
	s.markStaleLocked(op, id, patch)
	refresh, start := s.requestRefreshLocked()
	if !start {
		return nil
	}
	return refresh
}
