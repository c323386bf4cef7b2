package strategy

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/roach88/crudsync/internal/entity"
	"github.com/roach88/crudsync/internal/gateway"
)

// PendingOp is a dispatched mutation that has not settled yet.
//
// Several pending ops may share a Key; each is removed by its own Seq.
type PendingOp struct {
	Seq int64  `json:"seq"`
	Op  Op     `json:"op"`
	Key string `json:"key"`
	ID  string `json:"id,omitempty"`
}

// Failure is what subscribers receive when a command fails.
type Failure struct {
	Op  Op
	Key string
	Err error
}

// Kind returns the gateway failure kind.
func (f Failure) Kind() gateway.Kind {
	return gateway.KindOf(f.Err)
}

type subscriber struct {
	id int
	fn func(Failure)
}

// core holds the state and machinery shared by every variant.
//
// Thread-safety model:
//   - all fields below mu are guarded by mu
//   - gateway calls run on goroutines spawned by commands and never hold mu
//   - subscribers and task resolution run after mu is released
//
// INVARIANTS:
//   - a pending op exists from dispatch until its settle, and only then
//   - at most one fetch is in flight and at most one is queued behind it
//   - changes holds the successes seen while a fetch was in flight
//   - idle is closed exactly when nothing is pending, in flight or queued
type core struct {
	kind    Kind
	gw      gateway.Gateway
	logger  *slog.Logger
	timeout time.Duration
	tokens  gateway.IDGenerator
	guard   bool

	mu          sync.Mutex
	view        []entity.User
	stale       bool
	epoch       int64 // bumped whenever the store is known to have changed
	fetched     int64 // successful fetches so far
	changes     []change
	seq         int64
	pending     []PendingOp
	generations map[string]int64
	inflight    *Task
	queued      *Task
	required    bool // the queued fetch was asked for by Refresh
	busy        bool
	idle        chan struct{}
	last        *Failure
	subs        []subscriber
	nextSub     int
}

func newCore(kind Kind, gw gateway.Gateway, opts []Option) *core {
	o := buildOptions(opts)
	idle := make(chan struct{})
	close(idle)
	return &core{
		kind:        kind,
		gw:          gw,
		logger:      o.logger,
		timeout:     o.timeout,
		tokens:      o.tokens,
		guard:       o.guard,
		view:        o.initial,
		generations: make(map[string]int64),
		idle:        idle,
	}
}

// Kind implements Strategy.
func (c *core) Kind() Kind {
	return c.kind
}

// View implements Strategy.
func (c *core) View() []entity.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return entity.Clone(c.view)
}

// Pending implements Strategy.
func (c *core) Pending() []PendingOp {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]PendingOp, len(c.pending))
	copy(out, c.pending)
	return out
}

// PendingKeys implements Strategy.
func (c *core) PendingKeys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.pending))
	seen := make(map[string]bool, len(c.pending))
	for _, p := range c.pending {
		if !seen[p.Key] {
			seen[p.Key] = true
			keys = append(keys, p.Key)
		}
	}
	return keys
}

// Stale implements Strategy.
func (c *core) Stale() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stale
}

// Subscribe implements Strategy.
func (c *core) Subscribe(fn func(Failure)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs = append(c.subs, subscriber{id: id, fn: fn})
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for i, s := range c.subs {
				if s.id == id {
					c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// LastFailure implements Strategy.
func (c *core) LastFailure() (Failure, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return Failure{}, false
	}
	return *c.last, true
}

// Idle implements Strategy.
func (c *core) Idle(ctx context.Context) error {
	c.mu.Lock()
	ch := c.idle
	c.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Refresh implements Strategy.
func (c *core) Refresh(ctx context.Context) *Task {
	c.mu.Lock()
	t, start := c.requestRefreshLocked()
	if !start {
		c.required = true
	}
	c.mu.Unlock()

	if start {
		go c.fetch(ctx, t)
	}
	return t
}

// requestRefreshLocked returns the task a new refresh request should wait
// on. start is true when the caller must launch the fetch; otherwise the
// request joins the queued follow-up, which the in-flight fetch starts
// when it finishes. A follow-up queued only for mutation successes is
// skipped when the in-flight fetch already saw all of them.
func (c *core) requestRefreshLocked() (t *Task, start bool) {
	defer c.updateIdleLocked()

	if c.inflight == nil {
		c.inflight = newTask()
		return c.inflight, true
	}
	if c.queued == nil {
		c.queued = newTask()
	}
	return c.queued, false
}

// fetch runs t and then any follow-up queued while it was in flight.
func (c *core) fetch(ctx context.Context, t *Task) {
	for t != nil {
		c.mu.Lock()
		epoch := c.epoch
		c.changes = slices.DeleteFunc(c.changes, func(ch change) bool { return ch.epoch <= epoch })
		c.mu.Unlock()

		var users []entity.User
		err := c.call(ctx, gateway.OpList, "", func(ctx context.Context) error {
			var err error
			users, err = c.gw.List(ctx)
			return err
		})
		o := Outcome{Op: OpRefresh, Err: err}

		c.mu.Lock()
		var skipped *Task
		if err == nil {
			c.view = entity.Clone(users)
			c.fetched++
			c.stale = !c.reflectsLocked(users, epoch)
		}
		subs, f := c.recordLocked(o)
		next := c.queued
		if next != nil && err == nil && !c.required && !c.stale {
			skipped, next = next, nil
			c.changes = nil
		}
		c.queued = nil
		c.required = false
		c.inflight = next
		c.updateIdleLocked()
		c.mu.Unlock()

		c.finish(t, o, subs, f)
		if skipped != nil {
			c.logger.Debug("follow-up refresh skipped", "strategy", c.kind)
			skipped.resolve(o)
		}
		t = next
	}
}

// change is a successful mutation that landed while a fetch was in flight.
type change struct {
	epoch int64
	op    Op
	id    string
	patch entity.Patch
}

// reflectsLocked reports whether users, read by a fetch that started at
// epoch, already show every change recorded after it.
func (c *core) reflectsLocked(users []entity.User, epoch int64) bool {
	if c.epoch == epoch {
		return true
	}
	for _, ch := range c.changes {
		if ch.epoch <= epoch {
			continue
		}
		i := entity.IndexOf(users, ch.id)
		switch ch.op {
		case OpCreate:
			if i < 0 {
				return false
			}
		case OpDelete:
			if i >= 0 {
				return false
			}
		case OpUpdate:
			if i < 0 || ch.patch.Apply(users[i]) != users[i] {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// call runs fn against the gateway. Dispatched calls are not cancelled by
// the caller's context; only the configured timeout bounds them.
func (c *core) call(ctx context.Context, op, id string, fn func(context.Context) error) error {
	ctx = context.WithoutCancel(ctx)
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if err := fn(ctx); err != nil {
		return gateway.AsError(op, id, err)
	}
	return nil
}

// beginLocked registers a pending mutation.
func (c *core) beginLocked(op Op, key, id string) PendingOp {
	c.seq++
	p := PendingOp{Seq: c.seq, Op: op, Key: key, ID: id}
	c.pending = append(c.pending, p)
	c.updateIdleLocked()
	return p
}

// settle completes a mutation. The pending op is removed first, then apply
// runs under the lock and may return a refresh task to launch.
func (c *core) settle(ctx context.Context, p PendingOp, t *Task, o Outcome, apply func() *Task) {
	c.mu.Lock()
	for i := range c.pending {
		if c.pending[i].Seq == p.Seq {
			c.pending = append(c.pending[:i:i], c.pending[i+1:]...)
			break
		}
	}
	var refresh *Task
	if apply != nil {
		refresh = apply()
	}
	subs, f := c.recordLocked(o)
	c.updateIdleLocked()
	c.mu.Unlock()

	if refresh != nil {
		go c.fetch(ctx, refresh)
	}
	c.finish(t, o, subs, f)
}

// reject settles a command that failed validation. Nothing is dispatched.
func (c *core) reject(op Op, key string, err *gateway.Error) *Task {
	o := Outcome{Op: op, Key: key, ID: key, Err: err}
	t := newTask()

	c.mu.Lock()
	subs, f := c.recordLocked(o)
	c.mu.Unlock()

	c.finish(t, o, subs, f)
	return t
}

// recordLocked stores a failed outcome as the last failure and returns the
// subscribers to notify.
func (c *core) recordLocked(o Outcome) ([]func(Failure), Failure) {
	if o.Err == nil {
		return nil, Failure{}
	}
	f := Failure{Op: o.Op, Key: o.Key, Err: o.Err}
	c.last = &f
	subs := make([]func(Failure), len(c.subs))
	for i, s := range c.subs {
		subs[i] = s.fn
	}
	return subs, f
}

func (c *core) finish(t *Task, o Outcome, subs []func(Failure), f Failure) {
	if o.Err != nil {
		c.logger.Warn("command failed",
			"strategy", c.kind,
			"op", o.Op,
			"key", o.Key,
			"kind", gateway.KindOf(o.Err),
			"error", o.Err)
		for _, fn := range subs {
			fn(f)
		}
	} else {
		c.logger.Debug("command settled",
			"strategy", c.kind,
			"op", o.Op,
			"key", o.Key,
			"id", o.ID)
	}
	t.resolve(o)
}

// noteLocked records a successful mutation of id. An update passes the
// patch it applied.
func (c *core) noteLocked(op Op, id string, patch entity.Patch) {
	c.epoch++
	if c.inflight != nil {
		c.changes = append(c.changes, change{epoch: c.epoch, op: op, id: id, patch: patch})
	}
}

// markStaleLocked records a successful mutation the view does not show.
func (c *core) markStaleLocked(op Op, id string, patch entity.Patch) {
	c.noteLocked(op, id, patch)
	c.stale = true
}

// bumpLocked advances key's generation and returns the new value.
func (c *core) bumpLocked(key string) int64 {
	c.generations[key]++
	return c.generations[key]
}

// supersededLocked reports whether a rollback captured at gen should be
// skipped because a later mutation touched key.
func (c *core) supersededLocked(key string, gen int64) bool {
	return c.guard && c.generations[key] != gen
}

func (c *core) updateIdleLocked() {
	busy := len(c.pending) > 0 || c.inflight != nil || c.queued != nil
	switch {
	case busy && !c.busy:
		c.idle = make(chan struct{})
	case !busy && c.busy:
		close(c.idle)
	}
	c.busy = busy
}

// newKey returns a temporary key for a create.
func (c *core) newKey() string {
	return c.tokens.Generate()
}

func validateDraft(d entity.Draft) (entity.Draft, *gateway.Error) {
	d = d.Normalize()
	if missing := d.Missing(); len(missing) > 0 {
		return d, gateway.NewValidationFailed(gateway.OpCreate, "", missing)
	}
	return d, nil
}

func validatePatch(id string, p entity.Patch) (entity.Patch, *gateway.Error) {
	if id == "" {
		return p, gateway.NewValidationFailed(gateway.OpUpdate, "", []string{"id"})
	}
	p = p.Normalize()
	if p.IsEmpty() {
		return p, &gateway.Error{
			Kind:    gateway.KindValidationFailed,
			Op:      gateway.OpUpdate,
			ID:      id,
			Message: "no fields to update",
		}
	}
	if missing := p.Missing(); len(missing) > 0 {
		return p, gateway.NewValidationFailed(gateway.OpUpdate, id, missing)
	}
	return p, nil
}

func validateID(op, id string) *gateway.Error {
	if id == "" {
		return gateway.NewValidationFailed(op, "", []string{"id"})
	}
	return nil
}
