package testutil

import (
	"context"
	"sync"

	"github.com/roach88/crudsync/internal/entity"
	"github.com/roach88/crudsync/internal/gateway"
)

// FaultyGateway wraps a gateway.Gateway with scripted failures, call
// counting and gates that hold calls until a test releases them.
//
// A failure queued with FailNext is bound to a call when the call starts,
// so it applies in dispatch order even if calls are later released out of
// order.
//
// Thread-safety: all methods are safe for concurrent use.
type FaultyGateway struct {
	inner gateway.Gateway

	mu     sync.Mutex
	faults map[string][]gateway.Kind
	gates  map[string]*Gate
	calls  map[string]int
}

// NewFaultyGateway wraps inner.
func NewFaultyGateway(inner gateway.Gateway) *FaultyGateway {
	return &FaultyGateway{
		inner:  inner,
		faults: make(map[string][]gateway.Kind),
		gates:  make(map[string]*Gate),
		calls:  make(map[string]int),
	}
}

// FailNext makes the next call of op fail with kind. Calls queue up:
// FailNext twice fails the next two calls.
func (f *FaultyGateway) FailNext(op string, kind gateway.Kind) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults[op] = append(f.faults[op], kind)
}

// Hold parks every subsequent call of op on the returned gate until the
// gate releases it. Calling Hold again for the same op returns the same
// gate.
func (f *FaultyGateway) Hold(op string) *Gate {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.gates[op]
	if !ok {
		g = NewGate()
		f.gates[op] = g
	}
	return g
}

// Release removes op's gate and opens it. Parked calls go through, and a
// later Hold returns a fresh gate.
func (f *FaultyGateway) Release(op string) {
	f.mu.Lock()
	g := f.gates[op]
	delete(f.gates, op)
	f.mu.Unlock()
	if g != nil {
		g.Open()
	}
}

// Calls returns how many times op has been called.
func (f *FaultyGateway) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// CallCounts returns a copy of all call counters.
func (f *FaultyGateway) CallCounts() map[string]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]int, len(f.calls))
	for k, v := range f.calls {
		out[k] = v
	}
	return out
}

// enter records a call, binds any queued fault to it and waits on the op's
// gate.
func (f *FaultyGateway) enter(ctx context.Context, op, id string) error {
	f.mu.Lock()
	f.calls[op]++
	var fault gateway.Kind
	if q := f.faults[op]; len(q) > 0 {
		fault = q[0]
		f.faults[op] = q[1:]
	}
	gate := f.gates[op]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate.park():
		case <-ctx.Done():
			return gateway.AsError(op, id, ctx.Err())
		}
	}

	switch fault {
	case "":
		return nil
	case gateway.KindNotFound:
		return gateway.NewNotFound(op, id)
	case gateway.KindValidationFailed:
		return gateway.NewValidationFailed(op, id, nil)
	default:
		return gateway.NewUnavailable(op, id, "injected fault")
	}
}

// List implements gateway.Gateway.
func (f *FaultyGateway) List(ctx context.Context) ([]entity.User, error) {
	if err := f.enter(ctx, gateway.OpList, ""); err != nil {
		return nil, err
	}
	return f.inner.List(ctx)
}

// Create implements gateway.Gateway.
func (f *FaultyGateway) Create(ctx context.Context, d entity.Draft) (string, error) {
	if err := f.enter(ctx, gateway.OpCreate, ""); err != nil {
		return "", err
	}
	return f.inner.Create(ctx, d)
}

// Update implements gateway.Gateway.
func (f *FaultyGateway) Update(ctx context.Context, id string, p entity.Patch) error {
	if err := f.enter(ctx, gateway.OpUpdate, id); err != nil {
		return err
	}
	return f.inner.Update(ctx, id, p)
}

// Delete implements gateway.Gateway.
func (f *FaultyGateway) Delete(ctx context.Context, id string) error {
	if err := f.enter(ctx, gateway.OpDelete, id); err != nil {
		return err
	}
	return f.inner.Delete(ctx, id)
}

// Gate parks calls until they are released, one at a time or all at once.
type Gate struct {
	mu      sync.Mutex
	parked  []chan struct{}
	open    bool
	changed chan struct{}
}

// NewGate creates a closed gate.
func NewGate() *Gate {
	return &Gate{changed: make(chan struct{})}
}

// park registers a waiter and returns the channel it should block on.
func (g *Gate) park() <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()

	ch := make(chan struct{})
	if g.open {
		close(ch)
		return ch
	}
	g.parked = append(g.parked, ch)
	g.signalLocked()
	return ch
}

func (g *Gate) signalLocked() {
	close(g.changed)
	g.changed = make(chan struct{})
}

// Parked returns the number of calls currently waiting.
func (g *Gate) Parked() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.parked)
}

// WaitParked blocks until at least n calls are waiting.
func (g *Gate) WaitParked(ctx context.Context, n int) error {
	for {
		g.mu.Lock()
		if len(g.parked) >= n {
			g.mu.Unlock()
			return nil
		}
		ch := g.changed
		g.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}

// ReleaseNext releases the oldest waiting call. Returns false if none.
func (g *Gate) ReleaseNext() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.parked) == 0 {
		return false
	}
	close(g.parked[0])
	g.parked = g.parked[1:]
	g.signalLocked()
	return true
}

// ReleaseLast releases the newest waiting call. Returns false if none.
// Used to make responses arrive out of dispatch order.
func (g *Gate) ReleaseLast() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := len(g.parked)
	if n == 0 {
		return false
	}
	close(g.parked[n-1])
	g.parked = g.parked[:n-1]
	g.signalLocked()
	return true
}

// Open releases every waiting call and lets future calls through.
func (g *Gate) Open() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, ch := range g.parked {
		close(ch)
	}
	g.parked = nil
	g.open = true
	g.signalLocked()
}
