package strategy

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/crudsync/internal/entity"
	"github.com/roach88/crudsync/internal/gateway"
	"github.com/roach88/crudsync/internal/testutil"
)

const testTimeout = 5 * time.Second

// newTestGateway returns a memory gateway seeded with users, wrapped for
// fault injection.
func newTestGateway(t *testing.T, seed ...entity.User) (*testutil.MemoryGateway, *testutil.FaultyGateway) {
	t.Helper()
	mem := testutil.NewMemoryGateway(nil, seed...)
	return mem, testutil.NewFaultyGateway(mem)
}

// testOptions returns the options every test strategy uses: quiet logging,
// predictable temporary keys and the given seed as the initial view.
func testOptions(seed []entity.User, extra ...Option) []Option {
	opts := []Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithTokenGenerator(gateway.NewSequenceGenerator("tmp")),
		WithInitialView(seed),
	}
	return append(opts, extra...)
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	t.Cleanup(cancel)
	return ctx
}

func wait(t *testing.T, task *Task) Outcome {
	t.Helper()
	out, err := task.Wait(testContext(t))
	require.NoError(t, err, "task did not settle")
	return out
}

func waitIdle(t *testing.T, s Strategy) {
	t.Helper()
	require.NoError(t, s.Idle(testContext(t)), "strategy did not become idle")
}

func waitParked(t *testing.T, g *testutil.Gate, n int) {
	t.Helper()
	require.NoError(t, g.WaitParked(testContext(t), n), "calls did not reach the gate")
}

// lateList reads the store as soon as List is called but holds the first
// result until release is closed.
type lateList struct {
	gateway.Gateway
	once    sync.Once
	read    chan struct{}
	release chan struct{}
}

func newLateList(inner gateway.Gateway) *lateList {
	return &lateList{Gateway: inner, read: make(chan struct{}), release: make(chan struct{})}
}

func (l *lateList) List(ctx context.Context) ([]entity.User, error) {
	users, err := l.Gateway.List(ctx)
	l.once.Do(func() { close(l.read) })
	select {
	case <-l.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return users, err
}

func waitRead(t *testing.T, l *lateList) {
	t.Helper()
	select {
	case <-l.read:
	case <-testContext(t).Done():
		t.Fatal("list was not called")
	}
}

func user(id, name string) entity.User {
	return entity.User{ID: id, Name: name, Email: name + "@example.com", Phone: "555-0100"}
}

func draft(name string) entity.Draft {
	return entity.Draft{Name: name, Email: name + "@example.com", Phone: "555-0100"}
}
