package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/crudsync/internal/entity"
	"github.com/roach88/crudsync/internal/gateway"
)

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestMemoryGateway_CRUD(t *testing.T) {
	ctx := testContext(t)
	m := NewMemoryGateway(nil, entity.User{ID: "seed", Name: "Zed", Email: "z@x", Phone: "0"})

	id, err := m.Create(ctx, entity.Draft{Name: " Ann ", Email: "a@x", Phone: "1"})
	require.NoError(t, err)
	assert.Equal(t, "user-1", id)

	require.NoError(t, m.Update(ctx, id, entity.Patch{Phone: entity.String("2")}))
	users, err := m.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []entity.User{
		{ID: "seed", Name: "Zed", Email: "z@x", Phone: "0"},
		{ID: "user-1", Name: "Ann", Email: "a@x", Phone: "2"},
	}, users)

	require.NoError(t, m.Delete(ctx, "seed"))
	assert.Len(t, m.Users(), 1)

	assert.True(t, gateway.IsNotFound(m.Delete(ctx, "seed")))
	assert.True(t, gateway.IsNotFound(m.Update(ctx, "nope", entity.Patch{Name: entity.String("x")})))
}

func TestMemoryGateway_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemoryGateway(nil).List(ctx)
	assert.True(t, gateway.IsStoreUnavailable(err))
}

func TestFaultyGateway_FailNextQueues(t *testing.T) {
	ctx := testContext(t)
	f := NewFaultyGateway(NewMemoryGateway(nil))
	f.FailNext(gateway.OpCreate, gateway.KindStoreUnavailable)
	f.FailNext(gateway.OpCreate, gateway.KindValidationFailed)

	d := entity.Draft{Name: "Ann", Email: "a@x", Phone: "1"}
	_, err := f.Create(ctx, d)
	assert.True(t, gateway.IsStoreUnavailable(err))
	_, err = f.Create(ctx, d)
	assert.True(t, gateway.IsValidationFailed(err))
	id, err := f.Create(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, "user-1", id)

	f.FailNext(gateway.OpDelete, gateway.KindNotFound)
	assert.True(t, gateway.IsNotFound(f.Delete(ctx, id)))

	assert.Equal(t, 3, f.Calls(gateway.OpCreate))
	assert.Equal(t, map[string]int{gateway.OpCreate: 3, gateway.OpDelete: 1}, f.CallCounts())
}

func TestFaultyGateway_HoldReleasesOutOfOrder(t *testing.T) {
	ctx := testContext(t)
	f := NewFaultyGateway(NewMemoryGateway(nil))
	gate := f.Hold(gateway.OpCreate)
	assert.Same(t, gate, f.Hold(gateway.OpCreate))

	results := make(chan string, 2)
	for i, name := range []string{"first", "second"} {
		i, name := i, name
		go func() {
			_, err := f.Create(ctx, entity.Draft{Name: name, Email: "e", Phone: "p"})
			if err == nil {
				results <- name
			}
		}()
		require.NoError(t, gate.WaitParked(ctx, i+1))
	}
	assert.Equal(t, 2, gate.Parked())

	require.True(t, gate.ReleaseLast())
	assert.Equal(t, "second", <-results)
	require.True(t, gate.ReleaseNext())
	assert.Equal(t, "first", <-results)
	assert.False(t, gate.ReleaseNext())
	assert.False(t, gate.ReleaseLast())
}

func TestFaultyGateway_HeldCallHonorsContext(t *testing.T) {
	f := NewFaultyGateway(NewMemoryGateway(nil))
	f.Hold(gateway.OpList)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := f.List(ctx)
	assert.True(t, gateway.IsStoreUnavailable(err))
}

func TestGate_Open(t *testing.T) {
	ctx := testContext(t)
	g := NewGate()

	done := make(chan struct{})
	go func() {
		<-g.park()
		close(done)
	}()
	require.NoError(t, g.WaitParked(ctx, 1))

	g.Open()
	<-done
	assert.Equal(t, 0, g.Parked())

	select {
	case <-g.park():
	default:
		t.Fatal("open gate must not park")
	}
}

func TestFaultyGateway_ReleaseDropsGate(t *testing.T) {
	ctx := testContext(t)
	f := NewFaultyGateway(NewMemoryGateway(nil))
	gate := f.Hold(gateway.OpList)

	done := make(chan error, 1)
	go func() {
		_, err := f.List(ctx)
		done <- err
	}()
	require.NoError(t, gate.WaitParked(ctx, 1))

	f.Release(gateway.OpList)
	require.NoError(t, <-done)
	assert.NotSame(t, gate, f.Hold(gateway.OpList), "a later Hold starts a fresh gate")
}
