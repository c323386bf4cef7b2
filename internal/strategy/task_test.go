package strategy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/crudsync/internal/gateway"
)

func TestTask_ResolvesOnce(t *testing.T) {
	task := newTask()

	_, ok := task.Result()
	assert.False(t, ok)

	task.resolve(Outcome{Op: OpCreate, ID: "user-1"})
	task.resolve(Outcome{Op: OpDelete, ID: "ignored"})

	out, ok := task.Result()
	require.True(t, ok)
	assert.Equal(t, OpCreate, out.Op)
	assert.Equal(t, "user-1", out.ID)
	assert.True(t, out.OK())

	select {
	case <-task.Done():
	default:
		t.Fatal("Done channel not closed")
	}
}

func TestTask_WaitRespectsContext(t *testing.T) {
	task := newTask()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := task.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	_, ok := task.Result()
	assert.False(t, ok, "cancelling the wait must not settle the task")
}

func TestOutcome_OK(t *testing.T) {
	assert.True(t, Outcome{}.OK())
	assert.False(t, Outcome{Err: gateway.NewNotFound(gateway.OpDelete, "x")}.OK())
}
