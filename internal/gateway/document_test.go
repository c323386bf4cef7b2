package gateway

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/crudsync/internal/entity"
	"github.com/roach88/crudsync/internal/store"
)

func newTestGateway(t *testing.T, ids ...string) (*DocumentGateway, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	gw := NewDocumentGateway(st, "users",
		WithIDGenerator(NewFixedGenerator(ids...)),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	return gw, st
}

func TestDocumentGateway_CreateThenList(t *testing.T) {
	gw, _ := newTestGateway(t, "u-1", "u-2")
	ctx := context.Background()

	id, err := gw.Create(ctx, entity.Draft{Name: "Ann", Email: "a@x.com", Phone: "111"})
	require.NoError(t, err)
	assert.Equal(t, "u-1", id)

	_, err = gw.Create(ctx, entity.Draft{Name: " Bo ", Email: "b@x.com", Phone: "222"})
	require.NoError(t, err)

	users, err := gw.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []entity.User{
		{ID: "u-1", Name: "Ann", Email: "a@x.com", Phone: "111"},
		{ID: "u-2", Name: "Bo", Email: "b@x.com", Phone: "222"},
	}, users)
}

func TestDocumentGateway_ListEmpty(t *testing.T) {
	gw, _ := newTestGateway(t)

	users, err := gw.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, users)
	assert.Empty(t, users)
}

func TestDocumentGateway_UpdateMerges(t *testing.T) {
	gw, _ := newTestGateway(t, "u-1")
	ctx := context.Background()

	id, err := gw.Create(ctx, entity.Draft{Name: "Bo", Email: "b@x.com", Phone: "222"})
	require.NoError(t, err)

	require.NoError(t, gw.Update(ctx, id, entity.Patch{Name: entity.String("Bob")}))

	users, err := gw.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, entity.User{ID: id, Name: "Bob", Email: "b@x.com", Phone: "222"}, users[0])
}

func TestDocumentGateway_UpdateNotFound(t *testing.T) {
	gw, _ := newTestGateway(t)

	err := gw.Update(context.Background(), "missing", entity.Patch{Name: entity.String("x")})
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	var ge *Error
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, OpUpdate, ge.Op)
	assert.Equal(t, "missing", ge.ID)
}

func TestDocumentGateway_DeleteNotFound(t *testing.T) {
	gw, _ := newTestGateway(t)

	err := gw.Delete(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err), "delete of absent id must be NotFound, got %v", err)
	assert.False(t, IsStoreUnavailable(err))
}

func TestDocumentGateway_Delete(t *testing.T) {
	gw, _ := newTestGateway(t, "u-1")
	ctx := context.Background()

	id, err := gw.Create(ctx, entity.Draft{Name: "Ann", Email: "a@x.com", Phone: "111"})
	require.NoError(t, err)

	require.NoError(t, gw.Delete(ctx, id))

	users, err := gw.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)

	// Second delete of the same id is NotFound.
	assert.True(t, IsNotFound(gw.Delete(ctx, id)))
}

// racingStore deletes the document itself right before the gateway's
// delete runs, as a concurrent writer would.
type racingStore struct {
	documentStore
}

func (r racingStore) DeleteDocument(ctx context.Context, collection, id string) (bool, error) {
	if _, err := r.documentStore.DeleteDocument(ctx, collection, id); err != nil {
		return false, err
	}
	return r.documentStore.DeleteDocument(ctx, collection, id)
}

func TestDocumentGateway_DeleteRaceIsNotFound(t *testing.T) {
	gw, _ := newTestGateway(t, "u-1")
	ctx := context.Background()

	_, err := gw.Create(ctx, entity.Draft{Name: "Ann", Email: "a@x.com", Phone: "111"})
	require.NoError(t, err)

	var logs bytes.Buffer
	gw.store = racingStore{documentStore: gw.store}
	gw.logger = slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	err = gw.Delete(ctx, "u-1")
	assert.True(t, IsNotFound(err), "got %v", err)
	assert.Contains(t, logs.String(), "user vanished between existence check and delete")
	assert.NotContains(t, logs.String(), "level=ERROR")

	users, err := gw.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestDocumentGateway_ClosedStoreIsUnavailable(t *testing.T) {
	gw, st := newTestGateway(t, "u-1")
	ctx := context.Background()
	require.NoError(t, st.Close())

	_, err := gw.List(ctx)
	assert.True(t, IsStoreUnavailable(err), "got %v", err)

	_, err = gw.Create(ctx, entity.Draft{Name: "Ann", Email: "a", Phone: "1"})
	assert.True(t, IsStoreUnavailable(err), "got %v", err)

	assert.True(t, IsStoreUnavailable(gw.Update(ctx, "x", entity.Patch{Name: entity.String("y")})))
	assert.True(t, IsStoreUnavailable(gw.Delete(ctx, "x")))
}

func TestDocumentGateway_CanceledContextIsUnavailable(t *testing.T) {
	gw, _ := newTestGateway(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gw.List(ctx)
	require.Error(t, err)
	assert.Equal(t, KindStoreUnavailable, KindOf(err))
}

func TestDocumentGateway_DefaultCollection(t *testing.T) {
	gw := NewDocumentGateway(nil, "")
	assert.Equal(t, DefaultCollection, gw.Collection())
}

func TestDocumentGateway_ImplementsGateway(t *testing.T) {
	var _ Gateway = (*DocumentGateway)(nil)
}
