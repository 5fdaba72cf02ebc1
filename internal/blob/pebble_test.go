package blob

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pebblestore "github.com/plastic-io/graph-server/internal/storage/pebble"
)

func newTestStore(t *testing.T) *PebbleStore {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeNever})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPebbleStore(db)
}

func TestSetGetHead(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	meta := Metadata{ID: "g1", Name: "My Graph", Version: "3", Type: "graph", URL: "my-graph", UserID: "u1"}
	require.NoError(t, s.Set(ctx, "graphs/projections/latest/g1.json", []byte(`{"id":"g1"}`), meta))

	body, err := s.Get(ctx, "graphs/projections/latest/g1.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"g1"}`, string(body))

	got, err := s.Head(ctx, "graphs/projections/latest/g1.json")
	require.NoError(t, err)
	assert.Equal(t, meta, got)
}

func TestGetMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "graphs/projections/latest/none.json")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Head(context.Background(), "graphs/projections/latest/none.json")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemoveIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "connections/123456/localhost", []byte("{}"), Metadata{}))
	require.NoError(t, s.Remove(ctx, "connections/123456/localhost"))
	require.NoError(t, s.Remove(ctx, "connections/123456/localhost"))
	_, err := s.Get(ctx, "connections/123456/localhost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListAndRemovePath(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "graphs/g1/events/e1.json", []byte("{}"), Metadata{Type: "event"}))
	require.NoError(t, s.Set(ctx, "graphs/g1/events/e2.json", []byte("{}"), Metadata{Type: "event"}))
	require.NoError(t, s.Set(ctx, "graphs/g2/events/e1.json", []byte("{}"), Metadata{Type: "event"}))

	listed, err := s.List(ctx, "graphs/g1/events/")
	require.NoError(t, err)
	assert.Equal(t, []string{"graphs/g1/events/e1.json", "graphs/g1/events/e2.json"}, listed)

	require.NoError(t, s.RemovePath(ctx, "graphs/g1/events"))
	listed, err = s.List(ctx, "graphs/g1/events/")
	require.NoError(t, err)
	assert.Empty(t, listed)

	// other graph untouched, and its metadata survives
	_, err = s.Head(ctx, "graphs/g2/events/e1.json")
	require.NoError(t, err)
}
