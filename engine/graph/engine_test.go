package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	saved   map[string]*Context
	saveErr error
}

func newFakeStore() *fakeStore { return &fakeStore{saved: map[string]*Context{}} }

func (f *fakeStore) SaveContext(_ context.Context, g *Context) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved[g.ID()] = g
	return nil
}
func (f *fakeStore) LoadContext(_ context.Context, id string) (*Context, error) {
	return f.saved[id], nil
}
func (f *fakeStore) ListContexts(_ context.Context) ([]string, error) {
	var ids []string
	for id := range f.saved {
		ids = append(ids, id)
	}
	return ids, nil
}
func (f *fakeStore) DeleteContext(_ context.Context, id string) error {
	delete(f.saved, id)
	return nil
}
func (f *fakeStore) RenameContext(_ context.Context, id, newID string) error {
	g := f.saved[id]
	delete(f.saved, id)
	f.saved[newID] = g
	return nil
}

func TestEngineCreateAndWithContextMutPersists(t *testing.T) {
	store := newFakeStore()
	e := NewEngine(store, nil)

	_, err := e.CreateContext(context.Background(), "ctx1")
	require.NoError(t, err)

	err = e.WithContextMut(context.Background(), "ctx1", func(g *Context) error {
		_, _, err := g.UpsertNode(Node{ID: "a", Dimension: DimensionStructure})
		return err
	})
	require.NoError(t, err)

	require.True(t, store.saved["ctx1"].HasNode("a"))
}

func TestEngineWithContextMutUnknownContext(t *testing.T) {
	e := NewEngine(newFakeStore(), nil)
	err := e.WithContextMut(context.Background(), "missing", func(g *Context) error { return nil })
	require.Error(t, err)
}

func TestEngineRenameAndDelete(t *testing.T) {
	store := newFakeStore()
	e := NewEngine(store, nil)
	_, err := e.CreateContext(context.Background(), "a")
	require.NoError(t, err)

	require.NoError(t, e.RenameContext(context.Background(), "a", "b"))
	require.ElementsMatch(t, []string{"b"}, e.ListContexts())

	require.NoError(t, e.DeleteContext(context.Background(), "b"))
	require.Empty(t, e.ListContexts())
}

func TestEngineSnapshotIsolated(t *testing.T) {
	store := newFakeStore()
	e := NewEngine(store, nil)
	_, err := e.CreateContext(context.Background(), "a")
	require.NoError(t, err)

	snap, err := e.Snapshot("a")
	require.NoError(t, err)
	require.False(t, snap.HasNode("x"))
}
