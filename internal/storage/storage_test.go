package storage

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMigrationsAreIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	s1, err := New(path)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	// Reopening runs migrate again over an already-migrated database.
	s2, err := New(path)
	require.NoError(t, err)
	require.NoError(t, s2.Close())
}

func TestSettingsStore(t *testing.T) {
	s := newTestStorage(t)
	ss := s.Settings()

	_, ok, err := ss.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, ss.Set("k", "v1"))
	require.NoError(t, ss.Set("k", "v2"))

	val, ok, err := ss.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v2", val)

	require.NoError(t, ss.Delete("k"))
	require.NoError(t, ss.Delete("k"))
	_, ok, err = ss.Get("k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSavedMapLifecycle(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	doc := json.RawMessage(`{"nodes": [{"id": "a"}], "edges": []}`)

	m, err := s.SaveMap(ctx, "Go Basics", doc, 1, 0)
	require.NoError(t, err)
	require.NotEmpty(t, m.ID)

	got, err := s.GetMap(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "Go Basics", got.Name)
	assert.JSONEq(t, string(doc), string(got.Document))
	assert.Equal(t, 1, got.NodeCount)

	newDoc := json.RawMessage(`{"nodes": [{"id": "a"}, {"id": "b"}], "edges": [{"id": "e"}]}`)
	require.NoError(t, s.UpdateMap(ctx, m.ID, "Go Basics v2", newDoc, 2, 1))

	got, err = s.GetMap(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "Go Basics v2", got.Name)
	assert.Equal(t, 2, got.NodeCount)
	assert.Equal(t, 1, got.EdgeCount)

	list, err := s.ListMaps(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Nil(t, list[0].Document)

	require.NoError(t, s.DeleteMap(ctx, m.ID))
	_, err = s.GetMap(ctx, m.ID)
	assert.ErrorIs(t, err, ErrMapNotFound)
}

func TestUpdateMapKeepsNameWhenEmpty(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	m, err := s.SaveMap(ctx, "Original", json.RawMessage(`{}`), 0, 0)
	require.NoError(t, err)

	require.NoError(t, s.UpdateMap(ctx, m.ID, "", json.RawMessage(`{"nodes": []}`), 0, 0))

	got, err := s.GetMap(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "Original", got.Name)
}

func TestUpdateMissingMap(t *testing.T) {
	s := newTestStorage(t)
	err := s.UpdateMap(context.Background(), "nope", "x", json.RawMessage(`{}`), 0, 0)
	assert.ErrorIs(t, err, ErrMapNotFound)
}

func TestDeleteMissingMapIsNoop(t *testing.T) {
	s := newTestStorage(t)
	assert.NoError(t, s.DeleteMap(context.Background(), "nope"))
}
