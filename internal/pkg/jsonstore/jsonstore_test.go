package jsonstore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type payload struct {
	Name  string         `json:"name"`
	Count int            `json:"count"`
	Tags  map[string]int `json:"tags"`
}

func TestStore_SaveLoadRoundtrip(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	in := payload{Name: "main_team", Count: 3, Tags: map[string]int{"a": 1}}
	require.NoError(t, store.Save(DocEvents, in))

	var out payload
	require.NoError(t, store.Load(DocEvents, &out))
	assert.Equal(t, in, out)
}

func TestStore_MissingFileLeavesDefaults(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	out := payload{Name: "default"}
	require.NoError(t, store.Load("never_written", &out))
	assert.Equal(t, "default", out.Name)
}

func TestStore_LegacyBarePayload(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	require.NoError(t, err)

	// Documents from before versioning have no envelope.
	legacy := []byte(`{"name":"old","count":7,"tags":null}`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "legacy.json"), legacy, 0o644))

	var out payload
	require.NoError(t, store.Load("legacy", &out))
	assert.Equal(t, "old", out.Name)
	assert.Equal(t, 7, out.Count)
}

func TestStore_NewerVersionRejected(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	require.NoError(t, err)

	future := []byte(`{"version":99,"data":{}}`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "future.json"), future, 0o644))

	var out payload
	err = store.Load("future", &out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPersistence))
}

func TestStore_CorruptDocument(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{not json"), 0o644))

	var out payload
	err = store.Load("bad", &out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPersistence))
}

func TestStore_SaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, store.Save(DocRowTimes, map[string]string{"main_team": "20:00 UTC Sunday"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}
}

// TestStore_OverwriteProperty checks that the last save always wins and
// round-trips exactly, whatever sequence of values was written before.
func TestStore_OverwriteProperty(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	rapid.Check(t, func(t *rapid.T) {
		writes := rapid.IntRange(1, 10).Draw(t, "writes")
		var last payload
		for i := 0; i < writes; i++ {
			last = payload{
				Name:  rapid.StringMatching(`[a-z]{1,12}`).Draw(t, "name"),
				Count: rapid.IntRange(0, 1000).Draw(t, "count"),
			}
			if err := store.Save(DocEvents, last); err != nil {
				t.Fatalf("save failed: %v", err)
			}
		}

		var out payload
		if err := store.Load(DocEvents, &out); err != nil {
			t.Fatalf("load failed: %v", err)
		}
		if out.Name != last.Name || out.Count != last.Count {
			t.Fatalf("last write lost: want %+v, got %+v", last, out)
		}
	})
}
