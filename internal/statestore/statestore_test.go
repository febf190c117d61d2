package statestore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir(), nil)
	require.NoError(t, err)
	return store
}

func TestSaveAndLoadStateRoundTrip(t *testing.T) {
	store := newTestStore(t)
	state := &State{
		Dir:            "/repo/pkg",
		InstanceHash:   "abc123",
		ConfigHash:     "def456",
		TotalHooks:     2,
		CompletedHooks: 1,
		Status:         StatusRunning,
		StartedAt:      time.Now(),
	}
	require.NoError(t, store.SaveState(state))

	loaded, err := store.LoadState("abc123")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, state.Dir, loaded.Dir)
	require.Equal(t, state.CompletedHooks, loaded.CompletedHooks)
	require.Equal(t, StatusRunning, loaded.Status)
}

func TestLoadStateAbsentReturnsNilNoError(t *testing.T) {
	store := newTestStore(t)
	loaded, err := store.LoadState("does-not-exist")
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestSaveStateRejectsInvariantViolation(t *testing.T) {
	store := newTestStore(t)
	state := &State{InstanceHash: "x", TotalHooks: 1, CompletedHooks: 5, Status: StatusRunning}
	err := store.SaveState(state)
	require.Error(t, err)
}

func TestActiveMarkerLifecycle(t *testing.T) {
	store := newTestStore(t)
	dirKey := "deadbeefcafebabe"

	require.False(t, store.HasActiveMarker(dirKey))

	require.NoError(t, store.SetActiveMarker(dirKey, "instance-1"))
	require.True(t, store.HasActiveMarker(dirKey))

	value, err := store.ReadActiveMarker(dirKey)
	require.NoError(t, err)
	require.Equal(t, "instance-1", value)

	require.NoError(t, store.ClearActiveMarker(dirKey))
	require.False(t, store.HasActiveMarker(dirKey))

	// Clearing an already-absent marker is not an error.
	require.NoError(t, store.ClearActiveMarker(dirKey))
}

func TestListActiveStatesSkipsMalformedFiles(t *testing.T) {
	store := newTestStore(t)
	good := &State{InstanceHash: "good", TotalHooks: 1, CompletedHooks: 1, Status: StatusCompleted, StartedAt: time.Now()}
	require.NoError(t, store.SaveState(good))

	require.NoError(t, store.statesDir().MkdirAll())
	require.NoError(t, store.stateFile("bad").WriteFileAtomic([]byte("{not json"), 0o644))

	states, err := store.ListActiveStates()
	require.NoError(t, err)
	require.Len(t, states, 1)
	require.Equal(t, "good", states[0].InstanceHash)
}

func TestInstanceHashDeterministic(t *testing.T) {
	h1, err := InstanceHash("dirkey", "confighash")
	require.NoError(t, err)
	h2, err := InstanceHash("dirkey", "confighash")
	require.NoError(t, err)
	require.Equal(t, h1, h2)
	require.Len(t, h1, 16)

	h3, err := InstanceHash("dirkey", "different")
	require.NoError(t, err)
	require.NotEqual(t, h1, h3)
}

func TestGCStaleStatesRemovesOldTerminalStates(t *testing.T) {
	store := newTestStore(t)
	old := time.Now().Add(-48 * time.Hour)
	staleState := &State{InstanceHash: "stale", TotalHooks: 1, CompletedHooks: 1, Status: StatusCompleted, StartedAt: old, FinishedAt: &old}
	require.NoError(t, store.SaveState(staleState))

	fresh := time.Now()
	freshState := &State{InstanceHash: "fresh", TotalHooks: 1, CompletedHooks: 1, Status: StatusCompleted, StartedAt: fresh, FinishedAt: &fresh}
	require.NoError(t, store.SaveState(freshState))

	removed, err := store.GCStaleStates(time.Hour)
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	states, err := store.ListActiveStates()
	require.NoError(t, err)
	require.Len(t, states, 1)
	require.Equal(t, "fresh", states[0].InstanceHash)
}
