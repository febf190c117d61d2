package shellexport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cuenv/cuenv/internal/statestore"
)

func TestEscapeHandlesSpecialChars(t *testing.T) {
	fmtr := NewFormatter(Bash)
	out := fmtr.Export("FOO", `va\l"u$e` + "`x`")
	require.Contains(t, out, `va\\l\"u\$e`)
	require.Contains(t, out, "\\`x\\`")
}

func TestDecideAbsentMarkerFallsThrough(t *testing.T) {
	store, err := statestore.New(t.TempDir(), nil)
	require.NoError(t, err)
	decision := Decide(store, "dirkey", "", "", "/repo")
	require.Empty(t, decision.Diff)
	require.Empty(t, decision.Notice)
}

func TestDecideEmptyDirKeyClearsFlags(t *testing.T) {
	store, err := statestore.New(t.TempDir(), nil)
	require.NoError(t, err)
	decision := Decide(store, "", "", "", "/repo")
	require.True(t, decision.ClearPendingFlag)
	require.True(t, decision.ClearLoadedFlag)
}

func TestDecideCompletedEmitsDiffAndNotice(t *testing.T) {
	store, err := statestore.New(t.TempDir(), nil)
	require.NoError(t, err)
	require.NoError(t, store.SetActiveMarker("dirkey", "inst-1"))
	require.NoError(t, store.SaveState(&statestore.State{
		InstanceHash:    "inst-1",
		TotalHooks:      1,
		CompletedHooks:  1,
		Status:          statestore.StatusCompleted,
		StartedAt:       time.Now(),
		PreviousEnv:     map[string]string{"OLD": "x"},
		EnvironmentVars: map[string]string{"NEW": "y"},
	}))

	decision := Decide(store, "dirkey", "/other", "", "/repo")
	require.True(t, decision.Diff["OLD"].unset)
	require.Equal(t, "y", decision.Diff["NEW"].value)
	require.NotEmpty(t, decision.Notice)
	require.True(t, decision.MarkLoaded)
}

func TestDecideRunningNeverBlocks(t *testing.T) {
	store, err := statestore.New(t.TempDir(), nil)
	require.NoError(t, err)
	require.NoError(t, store.SetActiveMarker("dirkey", "inst-2"))
	require.NoError(t, store.SaveState(&statestore.State{InstanceHash: "inst-2", TotalHooks: 1, Status: statestore.StatusRunning, StartedAt: time.Now()}))

	decision := Decide(store, "dirkey", "", "", "/repo")
	require.Empty(t, decision.Diff)
	require.Empty(t, decision.Notice)
}

func TestDecideFailedClearsLoadedFlag(t *testing.T) {
	store, err := statestore.New(t.TempDir(), nil)
	require.NoError(t, err)
	require.NoError(t, store.SetActiveMarker("dirkey", "inst-3"))
	require.NoError(t, store.SaveState(&statestore.State{InstanceHash: "inst-3", TotalHooks: 1, Status: statestore.StatusFailed, StartedAt: time.Now()}))

	decision := Decide(store, "dirkey", "", "", "/repo")
	require.True(t, decision.ClearLoadedFlag)
}
