package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuenv/cuenv/internal/turbopath"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(turbopath.FromUpstream(t.TempDir()), nil)
	require.NoError(t, err)
	return store
}

func TestComputeCacheKeyOrderIndependent(t *testing.T) {
	a := Envelope{Inputs: map[string]string{"b": "2", "a": "1"}, Command: "go", Args: []string{"build"}, Env: map[string]string{}, CuenvVersion: "v1", Platform: "linux"}
	b := Envelope{Inputs: map[string]string{"a": "1", "b": "2"}, Command: "go", Args: []string{"build"}, Env: map[string]string{}, CuenvVersion: "v1", Platform: "linux"}

	ha, _, err := ComputeCacheKey(a)
	require.NoError(t, err)
	hb, _, err := ComputeCacheKey(b)
	require.NoError(t, err)
	require.Equal(t, ha, hb)
}

func TestComputeCacheKeyChangesOnFieldChange(t *testing.T) {
	a := Envelope{Command: "go", Args: []string{"build"}, Env: map[string]string{}, CuenvVersion: "v1", Platform: "linux"}
	b := a
	b.Platform = "darwin"

	ha, _, _ := ComputeCacheKey(a)
	hb, _, _ := ComputeCacheKey(b)
	require.NotEqual(t, ha, hb)
}

func TestLookupMissAndSaveResult(t *testing.T) {
	store := newTestStore(t)
	require.False(t, store.Lookup("somekey"))

	outputsRoot := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outputsRoot, "out.txt"), []byte("built"), 0o644))

	meta := Metadata{TaskName: "build", Command: "go", Args: []string{"build"}, Key: "somekey"}
	err := store.SaveResult("somekey", meta, outputsRoot, "", []byte("stdout line"), []byte("stderr line"))
	require.NoError(t, err)

	require.True(t, store.Lookup("somekey"))

	dest := t.TempDir()
	n, err := store.MaterializeOutputs("somekey", dest)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	data, err := os.ReadFile(filepath.Join(dest, "out.txt"))
	require.NoError(t, err)
	require.Equal(t, "built", string(data))
}

func TestSaveResultNeverWritesOnFailureIsCallerResponsibility(t *testing.T) {
	store := newTestStore(t)
	// A failed task simply never calls SaveResult; verify no entry exists.
	require.False(t, store.Lookup("never-saved"))
}

func TestRedactsSecretsInLogs(t *testing.T) {
	redacted := Redact([]byte("token: abc123\nother line unaffected"))
	require.Contains(t, string(redacted), "[REDACTED]")
	require.NotContains(t, string(redacted), "abc123")
	require.Contains(t, string(redacted), "other line unaffected")
}

func TestLatestIndexRoundTrip(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.RecordLatest("projhash", "build", "key1"))

	index, err := store.LoadLatestIndex()
	require.NoError(t, err)
	require.Equal(t, "key1", index["projhash"]["build"])

	require.NoError(t, store.RecordLatest("projhash", "test", "key2"))
	index, err = store.LoadLatestIndex()
	require.NoError(t, err)
	require.Equal(t, "key1", index["projhash"]["build"])
	require.Equal(t, "key2", index["projhash"]["test"])
}

func TestWriteSnapshotProducesReadableArchive(t *testing.T) {
	store := newTestStore(t)
	hermeticRoot := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(hermeticRoot, "file.txt"), []byte("hi"), 0o644))

	meta := Metadata{TaskName: "snap", Key: "snapkey"}
	require.NoError(t, store.SaveResult("snapkey", meta, "", hermeticRoot, nil, nil))

	snapPath := store.taskDir("snapkey").Join("workspace.tar.zst")
	require.True(t, snapPath.FileExists())
}
