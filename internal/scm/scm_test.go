package scm

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	runGit(t, dir, "init")
	runGit(t, dir, "config", "user.email", "test@example.com")
	runGit(t, dir, "config", "user.name", "test")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "committed.txt"), []byte("one\n"), 0o644))
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-m", "initial")
	return dir
}

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))
}

func TestNewRejectsNonRepo(t *testing.T) {
	_, err := New(t.TempDir())
	require.ErrorIs(t, err, ErrNoRepo)
}

func TestFromWorkingDirWalksUpToRepoRoot(t *testing.T) {
	repo := initRepo(t)
	nested := filepath.Join(repo, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	g, err := FromWorkingDir(nested)
	require.NoError(t, err)
	require.Equal(t, repo, g.RepoRoot())
}

func TestChangedFilesReportsModifiedAndUntracked(t *testing.T) {
	repo := initRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(repo, "committed.txt"), []byte("two\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(repo, "new.txt"), []byte("new\n"), 0o644))

	g, err := New(repo)
	require.NoError(t, err)

	changed, err := g.ChangedFiles("")
	require.NoError(t, err)
	require.Contains(t, changed, "committed.txt")
	require.Contains(t, changed, "new.txt")
}

func TestChangedFilesEmptyWhenNothingChanged(t *testing.T) {
	repo := initRepo(t)
	g, err := New(repo)
	require.NoError(t, err)

	changed, err := g.ChangedFiles("")
	require.NoError(t, err)
	require.Empty(t, changed)
}
