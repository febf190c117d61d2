package cmdutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func TestGetCmdBaseDefaultsCwdToWorkingDirectory(t *testing.T) {
	flags := pflag.NewFlagSet("test-flags", pflag.ContinueOnError)
	h := NewHelper("test-version")
	h.AddFlags(flags)

	base, err := h.GetCmdBase(flags)
	require.NoError(t, err)

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.Equal(t, wd, base.Cwd)
	require.Equal(t, "test-version", base.CuenvVersion)
}

func TestGetCmdBaseHonorsCwdFlag(t *testing.T) {
	dir := t.TempDir()
	flags := pflag.NewFlagSet("test-flags", pflag.ContinueOnError)
	h := NewHelper("test-version")
	h.AddFlags(flags)
	require.NoError(t, flags.Set("cwd", dir))

	base, err := h.GetCmdBase(flags)
	require.NoError(t, err)

	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		resolved = dir
	}
	actual, err := filepath.EvalSymlinks(base.Cwd)
	if err != nil {
		actual = base.Cwd
	}
	require.Equal(t, resolved, actual)
}

func TestCacheRootHonorsOverride(t *testing.T) {
	t.Setenv("CUENV_CACHE_DIR", "/tmp/cuenv-test-cache")
	root, err := cacheRoot()
	require.NoError(t, err)
	require.Equal(t, "/tmp/cuenv-test-cache", root.ToString())
}

func TestApprovalFilePathHonorsOverride(t *testing.T) {
	t.Setenv("CUENV_APPROVAL_FILE", "/tmp/cuenv-test-approvals.json")
	path, err := approvalFilePath()
	require.NoError(t, err)
	require.Equal(t, "/tmp/cuenv-test-approvals.json", path.ToString())
}

func TestStateStoreHonorsOverride(t *testing.T) {
	dir := t.TempDir()
	flags := pflag.NewFlagSet("test-flags", pflag.ContinueOnError)
	h := NewHelper("test-version")
	h.AddFlags(flags)
	base, err := h.GetCmdBase(flags)
	require.NoError(t, err)

	t.Setenv("CUENV_STATE_DIR", dir)
	store, err := base.StateStore()
	require.NoError(t, err)
	require.NotNil(t, store)

	again, err := base.StateStore()
	require.NoError(t, err)
	require.Same(t, store, again)
}
