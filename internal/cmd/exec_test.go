package cmd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExecRunsChildWithMergedProjectEnv(t *testing.T) {
	root, _ := newTestRoot(t)
	dir := t.TempDir()
	t.Setenv("CUENV_BRIDGE_PATH", writeFakeBridge(t, projectJSON("demo")))

	root.SetArgs([]string{"exec", "--cwd", dir, "--", "true"})
	require.NoError(t, root.Execute())
}

func TestExecPropagatesChildExitCode(t *testing.T) {
	root, _ := newTestRoot(t)
	dir := t.TempDir()
	t.Setenv("CUENV_BRIDGE_PATH", writeFakeBridge(t, projectJSON("demo")))

	root.SetArgs([]string{"exec", "--cwd", dir, "--", "false"})
	require.Error(t, root.Execute())
}
