package cmd

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuenv/cuenv/internal/approval"
	"github.com/cuenv/cuenv/internal/fingerprint"
	"github.com/cuenv/cuenv/internal/project"
	"github.com/cuenv/cuenv/internal/turbopath"
)

func TestAllowThenDenyRoundTrip(t *testing.T) {
	root, _ := newTestRoot(t)
	dir := t.TempDir()
	t.Setenv("CUENV_BRIDGE_PATH", writeFakeBridge(t, projectJSON("demo")))

	approvalFile := filepath.Join(t.TempDir(), "approvals.json")
	t.Setenv("CUENV_APPROVAL_FILE", approvalFile)

	root.SetArgs([]string{"allow", "--cwd", dir, "--yes"})
	require.NoError(t, root.Execute())

	dirKey, err := fingerprint.DirectoryKey(turbopath.FromUpstream(dir))
	require.NoError(t, err)
	approvalHash, err := project.ApprovalHash(project.Hooks{})
	require.NoError(t, err)

	store := approval.New(turbopath.FromUpstream(approvalFile))
	result, err := store.Check(dirKey, approvalHash)
	require.NoError(t, err)
	require.Equal(t, approval.Approved, result.Status)

	root.SetArgs([]string{"deny", "--cwd", dir})
	require.NoError(t, root.Execute())

	result, err = store.Check(dirKey, approvalHash)
	require.NoError(t, err)
	require.Equal(t, approval.NotApproved, result.Status)
}

func TestDenyOnUnapprovedDirectoryDoesNotError(t *testing.T) {
	root, _ := newTestRoot(t)
	dir := t.TempDir()

	root.SetArgs([]string{"deny", "--cwd", dir})
	require.NoError(t, root.Execute())
}
