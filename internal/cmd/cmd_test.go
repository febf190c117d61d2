package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/cuenv/cuenv/internal/cmdutil"
)

// writeFakeBridge drops an executable script standing in for the
// configuration-language evaluator binary: it ignores its flags entirely
// and prints evalJSON for "eval", or "v0.0.0-test" for "version". Tests
// point CUENV_BRIDGE_PATH at it so ProcessEvaluator's shell-out has
// something deterministic to call.
func writeFakeBridge(t *testing.T, evalJSON string) string {
	t.Helper()
	dir := t.TempDir()
	var path string
	var script string
	if runtime.GOOS == "windows" {
		path = filepath.Join(dir, "fake-bridge.bat")
		script = "@echo off\r\nif \"%1\"==\"version\" (echo v0.0.0-test) else (echo " + evalJSON + ")\r\n"
	} else {
		path = filepath.Join(dir, "fake-bridge.sh")
		script = "#!/bin/sh\nif [ \"$1\" = \"version\" ]; then echo v0.0.0-test; else cat <<'EOF'\n" + evalJSON + "\nEOF\nfi\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

// projectJSON is a minimal bridgeEvaluation body: a project named name,
// with no hooks and no tasks, evaluated at the module root itself.
func projectJSON(name string) string {
	return `{"root":".","instances":{".":{"name":"` + name + `"}},"projects":["."]}`
}

// newTestRoot builds a fresh root command with every store directory
// isolated under a per-test temp dir, so tests never share state.
func newTestRoot(t *testing.T) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	t.Setenv("CUENV_STATE_DIR", filepath.Join(t.TempDir(), "state"))
	t.Setenv("CUENV_CACHE_DIR", filepath.Join(t.TempDir(), "cache"))
	t.Setenv("CUENV_APPROVAL_FILE", filepath.Join(t.TempDir(), "approvals.json"))

	helper := cmdutil.NewHelper("test")
	root := getCmd(helper)
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	return root, buf
}
