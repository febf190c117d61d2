package cmd

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func initCiRepo(t *testing.T) (repoRoot, apiDir string) {
	t.Helper()
	repoRoot = t.TempDir()
	for _, args := range [][]string{
		{"init"},
		{"config", "user.email", "test@example.com"},
		{"config", "user.name", "test"},
	} {
		cmd := exec.Command("git", args...)
		cmd.Dir = repoRoot
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
	}
	require.NoError(t, os.WriteFile(filepath.Join(repoRoot, "README.md"), []byte("hello\n"), 0o644))
	apiDir = filepath.Join(repoRoot, "api")
	require.NoError(t, os.MkdirAll(apiDir, 0o755))
	commit := exec.Command("git", "add", ".")
	commit.Dir = repoRoot
	out, err := commit.CombinedOutput()
	require.NoError(t, err, string(out))
	commit = exec.Command("git", "commit", "-m", "initial")
	commit.Dir = repoRoot
	out, err = commit.CombinedOutput()
	require.NoError(t, err, string(out))
	return repoRoot, apiDir
}

// ciSeedScenarioJSON is the literal fixture from seed scenario 4: projects
// {api, shared}, api.deploy depends_on #shared:build, shared.build inputs =
// ["src/**"], rooted at "." (shared) and "api" respectively.
const ciSeedScenarioJSON = `{"root":".","instances":{` +
	`".":{"name":"shared","tasks":{"build":{"kind":"task","task":{"command":"true","inputs":["src/**"]}}}},` +
	`"api":{"name":"api","tasks":{"deploy":{"kind":"task","task":{"command":"true","dependsOn":["#shared:build"]}}}}` +
	`},"projects":[".","api"]}`

func TestCiDryRunMatchesSeedScenario(t *testing.T) {
	root, out := newTestRoot(t)
	repoRoot, apiDir := initCiRepo(t)
	t.Setenv("CUENV_BRIDGE_PATH", writeFakeBridge(t, ciSeedScenarioJSON))
	require.NoError(t, os.MkdirAll(filepath.Join(repoRoot, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(repoRoot, "src", "lib.rs"), []byte("fn main() {}\n"), 0o644))

	root.SetArgs([]string{"ci", "--cwd", apiDir, "--pipeline", "deploy", "--dry-run"})
	require.NoError(t, root.Execute())
	require.Contains(t, out.String(), "deploy")
	require.NotContains(t, out.String(), "no affected tasks")
}

func TestCiDryRunReportsNoAffectedTasksWhenUnrelated(t *testing.T) {
	root, out := newTestRoot(t)
	repoRoot, apiDir := initCiRepo(t)
	t.Setenv("CUENV_BRIDGE_PATH", writeFakeBridge(t, ciSeedScenarioJSON))
	require.NoError(t, os.WriteFile(filepath.Join(repoRoot, "unrelated.txt"), []byte("x\n"), 0o644))

	root.SetArgs([]string{"ci", "--cwd", apiDir, "--pipeline", "deploy", "--dry-run"})
	require.NoError(t, root.Execute())
	require.Contains(t, out.String(), "no affected tasks")
}

func TestCiGenerateGithubEmitsWorkflow(t *testing.T) {
	root, out := newTestRoot(t)

	root.SetArgs([]string{"ci", "--generate", "github"})
	require.NoError(t, root.Execute())
	require.Contains(t, out.String(), "runs-on: ubuntu-latest")
}

func TestCiGenerateUnsupportedProviderErrors(t *testing.T) {
	root, _ := newTestRoot(t)

	root.SetArgs([]string{"ci", "--generate", "gitlab"})
	require.Error(t, root.Execute())
}
