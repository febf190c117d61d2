package inputs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestResolveLiteralsAndDirectories(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "hello")
	writeFile(t, root, "sub/b.txt", "world")

	resolved, err := Resolve(root, []string{"a.txt", "sub"})
	require.NoError(t, err)
	require.Len(t, resolved, 2)

	byPath := map[string]ResolvedInput{}
	for _, r := range resolved {
		byPath[r.RelPath] = r
	}
	require.Contains(t, byPath, "a.txt")
	require.Contains(t, byPath, "sub/b.txt")
	require.NotEmpty(t, byPath["a.txt"].Sha256)
}

func TestResolveGlobNoMatchIsNotError(t *testing.T) {
	root := t.TempDir()
	resolved, err := Resolve(root, []string{"*.nonexistent"})
	require.NoError(t, err)
	require.Empty(t, resolved)
}

func TestResolveIsSortedAndDeterministic(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "z.txt", "z")
	writeFile(t, root, "a.txt", "a")

	r1, err := Resolve(root, []string{"z.txt", "a.txt"})
	require.NoError(t, err)
	r2, err := Resolve(root, []string{"a.txt", "z.txt"})
	require.NoError(t, err)
	require.Equal(t, r1, r2)
	require.Equal(t, "a.txt", r1[0].RelPath)
}

func TestSanitizeTaskName(t *testing.T) {
	require.Equal(t, "build--app", SanitizeTaskName("build:#app"))
}

func TestSeedWorkdirCopiesFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "hello")
	resolved, err := Resolve(root, []string{"a.txt"})
	require.NoError(t, err)

	workdir := filepath.Join(t.TempDir(), "work")
	result, err := SeedWorkdir(root, workdir, resolved)
	require.NoError(t, err)
	require.Equal(t, workdir, result)

	data, err := os.ReadFile(filepath.Join(workdir, "a.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))
}

func TestDetectUndeclaredWritesFlagsUnmatchedFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "hello")
	resolved, err := Resolve(root, []string{"a.txt"})
	require.NoError(t, err)

	workdir := filepath.Join(t.TempDir(), "work")
	_, err = SeedWorkdir(root, workdir, resolved)
	require.NoError(t, err)

	// Simulate the task writing a declared output and an undeclared file.
	writeFile(t, workdir, "dist/out.txt", "built")
	writeFile(t, workdir, "stray.log", "oops")

	writes, err := DetectUndeclaredWrites(workdir, resolved, []string{"dist/**"})
	require.NoError(t, err)

	var reasons []string
	for _, w := range writes {
		reasons = append(reasons, w.RelPath)
	}
	require.Contains(t, reasons, "stray.log")
	require.NotContains(t, reasons, "dist/out.txt")
}
