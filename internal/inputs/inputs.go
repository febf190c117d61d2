// Package inputs resolves a task's declared inputs into a sorted, content-
// hashed file list and seeds a hermetic working directory from that list.
// Glob expansion is delegated to internal/globby (bmatcuk/doublestar over an
// afero filesystem) the same way the teacher resolves a task's input globs
// before hashing them.
package inputs

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/cuenv/cuenv/internal/fingerprint"
	"github.com/cuenv/cuenv/internal/globby"
)

// ResolvedInput is one entry of the resolved input list.
type ResolvedInput struct {
	RelPath string `json:"relPath"`
	Sha256  string `json:"sha256"`
	Size    int64  `json:"size"`
}

// Resolve expands patterns (literal paths, directories, globs) rooted at
// projectRoot into a sorted list of content-hashed files. A glob matching
// nothing produces zero entries, not an error. Hashing is bounded-parallel
// via errgroup, mirroring the teacher's worker-pool approach to hashing many
// files for a task hash.
func Resolve(projectRoot string, patterns []string) ([]ResolvedInput, error) {
	paths := expand(projectRoot, patterns)
	sort.Strings(paths)

	results := make([]ResolvedInput, len(paths))
	var g errgroup.Group
	g.SetLimit(runtimeHashWorkers())
	for i, relPath := range paths {
		i, relPath := i, relPath
		g.Go(func() error {
			abs := filepath.Join(projectRoot, relPath)
			digest, size, err := fingerprint.Sha256File(abs)
			if err != nil {
				return errors.Wrapf(err, "inputs: hash %s", relPath)
			}
			results[i] = ResolvedInput{RelPath: filepath.ToSlash(relPath), Sha256: digest, Size: size}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(results, func(i, j int) bool { return results[i].RelPath < results[j].RelPath })
	return results, nil
}

func runtimeHashWorkers() int {
	return 8
}

// expand turns glob/directory/literal patterns into a deduplicated list of
// relative file paths. Directories expand to their file leaves; symlinks are
// followed with cycle protection via a visited-inode-path set.
func expand(projectRoot string, patterns []string) []string {
	var globs, literals []string
	for _, p := range patterns {
		if containsGlobMeta(p) {
			globs = append(globs, p)
		} else {
			literals = append(literals, p)
		}
	}

	seen := map[string]struct{}{}
	var out []string

	add := func(rel string) {
		if _, ok := seen[rel]; !ok {
			seen[rel] = struct{}{}
			out = append(out, rel)
		}
	}

	if len(globs) > 0 {
		for _, match := range globby.GlobFiles(projectRoot, globs, nil) {
			rel, err := filepath.Rel(projectRoot, match)
			if err == nil {
				add(rel)
			}
		}
	}

	visited := map[string]struct{}{}
	for _, lit := range literals {
		abs := filepath.Join(projectRoot, lit)
		walkLeaf(projectRoot, abs, visited, add)
	}

	return out
}

var globMetaRe = regexp.MustCompile(`[*?\[\{]`)

func containsGlobMeta(pattern string) bool {
	return globMetaRe.MatchString(pattern)
}

func walkLeaf(root, path string, visited map[string]struct{}, add func(string)) {
	info, err := os.Lstat(path)
	if err != nil {
		return
	}
	if info.Mode()&os.ModeSymlink != 0 {
		resolved, err := filepath.EvalSymlinks(path)
		if err != nil {
			return
		}
		if _, ok := visited[resolved]; ok {
			return
		}
		visited[resolved] = struct{}{}
		path = resolved
		info, err = os.Lstat(path)
		if err != nil {
			return
		}
	}
	if info.IsDir() {
		_ = godirwalk.Walk(path, &godirwalk.Options{
			Callback: func(name string, de *godirwalk.Dirent) error {
				if de.IsDir() {
					return nil
				}
				if rel, err := filepath.Rel(root, name); err == nil {
					add(rel)
				}
				return nil
			},
			ErrorCallback: func(_ string, _ error) godirwalk.ErrorAction {
				return godirwalk.SkipNode
			},
			Unsorted: true,
		})
		return
	}
	rel, err := filepath.Rel(root, path)
	if err == nil {
		add(rel)
	}
}

// SanitizeTaskName replaces non-ASCII-alphanumeric characters with '-', for
// use in the hermetic workdir path.
var nonAlnumRe = regexp.MustCompile(`[^A-Za-z0-9]`)

func SanitizeTaskName(task string) string {
	return nonAlnumRe.ReplaceAllString(task, "-")
}

// WorkdirPath computes the hermetic workdir location for a task/key pair.
func WorkdirPath(task, key string) string {
	short := key
	if len(short) > 12 {
		short = short[:12]
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("cuenv-work-%s-%s", SanitizeTaskName(task), short))
}

// SeedWorkdir deletes any prior workdir (falling back to a uniquified path
// on deletion failure), creates it fresh, and copies every resolved input
// into place preserving mode bits but not timestamps.
func SeedWorkdir(projectRoot, workdir string, resolved []ResolvedInput) (string, error) {
	if _, err := os.Stat(workdir); err == nil {
		if err := os.RemoveAll(workdir); err != nil {
			workdir = fmt.Sprintf("%s-%d", workdir, time.Now().UnixNano())
		}
	}
	if err := os.MkdirAll(workdir, 0o755); err != nil {
		return "", errors.Wrap(err, "inputs: create workdir")
	}
	for _, input := range resolved {
		src := filepath.Join(projectRoot, input.RelPath)
		dst := filepath.Join(workdir, input.RelPath)
		if err := copyFile(src, dst); err != nil {
			return "", errors.Wrapf(err, "inputs: seed %s", input.RelPath)
		}
	}
	return workdir, nil
}

func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, info.Mode().Perm())
}

// UndeclaredWrite describes a file found in the workdir after task
// execution that was neither a declared input (unchanged) nor under a
// declared output glob.
type UndeclaredWrite struct {
	RelPath string
	Reason  string // "new" or "modified"
}

// DetectUndeclaredWrites re-hashes workdir and compares against the
// pre-execution snapshot, flagging any new-or-modified path not covered by
// outputGlobs. This is a warning signal only; it never mutates the cache.
func DetectUndeclaredWrites(workdir string, before []ResolvedInput, outputGlobs []string) ([]UndeclaredWrite, error) {
	beforeByPath := map[string]string{}
	for _, r := range before {
		beforeByPath[r.RelPath] = r.Sha256
	}

	declaredOutputs := map[string]struct{}{}
	for _, match := range globby.GlobFiles(workdir, outputGlobs, nil) {
		rel, err := filepath.Rel(workdir, match)
		if err == nil {
			declaredOutputs[filepath.ToSlash(rel)] = struct{}{}
		}
	}

	var writes []UndeclaredWrite
	err := filepath.WalkDir(workdir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(workdir, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if _, declared := declaredOutputs[rel]; declared {
			return nil
		}
		digest, _, err := fingerprint.Sha256File(path)
		if err != nil {
			return nil
		}
		prior, existed := beforeByPath[rel]
		switch {
		case !existed:
			writes = append(writes, UndeclaredWrite{RelPath: rel, Reason: "new"})
		case prior != digest:
			writes = append(writes, UndeclaredWrite{RelPath: rel, Reason: "modified"})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(writes, func(i, j int) bool { return writes[i].RelPath < writes[j].RelPath })
	return writes, nil
}
