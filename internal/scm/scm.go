// Package scm resolves the changed-file list the "ci" command needs to
// compute affected tasks. Only git is supported; a repo without a .git
// directory simply has no changed-file detection available.
//
// Adapted from https://github.com/thought-machine/please/tree/master/src/scm
// Copyright Thought Machine, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0
package scm

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// ErrNoRepo is returned by New when repoRoot has no .git directory.
var ErrNoRepo = errors.New("scm: no .git directory found; cannot compute changed files")

// Git wraps shell-level git invocations scoped to one repository root.
type Git struct {
	repoRoot string
}

// New returns a Git bound to repoRoot, or ErrNoRepo if it is not a git
// repository.
func New(repoRoot string) (*Git, error) {
	if _, err := os.Stat(filepath.Join(repoRoot, ".git")); err != nil {
		return nil, ErrNoRepo
	}
	return &Git{repoRoot: repoRoot}, nil
}

// FromWorkingDir walks upward from cwd looking for a .git directory and
// returns a Git rooted there.
func FromWorkingDir(cwd string) (*Git, error) {
	dir := cwd
	for {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return &Git{repoRoot: dir}, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, ErrNoRepo
		}
		dir = parent
	}
}

// ChangedFiles returns every path (relative to the repo root) modified
// since fromRef, plus untracked files. An empty fromRef compares against
// the working tree only (uncommitted changes).
func (g *Git) ChangedFiles(fromRef string) ([]string, error) {
	ref := fromRef
	if ref == "" {
		ref = "HEAD"
	}

	out, err := g.run("diff", "--name-only", ref)
	if err != nil {
		return nil, errors.Wrapf(err, "scm: diff against %s", ref)
	}
	files := splitLines(out)

	untracked, err := g.run("ls-files", "--others", "--exclude-standard")
	if err != nil {
		return nil, errors.Wrap(err, "scm: listing untracked files")
	}
	files = append(files, splitLines(untracked)...)

	return dedupe(files), nil
}

// RepoRoot returns the absolute path this Git was rooted at.
func (g *Git) RepoRoot() string {
	return g.repoRoot
}

func (g *Git) run(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = g.repoRoot
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", errors.Wrap(err, string(out))
	}
	return string(out), nil
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func dedupe(files []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(files))
	for _, f := range files {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}
