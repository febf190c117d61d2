// Package turbopath teaches the Go type system about one path variant the
// rest of cuenv depends on: AbsolutePath. cuenv never needs to round-trip
// paths through a Windows/Unix-portable anchored representation the way a
// cross-platform monorepo tool does: every path the core touches is either
// already absolute or is made absolute immediately after resolution,
// matching the invariant that a Hook's `dir` is always absolute after
// resolution.
package turbopath

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// randomSuffix gives the atomic-write temp file a name collision-resistant
// enough for concurrent writers to the same directory (pid + nanosecond
// timestamp), without pulling in a UUID just for this.
func randomSuffix() string {
	return fmt.Sprintf("%d-%d", os.Getpid(), time.Now().UnixNano())
}

// dirPermissions are the default permission bits applied to directories.
const dirPermissions = os.ModeDir | 0775

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	err := os.MkdirAll(dir, dirPermissions)
	if err != nil && fileExists(dir) {
		if err2 := os.Remove(dir); err2 == nil {
			err = os.MkdirAll(dir, dirPermissions)
		} else {
			return err
		}
	}
	return err
}

func fileExists(filename string) bool {
	info, err := os.Lstat(filename)
	return err == nil && !info.IsDir()
}

var nonRelativeSentinel = ".." + string(filepath.Separator)

func dirContainsPath(dir string, target string) (bool, error) {
	rel, err := filepath.Rel(dir, target)
	if err != nil {
		return false, err
	}
	return !strings.HasPrefix(rel, nonRelativeSentinel), nil
}

// AbsolutePath represents an absolute path on the filesystem, and is used to
// enforce correct path manipulation throughout the core.
type AbsolutePath string

// FromUpstream casts a path string to an AbsolutePath without checking. Used
// at the boundary where a path is known-absolute but hasn't been typed yet
// (e.g. os.Getwd(), a resolved symlink target).
func FromUpstream(path string) AbsolutePath {
	return AbsolutePath(path)
}

func (ap AbsolutePath) asString() string {
	return string(ap)
}

// ToString returns the string representation of this absolute path.
func (ap AbsolutePath) ToString() string {
	return ap.asString()
}

// Join joins path segments onto this absolute path.
func (ap AbsolutePath) Join(args ...string) AbsolutePath {
	return AbsolutePath(filepath.Join(ap.asString(), filepath.Join(args...)))
}

// Dir returns the parent directory of this absolute path.
func (ap AbsolutePath) Dir() AbsolutePath {
	return AbsolutePath(filepath.Dir(ap.asString()))
}

// MkdirAll implements os.MkdirAll for this absolute path.
func (ap AbsolutePath) MkdirAll() error {
	return os.MkdirAll(ap.asString(), dirPermissions|0755)
}

// Open implements os.Open for this absolute path.
func (ap AbsolutePath) Open() (*os.File, error) {
	return os.Open(ap.asString())
}

// OpenFile implements os.OpenFile for this absolute path.
func (ap AbsolutePath) OpenFile(flags int, mode os.FileMode) (*os.File, error) {
	return os.OpenFile(ap.asString(), flags, mode)
}

// FileExists returns true if this path exists and is a regular file.
func (ap AbsolutePath) FileExists() bool {
	return fileExists(ap.asString())
}

// Exists returns true if this path exists at all (file, dir, or symlink).
func (ap AbsolutePath) Exists() bool {
	_, err := os.Lstat(ap.asString())
	return err == nil
}

// Lstat implements os.Lstat for this absolute path.
func (ap AbsolutePath) Lstat() (os.FileInfo, error) {
	return os.Lstat(ap.asString())
}

// DirExists returns true if this path points to a directory.
func (ap AbsolutePath) DirExists() bool {
	info, err := ap.Lstat()
	return err == nil && info.IsDir()
}

// ContainsPath returns true if this absolute path is a parent of other.
func (ap AbsolutePath) ContainsPath(other AbsolutePath) (bool, error) {
	return dirContainsPath(ap.asString(), other.asString())
}

// ReadFile reads the contents of the file at this path.
func (ap AbsolutePath) ReadFile() ([]byte, error) {
	return os.ReadFile(ap.asString())
}

// WriteFile writes contents to the file at this path, non-atomically.
func (ap AbsolutePath) WriteFile(contents []byte, mode os.FileMode) error {
	return os.WriteFile(ap.asString(), contents, mode)
}

// WriteFileAtomic writes contents via a sibling temp file, fsync, then
// rename-over, so readers never observe a torn write. Ground truth for the
// state store and approval store invariant that on-disk files always parse.
func (ap AbsolutePath) WriteFileAtomic(contents []byte, mode os.FileMode) error {
	if err := ap.Dir().MkdirAll(); err != nil {
		return err
	}
	tmp := ap.Dir().Join(".tmp-" + ap.Base() + randomSuffix())
	f, err := tmp.OpenFile(os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := f.Write(contents); err != nil {
		_ = f.Close()
		_ = tmp.Remove()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = tmp.Remove()
		return err
	}
	if err := f.Close(); err != nil {
		_ = tmp.Remove()
		return err
	}
	return os.Rename(tmp.asString(), ap.asString())
}

// EnsureDir ensures that the directory containing this file exists.
func (ap AbsolutePath) EnsureDir() error {
	return ensureDir(ap.asString())
}

// Create implements os.Create for this absolute path.
func (ap AbsolutePath) Create() (*os.File, error) {
	return os.Create(ap.asString())
}

// RelativePathString returns the relative path from this AbsolutePath to
// another absolute path string.
func (ap AbsolutePath) RelativePathString(path string) (string, error) {
	return filepath.Rel(ap.asString(), path)
}

// Symlink implements os.Symlink(target, ap) for this absolute path.
func (ap AbsolutePath) Symlink(target string) error {
	return os.Symlink(target, ap.asString())
}

// Readlink implements os.Readlink(ap) for this absolute path.
func (ap AbsolutePath) Readlink() (string, error) {
	return os.Readlink(ap.asString())
}

// Remove removes the file or empty directory at this path.
func (ap AbsolutePath) Remove() error {
	return os.Remove(ap.asString())
}

// RemoveAll implements os.RemoveAll for this absolute path.
func (ap AbsolutePath) RemoveAll() error {
	return os.RemoveAll(ap.asString())
}

// Base implements filepath.Base for this absolute path.
func (ap AbsolutePath) Base() string {
	return filepath.Base(ap.asString())
}

// Rename implements os.Rename(ap, dest) for absolute paths.
func (ap AbsolutePath) Rename(dest AbsolutePath) error {
	return os.Rename(ap.asString(), dest.asString())
}

// EvalSymlinks resolves all symlinks and returns the canonical path. If the
// path does not exist, it is returned unchanged (canonicalization of a
// not-yet-existing path is still useful for directory_key hashing).
func (ap AbsolutePath) EvalSymlinks() (AbsolutePath, error) {
	resolved, err := filepath.EvalSymlinks(ap.asString())
	if err != nil {
		if os.IsNotExist(err) {
			return ap, nil
		}
		return "", err
	}
	return AbsolutePath(resolved), nil
}
