// Package statestore persists hook-execution state and the active-directory
// markers the shell fast path probes on every prompt. State files are
// single-writer (one supervisor owns one instance hash) so, unlike the
// approval store, no advisory lock is needed here: the atomic temp+rename
// write is enough to guarantee readers never observe a torn file.
package statestore

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/adrg/xdg"
	"github.com/hashicorp/go-hclog"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"

	"github.com/cuenv/cuenv/internal/fingerprint"
	"github.com/cuenv/cuenv/internal/turbopath"
)

// Status is the lifecycle state of a hook execution.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// HookResult records the outcome of a single hook within a state.
type HookResult struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration,omitempty"`
}

// State is the durable record of one hook-execution run, keyed by
// InstanceHash. Fields mirror the data model's hook execution state.
type State struct {
	Dir             string            `json:"dir"`
	InstanceHash    string            `json:"instanceHash"`
	ConfigHash      string            `json:"configHash"`
	TotalHooks      int               `json:"totalHooks"`
	CompletedHooks  int               `json:"completedHooks"`
	EnvironmentVars map[string]string `json:"environmentVars,omitempty"`
	PreviousEnv     map[string]string `json:"previousEnv,omitempty"`
	Status          Status            `json:"status"`
	StartedAt       time.Time         `json:"startedAt"`
	FinishedAt      *time.Time        `json:"finishedAt,omitempty"`
	Error           string            `json:"error,omitempty"`
	HookResults     []HookResult      `json:"hookResults,omitempty"`
}

// Validate enforces the monotonicity invariant completed_hooks <= total_hooks.
func (s *State) Validate() error {
	if s.CompletedHooks > s.TotalHooks {
		return errors.Errorf("state invariant violated: completed_hooks (%d) > total_hooks (%d)", s.CompletedHooks, s.TotalHooks)
	}
	return nil
}

// Store resolves a writable root directory and persists state files and
// active-directory markers beneath it.
type Store struct {
	root   turbopath.AbsolutePath
	logger hclog.Logger
}

const writeProbeName = ".write_probe"

// New resolves the root directory following the documented candidate order:
// explicit override, XDG state dir, OS cache dir, ~/.cuenv, then the system
// temp dir. The first candidate that round-trips a write probe file wins; a
// read-only or missing candidate is skipped, never surfaced as an error,
// unless every candidate fails.
func New(override string, logger hclog.Logger) (*Store, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	candidates := candidateRoots(override)
	var lastErr error
	for _, candidate := range candidates {
		root := turbopath.FromUpstream(candidate)
		if err := probeWritable(root); err != nil {
			lastErr = err
			logger.Debug("statestore: candidate root not writable, skipping", "root", candidate, "err", err)
			continue
		}
		return &Store{root: root, logger: logger}, nil
	}
	return nil, errors.Wrap(lastErr, "statestore: no writable root directory found")
}

func candidateRoots(override string) []string {
	var out []string
	if override != "" {
		out = append(out, override)
	}
	if xdg.StateHome != "" {
		out = append(out, filepath.Join(xdg.StateHome, "cuenv"))
	}
	if xdg.CacheHome != "" {
		out = append(out, filepath.Join(xdg.CacheHome, "cuenv", "tasks"))
	}
	if home, err := homedir.Dir(); err == nil {
		out = append(out, filepath.Join(home, ".cuenv"))
	}
	out = append(out, filepath.Join(os.TempDir(), "cuenv"))
	return out
}

func probeWritable(root turbopath.AbsolutePath) error {
	if err := root.MkdirAll(); err != nil {
		return err
	}
	probe := root.Join(writeProbeName)
	if err := probe.WriteFileAtomic([]byte("ok"), 0o644); err != nil {
		return err
	}
	return nil
}

func (s *Store) statesDir() turbopath.AbsolutePath  { return s.root.Join("states") }
func (s *Store) markersDir() turbopath.AbsolutePath { return s.root.Join("markers") }

func (s *Store) stateFile(instanceHash string) turbopath.AbsolutePath {
	return s.statesDir().Join(instanceHash + ".json")
}

func (s *Store) markerFile(dirKey string) turbopath.AbsolutePath {
	return s.markersDir().Join(dirKey)
}

// SaveState writes state atomically (temp file + rename), creating parent
// directories as needed.
func (s *Store) SaveState(state *State) error {
	if err := state.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errors.Wrap(err, "statestore: marshal state")
	}
	if err := s.stateFile(state.InstanceHash).WriteFileAtomic(data, 0o644); err != nil {
		return errors.Wrapf(err, "statestore: save state %s", state.InstanceHash)
	}
	return nil
}

// LoadState returns the state for instanceHash, or nil if absent.
func (s *Store) LoadState(instanceHash string) (*State, error) {
	path := s.stateFile(instanceHash)
	if !path.FileExists() {
		return nil, nil
	}
	data, err := path.ReadFile()
	if err != nil {
		return nil, errors.Wrapf(err, "statestore: read state %s", instanceHash)
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, errors.Wrapf(err, "statestore: parse state %s", instanceHash)
	}
	return &state, nil
}

// LoadStateSync is identical to LoadState; it exists as a distinct name to
// mirror the documented sync entry point used by the shell fast path, which
// must never go through an async scheduling boundary.
func (s *Store) LoadStateSync(instanceHash string) (*State, error) {
	return s.LoadState(instanceHash)
}

// HasActiveMarker performs exactly one stat() call and never reads file
// contents; this is the fast path's sole filesystem probe.
func (s *Store) HasActiveMarker(dirKey string) bool {
	return s.markerFile(dirKey).FileExists()
}

// SetActiveMarker atomically writes instanceHash as the marker body for dirKey.
func (s *Store) SetActiveMarker(dirKey, instanceHash string) error {
	if err := s.markerFile(dirKey).WriteFileAtomic([]byte(instanceHash), 0o644); err != nil {
		return errors.Wrapf(err, "statestore: set active marker %s", dirKey)
	}
	return nil
}

// ClearActiveMarker removes the marker for dirKey. Missing markers are not
// an error: clearing is best-effort.
func (s *Store) ClearActiveMarker(dirKey string) error {
	err := s.markerFile(dirKey).Remove()
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "statestore: clear active marker %s", dirKey)
	}
	return nil
}

// ReadActiveMarker reads the instance hash pointed to by dirKey's marker.
// Unlike HasActiveMarker this does read content, and is only used once the
// fast path has already decided the marker exists.
func (s *Store) ReadActiveMarker(dirKey string) (string, error) {
	data, err := s.markerFile(dirKey).ReadFile()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ListActiveStates scans the states directory, skipping any file that is
// unreadable or fails to parse as a State rather than failing outright.
func (s *Store) ListActiveStates() ([]*State, error) {
	dir := s.statesDir()
	if !dir.DirExists() {
		return nil, nil
	}
	entries, err := os.ReadDir(dir.ToString())
	if err != nil {
		return nil, errors.Wrap(err, "statestore: list states")
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var states []*State
	for _, name := range names {
		instanceHash := name[:len(name)-len(".json")]
		state, err := s.LoadState(instanceHash)
		if err != nil {
			s.logger.Warn("statestore: skipping malformed state file", "file", name, "err", err)
			continue
		}
		if state != nil {
			states = append(states, state)
		}
	}
	return states, nil
}

// GCStaleStates removes terminal states whose FinishedAt is older than
// maxAge, plus their markers if those still point at the removed state.
// Best-effort space reclamation; never required for correctness, and
// individual failures are logged rather than aborting the sweep.
func (s *Store) GCStaleStates(maxAge time.Duration) (removed int, err error) {
	states, err := s.ListActiveStates()
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-maxAge)
	for _, state := range states {
		if !state.Status.IsTerminal() || state.FinishedAt == nil || state.FinishedAt.After(cutoff) {
			continue
		}
		if err := s.stateFile(state.InstanceHash).Remove(); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("statestore: gc failed to remove state", "instanceHash", state.InstanceHash, "err", err)
			continue
		}
		if dirKey, err := DirectoryKey(turbopath.FromUpstream(state.Dir)); err == nil {
			if current, err := s.ReadActiveMarker(dirKey); err == nil && current == state.InstanceHash {
				if err := s.ClearActiveMarker(dirKey); err != nil {
					s.logger.Warn("statestore: gc failed to clear marker", "dirKey", dirKey, "err", err)
				}
			}
		}
		removed++
	}
	return removed, nil
}

// DirectoryKey is a thin re-export so callers need only import statestore
// when keying markers and states by directory.
func DirectoryKey(path turbopath.AbsolutePath) (string, error) {
	return fingerprint.DirectoryKey(path)
}

// InstanceHash computes SHA-256(dirKey ∥ configHash) truncated to 16 hex
// chars, matching the documented instance_hash derivation.
func InstanceHash(dirKey, configHash string) (string, error) {
	sum := sha256.Sum256([]byte(dirKey + configHash))
	return fingerprint.TruncateHex(hex.EncodeToString(sum[:]), 16), nil
}
