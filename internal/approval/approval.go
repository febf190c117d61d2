// Package approval tracks which (directory, hook-set) pairs a user has
// reviewed and approved for execution. Unlike the state store, this file is
// multi-writer — concurrent `cuenv allow` invocations and supervisors race
// to append records — so every write takes an exclusive advisory lock via
// nightlyone/lockfile before the atomic rename, mirroring the pidfile
// locking idiom cuenv's state store borrowed from the same corner of the
// teacher.
package approval

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/nightlyone/lockfile"
	"github.com/pkg/errors"

	"github.com/cuenv/cuenv/internal/ci"
	"github.com/cuenv/cuenv/internal/turbopath"
)

// Record is a durable promise that a user reviewed a specific hook set for
// a specific directory.
type Record struct {
	DirPath   string     `json:"dirPath"`
	HookHash  string     `json:"hookHash"`
	ApprovedAt time.Time `json:"approvedAt"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	Note      string     `json:"note,omitempty"`
}

func (r *Record) expired(now time.Time) bool {
	return r.ExpiresAt != nil && r.ExpiresAt.Before(now)
}

// Status is the outcome of an approval check.
type Status int

const (
	// Approved means the hook set may run without prompting.
	Approved Status = iota
	// RequiresApproval means a record exists but for a different hook hash.
	RequiresApproval
	// NotApproved means no record exists at all.
	NotApproved
)

// CheckResult carries the status plus the hash that would need approving.
type CheckResult struct {
	Status      Status
	CurrentHash string
}

// Store is a single JSON file mapping a 16-hex directory key to its Record.
type Store struct {
	path turbopath.AbsolutePath
}

// New returns a Store backed by the approval file at path (created lazily
// on first write).
func New(path turbopath.AbsolutePath) *Store {
	return &Store{path: path}
}

func (s *Store) lockPath() string {
	return s.path.ToString() + ".lock"
}

// load reads the approval map, tolerating a missing file (empty map) but
// treating a corrupt file as a parse error rather than silently discarding
// it — a later successful write still overwrites it.
func (s *Store) load() (map[string]Record, error) {
	if !s.path.FileExists() {
		return map[string]Record{}, nil
	}
	data, err := s.path.ReadFile()
	if err != nil {
		return nil, errors.Wrap(err, "approval: read store")
	}
	var records map[string]Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, errors.Wrap(err, "approval: parse store")
	}
	if records == nil {
		records = map[string]Record{}
	}
	return records, nil
}

func (s *Store) save(records map[string]Record) error {
	lock, err := lockfile.New(s.lockPath())
	if err != nil {
		return errors.Wrap(err, "approval: create lock")
	}
	if err := lock.TryLock(); err != nil {
		return errors.Wrap(err, "approval: acquire exclusive lock")
	}
	defer func() { _ = lock.Unlock() }()

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return errors.Wrap(err, "approval: marshal store")
	}
	if err := s.path.WriteFileAtomic(data, 0o644); err != nil {
		return errors.Wrap(err, "approval: write store")
	}
	return nil
}

var traversalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\.\./`),
	regexp.MustCompile(`%2e%2e`),
	regexp.MustCompile(`\.\.;/`),
}

// ValidatePath rejects null bytes and obvious directory-traversal patterns.
func ValidatePath(path string) error {
	if strings.ContainsRune(path, 0) {
		return errors.New("approval: path contains a null byte")
	}
	lower := strings.ToLower(path)
	for _, pattern := range traversalPatterns {
		if pattern.MatchString(lower) {
			return errors.Errorf("approval: path %q contains a traversal pattern", path)
		}
	}
	return nil
}

// Check performs the approval decision for dir against its current hook-set
// hash. A CI environment always returns Approved (CI is non-interactive and
// considered secured).
func (s *Store) Check(dirKey, currentHash string) (CheckResult, error) {
	if ci.IsCi() {
		return CheckResult{Status: Approved, CurrentHash: currentHash}, nil
	}
	records, err := s.load()
	if err != nil {
		return CheckResult{}, err
	}
	record, ok := records[dirKey]
	if !ok || record.expired(time.Now()) {
		return CheckResult{Status: NotApproved, CurrentHash: currentHash}, nil
	}
	if record.HookHash == currentHash {
		return CheckResult{Status: Approved, CurrentHash: currentHash}, nil
	}
	return CheckResult{Status: RequiresApproval, CurrentHash: currentHash}, nil
}

// Approve records dirKey as approved for hash, with an optional note.
func (s *Store) Approve(dirKey, dirPath, hash, note string) error {
	if err := ValidatePath(dirPath); err != nil {
		return err
	}
	records, err := s.load()
	if err != nil {
		return err
	}
	records[dirKey] = Record{
		DirPath:    dirPath,
		HookHash:   hash,
		ApprovedAt: time.Now(),
		Note:       note,
	}
	return s.save(records)
}

// Revoke removes dirKey's approval record, if any. Revoking an absent
// directory returns (false, nil), not an error.
func (s *Store) Revoke(dirKey string) (bool, error) {
	records, err := s.load()
	if err != nil {
		return false, err
	}
	if _, ok := records[dirKey]; !ok {
		return false, nil
	}
	delete(records, dirKey)
	return true, s.save(records)
}

// CleanupExpired drops every record whose ExpiresAt has passed.
func (s *Store) CleanupExpired() (removed int, err error) {
	records, err := s.load()
	if err != nil {
		return 0, err
	}
	now := time.Now()
	for key, record := range records {
		if record.expired(now) {
			delete(records, key)
			removed++
		}
	}
	if removed > 0 {
		if err := s.save(records); err != nil {
			return 0, err
		}
	}
	return removed, nil
}
