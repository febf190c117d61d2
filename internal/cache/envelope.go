// Package cache is the content-addressed task cache: envelope hashing, the
// on-disk cached-result layout, and the task-latest index. The snapshot
// format (tar wrapped in zstd) follows the same writer chain the teacher's
// cacheitem package wires up — tar.Writer -> zstd.Writer -> buffered file.
package cache

import (
	"github.com/cuenv/cuenv/internal/fingerprint"
)

// Envelope is the canonical struct hashed to produce a cache key. Field
// names and json tags are part of the contract: two envelopes with
// differently-ordered maps but identical content must hash identically.
type Envelope struct {
	Inputs                  map[string]string `json:"inputs"`
	Command                 string            `json:"command"`
	Args                    []string          `json:"args"`
	Shell                   string            `json:"shell,omitempty"`
	Env                     map[string]string `json:"env"`
	CuenvVersion            string            `json:"cuenvVersion"`
	Platform                string            `json:"platform"`
	WorkspaceLockfileHashes map[string]string `json:"workspaceLockfileHashes,omitempty"`
	WorkspacePackageHashes  map[string]string `json:"workspacePackageHashes,omitempty"`
}

// ComputeCacheKey returns the hex digest and the canonical JSON bytes used
// to derive it. Reordering any map within env does not change the digest;
// changing any field does. The returned JSON is what SaveResult persists
// into metadata.json's envelope field, so the inputs that produced a given
// cache key can be recovered from the cached result alone.
func ComputeCacheKey(env Envelope) (hex string, canonicalJSON []byte, err error) {
	return fingerprint.Sha256CanonicalJSONWithBytes(env)
}
