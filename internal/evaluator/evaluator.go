// Package evaluator adapts the external config-evaluator collaborator (a
// pure function that turns an env.cue module into JSON instances) into a
// cached, typed Go interface. The cache-around-a-collaborator shape —
// lock, check a map keyed by a canonical identity, fill on miss, unlock —
// is the same one internal/colorcache uses to memoize a color assignment
// per cache key; here the key is a module root instead of a task name.
package evaluator

import (
	"context"
	"encoding/json"
	"fmt"
)

// EvaluateOptions controls what evaluate_module computes.
type EvaluateOptions struct {
	Recursive bool
	TargetDir string
	WithMeta  bool
}

// MetaEntry locates the source of one evaluated field, for diagnostics.
type MetaEntry struct {
	File string
	Line int
}

// Evaluator is the external collaborator's contract: evaluate one module
// root/package pair into a set of JSON instances, and report its own
// version for diagnostics. Implementations must be safe for concurrent use.
type Evaluator interface {
	EvaluateModule(ctx context.Context, moduleRoot, pkg string, opts EvaluateOptions) (*ModuleEvaluation, error)
	BridgeVersion(ctx context.Context) (string, error)
}

// ModuleEvaluation is one evaluated module: every instance keyed by its
// path relative to the module root, the subset of those paths that are
// projects, and optional field-provenance metadata.
type ModuleEvaluation struct {
	Root      string
	Instances map[string]json.RawMessage
	Projects  []string
	Meta      map[string]MetaEntry
}

// Get returns the raw instance at relPath, if evaluated.
func (m *ModuleEvaluation) Get(relPath string) (json.RawMessage, bool) {
	raw, ok := m.Instances[relPath]
	return raw, ok
}

// Deserialize unmarshals the instance at relPath into a fresh T.
func Deserialize[T any](m *ModuleEvaluation, relPath string) (T, error) {
	var out T
	raw, ok := m.Get(relPath)
	if !ok {
		return out, fmt.Errorf("evaluator: no instance at %q in module %q", relPath, m.Root)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("evaluator: deserializing %q: %w", relPath, err)
	}
	return out, nil
}
