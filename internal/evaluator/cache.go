package evaluator

import (
	"context"
	"path/filepath"
	"sync"
)

// CachingEvaluator memoizes EvaluateModule results by canonical module
// root. The table is process-local and guarded by a single mutex; a
// second caller asking for an in-flight root simply waits its turn rather
// than re-evaluating, since the lock is held for the duration of a miss.
type CachingEvaluator struct {
	inner Evaluator

	mu    sync.Mutex
	cache map[string]*ModuleEvaluation
}

// NewCaching wraps inner with a process-wide module-evaluation cache.
func NewCaching(inner Evaluator) *CachingEvaluator {
	return &CachingEvaluator{
		inner: inner,
		cache: map[string]*ModuleEvaluation{},
	}
}

// EvaluateModule returns the cached evaluation for moduleRoot if present;
// otherwise it evaluates, caches, and returns the result. The package and
// options are assumed stable per root for the process lifetime, matching
// the spec's "process-local, single mutex" cache model; a caller needing a
// different package or option set for the same root should use a fresh
// CachingEvaluator.
func (c *CachingEvaluator) EvaluateModule(ctx context.Context, moduleRoot, pkg string, opts EvaluateOptions) (*ModuleEvaluation, error) {
	key := canonicalRoot(moduleRoot)

	c.mu.Lock()
	defer c.mu.Unlock()

	if eval, ok := c.cache[key]; ok {
		return eval, nil
	}

	eval, err := c.inner.EvaluateModule(ctx, moduleRoot, pkg, opts)
	if err != nil {
		return nil, err
	}
	c.cache[key] = eval
	return eval, nil
}

// BridgeVersion delegates to the wrapped evaluator; the bridge version
// itself is not cached, since diagnostics should always reflect the live
// collaborator.
func (c *CachingEvaluator) BridgeVersion(ctx context.Context) (string, error) {
	return c.inner.BridgeVersion(ctx)
}

// Invalidate drops a cached evaluation so the next call re-evaluates it.
func (c *CachingEvaluator) Invalidate(moduleRoot string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cache, canonicalRoot(moduleRoot))
}

func canonicalRoot(moduleRoot string) string {
	return filepath.Clean(moduleRoot)
}
