package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
	"github.com/pyr-sh/dag"

	"github.com/cuenv/cuenv/internal/cache"
	"github.com/cuenv/cuenv/internal/colorcache"
	"github.com/cuenv/cuenv/internal/process"
)

// rootNodeName is the synthetic vertex every dependency-free node is wired
// to, the same convention the teacher's scheduler/engine pair uses so a
// single dag.Walk can start from one connected root.
const rootNodeName = "___ROOT___"

// Runner executes a set of top-level Nodes respecting their DependsOn
// edges. A single failure aborts nodes not yet started; nodes already
// in-flight at the time of failure run to completion.
type Runner struct {
	cfg     RunnerConfig
	cache   *cache.Store
	manager *process.Manager
	logger  hclog.Logger
	colors  *colorcache.ColorCache

	mu      sync.Mutex
	results []Result
	errored int32
	sema    *semaphore
}

// NewRunner builds a Runner. manager and store are long-lived collaborators
// the caller owns; Runner does not close them.
func NewRunner(cfg RunnerConfig, store *cache.Store, manager *process.Manager, logger hclog.Logger) *Runner {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Runner{cfg: cfg, cache: store, manager: manager, logger: logger, colors: colorcache.New(), sema: newSemaphore(cfg.MaxParallel)}
}

// Execute builds a DAG from nodes' DependsOn edges and walks it in
// dependency order: dag.Walk dispatches a vertex as soon as its own
// dependencies are done, so a node does not wait for the other nodes of
// an earlier dependency level to finish. It returns every Task
// Result produced, in no particular order; callers that need pipeline
// order should sort by Name.
func (r *Runner) Execute(ctx context.Context, nodes []Node) ([]Result, error) {
	byName := map[string]Node{}
	for _, n := range nodes {
		byName[n.nodeName()] = n
	}

	graph := &dag.AcyclicGraph{}
	for _, n := range nodes {
		name := n.nodeName()
		graph.Add(name)
		deps := n.dependsOn()
		if len(deps) == 0 {
			graph.Add(rootNodeName)
			graph.Connect(dag.BasicEdge(name, rootNodeName))
			continue
		}
		for _, dep := range deps {
			if _, ok := byName[dep]; !ok {
				return nil, fmt.Errorf("engine: %s depends on unknown node %s", name, dep)
			}
			graph.Add(dep)
			graph.Connect(dag.BasicEdge(name, dep))
		}
	}

	walkErrs := graph.Walk(func(v dag.Vertex) error {
		name := dag.VertexName(v)
		if name == rootNodeName {
			return nil
		}

		// A prior failure means queued-but-not-started nodes short-circuit
		// instead of spawning; in-flight nodes are unaffected since they're
		// already past this check.
		if atomic.LoadInt32(&r.errored) != 0 {
			return nil
		}

		node, ok := byName[name]
		if !ok {
			return fmt.Errorf("engine: node %s not found", name)
		}

		if err := r.runNode(ctx, node); err != nil {
			atomic.StoreInt32(&r.errored, 1)
			return err
		}
		return nil
	})

	for _, err := range walkErrs {
		if err != nil {
			return r.snapshotResults(), err
		}
	}
	return r.snapshotResults(), nil
}

func (r *Runner) snapshotResults() []Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Result, len(r.results))
	copy(out, r.results)
	return out
}

func (r *Runner) record(res Result) {
	r.mu.Lock()
	r.results = append(r.results, res)
	r.mu.Unlock()
}

func (r *Runner) runNode(ctx context.Context, node Node) error {
	switch n := node.(type) {
	case *Task:
		res := r.runTask(ctx, n)
		r.record(res)
		if res.Err != nil {
			return errors.Wrapf(res.Err, "task %s", n.Name)
		}
		return nil
	case *Group:
		return r.runGroup(ctx, n)
	default:
		return fmt.Errorf("engine: unknown node type for %s", node.nodeName())
	}
}
