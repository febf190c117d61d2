// Package hooks runs a directory's declared shell hooks in order, exactly
// once per (directory, hook-set) fingerprint, publishing progress through
// the state store so the shell fast path and `env status` can observe
// without an in-process subscription channel. The supervisor loop mirrors
// the background-task-plus-pidfile shape the teacher uses for its daemon,
// adapted here to one-shot hook runs instead of a long-lived server.
package hooks

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/cuenv/cuenv/internal/env"
	"github.com/cuenv/cuenv/internal/process"
	"github.com/cuenv/cuenv/internal/statestore"
)

// DefaultTimeout is the reference default per-hook timeout.
const DefaultTimeout = 10 * time.Minute

// Hook is one declared shell hook.
type Hook struct {
	Command    string
	Args       []string
	Dir        string // absolute after resolution
	Order      int
	Propagate  bool
	Source     bool
	InputGlobs []string
	Name       string
	Timeout    time.Duration
}

// SortHooks orders hooks by (order ascending, name ascending).
func SortHooks(hooks []Hook) {
	sort.SliceStable(hooks, func(i, j int) bool {
		if hooks[i].Order != hooks[j].Order {
			return hooks[i].Order < hooks[j].Order
		}
		return hooks[i].Name < hooks[j].Name
	})
}

// GatherHooks combines the current directory's hooks (always included) with
// ancestor hooks that have Propagate set, walking root-to-leaf so the final
// order still respects (order, name) within the combined set.
func GatherHooks(ancestorHooks [][]Hook, currentDirHooks []Hook) []Hook {
	var all []Hook
	for _, ancestor := range ancestorHooks {
		for _, h := range ancestor {
			if h.Propagate {
				all = append(all, h)
			}
		}
	}
	all = append(all, currentDirHooks...)
	SortHooks(all)
	return all
}

// Supervisor runs one directory's hook set under a single instance hash.
type Supervisor struct {
	store   *statestore.Store
	manager *process.Manager
	logger  hclog.Logger
	runID   string
}

// RunID is a process-unique identifier for this supervisor instance, used
// only for diagnostics when the same instance hash is observed running
// concurrently in two processes (which should not happen, but is logged
// with RunID attached rather than silently ignored).
func (sv *Supervisor) RunID() string {
	return sv.runID
}

// NewSupervisor constructs a Supervisor backed by store for state/marker
// persistence, using manager to spawn and bound hook processes.
func NewSupervisor(store *statestore.Store, manager *process.Manager, logger hclog.Logger) *Supervisor {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Supervisor{store: store, manager: manager, logger: logger, runID: uuid.NewString()}
}

// Run executes hooks in order for (dirKey, instanceHash, configHash),
// persisting state after every step. It implements the documented
// at-most-one-supervisor-per-instance-hash check: if an existing Running
// state is already present for instanceHash, Run returns immediately and
// the caller is expected to poll instead of spawning a second supervisor.
func (sv *Supervisor) Run(ctx context.Context, dir, dirKey, instanceHash, configHash string, hooks []Hook, baseEnv env.EnvironmentVariableMap) error {
	existing, err := sv.store.LoadState(instanceHash)
	if err != nil {
		return err
	}
	if existing != nil && existing.Status == statestore.StatusRunning {
		sv.logger.Debug("hooks: supervisor already running for instance, caller should poll", "instanceHash", instanceHash, "observingRunID", sv.runID)
		return nil
	}

	if err := sv.store.SetActiveMarker(dirKey, instanceHash); err != nil {
		sv.logger.Warn("hooks: failed to set active marker", "err", err)
	}

	state := &statestore.State{
		Dir:             dir,
		InstanceHash:    instanceHash,
		ConfigHash:      configHash,
		TotalHooks:      len(hooks),
		CompletedHooks:  0,
		EnvironmentVars: map[string]string{},
		PreviousEnv:     map[string]string(baseEnv),
		Status:          statestore.StatusRunning,
		StartedAt:       time.Now(),
	}
	if err := sv.store.SaveState(state); err != nil {
		return err
	}

	for _, hook := range hooks {
		select {
		case <-ctx.Done():
			state.Status = statestore.StatusCancelled
			now := time.Now()
			state.FinishedAt = &now
			_ = sv.store.SaveState(state)
			_ = sv.store.ClearActiveMarker(dirKey)
			return ctx.Err()
		default:
		}

		result, err := sv.runOne(ctx, hook, state.EnvironmentVars, baseEnv)
		state.HookResults = append(state.HookResults, result)
		if err != nil {
			state.Status = statestore.StatusFailed
			state.Error = err.Error()
			now := time.Now()
			state.FinishedAt = &now
			_ = sv.store.SaveState(state)
			_ = sv.store.ClearActiveMarker(dirKey)
			return err
		}
		state.CompletedHooks++
		_ = sv.store.SaveState(state)
	}

	state.Status = statestore.StatusCompleted
	now := time.Now()
	state.FinishedAt = &now
	if err := sv.store.SaveState(state); err != nil {
		return err
	}
	return sv.store.SetActiveMarker(dirKey, instanceHash)
}

func (sv *Supervisor) runOne(ctx context.Context, hook Hook, accumulated map[string]string, baseEnv env.EnvironmentVariableMap) (statestore.HookResult, error) {
	timeout := hook.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	merged := env.EnvironmentVariableMap{}
	merged.Union(baseEnv)
	merged.Union(env.EnvironmentVariableMap(accumulated))

	cmd := exec.CommandContext(ctx, hook.Command, hook.Args...)
	cmd.Dir = hook.Dir
	cmd.Env = merged.ToEnviron()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := sv.manager.ExecWithTimeout(cmd, timeout)
	duration := time.Since(start)

	result := statestore.HookResult{Name: hook.Name, Duration: duration}

	if err != nil {
		tail := tailLines(stderr.String(), 20)
		return result, errors.Wrapf(errors.New(tail), "hook %s failed", hook.Name)
	}

	if hook.Source {
		parsed := parseExports(stdout.String())
		for k, v := range parsed {
			accumulated[k] = v
		}
	}

	return result, nil
}

func tailLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

var exportLineRe = regexp.MustCompile(`^export\s+([A-Za-z_][A-Za-z0-9_]*)="(.*)"$`)
var bareAssignRe = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)=(.*)$`)

// parseExports scans stdout line by line for `export NAME="VALUE"` (also
// accepting bare `NAME=VALUE`), unescaping \\, \", \$, and \` in the value.
// Non-matching lines are ignored.
func parseExports(stdout string) map[string]string {
	out := map[string]string{}
	scanner := bufio.NewScanner(strings.NewReader(stdout))
	for scanner.Scan() {
		line := scanner.Text()
		if m := exportLineRe.FindStringSubmatch(line); m != nil {
			out[m[1]] = unescapeExportValue(m[2])
			continue
		}
		if m := bareAssignRe.FindStringSubmatch(line); m != nil {
			out[m[1]] = unescapeExportValue(m[2])
		}
	}
	return out
}

var escapeReplacer = strings.NewReplacer(
	`\\`, `\`,
	`\"`, `"`,
	`\$`, `$`,
	"\\`", "`",
)

func unescapeExportValue(v string) string {
	return escapeReplacer.Replace(v)
}

// Label describes a hook in logs, e.g. for `env load` progress reporting.
func (h Hook) Label() string {
	return fmt.Sprintf("%s %s", h.Command, strings.Join(h.Args, " "))
}
