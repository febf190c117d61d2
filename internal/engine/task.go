package engine

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/cuenv/cuenv/internal/cache"
	"github.com/cuenv/cuenv/internal/env"
	"github.com/cuenv/cuenv/internal/globby"
	"github.com/cuenv/cuenv/internal/inputs"
	"github.com/cuenv/cuenv/internal/logstreamer"
	"github.com/cuenv/cuenv/internal/process"
)

// runTask resolves a task's inputs, checks the cache, and on a miss spawns
// the task in a hermetic workdir. It never returns a process spawn error
// as a panic; everything funnels into Result.Err.
func (r *Runner) runTask(ctx context.Context, t *Task) Result {
	start := time.Now()
	res := Result{Name: t.Name}

	resolved, err := inputs.Resolve(r.cfg.ProjectRoot, t.InputGlobs)
	if err != nil {
		res.Err = err
		res.Duration = time.Since(start)
		return res
	}

	envelope := r.buildEnvelope(t, resolved)
	key, envelopeJSON, err := cache.ComputeCacheKey(envelope)
	if err != nil {
		res.Err = err
		res.Duration = time.Since(start)
		return res
	}

	if r.cache.Lookup(key) {
		if _, err := r.cache.MaterializeOutputs(key, r.cfg.ProjectRoot); err != nil {
			res.Err = err
			res.Duration = time.Since(start)
			return res
		}
		res.CacheHit = true
		res.ExitCode = 0
		res.Duration = time.Since(start)
		r.logger.Debug("engine: cache hit", "task", t.Name, "key", key)
		return res
	}

	workdir, err := inputs.SeedWorkdir(r.cfg.ProjectRoot, inputs.WorkdirPath(t.Name, key), resolved)
	if err != nil {
		res.Err = err
		res.Duration = time.Since(start)
		return res
	}

	cmd := r.buildCommand(ctx, t, workdir)

	var stdoutBuf, stderrBuf bytes.Buffer
	if t.Inherit {
		prefix := r.colors.PrefixWithColor(t.Name, t.Name)
		cmd.Stdout = logstreamer.NewPrefixWriter(os.Stdout, prefix)
		cmd.Stderr = logstreamer.NewPrefixWriter(os.Stderr, prefix)
	} else {
		cmd.Stdout = &stdoutBuf
		cmd.Stderr = &stderrBuf
	}

	r.sema.Acquire()
	runErr := r.manager.ExecWithTimeout(cmd, t.Timeout)
	r.sema.Release()
	exitCode := 0
	if runErr != nil {
		if exit, ok := runErr.(*process.ChildExit); ok {
			exitCode = exit.ExitCode
		} else {
			res.Err = runErr
			res.Duration = time.Since(start)
			return res
		}
	}
	res.ExitCode = exitCode

	if writes, err := inputs.DetectUndeclaredWrites(workdir, resolved, t.OutputGlobs); err == nil && len(writes) > 0 {
		for _, w := range writes {
			r.logger.Warn("engine: undeclared write", "task", t.Name, "path", w.RelPath, "reason", w.Reason)
		}
	}

	if exitCode != 0 {
		res.Err = runErr
		res.Duration = time.Since(start)
		return res
	}

	if err := r.persistResult(t, key, envelope, envelopeJSON, workdir, stdoutBuf.Bytes(), stderrBuf.Bytes(), start); err != nil {
		res.Err = err
	}
	res.Duration = time.Since(start)
	return res
}

func (r *Runner) buildEnvelope(t *Task, resolved []inputs.ResolvedInput) cache.Envelope {
	inputHashes := make(map[string]string, len(resolved))
	for _, in := range resolved {
		inputHashes[in.RelPath] = in.Sha256
	}

	merged := env.EnvironmentVariableMap{}
	merged.Union(r.cfg.BaseEnv)
	merged.Union(env.EnvironmentVariableMap(t.Env))

	shell := ""
	if t.Shell != nil {
		shell = t.Shell.Command + " " + t.Shell.Flag
	}

	return cache.Envelope{
		Inputs:       inputHashes,
		Command:      t.Command,
		Args:         t.Args,
		Shell:        shell,
		Env:          map[string]string(merged),
		CuenvVersion: r.cfg.CuenvVersion,
		Platform:     r.cfg.Platform,
	}
}

func (r *Runner) buildCommand(ctx context.Context, t *Task, workdir string) *exec.Cmd {
	merged := env.EnvironmentVariableMap{}
	merged.Union(r.cfg.BaseEnv)
	merged.Union(env.EnvironmentVariableMap(t.Env))

	var cmd *exec.Cmd
	if t.Shell != nil {
		joined := t.Command
		for _, a := range t.Args {
			joined += " " + a
		}
		cmd = exec.CommandContext(ctx, t.Shell.Command, t.Shell.Flag, joined)
	} else {
		cmd = exec.CommandContext(ctx, t.Command, t.Args...)
	}
	cmd.Dir = workdir
	cmd.Env = merged.ToEnviron()
	return cmd
}

// persistResult stages declared outputs, writes them plus logs and a
// workspace snapshot into the cache, and materializes the staged outputs
// back into the project root so downstream tasks see them.
func (r *Runner) persistResult(t *Task, key string, envelope cache.Envelope, envelopeJSON []byte, workdir string, stdout, stderr []byte, start time.Time) error {
	stagedOutputs := ""
	if len(t.OutputGlobs) > 0 {
		staged, err := stageOutputs(workdir, t.OutputGlobs)
		if err != nil {
			return err
		}
		stagedOutputs = staged
		defer os.RemoveAll(staged)
	}

	meta := cache.Metadata{
		TaskName:     t.Name,
		Command:      t.Command,
		Args:         t.Args,
		InputsCount:  len(envelope.Inputs),
		CreatedAt:    start,
		CuenvVersion: r.cfg.CuenvVersion,
		Platform:     r.cfg.Platform,
		Duration:     time.Since(start).Milliseconds(),
		ExitCode:     0,
		Key:          key,
		Envelope:     envelopeJSON,
	}

	if err := r.cache.SaveResult(key, meta, stagedOutputs, workdir, stdout, stderr); err != nil {
		return err
	}

	if stagedOutputs != "" {
		if _, err := r.cache.MaterializeOutputs(key, r.cfg.ProjectRoot); err != nil {
			return err
		}
	}

	return nil
}

// stageOutputs copies every file matching outputGlobs within workdir into a
// fresh temp directory, preserving relative paths, so cache.Store.SaveResult
// (which copies an entire outputsRoot tree) only ever sees declared outputs.
func stageOutputs(workdir string, outputGlobs []string) (string, error) {
	staging, err := os.MkdirTemp("", "cuenv-outputs-*")
	if err != nil {
		return "", err
	}
	for _, match := range globby.GlobFiles(workdir, outputGlobs, nil) {
		rel, err := filepath.Rel(workdir, match)
		if err != nil {
			continue
		}
		dst := filepath.Join(staging, rel)
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return "", err
		}
		data, err := os.ReadFile(match)
		if err != nil {
			return "", err
		}
		info, err := os.Stat(match)
		if err != nil {
			return "", err
		}
		if err := os.WriteFile(dst, data, info.Mode().Perm()); err != nil {
			return "", err
		}
	}
	return staging, nil
}
