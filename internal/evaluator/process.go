package evaluator

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
)

// ProcessEvaluator implements Evaluator by shelling out to an external
// bridge binary: the configuration-language evaluator itself is out of
// scope here and is treated as a pure function this process merely
// invokes and parses the JSON result of, the same arm's-length relationship
// internal/hooks has with the commands it runs.
type ProcessEvaluator struct {
	// BinaryPath is the bridge executable, e.g. resolved from
	// CUENV_BRIDGE_PATH or a PATH lookup for "cuenv-bridge".
	BinaryPath string
}

// NewProcess returns a ProcessEvaluator invoking binaryPath.
func NewProcess(binaryPath string) *ProcessEvaluator {
	return &ProcessEvaluator{BinaryPath: binaryPath}
}

type bridgeEvaluation struct {
	Root      string                     `json:"root"`
	Instances map[string]json.RawMessage `json:"instances"`
	Projects  []string                   `json:"projects"`
	Meta      map[string]MetaEntry       `json:"meta,omitempty"`
}

// EvaluateModule runs `<bridge> eval --root ... --package ...` and parses
// its stdout as a bridgeEvaluation.
func (p *ProcessEvaluator) EvaluateModule(ctx context.Context, moduleRoot, pkg string, opts EvaluateOptions) (*ModuleEvaluation, error) {
	args := []string{"eval", "--root", moduleRoot}
	if pkg != "" {
		args = append(args, "--package", pkg)
	}
	if opts.Recursive {
		args = append(args, "--recursive")
	}
	if opts.TargetDir != "" {
		args = append(args, "--target-dir", opts.TargetDir)
	}
	if opts.WithMeta {
		args = append(args, "--with-meta")
	}

	out, err := p.run(ctx, args...)
	if err != nil {
		return nil, errors.Wrap(err, "evaluator: eval module")
	}

	var parsed bridgeEvaluation
	if err := json.Unmarshal(out, &parsed); err != nil {
		return nil, errors.Wrap(err, "evaluator: parse eval output")
	}

	return &ModuleEvaluation{
		Root:      parsed.Root,
		Instances: parsed.Instances,
		Projects:  parsed.Projects,
		Meta:      parsed.Meta,
	}, nil
}

// BridgeVersion runs `<bridge> version` and returns its trimmed stdout.
func (p *ProcessEvaluator) BridgeVersion(ctx context.Context) (string, error) {
	out, err := p.run(ctx, "version")
	if err != nil {
		return "", errors.Wrap(err, "evaluator: bridge version")
	}
	return strings.TrimSpace(string(out)), nil
}

func (p *ProcessEvaluator) run(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, p.BinaryPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, errors.Wrapf(err, "%s: %s", p.BinaryPath, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}
