package evaluator

import (
	"context"
	"fmt"
)

// StaticEvaluator is a test double returning pre-baked ModuleEvaluation
// values keyed by module root, so callers can exercise CachingEvaluator
// and downstream consumers without a real evaluator binary.
type StaticEvaluator struct {
	Version string
	Results map[string]*ModuleEvaluation
	// Err, if set, is returned by every EvaluateModule call regardless of
	// root, for exercising failure paths.
	Err error

	Calls []string // module roots passed to EvaluateModule, in call order
}

func (s *StaticEvaluator) EvaluateModule(_ context.Context, moduleRoot, _ string, _ EvaluateOptions) (*ModuleEvaluation, error) {
	s.Calls = append(s.Calls, moduleRoot)
	if s.Err != nil {
		return nil, s.Err
	}
	eval, ok := s.Results[moduleRoot]
	if !ok {
		return nil, fmt.Errorf("evaluator: static fixture has no result for %q", moduleRoot)
	}
	return eval, nil
}

func (s *StaticEvaluator) BridgeVersion(_ context.Context) (string, error) {
	return s.Version, nil
}
