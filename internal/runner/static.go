package runner

import (
	"context"
	"sync"

	"github.com/testkube/suiterunner/internal/executor"
	"github.com/testkube/suiterunner/internal/suite"
)

// Static is a deterministic capability. Every test passes with a fixed
// duration unless a verdict or failure has been configured for its name.
type Static struct {
	duration int64
	verdicts map[string]executor.Verdict
	failures map[string]string
	calls    []string
	mu       sync.Mutex
}

func NewStatic(durationMillis int64) *Static {
	return &Static{
		duration: durationMillis,
		verdicts: make(map[string]executor.Verdict),
		failures: make(map[string]string),
	}
}

// SetVerdict makes the test named name report v.
func (s *Static) SetVerdict(name string, v executor.Verdict) *Static {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verdicts[name] = v
	return s
}

// FailWith makes the test named name raise an execution error with message.
func (s *Static) FailWith(name, message string) *Static {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[name] = message
	return s
}

func (s *Static) Execute(ctx context.Context, tc suite.TestCase) (executor.Verdict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, tc.ID)
	if msg, ok := s.failures[tc.Name]; ok {
		return executor.Verdict{}, suite.NewExecutionError(msg)
	}
	if v, ok := s.verdicts[tc.Name]; ok {
		return v, nil
	}
	return executor.Verdict{Passed: true, DurationMillis: s.duration}, nil
}

// Calls returns the ids of executed tests in call order.
func (s *Static) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}
