// Package executor runs a suite of tests one at a time against a pluggable
// execution capability and summarizes the run.
package executor

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"iter"
	"log"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/testkube/suiterunner/internal/suite"
)

// DefaultFailureMessage is recorded when a capability reports a failed
// verdict without saying why.
const DefaultFailureMessage = "Test assertion failed"

// DefaultErrorMessage is recorded when a capability fails with an error
// that carries no message.
const DefaultErrorMessage = "Execution error"

// Verdict is what a capability reports for a single test.
type Verdict struct {
	Passed         bool   `json:"passed"`
	DurationMillis int64  `json:"durationMillis"`
	Message        string `json:"message,omitempty"`
}

// Capability performs one test. Errors are converted into failed results;
// they never abort a run.
type Capability interface {
	Execute(ctx context.Context, tc suite.TestCase) (Verdict, error)
}

type CapabilityFunc func(ctx context.Context, tc suite.TestCase) (Verdict, error)

func (f CapabilityFunc) Execute(ctx context.Context, tc suite.TestCase) (Verdict, error) {
	return f(ctx, tc)
}

// Recorder receives the summary of every completed run.
type Recorder interface {
	Append(summary suite.RunSummary)
}

// StatusSink is told about every state transition of a test during a run.
type StatusSink interface {
	SetStatus(category suite.Category, id string, status suite.Status)
}

type Option func(*Executor)

func WithRecorder(r Recorder) Option {
	return func(e *Executor) { e.recorder = r }
}

func WithStatusSink(s StatusSink) Option {
	return func(e *Executor) { e.statuses = s }
}

func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

type Executor struct {
	capability Capability
	recorder   Recorder
	statuses   StatusSink
	now        func() time.Time
	running    atomic.Bool
}

func New(capability Capability, opts ...Option) *Executor {
	e := &Executor{
		capability: capability,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Running reports whether a run is currently in progress.
func (e *Executor) Running() bool {
	return e.running.Load()
}

// RunAll returns a lazy sequence of results. Nothing is executed until the
// sequence is ranged over. If another run is active the sequence yields
// suite.ErrRunInProgress once. Breaking out of the loop early stops the
// yielding but not the run: the remaining tests still execute and the run
// is still summarized before the loop returns.
func (e *Executor) RunAll(ctx context.Context, tests []suite.TestCase) iter.Seq2[suite.TestResult, error] {
	return func(yield func(suite.TestResult, error) bool) {
		_, err := e.run(ctx, tests, func(res suite.TestResult) bool {
			return yield(res, nil)
		})
		if err != nil {
			yield(suite.TestResult{}, err)
		}
	}
}

// Run executes tests and blocks until the run completes. onResult, when
// non-nil, is called with each result as soon as it is produced.
func (e *Executor) Run(ctx context.Context, tests []suite.TestCase, onResult func(suite.TestResult)) (suite.RunSummary, error) {
	return e.run(ctx, tests, func(res suite.TestResult) bool {
		if onResult != nil {
			onResult(res)
		}
		return true
	})
}

func (e *Executor) run(ctx context.Context, tests []suite.TestCase, emit func(suite.TestResult) bool) (suite.RunSummary, error) {
	if !e.running.CompareAndSwap(false, true) {
		return suite.RunSummary{}, suite.ErrRunInProgress
	}
	defer e.running.Store(false)

	id, err := uuid.NewV7()
	if err != nil {
		return suite.RunSummary{}, fmt.Errorf("failed to generate run id: %w", err)
	}

	ordered := runOrder(tests)
	summary := suite.RunSummary{RunID: id.String(), Total: len(ordered)}
	log.Printf("Executor: run %s started with %d tests", summary.RunID, summary.Total)

	for _, tc := range ordered {
		e.setStatus(tc, suite.StatusPending)
	}

	consuming := true
	for _, tc := range ordered {
		res := e.execute(ctx, tc)
		if res.Status == suite.StatusPassed {
			summary.Passed++
		} else {
			summary.Failed++
		}
		if consuming {
			consuming = emit(res)
		}
	}

	summary.Timestamp = e.now().UTC()
	if e.recorder != nil {
		e.recorder.Append(summary)
	}
	log.Printf("Executor: run %s finished: %d passed, %d failed", summary.RunID, summary.Passed, summary.Failed)

	return summary, nil
}

// runOrder orders tests by category and, within a category, by insertion
// into the registry: creation time first, then the time-ordered id.
func runOrder(tests []suite.TestCase) []suite.TestCase {
	ordered := make([]suite.TestCase, len(tests))
	for i, tc := range tests {
		ordered[i] = tc.Clone()
	}
	slices.SortStableFunc(ordered, func(a, b suite.TestCase) int {
		return cmp.Or(
			cmp.Compare(a.Category.Index(), b.Category.Index()),
			a.CreatedAt.Compare(b.CreatedAt),
			strings.Compare(a.ID, b.ID),
		)
	})
	return ordered
}

func (e *Executor) execute(ctx context.Context, tc suite.TestCase) suite.TestResult {
	e.setStatus(tc, suite.StatusRunning)
	tc.Status = suite.StatusRunning
	start := e.now()

	verdict, err := e.invoke(ctx, tc)

	res := suite.TestResult{
		TestID:    tc.ID,
		Category:  tc.Category,
		Name:      tc.Name,
		Timestamp: e.now().UTC(),
	}
	switch {
	case err != nil:
		res.Status = suite.StatusFailed
		res.Error = failureMessage(err)
		res.DurationMillis = max(e.now().Sub(start).Milliseconds(), 0)
		log.Printf("Executor: test %s (%s) errored: %s", tc.Name, tc.ID, res.Error)
	case verdict.Passed:
		res.Status = suite.StatusPassed
		res.DurationMillis = max(verdict.DurationMillis, 0)
	default:
		res.Status = suite.StatusFailed
		res.Error = verdict.Message
		if res.Error == "" {
			res.Error = DefaultFailureMessage
		}
		res.DurationMillis = max(verdict.DurationMillis, 0)
	}

	e.setStatus(tc, res.Status)
	return res
}

func (e *Executor) invoke(ctx context.Context, tc suite.TestCase) (verdict Verdict, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = suite.NewExecutionError(fmt.Sprintf("panic: %v", r))
		}
	}()
	if e.capability == nil {
		return Verdict{}, suite.NewExecutionError("no execution capability configured")
	}
	return e.capability.Execute(ctx, tc)
}

// failureMessage never returns an empty string: a failed result always
// carries an error.
func failureMessage(err error) string {
	msg := err.Error()
	var execErr *suite.ExecutionError
	if errors.As(err, &execErr) {
		msg = execErr.Error()
	}
	if strings.TrimSpace(msg) == "" {
		return DefaultErrorMessage
	}
	return msg
}

func (e *Executor) setStatus(tc suite.TestCase, status suite.Status) {
	if e.statuses != nil {
		e.statuses.SetStatus(tc.Category, tc.ID, status)
	}
}
