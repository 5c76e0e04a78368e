// Package registry holds the live, categorized collection of test
// declarations.
package registry

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/testkube/suiterunner/internal/suite"
)

type Registry struct {
	tests map[suite.Category][]suite.TestCase
	mu    sync.RWMutex
	now   func() time.Time
}

func New() *Registry {
	return &Registry{
		tests: make(map[suite.Category][]suite.TestCase),
		now:   time.Now,
	}
}

func newID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate test id: %w", err)
	}
	return id.String(), nil
}

func (r *Registry) build(category suite.Category, payload suite.Payload) (suite.TestCase, error) {
	if err := payload.Validate(category); err != nil {
		return suite.TestCase{}, err
	}
	id, err := newID()
	if err != nil {
		return suite.TestCase{}, err
	}
	return suite.TestCase{
		ID:        id,
		Category:  category,
		Status:    suite.StatusPending,
		CreatedAt: r.now().UTC(),
		Payload:   payload.Clone(),
	}, nil
}

// Add validates payload and appends a new pending test to its category.
func (r *Registry) Add(category suite.Category, payload suite.Payload) (suite.TestCase, error) {
	tc, err := r.build(category, payload)
	if err != nil {
		return suite.TestCase{}, err
	}

	r.mu.Lock()
	r.tests[category] = append(r.tests[category], tc)
	r.mu.Unlock()

	return tc.Clone(), nil
}

// AddAll adds every declaration or none of them.
func (r *Registry) AddAll(decls []suite.Declaration) ([]suite.TestCase, error) {
	built := make([]suite.TestCase, 0, len(decls))
	for i, d := range decls {
		tc, err := r.build(d.Category, d.Payload)
		if err != nil {
			return nil, fmt.Errorf("declaration %d: %w", i, err)
		}
		built = append(built, tc)
	}

	r.mu.Lock()
	for _, tc := range built {
		r.tests[tc.Category] = append(r.tests[tc.Category], tc)
	}
	r.mu.Unlock()

	out := make([]suite.TestCase, len(built))
	for i, tc := range built {
		out[i] = tc.Clone()
	}
	return out, nil
}

// Remove deletes the test with the given id. Unknown ids are ignored.
func (r *Registry) Remove(category suite.Category, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tests := r.tests[category]
	i := slices.IndexFunc(tests, func(tc suite.TestCase) bool { return tc.ID == id })
	if i < 0 {
		return
	}
	r.tests[category] = slices.Delete(tests, i, i+1)
}

func (r *Registry) Get(category suite.Category, id string) (suite.TestCase, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, tc := range r.tests[category] {
		if tc.ID == id {
			return tc.Clone(), true
		}
	}
	return suite.TestCase{}, false
}

// List returns copies of every test grouped by category, each group in
// insertion order.
func (r *Registry) List() []suite.TestCase {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return suite.Snapshot(r.tests).Tests()
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return suite.Snapshot(r.tests).Count()
}

func (r *Registry) Snapshot() suite.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return suite.Snapshot(r.tests).Clone()
}

// Replace swaps the whole content for snap. Every test is validated first;
// on error the registry is left untouched. Ids are kept, statuses reset.
func (r *Registry) Replace(snap suite.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}

	next := make(map[suite.Category][]suite.TestCase, len(snap))
	for c, tests := range snap {
		if len(tests) == 0 {
			continue
		}
		copied := make([]suite.TestCase, len(tests))
		for i, tc := range tests {
			tc = tc.Clone()
			tc.Category = c
			tc.Status = suite.StatusPending
			if tc.ID == "" {
				id, err := newID()
				if err != nil {
					return err
				}
				tc.ID = id
			}
			if tc.CreatedAt.IsZero() {
				tc.CreatedAt = r.now().UTC()
			}
			copied[i] = tc
		}
		next[c] = copied
	}

	r.mu.Lock()
	r.tests = next
	r.mu.Unlock()
	return nil
}

// SetStatus records a lifecycle transition on a live test. Unknown ids are
// ignored.
func (r *Registry) SetStatus(category suite.Category, id string, status suite.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.tests[category] {
		if r.tests[category][i].ID == id {
			r.tests[category][i].Status = status
			return
		}
	}
}
