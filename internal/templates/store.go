// Package templates stores named, independent snapshots of a suite so it can
// be restored later.
package templates

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/testkube/suiterunner/internal/suite"
)

type Template struct {
	ID        string         `json:"id" yaml:"id"`
	Name      string         `json:"name" yaml:"name"`
	Tests     suite.Snapshot `json:"tests" yaml:"tests"`
	CreatedAt time.Time      `json:"createdAt" yaml:"createdAt"`
}

// TestCount is the number of tests captured by the template.
func (t Template) TestCount() int {
	return t.Tests.Count()
}

func (t Template) clone() Template {
	t.Tests = t.Tests.Clone()
	return t
}

type Store struct {
	templates []Template
	mu        sync.RWMutex
	now       func() time.Time
}

func New() *Store {
	return &Store{now: time.Now}
}

// Save stores a deep copy of snapshot under name.
func (s *Store) Save(name string, snapshot suite.Snapshot) (Template, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Template{}, fmt.Errorf("%w: template name is required", suite.ErrInvalidName)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return Template{}, fmt.Errorf("failed to generate template id: %w", err)
	}

	t := Template{
		ID:        id.String(),
		Name:      name,
		Tests:     snapshot.Clone(),
		CreatedAt: s.now().UTC(),
	}
	if t.Tests == nil {
		t.Tests = suite.Snapshot{}
	}

	s.mu.Lock()
	s.templates = append(s.templates, t)
	s.mu.Unlock()

	return t.clone(), nil
}

// List returns every template in save order.
func (s *Store) List() []Template {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Template, len(s.templates))
	for i, t := range s.templates {
		out[i] = t.clone()
	}
	return out
}

func (s *Store) Get(id string) (Template, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.templates {
		if t.ID == id {
			return t.clone(), true
		}
	}
	return Template{}, false
}

// Load returns an independent copy of the template's tests. Replacing the
// live registry with it is up to the caller.
func (s *Store) Load(t Template) suite.Snapshot {
	return t.Tests.Clone()
}

func (s *Store) LoadByID(id string) (suite.Snapshot, error) {
	t, ok := s.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", suite.ErrTemplateNotFound, id)
	}
	return t.Tests, nil
}

// Delete removes the template with id. Unknown ids are ignored.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.templates = slices.DeleteFunc(s.templates, func(t Template) bool { return t.ID == id })
}
