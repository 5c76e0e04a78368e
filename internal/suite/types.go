package suite

import (
	"fmt"
	"time"
)

type Category string

const (
	CategoryUnit        Category = "unit"
	CategoryAPI         Category = "api"
	CategoryDatabase    Category = "database"
	CategoryPerformance Category = "performance"
	CategorySecurity    Category = "security"
	CategoryUI          Category = "ui"
)

// Categories lists every category in list and run order.
var Categories = []Category{
	CategoryUnit,
	CategoryAPI,
	CategoryDatabase,
	CategoryPerformance,
	CategorySecurity,
	CategoryUI,
}

func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: unknown category %q", ErrInvalidPayload, s)
}

// Index returns the position of c in Categories, or -1.
func (c Category) Index() int {
	for i, known := range Categories {
		if known == c {
			return i
		}
	}
	return -1
}

type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
)

type UnitPayload struct {
	Code string `json:"code" yaml:"code"`
}

type APIPayload struct {
	Method         string `json:"method" yaml:"method"`
	Endpoint       string `json:"endpoint" yaml:"endpoint"`
	ExpectedStatus int    `json:"expectedStatus" yaml:"expectedStatus"`
}

type DatabasePayload struct {
	Database string `json:"database" yaml:"database"`
	Query    string `json:"query" yaml:"query"`
}

type PerformancePayload struct {
	Requests int `json:"requests" yaml:"requests"`
	Users    int `json:"users" yaml:"users"`
}

type SecurityPayload struct {
	ScanType string `json:"scanType" yaml:"scanType"`
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

type UIPayload struct {
	URL    string `json:"url" yaml:"url"`
	Action string `json:"action" yaml:"action"`
}

// Payload is the user-authored part of a test declaration. Exactly one of
// the category bodies is set, matching the category the test is added to.
type Payload struct {
	Name        string              `json:"name" yaml:"name"`
	Unit        *UnitPayload        `json:"unit,omitempty" yaml:"unit,omitempty"`
	API         *APIPayload         `json:"api,omitempty" yaml:"api,omitempty"`
	Database    *DatabasePayload    `json:"database,omitempty" yaml:"database,omitempty"`
	Performance *PerformancePayload `json:"performance,omitempty" yaml:"performance,omitempty"`
	Security    *SecurityPayload    `json:"security,omitempty" yaml:"security,omitempty"`
	UI          *UIPayload          `json:"ui,omitempty" yaml:"ui,omitempty"`
}

// Clone returns a copy that shares no pointers with p.
func (p Payload) Clone() Payload {
	out := Payload{Name: p.Name}
	if p.Unit != nil {
		v := *p.Unit
		out.Unit = &v
	}
	if p.API != nil {
		v := *p.API
		out.API = &v
	}
	if p.Database != nil {
		v := *p.Database
		out.Database = &v
	}
	if p.Performance != nil {
		v := *p.Performance
		out.Performance = &v
	}
	if p.Security != nil {
		v := *p.Security
		out.Security = &v
	}
	if p.UI != nil {
		v := *p.UI
		out.UI = &v
	}
	return out
}

// Declaration pairs a payload with the category it belongs to.
type Declaration struct {
	Category Category `json:"category" yaml:"category"`
	Payload  `yaml:",inline"`
}

type TestCase struct {
	ID        string    `json:"id" yaml:"id"`
	Category  Category  `json:"category" yaml:"category"`
	Status    Status    `json:"status" yaml:"status"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
	Payload   `yaml:",inline"`
}

func (tc TestCase) Clone() TestCase {
	out := tc
	out.Payload = tc.Payload.Clone()
	return out
}

// Snapshot is the full categorized content of a registry at a point in time.
type Snapshot map[Category][]TestCase

func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for c, tests := range s {
		copied := make([]TestCase, len(tests))
		for i, tc := range tests {
			copied[i] = tc.Clone()
		}
		out[c] = copied
	}
	return out
}

func (s Snapshot) Count() int {
	n := 0
	for _, tests := range s {
		n += len(tests)
	}
	return n
}

// Tests flattens the snapshot in run order: category order, then insertion order.
func (s Snapshot) Tests() []TestCase {
	out := make([]TestCase, 0, s.Count())
	for _, c := range Categories {
		for _, tc := range s[c] {
			out = append(out, tc.Clone())
		}
	}
	return out
}

type TestResult struct {
	TestID         string    `json:"testId" yaml:"testId"`
	Category       Category  `json:"category" yaml:"category"`
	Name           string    `json:"name" yaml:"name"`
	Status         Status    `json:"status" yaml:"status"`
	DurationMillis int64     `json:"durationMillis" yaml:"durationMillis"`
	Timestamp      time.Time `json:"timestamp" yaml:"timestamp"`
	Error          string    `json:"error,omitempty" yaml:"error,omitempty"`
}

type RunSummary struct {
	RunID     string    `json:"runId" yaml:"runId"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Total     int       `json:"total" yaml:"total"`
	Passed    int       `json:"passed" yaml:"passed"`
	Failed    int       `json:"failed" yaml:"failed"`
}

// PassRate returns passed/total as a percentage. It reports false for an
// empty run, which has no meaningful rate.
func (s RunSummary) PassRate() (float64, bool) {
	if s.Total == 0 {
		return 0, false
	}
	return float64(s.Passed) / float64(s.Total) * 100, true
}
