// Package history keeps a bounded, newest-first record of run summaries and
// derives rollup statistics from it.
package history

import (
	"sync"
	"time"

	"github.com/testkube/suiterunner/internal/suite"
)

// DefaultLimit is the number of runs retained before the oldest is evicted.
const DefaultLimit = 20

type History struct {
	entries []suite.RunSummary
	limit   int
	mu      sync.RWMutex
}

func New(limit int) *History {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &History{limit: limit}
}

// Append records summary as the newest entry, evicting the oldest entries
// beyond the limit.
func (h *History) Append(summary suite.RunSummary) {
	h.mu.Lock()
	defer h.mu.Unlock()

	entries := make([]suite.RunSummary, 0, min(len(h.entries)+1, h.limit))
	entries = append(entries, summary)
	for _, e := range h.entries {
		if len(entries) == h.limit {
			break
		}
		entries = append(entries, e)
	}
	h.entries = entries
}

// Entries returns a copy of the retained summaries, newest first.
func (h *History) Entries() []suite.RunSummary {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]suite.RunSummary, len(h.entries))
	copy(out, h.entries)
	return out
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

func (h *History) Latest() (suite.RunSummary, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.entries) == 0 {
		return suite.RunSummary{}, false
	}
	return h.entries[0], true
}

type Rollup struct {
	TotalRuns   int     `json:"totalRuns"`
	AvgPassRate float64 `json:"avgPassRate"`
	TotalTests  int     `json:"totalTests"`
}

// Rollup aggregates the retained entries. AvgPassRate is the unweighted mean
// of each entry's own pass rate; runs with no tests have no rate and are left
// out of the mean. Rollup returns nil when there is no history.
func (h *History) Rollup() *Rollup {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.entries) == 0 {
		return nil
	}

	r := &Rollup{TotalRuns: len(h.entries)}
	var rateSum float64
	var rated int
	for _, e := range h.entries {
		r.TotalTests += e.Total
		if rate, ok := e.PassRate(); ok {
			rateSum += rate
			rated++
		}
	}
	if rated > 0 {
		r.AvgPassRate = rateSum / float64(rated)
	}
	return r
}

type Point struct {
	RunID    string
	Date     time.Time
	PassRate float64
	Passed   int
	Failed   int
}

// Trend returns one point per retained run, oldest first, for charting.
func (h *History) Trend() []Point {
	h.mu.RLock()
	defer h.mu.RUnlock()

	points := make([]Point, 0, len(h.entries))
	for i := len(h.entries) - 1; i >= 0; i-- {
		e := h.entries[i]
		rate, _ := e.PassRate()
		points = append(points, Point{
			RunID:    e.RunID,
			Date:     e.Timestamp,
			PassRate: rate,
			Passed:   e.Passed,
			Failed:   e.Failed,
		})
	}
	return points
}
