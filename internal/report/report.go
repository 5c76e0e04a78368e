// Package report serializes the results of a run into a downloadable
// document.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/testkube/suiterunner/internal/suite"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON, "":
		return FormatJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unsupported report format %q", s)
}

func (f Format) ContentType() string {
	if f == FormatYAML {
		return "application/yaml"
	}
	return "application/json"
}

type Summary struct {
	Total               int   `json:"total" yaml:"total"`
	Passed              int   `json:"passed" yaml:"passed"`
	Failed              int   `json:"failed" yaml:"failed"`
	TotalDurationMillis int64 `json:"totalDurationMillis" yaml:"totalDurationMillis"`
}

type Report struct {
	GeneratedAt time.Time          `json:"generatedAt" yaml:"generatedAt"`
	Summary     Summary            `json:"summary" yaml:"summary"`
	Results     []suite.TestResult `json:"results" yaml:"results"`
}

type Exporter struct {
	Now func() time.Time
}

func NewExporter() *Exporter {
	return &Exporter{Now: time.Now}
}

func (e *Exporter) now() time.Time {
	if e.Now == nil {
		return time.Now().UTC()
	}
	return e.Now().UTC()
}

// Build assembles the report document. Counts come from summary, the total
// duration is the sum of every result's duration.
func (e *Exporter) Build(results []suite.TestResult, summary suite.RunSummary) Report {
	r := Report{
		GeneratedAt: e.now(),
		Summary: Summary{
			Total:  summary.Total,
			Passed: summary.Passed,
			Failed: summary.Failed,
		},
		Results: make([]suite.TestResult, len(results)),
	}
	copy(r.Results, results)
	for _, res := range results {
		r.Summary.TotalDurationMillis += res.DurationMillis
	}
	return r
}

func (e *Exporter) Write(w io.Writer, results []suite.TestResult, summary suite.RunSummary, format Format) error {
	doc := e.Build(results, summary)
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode yaml report: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode json report: %w", err)
		}
		return nil
	}
}

func (e *Exporter) Export(results []suite.TestResult, summary suite.RunSummary, format Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.Write(&buf, results, summary, format); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FileName is the suggested download name, e.g. test-report-1700000000000.json.
func (e *Exporter) FileName(format Format) string {
	if format == "" {
		format = FormatJSON
	}
	return fmt.Sprintf("test-report-%d.%s", e.now().UnixMilli(), format)
}
