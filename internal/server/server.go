package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/testkube/suiterunner/internal/charts"
	"github.com/testkube/suiterunner/internal/executor"
	"github.com/testkube/suiterunner/internal/generator"
	"github.com/testkube/suiterunner/internal/history"
	"github.com/testkube/suiterunner/internal/registry"
	"github.com/testkube/suiterunner/internal/report"
	"github.com/testkube/suiterunner/internal/suite"
	"github.com/testkube/suiterunner/internal/templates"
)

type Server struct {
	registry  *registry.Registry
	executor  *executor.Executor
	history   *history.History
	templates *templates.Store
	exporter  *report.Exporter
	charts    *charts.Generator
	statuses  *statusRelay

	archive       *report.DirSink
	archiveFormat report.Format

	// runMu is held for the whole of a server-initiated run and while a
	// template replaces the suite.
	runMu sync.Mutex

	// Results of the most recent run, kept for display and export only.
	mu          sync.RWMutex
	lastResults []suite.TestResult
	lastSummary *suite.RunSummary
}

type Option func(*Server)

// WithReportArchive writes a report of every completed run into sink.
func WithReportArchive(sink *report.DirSink, format report.Format) Option {
	return func(s *Server) {
		s.archive = sink
		s.archiveFormat = format
	}
}

func NewServer(capability executor.Capability, opts ...Option) *Server {
	reg := registry.New()
	hist := history.New(history.DefaultLimit)
	relay := &statusRelay{next: reg}

	s := &Server{
		registry:  reg,
		executor:  executor.New(capability, executor.WithRecorder(hist), executor.WithStatusSink(relay)),
		history:   hist,
		templates: templates.New(),
		exporter:  report.NewExporter(),
		charts:    charts.NewGenerator(),
		statuses:  relay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth)

	// Suite
	r.Get("/api/v1/tests", s.handleListTests)
	r.Post("/api/v1/tests/{category}", s.handleAddTest)
	r.Delete("/api/v1/tests/{category}/{id}", s.handleDeleteTest)
	r.Post("/api/v1/generate", s.handleGenerate)

	// Runs
	r.Post("/api/v1/runs", s.handleRun)
	r.Get("/api/v1/runs/stream", s.handleRunStream)
	r.Get("/api/v1/results", s.handleLatestResults)
	r.Get("/api/v1/report", s.handleReport)

	// History and analytics
	r.Get("/api/v1/history", s.handleHistory)
	r.Get("/api/v1/analytics", s.handleAnalytics)
	r.Get("/analytics/chart", s.handleAnalyticsChart)

	// Templates
	r.Get("/api/v1/templates", s.handleListTemplates)
	r.Post("/api/v1/templates", s.handleSaveTemplate)
	r.Get("/api/v1/templates/{id}", s.handleGetTemplate)
	r.Post("/api/v1/templates/{id}/load", s.handleLoadTemplate)
	r.Delete("/api/v1/templates/{id}", s.handleDeleteTemplate)

	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Server: failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, suite.ErrInvalidPayload),
		errors.Is(err, suite.ErrInvalidURL),
		errors.Is(err, suite.ErrInvalidName):
		status = http.StatusBadRequest
	case errors.Is(err, suite.ErrRunInProgress):
		status = http.StatusConflict
	case errors.Is(err, suite.ErrTemplateNotFound):
		status = http.StatusNotFound
	default:
		log.Printf("Server: %v", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", suite.ErrInvalidPayload, err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"running": s.executor.Running(),
	})
}

func (s *Server) handleListTests(w http.ResponseWriter, r *http.Request) {
	tests := s.registry.List()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tests": tests,
		"count": len(tests),
	})
}

func (s *Server) handleAddTest(w http.ResponseWriter, r *http.Request) {
	category, err := suite.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		writeError(w, err)
		return
	}

	var payload suite.Payload
	if err := decode(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	tc, err := s.registry.Add(category, payload)
	if err != nil {
		writeError(w, err)
		return
	}

	log.Printf("Server: added %s test %q (%s)", category, tc.Name, tc.ID)
	writeJSON(w, http.StatusCreated, tc)
}

func (s *Server) handleDeleteTest(w http.ResponseWriter, r *http.Request) {
	category, err := suite.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		writeError(w, err)
		return
	}

	s.registry.Remove(category, chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

type generateRequest struct {
	URL      string `json:"url"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	var creds *generator.Credentials
	if req.Username != "" || req.Password != "" {
		creds = &generator.Credentials{Username: req.Username, Password: req.Password}
	}

	decls, err := generator.Generate(req.URL, creds)
	if err != nil {
		writeError(w, err)
		return
	}
	added, err := s.registry.AddAll(decls)
	if err != nil {
		writeError(w, err)
		return
	}

	log.Printf("Server: generated %d tests for %s", len(added), req.URL)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"tests": added,
		"count": len(added),
	})
}

type runResponse struct {
	Summary suite.RunSummary   `json:"summary"`
	Results []suite.TestResult `json:"results"`
}

// runSuite executes every registered test. The run is detached from the
// request context so a disconnecting client does not cut it short. onStatus
// is attached only once this call owns the run slot.
func (s *Server) runSuite(ctx context.Context, onStatus func(StatusEvent), onResult func(suite.TestResult)) (runResponse, error) {
	if !s.runMu.TryLock() {
		return runResponse{}, suite.ErrRunInProgress
	}
	defer s.runMu.Unlock()

	if onStatus != nil {
		defer s.statuses.attach(onStatus)()
	}

	results := []suite.TestResult{}
	summary, err := s.executor.Run(context.WithoutCancel(ctx), s.registry.List(), func(res suite.TestResult) {
		results = append(results, res)
		if onResult != nil {
			onResult(res)
		}
	})
	if err != nil {
		return runResponse{}, err
	}

	s.mu.Lock()
	s.lastResults = results
	s.lastSummary = &summary
	s.mu.Unlock()

	if s.archive != nil {
		s.archiveRun(results, summary)
	}

	return runResponse{Summary: summary, Results: results}, nil
}

func (s *Server) archiveRun(results []suite.TestResult, summary suite.RunSummary) {
	data, err := s.exporter.Export(results, summary, s.archiveFormat)
	if err != nil {
		log.Printf("Server: failed to export run %s: %v", summary.RunID, err)
		return
	}
	path, err := s.archive.Save(s.exporter.FileName(s.archiveFormat), data)
	if err != nil {
		log.Printf("Server: failed to archive run %s: %v", summary.RunID, err)
		return
	}
	log.Printf("Server: archived run %s to %s", summary.RunID, path)
}

// ScheduledRun runs the current suite unless it is empty.
func (s *Server) ScheduledRun(ctx context.Context) error {
	if s.registry.Count() == 0 {
		return nil
	}
	_, err := s.runSuite(ctx, nil, nil)
	return err
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	resp, err := s.runSuite(r.Context(), nil, nil)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) latest() ([]suite.TestResult, *suite.RunSummary) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]suite.TestResult, len(s.lastResults))
	copy(results, s.lastResults)
	return results, s.lastSummary
}

func (s *Server) handleLatestResults(w http.ResponseWriter, r *http.Request) {
	results, summary := s.latest()
	if summary == nil {
		writeJSON(w, http.StatusOK, runResponse{Results: []suite.TestResult{}})
		return
	}
	writeJSON(w, http.StatusOK, runResponse{Summary: *summary, Results: results})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	format, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	results, summary := s.latest()
	if summary == nil {
		http.Error(w, "No results to export", http.StatusNotFound)
		return
	}

	data, err := s.exporter.Export(results, *summary, format)
	if err != nil {
		log.Printf("Server: failed to export report: %v", err)
		http.Error(w, "Failed to export report", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", s.exporter.FileName(format)))
	w.Write(data)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": s.history.Entries(),
	})
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	rollup := s.history.Rollup()
	if rollup == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, rollup)
}

func (s *Server) handleAnalyticsChart(w http.ResponseWriter, r *http.Request) {
	points := s.history.Trend()
	if len(points) == 0 {
		http.Error(w, "No history yet", http.StatusNotFound)
		return
	}

	rates := make([]float64, len(points))
	for i, p := range points {
		rates[i] = p.PassRate
	}

	data := map[string]interface{}{
		"PassRateChart": template.HTML(s.charts.PassRateChart(points)),
		"ResultsChart":  template.HTML(s.charts.ResultsChart(points)),
		"Sparkline":     template.HTML(s.charts.Sparkline(rates)),
	}

	w.Header().Set("Content-Type", "text/html")
	if err := chartPage.Execute(w, data); err != nil {
		log.Printf("Server: template error: %v", err)
	}
}

var chartPage = template.Must(template.New("analytics").Parse(
	`<!DOCTYPE html><html><head><title>Suite Analytics</title></head><body>{{.Sparkline}}{{.PassRateChart}}{{.ResultsChart}}</body></html>`))

type saveTemplateRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"templates": s.templates.List(),
	})
}

func (s *Server) handleSaveTemplate(w http.ResponseWriter, r *http.Request) {
	var req saveTemplateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	t, err := s.templates.Save(req.Name, s.registry.Snapshot())
	if err != nil {
		writeError(w, err)
		return
	}

	log.Printf("Server: saved template %q with %d tests", t.Name, t.TestCount())
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	t, ok := s.templates.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, fmt.Errorf("%w: %s", suite.ErrTemplateNotFound, chi.URLParam(r, "id")))
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleLoadTemplate(w http.ResponseWriter, r *http.Request) {
	snap, err := s.templates.LoadByID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if !s.runMu.TryLock() {
		writeError(w, suite.ErrRunInProgress)
		return
	}
	err = s.registry.Replace(snap)
	s.runMu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}

	tests := s.registry.List()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tests": tests,
		"count": len(tests),
	})
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	s.templates.Delete(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}
