package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testkube/suiterunner/internal/executor"
	"github.com/testkube/suiterunner/internal/history"
	"github.com/testkube/suiterunner/internal/report"
	"github.com/testkube/suiterunner/internal/runner"
	"github.com/testkube/suiterunner/internal/suite"
	"github.com/testkube/suiterunner/internal/templates"
)

func newTestServer(t *testing.T) (*Server, *runner.Static) {
	t.Helper()
	static := runner.NewStatic(25)
	return NewServer(static), static
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, path, &buf)
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), v))
}

type testsResponse struct {
	Tests []suite.TestCase `json:"tests"`
	Count int              `json:"count"`
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	rr := do(t, srv.Router(), "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"ok"`)
}

func TestAddListDeleteTests(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Router()

	rr := do(t, h, "POST", "/api/v1/tests/api", suite.Payload{
		Name: "home",
		API:  &suite.APIPayload{Method: "GET", Endpoint: "https://x.test", ExpectedStatus: 200},
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var created suite.TestCase
	decodeBody(t, rr, &created)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, suite.StatusPending, created.Status)

	rr = do(t, h, "GET", "/api/v1/tests", nil)
	var list testsResponse
	decodeBody(t, rr, &list)
	assert.Equal(t, 1, list.Count)

	rr = do(t, h, "DELETE", "/api/v1/tests/api/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = do(t, h, "DELETE", "/api/v1/tests/api/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = do(t, h, "GET", "/api/v1/tests", nil)
	decodeBody(t, rr, &list)
	assert.Equal(t, 0, list.Count)
}

func TestAddTestValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Router()

	tests := []struct {
		name string
		path string
		body interface{}
	}{
		{"unknown category", "/api/v1/tests/smoke", map[string]string{"name": "x"}},
		{"missing fields", "/api/v1/tests/api", map[string]string{"name": "x"}},
		{"bad endpoint", "/api/v1/tests/api", suite.Payload{Name: "x", API: &suite.APIPayload{Method: "GET", Endpoint: "nope", ExpectedStatus: 200}}},
		{"wrong body for category", "/api/v1/tests/unit", suite.Payload{Name: "x", UI: &suite.UIPayload{URL: "https://x.test", Action: "click"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, h, "POST", tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
	assert.Equal(t, 0, srv.registry.Count())
}

func TestGenerate(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Router()

	rr := do(t, h, "POST", "/api/v1/generate", generateRequest{URL: "https://example.com", Username: "a", Password: "b"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var resp testsResponse
	decodeBody(t, rr, &resp)
	assert.Equal(t, 10, resp.Count)

	rr = do(t, h, "POST", "/api/v1/generate", generateRequest{URL: "not-a-url"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, 10, srv.registry.Count())
}

func TestRunAndReport(t *testing.T) {
	srv, static := newTestServer(t)
	static.FailWith("XSS Test - example.com", "scanner offline")
	h := srv.Router()

	rr := do(t, h, "GET", "/api/v1/report", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = do(t, h, "GET", "/api/v1/analytics", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	do(t, h, "POST", "/api/v1/generate", generateRequest{URL: "https://example.com"})

	rr = do(t, h, "POST", "/api/v1/runs", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var run runResponse
	decodeBody(t, rr, &run)
	assert.Equal(t, 8, run.Summary.Total)
	assert.Equal(t, 7, run.Summary.Passed)
	assert.Equal(t, 1, run.Summary.Failed)
	require.Len(t, run.Results, 8)
	assert.Equal(t, suite.CategoryUnit, run.Results[0].Category)

	for _, tc := range srv.registry.List() {
		assert.NotEqual(t, suite.StatusPending, tc.Status, tc.Name)
	}

	rr = do(t, h, "GET", "/api/v1/results", nil)
	var latest runResponse
	decodeBody(t, rr, &latest)
	assert.Equal(t, run.Summary.RunID, latest.Summary.RunID)

	rr = do(t, h, "GET", "/api/v1/report?format=yaml", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Disposition"), ".yaml")
	assert.Contains(t, rr.Body.String(), "scanner offline")

	rr = do(t, h, "GET", "/api/v1/report?format=xml", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, "GET", "/api/v1/history", nil)
	var hist struct {
		Entries []suite.RunSummary `json:"entries"`
	}
	decodeBody(t, rr, &hist)
	require.Len(t, hist.Entries, 1)

	rr = do(t, h, "GET", "/api/v1/analytics", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var rollup history.Rollup
	decodeBody(t, rr, &rollup)
	assert.Equal(t, 1, rollup.TotalRuns)
	assert.Equal(t, 8, rollup.TotalTests)
	assert.InDelta(t, 87.5, rollup.AvgPassRate, 0.001)

	rr = do(t, h, "GET", "/analytics/chart", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Pass Rate")
}

func TestRunRejectedWhileRunning(t *testing.T) {
	srv, started, release := blockingServer(t)
	h := srv.Router()

	done := make(chan int)
	go func() {
		done <- do(t, h, "POST", "/api/v1/runs", nil).Code
	}()
	<-started

	rr := do(t, h, "POST", "/api/v1/runs", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)

	close(release)
	assert.Equal(t, http.StatusOK, <-done)
}

func TestTemplates(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Router()

	do(t, h, "POST", "/api/v1/generate", generateRequest{URL: "https://example.com"})

	rr := do(t, h, "POST", "/api/v1/templates", saveTemplateRequest{Name: "  "})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, "POST", "/api/v1/templates", saveTemplateRequest{Name: "smoke"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var saved templates.Template
	decodeBody(t, rr, &saved)
	assert.Equal(t, 8, saved.TestCount())

	do(t, h, "POST", "/api/v1/tests/unit", suite.Payload{Name: "extra", Unit: &suite.UnitPayload{Code: "1"}})
	assert.Equal(t, 9, srv.registry.Count())

	rr = do(t, h, "GET", "/api/v1/templates/"+saved.ID, nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, h, "POST", "/api/v1/templates/"+saved.ID+"/load", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var loaded testsResponse
	decodeBody(t, rr, &loaded)
	assert.Equal(t, 8, loaded.Count)
	assert.Equal(t, 8, srv.registry.Count())

	rr = do(t, h, "GET", "/api/v1/templates", nil)
	var list struct {
		Templates []templates.Template `json:"templates"`
	}
	decodeBody(t, rr, &list)
	require.Len(t, list.Templates, 1)

	rr = do(t, h, "DELETE", "/api/v1/templates/"+saved.ID, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = do(t, h, "POST", "/api/v1/templates/"+saved.ID+"/load", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = do(t, h, "GET", "/api/v1/templates/"+saved.ID, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRunStream(t *testing.T) {
	srv, _ := newTestServer(t)
	do(t, srv.Router(), "POST", "/api/v1/tests/api", suite.Payload{
		Name: "home",
		API:  &suite.APIPayload{Method: "GET", Endpoint: "https://x.test", ExpectedStatus: 200},
	})
	do(t, srv.Router(), "POST", "/api/v1/tests/unit", suite.Payload{Name: "snippet", Unit: &suite.UnitPayload{Code: "1"}})

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/runs/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var types []string
	var results []suite.TestResult
	var summary suite.RunSummary
	for {
		var msg struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		types = append(types, msg.Type)
		switch msg.Type {
		case MessageResult:
			var res suite.TestResult
			require.NoError(t, json.Unmarshal(msg.Payload, &res))
			results = append(results, res)
		case MessageSummary:
			require.NoError(t, json.Unmarshal(msg.Payload, &summary))
		}
	}

	require.Len(t, results, 2)
	assert.Equal(t, "snippet", results[0].Name)
	assert.Equal(t, "home", results[1].Name)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 2, summary.Passed)
	assert.Equal(t, MessageSummary, types[len(types)-1])
	assert.Contains(t, types, MessageStatus)
	assert.Equal(t, 1, srv.history.Len())
}

func TestRunArchivesReport(t *testing.T) {
	dir := t.TempDir()
	srv := NewServer(runner.NewStatic(5), WithReportArchive(report.NewDirSink(dir), report.FormatJSON))
	h := srv.Router()
	do(t, h, "POST", "/api/v1/tests/unit", suite.Payload{Name: "snippet", Unit: &suite.UnitPayload{Code: "1"}})

	rr := do(t, h, "POST", "/api/v1/runs", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	files, err := filepath.Glob(filepath.Join(dir, "test-report-*.json"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), `"snippet"`)
}

func TestScheduledRunSkipsEmptySuite(t *testing.T) {
	srv, static := newTestServer(t)
	require.NoError(t, srv.ScheduledRun(context.Background()))
	assert.Equal(t, 0, srv.history.Len())
	assert.Empty(t, static.Calls())

	do(t, srv.Router(), "POST", "/api/v1/tests/unit", suite.Payload{Name: "snippet", Unit: &suite.UnitPayload{Code: "1"}})
	require.NoError(t, srv.ScheduledRun(context.Background()))
	assert.Equal(t, 1, srv.history.Len())
}

// blockingServer returns a server whose single unit test blocks in the
// capability until release is closed.
func blockingServer(t *testing.T) (srv *Server, started, release chan struct{}) {
	t.Helper()
	started = make(chan struct{})
	release = make(chan struct{})
	srv = NewServer(executor.CapabilityFunc(func(ctx context.Context, tc suite.TestCase) (executor.Verdict, error) {
		close(started)
		<-release
		return executor.Verdict{Passed: true}, nil
	}))
	do(t, srv.Router(), "POST", "/api/v1/tests/unit", suite.Payload{Name: "blocker", Unit: &suite.UnitPayload{Code: "x"}})
	return srv, started, release
}

func TestStreamDuringActiveRunGetsOnlyAnError(t *testing.T) {
	srv, started, release := blockingServer(t)
	h := srv.Router()

	done := make(chan int)
	go func() {
		done <- do(t, h, "POST", "/api/v1/runs", nil).Code
	}()
	<-started

	ts := httptest.NewServer(h)
	defer ts.Close()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/v1/runs/stream", nil)
	require.NoError(t, err)
	defer conn.Close()

	var types []string
	for {
		var msg StreamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		types = append(types, msg.Type)
	}

	// The active run finishes after the stream is gone; none of its status
	// events may reach the rejected stream.
	close(release)
	assert.Equal(t, http.StatusOK, <-done)
	assert.Equal(t, []string{MessageError}, types)
	assert.Equal(t, 1, srv.history.Len())
}

func TestLoadTemplateDuringActiveRunIsRejected(t *testing.T) {
	srv, started, release := blockingServer(t)
	h := srv.Router()

	saved, err := srv.templates.Save("empty", suite.Snapshot{})
	require.NoError(t, err)

	done := make(chan int)
	go func() {
		done <- do(t, h, "POST", "/api/v1/runs", nil).Code
	}()
	<-started

	rr := do(t, h, "POST", "/api/v1/templates/"+saved.ID+"/load", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, 1, srv.registry.Count())

	close(release)
	assert.Equal(t, http.StatusOK, <-done)

	rr = do(t, h, "POST", "/api/v1/templates/"+saved.ID+"/load", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 0, srv.registry.Count())
}
