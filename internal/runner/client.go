// Package runner provides execution capabilities for the executor: a client
// for a remote execution service and a deterministic static runner.
package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/testkube/suiterunner/internal/executor"
	"github.com/testkube/suiterunner/internal/suite"
)

const DefaultTimeout = 30 * time.Second

type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client delegates every test to an external execution service. The
// service receives the test case as JSON on POST /v1/executions and answers
// with a verdict.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a client and checks that the service is healthy.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("runner base URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}

	if err := c.healthCheck(ctx); err != nil {
		return nil, fmt.Errorf("runner health check failed: %w", err)
	}
	return c, nil
}

func (c *Client) healthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy (status: %d)", resp.StatusCode)
	}
	return nil
}

type executionRequest struct {
	Test suite.TestCase `json:"test"`
}

type executionResponse struct {
	Passed         bool   `json:"passed"`
	DurationMillis int64  `json:"durationMillis"`
	Message        string `json:"message,omitempty"`
	Error          string `json:"error,omitempty"`
}

// Execute implements executor.Capability. Transport failures, non-200
// answers and service-reported errors come back as *suite.ExecutionError.
func (c *Client) Execute(ctx context.Context, tc suite.TestCase) (executor.Verdict, error) {
	body, err := json.Marshal(executionRequest{Test: tc})
	if err != nil {
		return executor.Verdict{}, &suite.ExecutionError{Message: fmt.Sprintf("failed to encode test: %v", err), Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/executions", bytes.NewReader(body))
	if err != nil {
		return executor.Verdict{}, &suite.ExecutionError{Message: fmt.Sprintf("failed to create request: %v", err), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return executor.Verdict{}, &suite.ExecutionError{Message: fmt.Sprintf("runner request failed: %v", err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return executor.Verdict{}, suite.NewExecutionError(fmt.Sprintf("runner returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data))))
	}

	var out executionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return executor.Verdict{}, &suite.ExecutionError{Message: fmt.Sprintf("failed to parse runner response: %v", err), Err: err}
	}
	if out.Error != "" {
		return executor.Verdict{}, suite.NewExecutionError(out.Error)
	}

	return executor.Verdict{
		Passed:         out.Passed,
		DurationMillis: out.DurationMillis,
		Message:        out.Message,
	}, nil
}
