// Package tools provides the production implementation of the pipeline's
// tool-execution boundary: an HTTP client for the external tool session.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/reasonloop/reasonloop/internal/planner"
)

// Executor executes subtasks against the remote tool service.
type Executor struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewExecutor creates an Executor for the given tool service base URL.
func NewExecutor(baseURL string, timeout time.Duration, logger *zap.Logger) *Executor {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Executor{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type executeRequest struct {
	Query     string   `json:"query"`
	ToolHints []string `json:"tool_hints,omitempty"`
	Priority  string   `json:"priority"`
}

type executeResponse struct {
	Output string `json:"output"`
}

// Execute runs one subtask remotely. Retry policy lives in the pipeline,
// not here.
func (e *Executor) Execute(ctx context.Context, task planner.SubTask) (string, error) {
	body, err := json.Marshal(executeRequest{
		Query:     task.Query,
		ToolHints: task.ToolHints,
		Priority:  task.Priority.String(),
	})
	if err != nil {
		return "", fmt.Errorf("marshal execute request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/execute", e.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create execute request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Subtask-ID", task.ID)

	resp, err := e.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("tool service call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("HTTP %d from tool service", resp.StatusCode)
	}

	var out executeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode execute response: %w", err)
	}
	return out.Output, nil
}
