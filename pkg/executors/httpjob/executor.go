// Package httpjob provides a step executor for off-chain HTTP jobs.
package httpjob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukex/flowplan/pkg/estimate"
	"github.com/dukex/flowplan/pkg/executors/stub"
	"github.com/dukex/flowplan/pkg/models"
	"github.com/dukex/flowplan/pkg/protocol"
	"github.com/dukex/flowplan/pkg/simulator"
)

const defaultTimeout = 30 * time.Second

var (
	// ErrURLMissing is returned when a node has no url parameter.
	ErrURLMissing = errors.New("missing url parameter")
	// ErrHTTPServerError is returned when the server keeps answering with 5xx.
	ErrHTTPServerError = errors.New("server error during HTTP request")
	// ErrHTTPStatus is returned for a final non 2xx/3xx response.
	ErrHTTPStatus = errors.New("unexpected HTTP status")
)

// RetryConfig defines retry behavior for HTTP jobs.
type RetryConfig struct {
	Attempts int
	Delay    time.Duration
}

// Executor calls the node's "url" with "method", "headers" and "body"
// parameters. JSON object responses are exposed field by field, so declared
// outputs can be read straight from the response body.
type Executor struct {
	estimate.Static

	client *http.Client
	retry  RetryConfig
	logger *slog.Logger
}

func New(client *http.Client, retry RetryConfig, logger *slog.Logger) *Executor {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}

	if retry.Attempts < 1 {
		retry.Attempts = 1
	}

	return &Executor{
		client: client,
		retry:  retry,
		logger: logger.With("module", "httpjob_executor"),
	}
}

func (e *Executor) Execute(ctx context.Context, node *models.Node, _ map[string]any) (*protocol.StepOutput, error) {
	logger := e.logger.With("node_id", node.ID)

	if simulator.IsDryRun(ctx) {
		logger.DebugContext(ctx, "Dry run, not sending request")

		return dryRunOutput(node), nil
	}

	url, _ := node.Parameters["url"].(string)
	if url == "" {
		return nil, fmt.Errorf("node %s: %w", node.ID, ErrURLMissing)
	}

	method, _ := node.Parameters["method"].(string)
	if method == "" {
		method = http.MethodGet
	}

	method = strings.ToUpper(method)

	body, err := requestBody(node.Parameters["body"])
	if err != nil {
		return nil, err
	}

	var (
		lastErr error
		resp    *http.Response
	)

	for attempt := 1; attempt <= e.retry.Attempts; attempt++ {
		if attempt > 1 {
			logger.InfoContext(ctx, "Retrying HTTP job", "attempt", attempt, "attempts", e.retry.Attempts)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(e.retry.Delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create http request: %w", err)
		}

		setHeaders(req, node.Parameters["headers"])

		resp, err = e.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request failed: %w", err)
			resp = nil

			continue
		}

		if resp.StatusCode >= 500 && attempt < e.retry.Attempts {
			lastErr = fmt.Errorf("%w: status %d", ErrHTTPServerError, resp.StatusCode)
			_ = resp.Body.Close()
			resp = nil

			continue
		}

		break
	}

	if resp == nil {
		return nil, fmt.Errorf("all retry attempts failed, last error: %w", lastErr)
	}

	return e.processResponse(ctx, logger, resp)
}

func requestBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(b), nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}

		return data, nil
	}
}

func setHeaders(req *http.Request, headers any) {
	m, ok := headers.(map[string]any)
	if !ok {
		return
	}

	for key, value := range m {
		req.Header.Set(key, fmt.Sprint(value))
	}
}

func (e *Executor) processResponse(ctx context.Context, logger *slog.Logger, resp *http.Response) (*protocol.StepOutput, error) {
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var body any
	if err := json.Unmarshal(data, &body); err != nil {
		body = string(data)
	}

	logger.InfoContext(ctx, "HTTP job completed", "status_code", resp.StatusCode, "body_length", len(data))

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("%w: %d", ErrHTTPStatus, resp.StatusCode)
	}

	values := map[string]any{
		"status_code": resp.StatusCode,
		"body":        body,
	}

	if fields, ok := body.(map[string]any); ok {
		for key, value := range fields {
			if _, reserved := values[key]; !reserved {
				values[key] = value
			}
		}
	}

	return &protocol.StepOutput{Values: values}, nil
}

func dryRunOutput(node *models.Node) *protocol.StepOutput {
	values := map[string]any{
		"status_code": 0,
		"dry_run":     true,
	}

	for _, out := range node.DeclaredOutputs {
		values[out.Name] = stub.MockValue(node.ID, out)
	}

	return &protocol.StepOutput{Values: values}
}
