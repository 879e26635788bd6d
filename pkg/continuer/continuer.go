// Package continuer implements the Committer's outbound continuation hook
// (spec.md §4.4 steps 9 and 12): a POST to /api/ai/agent/continue that lets
// the LLM decide whether to keep iterating an agentic loop after a read or
// a batch of mutations. Fire-and-forget from the Committer's perspective —
// the call runs in its own goroutine so a slow or failing continuation
// never stalls the tick.
//
// Grounded on the teacher's pkg/runbook/github.go outbound *http.Client
// wrapper.
package continuer

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/theredstring/redstring-sub011/pkg/committer"
)

// HTTPContinuer posts continuation requests to a fixed base URL, normally
// the bridge's own loopback address.
type HTTPContinuer struct {
	httpClient *http.Client
	url        string
}

// New creates an HTTPContinuer that posts to baseURL+"/api/ai/agent/continue".
func New(baseURL string, timeout time.Duration) *HTTPContinuer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPContinuer{
		httpClient: &http.Client{Timeout: timeout},
		url:        baseURL + "/api/ai/agent/continue",
	}
}

// Continue implements committer.Continuer. Errors are logged, never
// returned — the Committer has no return path for this call (spec.md §7
// "Tickers catch and swallow").
func (c *HTTPContinuer) Continue(req committer.ContinueRequest) {
	go c.post(req)
}

func (c *HTTPContinuer) post(req committer.ContinueRequest) {
	body, err := json.Marshal(map[string]interface{}{
		"cid":        req.Cid,
		"readResult": req.ReadResult,
		"graphState": req.GraphState,
		"iteration":  req.Iteration,
		"apiConfig":  req.APIConfig,
	})
	if err != nil {
		slog.Warn("continuer: failed to marshal request", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.httpClient.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		slog.Warn("continuer: failed to build request", "error", err)
		return
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		slog.Warn("continuer: continuation request failed", "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		slog.Warn("continuer: continuation endpoint returned non-2xx", "status", resp.StatusCode)
	}
}
