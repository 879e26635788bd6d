package llmprovider

import "context"

// CompleteWithRetry implements spec.md §4.6's "on empty reply, retry once
// with max_tokens lowered and temperature 0.2" policy for the QA reply
// call. On a second empty reply, the caller is expected to substitute its
// own safe placeholder — this helper only governs the retry, not the
// fallback text.
func CompleteWithRetry(ctx context.Context, c Completer, req CompletionRequest) (string, error) {
	text, err := c.Complete(ctx, req)
	if err == nil && text != "" {
		return text, nil
	}

	retry := req
	retry.Temperature = 0.2
	if retry.MaxTokens > 256 {
		retry.MaxTokens = 256
	}
	return c.Complete(ctx, retry)
}
