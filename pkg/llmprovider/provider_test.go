package llmprovider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectHonorsExplicitProvider(t *testing.T) {
	assert.Equal(t, "custom", Select("custom", "sk-ant-whatever"))
}

func TestSelectDetectsAnthropicKeyShapes(t *testing.T) {
	assert.Equal(t, ProviderAnthropic, Select("", "sk-ant-abc123"))
	assert.Equal(t, ProviderAnthropic, Select("", "claude-xyz"))
}

func TestSelectDefaultsToOpenRouter(t *testing.T) {
	assert.Equal(t, ProviderOpenRouter, Select("", "sk-or-v1-abc"))
}

type fakeCompleter struct {
	calls   []CompletionRequest
	replies []string
}

func (f *fakeCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	f.calls = append(f.calls, req)
	reply := f.replies[len(f.calls)-1]
	if reply == "" {
		return "", nil
	}
	return reply, nil
}

func TestCompleteWithRetrySucceedsOnFirstTry(t *testing.T) {
	c := &fakeCompleter{replies: []string{"hello"}}
	text, err := CompleteWithRetry(context.Background(), c, CompletionRequest{Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
	assert.Len(t, c.calls, 1)
}

func TestCompleteWithRetryLowersTemperatureAndTokensOnSecondAttempt(t *testing.T) {
	c := &fakeCompleter{replies: []string{"", "fallback text"}}
	text, err := CompleteWithRetry(context.Background(), c, CompletionRequest{Message: "hi", MaxTokens: 4096, Temperature: 0.9})
	require.NoError(t, err)
	assert.Equal(t, "fallback text", text)
	require.Len(t, c.calls, 2)
	assert.Equal(t, float32(0.2), c.calls[1].Temperature)
	assert.Equal(t, 256, c.calls[1].MaxTokens)
}

func TestCompleteWithRetryReturnsEmptyAfterSecondFailure(t *testing.T) {
	c := &fakeCompleter{replies: []string{"", ""}}
	text, err := CompleteWithRetry(context.Background(), c, CompletionRequest{Message: "hi"})
	require.NoError(t, err)
	assert.Empty(t, text, "caller substitutes the fallback placeholder, not this helper")
}
