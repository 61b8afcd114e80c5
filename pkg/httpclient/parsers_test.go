package httpclient

import (
	"net/http"
	"testing"
	"time"
)

func TestParseAnthropicHeaders(t *testing.T) {
	headers := http.Header{}
	headers.Set("retry-after", "30")
	reset := time.Now().Add(time.Minute).UTC().Format(time.RFC3339)
	headers.Set("anthropic-ratelimit-input-tokens-reset", reset)
	headers.Set("anthropic-ratelimit-requests-remaining", "42")
	headers.Set("anthropic-ratelimit-input-tokens-remaining", "10000")
	headers.Set("anthropic-ratelimit-output-tokens-remaining", "2000")

	info := ParseAnthropicHeaders(headers)

	if info.RetryAfter != 30*time.Second {
		t.Errorf("RetryAfter = %v, want 30s", info.RetryAfter)
	}
	if info.ResetTime == 0 {
		t.Error("ResetTime not parsed")
	}
	if info.RequestsRemaining != 42 {
		t.Errorf("RequestsRemaining = %d, want 42", info.RequestsRemaining)
	}
	if info.InputTokensRemaining != 10000 {
		t.Errorf("InputTokensRemaining = %d, want 10000", info.InputTokensRemaining)
	}
	if info.OutputTokensRemaining != 2000 {
		t.Errorf("OutputTokensRemaining = %d, want 2000", info.OutputTokensRemaining)
	}
}

func TestParseOpenAIHeaders(t *testing.T) {
	headers := http.Header{}
	headers.Set("Retry-After", "12")
	headers.Set("x-ratelimit-reset-tokens", "1700000000")
	headers.Set("x-ratelimit-remaining-requests", "99")
	headers.Set("x-ratelimit-remaining-tokens", "5000")

	info := ParseOpenAIHeaders(headers)

	if info.RetryAfter != 12*time.Second {
		t.Errorf("RetryAfter = %v, want 12s", info.RetryAfter)
	}
	if info.ResetTime != 1700000000 {
		t.Errorf("ResetTime = %d, want 1700000000", info.ResetTime)
	}
	if info.RequestsRemaining != 99 {
		t.Errorf("RequestsRemaining = %d, want 99", info.RequestsRemaining)
	}
	if info.TokensRemaining != 5000 {
		t.Errorf("TokensRemaining = %d, want 5000", info.TokensRemaining)
	}
}

func TestParseGeminiHeaders(t *testing.T) {
	headers := http.Header{}
	headers.Set("Retry-After", "8")

	info := ParseGeminiHeaders(headers)
	if info.RetryAfter != 8*time.Second {
		t.Errorf("RetryAfter = %v, want 8s", info.RetryAfter)
	}

	empty := ParseGeminiHeaders(http.Header{})
	if empty.RetryAfter != 0 {
		t.Errorf("RetryAfter = %v, want 0", empty.RetryAfter)
	}
}
