package llms

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"nil", nil, NonFatal},
		{"missing api key", errors.New("anthropic API key missing"), FatalAuth},
		{"key not provided", errors.New("API key not provided for openai backend"), FatalAuth},
		{"no api key", errors.New("no api key provided for gemini backend"), FatalAuth},
		{"auth failed", errors.New("authentication failed: invalid credentials"), FatalAuth},
		{"gemini bad key", errors.New("API key not valid. Please pass a valid API key."), FatalAuth},
		{"quota", errors.New("quota exceeded for this billing cycle"), FatalQuota},
		{"refused", errors.New("dial tcp: connection refused"), FatalConnection},
		{"aborted", errors.New("connection aborted by peer"), FatalConnection},
		{"remote closed", errors.New("remote end closed connection without response"), FatalConnection},
		{"max retries", errors.New("max retries exceeded with url"), FatalConnection},
		{"read timeout", errors.New("read timed out"), FatalConnection},
		{"unavailable", errors.New("HTTP 503 Service Unavailable"), FatalConnection},
		{"deadline", errors.New("context deadline exceeded"), FatalConnection},
		{"dns", errors.New("lookup api.example.com: no such host"), FatalConnection},
		{"reset", errors.New("connection reset by peer"), FatalConnection},
		{"rate limit", errors.New("HTTP 429: rate limited"), NonFatal},
		{"bad request", errors.New("API request failed with status 400: bad payload"), NonFatal},
		{"plain", errors.New("something odd happened"), NonFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestClientError(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewClientError("gpt-4o", cause)

	if err.Class != FatalConnection {
		t.Errorf("Class = %v, want FATAL_CONNECTION", err.Class)
	}
	if !errors.Is(err, cause) {
		t.Error("Unwrap chain lost the cause")
	}

	msg := err.Error()
	if msg != "FATAL_CONNECTION [gpt-4o]: connection refused" {
		t.Errorf("Error() = %q", msg)
	}

	// Wrapping an already-classified error keeps the classification.
	rewrapped := NewClientError("other-model", err)
	if rewrapped != err {
		t.Error("NewClientError re-wrapped an existing ClientError")
	}

	// Classification survives fmt wrapping.
	wrapped := fmt.Errorf("turn failed: %w", err)
	if Classify(wrapped) != FatalConnection {
		t.Error("Classify lost the class through wrapping")
	}
}

func TestNewClientErrorNil(t *testing.T) {
	if err := NewClientError("m", nil); err != nil {
		t.Errorf("NewClientError(nil) = %v, want nil", err)
	}
}
