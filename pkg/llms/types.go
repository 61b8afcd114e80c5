// Package llms provides a uniform client contract over heterogeneous
// LLM backends. Each backend converts the neutral message list plus a
// system instruction into its wire format, enforces per-call token and
// temperature caps, and returns a single decoded string.
package llms

import (
	"context"

	"github.com/parleylab/parley/pkg/config"
	"github.com/parleylab/parley/pkg/media"
	"github.com/parleylab/parley/pkg/protocol"
)

const (
	// DefaultMaxTokens caps a single chat completion.
	DefaultMaxTokens = 1536
	// ReasoningMaxTokens caps reasoning-tier completions.
	ReasoningMaxTokens = 13192

	// DefaultChatTemperature is used by hosted chat backends.
	DefaultChatTemperature = 0.85
	// ReasoningTemperature is fixed for reasoning-tier backends.
	ReasoningTemperature = 1.0
	// OllamaTemperature is used by Ollama-hosted local models.
	OllamaTemperature = 0.75
	// CompatTemperature is used by OpenAI-compatible local endpoints.
	CompatTemperature = 0.65

	// DefaultTimeoutSeconds bounds a single backend request.
	DefaultTimeoutSeconds = 90
)

// Request carries one turn's worth of input to a backend.
// Attachment is set only on the first user turn of a conversation.
type Request struct {
	Prompt            string
	SystemInstruction string
	History           []protocol.Message
	Role              protocol.Role
	Mode              config.Mode
	Attachment        *media.Attachment
}

// Client is the uniform backend contract.
type Client interface {
	// GenerateResponse performs one completion and returns the decoded
	// text. The history is never mutated.
	GenerateResponse(ctx context.Context, req Request) (string, error)

	// TestConnection verifies the backend is reachable and authorized.
	TestConnection(ctx context.Context) error

	// ModelName returns the backend-facing model identifier.
	ModelName() string

	Close() error
}

// clampTokens bounds a request's max token count to the backend cap.
func clampTokens(requested, cap int) int {
	if requested <= 0 || requested > cap {
		return cap
	}
	return requested
}

// promptWithTextAttachment folds a text or code attachment into the
// prompt for text-only local backends. Binary attachments are skipped.
func promptWithTextAttachment(req Request) string {
	att := req.Attachment
	if att == nil || att.TextContent == "" {
		return req.Prompt
	}
	return req.Prompt + "\n\nFile content (" + att.Path + "):\n" + att.TextContent
}
