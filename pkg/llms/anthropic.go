package llms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/parleylab/parley/pkg/config"
	"github.com/parleylab/parley/pkg/httpclient"
	"github.com/parleylab/parley/pkg/media"
	"github.com/parleylab/parley/pkg/protocol"
)

// AnthropicClient talks to the Anthropic Messages API. The system
// instruction goes in the dedicated system slot; extended thinking is
// enabled per model spec.
type AnthropicClient struct {
	apiKey     string
	model      string
	host       string
	spec       config.ModelSpec
	httpClient *httpclient.Client
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature,omitempty"`
	System      string             `json:"system,omitempty"`
	Thinking    *anthropicThinking `json:"thinking,omitempty"`
}

type anthropicThinking struct {
	Type         string `json:"type"`
	BudgetTokens int    `json:"budget_tokens"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicContent struct {
	Type   string           `json:"type"`
	Text   string           `json:"text,omitempty"`
	Source *anthropicSource `json:"source,omitempty"`
}

type anthropicSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicResponse struct {
	Content    []anthropicContent `json:"content"`
	StopReason string             `json:"stop_reason"`
	Error      *anthropicError    `json:"error,omitempty"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewAnthropicClient(apiKey, model string, spec config.ModelSpec) *AnthropicClient {
	return &AnthropicClient{
		apiKey: apiKey,
		model:  model,
		host:   "https://api.anthropic.com",
		spec:   spec,
		httpClient: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{
				Timeout: DefaultTimeoutSeconds * time.Second,
			}),
			httpclient.WithHeaderParser(httpclient.ParseAnthropicHeaders),
		),
	}
}

func (c *AnthropicClient) ModelName() string {
	return c.model
}

func (c *AnthropicClient) Close() error {
	return nil
}

func (c *AnthropicClient) GenerateResponse(ctx context.Context, req Request) (string, error) {
	request := c.buildRequest(req)

	response, err := c.makeRequest(ctx, request)
	if err != nil {
		return "", NewClientError(c.model, err)
	}
	if response.Error != nil {
		return "", NewClientError(c.model, fmt.Errorf("anthropic API error: %s", response.Error.Message))
	}

	for _, content := range response.Content {
		if content.Type == "text" {
			return content.Text, nil
		}
	}
	return "", NewClientError(c.model, fmt.Errorf("anthropic response contained no text content"))
}

func (c *AnthropicClient) TestConnection(ctx context.Context) error {
	_, err := c.GenerateResponse(ctx, Request{
		Prompt: "Respond with OK.",
	})
	return err
}

func (c *AnthropicClient) buildRequest(req Request) anthropicRequest {
	messages := make([]anthropicMessage, 0, len(req.History)+1)

	for _, msg := range req.History {
		role, ok := protocol.NormalizeRole(string(msg.Role))
		if !ok || role == protocol.RoleSystem {
			continue
		}
		messages = append(messages, anthropicMessage{
			Role:    string(role),
			Content: contentBlocks(msg),
		})
	}

	messages = append(messages, anthropicMessage{
		Role:    "user",
		Content: contentBlocks(protocol.Message{Content: req.Prompt, Attachment: req.Attachment}),
	})

	request := anthropicRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   clampTokens(0, DefaultMaxTokens),
		Temperature: DefaultChatTemperature,
		System:      req.SystemInstruction,
	}

	if c.spec.ExtendedThinking {
		budget := c.spec.BudgetTokens
		if budget <= 0 {
			budget = 8000
		}
		// Extended thinking requires temperature 1.0 and a max_tokens
		// greater than the thinking budget.
		request.Thinking = &anthropicThinking{Type: "enabled", BudgetTokens: budget}
		request.Temperature = 1.0
		request.MaxTokens = budget + DefaultMaxTokens
	}

	return request
}

func contentBlocks(msg protocol.Message) []anthropicContent {
	blocks := []anthropicContent{}

	if att := msg.Attachment; att != nil {
		switch att.Kind {
		case media.KindImage:
			blocks = append(blocks, anthropicContent{
				Type: "image",
				Source: &anthropicSource{
					Type:      "base64",
					MediaType: att.Mime,
					Data:      att.Base64,
				},
			})
		case media.KindText, media.KindCode:
			blocks = append(blocks, anthropicContent{
				Type: "text",
				Text: fmt.Sprintf("File content (%s):\n%s", att.Path, att.TextContent),
			})
		}
	}

	if msg.Content != "" || len(blocks) == 0 {
		blocks = append(blocks, anthropicContent{Type: "text", Text: msg.Content})
	}
	return blocks
}

func (c *AnthropicClient) makeRequest(ctx context.Context, request anthropicRequest) (*anthropicResponse, error) {
	jsonData, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.host+"/v1/messages", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(jsonData)), nil
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var response anthropicResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &response, nil
}
