package llms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/parleylab/parley/pkg/config"
	"github.com/parleylab/parley/pkg/httpclient"
	"github.com/parleylab/parley/pkg/media"
	"github.com/parleylab/parley/pkg/protocol"
)

// OpenAIClient talks to the OpenAI chat completions API. Reasoning-tier
// models (o1, o3) run at temperature 1.0 with a larger completion cap
// and fold the system instruction into a developer message.
type OpenAIClient struct {
	apiKey     string
	model      string
	host       string
	spec       config.ModelSpec
	httpClient *httpclient.Client
}

type openaiRequest struct {
	Model               string          `json:"model"`
	Messages            []openaiMessage `json:"messages"`
	MaxTokens           int             `json:"max_tokens,omitempty"`
	MaxCompletionTokens int             `json:"max_completion_tokens,omitempty"`
	Temperature         float64         `json:"temperature,omitempty"`
	ReasoningEffort     string          `json:"reasoning_effort,omitempty"`
}

type openaiMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type openaiContentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openaiImageURL `json:"image_url,omitempty"`
}

type openaiImageURL struct {
	URL string `json:"url"`
}

type openaiResponse struct {
	Choices []openaiChoice `json:"choices"`
	Error   *openaiError   `json:"error,omitempty"`
}

type openaiChoice struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

type openaiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func NewOpenAIClient(apiKey, model string, spec config.ModelSpec) *OpenAIClient {
	return &OpenAIClient{
		apiKey: apiKey,
		model:  model,
		host:   "https://api.openai.com",
		spec:   spec,
		httpClient: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{
				Timeout: DefaultTimeoutSeconds * time.Second,
			}),
			httpclient.WithHeaderParser(httpclient.ParseOpenAIHeaders),
		),
	}
}

func (c *OpenAIClient) ModelName() string {
	return c.model
}

func (c *OpenAIClient) Close() error {
	return nil
}

// isReasoningModel reports whether the model runs on the reasoning tier.
func (c *OpenAIClient) isReasoningModel() bool {
	return strings.HasPrefix(c.model, "o1") || strings.HasPrefix(c.model, "o3")
}

func (c *OpenAIClient) GenerateResponse(ctx context.Context, req Request) (string, error) {
	request := c.buildRequest(req)

	response, err := c.makeRequest(ctx, request)
	if err != nil {
		return "", NewClientError(c.model, err)
	}
	if response.Error != nil {
		return "", NewClientError(c.model, fmt.Errorf("openai API error: %s", response.Error.Message))
	}
	if len(response.Choices) == 0 {
		return "", NewClientError(c.model, fmt.Errorf("openai response contained no choices"))
	}
	return response.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) TestConnection(ctx context.Context) error {
	_, err := c.GenerateResponse(ctx, Request{Prompt: "Respond with OK."})
	return err
}

func (c *OpenAIClient) buildRequest(req Request) openaiRequest {
	messages := make([]openaiMessage, 0, len(req.History)+2)

	if req.SystemInstruction != "" {
		role := "system"
		if c.isReasoningModel() {
			role = "developer"
		}
		messages = append(messages, openaiMessage{Role: role, Content: req.SystemInstruction})
	}

	for _, msg := range req.History {
		role, ok := protocol.NormalizeRole(string(msg.Role))
		if !ok || role == protocol.RoleSystem {
			continue
		}
		messages = append(messages, openaiMessage{
			Role:    string(role),
			Content: openaiContent(msg),
		})
	}

	messages = append(messages, openaiMessage{
		Role:    "user",
		Content: openaiContent(protocol.Message{Content: req.Prompt, Attachment: req.Attachment}),
	})

	request := openaiRequest{
		Model:    c.model,
		Messages: messages,
	}

	if c.isReasoningModel() {
		request.Temperature = ReasoningTemperature
		request.MaxCompletionTokens = clampTokens(0, ReasoningMaxTokens)
		effort := c.spec.ReasoningLevel
		if effort == "" || effort == "auto" {
			effort = "medium"
		}
		request.ReasoningEffort = effort
	} else {
		request.Temperature = DefaultChatTemperature
		request.MaxTokens = clampTokens(0, DefaultMaxTokens)
	}

	return request
}

func openaiContent(msg protocol.Message) interface{} {
	att := msg.Attachment
	if att == nil {
		return msg.Content
	}

	switch att.Kind {
	case media.KindImage:
		return []openaiContentPart{
			{Type: "text", Text: msg.Content},
			{Type: "image_url", ImageURL: &openaiImageURL{
				URL: fmt.Sprintf("data:%s;base64,%s", att.Mime, att.Base64),
			}},
		}
	case media.KindText, media.KindCode:
		return fmt.Sprintf("%s\n\nFile content (%s):\n%s", msg.Content, att.Path, att.TextContent)
	default:
		return msg.Content
	}
}

func (c *OpenAIClient) makeRequest(ctx context.Context, request openaiRequest) (*openaiResponse, error) {
	jsonData, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.host+"/v1/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(jsonData)), nil
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var response openaiResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &response, nil
}
