package llms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/parleylab/parley/pkg/httpclient"
	"github.com/parleylab/parley/pkg/protocol"
)

// CompatClient talks to a local OpenAI-compatible endpoint (LM Studio,
// MLX server). It reuses the OpenAI chat completions wire shape with
// local temperature defaults and no authentication.
type CompatClient struct {
	host        string
	model       string
	temperature float64
	httpClient  *httpclient.Client
}

func NewCompatClient(host, model string, temperature float64) *CompatClient {
	return &CompatClient{
		host:        host,
		model:       model,
		temperature: temperature,
		httpClient: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{
				Timeout: DefaultTimeoutSeconds * time.Second,
			}),
		),
	}
}

func (c *CompatClient) ModelName() string {
	return c.model
}

func (c *CompatClient) Close() error {
	return nil
}

func (c *CompatClient) GenerateResponse(ctx context.Context, req Request) (string, error) {
	messages := make([]openaiMessage, 0, len(req.History)+2)

	if req.SystemInstruction != "" {
		messages = append(messages, openaiMessage{Role: "system", Content: req.SystemInstruction})
	}
	for _, msg := range req.History {
		role, ok := protocol.NormalizeRole(string(msg.Role))
		if !ok || role == protocol.RoleSystem {
			continue
		}
		messages = append(messages, openaiMessage{Role: string(role), Content: msg.Content})
	}
	messages = append(messages, openaiMessage{Role: "user", Content: promptWithTextAttachment(req)})

	request := openaiRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   clampTokens(0, DefaultMaxTokens),
	}

	jsonData, err := json.Marshal(request)
	if err != nil {
		return "", NewClientError(c.model, fmt.Errorf("failed to marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.host+"/v1/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", NewClientError(c.model, fmt.Errorf("failed to create request: %w", err))
	}
	httpReq.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(jsonData)), nil
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", NewClientError(c.model, fmt.Errorf("failed to make request: %w", err))
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", NewClientError(c.model, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body)))
	}

	var response openaiResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", NewClientError(c.model, fmt.Errorf("failed to decode response: %w", err))
	}
	if response.Error != nil {
		return "", NewClientError(c.model, fmt.Errorf("endpoint error: %s", response.Error.Message))
	}
	if len(response.Choices) == 0 {
		return "", NewClientError(c.model, fmt.Errorf("response contained no choices"))
	}
	return response.Choices[0].Message.Content, nil
}

func (c *CompatClient) TestConnection(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.host+"/v1/models", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return NewClientError(c.model, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return NewClientError(c.model, fmt.Errorf("endpoint returned status %d", resp.StatusCode))
	}
	return nil
}
