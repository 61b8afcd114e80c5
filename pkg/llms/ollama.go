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

// OllamaClient talks to an Ollama-compatible local endpoint over the
// /api/chat protocol. No API key is required.
type OllamaClient struct {
	host        string
	model       string
	temperature float64
	httpClient  *httpclient.Client
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  ollamaOptions   `json:"options"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
	Error   string        `json:"error,omitempty"`
}

func NewOllamaClient(host, model string, temperature float64) *OllamaClient {
	return &OllamaClient{
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

func (c *OllamaClient) ModelName() string {
	return c.model
}

func (c *OllamaClient) Close() error {
	return nil
}

func (c *OllamaClient) GenerateResponse(ctx context.Context, req Request) (string, error) {
	messages := make([]ollamaMessage, 0, len(req.History)+2)

	if req.SystemInstruction != "" {
		messages = append(messages, ollamaMessage{Role: "system", Content: req.SystemInstruction})
	}
	for _, msg := range req.History {
		role, ok := protocol.NormalizeRole(string(msg.Role))
		if !ok || role == protocol.RoleSystem {
			continue
		}
		messages = append(messages, ollamaMessage{Role: string(role), Content: msg.Content})
	}
	messages = append(messages, ollamaMessage{Role: "user", Content: promptWithTextAttachment(req)})

	request := ollamaRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   false,
		Options: ollamaOptions{
			Temperature: c.temperature,
			NumPredict:  clampTokens(0, DefaultMaxTokens),
		},
	}

	jsonData, err := json.Marshal(request)
	if err != nil {
		return "", NewClientError(c.model, fmt.Errorf("failed to marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.host+"/api/chat", bytes.NewReader(jsonData))
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

	var response ollamaResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", NewClientError(c.model, fmt.Errorf("failed to decode response: %w", err))
	}
	if response.Error != "" {
		return "", NewClientError(c.model, fmt.Errorf("ollama error: %s", response.Error))
	}

	return response.Message.Content, nil
}

func (c *OllamaClient) TestConnection(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.host+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return NewClientError(c.model, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return NewClientError(c.model, fmt.Errorf("ollama endpoint returned status %d", resp.StatusCode))
	}
	return nil
}
