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

// GeminiClient talks to the Google Generative Language API. It is the
// multimodal backend: image and video attachments ride along as inline
// data parts. The decoded text is candidate 0's first text part.
type GeminiClient struct {
	apiKey     string
	model      string
	host       string
	spec       config.ModelSpec
	httpClient *httpclient.Client
}

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
	Error      *geminiError      `json:"error,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type geminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

func NewGeminiClient(apiKey, model string, spec config.ModelSpec) *GeminiClient {
	return &GeminiClient{
		apiKey: apiKey,
		model:  model,
		host:   "https://generativelanguage.googleapis.com",
		spec:   spec,
		httpClient: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{
				Timeout: DefaultTimeoutSeconds * time.Second,
			}),
			httpclient.WithHeaderParser(httpclient.ParseGeminiHeaders),
		),
	}
}

func (c *GeminiClient) ModelName() string {
	return c.model
}

func (c *GeminiClient) Close() error {
	return nil
}

func (c *GeminiClient) GenerateResponse(ctx context.Context, req Request) (string, error) {
	request := c.buildRequest(req)

	response, err := c.makeRequest(ctx, request)
	if err != nil {
		return "", NewClientError(c.model, err)
	}
	if response.Error != nil {
		return "", NewClientError(c.model, fmt.Errorf("gemini API error: %s", response.Error.Message))
	}
	if len(response.Candidates) == 0 {
		return "", NewClientError(c.model, fmt.Errorf("gemini response contained no candidates"))
	}

	for _, part := range response.Candidates[0].Content.Parts {
		if part.Text != "" {
			return part.Text, nil
		}
	}
	return "", NewClientError(c.model, fmt.Errorf("gemini candidate contained no text part"))
}

func (c *GeminiClient) TestConnection(ctx context.Context) error {
	_, err := c.GenerateResponse(ctx, Request{Prompt: "Respond with OK."})
	return err
}

func (c *GeminiClient) buildRequest(req Request) geminiRequest {
	contents := make([]geminiContent, 0, len(req.History)+1)

	for _, msg := range req.History {
		role, ok := protocol.NormalizeRole(string(msg.Role))
		if !ok || role == protocol.RoleSystem {
			continue
		}
		// Gemini names the assistant side "model".
		geminiRole := "user"
		if role == protocol.RoleAssistant {
			geminiRole = "model"
		}
		contents = append(contents, geminiContent{
			Role:  geminiRole,
			Parts: geminiParts(msg),
		})
	}

	contents = append(contents, geminiContent{
		Role:  "user",
		Parts: geminiParts(protocol.Message{Content: req.Prompt, Attachment: req.Attachment}),
	})

	request := geminiRequest{
		Contents: contents,
		GenerationConfig: &geminiGenerationConfig{
			Temperature:     DefaultChatTemperature,
			MaxOutputTokens: clampTokens(0, DefaultMaxTokens),
		},
	}
	if req.SystemInstruction != "" {
		request.SystemInstruction = &geminiContent{
			Parts: []geminiPart{{Text: req.SystemInstruction}},
		}
	}
	return request
}

func geminiParts(msg protocol.Message) []geminiPart {
	parts := []geminiPart{}

	if att := msg.Attachment; att != nil {
		switch att.Kind {
		case media.KindImage:
			parts = append(parts, geminiPart{
				InlineData: &geminiInlineData{MimeType: att.Mime, Data: att.Base64},
			})
		case media.KindVideo:
			for _, chunk := range att.VideoChunks {
				parts = append(parts, geminiPart{
					InlineData: &geminiInlineData{MimeType: att.Mime, Data: chunk},
				})
			}
		case media.KindText, media.KindCode:
			parts = append(parts, geminiPart{
				Text: fmt.Sprintf("File content (%s):\n%s", att.Path, att.TextContent),
			})
		}
	}

	if msg.Content != "" || len(parts) == 0 {
		parts = append(parts, geminiPart{Text: msg.Content})
	}
	return parts
}

func (c *GeminiClient) makeRequest(ctx context.Context, request geminiRequest) (*geminiResponse, error) {
	jsonData, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.host, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(jsonData)), nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var response geminiResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &response, nil
}
