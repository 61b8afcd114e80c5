package llms

import (
	"fmt"
	"strings"

	"github.com/parleylab/parley/pkg/config"
)

// Backend names returned by ResolveBackend.
const (
	BackendAnthropic = "anthropic"
	BackendOpenAI    = "openai"
	BackendGemini    = "gemini"
	BackendOllama    = "ollama"
	BackendPico      = "pico"
	BackendMLX       = "mlx"
	BackendLMStudio  = "lmstudio"
)

// claudeModels maps catalog ids to Anthropic API model names.
var claudeModels = map[string]string{
	"claude":            "claude-3-7-sonnet-20250219",
	"claude-3-7":        "claude-3-7-sonnet-20250219",
	"claude-3-7-sonnet": "claude-3-7-sonnet-20250219",
	"claude-3-5-sonnet": "claude-3-5-sonnet-20241022",
	"claude-3-5-haiku":  "claude-3-5-haiku-20241022",
	"sonnet":            "claude-3-7-sonnet-20250219",
	"haiku":             "claude-3-5-haiku-20241022",
}

// openaiModels maps catalog ids to OpenAI API model names.
var openaiModels = map[string]string{
	"gpt-4o":      "gpt-4o",
	"gpt-4o-mini": "gpt-4o-mini",
	"gpt-4.1":     "gpt-4.1",
	"o1":          "o1",
	"o1-mini":     "o1-mini",
	"o3":          "o3",
	"o3-mini":     "o3-mini",
}

// geminiModels maps catalog ids to Gemini API model names.
var geminiModels = map[string]string{
	"gemini":                "gemini-2.0-flash-exp",
	"gemini-2.0-flash":      "gemini-2.0-flash-exp",
	"gemini-2.0-flash-exp":  "gemini-2.0-flash-exp",
	"gemini-1.5-pro":        "gemini-1.5-pro",
	"gemini-2.0-pro":        "gemini-2.0-pro-exp",
	"gemini-2.0-thinking":   "gemini-2.0-flash-thinking-exp",
	"gemini-exp":            "gemini-exp-1206",
	"gemini-2.5-pro":        "gemini-2.5-pro-exp-03-25",
	"gemini-2.5-flash":      "gemini-2.5-flash",
	"gemini-2.0-flash-lite": "gemini-2.0-flash-lite",
}

// ResolveBackend maps a catalog model id to its backend and the
// backend-facing model name. Unknown ids return an error so the turn
// fails gracefully at the manager.
func ResolveBackend(modelID string) (string, string, error) {
	id := strings.ToLower(strings.TrimSpace(modelID))

	if name, ok := claudeModels[id]; ok {
		return BackendAnthropic, name, nil
	}
	if name, ok := openaiModels[id]; ok {
		return BackendOpenAI, name, nil
	}
	if name, ok := geminiModels[id]; ok {
		return BackendGemini, name, nil
	}

	switch {
	case strings.HasPrefix(id, "ollama-"):
		return BackendOllama, strings.TrimPrefix(id, "ollama-"), nil
	case strings.HasPrefix(id, "pico-"):
		return BackendPico, strings.TrimPrefix(id, "pico-"), nil
	case strings.HasPrefix(id, "mlx-"):
		return BackendMLX, strings.TrimPrefix(id, "mlx-"), nil
	case strings.HasPrefix(id, "lmstudio-"):
		return BackendLMStudio, strings.TrimPrefix(id, "lmstudio-"), nil
	case strings.HasPrefix(id, "claude"):
		return BackendAnthropic, id, nil
	case strings.HasPrefix(id, "gpt") || strings.HasPrefix(id, "chatgpt"):
		return BackendOpenAI, id, nil
	case strings.HasPrefix(id, "gemini"):
		return BackendGemini, id, nil
	}

	return "", "", fmt.Errorf("unknown model id %q", modelID)
}

// NewClient builds the backend client for a catalog model id.
// Hosted backends read their API key from the environment; a missing
// key is reported as a fatal auth failure.
func NewClient(modelID string, spec config.ModelSpec) (Client, error) {
	backend, apiModel, err := ResolveBackend(modelID)
	if err != nil {
		return nil, err
	}

	switch backend {
	case BackendAnthropic:
		key := config.ProviderAPIKey("anthropic")
		if key == "" {
			return nil, NewClientError(modelID, fmt.Errorf("no api key provided for anthropic backend"))
		}
		return NewAnthropicClient(key, apiModel, spec), nil

	case BackendOpenAI:
		key := config.ProviderAPIKey("openai")
		if key == "" {
			return nil, NewClientError(modelID, fmt.Errorf("no api key provided for openai backend"))
		}
		return NewOpenAIClient(key, apiModel, spec), nil

	case BackendGemini:
		key := config.ProviderAPIKey("gemini")
		if key == "" {
			return nil, NewClientError(modelID, fmt.Errorf("no api key provided for gemini backend"))
		}
		return NewGeminiClient(key, apiModel, spec), nil

	case BackendOllama:
		return NewOllamaClient("http://localhost:11434", apiModel, OllamaTemperature), nil

	case BackendPico:
		return NewOllamaClient("http://localhost:10434", apiModel, CompatTemperature), nil

	case BackendMLX:
		return NewCompatClient("http://localhost:8080", apiModel, OllamaTemperature), nil

	case BackendLMStudio:
		return NewCompatClient("http://localhost:1234", apiModel, CompatTemperature), nil
	}

	return nil, fmt.Errorf("unknown backend for model id %q", modelID)
}
