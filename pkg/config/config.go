// Package config defines the discussion configuration schema and its
// loading pipeline: YAML parse, environment expansion, defaults,
// validation.
package config

import (
	"fmt"
	"os"
	"strings"
)

// Mode selects the conversation regime.
type Mode string

const (
	// ModeAIAI has both participants role-play a human prompter.
	ModeAIAI Mode = "ai-ai"
	// ModeHumanAIAI has one human-persona side and one plain AI side.
	ModeHumanAIAI Mode = "human-aiai"
	// ModeNoMetaPrompting runs both sides with a minimal fixed instruction.
	ModeNoMetaPrompting Mode = "no-meta-prompting"
)

// NormalizeMode resolves mode aliases. "default" maps to
// no-meta-prompting. Unknown values pass through for Validate to reject.
func NormalizeMode(raw string) Mode {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "ai-ai", "aiai":
		return ModeAIAI
	case "human-aiai", "human-ai", "humai":
		return ModeHumanAIAI
	case "no-meta-prompting", "default", "":
		return ModeNoMetaPrompting
	default:
		return Mode(raw)
	}
}

// Tag returns the short mode tag used in artifact file names.
func (m Mode) Tag() string {
	switch m {
	case ModeAIAI:
		return "aiai"
	case ModeHumanAIAI:
		return "humai"
	default:
		return "defaults"
	}
}

// ModelSpec configures one participant model.
type ModelSpec struct {
	// Type is the catalog model id (e.g. "claude-3-7-sonnet", "gpt-4o",
	// "gemini-2.0-flash", "ollama-llama3.2").
	Type string `yaml:"type"`

	// Role assigns the participant side: "human" or "assistant".
	Role string `yaml:"role,omitempty"`

	// ReasoningLevel tunes reasoning-tier backends (low, medium, high).
	ReasoningLevel string `yaml:"reasoning_level,omitempty"`

	// ExtendedThinking enables extended thinking on Claude models.
	ExtendedThinking bool `yaml:"extended_thinking,omitempty"`

	// BudgetTokens is the extended thinking token budget.
	BudgetTokens int `yaml:"budget_tokens,omitempty"`
}

// Capabilities describes what a model type can do. Detection is a pure
// function of the type string.
type Capabilities struct {
	Vision    bool
	Reasoning bool
	Thinking  bool
	Local     bool
}

// DetectCapabilities derives model capabilities from the catalog id.
func DetectCapabilities(modelType string) Capabilities {
	t := strings.ToLower(modelType)
	caps := Capabilities{}

	switch {
	case strings.Contains(t, "gemini"),
		strings.Contains(t, "gpt-4o"), strings.Contains(t, "gpt-4.1"),
		strings.Contains(t, "claude-3"), strings.Contains(t, "sonnet"),
		strings.Contains(t, "opus"), strings.Contains(t, "haiku"):
		caps.Vision = true
	}

	if strings.HasPrefix(t, "o1") || strings.HasPrefix(t, "o3") {
		caps.Reasoning = true
	}
	if strings.Contains(t, "claude") || strings.Contains(t, "sonnet") || strings.Contains(t, "opus") {
		caps.Thinking = true
	}
	if strings.HasPrefix(t, "ollama") || strings.HasPrefix(t, "mlx") ||
		strings.HasPrefix(t, "lmstudio") || strings.HasPrefix(t, "pico") {
		caps.Local = true
	}

	return caps
}

// FileConfig points at a media file to attach to the first user turn.
type FileConfig struct {
	Path string `yaml:"path"`
}

// TimeoutConfig bounds individual model requests.
type TimeoutConfig struct {
	RequestSeconds int `yaml:"request_seconds,omitempty"`
}

// DiscussionConfig is the root configuration for one discussion run.
type DiscussionConfig struct {
	Goal   string `yaml:"goal"`
	Rounds int    `yaml:"rounds,omitempty"`
	// Turns is a legacy alias for Rounds; Rounds wins when both are set.
	Turns  int                  `yaml:"turns,omitempty"`
	Mode   string               `yaml:"mode,omitempty"`
	Models map[string]ModelSpec `yaml:"models"`

	InputFile *FileConfig    `yaml:"input_file,omitempty"`
	Timeouts  *TimeoutConfig `yaml:"timeouts,omitempty"`

	// OutputDir receives transcript and error artifacts.
	OutputDir string `yaml:"output_dir,omitempty"`

	LogLevel  string `yaml:"log_level,omitempty"`
	LogFormat string `yaml:"log_format,omitempty"`
}

// SetDefaults applies default values.
func (c *DiscussionConfig) SetDefaults() {
	if c.Rounds == 0 && c.Turns != 0 {
		c.Rounds = c.Turns
	}
	if c.Rounds == 0 {
		c.Rounds = 2
	}
	c.Mode = string(NormalizeMode(c.Mode))
	if c.OutputDir == "" {
		c.OutputDir = "."
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "simple"
	}
	if c.Timeouts == nil {
		c.Timeouts = &TimeoutConfig{}
	}
	if c.Timeouts.RequestSeconds == 0 {
		c.Timeouts.RequestSeconds = 90
	}

	for id, spec := range c.Models {
		if spec.ExtendedThinking && spec.BudgetTokens == 0 {
			spec.BudgetTokens = 8000
			c.Models[id] = spec
		}
	}
}

// Validate checks the configuration.
func (c *DiscussionConfig) Validate() error {
	if strings.TrimSpace(c.Goal) == "" {
		return fmt.Errorf("goal is required")
	}
	if c.Rounds < 1 {
		return fmt.Errorf("rounds must be >= 1, got %d", c.Rounds)
	}

	switch Mode(c.Mode) {
	case ModeAIAI, ModeHumanAIAI, ModeNoMetaPrompting:
	default:
		return fmt.Errorf("invalid mode %q (valid: ai-ai, human-aiai, no-meta-prompting, default)", c.Mode)
	}

	if len(c.Models) < 2 {
		return fmt.Errorf("at least two models are required, got %d", len(c.Models))
	}

	var humans int
	for id, spec := range c.Models {
		if spec.Type == "" {
			return fmt.Errorf("model %q: type is required", id)
		}
		switch spec.Role {
		case "human", "user":
			humans++
		case "assistant", "ai", "":
		default:
			return fmt.Errorf("model %q: invalid role %q (valid: human, assistant)", id, spec.Role)
		}
		switch spec.ReasoningLevel {
		case "", "low", "medium", "high", "auto":
		default:
			return fmt.Errorf("model %q: invalid reasoning_level %q", id, spec.ReasoningLevel)
		}
		if spec.BudgetTokens < 0 {
			return fmt.Errorf("model %q: budget_tokens must be >= 0", id)
		}
	}
	if humans == 0 {
		return fmt.Errorf("one model must have role 'human'")
	}

	if c.InputFile != nil && c.InputFile.Path != "" {
		if _, err := os.Stat(c.InputFile.Path); err != nil {
			return fmt.Errorf("input_file %q: %w", c.InputFile.Path, err)
		}
	}

	return nil
}

// HumanModel returns the id and spec of the human-persona participant.
func (c *DiscussionConfig) HumanModel() (string, ModelSpec, bool) {
	for id, spec := range c.Models {
		if spec.Role == "human" || spec.Role == "user" {
			return id, spec, true
		}
	}
	return "", ModelSpec{}, false
}

// AIModel returns the id and spec of the assistant participant.
func (c *DiscussionConfig) AIModel() (string, ModelSpec, bool) {
	for id, spec := range c.Models {
		switch spec.Role {
		case "human", "user":
		default:
			return id, spec, true
		}
	}
	return "", ModelSpec{}, false
}
