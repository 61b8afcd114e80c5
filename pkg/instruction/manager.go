// Package instruction synthesizes per-turn system prompts from rolling
// conversation state. A context analyzer scores the recent history,
// a selector picks one of four base templates, and a customizer layers
// persona and guideline blocks on top.
package instruction

import (
	"errors"
	"fmt"
	"strings"

	"github.com/parleylab/parley/pkg/config"
	"github.com/parleylab/parley/pkg/logger"
	"github.com/parleylab/parley/pkg/protocol"
)

// TokensPerTurn is the per-turn output budget quoted by the adaptive
// templates.
const TokensPerTurn = 1024

// MinimalTokensPerTurn is the larger budget quoted by the fixed minimal
// instruction in no-meta-prompting runs.
const MinimalTokensPerTurn = 2048

// MinimalFallback is returned when the template registry is unusable.
const MinimalFallback = "You are a helpful assistant. Think step by step as needed."

// Manager generates adaptive instructions for one conversation mode.
type Manager struct {
	mode      config.Mode
	analyzer  *Analyzer
	templates *TemplateRegistry
}

// NewManager builds a Manager over the given template registry.
func NewManager(mode config.Mode, templates *TemplateRegistry) *Manager {
	return &Manager{
		mode:      mode,
		analyzer:  NewAnalyzer(mode),
		templates: templates,
	}
}

// GenerateInstructions produces the system instruction for the next
// turn. It never fails the turn: selection and customization errors
// degrade to fixed fallback instructions.
func (m *Manager) GenerateInstructions(history []protocol.Message, domain string, role protocol.Role) string {
	log := logger.GetLogger()

	if err := validateInput(domain, role); err != nil {
		log.Warn("invalid instruction input, using minimal fallback", "error", err)
		return MinimalFallback
	}

	vector := m.analyzer.Analyze(history)

	name, template, err := m.selectTemplate(vector)
	if err != nil {
		log.Warn("template selection failed, using minimal fallback", "error", err)
		return MinimalFallback
	}
	log.Debug("selected instruction template", "template", name)

	instructions, err := m.customize(template, vector, domain, role)
	if err != nil {
		log.Warn("template customization failed, using domain fallback", "error", err)
		return fmt.Sprintf("You are discussing %s. Be helpful and think step by step.", domain)
	}
	return instructions
}

// validateInput rejects generation requests with no domain or an
// unknown role before any analysis work happens.
func validateInput(domain string, role protocol.Role) error {
	if strings.TrimSpace(domain) == "" {
		return fmt.Errorf("%w: empty domain", ErrInvalidInput)
	}
	switch role {
	case protocol.RoleUser, protocol.RoleAssistant:
		return nil
	default:
		return fmt.Errorf("%w: role %q", ErrInvalidInput, role)
	}
}

// selectTemplate picks a template by the context vector. All four base
// templates for the mode must be registered.
func (m *Manager) selectTemplate(vector *ContextVector) (string, string, error) {
	prefix := ""
	if m.mode == config.ModeAIAI {
		prefix = "ai-ai-"
	}

	if m.templates.Count() == 0 {
		return "", "", fmt.Errorf("%w: no templates available", ErrTemplateNotFound)
	}

	available := map[string]string{}
	for _, base := range baseTemplateNames {
		name := prefix + base
		text, ok := m.templates.Get(name)
		if !ok {
			return "", "", fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
		}
		available[base] = text
	}

	switch {
	case len(vector.TopicEvolution) < 2:
		return prefix + "exploratory", available["exploratory"], nil
	case vector.SemanticCoherence < 0.5:
		return prefix + "structured", available["structured"], nil
	case vector.CognitiveLoad > 0.8:
		return prefix + "synthesis", available["synthesis"], nil
	case vector.KnowledgeDepth > 0.8:
		return prefix + "critical", available["critical"], nil
	default:
		return prefix + "exploratory", available["exploratory"], nil
	}
}

// customize layers persona, guideline, and formatting blocks onto the
// selected template. Human-persona customization applies in ai-ai mode
// and on user turns; otherwise only placeholder substitution happens.
func (m *Manager) customize(template string, vector *ContextVector, domain string, role protocol.Role) (string, error) {
	humanSide := m.mode == config.ModeAIAI || role == protocol.RoleUser

	base, err := substitute(template, domain, TokensPerTurn)
	if err != nil {
		return "", errors.Join(ErrTemplateCustomization, err)
	}

	if !humanSide {
		return base, nil
	}

	var b strings.Builder
	b.WriteString(base)
	b.WriteString("\n")
	b.WriteString(strings.ReplaceAll(humanPersonaBlock, "{domain}", domain))

	if mods := m.modifications(vector, domain); len(mods) > 0 {
		b.WriteString("\n\nAdditional Guidelines:\n- ")
		b.WriteString(strings.Join(mods, "\n- "))
	}

	b.WriteString("\n")
	b.WriteString(rolePersona)

	if role == protocol.RoleUser {
		b.WriteString("\n")
		switch m.mode {
		case config.ModeHumanAIAI:
			b.WriteString(specialHumanInstruction)
		case config.ModeAIAI:
			b.WriteString(aiaiStructureNote)
		default:
			b.WriteString(htmlFormatNote)
		}
	}

	b.WriteString("\n")
	b.WriteString(fmt.Sprintf(outputFooter, TokensPerTurn))

	return strings.TrimSpace(b.String()), nil
}

// modifications derives context-conditional guideline lines.
func (m *Manager) modifications(vector *ContextVector, domain string) []string {
	var mods []string

	if vector.UncertaintyMarkers["uncertainty"] > 0.6 {
		mods = append(mods, "Request specific clarification on unclear points")
	}
	if vector.ReasoningPatterns["deductive"] < 0.3 {
		mods = append(mods, "Encourage logical reasoning and clear arguments")
	}
	if m.mode == config.ModeAIAI {
		if vector.ReasoningPatterns["formal_logic"] < 0.3 {
			mods = append(mods, "Use more formal logical structures in responses")
		}
		if vector.ReasoningPatterns["technical"] < 0.4 {
			mods = append(mods, "Increase use of precise technical terminology")
		}
	}
	if vector.EngagementMetrics["turn_taking_balance"] < 0.4 {
		mods = append(mods, "Ask more follow-up questions to maintain engagement")
	}
	if strings.Contains(strings.ToLower(domain), "goal") {
		mods = append(mods, fmt.Sprintf("** Focus on achieving the specified goal! %s **", domain))
	}

	return mods
}
