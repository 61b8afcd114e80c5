package instruction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleylab/parley/pkg/config"
	"github.com/parleylab/parley/pkg/protocol"
)

func TestAnalyzeEmptyHistory(t *testing.T) {
	vector := NewAnalyzer(config.ModeAIAI).Analyze(nil)

	assert.Empty(t, vector.TopicEvolution)
	assert.Equal(t, 0.5, vector.SemanticCoherence)
	assert.Equal(t, 0.5, vector.CognitiveLoad)
	assert.Equal(t, 0.5, vector.KnowledgeDepth)
	assert.Equal(t, 0.5, vector.EngagementMetrics["turn_taking_balance"])
}

func TestAnalyzeRanges(t *testing.T) {
	histories := [][]protocol.Message{
		{
			{Role: protocol.RoleUser, Content: "Maybe perhaps possibly this is unclear and uncertain, I think."},
			{Role: protocol.RoleAssistant, Content: "Therefore it follows, because the premise implies a contradiction."},
		},
		{
			{Role: protocol.RoleSystem, Content: "Discuss: thermodynamics"},
			{Role: protocol.RoleUser, Content: "Entropy entropy entropy! Entropy everywhere in thermodynamics systems."},
			{Role: protocol.RoleAssistant, Content: "Statistical interpretations characterize macroscopic irreversibility comprehensively."},
			{Role: protocol.RoleUser, Content: "Short."},
		},
		{
			{Role: protocol.RoleUser, Content: ""},
		},
	}

	for i, history := range histories {
		vector := NewAnalyzer(config.ModeHumanAIAI).Analyze(history)

		inRange := func(name string, v float64) {
			assert.GreaterOrEqual(t, v, 0.0, "history %d: %s", i, name)
			assert.LessOrEqual(t, v, 1.0, "history %d: %s", i, name)
		}

		inRange("coherence", vector.SemanticCoherence)
		inRange("load", vector.CognitiveLoad)
		inRange("depth", vector.KnowledgeDepth)
		for key, v := range vector.UncertaintyMarkers {
			inRange("uncertainty/"+key, v)
		}
		for key, v := range vector.ReasoningPatterns {
			inRange("reasoning/"+key, v)
		}
		for key, v := range vector.EngagementMetrics {
			inRange("engagement/"+key, v)
		}
	}
}

func TestAnalyzeDeterministic(t *testing.T) {
	history := []protocol.Message{
		{Role: protocol.RoleUser, Content: "Consider the halting problem and its implications for verification."},
		{Role: protocol.RoleAssistant, Content: "Verification tooling approximates; the halting problem bounds completeness."},
	}
	analyzer := NewAnalyzer(config.ModeAIAI)

	first := analyzer.Analyze(history)
	second := analyzer.Analyze(history)
	assert.Equal(t, first, second)
}

func TestAnalyzeWindow(t *testing.T) {
	var history []protocol.Message
	for i := 0; i < 30; i++ {
		role := protocol.RoleUser
		if i%2 == 1 {
			role = protocol.RoleAssistant
		}
		history = append(history, protocol.Message{Role: role, Content: "filler filler filler words"})
	}

	vector := NewAnalyzer(config.ModeAIAI).Analyze(history)
	// Only the trailing window contributes topics.
	assert.LessOrEqual(t, len(vector.TopicEvolution), analysisWindow)
}

func TestAnalyzeTracksUncertainty(t *testing.T) {
	vague := []protocol.Message{
		{Role: protocol.RoleUser, Content: "Maybe, perhaps, possibly. I think it might be unclear."},
		{Role: protocol.RoleAssistant, Content: "Hard to say, could be. Not sure at all, seems uncertain."},
	}
	confident := []protocol.Message{
		{Role: protocol.RoleUser, Content: "The result holds. The proof is complete and rigorous."},
		{Role: protocol.RoleAssistant, Content: "Agreed. The argument is airtight and final."},
	}

	analyzer := NewAnalyzer(config.ModeAIAI)
	assert.Greater(t,
		analyzer.Analyze(vague).UncertaintyMarkers["uncertainty"],
		analyzer.Analyze(confident).UncertaintyMarkers["uncertainty"])
}

func TestExtractTopic(t *testing.T) {
	// Most frequent content word wins.
	assert.Equal(t, "entropy", extractTopic("Entropy rises. Entropy always rises. Watch entropy."))

	// Ties break toward the lexicographically smaller word.
	topic := extractTopic("apple banana")
	assert.Equal(t, "apple", topic)

	// Stopwords and short words never become topics.
	assert.Equal(t, "", extractTopic("the and that this with for are was"))
	assert.Equal(t, "", extractTopic("a to of in on it is"))
}

func TestTopicSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, topicSimilarity("entropy", "entropy"))
	assert.Equal(t, 0.0, topicSimilarity("", "entropy"))
	assert.Greater(t, topicSimilarity("entropy", "entropic"), topicSimilarity("entropy", "banana"))
}

func TestTurnTakingBalance(t *testing.T) {
	assert.Equal(t, 0.5, turnTakingBalance(0, 0))
	assert.Equal(t, 1.0, turnTakingBalance(3, 3))
	assert.Equal(t, 0.5, turnTakingBalance(1, 2))
	assert.Equal(t, 0.0, turnTakingBalance(0, 4))
}

func TestCoherenceRepeatedTopic(t *testing.T) {
	analyzer := NewAnalyzer(config.ModeAIAI)

	// The same dominant topic in every message keeps coherence high.
	history := []protocol.Message{
		{Role: protocol.RoleUser, Content: "Gravity bends gravity waves, gravity is geometry."},
		{Role: protocol.RoleAssistant, Content: "Gravity as curvature: gravity explains orbits, gravity rules."},
		{Role: protocol.RoleUser, Content: "So gravity again: gravity gravity."},
	}
	vector := analyzer.Analyze(history)
	require.NotEmpty(t, vector.TopicEvolution)
	assert.GreaterOrEqual(t, vector.SemanticCoherence, 0.5)
}
