package instruction

import (
	"regexp"
	"strings"

	"github.com/parleylab/parley/pkg/config"
	"github.com/parleylab/parley/pkg/protocol"
)

// analysisWindow bounds how much history the analyzer walks.
const analysisWindow = 10

// topicSimilarityThreshold decides whether two adjacent topics count as
// a matched transition.
const topicSimilarityThreshold = 0.3

// ContextVector is the numeric summary of rolling conversation state.
// Every scalar and map value lies in [0,1]; scalars default to 0.5 when
// there is not enough data to measure.
type ContextVector struct {
	TopicEvolution     []string
	SemanticCoherence  float64
	CognitiveLoad      float64
	KnowledgeDepth     float64
	UncertaintyMarkers map[string]float64
	ReasoningPatterns  map[string]float64
	EngagementMetrics  map[string]float64
}

// Analyzer computes ContextVectors from history with deterministic
// lexical heuristics.
type Analyzer struct {
	mode config.Mode
}

func NewAnalyzer(mode config.Mode) *Analyzer {
	return &Analyzer{mode: mode}
}

var wordRegex = regexp.MustCompile(`[A-Za-z][A-Za-z0-9'-]*`)

var stopwords = map[string]bool{
	"the": true, "and": true, "that": true, "this": true, "with": true,
	"for": true, "are": true, "was": true, "were": true, "have": true,
	"has": true, "had": true, "but": true, "not": true, "you": true,
	"your": true, "from": true, "they": true, "their": true, "them": true,
	"what": true, "when": true, "where": true, "which": true, "would": true,
	"could": true, "should": true, "about": true, "into": true, "than": true,
	"then": true, "there": true, "here": true, "more": true, "most": true,
	"some": true, "such": true, "also": true, "been": true, "being": true,
	"will": true, "can": true, "may": true, "its": true, "it's": true,
	"how": true, "why": true, "who": true, "all": true, "any": true,
	"each": true, "our": true, "out": true, "over": true, "very": true,
}

var uncertaintyWords = []string{
	"maybe", "perhaps", "possibly", "might", "unclear", "uncertain",
	"not sure", "unsure", "don't know", "hard to say", "could be",
	"i think", "i guess", "seems",
}

var deductiveMarkers = []string{
	"therefore", "thus", "hence", "because", "it follows", "consequently",
	"as a result", "so we can conclude",
}

var formalLogicMarkers = []string{
	"if and only if", "implies", "contradiction", "premise", "axiom",
	"necessary condition", "sufficient condition", "qed", "lemma",
}

// Analyze walks the last messages of history and populates a
// ContextVector. Pure function of its input.
func (a *Analyzer) Analyze(history []protocol.Message) *ContextVector {
	window := history
	if len(window) > analysisWindow {
		window = window[len(window)-analysisWindow:]
	}

	vector := &ContextVector{
		SemanticCoherence:  0.5,
		CognitiveLoad:      0.5,
		KnowledgeDepth:     0.5,
		UncertaintyMarkers: map[string]float64{},
		ReasoningPatterns:  map[string]float64{},
		EngagementMetrics:  map[string]float64{},
	}

	var allWords []string
	var sentenceCount int
	var userTurns, assistantTurns int

	for _, msg := range window {
		if msg.Role != protocol.RoleSystem {
			if topic := extractTopic(msg.Content); topic != "" {
				vector.TopicEvolution = append(vector.TopicEvolution, topic)
			}
		}
		switch msg.Role {
		case protocol.RoleUser:
			userTurns++
		case protocol.RoleAssistant:
			assistantTurns++
		}

		words := tokenize(msg.Content)
		allWords = append(allWords, words...)
		sentenceCount += strings.Count(msg.Content, ".") +
			strings.Count(msg.Content, "?") + strings.Count(msg.Content, "!")
	}

	if len(window) >= 2 {
		vector.SemanticCoherence = a.coherence(vector.TopicEvolution, len(window))
	}
	if len(allWords) > 0 {
		vector.CognitiveLoad = cognitiveLoad(allWords, sentenceCount)
		vector.KnowledgeDepth = knowledgeDepth(allWords)
		vector.UncertaintyMarkers["uncertainty"] = markerDensity(window, uncertaintyWords)
		vector.ReasoningPatterns["deductive"] = markerDensity(window, deductiveMarkers)
		vector.ReasoningPatterns["formal_logic"] = markerDensity(window, formalLogicMarkers)
		vector.ReasoningPatterns["technical"] = technicalDensity(allWords)
	}
	vector.EngagementMetrics["turn_taking_balance"] = turnTakingBalance(userTurns, assistantTurns)

	return vector
}

// coherence is 1 minus the fraction of topic transitions unmatched
// against the preceding 3 topics.
func (a *Analyzer) coherence(topics []string, messages int) float64 {
	if len(topics) < 2 || messages == 0 {
		return 0.5
	}

	unmatched := 0
	for i := 1; i < len(topics); i++ {
		start := i - 3
		if start < 0 {
			start = 0
		}
		matched := false
		for _, prev := range topics[start:i] {
			if topicSimilarity(topics[i], prev) >= topicSimilarityThreshold {
				matched = true
				break
			}
		}
		if !matched {
			unmatched++
		}
	}

	return clamp01(1 - float64(unmatched)/float64(messages))
}

func tokenize(content string) []string {
	return wordRegex.FindAllString(strings.ToLower(content), -1)
}

// extractTopic picks the most frequent content word of a message.
func extractTopic(content string) string {
	counts := map[string]int{}
	for _, word := range tokenize(content) {
		if len(word) < 4 || stopwords[word] {
			continue
		}
		counts[word]++
	}

	best := ""
	bestCount := 0
	for word, count := range counts {
		if count > bestCount || (count == bestCount && word < best) {
			best = word
			bestCount = count
		}
	}
	return best
}

// topicSimilarity measures character trigram overlap between topics.
func topicSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	gramsA := trigrams(a)
	gramsB := trigrams(b)
	if len(gramsA) == 0 || len(gramsB) == 0 {
		return 0
	}

	shared := 0
	for gram := range gramsA {
		if gramsB[gram] {
			shared++
		}
	}
	union := len(gramsA) + len(gramsB) - shared
	return float64(shared) / float64(union)
}

func trigrams(s string) map[string]bool {
	grams := map[string]bool{}
	for i := 0; i+3 <= len(s); i++ {
		grams[s[i:i+3]] = true
	}
	return grams
}

// cognitiveLoad scales average sentence length against a 30-word ceiling.
func cognitiveLoad(words []string, sentences int) float64 {
	if sentences == 0 {
		sentences = 1
	}
	avgSentenceLen := float64(len(words)) / float64(sentences)
	return clamp01(avgSentenceLen / 30)
}

// knowledgeDepth scales the density of long words.
func knowledgeDepth(words []string) float64 {
	long := 0
	for _, word := range words {
		if len(word) >= 9 {
			long++
		}
	}
	return clamp01(float64(long) / float64(len(words)) * 5)
}

func technicalDensity(words []string) float64 {
	technical := 0
	for _, word := range words {
		if len(word) >= 11 || strings.Contains(word, "-") {
			technical++
		}
	}
	return clamp01(float64(technical) / float64(len(words)) * 8)
}

// markerDensity counts marker phrase hits per message, scaled.
func markerDensity(window []protocol.Message, markers []string) float64 {
	if len(window) == 0 {
		return 0
	}
	hits := 0
	for _, msg := range window {
		content := strings.ToLower(msg.Content)
		for _, marker := range markers {
			hits += strings.Count(content, marker)
		}
	}
	return clamp01(float64(hits) / float64(len(window)))
}

func turnTakingBalance(userTurns, assistantTurns int) float64 {
	if userTurns == 0 && assistantTurns == 0 {
		return 0.5
	}
	min, max := userTurns, assistantTurns
	if min > max {
		min, max = max, min
	}
	if max == 0 {
		return 0
	}
	return clamp01(float64(min) / float64(max))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
