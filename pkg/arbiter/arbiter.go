// Package arbiter receives finished transcripts for comparative
// evaluation. The engine treats the evaluator as an opaque collaborator
// and only persists its output.
package arbiter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/parleylab/parley/pkg/conversation"
	"github.com/parleylab/parley/pkg/llms"
	"github.com/parleylab/parley/pkg/protocol"
)

// Submission is one mode's finished conversation with its run context.
type Submission struct {
	Run     conversation.RunContext
	History []protocol.Message
}

// Evaluator compares the submitted conversations against the goal.
type Evaluator interface {
	Evaluate(ctx context.Context, goal string, submissions []Submission) (string, error)
}

// SummaryEvaluator produces a plain-text comparative summary from
// transcript statistics. It stands in where no scoring model is wired.
type SummaryEvaluator struct{}

func NewSummaryEvaluator() *SummaryEvaluator {
	return &SummaryEvaluator{}
}

func (e *SummaryEvaluator) Evaluate(ctx context.Context, goal string, submissions []Submission) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Comparative evaluation\nGoal: %s\n\n", goal)

	for _, sub := range submissions {
		var userTurns, assistantTurns, systemNotes, tokens int
		for _, msg := range sub.History {
			switch msg.Role {
			case protocol.RoleUser:
				userTurns++
			case protocol.RoleAssistant:
				assistantTurns++
			default:
				systemNotes++
			}
			tokens += llms.EstimateTokens(msg.Content)
		}

		fmt.Fprintf(&b, "[%s] %d messages (%d user / %d assistant / %d system), ~%d tokens\n",
			sub.Run.Mode, len(sub.History), userTurns, assistantTurns, systemNotes, tokens)
		if sub.Run.HumanModel != "" || sub.Run.AIModel != "" {
			fmt.Fprintf(&b, "  models: human=%s ai=%s\n", sub.Run.HumanModel, sub.Run.AIModel)
		}
	}

	return b.String(), nil
}

// Persist writes an evaluation report next to the transcripts.
func Persist(dir, report string) (string, error) {
	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, fmt.Sprintf("evaluation_%s.txt", time.Now().Format("20060102-150405")))
	if err := os.WriteFile(path, []byte(report), 0644); err != nil {
		return "", fmt.Errorf("failed to write evaluation report: %w", err)
	}
	return path, nil
}
