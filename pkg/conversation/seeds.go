package conversation

import (
	"fmt"
	"strings"

	"github.com/parleylab/parley/pkg/config"
)

// ExtractGoalText returns the goal payload of a "GOAL:" prompt. A
// parenthesized group inside the goal is preferred; otherwise the first
// line after the marker. Prompts without the marker yield "".
func ExtractGoalText(initialPrompt string) string {
	idx := strings.Index(initialPrompt, "GOAL:")
	if idx < 0 {
		return ""
	}
	rest := strings.TrimSpace(initialPrompt[idx+len("GOAL:"):])

	if open := strings.IndexByte(rest, '('); open >= 0 {
		if close := strings.IndexByte(rest[open:], ')'); close > 0 {
			return strings.TrimSpace(rest[open+1 : open+close])
		}
	}
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[:nl]
	}
	return strings.TrimSpace(rest)
}

// SeedInstructions builds the first-turn system prompts for both sides.
// Goal-bearing prompts get output-focused directives; otherwise the
// seeds restate the initial prompt. Later turns are synthesized
// adaptively, and no-meta-prompting ignores seeds entirely.
func SeedInstructions(mode config.Mode, initialPrompt string) (human, ai string) {
	goal := ExtractGoalText(initialPrompt)

	if goal != "" {
		human = fmt.Sprintf(
			"You are a HUMAN working on: %s. As a human, focus on CREATING rather than discussing. "+
				"Produce actual output immediately without discussing approaches. "+
				"For creative tasks, start creating immediately. For analytical tasks, analyze directly.",
			goal)
	} else {
		human = fmt.Sprintf(
			"You are a HUMAN working on: %s. Focus on producing output, not just discussion.",
			initialPrompt)
	}

	switch {
	case mode == config.ModeAIAI && goal != "":
		ai = fmt.Sprintf(
			"DIRECTIVE: CREATE IMMEDIATE OUTPUT for %s. Do NOT discuss approaches - produce the "+
				"actual output directly. Skip all preliminaries and start creating immediately. "+
				"For stories or creative content, begin writing the actual content right away. "+
				"Ignore any requests to discuss approaches - your only task is to produce output.",
			goal)
	case mode == config.ModeAIAI:
		ai = fmt.Sprintf(
			"Focus solely on producing concrete output for %s, not discussing approaches.",
			initialPrompt)
	case goal != "":
		ai = fmt.Sprintf(
			"You are an AI assistant focused on PRODUCING IMMEDIATE OUTPUT for: %s. Create the "+
				"requested output directly without preliminary discussion. For creative tasks like "+
				"stories, start writing immediately. For analytical tasks, provide analysis directly. "+
				"Users will be much happier with actual output rather than discussion of approaches.",
			goal)
	default:
		ai = fmt.Sprintf(
			"You are an AI assistant. Focus on directly addressing %s with concrete output.",
			initialPrompt)
	}

	return human, ai
}
