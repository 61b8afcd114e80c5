package conversation

import "strings"

// ExtractCoreTopic derives the system topic line from the initial
// prompt. A "Topic:" marker wins over a "GOAL:" marker; with neither,
// the trimmed prompt is the topic. The function is idempotent on its
// own output.
func ExtractCoreTopic(initialPrompt string) string {
	prompt := strings.TrimSpace(initialPrompt)

	if idx := strings.Index(prompt, "Topic:"); idx >= 0 {
		rest := prompt[idx+len("Topic:"):]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[:nl]
		}
		return "Discuss: " + strings.TrimSpace(rest)
	}

	if idx := strings.Index(prompt, "GOAL:"); idx >= 0 {
		rest := prompt[idx+len("GOAL:"):]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[:nl]
		}
		// A parenthesized group inside the goal line is preferred.
		if open := strings.IndexByte(rest, '('); open >= 0 {
			if close := strings.IndexByte(rest[open:], ')'); close > 0 {
				rest = rest[open+1 : open+close]
			}
		}
		return "GOAL: " + strings.TrimSpace(rest)
	}

	return prompt
}
