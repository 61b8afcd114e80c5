package protocol

import (
	"github.com/parleylab/parley/pkg/media"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is the neutral message shape exchanged between the conversation
// manager and model clients. Attachment is set only on the first user turn
// of a conversation.
type Message struct {
	Role       Role              `json:"role"`
	Content    string            `json:"content"`
	Attachment *media.Attachment `json:"attachment,omitempty"`
}

// NormalizeRole maps external role spellings onto the canonical set.
// "human" is an alias of "user"; "developer" is folded into "system".
// The second return value is false for roles that must be dropped.
func NormalizeRole(raw string) (Role, bool) {
	switch raw {
	case "user", "human", "HUMAN", "Human", "moderator":
		return RoleUser, true
	case "assistant":
		return RoleAssistant, true
	case "system", "developer":
		return RoleSystem, true
	default:
		return "", false
	}
}

// CopyHistory returns a defensive copy of the history slice. Message values
// are copied; attachments are shared (they are read-only after ingest).
func CopyHistory(history []Message) []Message {
	if history == nil {
		return nil
	}
	out := make([]Message, len(history))
	copy(out, history)
	return out
}

// SwapRoles returns a copy of the history with user and assistant exchanged.
// System messages pass through unchanged. Length and order are preserved.
func SwapRoles(history []Message) []Message {
	out := make([]Message, len(history))
	for i, msg := range history {
		switch msg.Role {
		case RoleUser:
			msg.Role = RoleAssistant
		case RoleAssistant:
			msg.Role = RoleUser
		}
		out[i] = msg
	}
	return out
}
