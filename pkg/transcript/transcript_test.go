package transcript

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleylab/parley/pkg/config"
	"github.com/parleylab/parley/pkg/media"
	"github.com/parleylab/parley/pkg/protocol"
)

var fixedTime = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

func newTestWriter(t *testing.T) *Writer {
	t.Helper()
	w := NewWriter(t.TempDir())
	w.now = func() time.Time { return fixedTime }
	return w
}

func TestSanitizePrompt(t *testing.T) {
	tests := []struct {
		name   string
		prompt string
		want   string
	}{
		{"plain", "hello world", "hello_world"},
		{"punctuation", "What? Really!", "What__Really_"},
		{"trimmed", "  spaced  ", "spaced"},
		{
			"truncated to 50",
			"aaaaaaaaaabbbbbbbbbbccccccccccddddddddddeeeeeeeeeeffffffffff",
			"aaaaaaaaaabbbbbbbbbbccccccccccddddddddddeeeeeeeeee",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizePrompt(tt.prompt)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, len(got), 50)
		})
	}
}

func TestFileName(t *testing.T) {
	w := newTestWriter(t)

	tests := []struct {
		mode config.Mode
		want string
	}{
		{config.ModeAIAI, "conv-aiai_Discuss__ethics_claude_3_7_sonnet_gpt_4o_03141509.html"},
		{config.ModeHumanAIAI, "conv-humai_Discuss__ethics_claude_3_7_sonnet_gpt_4o_03141509.html"},
		{config.ModeNoMetaPrompting, "conv-defaults_Discuss__ethics_claude_3_7_sonnet_gpt_4o_03141509.html"},
	}

	for _, tt := range tests {
		got := w.FileName(tt.mode, "Discuss: ethics", "claude-3-7-sonnet", "gpt-4o")
		assert.Equal(t, tt.want, got)
	}
}

func TestSave(t *testing.T) {
	w := newTestWriter(t)

	history := []protocol.Message{
		{Role: protocol.RoleSystem, Content: "Discuss: ethics"},
		{Role: protocol.RoleUser, Content: "<p>Opening question</p>"},
		{Role: protocol.RoleAssistant, Content: "<p>Considered answer</p>"},
	}

	path, err := w.Save(history, config.ModeAIAI, "Discuss: ethics", "claude", "gpt-4o")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	page := string(data)

	assert.Contains(t, page, "system-message")
	assert.Contains(t, page, "human-message")
	assert.Contains(t, page, "ai-message")
	// Model outputs are HTML fragments and must not be escaped.
	assert.Contains(t, page, "<p>Opening question</p>")
	assert.Contains(t, page, "<p>Considered answer</p>")
	assert.Contains(t, page, "claude")
	assert.Contains(t, page, "gpt-4o")
}

func TestSaveWithAttachment(t *testing.T) {
	w := newTestWriter(t)

	history := []protocol.Message{
		{Role: protocol.RoleSystem, Content: "topic"},
		{
			Role:    protocol.RoleUser,
			Content: "look at this",
			Attachment: &media.Attachment{
				Kind: media.KindImage,
				Path: "chart.png",
			},
		},
	}

	path, err := w.Save(history, config.ModeHumanAIAI, "topic", "h", "a")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Analyzing image file: chart.png")
}

func TestSaveFatal(t *testing.T) {
	w := newTestWriter(t)

	path, err := w.SaveFatal(FatalReport{
		Message:      "connection refused",
		Model:        "gpt-4o",
		Role:         "user",
		Mode:         "ai-ai",
		Domain:       "Discuss: ethics",
		MessageCount: 7,
		Details:      "dial tcp 127.0.0.1:443: connection refused",
	})
	require.NoError(t, err)

	assert.Equal(t, "fatal_error_20260314-150926.html", filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	page := string(data)

	assert.Contains(t, page, "connection refused")
	assert.Contains(t, page, "gpt-4o")
	assert.Contains(t, page, "ai-ai")
	assert.Contains(t, page, "Discuss: ethics")
	assert.Contains(t, page, "7")
}
