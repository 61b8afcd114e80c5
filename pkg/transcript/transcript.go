// Package transcript renders finished conversations and fatal error
// reports as HTML artifacts.
package transcript

import (
	"embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/parleylab/parley/pkg/config"
	"github.com/parleylab/parley/pkg/media"
	"github.com/parleylab/parley/pkg/protocol"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var (
	pageTemplate  = template.Must(template.ParseFS(templateFS, "templates/transcript.html.tmpl"))
	fatalTemplate = template.Must(template.ParseFS(templateFS, "templates/fatal.html.tmpl"))

	nonWordRegex = regexp.MustCompile(`\W`)
)

// Writer persists artifacts into an output directory.
type Writer struct {
	dir string
	now func() time.Time
}

func NewWriter(dir string) *Writer {
	if dir == "" {
		dir = "."
	}
	return &Writer{dir: dir, now: time.Now}
}

type renderedMessage struct {
	Class    string
	Label    string
	Body     template.HTML
	FileNote string
}

type pageData struct {
	Title      string
	Mode       string
	HumanModel string
	AIModel    string
	Timestamp  string
	Messages   []renderedMessage
}

// SanitizePrompt produces the file name prompt prefix: first 50 chars
// with non-word characters replaced by underscores.
func SanitizePrompt(prompt string) string {
	trimmed := strings.TrimSpace(prompt)
	if len(trimmed) > 50 {
		trimmed = trimmed[:50]
	}
	return nonWordRegex.ReplaceAllString(trimmed, "_")
}

// FileName builds the transcript artifact name for a run.
func (w *Writer) FileName(mode config.Mode, prompt, humanModel, aiModel string) string {
	return fmt.Sprintf("conv-%s_%s_%s_%s_%s.html",
		mode.Tag(),
		SanitizePrompt(prompt),
		SanitizePrompt(humanModel),
		SanitizePrompt(aiModel),
		w.now().Format("01021504"),
	)
}

// Save renders the history to HTML and writes the transcript artifact.
// It returns the full path of the written file.
func (w *Writer) Save(history []protocol.Message, mode config.Mode, prompt, humanModel, aiModel string) (string, error) {
	data := pageData{
		Title:      "Conversation: " + strings.TrimSpace(prompt),
		Mode:       string(mode),
		HumanModel: humanModel,
		AIModel:    aiModel,
		Timestamp:  w.now().Format("2006-01-02 15:04:05"),
	}

	for _, msg := range history {
		data.Messages = append(data.Messages, renderMessage(msg, humanModel, aiModel))
	}

	var sb strings.Builder
	if err := pageTemplate.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("failed to render transcript: %w", err)
	}

	path := filepath.Join(w.dir, w.FileName(mode, prompt, humanModel, aiModel))
	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return "", fmt.Errorf("failed to write transcript: %w", err)
	}
	return path, nil
}

func renderMessage(msg protocol.Message, humanModel, aiModel string) renderedMessage {
	out := renderedMessage{}

	switch msg.Role {
	case protocol.RoleSystem:
		out.Class = "system-message"
		out.Label = "System"
	case protocol.RoleUser:
		out.Class = "human-message"
		out.Label = humanModel
	default:
		out.Class = "ai-message"
		out.Label = aiModel
	}

	// Model outputs are HTML fragments by instruction; render them as
	// markup rather than escaping.
	out.Body = template.HTML(msg.Content)

	if att := msg.Attachment; att != nil {
		out.FileNote = media.ContextLine(att)
	}
	return out
}

// FatalReport carries the fields of the fatal error artifact.
type FatalReport struct {
	Message      string
	Model        string
	Role         string
	Mode         string
	Domain       string
	MessageCount int
	Details      string
}

// SaveFatal writes the fatal error artifact and returns its path.
func (w *Writer) SaveFatal(report FatalReport) (string, error) {
	now := w.now()
	data := struct {
		FatalReport
		Time string
	}{FatalReport: report, Time: now.Format("2006-01-02 15:04:05")}

	var sb strings.Builder
	if err := fatalTemplate.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("failed to render fatal report: %w", err)
	}

	path := filepath.Join(w.dir, fmt.Sprintf("fatal_error_%s.html", now.Format("20060102-150405")))
	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return "", fmt.Errorf("failed to write fatal report: %w", err)
	}
	return path, nil
}
