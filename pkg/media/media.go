// Package media normalizes files on disk into neutral attachment records
// for inclusion in a conversation turn's payload.
package media

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// Kind classifies an attachment.
type Kind string

const (
	KindImage Kind = "image"
	KindText  Kind = "text"
	KindCode  Kind = "code"
	KindVideo Kind = "video"
)

// videoChunkSize is the chunk granularity for base64 video payloads.
const videoChunkSize = 1 << 20 // 1 MiB

// Attachment is the neutral record handed to model clients.
// Invariants: image implies Base64, text/code imply TextContent,
// video implies VideoChunks with ChunkCount = ceil(byteLen / 1 MiB).
type Attachment struct {
	Kind        Kind     `json:"kind"`
	Mime        string   `json:"mime"`
	Path        string   `json:"path"`
	Width       int      `json:"width,omitempty"`
	Height      int      `json:"height,omitempty"`
	DurationSec float64  `json:"duration_sec,omitempty"`
	Base64      string   `json:"base64,omitempty"`
	TextContent string   `json:"text_content,omitempty"`
	VideoChunks []string `json:"video_chunks,omitempty"`
	ChunkCount  int      `json:"chunk_count,omitempty"`
	FPS         int      `json:"fps,omitempty"`
	Resolution  string   `json:"resolution,omitempty"`
}

var codeExtensions = map[string]bool{
	".go": true, ".py": true, ".js": true, ".ts": true, ".java": true,
	".c": true, ".cc": true, ".cpp": true, ".h": true, ".rs": true,
	".rb": true, ".sh": true, ".sql": true, ".yaml": true, ".yml": true,
	".json": true, ".html": true, ".css": true, ".toml": true,
}

var videoExtensions = map[string]string{
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".webm": "video/webm",
}

// Handler turns file paths into Attachments.
type Handler struct{}

// NewHandler returns a media handler.
func NewHandler() *Handler {
	return &Handler{}
}

// Process reads the file at path and returns its attachment record.
func (h *Handler) Process(path string) (*Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}

	ext := strings.ToLower(filepath.Ext(path))

	if mime, ok := videoExtensions[ext]; ok {
		return processVideo(path, mime, data), nil
	}

	if codeExtensions[ext] {
		return &Attachment{
			Kind:        KindCode,
			Mime:        "text/plain",
			Path:        path,
			TextContent: string(data),
		}, nil
	}

	detected := DetectImageMediaType(data)
	if isImageExt(ext) || strings.HasPrefix(http.DetectContentType(data), "image/") {
		return &Attachment{
			Kind:   KindImage,
			Mime:   detected,
			Path:   path,
			Base64: base64.StdEncoding.EncodeToString(data),
		}, nil
	}

	return &Attachment{
		Kind:        KindText,
		Mime:        "text/plain",
		Path:        path,
		TextContent: string(data),
	}, nil
}

func isImageExt(ext string) bool {
	switch ext {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp":
		return true
	}
	return false
}

func processVideo(path, mime string, data []byte) *Attachment {
	total := len(data)
	numChunks := (total + videoChunkSize - 1) / videoChunkSize

	chunks := make([]string, 0, numChunks)
	for i := 0; i < numChunks; i++ {
		start := i * videoChunkSize
		end := start + videoChunkSize
		if end > total {
			end = total
		}
		chunks = append(chunks, base64.StdEncoding.EncodeToString(data[start:end]))
	}

	return &Attachment{
		Kind:        KindVideo,
		Mime:        mime,
		Path:        path,
		VideoChunks: chunks,
		ChunkCount:  numChunks,
		FPS:         2,
	}
}

// TextStub downgrades an image attachment to a textual placeholder for
// models without vision capability. Other kinds pass through unchanged.
func TextStub(a *Attachment) *Attachment {
	if a == nil || a.Kind != KindImage {
		return a
	}
	return &Attachment{
		Kind:        KindText,
		Mime:        "text/plain",
		Path:        a.Path,
		TextContent: fmt.Sprintf("[This is an image with dimensions %dx%d]", a.Width, a.Height),
	}
}

// ContextLine describes the attachment for prefixing onto the first prompt.
func ContextLine(a *Attachment) string {
	if a == nil {
		return ""
	}
	line := fmt.Sprintf("Analyzing %s file: %s", a.Kind, a.Path)
	if a.Width > 0 && a.Height > 0 {
		line += fmt.Sprintf(" (%dx%d)", a.Width, a.Height)
	}
	if a.Kind == KindVideo && a.ChunkCount > 0 {
		line += fmt.Sprintf(" - FULL VIDEO CONTENT INCLUDED (in %d chunks)", a.ChunkCount)
		if a.FPS > 0 {
			line += fmt.Sprintf(" at %d fps", a.FPS)
		}
	}
	return line
}
