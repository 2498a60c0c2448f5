// Package sysprompt supplies the system instruction sent with every
// backend request.
package sysprompt

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/infinitepi-io/chatrix/internal/cache"
)

// Default is used when no prompt file is configured or the file cannot be read.
const Default = "You are a helpful AI assistant. Answer accurately and concisely."

// Source yields the system prompt.
type Source interface {
	SystemPrompt(ctx context.Context) string
}

// Static is a fixed system prompt.
type Static string

func (s Static) SystemPrompt(context.Context) string { return string(s) }

// File reads the prompt from disk once and keeps it in memory.
type File struct {
	path  string
	value *cache.Value[string]
}

// NewFile returns a source backed by the file at path.
func NewFile(path string) *File {
	f := &File{path: path}
	f.value = cache.New(f.read, 0)
	return f
}

// SystemPrompt returns the file content, or Default if the file is
// missing, unreadable or blank. Only a successful read is cached, so a
// file that appears later is picked up by the next request.
func (f *File) SystemPrompt(ctx context.Context) string {
	prompt, err := f.value.Get(ctx)
	if err != nil {
		slog.Warn("system prompt unavailable, using default", "path", f.path, "err", err)
		return Default
	}
	return prompt
}

func (f *File) read(context.Context) (string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return "", fmt.Errorf("read system prompt: %w", err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", fmt.Errorf("system prompt file %q is empty", f.path)
	}
	slog.Info("system prompt loaded", "path", f.path, "chars", len(prompt))
	return prompt, nil
}
