package utils

import (
	"embed"
	"fmt"
	"io/fs"
	"strings"
)

//go:embed prompts
var promptFiles embed.FS

// LoadPrompt loads a prompt from the embedded markdown files
func LoadPrompt(path string) (string, error) {
	content, err := promptFiles.ReadFile(fmt.Sprintf("prompts/%s.md", path))
	if err != nil {
		return "", fmt.Errorf("failed to load prompt %s: %w", path, err)
	}
	return string(content), nil
}

// ListPrompts returns every embedded prompt path without the .md suffix.
func ListPrompts() ([]string, error) {
	var out []string
	err := fs.WalkDir(promptFiles, "prompts", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(p, ".md") {
			return err
		}
		out = append(out, strings.TrimSuffix(strings.TrimPrefix(p, "prompts/"), ".md"))
		return nil
	})
	return out, err
}
