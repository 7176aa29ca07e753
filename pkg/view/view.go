// Package view renders a classification handoff for display.
package view

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/menta2k/image-classifier/pkg/types"
)

// Render writes the image reference followed by the report text as-is
func Render(w io.Writer, h types.Handoff) error {
	if _, err := fmt.Fprintf(w, "image: %s\n", h.ImageRef); err != nil {
		return err
	}
	if h.Report == "" {
		return nil
	}
	_, err := fmt.Fprintln(w, h.Report)
	return err
}

// WriteJSON stores a handoff so another process can display it
func WriteJSON(path string, h types.Handoff) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal handoff: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadJSON loads a handoff written by WriteJSON
func ReadJSON(path string) (types.Handoff, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Handoff{}, fmt.Errorf("failed to read handoff: %w", err)
	}
	var h types.Handoff
	if err := json.Unmarshal(data, &h); err != nil {
		return types.Handoff{}, fmt.Errorf("failed to parse handoff: %w", err)
	}
	return h, nil
}
