package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/menta2k/image-classifier/pkg/types"
)

// ErrNoJSON is returned when a model reply contains no JSON object
var ErrNoJSON = errors.New("no JSON object in model response")

var (
	reBlock    = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLine     = regexp.MustCompile(`(?m)^\s*//.*$`)
	reInline   = regexp.MustCompile(`(?m)\s//.*$`)
	reTrailing = regexp.MustCompile(`,(\s*[}\]])`)
)

type categoriesReply struct {
	Categories []types.Category `json:"categories"`
}

// ParseCategories extracts the category list from a raw model reply
func ParseCategories(raw string) ([]types.Category, error) {
	raw = SanitizeModelJSON(raw)
	if !strings.HasPrefix(raw, "{") {
		return nil, ErrNoJSON
	}

	var reply categoriesReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return nil, fmt.Errorf("failed to parse model response: %w", err)
	}
	if reply.Categories == nil {
		return []types.Category{}, nil
	}
	return reply.Categories, nil
}

// SanitizeModelJSON removes code fences, comments, and trailing commas from a JSON reply
func SanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	// Strip triple-backtick fences if present
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, "`")

	raw = reBlock.ReplaceAllString(raw, "")
	raw = reLine.ReplaceAllString(raw, "")
	raw = reInline.ReplaceAllString(raw, "")
	raw = reTrailing.ReplaceAllString(raw, "$1")

	// Keep only the outermost {...}
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}
