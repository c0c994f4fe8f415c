package generate

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"
	"text/template"

	reword "github.com/Paranoid-AF/reword"
	defaults "github.com/Paranoid-AF/reword/default"
)

// PromptData holds the data passed to the prompt template.
type PromptData struct {
	VariantCount int
}

// loadCustomPrompt loads a custom prompt template.
// Returns empty string if no custom prompt exists.
func loadCustomPrompt() string {
	promptPath := reword.PromptPath()
	data, err := os.ReadFile(promptPath)
	if err != nil {
		return ""
	}
	slog.Info("loaded custom prompt", "path", promptPath)
	return string(data)
}

// checkPrompt reports whether a custom prompt template parses.
func checkPrompt(src string) error {
	if src == "" {
		return nil
	}
	if _, err := template.New("prompt").Parse(src); err != nil {
		return fmt.Errorf("parse prompt template: %w", err)
	}
	return nil
}

// buildSystemPrompt renders the system prompt from the template.
func buildSystemPrompt(tmplSrc string, variantCount int) string {
	if tmplSrc == "" {
		tmplSrc = defaults.DefaultPrompt
	}

	data := PromptData{VariantCount: variantCount}

	t, err := template.New("prompt").Parse(tmplSrc)
	if err != nil {
		slog.Warn("failed to parse prompt template, falling back to default", "error", err)
		t, _ = template.New("prompt").Parse(defaults.DefaultPrompt)
	}

	var buf strings.Builder
	if err := t.Execute(&buf, data); err != nil {
		slog.Warn("failed to execute prompt template, falling back to default", "error", err)
		t, _ = template.New("prompt").Parse(defaults.DefaultPrompt)
		buf.Reset()
		t.Execute(&buf, data)
	}

	return strings.TrimRight(buf.String(), " \t\n")
}

var (
	// bulletMarker matches a bullet a chat model may put before a line.
	bulletMarker = regexp.MustCompile(`^[-*•]\s+`)
	// numberMarker matches list numbering such as "1." or "2)".
	numberMarker = regexp.MustCompile(`^(\d+)[.)]\s+`)
)

// parseVariants extracts the first n non-empty lines of a chat reply.
// Numbering is stripped only when the lines used count up from 1.
func parseVariants(output string, n int) ([]string, error) {
	var lines []string
	for _, line := range strings.Split(output, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	numbered := isNumberedList(lines[:min(n, len(lines))])

	variants := make([]string, 0, n)
	for _, line := range lines {
		if numbered {
			line = numberMarker.ReplaceAllString(line, "")
		} else {
			line = bulletMarker.ReplaceAllString(line, "")
		}
		line = strings.TrimSpace(line)
		if len(line) >= 2 && line[0] == '"' && line[len(line)-1] == '"' {
			line = strings.TrimSpace(line[1 : len(line)-1])
		}
		if line == "" {
			continue
		}
		variants = append(variants, line)
		if len(variants) == n {
			return variants, nil
		}
	}
	if len(variants) == 0 {
		return nil, ErrEmptyOutput
	}
	return nil, fmt.Errorf("%w: got %d variants, want %d", ErrResponseInvalid, len(variants), n)
}

func isNumberedList(lines []string) bool {
	if len(lines) == 0 {
		return false
	}
	for i, line := range lines {
		m := numberMarker.FindStringSubmatch(line)
		if m == nil || m[1] != strconv.Itoa(i+1) {
			return false
		}
	}
	return true
}
