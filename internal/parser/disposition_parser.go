package parser

import (
	"fmt"
	"strings"

	"github.com/balkashynov/hangar/internal/models"
)

// ParseDisposition maps operator input to a stop disposition
// Supported forms (case-insensitive):
// - progress, continue, in progress, in_progress, p
// - hold, on hold, on_hold, h
// - close, closed, done, c
func ParseDisposition(input string) (models.Disposition, error) {
	s := strings.ToLower(strings.TrimSpace(input))
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	switch strings.Join(strings.Fields(s), " ") {
	case "progress", "continue", "in progress", "p":
		return models.DispositionProgress, nil
	case "hold", "on hold", "h":
		return models.DispositionHold, nil
	case "close", "closed", "done", "c":
		return models.DispositionClosed, nil
	}
	return "", fmt.Errorf("invalid disposition %q. Use: progress, hold or closed", input)
}
