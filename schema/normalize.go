package schema

import (
	"fmt"
	"strings"
)

// ParseMode maps a wire value to a Mode.
// Matching is case-insensitive; "continue" is accepted as an alias.
func ParseMode(value string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "start", "startofinput":
		return ModeStart, nil
	case "continuation", "continue", "midinput":
		return ModeContinuation, nil
	case "complete", "reset":
		return ModeComplete, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownMode, value)
	}
}
