package utils

import (
	"strings"

	"github.com/google/uuid"
)

// TitleMaxRunes is the display length a session title is cut to when it
// is derived from the first user turn.
const TitleMaxRunes = 30

// IsBlank reports whether s is empty or whitespace-only.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// TruncateRunes cuts s to at most n runes, appending "..." when anything
// was removed. Counts runes, not bytes, so multi-byte text is not split.
func TruncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

// DeriveTitle builds a session title from the first user turn: the text
// verbatim when short, otherwise the first TitleMaxRunes runes plus an
// ellipsis. The result is set once and frozen afterwards.
func DeriveTitle(text string) string {
	return TruncateRunes(strings.TrimSpace(text), TitleMaxRunes)
}

// GenerateMessageID creates a unique message identifier using UUID v4.
func GenerateMessageID() string {
	return uuid.New().String()
}
