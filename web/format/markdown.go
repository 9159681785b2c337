// Package format renders model message text to HTML for API responses.
// Rendering happens on the read path only; stored sessions keep the raw
// markdown.
package format

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/gomarkdown/markdown"
	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"
)

// Renderer converts markdown to HTML, memoized by content hash so
// repeated reads of the same message log render once.
type Renderer struct {
	cache  *lru.Cache
	logger *zap.Logger
}

func NewRenderer(cacheSize int, logger *zap.Logger) (*Renderer, error) {
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}
	return &Renderer{cache: cache, logger: logger}, nil
}

// RenderMarkdown returns the HTML for a model message.
func (r *Renderer) RenderMarkdown(text string) string {
	if text == "" {
		return ""
	}

	key := contentKey(text)
	if cached, ok := r.cache.Get(key); ok {
		if html, ok := cached.(string); ok {
			return html
		}
	}

	normalized := normalizeListSpacing(replaceCurlyQuotes(text))
	html := string(markdown.ToHTML([]byte(normalized), nil, nil))
	r.cache.Add(key, html)
	return html
}

func contentKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// replaceCurlyQuotes swaps typographic quotes for plain ones.
func replaceCurlyQuotes(text string) string {
	return strings.NewReplacer(
		"“", "\"",
		"”", "\"",
		"‘", "'",
		"’", "'",
	).Replace(text)
}

var listItemPattern = regexp.MustCompile(`^(\d+\.\s|[-*+]\s)`)

// normalizeListSpacing inserts the blank line markdown requires before a
// list. Models often run "**Heading:**\n- item" together, which would
// otherwise render as one paragraph.
func normalizeListSpacing(text string) string {
	lines := strings.Split(text, "\n")
	result := make([]string, 0, len(lines))

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if listItemPattern.MatchString(trimmed) && i > 0 {
			prev := strings.TrimSpace(lines[i-1])
			if prev != "" && !listItemPattern.MatchString(prev) {
				result = append(result, "")
			}
		}
		result = append(result, line)
	}

	return strings.Join(result, "\n")
}
