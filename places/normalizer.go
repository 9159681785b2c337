package places

import (
	"strings"

	"estate-agent/gemini"
	"estate-agent/web/types"

	"github.com/jdkato/prose/v2"
	"go.uber.org/zap"
)

// Normalizer converts raw grounding chunks into UI-ready place records.
// Output order is input order after dropping malformed chunks and
// collapsing duplicate titles to their first occurrence; there is no
// sorting or ranking.
type Normalizer struct {
	logger *zap.Logger
}

func NewNormalizer(logger *zap.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// Normalize keeps only chunks carrying a maps payload with a non-empty
// title and a resolvable URI. Partial grounding data is expected; chunks
// failing these checks are dropped silently, never reported.
func (n *Normalizer) Normalize(chunks []gemini.GroundingChunk) []types.Place {
	places := make([]types.Place, 0, len(chunks))
	seen := make(map[string]struct{}, len(chunks))

	for _, chunk := range chunks {
		m := chunk.Maps
		if m == nil {
			continue
		}
		uri := resolveURI(m)
		if m.Title == "" || uri == "" {
			continue
		}
		if _, dup := seen[m.Title]; dup {
			continue
		}
		seen[m.Title] = struct{}{}

		places = append(places, types.Place{
			Title:       m.Title,
			URI:         uri,
			PlaceID:     m.PlaceID,
			Address:     strings.TrimSpace(m.Text),
			Description: n.describe(m),
		})
	}

	return places
}

// resolveURI enumerates the URI shapes the provider emits, in preference
// order: the primary field first, then the legacy alternate.
func resolveURI(m *gemini.MapsChunk) string {
	if m.URI != "" {
		return m.URI
	}
	return m.GoogleMapsURI
}

// describe extracts a one-sentence description from the first review
// snippet, when the chunk carries any.
func (n *Normalizer) describe(m *gemini.MapsChunk) string {
	if m.PlaceAnswerSources == nil || len(m.PlaceAnswerSources.ReviewSnippets) == 0 {
		return ""
	}
	snippet := strings.TrimSpace(m.PlaceAnswerSources.ReviewSnippets[0].Review)
	if snippet == "" {
		return ""
	}
	return n.firstSentence(snippet)
}

func (n *Normalizer) firstSentence(text string) string {
	doc, err := prose.NewDocument(text, prose.WithTagging(false), prose.WithExtraction(false))
	if err != nil {
		n.logger.Warn("Failed to segment review snippet, using full text", zap.Error(err))
		return text
	}
	sentences := doc.Sentences()
	if len(sentences) == 0 {
		return text
	}
	return strings.TrimSpace(sentences[0].Text)
}
