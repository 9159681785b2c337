package chat

import (
	"context"

	"go.uber.org/zap"

	"estate-agent/gemini"
	"estate-agent/places"
	"estate-agent/web/types"
)

const apologyText = "Sorry, something went wrong while searching. Please try again in a moment."

// Generator produces a grounded model response for a conversation history.
type Generator interface {
	GenerateContent(ctx context.Context, system string, contents []gemini.Content, location *types.LatLng) (*gemini.GenerateResponse, error)
}

// Manager runs conversation turns against the provider and normalizes
// the grounding metadata into place listings.
type Manager struct {
	gen        Generator
	normalizer *places.Normalizer
	system     string
	logger     *zap.Logger
}

func NewManager(gen Generator, normalizer *places.Normalizer, system string, logger *zap.Logger) *Manager {
	return &Manager{
		gen:        gen,
		normalizer: normalizer,
		system:     system,
		logger:     logger,
	}
}

// SendTurn appends the user turn to conv, requests a grounded response
// and records the model turn. Provider failures degrade to a fixed
// apology with no places; the unanswered user turn is dropped from the
// history so a resubmission does not send it twice.
func (m *Manager) SendTurn(ctx context.Context, conv *Context, text string, location *types.LatLng) types.TurnResult {
	if conv == nil {
		m.logger.Warn("Turn submitted without a live conversation context")
		conv = NewContext()
	}

	conv.history = append(conv.history, gemini.Content{
		Role:  types.RoleUser,
		Parts: []gemini.Part{{Text: text}},
	})

	resp, err := m.gen.GenerateContent(ctx, m.system, conv.history, location)
	if err != nil {
		m.logger.Error("Provider turn failed", zap.Error(err))
		conv.history = conv.history[:len(conv.history)-1]
		return types.TurnResult{Text: apologyText, Places: []types.Place{}}
	}

	answer := gemini.JoinParts(resp)
	conv.history = append(conv.history, gemini.Content{
		Role:  types.RoleModel,
		Parts: []gemini.Part{{Text: answer}},
	})

	return types.TurnResult{
		Text:   answer,
		Places: m.normalizer.Normalize(gemini.Chunks(resp)),
	}
}
