package chat

import (
	"estate-agent/gemini"
	"estate-agent/web/types"
)

// Context is one live conversation's provider-side history. A value is
// constructed per session and replaced on every session switch; it is
// never shared between sessions.
type Context struct {
	history []gemini.Content
}

// NewContext opens a fresh context with empty history. Called exactly
// once per new session.
func NewContext() *Context {
	return &Context{}
}

// ResumeContext builds a context seeded from a stored message log.
// Thinking placeholders and the synthetic welcome message are display
// artifacts, not conversation turns, and are excluded from the seed; the
// remaining messages map to role/text pairs in their original order.
func ResumeContext(history []types.Message) *Context {
	conv := &Context{history: make([]gemini.Content, 0, len(history))}
	for _, msg := range history {
		if msg.IsThinking || msg.ID == types.WelcomeMessageID {
			continue
		}
		conv.history = append(conv.history, gemini.Content{
			Role:  providerRole(msg.Role),
			Parts: []gemini.Part{{Text: msg.Text}},
		})
	}
	return conv
}

func providerRole(role string) string {
	if role == types.RoleModel {
		return "model"
	}
	return "user"
}
