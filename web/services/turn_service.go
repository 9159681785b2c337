package services

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"estate-agent/chat"
	apperrors "estate-agent/errors"
	"estate-agent/utils"
	"estate-agent/web/types"
)

// Stream event names for a turn's checkpoints.
const (
	EventUserMessage = "user_message"
	EventThinking    = "thinking"
	EventMessage     = "message"
	EventEnd         = "end"
)

// TurnEvent is one streamable checkpoint of a running turn. The end
// marker carries no message.
type TurnEvent struct {
	Type      string                 `json:"type"`
	SessionID string                 `json:"sessionId,omitempty"`
	Message   *types.RenderedMessage `json:"message,omitempty"`
}

// TurnService drives one turn at a time through the submit/await/
// resolve cycle. A single process-wide flag rejects overlapping
// submissions from any session.
type TurnService struct {
	sessions *SessionService
	chat     *chat.Manager
	logger   *zap.Logger

	mu       sync.Mutex
	inFlight bool
}

func NewTurnService(sessions *SessionService, chatManager *chat.Manager, logger *zap.Logger) *TurnService {
	return &TurnService{
		sessions: sessions,
		chat:     chatManager,
		logger:   logger,
	}
}

// Submit runs one full turn against the active session. emit receives
// the checkpoints in order: the recorded user message, the thinking
// placeholder, then the resolved message. Degraded provider results
// flow through the same path as successes.
//
// Guard rejections come back as sentinels before anything is recorded:
// blank input, a turn already in flight, no active session.
func (ts *TurnService) Submit(ctx context.Context, text string, location *types.LatLng, emit func(TurnEvent)) error {
	if utils.IsBlank(text) {
		return apperrors.WrapError(apperrors.ErrInvalidInput, "empty message")
	}
	if !ts.begin() {
		return apperrors.ErrTurnInFlight
	}
	defer ts.finish()

	turn, err := ts.sessions.beginTurn(ctx, text)
	if err != nil {
		return err
	}
	emit(TurnEvent{Type: EventUserMessage, SessionID: turn.sessionID, Message: &types.RenderedMessage{Message: turn.user}})
	emit(TurnEvent{Type: EventThinking, SessionID: turn.sessionID, Message: &types.RenderedMessage{Message: turn.placeholder}})

	// The provider call is the one suspension point; the session list
	// stays unlocked and switchable while it runs.
	result := ts.chat.SendTurn(ctx, turn.conv, text, location)

	resolved := ts.sessions.resolveTurn(ctx, turn, result)
	emit(TurnEvent{Type: EventMessage, SessionID: turn.sessionID, Message: &resolved})

	ts.logger.Info("Turn resolved",
		zap.String("session_id", turn.sessionID),
		zap.Int("place_count", len(resolved.Places)))
	return nil
}

func (ts *TurnService) begin() bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.inFlight {
		return false
	}
	ts.inFlight = true
	return true
}

func (ts *TurnService) finish() {
	ts.mu.Lock()
	ts.inFlight = false
	ts.mu.Unlock()
}
