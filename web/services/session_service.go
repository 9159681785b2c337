package services

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"estate-agent/chat"
	apperrors "estate-agent/errors"
	"estate-agent/identity"
	"estate-agent/session"
	"estate-agent/utils"
	"estate-agent/web/format"
	"estate-agent/web/types"
)

// SessionService is the single owner of the session list and the live
// conversation context. All mutations run under one mutex; the only
// work that happens outside it is the provider call, so session
// switches stay responsive while a turn is in flight.
type SessionService struct {
	store    *session.Store
	identity *identity.Manager
	renderer *format.Renderer
	logger   *zap.Logger

	mu   sync.Mutex
	conv *chat.Context
}

func NewSessionService(
	store *session.Store,
	identity *identity.Manager,
	renderer *format.Renderer,
	logger *zap.Logger,
) *SessionService {
	return &SessionService{
		store:    store,
		identity: identity,
		renderer: renderer,
		logger:   logger,
	}
}

// Bootstrap restores the persisted identity and its sessions, then
// resumes the conversation context from the active session's log.
func (ss *SessionService) Bootstrap(ctx context.Context) {
	ident := ss.identity.Load(ctx)

	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.store.Load(ctx, ident)
	ss.resumeActiveLocked()
	ss.logger.Info("Sessions loaded",
		zap.String("user_id", ident.ID),
		zap.Int("session_count", len(ss.store.Sessions())),
		zap.String("session_id", ss.store.ActiveID()))
}

// Summaries lists sessions newest first with the active one flagged.
func (ss *SessionService) Summaries() []types.SessionSummary {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	sessions := ss.store.Sessions()
	out := make([]types.SessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, types.SessionSummary{
			ID:          sess.ID,
			Title:       sess.Title,
			CreatedAt:   sess.CreatedAt,
			LastUpdated: sess.LastUpdated,
			Active:      sess.ID == ss.store.ActiveID(),
		})
	}
	return out
}

// Create opens a fresh session with an empty conversation context.
func (ss *SessionService) Create(ctx context.Context) types.SessionSummary {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	fresh := ss.store.Create(ctx)
	ss.conv = chat.NewContext()
	ss.logger.Info("Session created", zap.String("session_id", fresh.ID))
	return types.SessionSummary{
		ID:          fresh.ID,
		Title:       fresh.Title,
		CreatedAt:   fresh.CreatedAt,
		LastUpdated: fresh.LastUpdated,
		Active:      true,
	}
}

// Delete removes a session. When the active session goes away the
// context is reseeded from whichever session takes over.
func (ss *SessionService) Delete(ctx context.Context, id string) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	before := ss.store.ActiveID()
	if err := ss.store.Delete(ctx, id); err != nil {
		return err
	}
	if ss.store.ActiveID() != before {
		ss.resumeActiveLocked()
	}
	ss.logger.Info("Session deleted", zap.String("session_id", id))
	return nil
}

// Select activates a session and reseeds the context from its log.
// Selecting the already active session changes nothing. Selection is a
// view change; nothing is persisted.
func (ss *SessionService) Select(id string) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if id == ss.store.ActiveID() {
		return nil
	}
	sess, err := ss.store.Select(id)
	if err != nil {
		return err
	}
	ss.conv = chat.ResumeContext(sess.Messages)
	ss.logger.Info("Session selected", zap.String("session_id", id))
	return nil
}

// Messages returns a session's log with display HTML attached to
// resolved model messages.
func (ss *SessionService) Messages(id string) ([]types.RenderedMessage, error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	sess, ok := ss.store.Session(id)
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	out := make([]types.RenderedMessage, 0, len(sess.Messages))
	for _, msg := range sess.Messages {
		out = append(out, ss.renderMessageLocked(msg))
	}
	return out, nil
}

// SignIn swaps to the signed-in namespace and resumes its sessions.
func (ss *SessionService) SignIn(ctx context.Context, rec types.Identity) error {
	if err := ss.identity.SignIn(ctx, rec); err != nil {
		return err
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.store.Load(ctx, rec)
	ss.resumeActiveLocked()
	return nil
}

// SignOut reverts to the guest namespace.
func (ss *SessionService) SignOut(ctx context.Context) error {
	if err := ss.identity.SignOut(ctx); err != nil {
		return err
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.store.Load(ctx, types.Guest())
	ss.resumeActiveLocked()
	return nil
}

// CurrentIdentity returns the signed-in record, or guest.
func (ss *SessionService) CurrentIdentity() types.Identity {
	return ss.identity.Current()
}

// pendingTurn captures everything a turn needs before the provider
// call: the originating session id, the context snapshot and both
// recorded messages. The id pins late results to this session no matter
// what is active when they arrive.
type pendingTurn struct {
	sessionID   string
	conv        *chat.Context
	user        types.Message
	placeholder types.Message
}

func (ss *SessionService) beginTurn(ctx context.Context, text string) (pendingTurn, error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	active := ss.store.Active()
	if active == nil {
		return pendingTurn{}, apperrors.ErrNotFound
	}

	user := types.Message{ID: utils.GenerateMessageID(), Role: types.RoleUser, Text: text}
	placeholder := types.Message{ID: utils.GenerateMessageID(), Role: types.RoleModel, IsThinking: true}
	if err := ss.store.AppendTurn(ctx, active.ID, user, placeholder); err != nil {
		return pendingTurn{}, err
	}

	return pendingTurn{
		sessionID:   active.ID,
		conv:        ss.conv,
		user:        user,
		placeholder: placeholder,
	}, nil
}

func (ss *SessionService) resolveTurn(ctx context.Context, turn pendingTurn, result types.TurnResult) types.RenderedMessage {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	ss.store.ResolveTurn(ctx, turn.sessionID, turn.placeholder.ID, result)
	return ss.renderMessageLocked(types.Message{
		ID:     turn.placeholder.ID,
		Role:   types.RoleModel,
		Text:   result.Text,
		Places: result.Places,
	})
}

func (ss *SessionService) resumeActiveLocked() {
	if active := ss.store.Active(); active != nil {
		ss.conv = chat.ResumeContext(active.Messages)
		return
	}
	ss.conv = chat.NewContext()
}

func (ss *SessionService) renderMessageLocked(msg types.Message) types.RenderedMessage {
	out := types.RenderedMessage{Message: msg}
	if msg.Role == types.RoleModel && !msg.IsThinking {
		out.HTML = ss.renderer.RenderMarkdown(msg.Text)
	}
	return out
}
