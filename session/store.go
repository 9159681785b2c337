// Package session owns the per-identity session list: ordering, the
// active pointer, title derivation and the always-at-least-one rule.
// Every mutation is written straight back to storage so a crash at any
// point loses at most the in-flight turn.
package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "estate-agent/errors"
	"estate-agent/storage"
	"estate-agent/utils"
	"estate-agent/web/types"
)

// DefaultTitle names a session until its first user turn.
const DefaultTitle = "New Search"

const welcomeText = "Hi, I'm Estate Scout. Tell me where you're thinking of moving and what matters to you, and I'll scout the area for homes, schools, commutes and more."

// Store holds one identity's sessions. It is not safe for concurrent
// use; the owning service serializes access.
type Store struct {
	durable storage.KV
	guest   storage.KV
	logger  *zap.Logger

	ident    types.Identity
	sessions []types.ChatSession
	activeID string
}

func NewStore(durable, guest storage.KV, logger *zap.Logger) *Store {
	return &Store{durable: durable, guest: guest, logger: logger}
}

// Load replaces the working set with the given identity's stored
// sessions. A missing, empty or unreadable blob starts a fresh list
// with one default session; read problems are logged, never surfaced.
// The session touched most recently becomes active.
func (s *Store) Load(ctx context.Context, ident types.Identity) {
	s.ident = ident

	key := storage.SessionsKey(ident)
	if key == "" {
		s.reset(ctx)
		return
	}

	data, err := s.backend().Get(ctx, key)
	if err != nil {
		if !apperrors.IsNotFound(err) {
			s.logger.Warn("Failed to read stored sessions, starting fresh", zap.String("key", key), zap.Error(err))
		}
		s.reset(ctx)
		return
	}

	var sessions []types.ChatSession
	if err := json.Unmarshal(data, &sessions); err != nil {
		s.logger.Warn("Stored sessions unreadable, starting fresh", zap.String("key", key), zap.Error(err))
		s.reset(ctx)
		return
	}
	if len(sessions) == 0 {
		s.reset(ctx)
		return
	}

	s.sessions = sessions
	s.activeID = mostRecent(sessions).ID
}

// Create prepends a fresh default session and makes it active.
func (s *Store) Create(ctx context.Context) types.ChatSession {
	fresh := defaultSession()
	s.sessions = append([]types.ChatSession{fresh}, s.sessions...)
	s.activeID = fresh.ID
	s.persist(ctx)
	return fresh
}

// Delete removes a session by id. Deleting the active session moves the
// pointer to the newest remaining one; deleting the last session
// recreates a default so the list is never empty.
func (s *Store) Delete(ctx context.Context, id string) error {
	idx := s.indexOf(id)
	if idx < 0 {
		return apperrors.ErrNotFound
	}
	s.sessions = append(s.sessions[:idx], s.sessions[idx+1:]...)

	if len(s.sessions) == 0 {
		fresh := defaultSession()
		s.sessions = []types.ChatSession{fresh}
		s.activeID = fresh.ID
	} else if s.activeID == id {
		s.activeID = s.sessions[0].ID
	}
	s.persist(ctx)
	return nil
}

// Select moves the active pointer. Selection is a view change, not a
// mutation: it is not persisted, and on the next load the most recently
// touched session wins again.
func (s *Store) Select(id string) (*types.ChatSession, error) {
	idx := s.indexOf(id)
	if idx < 0 {
		return nil, apperrors.ErrNotFound
	}
	s.activeID = id
	return &s.sessions[idx], nil
}

// AppendTurn records a user message and its thinking placeholder in one
// step. The first user turn names the session.
func (s *Store) AppendTurn(ctx context.Context, sessionID string, user, placeholder types.Message) error {
	idx := s.indexOf(sessionID)
	if idx < 0 {
		return apperrors.ErrNotFound
	}
	sess := &s.sessions[idx]
	if !hasUserMessage(sess.Messages) {
		sess.Title = utils.DeriveTitle(user.Text)
	}
	sess.Messages = append(sess.Messages, user, placeholder)
	sess.LastUpdated = time.Now()
	s.persist(ctx)
	return nil
}

// ResolveTurn lands a turn result in the session captured at submission,
// whatever is active now. A session deleted mid-flight swallows the
// result; the reply has nowhere to live.
func (s *Store) ResolveTurn(ctx context.Context, sessionID, placeholderID string, result types.TurnResult) bool {
	idx := s.indexOf(sessionID)
	if idx < 0 {
		s.logger.Warn("Discarding turn result for deleted session", zap.String("session_id", sessionID))
		return false
	}

	updated, ok := ApplyTurnResult(s.sessions[idx], placeholderID, result, time.Now())
	if !ok {
		s.logger.Warn("Turn placeholder missing from session",
			zap.String("session_id", sessionID),
			zap.String("message_id", placeholderID))
		return false
	}
	s.sessions[idx] = updated
	s.persist(ctx)
	return true
}

// ApplyTurnResult returns a copy of sess whose thinking placeholder,
// matched by id, carries the resolved text and places. The input is
// left untouched. The bool reports whether the placeholder was present.
func ApplyTurnResult(sess types.ChatSession, placeholderID string, result types.TurnResult, now time.Time) (types.ChatSession, bool) {
	messages := make([]types.Message, len(sess.Messages))
	copy(messages, sess.Messages)

	found := false
	for i := range messages {
		if messages[i].ID != placeholderID {
			continue
		}
		messages[i].Text = result.Text
		messages[i].Places = result.Places
		messages[i].IsThinking = false
		found = true
		break
	}
	if !found {
		return sess, false
	}

	sess.Messages = messages
	sess.LastUpdated = now
	return sess, true
}

// Sessions returns the working set, newest first.
func (s *Store) Sessions() []types.ChatSession {
	return s.sessions
}

// ActiveID returns the id of the currently selected session.
func (s *Store) ActiveID() string {
	return s.activeID
}

// Active returns the currently selected session.
func (s *Store) Active() *types.ChatSession {
	idx := s.indexOf(s.activeID)
	if idx < 0 {
		return nil
	}
	return &s.sessions[idx]
}

// Session returns a session by id.
func (s *Store) Session(id string) (*types.ChatSession, bool) {
	idx := s.indexOf(id)
	if idx < 0 {
		return nil, false
	}
	return &s.sessions[idx], true
}

func (s *Store) reset(ctx context.Context) {
	fresh := defaultSession()
	s.sessions = []types.ChatSession{fresh}
	s.activeID = fresh.ID
	s.persist(ctx)
}

func (s *Store) backend() storage.KV {
	if s.ident.IsGuest() {
		return s.guest
	}
	return s.durable
}

func (s *Store) persist(ctx context.Context) {
	key := storage.SessionsKey(s.ident)
	if key == "" {
		return
	}
	data, err := json.Marshal(s.sessions)
	if err != nil {
		s.logger.Error("Failed to encode sessions", zap.String("key", key), zap.Error(err))
		return
	}
	if err := s.backend().Put(ctx, key, data); err != nil {
		s.logger.Error("Failed to persist sessions", zap.String("key", key), zap.Error(err))
	}
}

func (s *Store) indexOf(id string) int {
	for i := range s.sessions {
		if s.sessions[i].ID == id {
			return i
		}
	}
	return -1
}

func defaultSession() types.ChatSession {
	now := time.Now()
	return types.ChatSession{
		ID:    uuid.New().String(),
		Title: DefaultTitle,
		Messages: []types.Message{{
			ID:   types.WelcomeMessageID,
			Role: types.RoleModel,
			Text: welcomeText,
		}},
		CreatedAt:   now,
		LastUpdated: now,
	}
}

func hasUserMessage(messages []types.Message) bool {
	for _, m := range messages {
		if m.Role == types.RoleUser {
			return true
		}
	}
	return false
}

func mostRecent(sessions []types.ChatSession) types.ChatSession {
	best := sessions[0]
	for _, sess := range sessions[1:] {
		if sess.LastUpdated.After(best.LastUpdated) {
			best = sess
		}
	}
	return best
}
