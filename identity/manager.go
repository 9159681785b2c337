// Package identity keeps custody of the signed-in user record. The
// record is opaque here: sign-in happens on the client against the
// credential provider and arrives as a finished profile.
package identity

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	apperrors "estate-agent/errors"
	"estate-agent/storage"
	"estate-agent/web/types"
)

type Manager struct {
	store  storage.KV
	logger *zap.Logger

	mu      sync.RWMutex
	current types.Identity
}

func NewManager(store storage.KV, logger *zap.Logger) *Manager {
	return &Manager{store: store, logger: logger, current: types.Guest()}
}

// Load restores the persisted sign-in state at boot. An absent or
// unreadable record leaves the manager as guest.
func (m *Manager) Load(ctx context.Context) types.Identity {
	data, err := m.store.Get(ctx, storage.IdentityKey)
	if err != nil {
		if !apperrors.IsNotFound(err) {
			m.logger.Warn("Failed to read stored identity, staying guest", zap.Error(err))
		}
		return m.Current()
	}

	var rec types.Identity
	if err := json.Unmarshal(data, &rec); err != nil {
		m.logger.Warn("Stored identity unreadable, staying guest", zap.Error(err))
		return m.Current()
	}
	if rec.IsZero() {
		return m.Current()
	}

	m.mu.Lock()
	m.current = rec
	m.mu.Unlock()
	return rec
}

func (m *Manager) SignIn(ctx context.Context, rec types.Identity) error {
	if rec.IsZero() || rec.IsGuest() {
		return apperrors.WrapError(apperrors.ErrInvalidInput, "sign-in requires a named identity")
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return apperrors.WrapError(err, "encode identity")
	}
	if err := m.store.Put(ctx, storage.IdentityKey, data); err != nil {
		return apperrors.WrapError(err, "store identity")
	}

	m.mu.Lock()
	m.current = rec
	m.mu.Unlock()
	m.logger.Info("User signed in", zap.String("user_id", rec.ID))
	return nil
}

// SignOut reverts to guest. A failed delete is logged but does not keep
// the user signed in.
func (m *Manager) SignOut(ctx context.Context) error {
	if err := m.store.Delete(ctx, storage.IdentityKey); err != nil {
		m.logger.Error("Failed to clear stored identity", zap.Error(err))
	}

	m.mu.Lock()
	m.current = types.Guest()
	m.mu.Unlock()
	m.logger.Info("User signed out")
	return nil
}

func (m *Manager) Current() types.Identity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}
