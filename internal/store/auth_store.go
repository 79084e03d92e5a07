// Package store holds the per-device client state: who is logged in and
// how the UI is themed. Every mutation is written through to a
// port.StateStore so it survives process restarts.
package store

import (
	"context"
	"errors"
	"sync"

	"github.com/burgerhero/burgerhero-bff/internal/domain"
	"github.com/burgerhero/burgerhero-bff/internal/port"

	"go.uber.org/zap"
)

// placeholderNames are display names written by older clients before the
// profile was loaded. They count as empty when refreshing from the database.
var placeholderNames = map[string]bool{
	"":      true,
	"Herói": true,
	"Heroi": true,
}

// persistedAuth is the shape written to the state store. The loading flag
// is deliberately absent.
type persistedAuth struct {
	User     *domain.UserProfile `json:"user"`
	IsAuthed bool                `json:"isAuthed"`
}

// AuthSnapshot is a copy of the auth store state.
type AuthSnapshot struct {
	User     *domain.UserProfile
	IsAuthed bool
	Loading  bool
}

// AuthStore is the single source of truth for who is logged in on a device.
type AuthStore struct {
	key      string
	state    port.StateStore
	profiles port.ProfileStore
	logger   *zap.Logger

	mu       sync.RWMutex
	user     *domain.UserProfile
	isAuthed bool
	loading  bool
}

// NewAuthStore restores the persisted cache of a device. An unreadable
// entry is discarded and the device starts logged out. A state store
// failure is returned and nothing is discarded.
func NewAuthStore(ctx context.Context, deviceID string, state port.StateStore, profiles port.ProfileStore, logger *zap.Logger) (*AuthStore, error) {
	s := &AuthStore{
		key:      "auth:" + deviceID,
		state:    state,
		profiles: profiles,
		logger:   logger.With(zap.String("device_id", deviceID)),
		loading:  true,
	}

	var p persistedAuth
	found, err := restore(ctx, state, s.key, &p, s.logger)
	if err != nil {
		return nil, err
	}
	if found && p.User != nil {
		p.User.Role = domain.ParseRole(string(p.User.Role))
		s.user = p.User
		s.isAuthed = true
	}
	return s, nil
}

// restore loads key into v. An undecodable entry is deleted and reported
// as missing. Backend failures are returned untouched so the caller can
// retry later.
func restore(ctx context.Context, state port.StateStore, key string, v any, logger *zap.Logger) (bool, error) {
	found, err := state.Load(ctx, key, v)
	if err == nil {
		return found, nil
	}
	var ext *domain.ErrExternalService
	if errors.As(err, &ext) {
		logger.Warn("store: state backend unavailable", zap.String("key", key), zap.Error(err))
		return false, err
	}
	logger.Warn("store: discarding unreadable entry", zap.String("key", key), zap.Error(err))
	_ = state.Delete(ctx, key)
	return false, nil
}

// Login sets the current user.
func (s *AuthStore) Login(ctx context.Context, profile *domain.UserProfile) error {
	if profile == nil {
		return s.Logout(ctx)
	}
	u := *profile
	u.Role = domain.ParseRole(string(u.Role))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = &u
	s.isAuthed = true
	return s.persistLocked(ctx)
}

// Logout clears the current user.
func (s *AuthStore) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
	s.isAuthed = false
	return s.persistLocked(ctx)
}

// UpdateUser shallow-merges patch into the current user. It reports false
// and changes nothing when nobody is logged in.
func (s *AuthStore) UpdateUser(ctx context.Context, patch domain.ProfilePatch) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.user == nil {
		return false, nil
	}
	u := *s.user
	applyPatch(&u, patch)
	s.user = &u
	return true, s.persistLocked(ctx)
}

// RefreshUserFromDB fetches the canonical profile and fills in the local
// fields that are empty or still hold a placeholder. Non-empty local values
// are kept and empty remote values are never written. Role is taken from
// the remote row whenever the row carries one.
func (s *AuthStore) RefreshUserFromDB(ctx context.Context, id string) error {
	s.mu.RLock()
	current := s.user
	s.mu.RUnlock()
	if current == nil || current.ID != id {
		return nil
	}

	rec, err := s.profiles.GetProfile(ctx, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}
	remote := rec.ToProfile()

	s.mu.Lock()
	defer s.mu.Unlock()

	// The user may have logged out while the fetch was in flight.
	if s.user == nil || s.user.ID != id {
		return nil
	}
	u := *s.user
	changed := mergeMissing(&u, remote, rec.Role != "")
	if !changed {
		return nil
	}
	s.user = &u
	s.logger.Debug("auth store: refreshed user from database", zap.String("user_id", id))
	return s.persistLocked(ctx)
}

// SetLoading marks whether the first bootstrap attempt is still running.
func (s *AuthStore) SetLoading(loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = loading
}

// Snapshot returns a copy of the current state.
func (s *AuthStore) Snapshot() AuthSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := AuthSnapshot{IsAuthed: s.isAuthed, Loading: s.loading}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	return snap
}

// User returns a copy of the current user, or nil.
func (s *AuthStore) User() *domain.UserProfile {
	return s.Snapshot().User
}

// Clear drops the persisted cache and logs out in memory.
func (s *AuthStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
	s.isAuthed = false
	return s.state.Delete(ctx, s.key)
}

func (s *AuthStore) persistLocked(ctx context.Context) error {
	p := persistedAuth{User: s.user, IsAuthed: s.isAuthed}
	if err := s.state.Save(ctx, s.key, p); err != nil {
		s.logger.Error("auth store: failed to persist", zap.Error(err))
		return err
	}
	return nil
}

func applyPatch(u *domain.UserProfile, p domain.ProfilePatch) {
	if p.DisplayName != nil {
		u.DisplayName = *p.DisplayName
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.CPF != nil {
		u.CPF = *p.CPF
	}
	if p.AvatarURL != nil {
		u.AvatarURL = *p.AvatarURL
	}
	if p.CustomerCode != nil {
		u.CustomerCode = *p.CustomerCode
	}
	if p.HeroTheme != nil {
		u.HeroTheme = *p.HeroTheme
	}
}

// mergeMissing copies remote values into the local fields that are empty.
func mergeMissing(local, remote *domain.UserProfile, remoteHasRole bool) bool {
	changed := false
	fill := func(dst *string, src string, missing bool) {
		if missing && src != "" && *dst != src {
			*dst = src
			changed = true
		}
	}

	fill(&local.DisplayName, remote.DisplayName, placeholderNames[local.DisplayName])
	fill(&local.Email, remote.Email, local.Email == "")
	fill(&local.CPF, remote.CPF, local.CPF == "")
	fill(&local.AvatarURL, remote.AvatarURL, local.AvatarURL == "")
	fill(&local.CustomerCode, remote.CustomerCode, local.CustomerCode == "")
	fill(&local.HeroTheme, remote.HeroTheme, local.HeroTheme == "")

	if remoteHasRole && local.Role != remote.Role {
		local.Role = remote.Role
		changed = true
	}
	if local.Settings.ColorMode == "" && remote.Settings.ColorMode != "" {
		local.Settings.ColorMode = remote.Settings.ColorMode
		changed = true
	}
	if local.Settings.Card == (domain.CardSettings{}) && remote.Settings.Card != (domain.CardSettings{}) {
		local.Settings.Card = remote.Settings.Card
		changed = true
	}
	return changed
}
