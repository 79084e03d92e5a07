// Package identity binds the stateless identity-provider API to a single
// device. It holds the device's tokens in the state store, refreshes them
// when they expire, and notifies subscribers of every session change.
package identity

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/burgerhero/burgerhero-bff/internal/domain"
	"github.com/burgerhero/burgerhero-bff/internal/port"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("identity")

// refreshSkew refreshes tokens slightly before they expire.
const refreshSkew = 30 * time.Second

// Session implements port.IdentityProvider for one device.
type Session struct {
	key    string
	api    port.AuthAPI
	state  port.StateStore
	now    port.Clock
	logger *zap.Logger

	mu        sync.Mutex
	loaded    bool
	current   *domain.Session
	verified  bool
	listeners map[int]port.AuthListener
	nextID    int
}

// New creates the identity session of a device.
func New(deviceID string, api port.AuthAPI, state port.StateStore, now port.Clock, logger *zap.Logger) *Session {
	if now == nil {
		now = time.Now
	}
	return &Session{
		key:       "identity:" + deviceID,
		api:       api,
		state:     state,
		now:       now,
		logger:    logger.With(zap.String("device_id", deviceID)),
		listeners: make(map[int]port.AuthListener),
	}
}

type pending struct {
	event   domain.AuthEvent
	session *domain.Session
}

// GetSession returns the current session, refreshing it when expired.
// A session restored from the state store is checked with the provider
// once before it is trusted. A rejected token ends the session and emits
// SIGNED_OUT.
func (s *Session) GetSession(ctx context.Context) (*domain.Session, error) {
	ctx, span := tracer.Start(ctx, "Identity.GetSession")
	defer span.End()

	s.mu.Lock()
	if err := s.loadLocked(ctx); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	cur := s.current
	if cur == nil {
		s.mu.Unlock()
		return nil, nil
	}
	if !cur.Expired(s.now(), refreshSkew) {
		if s.verified {
			s.mu.Unlock()
			return cur, nil
		}
		user, err := s.api.GetUser(ctx, cur.AccessToken)
		if err != nil {
			if !rejected(err) {
				s.mu.Unlock()
				return nil, err
			}
			s.logger.Info("identity: stored access token rejected, ending session", zap.Error(err))
			s.clearLocked(ctx)
			s.mu.Unlock()
			s.emit(ctx, pending{event: domain.EventSignedOut})
			return nil, nil
		}
		verified := *cur
		verified.User = *user
		s.setLocked(ctx, &verified)
		s.mu.Unlock()
		return &verified, nil
	}

	next, err := s.api.RefreshGrant(ctx, cur.RefreshToken)
	if err != nil {
		if !rejected(err) {
			s.mu.Unlock()
			return nil, err
		}
		s.logger.Info("identity: refresh token rejected, ending session", zap.Error(err))
		s.clearLocked(ctx)
		s.mu.Unlock()
		s.emit(ctx, pending{event: domain.EventSignedOut})
		return nil, nil
	}
	s.setLocked(ctx, next)
	s.mu.Unlock()

	s.emit(ctx, pending{event: domain.EventTokenRefreshed, session: next})
	return next, nil
}

// SignInWithPassword signs the device in and emits SIGNED_IN.
func (s *Session) SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, error) {
	ctx, span := tracer.Start(ctx, "Identity.SignInWithPassword")
	defer span.End()

	sess, err := s.api.PasswordGrant(ctx, email, password)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.loaded = true
	s.setLocked(ctx, sess)
	s.mu.Unlock()

	s.emit(ctx, pending{event: domain.EventSignedIn, session: sess})
	return sess, nil
}

// SignUp creates an identity. When the provider returns a session the
// device is signed in as with SignInWithPassword.
func (s *Session) SignUp(ctx context.Context, email, password string, meta domain.UserMetadata) (*domain.Session, error) {
	ctx, span := tracer.Start(ctx, "Identity.SignUp")
	defer span.End()

	sess, err := s.api.SignUp(ctx, email, password, meta)
	if err != nil || sess == nil {
		return nil, err
	}

	s.mu.Lock()
	s.loaded = true
	s.setLocked(ctx, sess)
	s.mu.Unlock()

	s.emit(ctx, pending{event: domain.EventSignedIn, session: sess})
	return sess, nil
}

// SignOut revokes the session remotely and always clears it locally.
func (s *Session) SignOut(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Identity.SignOut")
	defer span.End()

	s.mu.Lock()
	_ = s.loadLocked(ctx)
	cur := s.current
	s.clearLocked(ctx)
	s.mu.Unlock()

	if cur != nil {
		if err := s.api.Logout(ctx, cur.AccessToken); err != nil {
			s.logger.Warn("identity: remote logout failed, session cleared locally", zap.Error(err))
		}
	}
	s.emit(ctx, pending{event: domain.EventSignedOut})
	return nil
}

// Subscribe registers fn for every subsequent auth event.
func (s *Session) Subscribe(fn port.AuthListener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// emit calls the listeners outside the lock, in subscription order.
func (s *Session) emit(ctx context.Context, p pending) {
	s.mu.Lock()
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]port.AuthListener, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.listeners[id])
	}
	s.mu.Unlock()

	s.logger.Debug("identity: auth event", zap.String("event", string(p.event)))
	for _, fn := range fns {
		fn(ctx, p.event, p.session)
	}
}

func (s *Session) loadLocked(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	var stored domain.Session
	found, err := s.state.Load(ctx, s.key, &stored)
	if err != nil {
		var ext *domain.ErrExternalService
		if errors.As(err, &ext) {
			return err
		}
		// Unreadable entry: treat the device as signed out.
		s.logger.Warn("identity: discarding unreadable session", zap.Error(err))
		_ = s.state.Delete(ctx, s.key)
		found = false
	}
	s.loaded = true
	if !found || stored.AccessToken == "" {
		return nil
	}
	if stored.ExpiresAt.IsZero() {
		if _, exp, ok := domain.TokenClaims(stored.AccessToken); ok {
			stored.ExpiresAt = exp
		}
	}
	s.current = &stored
	return nil
}

func (s *Session) setLocked(ctx context.Context, sess *domain.Session) {
	if sess.ExpiresAt.IsZero() {
		if _, exp, ok := domain.TokenClaims(sess.AccessToken); ok {
			sess.ExpiresAt = exp
		}
	}
	s.current = sess
	s.verified = true
	if err := s.state.Save(ctx, s.key, sess); err != nil {
		s.logger.Error("identity: failed to persist session", zap.Error(err))
	}
}

func (s *Session) clearLocked(ctx context.Context) {
	s.current = nil
	s.verified = false
	if err := s.state.Delete(ctx, s.key); err != nil {
		s.logger.Error("identity: failed to delete session", zap.Error(err))
	}
}

// rejected reports whether the provider refused the refresh token, as
// opposed to being unreachable.
func rejected(err error) bool {
	var authFailure *domain.ErrAuthFailure
	var unauthorized *domain.ErrUnauthorized
	return errors.As(err, &authFailure) || errors.As(err, &unauthorized)
}
