// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"
	"time"

	"github.com/burgerhero/burgerhero-bff/internal/domain"
)

// AuthAPI is the stateless identity-provider API (Supabase GoTrue or the
// in-memory dev provider). It never keeps a session on its own.
type AuthAPI interface {
	PasswordGrant(ctx context.Context, email, password string) (*domain.Session, error)
	RefreshGrant(ctx context.Context, refreshToken string) (*domain.Session, error)
	// SignUp returns a nil session when the provider requires e-mail
	// confirmation before the first sign-in.
	SignUp(ctx context.Context, email, password string, meta domain.UserMetadata) (*domain.Session, error)
	GetUser(ctx context.Context, accessToken string) (*domain.SessionUser, error)
	Logout(ctx context.Context, accessToken string) error
}

// AuthListener receives session changes from an IdentityProvider.
type AuthListener func(ctx context.Context, event domain.AuthEvent, session *domain.Session)

// IdentityProvider is the identity capability bound to one device.
type IdentityProvider interface {
	// GetSession returns the current session, refreshing it when expired.
	// A nil session with a nil error means nobody is signed in.
	GetSession(ctx context.Context) (*domain.Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, error)
	SignUp(ctx context.Context, email, password string, meta domain.UserMetadata) (*domain.Session, error)
	SignOut(ctx context.Context) error
	// Subscribe registers fn for every subsequent auth event and returns a
	// function that removes it.
	Subscribe(fn AuthListener) (unsubscribe func())
}

// ProfileStore reads and writes the remote profiles table.
type ProfileStore interface {
	// GetProfile returns nil, nil when the row does not exist.
	GetProfile(ctx context.Context, userID string) (*domain.ProfileRecord, error)
	EnsureUserBootstrap(ctx context.Context, req domain.BootstrapRequest) (*domain.BootstrapResult, error)
	UpdateProfile(ctx context.Context, userID string, columns map[string]any) error
	SaveSettings(ctx context.Context, userID, heroTheme string, settings domain.ProfileSettings) error
}

// StateStore persists per-device state as JSON values keyed by string.
// It replaces the browser's local storage.
type StateStore interface {
	// Load decodes the value at key into v and reports whether it existed.
	Load(ctx context.Context, key string, v any) (bool, error)
	Save(ctx context.Context, key string, v any) error
	Delete(ctx context.Context, keys ...string) error
}

// Clock returns the current time; tests substitute a fixed clock.
type Clock func() time.Time
