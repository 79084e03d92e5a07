package domain

import (
	"context"
	"time"
)

// ============================================================
// Identity provider session & auth events
// ============================================================

// Session is the credential issued by the identity provider.
type Session struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresAt    time.Time   `json:"expires_at"`
	User         SessionUser `json:"user"`
}

// Expired reports whether the access token is past its expiry, with skew
// applied so tokens about to expire are refreshed early.
func (s *Session) Expired(now time.Time, skew time.Duration) bool {
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(skew).Before(s.ExpiresAt)
}

// SessionUser is the identity attached to a session.
type SessionUser struct {
	ID       string       `json:"id"`
	Email    string       `json:"email"`
	Metadata UserMetadata `json:"user_metadata"`
}

// UserMetadata is written at sign-up and used to repair missing profiles.
type UserMetadata struct {
	Name      string `json:"name,omitempty"`
	CPF       string `json:"cpf,omitempty"`
	Birthdate string `json:"birthdate,omitempty"`
	WhatsApp  string `json:"whatsapp,omitempty"`
}

// BootstrapRequest builds the repair arguments for this identity.
func (u SessionUser) BootstrapRequest() BootstrapRequest {
	return BootstrapRequest{
		Name:      u.Metadata.Name,
		Email:     u.Email,
		CPF:       u.Metadata.CPF,
		Birthdate: u.Metadata.Birthdate,
		WhatsApp:  u.Metadata.WhatsApp,
	}
}

// AuthEvent is a session change notified by the identity provider.
type AuthEvent string

const (
	EventSignedIn       AuthEvent = "SIGNED_IN"
	EventSignedOut      AuthEvent = "SIGNED_OUT"
	EventTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
	EventUserUpdated    AuthEvent = "USER_UPDATED"
)

type accessTokenKey struct{}

// WithAccessToken attaches the caller's access token so remote procedures
// that depend on the authenticated identity run as that user.
func WithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, accessTokenKey{}, token)
}

// AccessTokenFrom returns the access token attached to ctx, if any.
func AccessTokenFrom(ctx context.Context) string {
	v, _ := ctx.Value(accessTokenKey{}).(string)
	return v
}

// ============================================================
// Sign-in / sign-up API contract
// ============================================================

// SignInRequest is the body for POST /v1/auth/sign-in.
type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SignUpRequest is the body for POST /v1/auth/sign-up.
type SignUpRequest struct {
	Name      string `json:"name" validate:"required,min=2,max=120"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6,max=72"`
	CPF       string `json:"cpf" validate:"required,cpf"`
	Birthdate string `json:"birthdate" validate:"omitempty,datetime=2006-01-02"`
	WhatsApp  string `json:"whatsapp" validate:"omitempty,min=10,max=20"`
}

// Metadata returns the identity metadata recorded at sign-up.
func (r *SignUpRequest) Metadata() UserMetadata {
	return UserMetadata{
		Name:      r.Name,
		CPF:       r.CPF,
		Birthdate: r.Birthdate,
		WhatsApp:  r.WhatsApp,
	}
}

// AuthState is the response of every auth/session endpoint.
type AuthState struct {
	User     *UserProfile `json:"user"`
	IsAuthed bool         `json:"isAuthed"`
	Loading  bool         `json:"loading"`
	Home     string       `json:"home,omitempty"`
	Message  string       `json:"message,omitempty"`
}
