package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/burgerhero/burgerhero-bff/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// AuthAPI implementation: Supabase Auth (GoTrue) endpoints
// ============================================================

// tokenResponse is the body of /token and of /signup when the project
// auto-confirms e-mails.
type tokenResponse struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	ExpiresIn    int        `json:"expires_in"`
	ExpiresAt    int64      `json:"expires_at"`
	User         gotrueUser `json:"user"`
}

type gotrueUser struct {
	ID           string              `json:"id"`
	Email        string              `json:"email"`
	UserMetadata domain.UserMetadata `json:"user_metadata"`
}

func (u gotrueUser) toDomain() domain.SessionUser {
	return domain.SessionUser{ID: u.ID, Email: u.Email, Metadata: u.UserMetadata}
}

func (t *tokenResponse) toSession(now time.Time) *domain.Session {
	expiresAt := time.Unix(t.ExpiresAt, 0)
	if t.ExpiresAt == 0 {
		expiresAt = now.Add(time.Duration(t.ExpiresIn) * time.Second)
	}
	return &domain.Session{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresAt:    expiresAt,
		User:         t.User.toDomain(),
	}
}

// gotrueError covers both the legacy and the current error shapes.
type gotrueError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
}

func parseGotrueError(body []byte) gotrueError {
	var e gotrueError
	_ = json.Unmarshal(body, &e)
	return e
}

// credentialStatus maps password/refresh grant rejections to ErrAuthFailure.
func credentialStatus(status int, body []byte) error {
	if status != http.StatusBadRequest && status != http.StatusUnauthorized {
		return nil
	}
	e := parseGotrueError(body)
	if e.ErrorCode == "email_not_confirmed" || strings.Contains(strings.ToLower(e.Msg), "not confirmed") {
		return &domain.ErrAuthFailure{Message: "Confirme seu e-mail antes de entrar"}
	}
	return &domain.ErrAuthFailure{}
}

// PasswordGrant signs in with e-mail and password.
func (c *Client) PasswordGrant(ctx context.Context, email, password string) (*domain.Session, error) {
	ctx, span := tracer.Start(ctx, "Supabase.PasswordGrant")
	defer span.End()

	_, body, err := c.send(ctx, request{
		method:    http.MethodPost,
		url:       c.authURL("token?grant_type=password"),
		body:      map[string]string{"email": email, "password": password},
		bearer:    c.apiKey,
		mapStatus: credentialStatus,
	})
	if err != nil {
		return nil, authErr("supabase/auth", err)
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, decodeErr("supabase/auth", "token response", err)
	}
	return tok.toSession(time.Now()), nil
}

// RefreshGrant exchanges a refresh token for a new session.
func (c *Client) RefreshGrant(ctx context.Context, refreshToken string) (*domain.Session, error) {
	ctx, span := tracer.Start(ctx, "Supabase.RefreshGrant")
	defer span.End()

	_, body, err := c.send(ctx, request{
		method:    http.MethodPost,
		url:       c.authURL("token?grant_type=refresh_token"),
		body:      map[string]string{"refresh_token": refreshToken},
		bearer:    c.apiKey,
		mapStatus: credentialStatus,
	})
	if err != nil {
		return nil, authErr("supabase/auth", err)
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, decodeErr("supabase/auth", "token response", err)
	}
	return tok.toSession(time.Now()), nil
}

// SignUp creates an identity. The session is nil when the project requires
// e-mail confirmation.
func (c *Client) SignUp(ctx context.Context, email, password string, meta domain.UserMetadata) (*domain.Session, error) {
	ctx, span := tracer.Start(ctx, "Supabase.SignUp")
	defer span.End()

	_, body, err := c.send(ctx, request{
		method: http.MethodPost,
		url:    c.authURL("signup"),
		body: map[string]any{
			"email":    email,
			"password": password,
			"data":     meta,
		},
		bearer: c.apiKey,
		mapStatus: func(status int, body []byte) error {
			e := parseGotrueError(body)
			if e.ErrorCode == "user_already_exists" || strings.Contains(strings.ToLower(e.Msg), "already registered") {
				return &domain.ErrConflict{Message: "E-mail já cadastrado"}
			}
			if status == http.StatusUnprocessableEntity || status == http.StatusBadRequest {
				return &domain.ErrValidation{Field: "password", Message: firstNonEmpty(e.Msg, e.ErrorDescription, "Dados de cadastro inválidos")}
			}
			return nil
		},
	})
	if err != nil {
		return nil, authErr("supabase/auth", err)
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, decodeErr("supabase/auth", "signup response", err)
	}
	if tok.AccessToken == "" {
		return nil, nil
	}
	return tok.toSession(time.Now()), nil
}

// GetUser returns the identity behind an access token.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*domain.SessionUser, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetUser")
	defer span.End()

	_, body, err := c.send(ctx, request{
		method:     http.MethodGet,
		url:        c.authURL("user"),
		bearer:     accessToken,
		idempotent: true,
		mapStatus: func(status int, _ []byte) error {
			if status == http.StatusUnauthorized || status == http.StatusForbidden {
				return &domain.ErrUnauthorized{Message: "Sessão expirada"}
			}
			return nil
		},
	})
	if err != nil {
		return nil, authErr("supabase/auth", err)
	}

	var u gotrueUser
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, decodeErr("supabase/auth", "user", err)
	}
	su := u.toDomain()
	span.SetAttributes(attribute.String("user.id", su.ID))
	return &su, nil
}

// Logout revokes the session behind the access token.
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	ctx, span := tracer.Start(ctx, "Supabase.Logout")
	defer span.End()

	_, _, err := c.send(ctx, request{
		method: http.MethodPost,
		url:    c.authURL("logout"),
		bearer: accessToken,
		mapStatus: func(status int, _ []byte) error {
			if status == http.StatusUnauthorized || status == http.StatusForbidden || status == http.StatusNotFound {
				return &domain.ErrUnauthorized{Message: "session already revoked"}
			}
			return nil
		},
	})
	// An already revoked token is a successful logout.
	var unauthorized *domain.ErrUnauthorized
	if errors.As(err, &unauthorized) {
		return nil
	}
	if err != nil {
		return authErr("supabase/auth", err)
	}
	return nil
}

// authErr wraps transport failures, passing domain errors through.
func authErr(service string, err error) error {
	var authFailure *domain.ErrAuthFailure
	var conflict *domain.ErrConflict
	var validation *domain.ErrValidation
	var unauthorized *domain.ErrUnauthorized
	var circuitOpen *domain.ErrCircuitOpen
	switch {
	case errors.As(err, &authFailure), errors.As(err, &conflict), errors.As(err, &validation),
		errors.As(err, &unauthorized), errors.As(err, &circuitOpen):
		return err
	}
	return &domain.ErrExternalService{Service: service, Err: err}
}

// decodeErr reports an unreadable upstream answer as a backend failure.
func decodeErr(service, what string, err error) error {
	return &domain.ErrExternalService{Service: service, Err: fmt.Errorf("decode %s: %w", what, err)}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
