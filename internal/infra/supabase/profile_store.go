package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/burgerhero/burgerhero-bff/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// ProfileStore implementation: profiles table + bootstrap RPC
// ============================================================

const profileColumns = "id,name,email,cpf,role,avatar_url,hero_code,hero_theme,settings,birthdate,whatsapp"

// GetProfile fetches the profile row of a user. Returns nil, nil when the
// row does not exist.
func (c *Client) GetProfile(ctx context.Context, userID string) (*domain.ProfileRecord, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetProfile")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	path := fmt.Sprintf("profiles?id=eq.%s&select=%s&limit=1", url.QueryEscape(userID), profileColumns)
	_, body, err := c.send(ctx, request{
		method:     http.MethodGet,
		url:        c.restURL(path),
		bearer:     c.bearer(ctx),
		idempotent: true,
	})
	if err != nil {
		return nil, authErr("supabase/profiles", err)
	}
	if emptyBody(body) {
		return nil, nil
	}

	var rows []domain.ProfileRecord
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, decodeErr("supabase/profiles", "profiles", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// EnsureUserBootstrap calls the ensure_user_bootstrap stored procedure.
// The procedure is idempotent; it creates the profile row when missing.
func (c *Client) EnsureUserBootstrap(ctx context.Context, req domain.BootstrapRequest) (*domain.BootstrapResult, error) {
	ctx, span := tracer.Start(ctx, "Supabase.EnsureUserBootstrap")
	defer span.End()

	_, body, err := c.send(ctx, request{
		method: http.MethodPost,
		url:    c.restURL("rpc/ensure_user_bootstrap"),
		body:   req,
		bearer: c.bearer(ctx),
	})
	if err != nil {
		return nil, authErr("supabase/rpc", err)
	}

	result, err := decodeBootstrapResult(body)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("supabase: ensure_user_bootstrap",
		zap.Bool("ok", result.OK),
		zap.String("message", result.Message),
	)
	return result, nil
}

// decodeBootstrapResult accepts the procedure answer as an object or as a
// single-row array (set-returning function).
func decodeBootstrapResult(body []byte) (*domain.BootstrapResult, error) {
	trimmed := bytes.TrimSpace(body)
	if emptyBody(trimmed) {
		return &domain.BootstrapResult{OK: false, Message: "empty response"}, nil
	}
	if trimmed[0] == '[' {
		var rows []domain.BootstrapResult
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return nil, decodeErr("supabase/rpc", "ensure_user_bootstrap", err)
		}
		if len(rows) == 0 {
			return &domain.BootstrapResult{OK: false, Message: "empty response"}, nil
		}
		return &rows[0], nil
	}
	var result domain.BootstrapResult
	if err := json.Unmarshal(trimmed, &result); err != nil {
		return nil, decodeErr("supabase/rpc", "ensure_user_bootstrap", err)
	}
	return &result, nil
}

// UpdateProfile patches profile columns.
func (c *Client) UpdateProfile(ctx context.Context, userID string, columns map[string]any) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateProfile")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	_, _, err := c.send(ctx, request{
		method: http.MethodPatch,
		url:    c.restURL("profiles?id=eq." + url.QueryEscape(userID)),
		body:   columns,
		bearer: c.bearer(ctx),
		prefer: "return=minimal",
	})
	if err != nil {
		return authErr("supabase/profiles", err)
	}
	return nil
}

// SaveSettings mirrors the device preferences into the profile.
func (c *Client) SaveSettings(ctx context.Context, userID, heroTheme string, settings domain.ProfileSettings) error {
	ctx, span := tracer.Start(ctx, "Supabase.SaveSettings")
	defer span.End()

	return c.UpdateProfile(ctx, userID, map[string]any{
		"hero_theme": heroTheme,
		"settings":   settings,
	})
}
