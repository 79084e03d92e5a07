package domain

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		raw  string
		want Role
	}{
		{"admin", RoleAdmin},
		{"ADMIN", RoleAdmin},
		{" Staff ", RoleStaff},
		{"client", RoleClient},
		{"", RoleClient},
		{"superuser", RoleClient},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseRole(tt.raw), "raw %q", tt.raw)
	}
}

func TestRoleHome(t *testing.T) {
	assert.Equal(t, RouteAdmin, RoleAdmin.Home())
	assert.Equal(t, RouteStaff, RoleStaff.Home())
	assert.Equal(t, RouteApp, RoleClient.Home())
	assert.Equal(t, RouteApp, Role("").Home())
}

func TestToProfile(t *testing.T) {
	rec := &ProfileRecord{
		ID:       "u1",
		Name:     "Ana",
		Role:     "STAFF",
		HeroCode: "HE123",
		Settings: json.RawMessage(`{"colorMode":"dark","card":{"templateId":"gold","fontSize":20}}`),
	}

	p := rec.ToProfile()
	assert.Equal(t, RoleStaff, p.Role)
	assert.Equal(t, "Ana", p.DisplayName)
	assert.Equal(t, "HE123", p.CustomerCode)
	assert.Equal(t, "dark", p.Settings.ColorMode)
	assert.Equal(t, "gold", p.Settings.Card.TemplateID)
	assert.Equal(t, 20, p.Settings.Card.FontSize)
}

func TestToProfile_MalformedSettings(t *testing.T) {
	rec := &ProfileRecord{ID: "u1", Settings: json.RawMessage(`"oops"`)}
	p := rec.ToProfile()
	assert.Equal(t, ProfileSettings{}, p.Settings)
	assert.Equal(t, RoleClient, p.Role)
}

func TestProfilePatchColumns(t *testing.T) {
	name, code := "Ana", "HE9"
	patch := ProfilePatch{DisplayName: &name, CustomerCode: &code}

	assert.False(t, patch.Empty())
	assert.Equal(t, map[string]any{"name": "Ana", "hero_code": "HE9"}, patch.Columns())
	assert.True(t, ProfilePatch{}.Empty())
}

func TestSessionExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := &Session{ExpiresAt: now.Add(time.Minute)}

	assert.False(t, s.Expired(now, 30*time.Second))
	assert.True(t, s.Expired(now, time.Minute))
	assert.False(t, (&Session{}).Expired(now, time.Minute))
}

func TestTokenClaims(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("any"))
	require.NoError(t, err)

	sub, gotExp, ok := TokenClaims(tok)
	require.True(t, ok)
	assert.Equal(t, "user-1", sub)
	assert.True(t, exp.Equal(gotExp))

	assert.Equal(t, "", TokenSubject("not-a-jwt"))
}

func TestAccessTokenContext(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "", AccessTokenFrom(ctx))
	assert.Equal(t, "tok", AccessTokenFrom(WithAccessToken(ctx, "tok")))
}
