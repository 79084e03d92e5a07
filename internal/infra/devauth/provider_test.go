package devauth_test

import (
	"context"
	"testing"
	"time"

	"github.com/burgerhero/burgerhero-bff/internal/domain"
	"github.com/burgerhero/burgerhero-bff/internal/infra/devauth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPasswordGrant(t *testing.T) {
	p := devauth.New("secret", zap.NewNop())
	require.NoError(t, p.Seed(devauth.DefaultSeed()))

	ctx := context.Background()
	s, err := p.PasswordGrant(ctx, "Admin@BurgerHero.dev", "admin123")
	require.NoError(t, err)
	assert.Equal(t, "admin@burgerhero.dev", s.User.Email)
	assert.NotEmpty(t, s.RefreshToken)

	sub, exp, ok := domain.TokenClaims(s.AccessToken)
	require.True(t, ok)
	assert.Equal(t, s.User.ID, sub)
	assert.WithinDuration(t, s.ExpiresAt, exp, time.Second)

	_, err = p.PasswordGrant(ctx, "admin@burgerhero.dev", "wrong")
	var authFailure *domain.ErrAuthFailure
	assert.ErrorAs(t, err, &authFailure)
}

func TestSeededProfileKeepsRawRole(t *testing.T) {
	p := devauth.New("secret", zap.NewNop())
	require.NoError(t, p.Seed(devauth.DefaultSeed()))

	ctx := context.Background()
	s, err := p.PasswordGrant(ctx, "admin@burgerhero.dev", "admin123")
	require.NoError(t, err)

	rec, err := p.GetProfile(ctx, s.User.ID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "ADMIN", rec.Role)
	assert.Equal(t, domain.RoleAdmin, rec.ToProfile().Role)
}

func TestRefreshGrantRotates(t *testing.T) {
	p := devauth.New("secret", zap.NewNop())
	_, err := p.AddUser("a@b.com", "secret1", domain.UserMetadata{Name: "Ana"})
	require.NoError(t, err)

	ctx := context.Background()
	s, err := p.PasswordGrant(ctx, "a@b.com", "secret1")
	require.NoError(t, err)

	next, err := p.RefreshGrant(ctx, s.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, s.RefreshToken, next.RefreshToken)

	_, err = p.RefreshGrant(ctx, s.RefreshToken)
	var authFailure *domain.ErrAuthFailure
	assert.ErrorAs(t, err, &authFailure)
}

func TestLogoutRevokesToken(t *testing.T) {
	p := devauth.New("secret", zap.NewNop())
	_, err := p.AddUser("a@b.com", "secret1", domain.UserMetadata{})
	require.NoError(t, err)

	ctx := context.Background()
	s, err := p.PasswordGrant(ctx, "a@b.com", "secret1")
	require.NoError(t, err)

	_, err = p.GetUser(ctx, s.AccessToken)
	require.NoError(t, err)

	require.NoError(t, p.Logout(ctx, s.AccessToken))
	_, err = p.GetUser(ctx, s.AccessToken)
	var unauthorized *domain.ErrUnauthorized
	assert.ErrorAs(t, err, &unauthorized)

	_, err = p.RefreshGrant(ctx, s.RefreshToken)
	assert.Error(t, err)
}

func TestEnsureUserBootstrap(t *testing.T) {
	p := devauth.New("secret", zap.NewNop())
	_, err := p.AddUser("a@b.com", "secret1", domain.UserMetadata{Name: "Ana", CPF: "52998224725"})
	require.NoError(t, err)

	ctx := context.Background()
	s, err := p.PasswordGrant(ctx, "a@b.com", "secret1")
	require.NoError(t, err)

	rec, err := p.GetProfile(ctx, s.User.ID)
	require.NoError(t, err)
	assert.Nil(t, rec)

	res, err := p.EnsureUserBootstrap(ctx, s.User.BootstrapRequest())
	require.NoError(t, err)
	assert.False(t, res.OK, "no access token in context")

	authed := domain.WithAccessToken(ctx, s.AccessToken)
	res, err = p.EnsureUserBootstrap(authed, s.User.BootstrapRequest())
	require.NoError(t, err)
	assert.True(t, res.OK)

	rec, err = p.GetProfile(ctx, s.User.ID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "Ana", rec.Name)
	assert.NotEmpty(t, rec.HeroCode)
	assert.Equal(t, 2, p.RepairCalls())
}

func TestFailRepair(t *testing.T) {
	p := devauth.New("secret", zap.NewNop())
	p.FailRepair("cpf já cadastrado")

	res, err := p.EnsureUserBootstrap(context.Background(), domain.BootstrapRequest{})
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, "cpf já cadastrado", res.Message)
}

func TestUpdateProfileAndSettings(t *testing.T) {
	p := devauth.New("secret", zap.NewNop())
	p.PutProfile(domain.ProfileRecord{ID: "u1", Name: "Ana"})

	ctx := context.Background()
	require.NoError(t, p.UpdateProfile(ctx, "u1", map[string]any{"hero_code": "HE123"}))
	require.NoError(t, p.SaveSettings(ctx, "u1", "flame", domain.ProfileSettings{ColorMode: "dark"}))

	rec, err := p.GetProfile(ctx, "u1")
	require.NoError(t, err)
	p1 := rec.ToProfile()
	assert.Equal(t, "HE123", p1.CustomerCode)
	assert.Equal(t, "flame", p1.HeroTheme)
	assert.Equal(t, "dark", p1.Settings.ColorMode)

	err = p.UpdateProfile(ctx, "u1", map[string]any{"role": "admin"})
	var validation *domain.ErrValidation
	assert.ErrorAs(t, err, &validation)

	err = p.UpdateProfile(ctx, "missing", map[string]any{"name": "x"})
	var notFound *domain.ErrNotFound
	assert.ErrorAs(t, err, &notFound)
}
