package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/burgerhero/burgerhero-bff/internal/domain"
	"github.com/burgerhero/burgerhero-bff/internal/infra/state"
	"github.com/burgerhero/burgerhero-bff/internal/port"
	"github.com/burgerhero/burgerhero-bff/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockProfiles struct {
	mock.Mock
}

func (m *mockProfiles) GetProfile(ctx context.Context, userID string) (*domain.ProfileRecord, error) {
	args := m.Called(ctx, userID)
	rec, _ := args.Get(0).(*domain.ProfileRecord)
	return rec, args.Error(1)
}

func (m *mockProfiles) EnsureUserBootstrap(ctx context.Context, req domain.BootstrapRequest) (*domain.BootstrapResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*domain.BootstrapResult)
	return res, args.Error(1)
}

func (m *mockProfiles) UpdateProfile(ctx context.Context, userID string, columns map[string]any) error {
	return m.Called(ctx, userID, columns).Error(0)
}

func (m *mockProfiles) SaveSettings(ctx context.Context, userID, heroTheme string, settings domain.ProfileSettings) error {
	return m.Called(ctx, userID, heroTheme, settings).Error(0)
}

func strPtr(s string) *string { return &s }

func newAuthStore(t *testing.T, ctx context.Context, st port.StateStore, profiles port.ProfileStore) *store.AuthStore {
	t.Helper()
	s, err := store.NewAuthStore(ctx, "dev-1", st, profiles, zap.NewNop())
	require.NoError(t, err)
	return s
}

// flakyState fails every Load with a backend error while down is set.
type flakyState struct {
	*state.Memory
	down bool
}

func (f *flakyState) Load(ctx context.Context, key string, v any) (bool, error) {
	if f.down {
		return false, &domain.ErrExternalService{Service: "redis", Err: errors.New("connection refused")}
	}
	return f.Memory.Load(ctx, key, v)
}

func TestAuthStore_LoginLogoutPersist(t *testing.T) {
	ctx := context.Background()
	st := state.NewMemory()

	s := newAuthStore(t, ctx, st, &mockProfiles{})
	snap := s.Snapshot()
	assert.True(t, snap.Loading)
	assert.False(t, snap.IsAuthed)
	assert.Nil(t, snap.User)

	require.NoError(t, s.Login(ctx, &domain.UserProfile{ID: "u1", DisplayName: "Ana", Role: "STAFF"}))
	s.SetLoading(false)

	restored := newAuthStore(t, ctx, st, &mockProfiles{})
	snap = restored.Snapshot()
	assert.True(t, snap.IsAuthed)
	assert.True(t, snap.Loading, "loading is never persisted")
	require.NotNil(t, snap.User)
	assert.Equal(t, domain.RoleStaff, snap.User.Role)

	require.NoError(t, restored.Logout(ctx))
	snap = restored.Snapshot()
	assert.False(t, snap.IsAuthed)
	assert.Nil(t, snap.User)
}

func TestAuthStore_CorruptCacheStartsLoggedOut(t *testing.T) {
	st := state.NewMemory()
	st.Put("auth:dev-1", []byte(`{"user":`))

	s := newAuthStore(t, context.Background(), st, &mockProfiles{})
	assert.False(t, s.Snapshot().IsAuthed)
}

func TestAuthStore_UpdateUser(t *testing.T) {
	ctx := context.Background()
	s := newAuthStore(t, ctx, state.NewMemory(), &mockProfiles{})

	ok, err := s.UpdateUser(ctx, domain.ProfilePatch{DisplayName: strPtr("Bia")})
	require.NoError(t, err)
	assert.False(t, ok, "no-op when logged out")
	assert.Nil(t, s.User())

	require.NoError(t, s.Login(ctx, &domain.UserProfile{ID: "u1", DisplayName: "Ana", Email: "ana@x.com", Role: domain.RoleClient}))
	ok, err = s.UpdateUser(ctx, domain.ProfilePatch{DisplayName: strPtr("Bia")})
	require.NoError(t, err)
	assert.True(t, ok)

	u := s.User()
	assert.Equal(t, "Bia", u.DisplayName)
	assert.Equal(t, "ana@x.com", u.Email)
	assert.Equal(t, domain.RoleClient, u.Role)
}

func TestAuthStore_SnapshotIsACopy(t *testing.T) {
	ctx := context.Background()
	s := newAuthStore(t, ctx, state.NewMemory(), &mockProfiles{})
	require.NoError(t, s.Login(ctx, &domain.UserProfile{ID: "u1", DisplayName: "Ana"}))

	u := s.User()
	u.DisplayName = "changed"
	assert.Equal(t, "Ana", s.User().DisplayName)
}

func TestRefreshUserFromDB_FillsEmptyCustomerCode(t *testing.T) {
	ctx := context.Background()
	st := state.NewMemory()
	require.NoError(t, st.Save(ctx, "auth:dev-1", map[string]any{
		"user":     domain.UserProfile{ID: "u1", DisplayName: "Ana", CustomerCode: "", Role: domain.RoleClient},
		"isAuthed": true,
	}))

	profiles := &mockProfiles{}
	profiles.On("GetProfile", mock.Anything, "u1").Return(&domain.ProfileRecord{ID: "u1", Name: "Ana", HeroCode: "HE123"}, nil)

	s := newAuthStore(t, ctx, st, profiles)
	require.NoError(t, s.RefreshUserFromDB(ctx, "u1"))
	assert.Equal(t, "HE123", s.User().CustomerCode)

	// The refreshed value is persisted.
	restored := newAuthStore(t, ctx, st, profiles)
	assert.Equal(t, "HE123", restored.User().CustomerCode)
	profiles.AssertExpectations(t)
}

func TestRefreshUserFromDB_NeverOverwritesWithEmpty(t *testing.T) {
	ctx := context.Background()
	local := &domain.UserProfile{
		ID:           "u1",
		DisplayName:  "Ana Local",
		Email:        "ana@local.com",
		CPF:          "52998224725",
		AvatarURL:    "https://cdn/a.png",
		CustomerCode: "HE001",
		HeroTheme:    "flame",
		Role:         domain.RoleStaff,
	}

	tests := []struct {
		name   string
		remote domain.ProfileRecord
	}{
		{"all empty", domain.ProfileRecord{ID: "u1"}},
		{"different non-empty", domain.ProfileRecord{ID: "u1", Name: "Remote", Email: "r@r.com", HeroCode: "HE999", HeroTheme: "ice"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profiles := &mockProfiles{}
			rec := tt.remote
			profiles.On("GetProfile", mock.Anything, "u1").Return(&rec, nil)

			s := newAuthStore(t, ctx, state.NewMemory(), profiles)
			require.NoError(t, s.Login(ctx, local))
			require.NoError(t, s.RefreshUserFromDB(ctx, "u1"))

			u := s.User()
			assert.Equal(t, local.DisplayName, u.DisplayName)
			assert.Equal(t, local.Email, u.Email)
			assert.Equal(t, local.CPF, u.CPF)
			assert.Equal(t, local.AvatarURL, u.AvatarURL)
			assert.Equal(t, local.CustomerCode, u.CustomerCode)
			assert.Equal(t, local.HeroTheme, u.HeroTheme)
			assert.Equal(t, domain.RoleStaff, u.Role, "empty remote role keeps the local one")
		})
	}
}

func TestRefreshUserFromDB_ReplacesPlaceholderName(t *testing.T) {
	for _, placeholder := range []string{"", "Herói", "Heroi"} {
		t.Run(placeholder, func(t *testing.T) {
			ctx := context.Background()
			profiles := &mockProfiles{}
			profiles.On("GetProfile", mock.Anything, "u1").Return(&domain.ProfileRecord{ID: "u1", Name: "Ana", Role: "ADMIN"}, nil)

			s := newAuthStore(t, ctx, state.NewMemory(), profiles)
			require.NoError(t, s.Login(ctx, &domain.UserProfile{ID: "u1", DisplayName: placeholder}))
			require.NoError(t, s.RefreshUserFromDB(ctx, "u1"))

			u := s.User()
			assert.Equal(t, "Ana", u.DisplayName)
			assert.Equal(t, domain.RoleAdmin, u.Role)
		})
	}
}

func TestRefreshUserFromDB_BackendErrorLeavesState(t *testing.T) {
	ctx := context.Background()
	profiles := &mockProfiles{}
	profiles.On("GetProfile", mock.Anything, "u1").Return(nil, &domain.ErrExternalService{Service: "supabase/profiles", Err: errors.New("boom")})

	s := newAuthStore(t, ctx, state.NewMemory(), profiles)
	require.NoError(t, s.Login(ctx, &domain.UserProfile{ID: "u1", DisplayName: "Ana"}))

	err := s.RefreshUserFromDB(ctx, "u1")
	var ext *domain.ErrExternalService
	require.ErrorAs(t, err, &ext)
	assert.Equal(t, "Ana", s.User().DisplayName)
}

func TestRefreshUserFromDB_IgnoresOtherUsers(t *testing.T) {
	ctx := context.Background()
	profiles := &mockProfiles{}

	s := newAuthStore(t, ctx, state.NewMemory(), profiles)
	require.NoError(t, s.RefreshUserFromDB(ctx, "u1"), "logged out")

	require.NoError(t, s.Login(ctx, &domain.UserProfile{ID: "u2"}))
	require.NoError(t, s.RefreshUserFromDB(ctx, "u1"))
	profiles.AssertNotCalled(t, "GetProfile", mock.Anything, mock.Anything)
}

func TestAuthStore_BackendFailureKeepsCache(t *testing.T) {
	ctx := context.Background()
	st := &flakyState{Memory: state.NewMemory()}

	s := newAuthStore(t, ctx, st, &mockProfiles{})
	require.NoError(t, s.Login(ctx, &domain.UserProfile{ID: "u1", DisplayName: "Ana"}))

	st.down = true
	_, err := store.NewAuthStore(ctx, "dev-1", st, &mockProfiles{}, zap.NewNop())
	var ext *domain.ErrExternalService
	require.ErrorAs(t, err, &ext)

	st.down = false
	restored := newAuthStore(t, ctx, st, &mockProfiles{})
	snap := restored.Snapshot()
	assert.True(t, snap.IsAuthed)
	assert.Equal(t, "Ana", snap.User.DisplayName)
}
