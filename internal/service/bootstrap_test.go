package service_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/burgerhero/burgerhero-bff/internal/domain"
	"github.com/burgerhero/burgerhero-bff/internal/infra/devauth"
	"github.com/burgerhero/burgerhero-bff/internal/infra/observability"
	"github.com/burgerhero/burgerhero-bff/internal/infra/state"
	"github.com/burgerhero/burgerhero-bff/internal/port"
	"github.com/burgerhero/burgerhero-bff/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// --- Mocks ---

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

// --- Harness ---

type harness struct {
	api     *devauth.Provider
	state   *state.Memory
	devices *service.Devices
	account *service.AccountService
	metrics *observability.Metrics
}

func newHarness(t *testing.T, profiles port.ProfileStore) *harness {
	t.Helper()
	api := devauth.New("test-secret", zap.NewNop())
	require.NoError(t, api.Seed(devauth.DefaultSeed()))
	if profiles == nil {
		profiles = api
	}

	st := state.NewMemory()
	metrics := observability.NewMetrics()
	devices := service.NewDevices(api, profiles, st, time.Minute, metrics, zap.NewNop())
	t.Cleanup(devices.Close)

	return &harness{
		api:     api,
		state:   st,
		devices: devices,
		account: service.NewAccountService(devices, profiles, metrics, zap.NewNop()),
		metrics: metrics,
	}
}

func (h *harness) device(t *testing.T, ctx context.Context, id string) *service.Device {
	t.Helper()
	dev, err := h.devices.Get(ctx, id)
	require.NoError(t, err)
	return dev
}

func sessionUser(id string) domain.SessionUser {
	return domain.SessionUser{
		ID:       id,
		Email:    "ana@burgerhero.dev",
		Metadata: domain.UserMetadata{Name: "Ana", CPF: "52998224725", Birthdate: "1990-05-01"},
	}
}

// --- BuildProfile ---

func TestBuildProfile_ExistingRow(t *testing.T) {
	profiles := &mockProfiles{}
	profiles.On("GetProfile", mock.Anything, "u1").Return(&domain.ProfileRecord{ID: "u1", Name: "Ana", Role: " Staff "}, nil)

	h := newHarness(t, profiles)
	dev := h.device(t, context.Background(), "dev-1")

	p, err := dev.Bootstrap.BuildProfile(context.Background(), sessionUser("u1"))
	require.NoError(t, err)
	assert.Equal(t, domain.RoleStaff, p.Role)
	profiles.AssertNotCalled(t, "EnsureUserBootstrap", mock.Anything, mock.Anything)
}

func TestBuildProfile_MissingRowRepairsExactlyOnce(t *testing.T) {
	profiles := &mockProfiles{}
	profiles.On("GetProfile", mock.Anything, "u1").Return(nil, nil)
	profiles.On("EnsureUserBootstrap", mock.Anything, mock.Anything).Return(&domain.BootstrapResult{OK: true}, nil)

	h := newHarness(t, profiles)
	dev := h.device(t, context.Background(), "dev-1")

	_, err := dev.Bootstrap.BuildProfile(context.Background(), sessionUser("u1"))
	var unrecoverable *domain.ErrProfileUnrecoverable
	require.ErrorAs(t, err, &unrecoverable)

	profiles.AssertNumberOfCalls(t, "EnsureUserBootstrap", 1)
	profiles.AssertNumberOfCalls(t, "GetProfile", 2)
}

func TestBuildProfile_RepairArgumentsComeFromMetadata(t *testing.T) {
	profiles := &mockProfiles{}
	profiles.On("GetProfile", mock.Anything, "u1").Return(nil, nil).Once()
	profiles.On("EnsureUserBootstrap", mock.Anything, domain.BootstrapRequest{
		Name:      "Ana",
		Email:     "ana@burgerhero.dev",
		CPF:       "52998224725",
		Birthdate: "1990-05-01",
	}).Return(&domain.BootstrapResult{OK: true}, nil).Once()
	profiles.On("GetProfile", mock.Anything, "u1").Return(&domain.ProfileRecord{ID: "u1", HeroCode: "HE001"}, nil).Once()

	h := newHarness(t, profiles)
	dev := h.device(t, context.Background(), "dev-1")

	p, err := dev.Bootstrap.BuildProfile(context.Background(), sessionUser("u1"))
	require.NoError(t, err)
	assert.Equal(t, "HE001", p.CustomerCode)
	assert.Equal(t, domain.RoleClient, p.Role)
	profiles.AssertExpectations(t)
}

func TestBuildProfile_RepairNotOK(t *testing.T) {
	profiles := &mockProfiles{}
	profiles.On("GetProfile", mock.Anything, "u1").Return(nil, nil)
	profiles.On("EnsureUserBootstrap", mock.Anything, mock.Anything).Return(&domain.BootstrapResult{OK: false, Message: "cpf inválido"}, nil)

	h := newHarness(t, profiles)
	dev := h.device(t, context.Background(), "dev-1")

	_, err := dev.Bootstrap.BuildProfile(context.Background(), sessionUser("u1"))
	var unrecoverable *domain.ErrProfileUnrecoverable
	require.ErrorAs(t, err, &unrecoverable)
	assert.Equal(t, "cpf inválido", unrecoverable.Reason)
	profiles.AssertNumberOfCalls(t, "GetProfile", 1)
	profiles.AssertNumberOfCalls(t, "EnsureUserBootstrap", 1)
}

func TestBuildProfile_BackendErrorIsNotRepaired(t *testing.T) {
	profiles := &mockProfiles{}
	profiles.On("GetProfile", mock.Anything, "u1").Return(nil, &domain.ErrExternalService{Service: "supabase/profiles", Err: errors.New("timeout")})

	h := newHarness(t, profiles)
	dev := h.device(t, context.Background(), "dev-1")

	_, err := dev.Bootstrap.BuildProfile(context.Background(), sessionUser("u1"))
	var ext *domain.ErrExternalService
	require.ErrorAs(t, err, &ext)
	profiles.AssertNotCalled(t, "EnsureUserBootstrap", mock.Anything, mock.Anything)
	assert.Equal(t, int64(1), h.account.BootstrapStats().BackendErrors)
}

// --- Initialize ---

func TestInitialize_NoSession(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	dev, err := h.account.Device(ctx, "dev-1")
	require.NoError(t, err)

	st := h.account.State(dev)
	assert.False(t, st.IsAuthed)
	assert.False(t, st.Loading)
	assert.Nil(t, st.User)
}

func TestInitialize_RestoresPersistedSessionOnce(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	dev, err := h.account.Device(ctx, "dev-1")
	require.NoError(t, err)
	_, err = h.account.SignIn(ctx, dev, &domain.SignInRequest{Email: "cliente@burgerhero.dev", Password: "cliente123"})
	require.NoError(t, err)

	// Simulate a process restart: the device context is rebuilt from state.
	h.devices.Drop("dev-1")
	revived := h.device(t, ctx, "dev-1")
	assert.True(t, revived.Auth.Snapshot().Loading)

	require.NoError(t, revived.Bootstrap.Initialize(ctx))
	require.NoError(t, revived.Bootstrap.Initialize(ctx))

	snap := revived.Auth.Snapshot()
	assert.True(t, snap.IsAuthed)
	assert.False(t, snap.Loading)
	assert.Equal(t, "cliente@burgerhero.dev", snap.User.Email)
}

func TestInitialize_LatchRunsBootstrapOnce(t *testing.T) {
	profiles := &mockProfiles{}
	profiles.On("GetProfile", mock.Anything, mock.Anything).Return(&domain.ProfileRecord{ID: "x", Name: "Ana"}, nil)

	h := newHarness(t, profiles)
	ctx := context.Background()

	dev := h.device(t, ctx, "dev-1")
	_, err := dev.Identity.SignInWithPassword(ctx, "cliente@burgerhero.dev", "cliente123")
	require.NoError(t, err)
	require.NoError(t, dev.Bootstrap.Sync(ctx))
	profiles.AssertNumberOfCalls(t, "GetProfile", 1)

	require.NoError(t, dev.Bootstrap.Initialize(ctx))
	require.NoError(t, dev.Bootstrap.Initialize(ctx))
	require.NoError(t, dev.Bootstrap.Initialize(ctx))
	profiles.AssertNumberOfCalls(t, "GetProfile", 2)
}

// outageState fails the next `failures` loads of keys under prefix with a
// backend error, then behaves like the wrapped store.
type outageState struct {
	*state.Memory
	prefix   string
	failures atomic.Int32
}

func (o *outageState) Load(ctx context.Context, key string, v any) (bool, error) {
	if strings.HasPrefix(key, o.prefix) && o.failures.Add(-1) >= 0 {
		return false, &domain.ErrExternalService{Service: "redis", Err: errors.New("connection refused")}
	}
	return o.Memory.Load(ctx, key, v)
}

func TestInitialize_RetriesAfterBackendOutage(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	dev, err := h.account.Device(ctx, "dev-1")
	require.NoError(t, err)
	_, err = h.account.SignIn(ctx, dev, &domain.SignInRequest{Email: "cliente@burgerhero.dev", Password: "cliente123"})
	require.NoError(t, err)
	require.NoError(t, h.state.Delete(ctx, "auth:dev-1"))

	flaky := &outageState{Memory: h.state, prefix: "identity:"}
	flaky.failures.Store(1)
	devices := service.NewDevices(h.api, h.api, flaky, time.Minute, h.metrics, zap.NewNop())
	t.Cleanup(devices.Close)

	revived, err := devices.Get(ctx, "dev-1")
	require.NoError(t, err)

	err = revived.Bootstrap.Initialize(ctx)
	var ext *domain.ErrExternalService
	require.ErrorAs(t, err, &ext)
	assert.False(t, revived.Auth.Snapshot().IsAuthed)

	require.NoError(t, revived.Bootstrap.Initialize(ctx))
	snap := revived.Auth.Snapshot()
	assert.True(t, snap.IsAuthed)
	assert.Equal(t, "cliente@burgerhero.dev", snap.User.Email)
}

func TestDevices_FailedRestoreIsNotCached(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	flaky := &outageState{Memory: h.state, prefix: "auth:"}
	flaky.failures.Store(1)
	devices := service.NewDevices(h.api, h.api, flaky, time.Minute, h.metrics, zap.NewNop())
	t.Cleanup(devices.Close)

	_, err := devices.Get(ctx, "dev-1")
	var ext *domain.ErrExternalService
	require.ErrorAs(t, err, &ext)
	assert.Equal(t, 0, devices.Len())

	dev, err := devices.Get(ctx, "dev-1")
	require.NoError(t, err)
	assert.Equal(t, "dev-1", dev.ID)
	assert.Equal(t, 1, devices.Len())
}

// --- Auth events ---

func TestOnAuthEvent_FailureForcesSignOut(t *testing.T) {
	profiles := &mockProfiles{}
	profiles.On("GetProfile", mock.Anything, mock.Anything).Return(&domain.ProfileRecord{ID: "x", Name: "Ana"}, nil).Once()
	profiles.On("GetProfile", mock.Anything, mock.Anything).Return(nil, &domain.ErrExternalService{Service: "supabase/profiles", Err: errors.New("boom")})

	h := newHarness(t, profiles)
	ctx := context.Background()

	dev, err := h.account.Device(ctx, "dev-1")
	require.NoError(t, err)
	sess, err := dev.Identity.SignInWithPassword(ctx, "cliente@burgerhero.dev", "cliente123")
	require.NoError(t, err)
	require.NoError(t, dev.Bootstrap.Sync(ctx))
	require.True(t, dev.Auth.Snapshot().IsAuthed)

	dev.Bootstrap.OnAuthEvent(ctx, domain.EventTokenRefreshed, sess)
	require.NoError(t, dev.Bootstrap.Sync(ctx))

	snap := dev.Auth.Snapshot()
	assert.False(t, snap.IsAuthed)
	assert.Nil(t, snap.User)

	current, err := dev.Identity.GetSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, current, "identity session ended too")
}

func TestOnAuthEvent_SignedOutClearsCache(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	dev, err := h.account.Device(ctx, "dev-1")
	require.NoError(t, err)
	_, err = h.account.SignIn(ctx, dev, &domain.SignInRequest{Email: "cliente@burgerhero.dev", Password: "cliente123"})
	require.NoError(t, err)

	dev.Bootstrap.OnAuthEvent(ctx, domain.EventSignedOut, nil)
	require.NoError(t, dev.Bootstrap.Sync(ctx))
	assert.False(t, dev.Auth.Snapshot().IsAuthed)
}

func TestSuccessfulBuildSeedsPreferences(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	dev, err := h.account.Device(ctx, "dev-1")
	require.NoError(t, err)
	st, err := h.account.SignIn(ctx, dev, &domain.SignInRequest{Email: "cliente@burgerhero.dev", Password: "cliente123"})
	require.NoError(t, err)

	require.NoError(t, h.api.SaveSettings(ctx, st.User.ID, "flame", domain.ProfileSettings{ColorMode: domain.ColorModeDark}))
	_, err = h.account.SignOut(ctx, dev)
	require.NoError(t, err)
	_, err = h.account.SignIn(ctx, dev, &domain.SignInRequest{Email: "cliente@burgerhero.dev", Password: "cliente123"})
	require.NoError(t, err)

	snap := h.account.Preferences(dev)
	assert.Equal(t, "flame", snap.HeroTheme)
	assert.Equal(t, []string{"theme-flame", "dark"}, snap.RootClasses)
}
