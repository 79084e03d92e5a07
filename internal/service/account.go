package service

import (
	"context"
	"errors"
	"time"

	"github.com/burgerhero/burgerhero-bff/internal/domain"
	"github.com/burgerhero/burgerhero-bff/internal/infra/observability"
	"github.com/burgerhero/burgerhero-bff/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var accountTracer = otel.Tracer("service/account")

// AccountService implements the session and profile operations exposed to
// the browser.
type AccountService struct {
	devices  *Devices
	profiles port.ProfileStore
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewAccountService creates a new account service.
func NewAccountService(devices *Devices, profiles port.ProfileStore, metrics *observability.Metrics, logger *zap.Logger) *AccountService {
	return &AccountService{
		devices:  devices,
		profiles: profiles,
		metrics:  metrics,
		logger:   logger,
	}
}

// Device returns the device context for id, bootstrapped.
func (s *AccountService) Device(ctx context.Context, id string) (*Device, error) {
	dev, err := s.devices.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := dev.Bootstrap.Initialize(ctx); err != nil {
		if transient(err) {
			// The cached state stays readable while the backend is down.
			s.logger.Warn("account: bootstrap degraded", zap.String("device_id", id), zap.Error(err))
			return dev, nil
		}
		var unrecoverable *domain.ErrProfileUnrecoverable
		if !errors.As(err, &unrecoverable) {
			return nil, err
		}
	}
	return dev, nil
}

// ============================================================
// Session: GET /v1/session
// ============================================================

// State returns the auth state of a device.
func (s *AccountService) State(dev *Device) *domain.AuthState {
	snap := dev.Auth.Snapshot()
	st := &domain.AuthState{
		User:     snap.User,
		IsAuthed: snap.IsAuthed,
		Loading:  snap.Loading,
	}
	if snap.User != nil {
		st.Home = snap.User.Role.Home()
	}
	var unrecoverable *domain.ErrProfileUnrecoverable
	if err := dev.Bootstrap.LastError(); errors.As(err, &unrecoverable) && !snap.IsAuthed {
		st.Message = unrecoverable.UserMessage()
	}
	return st
}

// ============================================================
// SignIn: POST /v1/auth/sign-in
// ============================================================

func (s *AccountService) SignIn(ctx context.Context, dev *Device, req *domain.SignInRequest) (*domain.AuthState, error) {
	ctx, span := accountTracer.Start(ctx, "AccountService.SignIn")
	defer span.End()

	start := time.Now()
	defer func() { s.metrics.RecordDuration("sign_in", time.Since(start)) }()

	if _, err := dev.Identity.SignInWithPassword(ctx, req.Email, req.Password); err != nil {
		s.logger.Info("account: sign-in rejected", zap.String("device_id", dev.ID), zap.Error(err))
		return nil, err
	}
	return s.settle(ctx, dev)
}

// ============================================================
// SignUp: POST /v1/auth/sign-up
// ============================================================

func (s *AccountService) SignUp(ctx context.Context, dev *Device, req *domain.SignUpRequest) (*domain.AuthState, error) {
	ctx, span := accountTracer.Start(ctx, "AccountService.SignUp")
	defer span.End()

	sess, err := dev.Identity.SignUp(ctx, req.Email, req.Password, req.Metadata())
	if err != nil {
		return nil, err
	}
	if sess == nil {
		st := s.State(dev)
		st.Message = "Cadastro criado. Confirme seu e-mail para entrar."
		return st, nil
	}
	return s.settle(ctx, dev)
}

// settle waits for the SIGNED_IN event to be handled and reports the
// resulting state. A failed profile build has already signed the device out.
func (s *AccountService) settle(ctx context.Context, dev *Device) (*domain.AuthState, error) {
	if err := dev.Bootstrap.Sync(ctx); err != nil {
		return nil, err
	}
	st := s.State(dev)
	if st.IsAuthed {
		trace.SpanFromContext(ctx).SetAttributes(attribute.String("user.role", string(st.User.Role)))
		return st, nil
	}
	if err := dev.Bootstrap.LastError(); err != nil {
		return nil, err
	}
	return nil, &domain.ErrUnauthorized{Message: "Não foi possível iniciar a sessão"}
}

// ============================================================
// SignOut: POST /v1/auth/sign-out
// ============================================================

func (s *AccountService) SignOut(ctx context.Context, dev *Device) (*domain.AuthState, error) {
	ctx, span := accountTracer.Start(ctx, "AccountService.SignOut")
	defer span.End()

	if err := dev.Identity.SignOut(ctx); err != nil {
		return nil, err
	}
	if err := dev.Bootstrap.Sync(ctx); err != nil {
		return nil, err
	}
	return s.State(dev), nil
}

// ============================================================
// Profile: PATCH /v1/me, POST /v1/me/refresh
// ============================================================

// UpdateProfile writes the patch remotely, then merges it locally. A
// backend failure leaves the local user untouched.
func (s *AccountService) UpdateProfile(ctx context.Context, dev *Device, patch domain.ProfilePatch) (*domain.UserProfile, error) {
	ctx, span := accountTracer.Start(ctx, "AccountService.UpdateProfile")
	defer span.End()

	if patch.Empty() {
		return nil, &domain.ErrValidation{Field: "body", Message: "nenhum campo para atualizar"}
	}
	ctx, user, err := s.authorized(ctx, dev)
	if err != nil {
		return nil, err
	}

	if err := s.profiles.UpdateProfile(ctx, user.ID, patch.Columns()); err != nil {
		return nil, err
	}
	if _, err := dev.Auth.UpdateUser(ctx, patch); err != nil {
		return nil, err
	}
	return dev.Auth.User(), nil
}

// RefreshFromDB fills empty local fields from the canonical profile.
func (s *AccountService) RefreshFromDB(ctx context.Context, dev *Device) (*domain.UserProfile, error) {
	ctx, span := accountTracer.Start(ctx, "AccountService.RefreshFromDB")
	defer span.End()

	ctx, user, err := s.authorized(ctx, dev)
	if err != nil {
		return nil, err
	}
	if err := dev.Auth.RefreshUserFromDB(ctx, user.ID); err != nil {
		return nil, err
	}
	return dev.Auth.User(), nil
}

// ============================================================
// Preferences: GET/PUT /v1/preferences, POST /v1/preferences/save
// ============================================================

// Preferences returns the preference snapshot of a device.
func (s *AccountService) Preferences(dev *Device) domain.PreferenceSnapshot {
	return dev.Prefs.Snapshot()
}

// UpdatePreferences changes the local preferences. Signed-out devices may
// customize too; nothing is sent to the backend.
func (s *AccountService) UpdatePreferences(ctx context.Context, dev *Device, u domain.PreferencesUpdate) (domain.PreferenceSnapshot, error) {
	if err := dev.Prefs.Update(ctx, u); err != nil {
		return domain.PreferenceSnapshot{}, err
	}
	return dev.Prefs.Snapshot(), nil
}

// SavePreferences mirrors the local preferences into the remote profile.
func (s *AccountService) SavePreferences(ctx context.Context, dev *Device) (domain.PreferenceSnapshot, error) {
	ctx, span := accountTracer.Start(ctx, "AccountService.SavePreferences")
	defer span.End()

	ctx, user, err := s.authorized(ctx, dev)
	if err != nil {
		return domain.PreferenceSnapshot{}, err
	}

	snap := dev.Prefs.Snapshot()
	if err := s.profiles.SaveSettings(ctx, user.ID, snap.HeroTheme, snap.Settings()); err != nil {
		return domain.PreferenceSnapshot{}, err
	}
	hero := snap.HeroTheme
	if _, err := dev.Auth.UpdateUser(ctx, domain.ProfilePatch{HeroTheme: &hero}); err != nil {
		return domain.PreferenceSnapshot{}, err
	}
	return snap, nil
}

// ============================================================
// Reset: POST /v1/session/reset
// ============================================================

// Reset clears every cache of a device and signs it out. The next request
// starts from a fresh device context.
func (s *AccountService) Reset(ctx context.Context, deviceID string) error {
	ctx, span := accountTracer.Start(ctx, "AccountService.Reset")
	defer span.End()

	dev, err := s.devices.Get(ctx, deviceID)
	if err != nil {
		return err
	}
	if err := dev.Identity.SignOut(ctx); err != nil {
		s.logger.Warn("account: sign-out during reset failed", zap.Error(err))
	}
	_ = dev.Bootstrap.Sync(ctx)

	if err := dev.Auth.Clear(ctx); err != nil {
		return err
	}
	if err := dev.Prefs.Reset(ctx); err != nil {
		return err
	}
	s.devices.Drop(deviceID)
	s.logger.Info("account: device reset", zap.String("device_id", deviceID))
	return nil
}

// ============================================================
// Ops
// ============================================================

// BootstrapStats returns the counters behind GET /v1/ops/bootstrap.
func (s *AccountService) BootstrapStats() *domain.BootstrapStats {
	return s.metrics.BootstrapSnapshot(s.devices.Len())
}

// authorized returns ctx carrying the device's access token and the
// current user.
func (s *AccountService) authorized(ctx context.Context, dev *Device) (context.Context, *domain.UserProfile, error) {
	user := dev.Auth.User()
	if user == nil {
		return ctx, nil, &domain.ErrUnauthorized{Message: "Faça login para continuar"}
	}
	sess, err := dev.Identity.GetSession(ctx)
	if err != nil {
		return ctx, nil, err
	}
	if sess == nil {
		_ = dev.Bootstrap.Sync(ctx)
		return ctx, nil, &domain.ErrUnauthorized{Message: "Sessão expirada"}
	}
	return domain.WithAccessToken(ctx, sess.AccessToken), user, nil
}
