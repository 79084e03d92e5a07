package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/burgerhero/burgerhero-bff/internal/domain"
	"github.com/burgerhero/burgerhero-bff/internal/infra/observability"
	"github.com/burgerhero/burgerhero-bff/internal/port"
	"github.com/burgerhero/burgerhero-bff/internal/store"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var bootstrapTracer = otel.Tracer("service/bootstrap")

// Bootstrapper turns the identity session of a device into a populated
// auth store. Initialize and every auth event of the device run through
// one mailbox, so they never interleave.
type Bootstrapper struct {
	identity port.IdentityProvider
	profiles port.ProfileStore
	auth     *store.AuthStore
	prefs    *store.Preferences
	builds   *singleflight.Group
	metrics  *observability.Metrics
	logger   *zap.Logger

	mb mailbox
	// initDone is only touched from the mailbox.
	initDone bool

	mu      sync.Mutex
	lastErr error
}

// NewBootstrapper wires a bootstrapper to a device and subscribes it to the
// device's auth events. builds is shared by every device so concurrent
// builds for the same user hit the backend once.
func NewBootstrapper(
	identity port.IdentityProvider,
	profiles port.ProfileStore,
	auth *store.AuthStore,
	prefs *store.Preferences,
	builds *singleflight.Group,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Bootstrapper {
	b := &Bootstrapper{
		identity: identity,
		profiles: profiles,
		auth:     auth,
		prefs:    prefs,
		builds:   builds,
		metrics:  metrics,
		logger:   logger,
		mb:       mailbox{logger: logger},
	}
	identity.Subscribe(b.OnAuthEvent)
	return b
}

// ============================================================
// Initialize: first use of a device
// ============================================================

// Initialize runs the first bootstrap of the device. Later calls return
// immediately once a run has finished without a backend failure; a run
// that hit an unavailable backend is retried by the next call.
func (b *Bootstrapper) Initialize(ctx context.Context) error {
	work := context.WithoutCancel(ctx)
	var err error
	callErr := b.mb.call(ctx, func() {
		if b.initDone {
			return
		}
		err = b.initialize(work)
		b.initDone = !transient(err)
	})
	if callErr != nil {
		return callErr
	}
	return err
}

func (b *Bootstrapper) initialize(ctx context.Context) error {
	ctx, span := bootstrapTracer.Start(ctx, "Bootstrapper.Initialize")
	defer span.End()
	defer b.auth.SetLoading(false)

	sess, err := b.identity.GetSession(ctx)
	if err != nil {
		b.logger.Error("bootstrap: failed to fetch session", zap.Error(err))
		b.metrics.IncrBootstrap(observability.OutcomeBackendError)
		b.setLastErr(err)
		return err
	}
	if sess == nil {
		b.metrics.IncrBootstrap(observability.OutcomeUnauthenticated)
		if err := b.auth.Logout(ctx); err != nil {
			b.logger.Warn("bootstrap: failed to clear auth cache", zap.Error(err))
		}
		return nil
	}
	return b.load(ctx, sess)
}

// transient reports whether err comes from a backend that may recover.
func transient(err error) bool {
	var ext *domain.ErrExternalService
	var open *domain.ErrCircuitOpen
	return errors.As(err, &ext) || errors.As(err, &open)
}

// ============================================================
// Auth events
// ============================================================

// OnAuthEvent queues an auth event for the device. It returns without
// waiting; use Sync to wait for it to be handled.
func (b *Bootstrapper) OnAuthEvent(ctx context.Context, event domain.AuthEvent, session *domain.Session) {
	work := context.WithoutCancel(ctx)
	b.mb.post(func() {
		b.handleEvent(work, event, session)
	})
}

// Sync waits until every event queued before the call has been handled.
func (b *Bootstrapper) Sync(ctx context.Context) error {
	return b.mb.call(ctx, func() {})
}

func (b *Bootstrapper) handleEvent(ctx context.Context, event domain.AuthEvent, session *domain.Session) {
	ctx, span := bootstrapTracer.Start(ctx, "Bootstrapper.OnAuthEvent")
	defer span.End()
	span.SetAttributes(attribute.String("auth.event", string(event)))

	b.metrics.IncrAuthEvent(event)
	b.logger.Debug("bootstrap: handling auth event", zap.String("event", string(event)))

	switch event {
	case domain.EventSignedOut:
		if err := b.auth.Logout(ctx); err != nil {
			b.logger.Warn("bootstrap: failed to clear auth cache", zap.Error(err))
		}
	case domain.EventSignedIn, domain.EventTokenRefreshed, domain.EventUserUpdated:
		if session == nil {
			return
		}
		_ = b.load(ctx, session)
	default:
		b.logger.Warn("bootstrap: ignoring unknown auth event", zap.String("event", string(event)))
	}
}

// load builds the profile of a session and logs it in. Any failure signs
// the device out.
func (b *Bootstrapper) load(ctx context.Context, sess *domain.Session) error {
	ctx = domain.WithAccessToken(ctx, sess.AccessToken)

	profile, err := b.BuildProfile(ctx, sess.User)
	if err != nil {
		b.logger.Error("bootstrap: profile build failed, signing out",
			zap.String("user_id", sess.User.ID),
			zap.Error(err),
		)
		b.setLastErr(err)
		b.forceSignOut(ctx)
		return err
	}

	if err := b.auth.Login(ctx, profile); err != nil {
		b.logger.Warn("bootstrap: failed to persist auth cache", zap.Error(err))
	}
	if err := b.prefs.Seed(ctx, profile); err != nil {
		b.logger.Warn("bootstrap: failed to seed preferences", zap.Error(err))
	}
	b.prefs.Theme.Apply()
	b.setLastErr(nil)
	return nil
}

// forceSignOut clears the cache right away and ends the identity session.
// The SIGNED_OUT event it emits is queued behind the current work.
func (b *Bootstrapper) forceSignOut(ctx context.Context) {
	if err := b.auth.Logout(ctx); err != nil {
		b.logger.Warn("bootstrap: failed to clear auth cache", zap.Error(err))
	}
	if err := b.identity.SignOut(ctx); err != nil {
		b.logger.Warn("bootstrap: sign-out failed", zap.Error(err))
	}
}

// LastError returns the error of the last failed bootstrap, cleared by the
// next successful one.
func (b *Bootstrapper) LastError() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}

func (b *Bootstrapper) setLastErr(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastErr = err
}

// ============================================================
// BuildProfile: fetch, repair once, fetch again
// ============================================================

// BuildProfile loads the profile of user. A missing row is repaired with
// exactly one ensure_user_bootstrap call followed by one more fetch.
func (b *Bootstrapper) BuildProfile(ctx context.Context, user domain.SessionUser) (*domain.UserProfile, error) {
	v, err, shared := b.builds.Do(user.ID, func() (any, error) {
		return b.buildProfile(ctx, user)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		b.logger.Debug("bootstrap: shared profile build", zap.String("user_id", user.ID))
	}
	p := *v.(*domain.UserProfile)
	return &p, nil
}

func (b *Bootstrapper) buildProfile(ctx context.Context, user domain.SessionUser) (*domain.UserProfile, error) {
	ctx, span := bootstrapTracer.Start(ctx, "Bootstrapper.BuildProfile")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", user.ID))

	start := time.Now()
	defer func() {
		b.metrics.RecordDuration("build_profile", time.Since(start))
	}()

	rec, err := b.profiles.GetProfile(ctx, user.ID)
	if err != nil {
		return nil, b.backendError(err)
	}
	if rec != nil {
		b.metrics.IncrBootstrap(observability.OutcomeOK)
		return rec.ToProfile(), nil
	}

	b.logger.Info("bootstrap: profile missing, running repair", zap.String("user_id", user.ID))
	res, err := b.profiles.EnsureUserBootstrap(ctx, user.BootstrapRequest())
	if err != nil {
		b.metrics.IncrRepairCall(false)
		return nil, b.backendError(err)
	}
	b.metrics.IncrRepairCall(res.OK)
	if !res.OK {
		b.metrics.IncrBootstrap(observability.OutcomeUnrecoverable)
		return nil, &domain.ErrProfileUnrecoverable{UserID: user.ID, Reason: res.Message}
	}

	rec, err = b.profiles.GetProfile(ctx, user.ID)
	if err != nil {
		return nil, b.backendError(err)
	}
	if rec == nil {
		b.metrics.IncrBootstrap(observability.OutcomeUnrecoverable)
		return nil, &domain.ErrProfileUnrecoverable{UserID: user.ID, Reason: "profile still missing after repair"}
	}

	b.metrics.IncrBootstrap(observability.OutcomeRepaired)
	return rec.ToProfile(), nil
}

func (b *Bootstrapper) backendError(err error) error {
	b.metrics.IncrBootstrap(observability.OutcomeBackendError)
	var ext *domain.ErrExternalService
	if errors.As(err, &ext) {
		b.metrics.IncrExternalError(ext.Service)
	}
	return err
}
