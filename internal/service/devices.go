package service

import (
	"context"
	"time"

	"github.com/burgerhero/burgerhero-bff/internal/identity"
	"github.com/burgerhero/burgerhero-bff/internal/infra/cache"
	"github.com/burgerhero/burgerhero-bff/internal/infra/observability"
	"github.com/burgerhero/burgerhero-bff/internal/port"
	"github.com/burgerhero/burgerhero-bff/internal/store"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Device is the client state of one browser: its identity session, auth
// cache, preference stores and the bootstrapper tying them together.
type Device struct {
	ID        string
	Identity  *identity.Session
	Auth      *store.AuthStore
	Prefs     *store.Preferences
	Bootstrap *Bootstrapper
}

// Devices creates device contexts on first use and keeps recently used
// ones in memory. Evicted devices are rebuilt from the state store.
type Devices struct {
	api      port.AuthAPI
	profiles port.ProfileStore
	state    port.StateStore
	metrics  *observability.Metrics
	logger   *zap.Logger

	live   *cache.InMemory[*Device]
	builds singleflight.Group
}

// NewDevices creates the registry. ttl bounds how long an idle device
// stays in memory.
func NewDevices(api port.AuthAPI, profiles port.ProfileStore, state port.StateStore, ttl time.Duration, metrics *observability.Metrics, logger *zap.Logger) *Devices {
	return &Devices{
		api:      api,
		profiles: profiles,
		state:    state,
		metrics:  metrics,
		logger:   logger,
		live:     cache.New[*Device](ttl),
	}
}

// Get returns the device context for id, restoring it when needed.
// A restore that fails on the state backend is not cached.
func (d *Devices) Get(ctx context.Context, id string) (*Device, error) {
	ctx = context.WithoutCancel(ctx)
	return d.live.GetOrCreate(id, func() (*Device, error) {
		return d.restore(ctx, id)
	})
}

func (d *Devices) restore(ctx context.Context, id string) (*Device, error) {
	logger := d.logger.With(zap.String("device_id", id))

	sess := identity.New(id, d.api, d.state, time.Now, d.logger)
	auth, err := store.NewAuthStore(ctx, id, d.state, d.profiles, d.logger)
	if err != nil {
		logger.Error("devices: restore auth store failed", zap.Error(err))
		return nil, err
	}
	prefs, err := store.NewPreferences(ctx, id, d.state, d.logger)
	if err != nil {
		logger.Error("devices: restore preferences failed", zap.Error(err))
		return nil, err
	}
	boot := NewBootstrapper(sess, d.profiles, auth, prefs, &d.builds, d.metrics, logger)

	logger.Debug("devices: device restored")
	return &Device{
		ID:        id,
		Identity:  sess,
		Auth:      auth,
		Prefs:     prefs,
		Bootstrap: boot,
	}, nil
}

// Drop forgets the in-memory context of a device.
func (d *Devices) Drop(id string) {
	d.live.Delete(id)
}

// Len returns the number of devices held in memory.
func (d *Devices) Len() int {
	return d.live.Len()
}

// Close stops the registry's background cleanup.
func (d *Devices) Close() {
	d.live.Close()
}
