// Package devauth is an in-memory identity provider and profile store used
// when DEV_AUTH=true. It issues real HS256 access tokens, keeps bcrypt
// password hashes, and runs ensure_user_bootstrap locally, so the whole
// session bootstrap flow works without a Supabase project.
package devauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/burgerhero/burgerhero-bff/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type account struct {
	id           string
	email        string
	passwordHash []byte
	meta         domain.UserMetadata
	// role is copied into the profile row the first time it is created.
	role string
}

// Provider implements port.AuthAPI and port.ProfileStore.
type Provider struct {
	mu       sync.Mutex
	secret   []byte
	tokenTTL time.Duration
	now      func() time.Time
	logger   *zap.Logger

	accounts map[string]*account // by lowercase e-mail
	byID     map[string]*account
	refresh  map[string]string // refresh token -> user id
	revoked  map[string]bool   // access token id (jti)
	profiles map[string]*domain.ProfileRecord
	codes    int

	// repair hooks
	repairCalls  int
	repairResult *domain.BootstrapResult
}

// Option customizes a Provider.
type Option func(*Provider)

// WithTokenTTL sets the access token lifetime.
func WithTokenTTL(d time.Duration) Option {
	return func(p *Provider) { p.tokenTTL = d }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

// New creates an empty provider signing tokens with secret.
func New(secret string, logger *zap.Logger, opts ...Option) *Provider {
	p := &Provider{
		secret:   []byte(secret),
		tokenTTL: time.Hour,
		now:      time.Now,
		logger:   logger,
		accounts: make(map[string]*account),
		byID:     make(map[string]*account),
		refresh:  make(map[string]string),
		revoked:  make(map[string]bool),
		profiles: make(map[string]*domain.ProfileRecord),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SeedUser describes an account created at startup.
type SeedUser struct {
	Email    string
	Password string
	Name     string
	CPF      string
	Role     string
	// WithoutProfile leaves the profile row missing so the first sign-in
	// goes through the repair procedure.
	WithoutProfile bool
}

// DefaultSeed is the account set used by local runs: one per role.
func DefaultSeed() []SeedUser {
	return []SeedUser{
		{Email: "admin@burgerhero.dev", Password: "admin123", Name: "Admin Hero", CPF: "39053344705", Role: "ADMIN"},
		{Email: "staff@burgerhero.dev", Password: "staff123", Name: "Atendente Hero", CPF: "11144477735", Role: "staff"},
		{Email: "cliente@burgerhero.dev", Password: "cliente123", Name: "Cliente Hero", CPF: "52998224725", Role: "client"},
		{Email: "novo@burgerhero.dev", Password: "novo1234", Name: "Novo Hero", CPF: "15350946056", WithoutProfile: true},
	}
}

// Seed creates the given accounts. Existing e-mails are skipped.
func (p *Provider) Seed(users []SeedUser) error {
	for _, u := range users {
		id, err := p.addAccount(u.Email, u.Password, domain.UserMetadata{Name: u.Name, CPF: u.CPF}, u.Role)
		if err != nil {
			var conflict *domain.ErrConflict
			if errors.As(err, &conflict) {
				continue
			}
			return fmt.Errorf("seed %s: %w", u.Email, err)
		}
		if !u.WithoutProfile {
			p.mu.Lock()
			p.createProfileLocked(p.byID[id])
			p.mu.Unlock()
		}
	}
	p.logger.Info("devauth: seeded accounts", zap.Int("count", len(users)))
	return nil
}

// AddUser creates an account and returns its id. The profile row is not
// created; use PutProfile or let the repair procedure create it.
func (p *Provider) AddUser(email, password string, meta domain.UserMetadata) (string, error) {
	return p.addAccount(email, password, meta, "")
}

func (p *Provider) addAccount(email, password string, meta domain.UserMetadata, role string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	key := strings.ToLower(strings.TrimSpace(email))
	if _, exists := p.accounts[key]; exists {
		return "", &domain.ErrConflict{Message: "E-mail já cadastrado"}
	}
	a := &account{
		id:           uuid.NewString(),
		email:        key,
		passwordHash: hash,
		meta:         meta,
		role:         role,
	}
	p.accounts[key] = a
	p.byID[a.id] = a
	return a.id, nil
}

// PutProfile stores a profile row as-is.
func (p *Provider) PutProfile(rec domain.ProfileRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := rec
	p.profiles[rec.ID] = &cp
}

// DeleteProfile removes a profile row.
func (p *Provider) DeleteProfile(userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.profiles, userID)
}

// FailRepair makes ensure_user_bootstrap answer {ok:false, message}
// without creating the row.
func (p *Provider) FailRepair(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.repairResult = &domain.BootstrapResult{OK: false, Message: message}
}

// RepairCalls returns how many times ensure_user_bootstrap ran.
func (p *Provider) RepairCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.repairCalls
}

// ============================================================
// port.AuthAPI
// ============================================================

// PasswordGrant signs in with e-mail and password.
func (p *Provider) PasswordGrant(_ context.Context, email, password string) (*domain.Session, error) {
	p.mu.Lock()
	a, ok := p.accounts[strings.ToLower(strings.TrimSpace(email))]
	p.mu.Unlock()
	if !ok {
		return nil, &domain.ErrAuthFailure{}
	}
	if err := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)); err != nil {
		return nil, &domain.ErrAuthFailure{}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.issueLocked(a)
}

// RefreshGrant rotates a refresh token.
func (p *Provider) RefreshGrant(_ context.Context, refreshToken string) (*domain.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	userID, ok := p.refresh[refreshToken]
	if !ok {
		return nil, &domain.ErrAuthFailure{Message: "Sessão expirada"}
	}
	delete(p.refresh, refreshToken)
	a, ok := p.byID[userID]
	if !ok {
		return nil, &domain.ErrAuthFailure{Message: "Sessão expirada"}
	}
	return p.issueLocked(a)
}

// SignUp creates an account and signs it in (auto-confirm).
func (p *Provider) SignUp(_ context.Context, email, password string, meta domain.UserMetadata) (*domain.Session, error) {
	if _, err := p.addAccount(email, password, meta, ""); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.issueLocked(p.accounts[strings.ToLower(strings.TrimSpace(email))])
}

// GetUser validates an access token and returns its identity.
func (p *Provider) GetUser(_ context.Context, accessToken string) (*domain.SessionUser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	a, err := p.verifyLocked(accessToken)
	if err != nil {
		return nil, err
	}
	u := a.sessionUser()
	return &u, nil
}

// Logout revokes the access token and every refresh token of its user.
func (p *Provider) Logout(_ context.Context, accessToken string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	claims, err := p.parseLocked(accessToken)
	if err != nil {
		return nil
	}
	p.revoked[claims.ID] = true
	for rt, uid := range p.refresh {
		if uid == claims.Subject {
			delete(p.refresh, rt)
		}
	}
	return nil
}

func (a *account) sessionUser() domain.SessionUser {
	return domain.SessionUser{ID: a.id, Email: a.email, Metadata: a.meta}
}

func (p *Provider) issueLocked(a *account) (*domain.Session, error) {
	now := p.now()
	exp := now.Add(p.tokenTTL)
	claims := jwt.RegisteredClaims{
		Subject:   a.id,
		ID:        uuid.NewString(),
		Issuer:    "burgerhero-devauth",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	rt := uuid.NewString()
	p.refresh[rt] = a.id

	return &domain.Session{
		AccessToken:  signed,
		RefreshToken: rt,
		ExpiresAt:    exp,
		User:         a.sessionUser(),
	}, nil
}

func (p *Provider) parseLocked(token string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return p.secret, nil
	}, jwt.WithTimeFunc(p.now))
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func (p *Provider) verifyLocked(token string) (*account, error) {
	claims, err := p.parseLocked(token)
	if err != nil || p.revoked[claims.ID] {
		return nil, &domain.ErrUnauthorized{Message: "Sessão expirada"}
	}
	a, ok := p.byID[claims.Subject]
	if !ok {
		return nil, &domain.ErrUnauthorized{Message: "Sessão expirada"}
	}
	return a, nil
}

// ============================================================
// port.ProfileStore
// ============================================================

// GetProfile returns nil, nil when the row does not exist.
func (p *Provider) GetProfile(_ context.Context, userID string) (*domain.ProfileRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec, ok := p.profiles[userID]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

// EnsureUserBootstrap creates the profile row of the caller identified by
// the access token in ctx.
func (p *Provider) EnsureUserBootstrap(ctx context.Context, req domain.BootstrapRequest) (*domain.BootstrapResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.repairCalls++
	if p.repairResult != nil {
		r := *p.repairResult
		return &r, nil
	}

	a, err := p.verifyLocked(domain.AccessTokenFrom(ctx))
	if err != nil {
		return &domain.BootstrapResult{OK: false, Message: "not authenticated"}, nil
	}
	if _, exists := p.profiles[a.id]; exists {
		return &domain.BootstrapResult{OK: true, Message: "already exists"}, nil
	}

	rec := p.createProfileLocked(a)
	if req.Name != "" {
		rec.Name = req.Name
	}
	if req.CPF != "" {
		rec.CPF = req.CPF
	}
	rec.Birthdate = req.Birthdate
	rec.WhatsApp = req.WhatsApp

	p.logger.Debug("devauth: profile bootstrapped", zap.String("user_id", a.id))
	return &domain.BootstrapResult{OK: true, Message: "created"}, nil
}

func (p *Provider) createProfileLocked(a *account) *domain.ProfileRecord {
	p.codes++
	rec := &domain.ProfileRecord{
		ID:       a.id,
		Name:     a.meta.Name,
		Email:    a.email,
		CPF:      a.meta.CPF,
		Role:     a.role,
		HeroCode: fmt.Sprintf("HE%04d", p.codes),
		Settings: json.RawMessage(`{}`),
	}
	p.profiles[a.id] = rec
	return rec
}

// UpdateProfile writes columns into the row.
func (p *Provider) UpdateProfile(_ context.Context, userID string, columns map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec, ok := p.profiles[userID]
	if !ok {
		return &domain.ErrNotFound{Resource: "profile", ID: userID}
	}
	for col, v := range columns {
		switch col {
		case "name":
			rec.Name = fmt.Sprint(v)
		case "email":
			rec.Email = fmt.Sprint(v)
		case "cpf":
			rec.CPF = fmt.Sprint(v)
		case "avatar_url":
			rec.AvatarURL = fmt.Sprint(v)
		case "hero_code":
			rec.HeroCode = fmt.Sprint(v)
		case "hero_theme":
			rec.HeroTheme = fmt.Sprint(v)
		case "settings":
			raw, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("encode settings: %w", err)
			}
			rec.Settings = raw
		default:
			return &domain.ErrValidation{Field: col, Message: "coluna não pode ser alterada"}
		}
	}
	return nil
}

// SaveSettings mirrors the device preferences into the profile.
func (p *Provider) SaveSettings(ctx context.Context, userID, heroTheme string, settings domain.ProfileSettings) error {
	return p.UpdateProfile(ctx, userID, map[string]any{
		"hero_theme": heroTheme,
		"settings":   settings,
	})
}

// Ping always succeeds.
func (p *Provider) Ping(context.Context) error { return nil }
