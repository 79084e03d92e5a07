// Package postgres is a ProfileStore backed by a direct connection to the
// Supabase Postgres database. It bypasses PostgREST and is selected with
// PROFILE_BACKEND=postgres.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/burgerhero/burgerhero-bff/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("postgres")

// updatableColumns whitelists the columns UpdateProfile may write.
var updatableColumns = map[string]bool{
	"name":       true,
	"email":      true,
	"cpf":        true,
	"avatar_url": true,
	"hero_code":  true,
	"hero_theme": true,
	"settings":   true,
}

// ProfileStore reads and writes public.profiles through pgx.
type ProfileStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// Connect opens a connection pool and verifies it.
func Connect(ctx context.Context, databaseURL string, logger *zap.Logger) (*ProfileStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &ProfileStore{pool: pool, logger: logger}, nil
}

// Close releases the pool.
func (s *ProfileStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *ProfileStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// GetProfile returns nil, nil when the row does not exist.
func (s *ProfileStore) GetProfile(ctx context.Context, userID string) (*domain.ProfileRecord, error) {
	ctx, span := tracer.Start(ctx, "Postgres.GetProfile")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	const q = `
		SELECT id::text, coalesce(name, ''), coalesce(email, ''), coalesce(cpf, ''),
		       coalesce(role, ''), coalesce(avatar_url, ''), coalesce(hero_code, ''),
		       coalesce(hero_theme, ''), settings,
		       coalesce(birthdate::text, ''), coalesce(whatsapp, '')
		FROM public.profiles
		WHERE id = $1
		LIMIT 1`

	var (
		rec      domain.ProfileRecord
		settings []byte
	)
	err := s.pool.QueryRow(ctx, q, userID).Scan(
		&rec.ID, &rec.Name, &rec.Email, &rec.CPF,
		&rec.Role, &rec.AvatarURL, &rec.HeroCode,
		&rec.HeroTheme, &settings,
		&rec.Birthdate, &rec.WhatsApp,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "postgres/profiles", Err: err}
	}
	if len(settings) > 0 {
		rec.Settings = json.RawMessage(settings)
	}
	return &rec, nil
}

// EnsureUserBootstrap calls the stored procedure. auth.uid() inside the
// procedure is fed from request.jwt.claims, set for this transaction only.
func (s *ProfileStore) EnsureUserBootstrap(ctx context.Context, req domain.BootstrapRequest) (*domain.BootstrapResult, error) {
	ctx, span := tracer.Start(ctx, "Postgres.EnsureUserBootstrap")
	defer span.End()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "postgres/rpc", Err: err}
	}
	defer tx.Rollback(ctx)

	if sub := subjectFrom(ctx); sub != "" {
		claims, _ := json.Marshal(map[string]string{"sub": sub, "role": "authenticated"})
		if _, err := tx.Exec(ctx, `SELECT set_config('request.jwt.claims', $1, true)`, string(claims)); err != nil {
			return nil, &domain.ErrExternalService{Service: "postgres/rpc", Err: err}
		}
	}

	var raw []byte
	err = tx.QueryRow(ctx,
		`SELECT to_jsonb(public.ensure_user_bootstrap($1, $2, $3, $4, $5))`,
		req.Name, req.Email, req.CPF, nullIfEmpty(req.Birthdate), req.WhatsApp,
	).Scan(&raw)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "postgres/rpc", Err: err}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, &domain.ErrExternalService{Service: "postgres/rpc", Err: err}
	}

	var result domain.BootstrapResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &domain.ErrExternalService{Service: "postgres/rpc", Err: fmt.Errorf("decode ensure_user_bootstrap: %w", err)}
	}
	s.logger.Debug("postgres: ensure_user_bootstrap", zap.Bool("ok", result.OK), zap.String("message", result.Message))
	return &result, nil
}

// UpdateProfile writes whitelisted columns.
func (s *ProfileStore) UpdateProfile(ctx context.Context, userID string, columns map[string]any) error {
	ctx, span := tracer.Start(ctx, "Postgres.UpdateProfile")
	defer span.End()

	if len(columns) == 0 {
		return nil
	}

	names := make([]string, 0, len(columns))
	for name := range columns {
		if !updatableColumns[name] {
			return &domain.ErrValidation{Field: name, Message: "coluna não pode ser alterada"}
		}
		names = append(names, name)
	}
	sort.Strings(names)

	sets := make([]string, 0, len(names))
	args := make([]any, 0, len(names)+1)
	for i, name := range names {
		value := columns[name]
		if name == "settings" {
			b, err := json.Marshal(value)
			if err != nil {
				return fmt.Errorf("encode settings: %w", err)
			}
			value = string(b)
			sets = append(sets, fmt.Sprintf("%s = $%d::jsonb", name, i+1))
		} else {
			sets = append(sets, fmt.Sprintf("%s = $%d", name, i+1))
		}
		args = append(args, value)
	}
	args = append(args, userID)

	q := fmt.Sprintf("UPDATE public.profiles SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	tag, err := s.pool.Exec(ctx, q, args...)
	if err != nil {
		return &domain.ErrExternalService{Service: "postgres/profiles", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return &domain.ErrNotFound{Resource: "profile", ID: userID}
	}
	return nil
}

// SaveSettings mirrors the device preferences into the profile.
func (s *ProfileStore) SaveSettings(ctx context.Context, userID, heroTheme string, settings domain.ProfileSettings) error {
	return s.UpdateProfile(ctx, userID, map[string]any{
		"hero_theme": heroTheme,
		"settings":   settings,
	})
}

// subjectFrom reads the user id from the access token attached to ctx.
// The token was issued by the identity provider and already validated
// upstream; only the subject is needed here.
func subjectFrom(ctx context.Context) string {
	tok := domain.AccessTokenFrom(ctx)
	if tok == "" {
		return ""
	}
	return domain.TokenSubject(tok)
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
