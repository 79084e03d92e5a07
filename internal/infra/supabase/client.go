// Package supabase provides a client for Supabase (PostgREST + Auth).
// It is the real backend for identity sessions and BurgerHero profiles.
package supabase

import (
	"context"
	"fmt"
	"net/http"

	"github.com/burgerhero/burgerhero-bff/internal/domain"
	"github.com/burgerhero/burgerhero-bff/internal/infra/resilience"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("supabase")

// Client wraps HTTP calls to the Supabase REST and Auth APIs.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	serviceRoleKey string
	guard          *resilience.Guard
	logger         *zap.Logger
}

// NewClient creates a Supabase client.
func NewClient(httpClient *http.Client, baseURL, apiKey, serviceRoleKey string, guard *resilience.Guard, logger *zap.Logger) *Client {
	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		apiKey:         apiKey,
		serviceRoleKey: serviceRoleKey,
		guard:          guard,
		logger:         logger,
	}
}

// bearer picks the token sent in Authorization. Calls made on behalf of a
// signed-in user carry that user's token so row-level security and
// auth.uid() see the right identity.
func (c *Client) bearer(ctx context.Context) string {
	if tok := domain.AccessTokenFrom(ctx); tok != "" {
		return tok
	}
	if c.serviceRoleKey != "" {
		return c.serviceRoleKey
	}
	return c.apiKey
}

func (c *Client) restURL(path string) string {
	return fmt.Sprintf("%s/rest/v1/%s", c.baseURL, path)
}

func (c *Client) authURL(path string) string {
	return fmt.Sprintf("%s/auth/v1/%s", c.baseURL, path)
}

// Ping checks that the REST endpoint answers.
func (c *Client) Ping(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Supabase.Ping")
	defer span.End()

	_, _, err := c.send(ctx, request{
		method: http.MethodGet,
		url:    c.restURL("profiles?select=id&limit=1"),
		bearer: c.bearer(ctx),
	})
	return err
}
