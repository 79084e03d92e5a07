package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
)

// ============================================================
// HTTP helpers shared by the REST and Auth adapters
// ============================================================

type request struct {
	method string
	url    string
	body   any
	bearer string
	prefer string
	// idempotent requests may use the guard's retry budget.
	idempotent bool
	// mapStatus turns a non-2xx answer into a domain error. It runs inside
	// the guard so rejected credentials do not trip the breaker.
	mapStatus func(status int, body []byte) error
}

// statusError is returned for non-2xx answers so callers can map specific
// statuses (e.g. 400 on the password grant) to domain errors.
type statusError struct {
	Status int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("supabase returned status %d: %s", e.Status, e.Body)
}

// send executes one request under the resilience guard and returns the
// status code and body of a 2xx answer.
func (c *Client) send(ctx context.Context, r request) (int, []byte, error) {
	var (
		status int
		body   []byte
	)

	err := c.guard.Do(ctx, r.idempotent, func() error {
		var err error
		status, body, err = c.sendOnce(ctx, r)
		var se *statusError
		if r.mapStatus != nil && errors.As(err, &se) {
			if mapped := r.mapStatus(se.Status, body); mapped != nil {
				return mapped
			}
		}
		return err
	})
	return status, body, err
}

func (c *Client) sendOnce(ctx context.Context, r request) (int, []byte, error) {
	var reader io.Reader
	if r.body != nil {
		jsonBody, err := json.Marshal(r.body)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, r.url, reader)
	if err != nil {
		c.logger.Error("supabase: failed to create request",
			zap.String("method", r.method),
			zap.String("url", r.url),
			zap.Error(err),
		)
		return 0, nil, err
	}

	req.Header.Set("apikey", c.apiKey)
	if r.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+r.bearer)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.prefer != "" {
		req.Header.Set("Prefer", r.prefer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: request failed",
			zap.String("method", r.method),
			zap.String("url", r.url),
			zap.Error(err),
		)
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		c.logger.Error("supabase: failed to read response body",
			zap.String("method", r.method),
			zap.String("url", r.url),
			zap.Error(err),
		)
		return resp.StatusCode, nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("supabase: non-2xx response",
			zap.String("method", r.method),
			zap.String("url", r.url),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return resp.StatusCode, body, &statusError{Status: resp.StatusCode, Body: string(body)}
	}

	c.logger.Debug("supabase: request OK",
		zap.String("method", r.method),
		zap.String("url", r.url),
		zap.Int("status", resp.StatusCode),
	)
	return resp.StatusCode, body, nil
}

func readBody(resp *http.Response) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// emptyBody reports whether a PostgREST answer carries no rows.
func emptyBody(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) == 0 || string(trimmed) == "[]" || string(trimmed) == "null"
}
