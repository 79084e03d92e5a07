package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/burgerhero/burgerhero-bff/internal/service"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DeviceCookieName is the cookie identifying a browser.
const DeviceCookieName = "bh_device"

const deviceCookieTTL = 365 * 24 * time.Hour

type contextKey string

const deviceKey contextKey = "device"

// DeviceCookies signs and verifies device cookies.
type DeviceCookies struct {
	secret []byte
	secure bool
}

// NewDeviceCookies creates a cookie codec. secure sets the Secure flag.
func NewDeviceCookies(secret string, secure bool) *DeviceCookies {
	return &DeviceCookies{secret: []byte(secret), secure: secure}
}

// Issue creates a new device id and its signed cookie value.
func (c *DeviceCookies) Issue() (string, string, error) {
	id := uuid.NewString()
	claims := jwt.RegisteredClaims{
		Subject:  id,
		Issuer:   "burgerhero-bff",
		IssuedAt: jwt.NewNumericDate(time.Now()),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", "", fmt.Errorf("sign device cookie: %w", err)
	}
	return id, signed, nil
}

// Parse returns the device id of a cookie value.
func (c *DeviceCookies) Parse(value string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(value, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	}, jwt.WithIssuer("burgerhero-bff"))
	if err != nil {
		return "", err
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return "", fmt.Errorf("invalid device id: %w", err)
	}
	return claims.Subject, nil
}

func (c *DeviceCookies) cookie(value string) *http.Cookie {
	return &http.Cookie{
		Name:     DeviceCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(deviceCookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// deviceID returns the device id of the request, issuing a new cookie
// when the request has none or a forged one.
func (c *DeviceCookies) deviceID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (string, error) {
	if ck, err := r.Cookie(DeviceCookieName); err == nil {
		id, err := c.Parse(ck.Value)
		if err == nil {
			return id, nil
		}
		logger.Warn("device: rejecting invalid cookie",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
	}

	id, value, err := c.Issue()
	if err != nil {
		return "", err
	}
	http.SetCookie(w, c.cookie(value))
	return id, nil
}

// DeviceMiddleware resolves the device of the request and bootstraps it
// before the handler runs.
func DeviceMiddleware(cookies *DeviceCookies, account *service.AccountService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := cookies.deviceID(w, r, logger)
			if err != nil {
				logger.Error("device: failed to issue cookie", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}

			dev, err := account.Device(r.Context(), id)
			if err != nil {
				handleServiceError(w, err, logger)
				return
			}

			ctx := context.WithValue(r.Context(), deviceKey, dev)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// DeviceFromContext returns the device resolved by DeviceMiddleware.
func DeviceFromContext(ctx context.Context) *service.Device {
	v, _ := ctx.Value(deviceKey).(*service.Device)
	return v
}
