package domain

import "fmt"

// Error types for consistent error handling across the BFF.

// ErrAuthFailure indicates the identity provider rejected the credentials.
// It is shown inline on the sign-in page and never ends a session.
type ErrAuthFailure struct {
	Message string
}

func (e *ErrAuthFailure) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "E-mail ou senha inválidos"
}

// ErrProfileUnrecoverable indicates the profile row is missing even after
// the bootstrap procedure ran. It is fatal for the session.
type ErrProfileUnrecoverable struct {
	UserID string
	Reason string
}

func (e *ErrProfileUnrecoverable) Error() string {
	return fmt.Sprintf("profile unrecoverable for user %s: %s", e.UserID, e.Reason)
}

// UserMessage is the text shown to the user after the forced sign-out.
func (e *ErrProfileUnrecoverable) UserMessage() string {
	return "Não foi possível carregar seu perfil. Faça login novamente."
}

// ErrExternalService indicates a failure in a backend call (network or
// non-2xx response).
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrUnauthorized indicates the device has no authenticated user.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrConflict indicates the identity already exists (e.g. e-mail taken).
type ErrConflict struct {
	Message string
}

func (e *ErrConflict) Error() string {
	return e.Message
}
