// Package guard decides whether a page group may render for the current
// device. Evaluate is a pure function of the auth state; the HTTP layer
// turns its Decision into a redirect.
package guard

import "github.com/burgerhero/burgerhero-bff/internal/domain"

// State is the outcome of a guard evaluation.
type State int

const (
	Unauthenticated State = iota
	AuthenticatedWrongRole
	AuthenticatedAuthorized
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case AuthenticatedWrongRole:
		return "wrong_role"
	case AuthenticatedAuthorized:
		return "authorized"
	default:
		return "unknown"
	}
}

// Decision tells the caller whether to render or where to redirect.
type Decision struct {
	State    State
	Redirect string
}

// Allowed reports whether the route may render.
func (d Decision) Allowed() bool {
	return d.State == AuthenticatedAuthorized
}

// Evaluate applies the role gate. An empty allowed set admits any
// authenticated user.
func Evaluate(authed bool, user *domain.UserProfile, allowed []domain.Role) Decision {
	if !authed || user == nil {
		return Decision{State: Unauthenticated, Redirect: domain.RouteSignIn}
	}

	role := domain.ParseRole(string(user.Role))
	if len(allowed) == 0 {
		return Decision{State: AuthenticatedAuthorized}
	}
	for _, r := range allowed {
		if r == role {
			return Decision{State: AuthenticatedAuthorized}
		}
	}
	return Decision{State: AuthenticatedWrongRole, Redirect: role.Home()}
}
