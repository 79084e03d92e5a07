package domain

import "strings"

// ============================================================
// Roles & role homes
// ============================================================

// Role is the access level of a BurgerHero user.
type Role string

const (
	RoleClient Role = "client"
	RoleStaff  Role = "staff"
	RoleAdmin  Role = "admin"
)

// ParseRole maps any raw role string to a Role.
// Matching is case-insensitive and ignores surrounding spaces; anything
// that is not staff or admin becomes client.
func ParseRole(raw string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin
	case RoleStaff:
		return RoleStaff
	default:
		return RoleClient
	}
}

// Home returns the landing route of the role's page group.
func (r Role) Home() string {
	switch r {
	case RoleAdmin:
		return RouteAdmin
	case RoleStaff:
		return RouteStaff
	default:
		return RouteApp
	}
}

// Client-visible routes.
const (
	RouteLanding  = "/"
	RouteSignIn   = "/auth"
	RoutePlans    = "/plans"
	RouteCheckout = "/checkout"
	RouteApp      = "/app"
	RouteAdmin    = "/admin"
	RouteStaff    = "/staff"
)
