package guard_test

import (
	"testing"

	"github.com/burgerhero/burgerhero-bff/internal/domain"
	"github.com/burgerhero/burgerhero-bff/internal/guard"

	"github.com/stretchr/testify/assert"
)

var (
	clientOnly = []domain.Role{domain.RoleClient}
	staffOnly  = []domain.Role{domain.RoleStaff}
	adminOnly  = []domain.Role{domain.RoleAdmin}
)

func TestEvaluate_UnauthenticatedAlwaysGoesToSignIn(t *testing.T) {
	users := []*domain.UserProfile{nil, {ID: "u1", Role: domain.RoleAdmin}}
	groups := [][]domain.Role{nil, clientOnly, staffOnly, adminOnly}

	for _, u := range users {
		for _, allowed := range groups {
			d := guard.Evaluate(false, u, allowed)
			assert.Equal(t, guard.Unauthenticated, d.State)
			assert.Equal(t, domain.RouteSignIn, d.Redirect)
			assert.False(t, d.Allowed())
		}
	}
}

func TestEvaluate_AuthedFlagWithoutUserIsUnauthenticated(t *testing.T) {
	d := guard.Evaluate(true, nil, clientOnly)
	assert.Equal(t, guard.Unauthenticated, d.State)
}

func TestEvaluate_WrongRoleGoesHome(t *testing.T) {
	tests := []struct {
		name     string
		role     domain.Role
		allowed  []domain.Role
		redirect string
	}{
		{"client on staff route", domain.RoleClient, staffOnly, domain.RouteApp},
		{"client on admin route", domain.RoleClient, adminOnly, domain.RouteApp},
		{"staff on client route", domain.RoleStaff, clientOnly, domain.RouteStaff},
		{"staff on admin route", domain.RoleStaff, adminOnly, domain.RouteStaff},
		{"admin on staff route", domain.RoleAdmin, staffOnly, domain.RouteAdmin},
		{"admin on client route", domain.RoleAdmin, clientOnly, domain.RouteAdmin},
		{"unknown role on staff route", domain.Role("manager"), staffOnly, domain.RouteApp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := guard.Evaluate(true, &domain.UserProfile{ID: "u1", Role: tt.role}, tt.allowed)
			assert.Equal(t, guard.AuthenticatedWrongRole, d.State)
			assert.Equal(t, tt.redirect, d.Redirect)
		})
	}
}

func TestEvaluate_Authorized(t *testing.T) {
	d := guard.Evaluate(true, &domain.UserProfile{ID: "u1", Role: "ADMIN"}, adminOnly)
	assert.True(t, d.Allowed())
	assert.Empty(t, d.Redirect)

	d = guard.Evaluate(true, &domain.UserProfile{ID: "u1", Role: domain.RoleClient}, nil)
	assert.True(t, d.Allowed())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "unauthenticated", guard.Unauthenticated.String())
	assert.Equal(t, "wrong_role", guard.AuthenticatedWrongRole.String())
	assert.Equal(t, "authorized", guard.AuthenticatedAuthorized.String())
}
