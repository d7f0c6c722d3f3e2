package gate

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"realty/internal/models"
)

func TestEvaluateScenarios(t *testing.T) {
	d := Evaluate(Input{})
	assert.False(t, d.Allow)
	assert.Equal(t, StateUnauthenticated, d.State)
	assert.Equal(t, "/auth", d.Redirect)

	d = Evaluate(Input{User: &models.User{Role: models.RoleBuyer, EmailVerified: false}})
	assert.False(t, d.Allow)
	assert.Equal(t, StateUnverified, d.State)
	assert.Equal(t, "/auth?verification=required", d.Redirect)
	assert.Equal(t, ReasonVerificationRequired, d.Reason)

	d = Evaluate(Input{Loading: true, User: &models.User{Role: models.RoleAdmin}})
	assert.Equal(t, StateLoading, d.State)
	assert.False(t, d.Allow)
	assert.Empty(t, d.Redirect)
}

// Access is granted exactly when user != nil and (admin or (emailVerified and
// !needsVerification)).
func TestEvaluateAllCombinations(t *testing.T) {
	roles := []models.Role{
		models.RoleBuyer, models.RoleSeller, models.RoleAgent, models.RoleCompanyAdmin, models.RoleAdmin,
	}
	for _, role := range roles {
		for _, emailVerified := range []bool{false, true} {
			for _, needs := range []bool{false, true} {
				u := &models.User{Role: role, EmailVerified: emailVerified, NeedsVerification: needs}
				want := role == models.RoleAdmin || (emailVerified && !needs)
				name := fmt.Sprintf("%s/email=%v/needs=%v", role, emailVerified, needs)

				d := Evaluate(Input{User: u})
				assert.Equal(t, want, d.Allow, name)
				if !want {
					assert.Equal(t, VerificationPath, d.Redirect, name)
				}
			}
		}
	}
}

func TestEvaluateAdminVariant(t *testing.T) {
	seller := &models.User{Role: models.RoleSeller, EmailVerified: true}
	d := Evaluate(Input{User: seller, RequireAdmin: true})
	assert.False(t, d.Allow)
	assert.Equal(t, StateVerified, d.State)
	assert.Equal(t, "/", d.Redirect)
	assert.Equal(t, ReasonAdminRequired, d.Reason)

	admin := &models.User{Role: models.RoleAdmin}
	assert.True(t, Evaluate(Input{User: admin, RequireAdmin: true}).Allow)

	// unverified users are sent to verification before the admin check
	d = Evaluate(Input{User: &models.User{Role: models.RoleBuyer}, RequireAdmin: true})
	assert.Equal(t, VerificationPath, d.Redirect)

	d = Evaluate(Input{RequireAdmin: true})
	assert.Equal(t, LoginPath, d.Redirect)
}
