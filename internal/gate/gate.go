// Package gate decides whether an identity may see a protected view.
// The same decision drives the API middleware and the client.
package gate

import "realty/internal/models"

type State string

const (
	StateLoading         State = "loading"
	StateUnauthenticated State = "unauthenticated"
	StateUnverified      State = "authenticated_unverified"
	StateVerified        State = "authenticated_verified"
)

// Redirect targets.
const (
	LoginPath        = "/auth"
	VerificationPath = "/auth?verification=required"
	LandingPath      = "/"
)

// Reason codes returned to clients alongside a redirect.
const (
	ReasonAuthRequired         = "authentication_required"
	ReasonVerificationRequired = "verification_required"
	ReasonAdminRequired        = "admin_required"
)

type Input struct {
	// Loading is set while the identity fetch is in flight.
	Loading      bool
	User         *models.User
	RequireAdmin bool
}

type Decision struct {
	State    State
	Allow    bool
	Redirect string
	Reason   string
}

// Classify maps an identity to its gate state.
func Classify(loading bool, u *models.User) State {
	switch {
	case loading:
		return StateLoading
	case u == nil:
		return StateUnauthenticated
	case IsVerified(u):
		return StateVerified
	default:
		return StateUnverified
	}
}

// IsVerified: admins always pass; everyone else needs a verified email and
// no pending verification.
func IsVerified(u *models.User) bool {
	if u == nil {
		return false
	}
	if u.Role == models.RoleAdmin {
		return true
	}
	return u.EmailVerified && !u.NeedsVerification
}

func Evaluate(in Input) Decision {
	st := Classify(in.Loading, in.User)
	switch st {
	case StateLoading:
		return Decision{State: st}
	case StateUnauthenticated:
		return Decision{State: st, Redirect: LoginPath, Reason: ReasonAuthRequired}
	case StateUnverified:
		return Decision{State: st, Redirect: VerificationPath, Reason: ReasonVerificationRequired}
	}
	if in.RequireAdmin && in.User.Role != models.RoleAdmin {
		return Decision{State: st, Redirect: LandingPath, Reason: ReasonAdminRequired}
	}
	return Decision{State: st, Allow: true}
}
