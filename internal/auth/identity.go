package auth

import "time"

// AdminIdentity is the admin registry row. It is provisioned outside of the
// login flow and only read here.
type AdminIdentity struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
}

// ProviderSession is the session handle issued by the identity provider on
// a successful password check.
type ProviderSession struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ProviderUser is what the identity provider reports for an active session.
type ProviderUser struct {
	Email string `json:"email"`
}

// Login is the merged result of a successful credential check.
type Login struct {
	Identity *AdminIdentity
	Session  *ProviderSession
}
