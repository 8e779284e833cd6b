package auth

import "context"

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=auth_test

// Registry looks up admin registry rows.
type Registry interface {
	ByUsername(ctx context.Context, username string) (*AdminIdentity, error)
	ByEmail(ctx context.Context, email string) (*AdminIdentity, error)
}

// IdentityProvider verifies passwords and owns provider sessions.
type IdentityProvider interface {
	SignIn(ctx context.Context, email, password string) (*ProviderSession, error)
	Session(ctx context.Context, sessionID string) (*ProviderUser, error)
	SignOut(ctx context.Context, sessionID string) error
}
