package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/2beens/portfolio/internal/telemetry/tracing"
	"go.opentelemetry.io/otel/attribute"
)

// Verifier checks username and password against the admin registry and the
// identity provider. It never mutates either of them.
type Verifier struct {
	registry Registry
	provider IdentityProvider
}

func NewVerifier(registry Registry, provider IdentityProvider) *Verifier {
	return &Verifier{
		registry: registry,
		provider: provider,
	}
}

func (v *Verifier) Verify(ctx context.Context, username, password string) (*Login, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "verifier.verify")
	defer span.End()
	span.SetAttributes(attribute.String("username", username))

	identity, err := v.registry.ByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	session, err := v.provider.SignIn(ctx, identity.Email, password)
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrUpstreamUnavailable):
		return nil, err
	default:
		return nil, fmt.Errorf("%w: sign in: %s", ErrUpstreamUnavailable, err)
	}

	return &Login{
		Identity: identity,
		Session:  session,
	}, nil
}
