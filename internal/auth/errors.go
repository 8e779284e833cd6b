package auth

import "errors"

var (
	ErrNotFound            = errors.New("admin not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrMalformedToken      = errors.New("malformed token")
	ErrSignatureMismatch   = errors.New("token signature mismatch")
	ErrExpired             = errors.New("token expired")
	ErrMissingRole         = errors.New("token role missing or unknown")
	ErrRateLimited         = errors.New("too many login attempts")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrNoSession           = errors.New("no active session")
)

// IsTokenError reports whether err is a rejection of the token itself, as
// opposed to an unexpected failure while checking it.
func IsTokenError(err error) bool {
	return errors.Is(err, ErrMalformedToken) ||
		errors.Is(err, ErrSignatureMismatch) ||
		errors.Is(err, ErrExpired) ||
		errors.Is(err, ErrMissingRole)
}

// IsCredentialsError reports whether a login failed because of the supplied
// username or password. Both cases look the same to the caller.
func IsCredentialsError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidCredentials)
}
