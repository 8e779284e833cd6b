package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/2beens/portfolio/internal/auth"
	"github.com/2beens/portfolio/internal/telemetry/tracing"
	"github.com/2beens/portfolio/pkg"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultSessionTTL = 24 * 7 * time.Hour
	sessionKeyPrefix  = "portfolio-admin-session||"
	sessionsSetKey    = "portfolio-admin-sessions"
	sessionTokenSize  = 35
)

// CredentialStore returns the stored password hash for an admin email, or
// auth.ErrNotFound.
type CredentialStore interface {
	PasswordHash(ctx context.Context, email string) (string, error)
}

type localSession struct {
	Email     string `json:"email"`
	CreatedAt int64  `json:"created_at"`
}

// Local checks bcrypt hashes from the credential store and keeps provider
// sessions in redis.
type Local struct {
	credentials CredentialStore
	redisClient *redis.Client
	ttl         time.Duration
	now         func() time.Time
	// ability to inject random string generator func for tokens (for unit and dev testing)
	RandStringFunc func(s int) (string, error)
}

func NewLocal(credentials CredentialStore, redisClient *redis.Client, ttl time.Duration) *Local {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Local{
		credentials:    credentials,
		redisClient:    redisClient,
		ttl:            ttl,
		now:            time.Now,
		RandStringFunc: pkg.GenerateRandomString,
	}
}

func (l *Local) SignIn(ctx context.Context, email, password string) (*auth.ProviderSession, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "localProvider.signIn")
	defer span.End()

	hash, err := l.credentials.PasswordHash(ctx, email)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return nil, auth.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: credentials lookup: %s", auth.ErrUpstreamUnavailable, err)
	}

	if !pkg.CheckPasswordHash(password, hash) {
		return nil, auth.ErrInvalidCredentials
	}
	if pkg.PasswordNeedsRehash(hash, pkg.DefaultPasswordCost) {
		log.Warnf("local provider: password hash for [%s] is below cost %d, rehash it", email, pkg.DefaultPasswordCost)
	}

	token, err := l.RandStringFunc(sessionTokenSize)
	if err != nil {
		return nil, fmt.Errorf("generate session token: %w", err)
	}

	createdAt := l.now()
	value, err := json.Marshal(localSession{Email: email, CreatedAt: createdAt.Unix()})
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}

	if err := l.redisClient.Set(ctx, sessionKeyPrefix+token, string(value), l.ttl).Err(); err != nil {
		return nil, fmt.Errorf("%w: store session: %s", auth.ErrUpstreamUnavailable, err)
	}

	// add token to list of sessions
	if err := l.redisClient.SAdd(ctx, sessionsSetKey, token).Err(); err != nil {
		return nil, fmt.Errorf("%w: register session: %s", auth.ErrUpstreamUnavailable, err)
	}

	return &auth.ProviderSession{
		ID:        token,
		Email:     email,
		ExpiresAt: createdAt.Add(l.ttl),
	}, nil
}

func (l *Local) Session(ctx context.Context, sessionID string) (*auth.ProviderUser, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "localProvider.session")
	defer span.End()

	session, err := l.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if l.now().Sub(time.Unix(session.CreatedAt, 0)) > l.ttl {
		return nil, auth.ErrNoSession
	}

	return &auth.ProviderUser{Email: session.Email}, nil
}

func (l *Local) SignOut(ctx context.Context, sessionID string) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "localProvider.signOut")
	defer span.End()

	if err := l.redisClient.Del(ctx, sessionKeyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("%w: delete session: %s", auth.ErrUpstreamUnavailable, err)
	}

	// remove token from the list of sessions
	if err := l.redisClient.SRem(ctx, sessionsSetKey, sessionID).Err(); err != nil {
		return fmt.Errorf("%w: unregister session: %s", auth.ErrUpstreamUnavailable, err)
	}

	return nil
}

func (l *Local) getSession(ctx context.Context, sessionID string) (*localSession, error) {
	val, err := l.redisClient.Get(ctx, sessionKeyPrefix+sessionID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, auth.ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get session: %s", auth.ErrUpstreamUnavailable, err)
	}

	var session localSession
	if err := json.Unmarshal([]byte(val), &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}

	return &session, nil
}

// ScanAndClean will run through all sessions, check the TTL, and clean them if old.
// Sessions whose redis keys already expired are only dropped from the set.
func (l *Local) ScanAndClean(ctx context.Context) {
	sessionTokens, err := l.redisClient.SMembers(ctx, sessionsSetKey).Result()
	if err != nil {
		log.Errorf("!!! local provider, scan and clean, get sessions: %s", err)
		return
	}

	if len(sessionTokens) == 0 {
		log.Debugln("=> local provider, scan and clean abort, no sessions")
		return
	}

	log.Infof("=> local provider, scan and clean [%d sessions] start ...", len(sessionTokens))
	var toRemove []string
	for _, token := range sessionTokens {
		session, err := l.getSession(ctx, token)
		if errors.Is(err, auth.ErrNoSession) {
			toRemove = append(toRemove, token)
			continue
		}
		if err != nil {
			log.Errorf("=> local provider, scan and clean token %s: %s", token, err)
			continue
		}

		if l.now().Sub(time.Unix(session.CreatedAt, 0)) > l.ttl {
			log.Debugf("=>\twill clean the session of: %s", session.Email)
			toRemove = append(toRemove, token)
		}
	}

	for _, token := range toRemove {
		if err := l.SignOut(ctx, token); err != nil {
			log.Errorf("=> local provider, clean token %s: %s", token, err)
		}
	}
}

// RunCleanup calls ScanAndClean every interval until ctx is done.
func (l *Local) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.ScanAndClean(ctx)
		}
	}
}
