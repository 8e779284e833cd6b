package adminclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/2beens/portfolio/internal/auth"

	log "github.com/sirupsen/logrus"
)

// ErrSessionChanged is returned by Reconcile when a login or logout replaced
// the cached session while the server was being asked about the old one.
var ErrSessionChanged = errors.New("cached session changed during reconcile")

// State is where the cache stands with respect to the server.
type State int

const (
	// StateUnauthenticated means no cached session and nothing verified.
	StateUnauthenticated State = iota
	// StateUnverifiedCached means a cached session exists but the server has
	// not confirmed it yet (or could not be asked).
	StateUnverifiedCached
	// StateVerified means the server confirmed the session and the cache
	// holds the identity it reported.
	StateVerified
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateUnverifiedCached:
		return "unverified-cached"
	case StateVerified:
		return "verified"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// CachedSession is the persisted client copy of an authenticated identity.
// It is advisory only, the server checks the token on every call.
type CachedSession struct {
	Identity        auth.AdminIdentity `json:"identity"`
	Token           string             `json:"token"`
	ExpiresAt       time.Time          `json:"expires_at"`
	ProviderSession string             `json:"provider_session,omitempty"`
	CachedAt        time.Time          `json:"cached_at"`
}

// Remote is the server side of the cache.
type Remote interface {
	Login(ctx context.Context, username, password string) (*auth.LoginResponse, error)
	Logout(ctx context.Context, token string) error
	ProviderSession(ctx context.Context, token string) (string, error)
	Identity(ctx context.Context, token, email string) (*auth.AdminIdentity, error)
}

type SessionCache struct {
	mu      sync.Mutex
	store   Store
	remote  Remote
	state   State
	session *CachedSession
	now     func() time.Time
}

func NewSessionCache(store Store, remote Remote) *SessionCache {
	return &SessionCache{
		store:  store,
		remote: remote,
		state:  StateUnauthenticated,
		now:    time.Now,
	}
}

// Load reads the store synchronously. A cached blob makes the cache
// optimistically authenticated until Reconcile says otherwise.
func (c *SessionCache) Load() (*CachedSession, State) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := c.store.Read()
	if err != nil {
		log.Errorf("session cache: read store: %s", err)
		c.session, c.state = nil, StateUnauthenticated
		return nil, c.state
	}
	if data == nil {
		c.session, c.state = nil, StateUnauthenticated
		return nil, c.state
	}

	var session CachedSession
	if err := json.Unmarshal(data, &session); err != nil {
		log.Warnf("session cache: dropping unreadable session blob: %s", err)
		if err := c.store.Clear(); err != nil {
			log.Errorf("session cache: clear store: %s", err)
		}
		c.session, c.state = nil, StateUnauthenticated
		return nil, c.state
	}

	c.session, c.state = &session, StateUnverifiedCached
	return c.copySession(), c.state
}

// Reconcile asks the server whether the cached session is still active and,
// if so, replaces the cached identity with the registry row. On any failure
// the previously cached identity is kept. The lock is not held during the
// remote calls, so State and Session keep answering from the cached copy.
func (c *SessionCache) Reconcile(ctx context.Context) (State, error) {
	c.mu.Lock()
	if c.session == nil || c.session.Token == "" {
		c.state = StateUnauthenticated
		c.mu.Unlock()
		return StateUnauthenticated, nil
	}
	token := c.session.Token
	c.mu.Unlock()

	email, err := c.remote.ProviderSession(ctx, token)
	if err != nil {
		return c.fallback(token, fmt.Errorf("check provider session: %w", err))
	}

	identity, err := c.remote.Identity(ctx, token, email)
	if err != nil {
		return c.fallback(token, fmt.Errorf("resolve identity [%s]: %w", email, err))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// logged out or replaced by another login while the server was asked
	if c.session == nil || c.session.Token != token {
		return c.state, ErrSessionChanged
	}

	verified := *c.session
	verified.Identity = *identity
	verified.CachedAt = c.now()
	if err := c.persist(&verified); err != nil {
		return c.fallbackLocked(err)
	}

	c.session, c.state = &verified, StateVerified
	return c.state, nil
}

// Resolve is Load followed by Reconcile.
func (c *SessionCache) Resolve(ctx context.Context) (State, error) {
	c.Load()
	return c.Reconcile(ctx)
}

func (c *SessionCache) Login(ctx context.Context, username, password string) (*CachedSession, error) {
	loginResp, err := c.remote.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	session := &CachedSession{
		Identity: auth.AdminIdentity{
			ID:       loginResp.User.ID,
			Username: loginResp.User.Username,
			Email:    loginResp.User.Email,
			Role:     loginResp.User.Role,
		},
		Token:           loginResp.Session.Token,
		ExpiresAt:       loginResp.Session.ExpiresAt,
		ProviderSession: loginResp.Session.ProviderSession,
		CachedAt:        c.now(),
	}
	if err := c.persist(session); err != nil {
		return nil, err
	}

	c.session, c.state = session, StateVerified
	return c.copySession(), nil
}

// Logout clears the local copy first and then signs out on the server.
// A server failure is returned but the local state is already gone.
func (c *SessionCache) Logout(ctx context.Context) error {
	c.mu.Lock()
	var token string
	if c.session != nil {
		token = c.session.Token
	}
	c.session, c.state = nil, StateUnauthenticated
	clearErr := c.store.Clear()
	c.mu.Unlock()

	if clearErr != nil {
		log.Errorf("session cache: clear store: %s", clearErr)
	}

	if token == "" {
		return clearErr
	}
	if err := c.remote.Logout(ctx, token); err != nil {
		return fmt.Errorf("remote logout: %w", err)
	}
	return clearErr
}

func (c *SessionCache) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *SessionCache) IsAuthenticated() bool {
	return c.State() != StateUnauthenticated
}

func (c *SessionCache) Session() *CachedSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copySession()
}

func (c *SessionCache) fallback(token string, err error) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil || c.session.Token != token {
		return c.state, ErrSessionChanged
	}
	return c.fallbackLocked(err)
}

func (c *SessionCache) fallbackLocked(err error) (State, error) {
	if c.session != nil {
		c.state = StateUnverifiedCached
	} else {
		c.state = StateUnauthenticated
	}
	log.Debugf("session cache: reconcile failed, staying %s: %s", c.state, err)
	return c.state, err
}

func (c *SessionCache) persist(session *CachedSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := c.store.Write(data); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

func (c *SessionCache) copySession() *CachedSession {
	if c.session == nil {
		return nil
	}
	session := *c.session
	return &session
}
