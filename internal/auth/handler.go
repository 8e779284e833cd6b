package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/2beens/portfolio/internal/telemetry/metrics"
	"github.com/2beens/portfolio/internal/telemetry/tracing"
	"github.com/2beens/portfolio/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const invalidCredentialsMessage = "invalid credentials"

type Handler struct {
	verifier       *Verifier
	tokens         *Tokens
	limiter        LoginLimiter
	registry       Registry
	provider       IdentityProvider
	metricsManager *metrics.Manager
	now            func() time.Time
}

func NewHandler(
	registry Registry,
	provider IdentityProvider,
	tokens *Tokens,
	limiter LoginLimiter,
	metricsManager *metrics.Manager,
) *Handler {
	return &Handler{
		verifier:       NewVerifier(registry, provider),
		tokens:         tokens,
		limiter:        limiter,
		registry:       registry,
		provider:       provider,
		metricsManager: metricsManager,
		now:            time.Now,
	}
}

type UserResponse struct {
	ID       int    `json:"id,omitempty"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Role     Role   `json:"role"`
}

type SessionResponse struct {
	Token           string    `json:"token"`
	ExpiresAt       time.Time `json:"expires_at"`
	ProviderSession string    `json:"provider_session"`
}

type LoginResponse struct {
	Success bool             `json:"success"`
	User    *UserResponse    `json:"user,omitempty"`
	Session *SessionResponse `json:"session,omitempty"`
	Error   string           `json:"error,omitempty"`
}

type LogoutResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type VerifyResponse struct {
	Authenticated bool          `json:"authenticated"`
	User          *UserResponse `json:"user,omitempty"`
	Error         string        `json:"error,omitempty"`
}

type ProviderSessionResponse struct {
	Email string `json:"email"`
}

// SetupRoutes registers the /a routes. Session and identity routes expect
// the auth middleware to have put the token claims into the request context.
func (h *Handler) SetupRoutes(router *mux.Router) {
	authRouter := router.PathPrefix("/a").Subrouter()
	authRouter.HandleFunc("/login", h.handleLogin).Methods("POST", "OPTIONS").Name("login")
	authRouter.HandleFunc("/logout", h.handleLogout).Methods("POST", "OPTIONS").Name("logout")
	authRouter.HandleFunc("/verify", h.handleVerify).Methods("GET").Name("verify")
	authRouter.HandleFunc("/session", h.handleSession).Methods("GET").Name("session")
	authRouter.HandleFunc("/identity", h.handleIdentity).Methods("GET").Name("identity")
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "authHandler.login")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "POST, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	sourceKey := pkg.SourceKey(r)
	span.SetAttributes(attribute.String("login.source", sourceKey))

	attempt, err := h.limiter.Allow(ctx, sourceKey)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		log.Errorf("login: rate limiter for [%s]: %s", sourceKey, err)
		h.metricsManager.LoginAttempt(metrics.LoginOutcomeError)
		pkg.WriteJSON(w, http.StatusInternalServerError, LoginResponse{Error: "login failed"})
		return
	}
	if !attempt.Allowed {
		retryAfter := attempt.RetryAfter(h.now())
		log.Warnf("login: source [%s] rate limited, retry after %s", sourceKey, retryAfter)
		h.metricsManager.LoginAttempt(metrics.LoginOutcomeRateLimited)
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
		pkg.WriteJSON(w, http.StatusTooManyRequests, LoginResponse{Error: ErrRateLimited.Error()})
		return
	}

	type loginRequest struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	var loginReq loginRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), pkg.ContentType.JSON) {
		if err := json.NewDecoder(r.Body).Decode(&loginReq); err != nil {
			log.Errorf("login, unmarshal json params: %s", err)
			pkg.WriteJSON(w, http.StatusBadRequest, LoginResponse{Error: "invalid login request"})
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			log.Errorf("login failed, parse form error: %s", err)
			pkg.WriteJSON(w, http.StatusBadRequest, LoginResponse{Error: "invalid login request"})
			return
		}
		loginReq = loginRequest{
			Username: r.Form.Get("username"),
			Password: r.Form.Get("password"),
		}
	}

	if loginReq.Username == "" || loginReq.Password == "" {
		pkg.WriteJSON(w, http.StatusBadRequest, LoginResponse{Error: "username and password are required"})
		return
	}

	login, err := h.verifier.Verify(ctx, loginReq.Username, loginReq.Password)
	if err != nil {
		if IsCredentialsError(err) {
			log.Tracef("failed login attempt for [%s] from [%s]: %s", loginReq.Username, sourceKey, err)
			h.metricsManager.LoginAttempt(metrics.LoginOutcomeRejected)
			pkg.WriteJSON(w, http.StatusUnauthorized, LoginResponse{Error: invalidCredentialsMessage})
			return
		}

		span.SetStatus(codes.Error, err.Error())
		log.Errorf("login for [%s] failed: %s", loginReq.Username, err)
		h.metricsManager.LoginAttempt(metrics.LoginOutcomeError)
		pkg.WriteJSON(w, http.StatusInternalServerError, LoginResponse{Error: "login failed"})
		return
	}

	token, expiresAt, err := h.tokens.Issue(login.Identity, login.Session.ID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		log.Errorf("login for [%s] failed, issue token: %s", loginReq.Username, err)
		h.metricsManager.LoginAttempt(metrics.LoginOutcomeError)
		pkg.WriteJSON(w, http.StatusInternalServerError, LoginResponse{Error: "login failed"})
		return
	}

	if err := h.limiter.Reset(ctx, sourceKey); err != nil {
		log.Errorf("login: reset rate limit for [%s]: %s", sourceKey, err)
	}

	h.metricsManager.LoginAttempt(metrics.LoginOutcomeSuccess)
	log.Debugf("login for [%s] success", login.Identity.Username)

	pkg.WriteJSON(w, http.StatusOK, LoginResponse{
		Success: true,
		User: &UserResponse{
			ID:       login.Identity.ID,
			Username: login.Identity.Username,
			Email:    login.Identity.Email,
			Role:     login.Identity.Role,
		},
		Session: &SessionResponse{
			Token:           token,
			ExpiresAt:       expiresAt,
			ProviderSession: login.Session.ID,
		},
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "authHandler.logout")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "POST, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	token := BearerToken(r)
	if token == "" {
		pkg.WriteJSON(w, http.StatusOK, LogoutResponse{Success: true, Message: "no active session"})
		return
	}

	claims, err := h.tokens.Check(token)
	if err != nil {
		// nothing to sign out from, the client clears its copy anyway
		log.Tracef("logout with rejected token: %s", err)
		pkg.WriteJSON(w, http.StatusOK, LogoutResponse{Success: true, Message: "no active session"})
		return
	}

	if claims.SessionID != "" {
		if err := h.provider.SignOut(ctx, claims.SessionID); err != nil {
			span.SetStatus(codes.Error, err.Error())
			log.Errorf("logout for [%s] failed: %s", claims.Username, err)
			pkg.WriteJSON(w, http.StatusInternalServerError, LogoutResponse{Message: "logout failed"})
			return
		}
	}

	log.Debugf("logout for [%s] success", claims.Username)
	pkg.WriteJSON(w, http.StatusOK, LogoutResponse{Success: true, Message: "logged out"})
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "authHandler.verify")
	defer span.End()

	token := BearerToken(r)
	if token == "" {
		pkg.WriteJSON(w, http.StatusUnauthorized, VerifyResponse{Error: "missing bearer token"})
		return
	}

	claims, err := h.tokens.Check(token)
	if err != nil {
		if IsTokenError(err) {
			pkg.WriteJSON(w, http.StatusUnauthorized, VerifyResponse{Error: tokenErrorMessage(err)})
			return
		}
		span.SetStatus(codes.Error, err.Error())
		log.Errorf("verify token: %s", err)
		pkg.WriteJSON(w, http.StatusInternalServerError, VerifyResponse{Error: "verification failed"})
		return
	}

	pkg.WriteJSON(w, http.StatusOK, VerifyResponse{
		Authenticated: true,
		User: &UserResponse{
			Username: claims.Username,
			Role:     claims.Role,
		},
	})
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "authHandler.session")
	defer span.End()

	claims, ok := ClaimsFromContext(ctx)
	if !ok || claims.SessionID == "" {
		http.Error(w, ErrNoSession.Error(), http.StatusUnauthorized)
		return
	}

	user, err := h.provider.Session(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			http.Error(w, ErrNoSession.Error(), http.StatusUnauthorized)
			return
		}
		span.SetStatus(codes.Error, err.Error())
		log.Errorf("session check for [%s]: %s", claims.Username, err)
		http.Error(w, "session check failed", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSON(w, http.StatusOK, ProviderSessionResponse{Email: user.Email})
}

func (h *Handler) handleIdentity(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "authHandler.identity")
	defer span.End()

	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		http.Error(w, "error, email empty", http.StatusBadRequest)
		return
	}

	identity, err := h.registry.ByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		span.SetStatus(codes.Error, err.Error())
		log.Errorf("identity lookup for [%s]: %s", email, err)
		http.Error(w, "identity lookup failed", http.StatusInternalServerError)
		return
	}

	// only admins may look up other admins
	if identity.Username != claims.Username && !HasPermission(claims.Role, ActionView, ResourceAdmins) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	pkg.WriteJSON(w, http.StatusOK, identity)
}

// BearerToken returns the token from the Authorization header, or an empty
// string when the header is absent or not a bearer one.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

func tokenErrorMessage(err error) string {
	switch {
	case errors.Is(err, ErrMalformedToken):
		return ErrMalformedToken.Error()
	case errors.Is(err, ErrSignatureMismatch):
		return ErrSignatureMismatch.Error()
	case errors.Is(err, ErrExpired):
		return ErrExpired.Error()
	case errors.Is(err, ErrMissingRole):
		return ErrMissingRole.Error()
	default:
		return fmt.Sprintf("invalid token: %s", err)
	}
}
