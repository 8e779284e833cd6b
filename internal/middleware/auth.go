package middleware

import (
	"net/http"
	"strings"

	"github.com/2beens/portfolio/internal/auth"
	"github.com/2beens/portfolio/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

//go:generate mockgen -source=auth.go -destination=auth_mock_test.go -package=middleware_test

type tokenChecker interface {
	Check(token string) (*auth.Claims, error)
}

type AuthMiddlewareHandler struct {
	tokens tokenChecker
	// public paths, by method
	publicPaths        map[string]map[string]bool
	publicPathPrefixes map[string][]string
	// paths that need a valid token but no particular permission
	tokenOnlyPaths map[string]bool
}

func NewAuthMiddlewareHandler(tokens tokenChecker) *AuthMiddlewareHandler {
	return &AuthMiddlewareHandler{
		tokens: tokens,
		publicPaths: map[string]map[string]bool{
			http.MethodGet: {
				// misc handler:
				"/":         true,
				"/myip":     true,
				"/whereami": true,
				"/version":  true,

				// content:
				"/projects":     true,
				"/skills":       true,
				"/certificates": true,
				"/profile":      true,
				"/files/cv":     true,

				"/a/verify": true,
			},
			http.MethodPost: {
				"/messages": true,
				"/a/login":  true,
				"/a/logout": true,
			},
		},
		publicPathPrefixes: map[string][]string{
			http.MethodGet: {
				"/projects/",
				"/files/images/",
			},
		},
		tokenOnlyPaths: map[string]bool{
			"/a/session":  true,
			"/a/identity": true,
		},
	}
}

func (h *AuthMiddlewareHandler) pathIsPublic(method, path string) bool {
	if method == http.MethodHead {
		method = http.MethodGet
	}
	if h.publicPaths[method][path] {
		return true
	}
	for _, prefix := range h.publicPathPrefixes[method] {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// ResourceForPath maps an admin API path to the policy resource guarding it.
func ResourceForPath(path string) (auth.Resource, bool) {
	segs := strings.Split(strings.Trim(path, "/"), "/")
	if len(segs) == 0 || segs[0] == "" {
		return "", false
	}

	switch segs[0] {
	case "projects":
		return auth.ResourceProjects, true
	case "skills":
		return auth.ResourceSkills, true
	case "certificates":
		return auth.ResourceCertificates, true
	case "messages":
		return auth.ResourceMessages, true
	case "profile":
		return auth.ResourceProfile, true
	case "files":
		if len(segs) < 2 {
			return "", false
		}
		kind := segs[1]
		if kind == "list" && len(segs) > 2 {
			kind = segs[2]
		}
		switch kind {
		case "cv":
			return auth.ResourceCV, true
		case "images":
			return auth.ResourceImages, true
		}
	}

	return "", false
}

func (h *AuthMiddlewareHandler) AuthCheck() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracing.GlobalTracer.Start(r.Context(), "middleware.auth")
			defer span.End()

			if r.Method == http.MethodOptions {
				w.Header().Add("Allow", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
				w.WriteHeader(http.StatusOK)
				span.SetStatus(codes.Ok, "options-ok")
				return
			}

			if h.pathIsPublic(r.Method, r.URL.Path) {
				span.SetStatus(codes.Ok, "ok")
				next.ServeHTTP(w, r)
				return
			}

			token := auth.BearerToken(r)
			if token == "" {
				log.Tracef("[missing token] [auth middleware] unauthorized => %s", r.URL.Path)
				http.Error(w, "no can do", http.StatusUnauthorized)
				span.SetStatus(codes.Error, "missing-auth-token")
				return
			}

			claims, err := h.tokens.Check(token)
			if err != nil {
				log.Tracef("[invalid token] [auth middleware] %s => %s", r.URL.Path, err)
				http.Error(w, "no can do", http.StatusUnauthorized)
				span.SetStatus(codes.Error, "invalid-token")
				span.RecordError(err)
				return
			}

			span.SetAttributes(
				attribute.String("auth.username", claims.Username),
				attribute.String("auth.role", string(claims.Role)),
			)
			ctx = auth.ContextWithClaims(ctx, claims)

			if !h.tokenOnlyPaths[r.URL.Path] {
				resource, ok := ResourceForPath(r.URL.Path)
				action := auth.ActionForMethod(r.Method)
				if !ok || !auth.HasPermission(claims.Role, action, resource) {
					log.Debugf("[forbidden] [auth middleware] %s (%s) => %s %s", claims.Username, claims.Role, r.Method, r.URL.Path)
					http.Error(w, "forbidden", http.StatusForbidden)
					span.SetStatus(codes.Error, "forbidden")
					return
				}
			}

			span.SetStatus(codes.Ok, "ok")
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
