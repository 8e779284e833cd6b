package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/2beens/portfolio/internal/auth"
	"github.com/2beens/portfolio/pkg/adminclient"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "header.payload.signature"

func newFakeServer(t *testing.T) *httptest.Server {
	t.Helper()

	writeJSON := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		require.NoError(t, json.NewEncoder(w).Encode(v))
	}

	r := mux.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			assert.True(t, strings.HasPrefix(req.UserAgent(), "portfolioctl/"), req.UserAgent())
			next.ServeHTTP(w, req)
		})
	})
	r.HandleFunc("/a/login", func(w http.ResponseWriter, req *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		if body["password"] != "secret" {
			writeJSON(w, http.StatusUnauthorized, auth.LoginResponse{Error: "invalid credentials"})
			return
		}
		writeJSON(w, http.StatusOK, auth.LoginResponse{
			Success: true,
			User:    &auth.UserResponse{ID: 1, Username: body["username"], Email: "serj@example.com", Role: auth.RoleAdmin},
			Session: &auth.SessionResponse{Token: testToken, ExpiresAt: time.Now().Add(time.Hour), ProviderSession: "sid-1"},
		})
	}).Methods("POST")
	r.HandleFunc("/a/logout", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, auth.LogoutResponse{Success: true, Message: "logged out"})
	}).Methods("POST")
	r.HandleFunc("/a/verify", func(w http.ResponseWriter, req *http.Request) {
		if auth.BearerToken(req) != testToken {
			writeJSON(w, http.StatusUnauthorized, auth.VerifyResponse{Error: "malformed token"})
			return
		}
		writeJSON(w, http.StatusOK, auth.VerifyResponse{
			Authenticated: true,
			User:          &auth.UserResponse{Username: "serj", Role: auth.RoleAdmin},
		})
	}).Methods("GET")
	r.HandleFunc("/a/session", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, auth.ProviderSessionResponse{Email: "serj@example.com"})
	}).Methods("GET")
	r.HandleFunc("/a/identity", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, auth.AdminIdentity{ID: 1, Username: "serj", Email: "serj@example.com", Role: auth.RoleAdmin})
	}).Methods("GET")

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func runCmd(args ...string) error {
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func TestLoginWhoamiVerifyLogout(t *testing.T) {
	srv := newFakeServer(t)
	dir := t.TempDir()
	flags := []string{"--server", srv.URL, "--session-dir", dir}

	err := runCmd(append([]string{"login", "-u", "serj", "--password", "wrong"}, flags...)...)
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	require.NoError(t, runCmd(append([]string{"login", "-u", "serj", "--password", "secret"}, flags...)...))

	store := adminclient.NewFileStore(dir)
	blob, err := store.Read()
	require.NoError(t, err)
	assert.Contains(t, string(blob), testToken)

	require.NoError(t, runCmd(append([]string{"whoami"}, flags...)...))
	require.NoError(t, runCmd(append([]string{"verify"}, flags...)...))
	require.NoError(t, runCmd(append([]string{"logout"}, flags...)...))

	_, err = os.Stat(store.Path())
	assert.True(t, os.IsNotExist(err))

	err = runCmd(append([]string{"verify"}, flags...)...)
	assert.EqualError(t, err, "not logged in")
}

func TestReconcileWarning(t *testing.T) {
	cases := map[string]struct {
		err      error
		expected string
	}{
		"no session": {
			err:      fmt.Errorf("check provider session: %w", auth.ErrNoSession),
			expected: "Server reports no active session, showing the cached identity",
		},
		"not in registry": {
			err:      fmt.Errorf("resolve identity [serj@example.com]: %w", auth.ErrNotFound),
			expected: "Admin not found in the registry, showing the cached identity",
		},
		"session changed": {
			err:      adminclient.ErrSessionChanged,
			expected: "Session changed while it was being checked, run whoami again",
		},
		"network": {
			err:      errors.New("dial tcp: connection refused"),
			expected: "Could not reach the server: dial tcp: connection refused",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.expected, reconcileWarning(tc.err))
		})
	}
}

func TestDefaultSessionDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	t.Setenv("HOME", "/tmp/home")

	dir := defaultSessionDir()
	assert.Equal(t, "portfolioctl", filepath.Base(dir))
}

func TestEnvOr(t *testing.T) {
	t.Setenv("PORTFOLIOCTL_TEST_VAR", "")
	assert.Equal(t, "fallback", envOr("PORTFOLIOCTL_TEST_VAR", "fallback"))

	t.Setenv("PORTFOLIOCTL_TEST_VAR", "set")
	assert.Equal(t, "set", envOr("PORTFOLIOCTL_TEST_VAR", "fallback"))
}
