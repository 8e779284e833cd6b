//go:build integration_test || all_tests

package test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"testing"

	"github.com/2beens/portfolio/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *IntegrationTestSuite) TestLogin() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cases := map[string]struct {
		username           string
		password           string
		expectedStatusCode int
		expectedRole       auth.Role
	}{
		"admin, good creds": {
			username:           testAdminUsername,
			password:           testAdminPassword,
			expectedStatusCode: http.StatusOK,
			expectedRole:       auth.RoleAdmin,
		},
		"viewer, good creds": {
			username:           testViewerUsername,
			password:           testViewerPassword,
			expectedStatusCode: http.StatusOK,
			expectedRole:       auth.RoleViewer,
		},
		"bad password": {
			username:           testAdminUsername,
			password:           "bad-password",
			expectedStatusCode: http.StatusUnauthorized,
		},
		"unknown user": {
			username:           "nobody",
			password:           "whatever",
			expectedStatusCode: http.StatusUnauthorized,
		},
		"empty password": {
			username:           testAdminUsername,
			password:           "",
			expectedStatusCode: http.StatusBadRequest,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			resp, err := s.do(ctx, http.MethodPost, "/a/login", "", map[string]string{
				"username": tc.username,
				"password": tc.password,
			})
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, tc.expectedStatusCode, resp.StatusCode)

			var loginResp auth.LoginResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&loginResp))
			if tc.expectedStatusCode != http.StatusOK {
				assert.False(t, loginResp.Success)
				assert.NotEmpty(t, loginResp.Error)
				return
			}

			assert.True(t, loginResp.Success)
			require.NotNil(t, loginResp.User)
			require.NotNil(t, loginResp.Session)
			assert.Equal(t, tc.username, loginResp.User.Username)
			assert.Equal(t, tc.expectedRole, loginResp.User.Role)
			assert.NotEmpty(t, loginResp.Session.Token)
			assert.NotEmpty(t, loginResp.Session.ProviderSession)
		})
	}
}

func (s *IntegrationTestSuite) TestLoginVerifySessionLogout() {
	t := s.T()
	ctx := context.Background()

	token := s.login(ctx, testAdminUsername, testAdminPassword)

	resp, err := s.get(ctx, "/a/verify", token)
	require.NoError(t, err)
	var verifyResp auth.VerifyResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&verifyResp))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, verifyResp.Authenticated)
	assert.Equal(t, testAdminUsername, verifyResp.User.Username)

	resp, err = s.get(ctx, "/a/session", token)
	require.NoError(t, err)
	var sessionResp auth.ProviderSessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sessionResp))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, testAdminEmail, sessionResp.Email)

	resp, err = s.get(ctx, "/a/identity?email="+url.QueryEscape(testViewerEmail), token)
	require.NoError(t, err)
	var identity auth.AdminIdentity
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&identity))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, testViewerUsername, identity.Username)
	assert.Equal(t, auth.RoleViewer, identity.Role)

	resp, err = s.do(ctx, http.MethodPost, "/a/logout", token, nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// the token is still well formed, but the provider session behind it is gone
	resp, err = s.get(ctx, "/a/session", token)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func (s *IntegrationTestSuite) TestVerify_BadToken() {
	t := s.T()
	ctx := context.Background()

	resp, err := s.get(ctx, "/a/verify", "")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = s.get(ctx, "/a/verify", "not.a.token")
	require.NoError(t, err)
	var verifyResp auth.VerifyResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&verifyResp))
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.False(t, verifyResp.Authenticated)
	assert.NotEmpty(t, verifyResp.Error)
}

func (s *IntegrationTestSuite) TestViewerIdentity_OtherAdminForbidden() {
	t := s.T()
	ctx := context.Background()

	token := s.login(ctx, testViewerUsername, testViewerPassword)

	resp, err := s.get(ctx, "/a/identity?email="+url.QueryEscape(testViewerEmail), token)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = s.get(ctx, "/a/identity?email="+url.QueryEscape(testAdminEmail), token)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func (s *IntegrationTestSuite) TestLogin_RateLimited() {
	t := s.T()
	ctx := context.Background()

	attempt := func(password string) *http.Response {
		body, err := json.Marshal(map[string]string{
			"username": testAdminUsername,
			"password": password,
		})
		require.NoError(t, err)

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, serverEndpoint+"/a/login", bytes.NewReader(body))
		require.NoError(t, err)
		req.Header.Set("User-Agent", testUserAgent)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", "203.0.113.77")

		resp, err := s.httpClient.Do(req)
		require.NoError(t, err)
		return resp
	}

	for i := 0; i < 5; i++ {
		resp := attempt("wrong-password")
		resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode, "attempt %d", i+1)
	}

	// good credentials do not get through once the window is exhausted
	resp := attempt(testAdminPassword)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
}
