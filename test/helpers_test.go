//go:build integration_test || all_tests

package test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/2beens/portfolio/internal/auth"
)

func (s *IntegrationTestSuite) do(ctx context.Context, method, path, token string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, serverEndpoint+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", testUserAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return s.httpClient.Do(req)
}

func (s *IntegrationTestSuite) get(ctx context.Context, path, token string) (*http.Response, error) {
	return s.do(ctx, http.MethodGet, path, token, nil)
}

// login signs in and returns the issued bearer token.
func (s *IntegrationTestSuite) login(ctx context.Context, username, password string) string {
	t := s.T()

	resp, err := s.do(ctx, http.MethodPost, "/a/login", "", map[string]string{
		"username": username,
		"password": password,
	})
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var loginResp auth.LoginResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&loginResp))
	s.Require().True(loginResp.Success)
	s.Require().NotNil(loginResp.Session)
	t.Logf("logged in as %s", loginResp.User.Username)

	return loginResp.Session.Token
}
