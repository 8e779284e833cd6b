//go:build integration_test || all_tests

package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/2beens/portfolio/internal/messages"
	"github.com/2beens/portfolio/internal/projects"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *IntegrationTestSuite) TestProjects_AdminCRUD() {
	t := s.T()
	ctx := context.Background()

	adminToken := s.login(ctx, testAdminUsername, testAdminPassword)
	viewerToken := s.login(ctx, testViewerUsername, testViewerPassword)

	newProject := projects.Project{
		Title:       gofakeit.AppName(),
		Description: gofakeit.Sentence(12),
		TechStack:   []string{"go", "postgres"},
		RepoURL:     "https://github.com/2beens/portfolio",
	}

	resp, err := s.do(ctx, http.MethodPost, "/projects", "", newProject)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = s.do(ctx, http.MethodPost, "/projects", viewerToken, newProject)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, err = s.do(ctx, http.MethodPost, "/projects", adminToken, newProject)
	require.NoError(t, err)
	var added projects.Project
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&added))
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Positive(t, added.ID)

	resp, err = s.get(ctx, "/projects", "")
	require.NoError(t, err)
	var all []*projects.Project
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&all))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	found := false
	for _, p := range all {
		if p.ID == added.ID {
			found = true
			assert.Equal(t, newProject.Title, p.Title)
			assert.Equal(t, newProject.TechStack, p.TechStack)
		}
	}
	assert.True(t, found, "added project listed")

	resp, err = s.do(ctx, http.MethodDelete, fmt.Sprintf("/projects/%d", added.ID), adminToken, nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = s.get(ctx, fmt.Sprintf("/projects/%d", added.ID), "")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func (s *IntegrationTestSuite) TestMessages_SendAndRead() {
	t := s.T()
	ctx := context.Background()

	send := func(msg messages.Message) *http.Response {
		body, err := json.Marshal(msg)
		require.NoError(t, err)

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, serverEndpoint+"/messages", bytes.NewReader(body))
		require.NoError(t, err)
		req.Header.Set("User-Agent", testUserAgent)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", "198.51.100.23")

		resp, err := s.httpClient.Do(req)
		require.NoError(t, err)
		return resp
	}

	msg := messages.Message{
		Name:    gofakeit.Name(),
		Email:   gofakeit.Email(),
		Subject: "hello",
		Body:    gofakeit.Sentence(20),
	}

	resp := send(msg)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = send(msg)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// messages_rate_limit_per_min is 2 in the test config
	resp = send(msg)
	resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	resp, err := s.get(ctx, "/messages/page/1/size/10", "")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	adminToken := s.login(ctx, testAdminUsername, testAdminPassword)

	resp, err = s.get(ctx, "/messages/unread/count", adminToken)
	require.NoError(t, err)
	var unread map[string]int
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&unread))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.GreaterOrEqual(t, unread["count"], 2)

	resp, err = s.get(ctx, "/messages/page/1/size/10", adminToken)
	require.NoError(t, err)
	var page []*messages.Message
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, page)
	assert.Equal(t, msg.Email, page[0].Email)

	resp, err = s.do(ctx, http.MethodPatch, fmt.Sprintf("/messages/%d/read", page[0].ID), adminToken, nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
