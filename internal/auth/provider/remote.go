package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/2beens/portfolio/internal/auth"
	"github.com/2beens/portfolio/internal/telemetry/tracing"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
)

const remoteTimeout = 10 * time.Second

// Remote talks to a hosted auth REST API (GoTrue compatible paths).
type Remote struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	now        func() time.Time
}

func NewRemote(baseURL, apiKey string) *Remote {
	return &Remote{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout:   remoteTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		now: time.Now,
	}
}

type remoteTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	User        struct {
		Email string `json:"email"`
	} `json:"user"`
}

type remoteUserResponse struct {
	Email string `json:"email"`
}

func (r *Remote) SignIn(ctx context.Context, email, password string) (*auth.ProviderSession, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "remoteProvider.signIn")
	defer span.End()

	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, fmt.Errorf("marshal sign in request: %w", err)
	}

	resp, err := r.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", "", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusBadRequest,
		resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusUnprocessableEntity:
		return nil, auth.ErrInvalidCredentials
	default:
		return nil, unexpectedStatus("sign in", resp)
	}

	var tokenResp remoteTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return nil, fmt.Errorf("%w: decode sign in response: %s", auth.ErrUpstreamUnavailable, err)
	}
	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("%w: sign in response without access token", auth.ErrUpstreamUnavailable)
	}

	sessionEmail := tokenResp.User.Email
	if sessionEmail == "" {
		sessionEmail = email
	}

	return &auth.ProviderSession{
		ID:        tokenResp.AccessToken,
		Email:     sessionEmail,
		ExpiresAt: r.now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second),
	}, nil
}

func (r *Remote) Session(ctx context.Context, sessionID string) (*auth.ProviderUser, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "remoteProvider.session")
	defer span.End()

	resp, err := r.do(ctx, http.MethodGet, "/auth/v1/user", sessionID, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return nil, auth.ErrNoSession
	default:
		return nil, unexpectedStatus("get user", resp)
	}

	var userResp remoteUserResponse
	if err := json.NewDecoder(resp.Body).Decode(&userResp); err != nil {
		return nil, fmt.Errorf("%w: decode user response: %s", auth.ErrUpstreamUnavailable, err)
	}

	return &auth.ProviderUser{Email: userResp.Email}, nil
}

func (r *Remote) SignOut(ctx context.Context, sessionID string) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "remoteProvider.signOut")
	defer span.End()

	resp, err := r.do(ctx, http.MethodPost, "/auth/v1/logout", sessionID, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusNotFound:
		// session already gone
		return nil
	default:
		return unexpectedStatus("sign out", resp)
	}
}

func (r *Remote) do(ctx context.Context, method, path, bearer string, body []byte) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("apikey", r.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %s", auth.ErrUpstreamUnavailable, method, path, err)
	}
	return resp, nil
}

func unexpectedStatus(op string, resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("%w: %s: status %d: %s", auth.ErrUpstreamUnavailable, op, resp.StatusCode, bytes.TrimSpace(msg))
}
