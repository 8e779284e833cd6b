package adminclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/2beens/portfolio/internal/auth"
)

const (
	defaultTimeout   = 15 * time.Second
	defaultUserAgent = "portfolioctl/dev"
)

// RateLimitedError is returned by Login when the server refuses further
// attempts for now.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s, retry after %s", auth.ErrRateLimited, e.RetryAfter)
}

func (e *RateLimitedError) Unwrap() error {
	return auth.ErrRateLimited
}

// Client calls the /a endpoints of the portfolio backend.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  defaultUserAgent,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// WithUserAgent sets the User-Agent sent with every request.
func (c *Client) WithUserAgent(userAgent string) *Client {
	c.userAgent = userAgent
	return c
}

func (c *Client) Login(ctx context.Context, username, password string) (*auth.LoginResponse, error) {
	body, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return nil, fmt.Errorf("marshal login request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/a/login", "", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return nil, auth.ErrInvalidCredentials
	case http.StatusTooManyRequests:
		retryAfter, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
		return nil, &RateLimitedError{RetryAfter: time.Duration(retryAfter) * time.Second}
	default:
		return nil, unexpectedStatus("login", resp)
	}

	var loginResp auth.LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		return nil, fmt.Errorf("decode login response: %w", err)
	}
	if !loginResp.Success || loginResp.User == nil || loginResp.Session == nil {
		return nil, errors.New("login response incomplete")
	}

	return &loginResp, nil
}

func (c *Client) Logout(ctx context.Context, token string) error {
	resp, err := c.do(ctx, http.MethodPost, "/a/logout", token, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return unexpectedStatus("logout", resp)
	}
	return nil
}

func (c *Client) Verify(ctx context.Context, token string) (*auth.VerifyResponse, error) {
	resp, err := c.do(ctx, http.MethodGet, "/a/verify", token, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusUnauthorized {
		return nil, unexpectedStatus("verify", resp)
	}

	var verifyResp auth.VerifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&verifyResp); err != nil {
		return nil, fmt.Errorf("decode verify response: %w", err)
	}
	return &verifyResp, nil
}

// ProviderSession asks the server whether the identity provider still holds
// an active session for the token and returns its email.
func (c *Client) ProviderSession(ctx context.Context, token string) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/a/session", token, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return "", auth.ErrNoSession
	default:
		return "", unexpectedStatus("session", resp)
	}

	var sessionResp auth.ProviderSessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&sessionResp); err != nil {
		return "", fmt.Errorf("decode session response: %w", err)
	}
	return sessionResp.Email, nil
}

func (c *Client) Identity(ctx context.Context, token, email string) (*auth.AdminIdentity, error) {
	resp, err := c.do(ctx, http.MethodGet, "/a/identity?email="+url.QueryEscape(email), token, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, auth.ErrNotFound
	default:
		return nil, unexpectedStatus("identity", resp)
	}

	var identity auth.AdminIdentity
	if err := json.NewDecoder(resp.Body).Decode(&identity); err != nil {
		return nil, fmt.Errorf("decode identity response: %w", err)
	}
	return &identity, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, body []byte) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %s", auth.ErrUpstreamUnavailable, method, path, err)
	}
	return resp, nil
}

func unexpectedStatus(op string, resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("%s: unexpected status %d: %s", op, resp.StatusCode, bytes.TrimSpace(msg))
}
