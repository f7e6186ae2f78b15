package portalclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/clinicdesk/staff-portal/internal/core/domain"
)

// ErrNoSession is returned by Do when no token is stored.
var ErrNoSession = errors.New("no active session")

// APIError is a non-2xx response from the portal. It unwraps to the domain
// error matching its status so callers can use errors.Is.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("portal: %d %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusBadRequest:
		return domain.ErrBadRequest
	case http.StatusUnauthorized:
		if e.Message == domain.ErrInvalidCredentials.Error() {
			return domain.ErrInvalidCredentials
		}
		return domain.ErrUnauthenticated
	case http.StatusForbidden:
		return domain.ErrForbidden
	case http.StatusNotFound:
		return domain.ErrUserNotFound
	case http.StatusConflict:
		return domain.ErrDuplicateIdentity
	case http.StatusTooManyRequests:
		return domain.ErrTooManyAttempts
	}
	return nil
}

// Client talks to the portal API and keeps the session in a SessionStore.
type Client struct {
	baseURL    string
	httpClient *http.Client
	store      SessionStore
}

// NewClient returns a Client for the portal at baseURL. A nil store keeps
// the session in memory.
func NewClient(baseURL string, store SessionStore) *Client {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		store: store,
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// Store returns the session store backing c.
func (c *Client) Store() SessionStore { return c.store }

type loginPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResult struct {
	Token       string    `json:"token"`
	ExpiresAt   time.Time `json:"expires_at"`
	SubjectID   string    `json:"subject_id"`
	Role        string    `json:"role"`
	DisplayName string    `json:"display_name"`
}

// Login authenticates and persists the resulting session. A failed login
// clears any previous session.
func (c *Client) Login(ctx context.Context, username, password string) (*Session, error) {
	body, err := json.Marshal(loginPayload{Username: username, Password: password})
	if err != nil {
		return nil, fmt.Errorf("encode login: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/auth/login", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var res loginResult
	if err := c.send(req, &res); err != nil {
		_ = c.store.Clear()
		return nil, err
	}

	s := &Session{
		Token:       res.Token,
		Role:        res.Role,
		Username:    username,
		DisplayName: res.DisplayName,
		ExpiresAt:   res.ExpiresAt,
	}
	if err := c.store.Clear(); err != nil {
		return nil, fmt.Errorf("reset session: %w", err)
	}
	if err := c.store.SetAll(s.values()); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return s, nil
}

// Logout forgets the session. Tokens are not revocable, so the server is
// not contacted.
func (c *Client) Logout(context.Context) error {
	return c.store.Clear()
}

// Session returns the stored session, or nil.
func (c *Client) Session() (*Session, error) {
	return LoadSession(c.store)
}

// Do sends req with the stored bearer token. A 401 clears the session so the
// next navigation redirects to login.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	s, err := c.Session()
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrNoSession
	}
	req.Header.Set("Authorization", "Bearer "+s.Token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		_ = c.store.Clear()
	}
	return resp, nil
}

// Call builds a request against the portal, sends it with Do and decodes a
// JSON response into out (which may be nil).
func (c *Client) Call(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	return decode(resp, out)
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	return decode(resp, out)
}

func decode(resp *http.Response, out any) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var envelope struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&envelope)
		return &APIError{Status: resp.StatusCode, Message: envelope.Error}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
