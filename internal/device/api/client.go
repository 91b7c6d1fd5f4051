package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/immxrtalbeast/safewatch/internal/domain"
)

var (
	ErrAuthRequired = errors.New("authentication required")
	ErrInvalidCode  = errors.New("invalid user code")
	ErrForbidden    = errors.New("forbidden")
)

type Identity struct {
	ID          uuid.UUID   `json:"id"`
	Role        domain.Role `json:"role"`
	Name        string      `json:"name"`
	Code        string      `json:"code,omitempty"`
	Contact     string      `json:"contact,omitempty"`
	WatchedCode string      `json:"watched_code,omitempty"`
}

// JoinCode is the room this identity belongs in.
func (i Identity) JoinCode() string {
	if i.Role == domain.RolePrincipal {
		return i.Code
	}
	return i.WatchedCode
}

type Session struct {
	Token    string    `json:"token"`
	Identity *Identity `json:"identity"`
}

type AlertRequest struct {
	Code    string  `json:"code"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Contact string  `json:"contact,omitempty"`
}

type AlertResult struct {
	Success bool   `json:"success"`
	Method  string `json:"method,omitempty"`
	Message string `json:"message,omitempty"`
}

type apiError struct {
	Error string `json:"error"`
}

// Client talks to the relay server REST API on behalf of one device.
type Client struct {
	http *resty.Client

	mu    sync.RWMutex
	token string
}

func NewClient(baseURL string, token string) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{http: client, token: token}
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *Client) RegisterPrincipal(ctx context.Context, name string, contact string) (*Session, error) {
	var session Session
	err := c.post(ctx, "/api/principals", map[string]string{"name": name, "contact": contact}, &session)
	if err != nil {
		return nil, fmt.Errorf("api.registerPrincipal: %w", err)
	}
	c.SetToken(session.Token)
	return &session, nil
}

func (c *Client) LinkObserver(ctx context.Context, name string, code string) (*Session, error) {
	var session Session
	err := c.post(ctx, "/api/observers", map[string]string{"name": name, "code": code}, &session)
	if err != nil {
		return nil, fmt.Errorf("api.linkObserver: %w", err)
	}
	c.SetToken(session.Token)
	return &session, nil
}

func (c *Client) Me(ctx context.Context) (*Identity, error) {
	var out struct {
		Identity *Identity `json:"identity"`
	}
	var failure apiError
	resp, err := c.request(ctx).
		SetResult(&out).
		SetError(&failure).
		Get("/api/me")
	if err != nil {
		return nil, fmt.Errorf("api.me: %w", err)
	}
	if err := statusError(resp, failure); err != nil {
		return nil, fmt.Errorf("api.me: %w", err)
	}
	return out.Identity, nil
}

// JoinCode resolves the code to join from the current session.
func (c *Client) JoinCode(ctx context.Context) (string, error) {
	identity, err := c.Me(ctx)
	if err != nil {
		return "", err
	}
	return identity.JoinCode(), nil
}

// Alert posts an SOS. A nil error means the round trip completed; the
// result may still report a failed SMS leg.
func (c *Client) Alert(ctx context.Context, req AlertRequest) (*AlertResult, error) {
	var result AlertResult
	if err := c.post(ctx, "/api/sos/alert", req, &result); err != nil {
		return nil, fmt.Errorf("api.alert: %w", err)
	}
	return &result, nil
}

func (c *Client) post(ctx context.Context, path string, body any, result any) error {
	var failure apiError
	resp, err := c.request(ctx).
		SetBody(body).
		SetResult(result).
		SetError(&failure).
		Post(path)
	if err != nil {
		return err
	}
	return statusError(resp, failure)
}

func (c *Client) request(ctx context.Context) *resty.Request {
	req := c.http.R().SetContext(ctx)
	if token := c.Token(); token != "" {
		req.SetAuthToken(token)
	}
	return req
}

func statusError(resp *resty.Response, failure apiError) error {
	if !resp.IsError() {
		return nil
	}
	switch resp.StatusCode() {
	case http.StatusUnauthorized:
		return ErrAuthRequired
	case http.StatusNotFound:
		return ErrInvalidCode
	case http.StatusForbidden:
		return ErrForbidden
	}
	if failure.Error != "" {
		return fmt.Errorf("status %d: %s", resp.StatusCode(), failure.Error)
	}
	return fmt.Errorf("status %d", resp.StatusCode())
}
