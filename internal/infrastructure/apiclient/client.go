// Package apiclient is the portal's single point of outbound communication
// with the clinic backend.
//
// A Client is bound to one browser's token store: it attaches the stored
// bearer token to every request and clears the store when the backend
// answers 401. It never redirects; callers decide what a failure means.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/medclinic/booking-portal/internal/api/metrics"
	"github.com/medclinic/booking-portal/internal/core/domain"
	"github.com/medclinic/booking-portal/internal/core/ports"
)

const (
	defaultTimeout = 10 * time.Second
	defaultMePath  = "/api/users/me"
	maxBodyBytes   = 4 << 20
	storeTimeout   = 3 * time.Second
)

// Config holds the backend location and call limits.
type Config struct {
	BaseURL string
	// MePath is the who-am-I endpoint.
	MePath  string
	Timeout time.Duration
}

// Client talks to the clinic backend on behalf of one browser.
type Client struct {
	baseURL  string
	mePath   string
	http     *http.Client
	store    ports.TokenStore
	validate *validator.Validate
	log      zerolog.Logger

	onUnauthorized func(token string, err error)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// New builds a Client reading its bearer token from store.
func New(cfg Config, store ports.TokenStore, log zerolog.Logger, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	mePath := cfg.MePath
	if mePath == "" {
		mePath = defaultMePath
	}

	c := &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		mePath:   mePath,
		http:     &http.Client{Timeout: timeout},
		store:    store,
		validate: validator.New(),
		log:      log.With().Str("component", "apiclient").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnUnauthorized registers fn to run after a 401. fn receives the token the
// rejected request carried, which may differ from what the store holds by
// then. Set it before the client is shared.
func (c *Client) OnUnauthorized(fn func(token string, err error)) {
	c.onUnauthorized = fn
}

type meResponse struct {
	ID   int64  `json:"id"   validate:"required,gt=0"`
	Role string `json:"role" validate:"required,oneof=patient doctor admin"`
}

// Me asks the backend who the stored token belongs to.
func (c *Client) Me(ctx context.Context) (domain.User, error) {
	var resp meResponse
	if err := c.do(ctx, http.MethodGet, c.mePath, nil, nil, &resp); err != nil {
		return domain.User{}, err
	}
	if err := c.validate.Struct(resp); err != nil {
		return domain.User{}, c.fail(&Error{Kind: KindMalformed, Method: http.MethodGet, Path: c.mePath, Status: http.StatusOK, Err: err})
	}
	return domain.User{ID: resp.ID, Role: domain.Role(resp.Role)}, nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token  string `json:"token"   validate:"required"`
	UserID int64  `json:"user_id" validate:"required,gt=0"`
	Role   string `json:"role"    validate:"required,oneof=patient doctor admin"`
}

const (
	loginPath    = "/api/users/login"
	registerPath = "/api/users/register"
)

// Login exchanges credentials for a token. A 401 is reported as
// domain.ErrInvalidCredentials.
func (c *Client) Login(ctx context.Context, email, password string) (domain.LoginResult, error) {
	var resp loginResponse
	err := c.do(ctx, http.MethodPost, loginPath, nil, loginRequest{Email: email, Password: password}, &resp)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			return domain.LoginResult{}, fmt.Errorf("%w: %w", domain.ErrInvalidCredentials, err)
		}
		return domain.LoginResult{}, err
	}
	return c.loginResult(loginPath, resp)
}

// Register creates a patient account and returns its first token. A 409 is
// reported as domain.ErrUserExists.
func (c *Client) Register(ctx context.Context, in ports.RegisterInput) (domain.LoginResult, error) {
	var resp loginResponse
	err := c.do(ctx, http.MethodPost, registerPath, nil, in, &resp)
	if err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict {
			return domain.LoginResult{}, fmt.Errorf("%w: %w", domain.ErrUserExists, err)
		}
		return domain.LoginResult{}, err
	}
	return c.loginResult(registerPath, resp)
}

func (c *Client) loginResult(path string, resp loginResponse) (domain.LoginResult, error) {
	if err := c.validate.Struct(resp); err != nil {
		return domain.LoginResult{}, c.fail(&Error{Kind: KindMalformed, Method: http.MethodPost, Path: path, Status: http.StatusOK, Err: err})
	}
	return domain.LoginResult{Token: resp.Token, UserID: resp.UserID, Role: domain.Role(resp.Role)}, nil
}

// List fetches a resource collection.
func (c *Client) List(ctx context.Context, resource domain.Resource, query url.Values) (json.RawMessage, error) {
	path, err := resourcePath(resource, "")
	if err != nil {
		return nil, err
	}
	var out json.RawMessage
	if err := c.do(ctx, http.MethodGet, path, query, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get fetches one item of a resource.
func (c *Client) Get(ctx context.Context, resource domain.Resource, id string) (json.RawMessage, error) {
	path, err := resourcePath(resource, id)
	if err != nil {
		return nil, err
	}
	var out json.RawMessage
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Create posts payload to a resource collection.
func (c *Client) Create(ctx context.Context, resource domain.Resource, payload json.RawMessage) (json.RawMessage, error) {
	path, err := resourcePath(resource, "")
	if err != nil {
		return nil, err
	}
	var out json.RawMessage
	if err := c.do(ctx, http.MethodPost, path, nil, payload, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Cancel asks the backend to cancel one item, e.g. an appointment.
func (c *Client) Cancel(ctx context.Context, resource domain.Resource, id string) (json.RawMessage, error) {
	path, err := resourcePath(resource, id)
	if err != nil {
		return nil, err
	}
	var out json.RawMessage
	if err := c.do(ctx, http.MethodPatch, path+"/cancel", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func resourcePath(resource domain.Resource, id string) (string, error) {
	base, ok := resource.Path()
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrUnknownResource, resource)
	}
	if id == "" {
		return base, nil
	}
	return base + "/" + url.PathEscape(id), nil
}

// do performs one request. out, when non-nil, receives the decoded JSON body
// of a 2xx response.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case json.RawMessage:
			reader = bytes.NewReader(b)
		default:
			buf, err := json.Marshal(body)
			if err != nil {
				return fmt.Errorf("encode request body: %w", err)
			}
			reader = bytes.NewReader(buf)
		}
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, _, err := c.store.Read(ctx)
	if err != nil {
		c.log.Warn().Err(err).Str("path", path).Msg("token store unreadable, sending request without credentials")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.BackendRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return c.fail(&Error{Kind: KindNetwork, Method: method, Path: path, Err: err})
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return c.fail(&Error{Kind: KindNetwork, Method: method, Path: path, Status: resp.StatusCode, Err: err})
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		apiErr := &Error{Kind: KindUnauthorized, Method: method, Path: path, Status: resp.StatusCode, Message: backendMessage(raw)}
		// A rejected credential exchange says nothing about the stored token.
		if path != loginPath && path != registerPath {
			c.handleUnauthorized(ctx, token, apiErr)
		}
		return c.fail(apiErr)
	case resp.StatusCode == http.StatusForbidden:
		return c.fail(&Error{Kind: KindForbidden, Method: method, Path: path, Status: resp.StatusCode, Message: backendMessage(raw)})
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return c.fail(&Error{Kind: KindStatus, Method: method, Path: path, Status: resp.StatusCode, Message: backendMessage(raw)})
	}

	if out != nil {
		if len(bytes.TrimSpace(raw)) == 0 {
			raw = []byte("null")
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return c.fail(&Error{Kind: KindMalformed, Method: method, Path: path, Status: resp.StatusCode, Err: err})
		}
	}

	metrics.BackendRequestsTotal.WithLabelValues("ok").Inc()
	return nil
}

// handleUnauthorized clears the store only while it still holds the token
// that was rejected; a session saved since the request left is kept.
func (c *Client) handleUnauthorized(ctx context.Context, token string, apiErr *Error) {
	if token == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()
	removed, err := c.store.ClearIf(ctx, token)
	if err != nil {
		c.log.Error().Err(err).Msg("failed to clear token store after 401")
	}
	if !removed {
		c.log.Debug().Str("path", apiErr.Path).Msg("401 for a replaced token, store kept")
	}
	if c.onUnauthorized != nil {
		c.onUnauthorized(token, apiErr)
	}
}

// fail logs and counts a failed call, then returns it unchanged.
func (c *Client) fail(apiErr *Error) error {
	metrics.BackendRequestsTotal.WithLabelValues(string(apiErr.Kind)).Inc()

	ev := c.log.Warn()
	if apiErr.Kind == KindNetwork || apiErr.Kind == KindMalformed {
		ev = c.log.Error()
	}
	ev.Str("kind", string(apiErr.Kind)).
		Str("method", apiErr.Method).
		Str("path", apiErr.Path).
		Int("status", apiErr.Status).
		Err(apiErr.Err).
		Msg("backend call failed")
	return apiErr
}

// backendMessage extracts {"error": "..."} or {"message": "..."} from a
// failure body.
func backendMessage(raw []byte) string {
	var envelope struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return ""
	}
	if envelope.Error != "" {
		return envelope.Error
	}
	return envelope.Message
}
