package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gymweb/internal/domain/models"
	"gymweb/internal/lib/logger/sl"
)

const (
	defaultTimeout = 10 * time.Second
	maxBodySize    = 1 << 20

	authPrefix        = "/api/auth"
	oauthAuthorizeDir = "/oauth2/authorization/"
)

// Client talks to the auth service over HTTP. It never stores tokens.
type Client struct {
	log        *slog.Logger
	baseURL    *url.URL
	httpClient *http.Client
}

type Options struct {
	HTTPClient *http.Client
	Timeout    time.Duration
}

func New(log *slog.Logger, baseURL string, opts Options) (*Client, error) {
	const op = "authapi.New"

	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("%s: base url is empty", op)
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%s: parse base url: %w", op, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("%s: base url %q must be absolute", op, baseURL)
	}

	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	return &Client{log: log, baseURL: parsed, httpClient: client}, nil
}

func (c *Client) Login(ctx context.Context, in models.LoginInput) (models.TokenPair, error) {
	return c.tokenPair(ctx, "authapi.Login", authPrefix+"/login", in)
}

// Register creates the account. The response body carries nothing the
// gateway relies on; only the status decides the outcome.
func (c *Client) Register(ctx context.Context, in models.RegisterInput) error {
	const op = "authapi.Register"

	resp, err := c.doJSON(ctx, op, http.MethodPost, authPrefix+"/register", "", in)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return acknowledged(resp)
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error) {
	return c.tokenPair(ctx, "authapi.Refresh", authPrefix+"/refresh", refreshRequest{RefreshToken: refreshToken})
}

// Validate asks the auth service whether accessToken is still accepted. Any
// 2xx answer accepts it whatever the body says.
func (c *Client) Validate(ctx context.Context, accessToken string) error {
	const op = "authapi.Validate"

	resp, err := c.do(ctx, op, http.MethodGet, authPrefix+"/validate", accessToken, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return acknowledged(resp)
}

func (c *Client) Logout(ctx context.Context, accessToken string) error {
	const op = "authapi.Logout"

	resp, err := c.do(ctx, op, http.MethodPost, authPrefix+"/logout", accessToken, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))

	if !success(resp) {
		return &AuthError{Status: resp.StatusCode, Message: "logout rejected"}
	}

	return nil
}

// Me returns the identity the auth service holds for accessToken. Unlike the
// token claims it reflects profile changes made after the token was issued.
func (c *Client) Me(ctx context.Context, accessToken string) (models.User, error) {
	const op = "authapi.Me"

	resp, err := c.do(ctx, op, http.MethodGet, authPrefix+"/me", accessToken, nil)
	if err != nil {
		return models.User{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.User{}, rejection(resp)
	}

	var body meResponse
	if err := decode(resp, &body); err != nil {
		return models.User{}, &NetworkError{Op: op, Err: err}
	}

	role, ok := models.ParseRole(body.Role)
	if !ok || body.ID <= 0 || body.Email == "" {
		return models.User{}, fmt.Errorf("%s: %w", op, ErrInvalidResponse)
	}

	return models.User{
		ID:               body.ID,
		Email:            body.Email,
		Name:             body.Name,
		Role:             role,
		Provider:         body.Provider,
		ProfileCompleted: body.ProfileCompleted,
	}, nil
}

// SetFrontendOrigin tells the auth service where the OAuth flow should land.
func (c *Client) SetFrontendOrigin(ctx context.Context, origin string) error {
	const op = "authapi.SetFrontendOrigin"

	resp, err := c.doJSON(ctx, op, http.MethodPost, authPrefix+"/set-frontend-origin", "", originRequest{FrontendOrigin: origin})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return acknowledged(resp)
}

// AuthorizeURL returns the provider login entry point served by the auth service.
func (c *Client) AuthorizeURL(provider string) (string, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return "", errors.New("authapi.AuthorizeURL: provider is empty")
	}
	return c.resolve(oauthAuthorizeDir + url.PathEscape(provider)), nil
}

func (c *Client) tokenPair(ctx context.Context, op, path string, payload any) (models.TokenPair, error) {
	resp, err := c.doJSON(ctx, op, http.MethodPost, path, "", payload)
	if err != nil {
		return models.TokenPair{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.TokenPair{}, rejection(resp)
	}

	var body tokenResponse
	if err := decode(resp, &body); err != nil {
		return models.TokenPair{}, &NetworkError{Op: op, Err: err}
	}
	if body.AccessToken == "" || body.RefreshToken == "" {
		return models.TokenPair{}, fmt.Errorf("%s: %w: missing tokens", op, ErrInvalidResponse)
	}

	return models.TokenPair{AccessToken: body.AccessToken, RefreshToken: body.RefreshToken}, nil
}

func (c *Client) resolve(path string) string {
	base := *c.baseURL
	base.Path = strings.TrimRight(base.Path, "/") + path
	base.RawQuery = ""
	return base.String()
}

func (c *Client) do(ctx context.Context, op, method, path, accessToken string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.resolve(path), body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("auth service unreachable", slog.String("op", op), sl.Err(err))
		return nil, &NetworkError{Op: op, Err: err}
	}

	return resp, nil
}

func (c *Client) doJSON(ctx context.Context, op, method, path, accessToken string, payload any) (*http.Response, error) {
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(payload); err != nil {
		return nil, fmt.Errorf("%s: encode: %w", op, err)
	}
	return c.do(ctx, op, method, path, accessToken, buf)
}

func decode(resp *http.Response, v any) error {
	return json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(v)
}

func success(resp *http.Response) bool {
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// acknowledged drains the body of a call whose only result is its status.
func acknowledged(resp *http.Response) error {
	if !success(resp) {
		return rejection(resp)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
	return nil
}

func rejection(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	return &AuthError{Status: resp.StatusCode, Message: errorMessage(body)}
}
