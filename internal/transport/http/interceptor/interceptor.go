package interceptor

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"gymweb/internal/metrics"
)

// Requests to these paths are part of the login handshake and never carry
// a bearer token.
var handshakePaths = []string{
	"/auth/login",
	"/auth/register",
	"/oauth2/",
	"/login/oauth2/",
	"/cors/test",
}

type Session interface {
	AccessToken(ctx context.Context) (string, bool)
	ClearLocal(ctx context.Context)
}

type Navigator interface {
	Navigate(ctx context.Context, target string)
}

type Config struct {
	LoginPath         string
	OAuthCallbackPath string
}

// Transport attaches the session access token to outgoing requests and ends
// the session when a downstream service answers 401. It never retries.
type Transport struct {
	log     *slog.Logger
	base    http.RoundTripper
	session Session
	nav     Navigator
	cfg     Config
}

func New(log *slog.Logger, base http.RoundTripper, session Session, nav Navigator, cfg Config) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	if nav == nil {
		nav = ContextNavigator{}
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	if cfg.OAuthCallbackPath == "" {
		cfg.OAuthCallbackPath = "/oauth-callback"
	}

	return &Transport{log: log, base: base, session: session, nav: nav, cfg: cfg}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	out := req.Clone(ctx)
	out.Header.Del("Authorization")
	if !isHandshake(req.URL.Path) {
		if token, ok := t.session.AccessToken(ctx); ok {
			out.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := t.base.RoundTrip(out)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		t.unauthorized(ctx, req)
	}

	return resp, nil
}

func (t *Transport) unauthorized(ctx context.Context, req *http.Request) {
	const op = "interceptor.unauthorized"

	metrics.UnauthorizedResponses.Inc()

	log := t.log.With(
		slog.String("op", op),
		slog.String("url", req.URL.Redacted()),
	)
	log.Warn("downstream rejected credentials, clearing session")

	t.session.ClearLocal(ctx)

	loc := Location(ctx)
	if strings.Contains(loc, t.cfg.LoginPath) || strings.Contains(loc, t.cfg.OAuthCallbackPath) {
		return
	}

	t.nav.Navigate(ctx, t.cfg.LoginPath)
}

func isHandshake(path string) bool {
	for _, p := range handshakePaths {
		if strings.Contains(path, p) {
			return true
		}
	}
	return false
}
