package suite

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"gymweb/internal/app"
	"gymweb/internal/config"
	"gymweb/internal/lib/logger/handlers/slogdiscard"

	"github.com/stretchr/testify/require"
)

type Suite struct {
	*testing.T
	Cfg     *config.Config
	App     *app.App
	Auth    *FakeAuth
	Gateway *httptest.Server
	Client  *http.Client
}

// New starts a gateway wired to a fake auth service and a plan service that
// only answers requests carrying a live access token.
func New(t *testing.T) (context.Context, *Suite) {
	t.Helper()
	t.Parallel()

	cfg := config.MustLoadPath(configPath())

	ctx, cancelCtx := context.WithTimeout(context.Background(), time.Minute)

	fake := NewFakeAuth()
	authSrv := httptest.NewServer(fake.Handler())

	plans := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !fake.Accepts(token) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"plan":"strength","weeks":8}`)
	}))

	cfg.Auth.BaseURL = authSrv.URL
	cfg.Upstreams.PlanService = plans.URL
	cfg.Upstreams.UserService = plans.URL
	cfg.Storage.Driver = config.StorageMemory
	cfg.Storage.Path = ""

	application, err := app.New(slogdiscard.NewDiscardLogger(), cfg)
	require.NoError(t, err)
	application.Start(ctx)

	gateway := httptest.NewServer(application.HTTPServer.Echo())

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	client := &http.Client{
		Jar:     jar,
		Timeout: 10 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	t.Cleanup(func() {
		t.Helper()
		gateway.Close()
		application.Stop()
		plans.Close()
		authSrv.Close()
		cancelCtx()
	})

	return ctx, &Suite{
		T:       t,
		Cfg:     cfg,
		App:     application,
		Auth:    fake,
		Gateway: gateway,
		Client:  client,
	}
}

// Do sends a request to the gateway. body, when not nil, is sent as JSON.
func (s *Suite) Do(ctx context.Context, method, path string, body any, header http.Header) *http.Response {
	s.Helper()

	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s, err)
		r = strings.NewReader(string(raw))
	}

	req, err := http.NewRequestWithContext(ctx, method, s.Gateway.URL+path, r)
	require.NoError(s, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := s.Client.Do(req)
	require.NoError(s, err)
	s.Cleanup(func() { _ = resp.Body.Close() })

	return resp
}

// DecodeData reads the data field of a success envelope into v.
func (s *Suite) DecodeData(resp *http.Response, v any) {
	s.Helper()

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(s, json.NewDecoder(resp.Body).Decode(&envelope))
	require.NoError(s, json.Unmarshal(envelope.Data, v))
}

func configPath() string {
	const key = "CONFIG_PATH"

	if v := os.Getenv(key); v != "" {
		return v
	}

	return "../config/local.yaml"
}
