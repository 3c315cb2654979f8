package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"gymweb/internal/clients/authapi"
	"gymweb/internal/domain/models"
	"gymweb/internal/lib/logger/handlers/slogdiscard"
	"gymweb/internal/services/auth"
	httprouters "gymweb/internal/transport/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSessionService struct {
	mock.Mock
}

func (m *MockSessionService) Login(ctx context.Context, email, password string) (models.User, error) {
	args := m.Called(ctx, email, password)
	return args.Get(0).(models.User), args.Error(1)
}

func (m *MockSessionService) RegisterNewUser(ctx context.Context, in models.RegisterInput) error {
	return m.Called(ctx, in).Error(0)
}

func (m *MockSessionService) Refresh(ctx context.Context) (models.TokenPair, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.TokenPair), args.Error(1)
}

func (m *MockSessionService) Logout(ctx context.Context) {
	m.Called(ctx)
}

func (m *MockSessionService) CurrentUser(ctx context.Context) (models.User, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.User), args.Error(1)
}

func (m *MockSessionService) ReloadUser(ctx context.Context) (models.User, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.User), args.Error(1)
}

func (m *MockSessionService) IsAuthenticated(ctx context.Context) bool {
	return m.Called(ctx).Bool(0)
}

func (m *MockSessionService) CompleteOAuth(ctx context.Context, accessToken, refreshToken string) (models.User, error) {
	args := m.Called(ctx, accessToken, refreshToken)
	return args.Get(0).(models.User), args.Error(1)
}

func (m *MockSessionService) StartOAuth(ctx context.Context, origin, provider string) (string, error) {
	args := m.Called(ctx, origin, provider)
	return args.String(0), args.Error(1)
}

type fixedExpiry time.Duration

func (f fixedExpiry) ExpiresIn(context.Context) time.Duration { return time.Duration(f) }

type testValidator struct {
	v *validator.Validate
}

func (tv *testValidator) Validate(i interface{}) error {
	return tv.v.Struct(i)
}

var testUser = models.User{ID: 42, Email: "test@example.com", Name: "Test", Role: models.RoleUser, ProfileCompleted: true}

func newEcho(t *testing.T) (*echo.Echo, *MockSessionService) {
	t.Helper()

	svc := new(MockSessionService)
	r := httprouters.NewRouter(slogdiscard.NewDiscardLogger(), svc, fixedExpiry(10*time.Minute), httprouters.Routes{})

	e := echo.New()
	e.Validator = &testValidator{v: validator.New()}
	e.Use(session.Middleware(sessions.NewCookieStore([]byte("test-secret-test-secret-test-sec"))))

	e.POST("/api/session/login", r.Login)
	e.POST("/api/session/register", r.Register)
	e.POST("/api/session/refresh", r.Refresh)
	e.POST("/api/session/logout", r.Logout)
	e.GET("/api/session/me", r.Me)
	e.GET("/api/session/status", r.Status)
	e.GET("/oauth2/start/:provider", r.OAuthStart)
	e.GET("/oauth-callback", r.OAuthCallback)
	e.GET("/dashboard", r.View("dashboard"))

	return e, svc
}

func serve(e *echo.Echo, method, target, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestLogin(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		e, svc := newEcho(t)
		svc.On("Login", mock.Anything, "test@example.com", "secret").Return(testUser, nil).Once()

		rec := serve(e, http.MethodPost, "/api/session/login", `{"email":"test@example.com","password":"secret"}`)

		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "success", body["status"])
		assert.Equal(t, "test@example.com", body["data"].(map[string]any)["email"])
	})

	t.Run("invalid email", func(t *testing.T) {
		e, svc := newEcho(t)

		rec := serve(e, http.MethodPost, "/api/session/login", `{"email":"nope","password":"secret"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertNotCalled(t, "Login", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("rejected credentials keep server message", func(t *testing.T) {
		e, svc := newEcho(t)
		svc.On("Login", mock.Anything, mock.Anything, mock.Anything).
			Return(models.User{}, &authapi.AuthError{Status: 401, Message: "Bad credentials"}).Once()

		rec := serve(e, http.MethodPost, "/api/session/login", `{"email":"test@example.com","password":"wrong"}`)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "authentication_failed", body["error"])
		assert.Equal(t, "Bad credentials", body["details"])
	})

	t.Run("auth service down", func(t *testing.T) {
		e, svc := newEcho(t)
		svc.On("Login", mock.Anything, mock.Anything, mock.Anything).
			Return(models.User{}, &authapi.NetworkError{Op: "authapi.Login", Err: context.DeadlineExceeded}).Once()

		rec := serve(e, http.MethodPost, "/api/session/login", `{"email":"test@example.com","password":"secret"}`)

		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

func TestRegister(t *testing.T) {
	in := models.RegisterInput{Name: "Test", Email: "test@example.com", Password: "secret1"}

	t.Run("without auto login", func(t *testing.T) {
		e, svc := newEcho(t)
		svc.On("RegisterNewUser", mock.Anything, in).Return(nil).Once()

		rec := serve(e, http.MethodPost, "/api/session/register", `{"name":"Test","email":"test@example.com","password":"secret1"}`)

		assert.Equal(t, http.StatusCreated, rec.Code)
		svc.AssertNotCalled(t, "Login", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("auto login", func(t *testing.T) {
		e, svc := newEcho(t)
		svc.On("RegisterNewUser", mock.Anything, in).Return(nil).Once()
		svc.On("Login", mock.Anything, in.Email, in.Password).Return(testUser, nil).Once()

		rec := serve(e, http.MethodPost, "/api/session/register", `{"name":"Test","email":"test@example.com","password":"secret1","autoLogin":true}`)

		assert.Equal(t, http.StatusCreated, rec.Code)
		svc.AssertExpectations(t)
	})

	t.Run("conflict", func(t *testing.T) {
		e, svc := newEcho(t)
		svc.On("RegisterNewUser", mock.Anything, in).
			Return(&authapi.AuthError{Status: http.StatusConflict, Message: "Email already registered"}).Once()

		rec := serve(e, http.MethodPost, "/api/session/register", `{"name":"Test","email":"test@example.com","password":"secret1"}`)

		require.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "Email already registered", decodeBody(t, rec)["details"])
	})

	t.Run("short password", func(t *testing.T) {
		e, _ := newEcho(t)

		rec := serve(e, http.MethodPost, "/api/session/register", `{"name":"Test","email":"test@example.com","password":"123"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRefresh(t *testing.T) {
	e, svc := newEcho(t)
	svc.On("Refresh", mock.Anything).Return(models.TokenPair{}, auth.ErrSessionExpired).Once()

	rec := serve(e, http.MethodPost, "/api/session/refresh", "")

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "session_expired", decodeBody(t, rec)["error"])
}

func TestLogout_AlwaysSucceeds(t *testing.T) {
	e, svc := newEcho(t)
	svc.On("Logout", mock.Anything).Return().Twice()

	assert.Equal(t, http.StatusOK, serve(e, http.MethodPost, "/api/session/logout", "").Code)
	assert.Equal(t, http.StatusOK, serve(e, http.MethodPost, "/api/session/logout", "").Code)
	svc.AssertNumberOfCalls(t, "Logout", 2)
}

func TestMe_Unauthorized(t *testing.T) {
	e, svc := newEcho(t)
	svc.On("CurrentUser", mock.Anything).Return(models.User{}, auth.ErrUnauthorized).Once()

	rec := serve(e, http.MethodGet, "/api/session/me", "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStatus(t *testing.T) {
	e, svc := newEcho(t)
	svc.On("IsAuthenticated", mock.Anything).Return(true).Once()

	rec := serve(e, http.MethodGet, "/api/session/status", "")

	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeBody(t, rec)["data"].(map[string]any)
	assert.Equal(t, true, data["authenticated"])
	assert.Equal(t, float64(600), data["expiresIn"])
}

func TestView_IncludesUser(t *testing.T) {
	e, svc := newEcho(t)
	svc.On("IsAuthenticated", mock.Anything).Return(true).Once()
	svc.On("CurrentUser", mock.Anything).Return(testUser, nil).Once()

	rec := serve(e, http.MethodGet, "/dashboard", "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "dashboard", body["view"])
	assert.Equal(t, float64(42), body["user"].(map[string]any)["id"])
}

func TestOAuthCallback_Errors(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		errVal string
		reason string
	}{
		{name: "provider error", query: "error=access_denied&error_description=User+cancelled", errVal: "access_denied", reason: "User cancelled"},
		{name: "provider error without description", query: "error=server_error", errVal: "server_error", reason: "oauth_error"},
		{name: "missing tokens", query: "access_token=abc", errVal: "oauth_failed", reason: "missing_tokens"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, svc := newEcho(t)

			rec := serve(e, http.MethodGet, "/oauth-callback?"+tt.query, "")

			require.Equal(t, http.StatusFound, rec.Code)
			loc, err := url.Parse(rec.Header().Get(echo.HeaderLocation))
			require.NoError(t, err)
			assert.Equal(t, "/login", loc.Path)
			assert.Equal(t, tt.errVal, loc.Query().Get("error"))
			assert.Equal(t, tt.reason, loc.Query().Get("reason"))
			svc.AssertNotCalled(t, "CompleteOAuth", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestOAuthCallback_InvalidTokens(t *testing.T) {
	e, svc := newEcho(t)
	svc.On("CompleteOAuth", mock.Anything, "bad", "bad").Return(models.User{}, auth.ErrUnauthorized).Once()

	rec := serve(e, http.MethodGet, "/oauth-callback?access_token=bad&refresh_token=bad", "")

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login?error=oauth_failed&reason=invalid_tokens", rec.Header().Get(echo.HeaderLocation))
}

func TestOAuthFlow_RemembersRedirect(t *testing.T) {
	e, svc := newEcho(t)
	svc.On("StartOAuth", mock.Anything, "http://example.com", "google").
		Return("http://auth.local/oauth2/authorization/google", nil).Once()
	svc.On("CompleteOAuth", mock.Anything, "acc", "ref").Return(testUser, nil).Twice()

	start := serve(e, http.MethodGet, "/oauth2/start/google?redirect=/progress", "")
	require.Equal(t, http.StatusFound, start.Code)
	assert.Equal(t, "http://auth.local/oauth2/authorization/google", start.Header().Get(echo.HeaderLocation))

	cookies := start.Result().Cookies()
	require.NotEmpty(t, cookies)

	cb := serve(e, http.MethodGet, "/oauth-callback?access_token=acc&refresh_token=ref&profile_completed=true", "", cookies...)
	require.Equal(t, http.StatusFound, cb.Code)
	assert.Equal(t, "/progress", cb.Header().Get(echo.HeaderLocation))

	// Without the cookie the default view is used.
	cb = serve(e, http.MethodGet, "/oauth-callback?access_token=acc&refresh_token=ref", "")
	assert.Equal(t, "/plan-dashboard", cb.Header().Get(echo.HeaderLocation))
}

func TestOAuthStart_IgnoresForeignRedirect(t *testing.T) {
	e, svc := newEcho(t)
	svc.On("StartOAuth", mock.Anything, mock.Anything, "github").Return("http://auth.local/oauth2/authorization/github", nil).Once()

	rec := serve(e, http.MethodGet, "/oauth2/start/github?redirect=//evil.example", "")

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Empty(t, rec.Result().Cookies())
}
