package suite

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"gymweb/internal/domain/models"
	"gymweb/internal/lib/jwt"

	"github.com/labstack/echo/v4"
)

const signingKey = "test-secret"

type account struct {
	password string
	user     models.User
}

// FakeAuth is an in-memory stand-in for the auth service.
type FakeAuth struct {
	mu       sync.Mutex
	accounts map[string]account
	revoked  map[string]bool
	issued   map[string]string
	nextID   int64
	origin   string

	accessTTL  time.Duration
	refreshTTL time.Duration

	RefreshCalls  atomic.Int64
	ValidateCalls atomic.Int64
	LogoutCalls   atomic.Int64
}

func NewFakeAuth() *FakeAuth {
	return &FakeAuth{
		accounts:   make(map[string]account),
		revoked:    make(map[string]bool),
		issued:     make(map[string]string),
		accessTTL:  15 * time.Minute,
		refreshTTL: 24 * time.Hour,
	}
}

// AddUser registers an account directly.
func (f *FakeAuth) AddUser(name, email, password string, role models.Role, profileCompleted bool) models.User {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	u := models.User{
		ID:               f.nextID,
		Email:            email,
		Name:             name,
		Role:             role,
		ProfileCompleted: profileCompleted,
	}
	f.accounts[email] = account{password: password, user: u}

	return u
}

// CompleteProfile marks the profile done without reissuing tokens, the way
// the user service does.
func (f *FakeAuth) CompleteProfile(email string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	acc := f.accounts[email]
	acc.user.ProfileCompleted = true
	f.accounts[email] = acc
}

// SetAccessTTL changes the lifetime of access tokens issued from now on. A
// negative value issues tokens that are already expired.
func (f *FakeAuth) SetAccessTTL(d time.Duration) {
	f.mu.Lock()
	f.accessTTL = d
	f.mu.Unlock()
}

// RevokeAll makes every issued access token unacceptable.
func (f *FakeAuth) RevokeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for token := range f.issued {
		f.revoked[token] = true
	}
}

func (f *FakeAuth) FrontendOrigin() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.origin
}

// Accepts reports whether token is a live access token issued by f.
func (f *FakeAuth) Accepts(token string) bool {
	_, ok := f.userFor(token)
	return ok
}

func (f *FakeAuth) Handler() http.Handler {
	e := echo.New()
	e.HideBanner = true

	g := e.Group("/api/auth")
	g.POST("/login", f.login)
	g.POST("/register", f.register)
	g.POST("/refresh", f.refresh)
	g.POST("/logout", f.logout)
	g.GET("/me", f.me)
	g.GET("/validate", f.validate)
	g.POST("/set-frontend-origin", f.setOrigin)

	return e
}

func (f *FakeAuth) login(c echo.Context) error {
	var req models.LoginInput
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "bad request"})
	}

	f.mu.Lock()
	acc, ok := f.accounts[req.Email]
	f.mu.Unlock()
	if !ok || acc.password != req.Password {
		return c.JSON(http.StatusUnauthorized, map[string]string{"message": "Invalid email or password"})
	}

	return f.issue(c, acc.user)
}

func (f *FakeAuth) register(c echo.Context) error {
	var req models.RegisterInput
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "bad request"})
	}

	f.mu.Lock()
	_, exists := f.accounts[req.Email]
	f.mu.Unlock()
	if exists {
		return c.JSON(http.StatusConflict, map[string]string{"error": "User already exists"})
	}

	f.AddUser(req.Name, req.Email, req.Password, models.RoleUser, false)

	return c.JSON(http.StatusOK, map[string]string{"message": "User registered successfully"})
}

func (f *FakeAuth) refresh(c echo.Context) error {
	f.RefreshCalls.Add(1)

	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "bad request"})
	}

	f.mu.Lock()
	email, ok := f.issued[req.RefreshToken]
	acc := f.accounts[email]
	f.mu.Unlock()
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"message": "Invalid refresh token"})
	}

	return f.issue(c, acc.user)
}

func (f *FakeAuth) logout(c echo.Context) error {
	f.LogoutCalls.Add(1)

	if token := bearer(c); token != "" {
		f.mu.Lock()
		f.revoked[token] = true
		f.mu.Unlock()
	}

	return c.NoContent(http.StatusOK)
}

func (f *FakeAuth) me(c echo.Context) error {
	u, ok := f.userFor(bearer(c))
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"id":               u.ID,
		"email":            u.Email,
		"name":             u.Name,
		"role":             string(u.Role),
		"profileCompleted": u.ProfileCompleted,
	})
}

func (f *FakeAuth) validate(c echo.Context) error {
	f.ValidateCalls.Add(1)

	if _, ok := f.userFor(bearer(c)); !ok {
		return c.JSON(http.StatusUnauthorized, map[string]any{"valid": false})
	}

	return c.String(http.StatusOK, "Token is valid")
}

func (f *FakeAuth) setOrigin(c echo.Context) error {
	var req struct {
		FrontendOrigin string `json:"frontendOrigin"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "bad request"})
	}

	f.mu.Lock()
	f.origin = req.FrontendOrigin
	f.mu.Unlock()

	return c.NoContent(http.StatusOK)
}

func (f *FakeAuth) issue(c echo.Context, u models.User) error {
	pair, err := f.mint(u)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]string{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	})
}

// Issue mints a token pair for a known account, as the OAuth flow would
// before redirecting to the callback.
func (f *FakeAuth) Issue(email string) (models.TokenPair, error) {
	f.mu.Lock()
	acc, ok := f.accounts[email]
	f.mu.Unlock()
	if !ok {
		return models.TokenPair{}, fmt.Errorf("unknown account %s", email)
	}

	return f.mint(acc.user)
}

func (f *FakeAuth) mint(u models.User) (models.TokenPair, error) {
	f.mu.Lock()
	accessTTL, refreshTTL := f.accessTTL, f.refreshTTL
	f.mu.Unlock()

	// iat is backdated so that already expired tokens keep exp after iat.
	issuedAt := time.Now().Add(-time.Hour)

	access, err := jwt.NewToken(u, issuedAt, time.Hour+accessTTL, []byte(signingKey))
	if err != nil {
		return models.TokenPair{}, err
	}
	refresh, err := jwt.NewRefreshToken(u, issuedAt, time.Hour+refreshTTL, []byte(signingKey))
	if err != nil {
		return models.TokenPair{}, err
	}

	f.mu.Lock()
	f.issued[access] = u.Email
	f.issued[refresh] = u.Email
	// identical claims minted within one second give an identical token
	delete(f.revoked, access)
	f.mu.Unlock()

	return models.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (f *FakeAuth) userFor(token string) (models.User, bool) {
	if token == "" {
		return models.User{}, false
	}

	claims, err := jwt.DecodeAccess(token)
	if err != nil || claims.ExpiredAt(time.Now()) {
		return models.User{}, false
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	email, ok := f.issued[token]
	if !ok || f.revoked[token] {
		return models.User{}, false
	}

	return f.accounts[email].user, true
}

func bearer(c echo.Context) string {
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	token, ok := strings.CutPrefix(h, "Bearer ")
	if !ok {
		return ""
	}
	return token
}
