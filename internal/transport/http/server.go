package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gymweb/internal/clients/authapi"
	"gymweb/internal/domain/models"
	"gymweb/internal/lib/jwt"
	"gymweb/internal/lib/logger/sl"
	"gymweb/internal/services/auth"
	"gymweb/internal/transport/http/dto"
	"gymweb/internal/transport/http/dto/request"
	"gymweb/internal/transport/http/dto/response"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"

	_ "gymweb/docs"
)

const (
	oauthSessionName = "gymweb_oauth"
	oauthRedirectKey = "redirect"
	oauthCookieTTL   = 10 * time.Minute
)

type SessionService interface {
	Login(ctx context.Context, email, password string) (models.User, error)
	RegisterNewUser(ctx context.Context, in models.RegisterInput) error
	Refresh(ctx context.Context) (models.TokenPair, error)
	Logout(ctx context.Context)
	CurrentUser(ctx context.Context) (models.User, error)
	ReloadUser(ctx context.Context) (models.User, error)
	IsAuthenticated(ctx context.Context) bool
	CompleteOAuth(ctx context.Context, accessToken, refreshToken string) (models.User, error)
	StartOAuth(ctx context.Context, origin, provider string) (string, error)
}

type TokenExpiry interface {
	ExpiresIn(ctx context.Context) time.Duration
}

type Routes struct {
	Login            string
	DefaultAfterAuth string
}

type Routers struct {
	log            *slog.Logger
	SessionService SessionService
	Tokens         TokenExpiry
	routes         Routes
}

func NewRouter(log *slog.Logger, sessionService SessionService, tokens TokenExpiry, routes Routes) *Routers {
	if routes.Login == "" {
		routes.Login = "/login"
	}
	if routes.DefaultAfterAuth == "" {
		routes.DefaultAfterAuth = "/plan-dashboard"
	}

	return &Routers{
		log:            log,
		SessionService: sessionService,
		Tokens:         tokens,
		routes:         routes,
	}
}

// Login godoc
// @Summary Sign in
// @Description Signs in with email and password and starts the gateway session.
// @Tags session
// @Accept json
// @Produce json
// @Param request body request.LoginRequest true "Credentials"
// @Success 200 {object} response.Response{data=dto.UserResponse} "Signed in"
// @Failure 400 {object} response.ErrorResponse "Invalid request format"
// @Failure 401 {object} response.ErrorResponse "Rejected credentials"
// @Failure 502 {object} response.ErrorResponse "Auth service unavailable"
// @Router /api/session/login [post]
func (r *Routers) Login(c echo.Context) error {
	const op = "http.routers.Login"

	log := r.log.With(
		slog.String("op", op),
	)

	var req request.LoginRequest

	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, response.ErrInvalidRequestFormat)
	}

	if err := c.Validate(req); err != nil {
		log.Warn("invalid format request", slog.String("email", req.Email))
		return c.JSON(http.StatusBadRequest, response.ErrInvalidRequestFormat.WithDetails(err.Error()))
	}

	user, err := r.SessionService.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return r.authFailure(c, err, http.StatusUnauthorized, response.CodeAuthenticationFailed)
	}

	return c.JSON(http.StatusOK, response.Success(dto.NewUserResponse(user)))
}

// Register godoc
// @Summary Create an account
// @Description Registers a new account. With autoLogin the session is started right away.
// @Tags session
// @Accept json
// @Produce json
// @Param request body dto.UserRegisterInput true "Registration data"
// @Success 201 {object} response.Response "Registered"
// @Failure 400 {object} response.ErrorResponse "Invalid registration data"
// @Failure 409 {object} response.ErrorResponse "User already exists"
// @Failure 502 {object} response.ErrorResponse "Auth service unavailable"
// @Router /api/session/register [post]
func (r *Routers) Register(c echo.Context) error {
	const op = "http.routers.Register"

	log := r.log.With(
		slog.String("op", op),
	)

	var req dto.UserRegisterInput

	if err := c.Bind(&req); err != nil {
		log.Error("failed to bind request", sl.Err(err))
		return c.JSON(http.StatusBadRequest, response.ErrInvalidRequestFormat)
	}

	if err := c.Validate(req); err != nil {
		log.Warn("validation failed", sl.Err(err))
		return c.JSON(http.StatusBadRequest, response.Fail(response.CodeInvalidRegister, err.Error()))
	}

	ctx := c.Request().Context()

	if err := r.SessionService.RegisterNewUser(ctx, req.ToDomain()); err != nil {
		var authErr *authapi.AuthError
		if errors.As(err, &authErr) && authErr.Status == http.StatusConflict {
			log.Warn("user already exists", slog.String("email", req.Email))
			return c.JSON(http.StatusConflict, response.Fail(response.CodeUserAlreadyExists, authErr.Message))
		}
		return r.authFailure(c, err, http.StatusBadRequest, response.CodeInvalidRegister)
	}

	if !req.AutoLogin {
		return c.JSON(http.StatusCreated, response.Message("registered"))
	}

	user, err := r.SessionService.Login(ctx, req.Email, req.Password)
	if err != nil {
		return r.authFailure(c, err, http.StatusUnauthorized, response.CodeAuthenticationFailed)
	}

	log.Info("user registered and signed in", slog.Int64("user_id", user.ID))

	return c.JSON(http.StatusCreated, response.Success(dto.NewUserResponse(user)))
}

// Refresh godoc
// @Summary Refresh the session
// @Description Exchanges the stored refresh token for a new token pair.
// @Tags session
// @Produce json
// @Success 200 {object} response.Response{data=dto.SessionStatus} "Refreshed"
// @Failure 401 {object} response.ErrorResponse "Session expired"
// @Router /api/session/refresh [post]
func (r *Routers) Refresh(c echo.Context) error {
	const op = "http.routers.Refresh"

	ctx := c.Request().Context()

	if _, err := r.SessionService.Refresh(ctx); err != nil {
		r.log.Info("refresh failed", slog.String("op", op), sl.Err(err))
		return c.JSON(http.StatusUnauthorized, response.ErrSessionExpired)
	}

	return c.JSON(http.StatusOK, response.Success(r.status(ctx)))
}

// Logout godoc
// @Summary Sign out
// @Description Ends the session. Always succeeds.
// @Tags session
// @Produce json
// @Success 200 {object} response.Response
// @Router /api/session/logout [post]
func (r *Routers) Logout(c echo.Context) error {
	r.SessionService.Logout(c.Request().Context())

	return c.JSON(http.StatusOK, response.Message("logged out"))
}

// Me godoc
// @Summary Current user
// @Tags session
// @Produce json
// @Success 200 {object} response.Response{data=dto.UserResponse}
// @Failure 401 {object} response.ErrorResponse
// @Router /api/session/me [get]
func (r *Routers) Me(c echo.Context) error {
	user, err := r.SessionService.CurrentUser(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusUnauthorized, response.ErrUnauthorized)
	}

	return c.JSON(http.StatusOK, response.Success(dto.NewUserResponse(user)))
}

// Reload godoc
// @Summary Reload the current user
// @Description Fetches the identity from the auth service, e.g. after the profile was completed.
// @Tags session
// @Produce json
// @Success 200 {object} response.Response{data=dto.UserResponse}
// @Failure 401 {object} response.ErrorResponse
// @Router /api/session/reload [post]
func (r *Routers) Reload(c echo.Context) error {
	user, err := r.SessionService.ReloadUser(c.Request().Context())
	if err != nil {
		return r.authFailure(c, err, http.StatusUnauthorized, response.CodeUnauthorized)
	}

	return c.JSON(http.StatusOK, response.Success(dto.NewUserResponse(user)))
}

// Status godoc
// @Summary Session status
// @Tags session
// @Produce json
// @Success 200 {object} response.Response{data=dto.SessionStatus}
// @Router /api/session/status [get]
func (r *Routers) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, response.Success(r.status(c.Request().Context())))
}

// OAuthStart godoc
// @Summary Start an OAuth login
// @Description Remembers where to go after the login and redirects to the provider.
// @Tags oauth
// @Param provider path string true "OAuth provider" example(google)
// @Param redirect query string false "Local path to open after the login"
// @Success 302
// @Router /oauth2/start/{provider} [get]
func (r *Routers) OAuthStart(c echo.Context) error {
	const op = "http.routers.OAuthStart"

	log := r.log.With(
		slog.String("op", op),
		slog.String("provider", c.Param("provider")),
	)

	if redirect := c.QueryParam("redirect"); isLocalPath(redirect) {
		sess, err := session.Get(oauthSessionName, c)
		if err != nil {
			log.Warn("failed to open oauth session", sl.Err(err))
		} else {
			sess.Options = oauthCookieOptions()
			sess.Values[oauthRedirectKey] = redirect
			if err := sess.Save(c.Request(), c.Response()); err != nil {
				log.Warn("failed to save oauth redirect", sl.Err(err))
			}
		}
	}

	origin := c.Scheme() + "://" + c.Request().Host

	target, err := r.SessionService.StartOAuth(c.Request().Context(), origin, c.Param("provider"))
	if err != nil {
		log.Warn("failed to start oauth", sl.Err(err))
		return c.Redirect(http.StatusFound, r.loginWithError("oauth_failed", "unknown_provider"))
	}

	return c.Redirect(http.StatusFound, target)
}

// OAuthCallback godoc
// @Summary OAuth callback
// @Description Receives the tokens issued after an OAuth login and opens the remembered view.
// @Tags oauth
// @Param access_token query string false "Access token"
// @Param refresh_token query string false "Refresh token"
// @Param error query string false "Provider error"
// @Param error_description query string false "Provider error description"
// @Success 302
// @Router /oauth-callback [get]
func (r *Routers) OAuthCallback(c echo.Context) error {
	const op = "http.routers.OAuthCallback"

	log := r.log.With(
		slog.String("op", op),
	)

	if oauthErr := c.QueryParam("error"); oauthErr != "" {
		reason := c.QueryParam("error_description")
		if reason == "" {
			reason = "oauth_error"
		}
		log.Warn("oauth provider returned an error", slog.String("error", oauthErr), slog.String("reason", reason))
		return c.Redirect(http.StatusFound, r.loginWithError(oauthErr, reason))
	}

	accessToken, refreshToken := c.QueryParam("access_token"), c.QueryParam("refresh_token")
	if accessToken == "" || refreshToken == "" {
		log.Warn("oauth callback missing tokens")
		return c.Redirect(http.StatusFound, r.loginWithError("oauth_failed", "missing_tokens"))
	}

	user, err := r.SessionService.CompleteOAuth(c.Request().Context(), accessToken, refreshToken)
	if err != nil {
		return c.Redirect(http.StatusFound, r.loginWithError("oauth_failed", "invalid_tokens"))
	}

	target := r.routes.DefaultAfterAuth
	if sess, err := session.Get(oauthSessionName, c); err == nil {
		if v, ok := sess.Values[oauthRedirectKey].(string); ok && isLocalPath(v) {
			target = v
		}
		delete(sess.Values, oauthRedirectKey)
		sess.Options = oauthCookieOptions()
		sess.Options.MaxAge = -1
		if err := sess.Save(c.Request(), c.Response()); err != nil {
			log.Warn("failed to drop oauth redirect", sl.Err(err))
		}
	}

	log.Info("oauth login completed", slog.Int64("user_id", user.ID), slog.String("redirect", target))

	return c.Redirect(http.StatusFound, target)
}

// View renders the view model of a page route.
func (r *Routers) View(name string) echo.HandlerFunc {
	return func(c echo.Context) error {
		resp := dto.ViewResponse{View: name}

		ctx := c.Request().Context()
		if r.SessionService.IsAuthenticated(ctx) {
			if user, err := r.SessionService.CurrentUser(ctx); err == nil {
				u := dto.NewUserResponse(user)
				resp.User = &u
			}
		}

		return c.JSON(http.StatusOK, resp)
	}
}

func (r *Routers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, response.Message("ok"))
}

func (r *Routers) status(ctx context.Context) dto.SessionStatus {
	return dto.SessionStatus{
		Authenticated: r.SessionService.IsAuthenticated(ctx),
		ExpiresIn:     int64(r.Tokens.ExpiresIn(ctx).Seconds()),
	}
}

// authFailure maps session service errors onto responses. Rejections keep the
// reason given by the auth service.
func (r *Routers) authFailure(c echo.Context, err error, rejectStatus int, rejectCode string) error {
	var (
		authErr   *authapi.AuthError
		netErr    *authapi.NetworkError
		decodeErr *jwt.DecodeError
	)

	switch {
	case errors.As(err, &authErr):
		return c.JSON(rejectStatus, response.Fail(rejectCode, authErr.Message))
	case errors.Is(err, auth.ErrUnauthorized), errors.Is(err, auth.ErrSessionExpired):
		return c.JSON(http.StatusUnauthorized, response.ErrUnauthorized)
	case errors.As(err, &netErr), errors.As(err, &decodeErr), errors.Is(err, authapi.ErrInvalidResponse):
		r.log.Error("auth service failure", sl.Err(err))
		return c.JSON(http.StatusBadGateway, response.ErrAuthUnavailable)
	default:
		r.log.Error("unexpected session failure", sl.Err(err))
		return c.JSON(http.StatusInternalServerError, response.ErrInternal)
	}
}

func (r *Routers) loginWithError(code, reason string) string {
	q := url.Values{}
	q.Set("error", code)
	q.Set("reason", reason)
	return r.routes.Login + "?" + q.Encode()
}

func oauthCookieOptions() *sessions.Options {
	return &sessions.Options{
		Path:     "/",
		MaxAge:   int(oauthCookieTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// isLocalPath accepts only paths on this host, so the stored redirect cannot
// send the user elsewhere.
func isLocalPath(p string) bool {
	return strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "//") && !strings.HasPrefix(p, "/\\")
}
