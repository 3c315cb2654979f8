package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gymweb/internal/domain/models"
	"gymweb/internal/lib/jwt"
	"gymweb/internal/lib/logger/sl"
	"gymweb/internal/metrics"
	tokenservice "gymweb/internal/services/token_service"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

var (
	ErrSessionExpired = errors.New("session expired")
	ErrUnauthorized   = errors.New("not authenticated")
)

const (
	MinValidateCooldown = 30 * time.Second
	DefaultIdentityTTL  = 5 * time.Minute

	refreshKey = "refresh"
)

// API is the remote auth service.
type API interface {
	Login(ctx context.Context, in models.LoginInput) (models.TokenPair, error)
	Register(ctx context.Context, in models.RegisterInput) error
	Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error)
	Validate(ctx context.Context, accessToken string) error
	Logout(ctx context.Context, accessToken string) error
	Me(ctx context.Context, accessToken string) (models.User, error)
	SetFrontendOrigin(ctx context.Context, origin string) error
	AuthorizeURL(provider string) (string, error)
}

type TokenStore interface {
	SetTokens(ctx context.Context, pair models.TokenPair) error
	AccessToken(ctx context.Context) (string, bool)
	Claims(ctx context.Context) (models.Claims, bool)
	RefreshToken(ctx context.Context) (string, bool)
	Clear(ctx context.Context) error
	IsExpiringWithin(ctx context.Context, d time.Duration) bool
	Subscribe(fn func(tokenservice.Event)) func()
}

type Config struct {
	IdentityTTL      time.Duration
	ValidateCooldown time.Duration
}

type Auth struct {
	log    *slog.Logger
	api    API
	tokens TokenStore

	identityTTL time.Duration
	cooldown    time.Duration

	identity  *cache.Cache
	validated *cache.Cache
	flight    singleflight.Group

	unsubscribe func()
}

func New(log *slog.Logger, api API, tokens TokenStore, cfg Config) *Auth {
	identityTTL := cfg.IdentityTTL
	if identityTTL <= 0 {
		identityTTL = DefaultIdentityTTL
	}
	cooldown := cfg.ValidateCooldown
	if cooldown < MinValidateCooldown {
		cooldown = MinValidateCooldown
	}

	a := &Auth{
		log:         log,
		api:         api,
		tokens:      tokens,
		identityTTL: identityTTL,
		cooldown:    cooldown,
		identity:    cache.New(identityTTL, 2*identityTTL),
		validated:   cache.New(cooldown, 2*cooldown),
	}
	a.unsubscribe = tokens.Subscribe(a.onTokensChanged)

	return a
}

// Close detaches the service from the token store.
func (a *Auth) Close() {
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
}

// Any change to the persisted tokens, local or made by another process,
// invalidates what was derived from the previous ones.
func (a *Auth) onTokensChanged(tokenservice.Event) {
	a.identity.Flush()
	a.validated.Flush()
}

func (a *Auth) Login(ctx context.Context, email, password string) (models.User, error) {
	const op = "auth.Login"

	log := a.log.With(
		slog.String("op", op),
		slog.String("email", email),
	)

	log.Info("attempting to login user")

	pair, err := a.api.Login(ctx, models.LoginInput{Email: email, Password: password})
	if err != nil {
		log.Warn("login rejected", sl.Err(err))

		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	user, err := a.establish(ctx, pair)
	if err != nil {
		log.Error("auth service issued unusable tokens", sl.Err(err))

		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user logged in successfully", slog.Int64("user_id", user.ID))

	return user, nil
}

// RegisterNewUser creates the account remotely. It does not start a session;
// callers wanting one log in afterwards.
func (a *Auth) RegisterNewUser(ctx context.Context, in models.RegisterInput) error {
	const op = "auth.RegisterNewUser"

	log := a.log.With(
		slog.String("op", op),
		slog.String("email", in.Email),
	)

	log.Info("register user")

	if err := a.api.Register(ctx, in); err != nil {
		log.Warn("registration rejected", sl.Err(err))

		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user registered")

	return nil
}

// Refresh exchanges the refresh token for a new pair. Concurrent callers share
// one request. Any failure ends the session.
func (a *Auth) Refresh(ctx context.Context) (models.TokenPair, error) {
	const op = "auth.Refresh"

	ch := a.flight.DoChan(refreshKey, func() (any, error) {
		return a.refresh(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, ctx.Err())
	case res := <-ch:
		if res.Shared {
			metrics.RefreshTotal.WithLabelValues("shared").Inc()
		}
		if res.Err != nil {
			return models.TokenPair{}, fmt.Errorf("%s: %w", op, res.Err)
		}
		return res.Val.(models.TokenPair), nil
	}
}

func (a *Auth) refresh(ctx context.Context) (models.TokenPair, error) {
	const op = "auth.refresh"

	log := a.log.With(slog.String("op", op))

	token, ok := a.tokens.RefreshToken(ctx)
	if !ok {
		log.Info("no usable refresh token")
		metrics.RefreshTotal.WithLabelValues("expired").Inc()
		a.ClearLocal(ctx)

		return models.TokenPair{}, ErrSessionExpired
	}

	pair, err := a.api.Refresh(ctx, token)
	if err != nil {
		log.Warn("refresh failed, ending session", sl.Err(err))
		metrics.RefreshTotal.WithLabelValues("expired").Inc()
		a.Logout(ctx)

		return models.TokenPair{}, fmt.Errorf("%w: %w", ErrSessionExpired, err)
	}

	if _, err := a.establish(ctx, pair); err != nil {
		log.Error("refresh returned unusable tokens, ending session", sl.Err(err))
		metrics.RefreshTotal.WithLabelValues("expired").Inc()
		a.Logout(ctx)

		return models.TokenPair{}, fmt.Errorf("%w: %w", ErrSessionExpired, err)
	}

	log.Debug("tokens refreshed")
	metrics.RefreshTotal.WithLabelValues("success").Inc()

	return pair, nil
}

// Validate confirms with the auth service that the access token is still
// accepted. A positive answer is reused for the cooldown window. A negative
// answer, or no answer, ends the local session.
func (a *Auth) Validate(ctx context.Context) error {
	const op = "auth.Validate"

	token, ok := a.tokens.AccessToken(ctx)
	if !ok {
		return fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}

	if _, hit := a.validated.Get(token); hit {
		metrics.ValidateTotal.WithLabelValues("cached").Inc()
		return nil
	}

	_, err, _ := a.flight.Do("validate:"+token, func() (any, error) {
		if err := a.api.Validate(ctx, token); err != nil {
			return nil, err
		}
		a.validated.Set(token, struct{}{}, a.cooldown)
		return nil, nil
	})
	if err != nil {
		a.log.Warn("token rejected by auth service", slog.String("op", op), sl.Err(err))
		metrics.ValidateTotal.WithLabelValues("rejected").Inc()
		a.ClearLocal(ctx)

		return fmt.Errorf("%s: %w", op, err)
	}

	metrics.ValidateTotal.WithLabelValues("remote").Inc()

	return nil
}

// CurrentUser returns the identity bound to the current access token. The
// cache is keyed by that token, so an identity never outlives it. Without a
// usable access token it refreshes first.
func (a *Auth) CurrentUser(ctx context.Context) (models.User, error) {
	const op = "auth.CurrentUser"

	token, ok := a.tokens.AccessToken(ctx)
	if !ok {
		if !a.HasValidRefreshToken(ctx) {
			return models.User{}, fmt.Errorf("%s: %w", op, ErrUnauthorized)
		}
		if _, err := a.Refresh(ctx); err != nil {
			return models.User{}, fmt.Errorf("%s: %w", op, err)
		}
		if token, ok = a.tokens.AccessToken(ctx); !ok {
			return models.User{}, fmt.Errorf("%s: %w", op, ErrUnauthorized)
		}
	}

	if v, hit := a.identity.Get(token); hit {
		return v.(models.User), nil
	}

	claims, err := jwt.DecodeAccess(token)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	user := claims.User()
	a.identity.Set(token, user, a.identityTTL)

	return user, nil
}

// ReloadUser replaces the cached identity with the one held by the auth
// service. Token claims lag behind profile changes until the next refresh.
func (a *Auth) ReloadUser(ctx context.Context) (models.User, error) {
	const op = "auth.ReloadUser"

	token, ok := a.tokens.AccessToken(ctx)
	if !ok {
		return models.User{}, fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}

	user, err := a.api.Me(ctx, token)
	if err != nil {
		a.log.Warn("failed to reload user", slog.String("op", op), sl.Err(err))

		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	a.identity.Set(token, user, a.identityTTL)

	return user, nil
}

// IsAuthenticated reports whether the session is usable now or can be
// recovered with the refresh token.
func (a *Auth) IsAuthenticated(ctx context.Context) bool {
	return a.HasValidAccessToken(ctx) || a.HasValidRefreshToken(ctx)
}

// AccessToken returns the current unexpired access token.
func (a *Auth) AccessToken(ctx context.Context) (string, bool) {
	return a.tokens.AccessToken(ctx)
}

func (a *Auth) HasValidAccessToken(ctx context.Context) bool {
	_, ok := a.tokens.AccessToken(ctx)
	return ok
}

func (a *Auth) HasValidRefreshToken(ctx context.Context) bool {
	_, ok := a.tokens.RefreshToken(ctx)
	return ok
}

// Logout revokes the session remotely when possible and always clears it
// locally. Calling it again has no further effect.
func (a *Auth) Logout(ctx context.Context) {
	const op = "auth.Logout"

	log := a.log.With(slog.String("op", op))

	if token, ok := a.tokens.AccessToken(ctx); ok {
		if err := a.api.Logout(ctx, token); err != nil {
			log.Warn("remote logout failed", sl.Err(err))
		}
	}

	a.ClearLocal(ctx)

	log.Info("user logged out")
}

// ClearLocal drops the session without telling the auth service.
func (a *Auth) ClearLocal(ctx context.Context) {
	const op = "auth.ClearLocal"

	if err := a.tokens.Clear(ctx); err != nil {
		a.log.Error("failed to clear session", slog.String("op", op), sl.Err(err))
	}

	a.identity.Flush()
	a.validated.Flush()
}

// CompleteOAuth stores the tokens handed over by the OAuth callback.
func (a *Auth) CompleteOAuth(ctx context.Context, accessToken, refreshToken string) (models.User, error) {
	const op = "auth.CompleteOAuth"

	user, err := a.establish(ctx, models.TokenPair{AccessToken: accessToken, RefreshToken: refreshToken})
	if err != nil {
		a.log.Warn("oauth callback carried unusable tokens", slog.String("op", op), sl.Err(err))

		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	a.log.Info("oauth login completed", slog.String("op", op), slog.Int64("user_id", user.ID))

	return user, nil
}

// StartOAuth registers origin as the landing place of the OAuth flow and
// returns the provider authorization URL.
func (a *Auth) StartOAuth(ctx context.Context, origin, provider string) (string, error) {
	const op = "auth.StartOAuth"

	target, err := a.api.AuthorizeURL(provider)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if origin != "" {
		if err := a.api.SetFrontendOrigin(ctx, origin); err != nil {
			a.log.Warn("failed to register frontend origin", slog.String("op", op), sl.Err(err))
		}
	}

	return target, nil
}

func (a *Auth) establish(ctx context.Context, pair models.TokenPair) (models.User, error) {
	claims, err := jwt.DecodeAccess(pair.AccessToken)
	if err != nil {
		return models.User{}, err
	}
	if err := a.tokens.SetTokens(ctx, pair); err != nil {
		return models.User{}, err
	}

	user := claims.User()
	a.identity.Set(pair.AccessToken, user, a.identityTTL)

	return user, nil
}
