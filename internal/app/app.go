package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	httpapp "gymweb/internal/app/http"
	"gymweb/internal/clients/authapi"
	"gymweb/internal/config"
	"gymweb/internal/lib/logger/sl"
	"gymweb/internal/services/auth"
	tokenservice "gymweb/internal/services/token_service"
	"gymweb/internal/storage"
	"gymweb/internal/storage/memory"
	redisstore "gymweb/internal/storage/redis"
	httprouters "gymweb/internal/transport/http"
	"gymweb/internal/transport/http/guard"
	"gymweb/internal/transport/http/interceptor"
)

type App struct {
	HTTPServer *httpapp.Server

	log     *slog.Logger
	cfg     *config.Config
	redis   *redisstore.Client
	tokens  *tokenservice.TokenService
	session *auth.Auth
	cancel  context.CancelFunc
	done    chan struct{}
}

// New wires the gateway. Nothing runs until Start.
func New(log *slog.Logger, cfg *config.Config) (*App, error) {
	const op = "app.New"

	a := &App{log: log, cfg: cfg}

	store, err := a.storage()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	api, err := authapi.New(log, cfg.Auth.BaseURL, authapi.Options{Timeout: cfg.Auth.Timeout})
	if err != nil {
		a.closeRedis()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	a.tokens = tokenservice.NewTokenService(log, store)
	a.session = auth.New(log, api, a.tokens, auth.Config{
		IdentityTTL:      cfg.Session.IdentityTTL,
		ValidateCooldown: cfg.Session.ValidateCooldown,
	})

	routers := httprouters.NewRouter(log, a.session, a.tokens, httprouters.Routes{
		Login:            cfg.Routes.Login,
		DefaultAfterAuth: cfg.Routes.DefaultAfterOAuth,
	})
	guards := guard.New(log, a.session, guard.Routes{
		Login:        cfg.Routes.Login,
		Unauthorized: cfg.Routes.Unauthorized,
		ProfileSetup: cfg.Routes.ProfileSetup,
		Dashboard:    cfg.Routes.Dashboard,
	}, guard.Options{ValidateOnNavigate: cfg.Session.ValidateOnNavigate})
	transport := interceptor.New(log, nil, a.session, interceptor.ContextNavigator{}, interceptor.Config{
		LoginPath:         cfg.Routes.Login,
		OAuthCallbackPath: cfg.Routes.OAuthCallback,
	})

	a.HTTPServer = httpapp.New(log, httpapp.Config{
		Host:         cfg.HTTP.Host,
		Port:         cfg.HTTP.Port,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		CookieSecret: cfg.HTTP.CookieSecret,
		Upstreams: []httpapp.Upstream{
			{Prefix: "/api/users", URL: cfg.Upstreams.UserService},
			{Prefix: "/api/plans", URL: cfg.Upstreams.PlanService},
		},
	}, routers, guards, transport)

	if err := a.HTTPServer.BuildRouters(); err != nil {
		a.closeRedis()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return a, nil
}

func (a *App) storage() (storage.Storage, error) {
	switch a.cfg.Storage.Driver {
	case config.StorageRedis:
		a.redis = redisstore.NewClient(redisstore.Options{
			Addr:        a.cfg.Redis.RedisAddr,
			Password:    a.cfg.Redis.RedisPassword,
			DB:          a.cfg.Redis.RedisDB,
			DialTimeout: a.cfg.Redis.DialTimeout,
			PoolSize:    a.cfg.Redis.PoolSize,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.redis.HealthCheck(ctx); err != nil {
			a.closeRedis()
			return nil, fmt.Errorf("redis is not reachable: %w", err)
		}

		return redisstore.NewStore(a.log, a.redis, a.cfg.Storage.Namespace), nil
	default:
		store, err := memory.New(a.cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
}

// Start begins watching the shared session and renewing it ahead of expiry.
// The HTTP server is started separately.
func (a *App) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)
	a.done = make(chan struct{})

	a.tokens.Start(ctx)

	go func() {
		defer close(a.done)
		a.session.KeepAlive(ctx, a.cfg.Session.RefreshThreshold, a.cfg.Session.RefreshInterval)
	}()
}

// Stop shuts the components down in reverse order of Start.
func (a *App) Stop() {
	const op = "app.Stop"

	if err := a.HTTPServer.Stop(); err != nil {
		a.log.Error("http server stop failed", slog.String("op", op), sl.Err(err))
	}

	if a.cancel != nil {
		a.cancel()
		<-a.done
	}

	a.session.Close()
	a.tokens.Close()
	a.closeRedis()
}

func (a *App) closeRedis() {
	if a.redis == nil {
		return
	}
	if err := a.redis.Close(); err != nil {
		a.log.Error("redis close failed", sl.Err(err))
	}
	a.redis = nil
}
