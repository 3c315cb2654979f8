package httpapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"gymweb/internal/domain/models"
	gymmiddleware "gymweb/internal/middleware"
	httprouters "gymweb/internal/transport/http"
	"gymweb/internal/transport/http/guard"
	"gymweb/internal/transport/http/interceptor"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	echoSwagger "github.com/swaggo/echo-swagger"
)

// HeaderAuthRedirect tells the web client where to navigate after a proxied
// call ended the session.
const HeaderAuthRedirect = "X-Auth-Redirect"

// HeaderCurrentView lets the web client name the view it is on. The Referer
// path is used when it is absent.
const HeaderCurrentView = "X-Current-View"

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// Upstream is a backend service reached through the gateway under Prefix.
type Upstream struct {
	Prefix string
	URL    string
}

type Config struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CookieSecret string
	Upstreams    []Upstream
}

type Server struct {
	log       *slog.Logger
	e         *echo.Echo
	routers   *httprouters.Routers
	guards    *guard.Guards
	transport http.RoundTripper
	cfg       Config
}

func New(log *slog.Logger, cfg Config, routers *httprouters.Routers, guards *guard.Guards, transport http.RoundTripper) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.ReadTimeout
	e.Server.WriteTimeout = cfg.WriteTimeout

	validate := validator.New()
	e.Validator = &CustomValidator{validator: validate}

	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(session.Middleware(sessions.NewCookieStore([]byte(cfg.CookieSecret))))
	e.Use(gymmiddleware.PrometheusMetrics)

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogMethod:   true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info("request",
				slog.String("method", v.Method),
				slog.String("URI", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("remote ip", v.RemoteIP),
			)

			return nil
		},
	}))

	return &Server{
		log:       log,
		e:         e,
		routers:   routers,
		guards:    guards,
		transport: transport,
		cfg:       cfg,
	}
}

// Echo exposes the underlying router, mostly for tests.
func (s *Server) Echo() *echo.Echo {
	return s.e
}

func (s *Server) MustRun() {
	const op = "http.Server.MustRun"

	s.log.Info("starting http server", slog.String("op", op), slog.String("addr", s.addr()))

	if err := s.Start(); err != nil {
		panic(err)
	}
}

func (s *Server) Start() error {
	const op = "http.Server.Start"

	if err := s.e.Start(s.addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s server stopped: %w", op, err)
	}

	return nil
}

func (s *Server) Stop() error {
	const op = "http.Server.Stop"

	optCtx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	s.log.Info("stopping http server", slog.String("op", op))

	if err := s.e.Shutdown(optCtx); err != nil {
		return fmt.Errorf("%s could not shutdown server gracefuly: %w", op, err)
	}

	return nil
}

func (s *Server) addr() string {
	return net.JoinHostPort(s.cfg.Host, s.cfg.Port)
}

func (s *Server) BuildRouters() error {
	authenticated := guard.Middleware(s.guards.Authenticated())
	profileCompleted := guard.Middleware(s.guards.ProfileCompleted())
	admin := guard.Middleware(s.guards.Role(models.RoleAdmin))
	guest := guard.Middleware(s.guards.Guest())

	s.e.GET("/healthz", s.routers.Health)
	s.e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	s.e.GET("/swagger/*", echoSwagger.WrapHandler)

	api := s.e.Group("/api/session")
	{
		api.POST("/login", s.routers.Login)
		api.POST("/register", s.routers.Register)
		api.POST("/refresh", s.routers.Refresh)
		api.POST("/logout", s.routers.Logout)
		api.GET("/status", s.routers.Status)
		api.GET("/me", s.routers.Me, authenticated)
		api.POST("/reload", s.routers.Reload, authenticated)
	}

	s.e.GET("/oauth2/start/:provider", s.routers.OAuthStart, guest)
	s.e.GET("/oauth-callback", s.routers.OAuthCallback)

	views := []struct {
		path string
		name string
		mw   []echo.MiddlewareFunc
	}{
		{"/login", "login", []echo.MiddlewareFunc{guest}},
		{"/register", "register", []echo.MiddlewareFunc{guest}},
		{"/dashboard", "dashboard", []echo.MiddlewareFunc{profileCompleted}},
		{"/plan-dashboard", "plan-dashboard", []echo.MiddlewareFunc{profileCompleted}},
		{"/progress", "progress", []echo.MiddlewareFunc{profileCompleted}},
		{"/profile-setup", "profile-setup", []echo.MiddlewareFunc{authenticated}},
		{"/admin", "admin", []echo.MiddlewareFunc{admin}},
		{"/user-management", "user-management", []echo.MiddlewareFunc{admin}},
		{"/unauthorized", "unauthorized", nil},
	}
	for _, v := range views {
		s.e.GET(v.path, s.routers.View(v.name), v.mw...)
	}

	for _, up := range s.cfg.Upstreams {
		if err := s.proxy(up); err != nil {
			return err
		}
	}

	return nil
}

// proxy forwards everything under up.Prefix to the upstream service through
// the session transport.
func (s *Server) proxy(up Upstream) error {
	const op = "http.Server.proxy"

	target, err := url.Parse(up.URL)
	if err != nil || target.Scheme == "" || target.Host == "" {
		return fmt.Errorf("%s: invalid upstream url %q for %s", op, up.URL, up.Prefix)
	}

	g := s.e.Group(up.Prefix, navigationContext)
	g.Use(middleware.ProxyWithConfig(middleware.ProxyConfig{
		Balancer: middleware.NewRoundRobinBalancer([]*middleware.ProxyTarget{
			{Name: up.Prefix, URL: target},
		}),
		Transport:      s.transport,
		ModifyResponse: exposeRedirect,
	}))

	s.log.Info("proxy registered", slog.String("op", op), slog.String("prefix", up.Prefix), slog.String("target", target.String()))

	return nil
}

// navigationContext records the view the call was made from and gives the
// interceptor a place to leave its navigation request.
func navigationContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()

		ctx := interceptor.WithLocation(req.Context(), currentView(req))
		ctx, _ = interceptor.WithRedirect(ctx)
		c.SetRequest(req.WithContext(ctx))

		return next(c)
	}
}

func exposeRedirect(resp *http.Response) error {
	if resp.Request == nil {
		return nil
	}
	if r, ok := interceptor.RedirectFrom(resp.Request.Context()); ok {
		if target := r.Target(); target != "" {
			resp.Header.Set(HeaderAuthRedirect, target)
		}
	}
	return nil
}

func currentView(req *http.Request) string {
	if v := req.Header.Get(HeaderCurrentView); v != "" {
		return v
	}
	if ref := req.Referer(); ref != "" {
		if u, err := url.Parse(ref); err == nil {
			return u.Path
		}
	}
	return ""
}
