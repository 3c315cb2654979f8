package guard

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"gymweb/internal/domain/models"
	"gymweb/internal/lib/logger/sl"
	"gymweb/internal/metrics"

	"github.com/labstack/echo/v4"
)

// Decision is the outcome of a guard. A denied navigation carries the view
// the user is sent to instead.
type Decision struct {
	Allow    bool
	Redirect string
}

func Allow() Decision {
	return Decision{Allow: true}
}

func Deny(redirect string) Decision {
	return Decision{Redirect: redirect}
}

// Guard inspects the session for a navigation to target. Guards never fail;
// every problem becomes a deny.
type Guard func(ctx context.Context, target string) Decision

type Session interface {
	HasValidAccessToken(ctx context.Context) bool
	HasValidRefreshToken(ctx context.Context) bool
	IsAuthenticated(ctx context.Context) bool
	Refresh(ctx context.Context) (models.TokenPair, error)
	Validate(ctx context.Context) error
	CurrentUser(ctx context.Context) (models.User, error)
}

type Routes struct {
	Login        string
	Unauthorized string
	ProfileSetup string
	Dashboard    string
}

type Options struct {
	// ValidateOnNavigate asks the auth service to confirm the access token
	// (subject to the validate cooldown) before allowing protected views.
	ValidateOnNavigate bool
}

type Guards struct {
	log     *slog.Logger
	session Session
	routes  Routes
	opts    Options
}

func New(log *slog.Logger, session Session, routes Routes, opts Options) *Guards {
	if routes.Login == "" {
		routes.Login = "/login"
	}
	if routes.Unauthorized == "" {
		routes.Unauthorized = "/unauthorized"
	}
	if routes.ProfileSetup == "" {
		routes.ProfileSetup = "/profile-setup"
	}
	if routes.Dashboard == "" {
		routes.Dashboard = "/dashboard"
	}

	return &Guards{log: log, session: session, routes: routes, opts: opts}
}

// Authenticated allows navigation with a valid access token. With only a
// valid refresh token it refreshes first and allows on success.
func (g *Guards) Authenticated() Guard {
	const op = "guard.Authenticated"

	return observed("authenticated", func(ctx context.Context, target string) Decision {
		if g.session.HasValidAccessToken(ctx) {
			if !g.opts.ValidateOnNavigate {
				return Allow()
			}
			if err := g.session.Validate(ctx); err != nil {
				g.log.Info("access token no longer accepted", slog.String("op", op), sl.Err(err))
				return g.toLogin(target)
			}
			return Allow()
		}

		if g.session.HasValidRefreshToken(ctx) {
			_, err := g.session.Refresh(ctx)
			if err == nil {
				return Allow()
			}
			g.log.Info("session could not be refreshed", slog.String("op", op), sl.Err(err))
		}

		return g.toLogin(target)
	})
}

// Role allows authenticated users holding required.
func (g *Guards) Role(required models.Role) Guard {
	authenticated := g.Authenticated()

	return observed("role", func(ctx context.Context, target string) Decision {
		if d := authenticated(ctx, target); !d.Allow {
			return d
		}

		user, err := g.session.CurrentUser(ctx)
		if err != nil {
			return g.toLogin(target)
		}
		if user.Role != required {
			return Deny(g.routes.Unauthorized)
		}

		return Allow()
	})
}

// ProfileCompleted allows authenticated users and sends those who have not
// finished their profile to the profile setup view.
func (g *Guards) ProfileCompleted() Guard {
	authenticated := g.Authenticated()

	return observed("profile_completed", func(ctx context.Context, target string) Decision {
		if d := authenticated(ctx, target); !d.Allow {
			return d
		}

		user, err := g.session.CurrentUser(ctx)
		if err != nil {
			return g.toLogin(target)
		}
		if !user.ProfileCompleted {
			return Deny(g.routes.ProfileSetup)
		}

		return Allow()
	})
}

// Guest keeps signed in users off the login and registration views.
func (g *Guards) Guest() Guard {
	return observed("guest", func(ctx context.Context, _ string) Decision {
		if g.session.IsAuthenticated(ctx) {
			return Deny(g.routes.Dashboard)
		}
		return Allow()
	})
}

func (g *Guards) toLogin(target string) Decision {
	if target == "" {
		return Deny(g.routes.Login)
	}
	return Deny(g.routes.Login + "?returnUrl=" + url.QueryEscape(target))
}

// Chain runs guards in order and returns the first deny.
func Chain(guards ...Guard) Guard {
	return func(ctx context.Context, target string) Decision {
		for _, guard := range guards {
			if d := guard(ctx, target); !d.Allow {
				return d
			}
		}
		return Allow()
	}
}

// Middleware turns a deny into a 302 redirect.
func Middleware(guard Guard) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			d := guard(c.Request().Context(), c.Request().URL.RequestURI())
			if !d.Allow {
				return c.Redirect(http.StatusFound, d.Redirect)
			}
			return next(c)
		}
	}
}

func observed(name string, guard Guard) Guard {
	return func(ctx context.Context, target string) Decision {
		d := guard(ctx, target)

		decision := "allow"
		if !d.Allow {
			decision = "deny"
		}
		metrics.GuardDecisions.WithLabelValues(name, decision).Inc()

		return d
	}
}
