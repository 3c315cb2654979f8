package interceptor

import (
	"context"
	"sync"
)

type locationKey struct{}

type redirectKey struct{}

// WithLocation records the view the user is on while ctx is in use.
func WithLocation(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, locationKey{}, path)
}

func Location(ctx context.Context) string {
	loc, _ := ctx.Value(locationKey{}).(string)
	return loc
}

// Redirect holds the navigation requested while serving one request.
type Redirect struct {
	mu     sync.Mutex
	target string
}

func (r *Redirect) Target() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.target
}

func (r *Redirect) set(target string) {
	r.mu.Lock()
	r.target = target
	r.mu.Unlock()
}

// WithRedirect attaches an empty Redirect to ctx for ContextNavigator to fill.
func WithRedirect(ctx context.Context) (context.Context, *Redirect) {
	r := &Redirect{}
	return context.WithValue(ctx, redirectKey{}, r), r
}

func RedirectFrom(ctx context.Context) (*Redirect, bool) {
	r, ok := ctx.Value(redirectKey{}).(*Redirect)
	return r, ok
}

// ContextNavigator records the target in the Redirect carried by ctx.
type ContextNavigator struct{}

func (ContextNavigator) Navigate(ctx context.Context, target string) {
	if r, ok := RedirectFrom(ctx); ok {
		r.set(target)
	}
}

type NavigatorFunc func(ctx context.Context, target string)

func (f NavigatorFunc) Navigate(ctx context.Context, target string) {
	f(ctx, target)
}
