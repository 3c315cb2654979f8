package auth

import (
	"context"
	"log/slog"
	"time"

	"gymweb/internal/lib/logger/sl"
)

// RefreshIfExpiring refreshes the session when the access token expires
// within threshold and a refresh token is still usable. It reports whether a
// refresh was attempted.
func (a *Auth) RefreshIfExpiring(ctx context.Context, threshold time.Duration) (bool, error) {
	if !a.HasValidRefreshToken(ctx) || !a.tokens.IsExpiringWithin(ctx, threshold) {
		return false, nil
	}

	_, err := a.Refresh(ctx)

	return true, err
}

// KeepAlive runs RefreshIfExpiring every interval until ctx is done.
func (a *Auth) KeepAlive(ctx context.Context, threshold, interval time.Duration) {
	const op = "auth.KeepAlive"

	if interval <= 0 {
		return
	}

	log := a.log.With(slog.String("op", op))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refreshed, err := a.RefreshIfExpiring(ctx, threshold)
			if err != nil {
				log.Info("session ended while renewing", sl.Err(err))
				continue
			}
			if refreshed {
				log.Debug("session renewed ahead of expiry")
			}
		}
	}
}
