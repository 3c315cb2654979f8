package tokenservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"gymweb/internal/domain/models"
	"gymweb/internal/lib/jwt"
	"gymweb/internal/lib/logger/sl"
	"gymweb/internal/storage"
)

const (
	KeyAccessToken      = "access_token"
	KeyRefreshToken     = "refresh_token"
	KeyUserID           = "user_id"
	KeyUserName         = "user_name"
	KeyUserEmail        = "user_email"
	KeyUserRole         = "user_role"
	KeyProfileCompleted = "profile_completed"
)

const watchRetryDelay = time.Second

var (
	accessKeys  = []string{KeyAccessToken, KeyUserID, KeyUserName, KeyUserEmail, KeyUserRole, KeyProfileCompleted}
	sessionKeys = append([]string{KeyRefreshToken}, accessKeys...)
)

// Event describes a change of persisted session keys. External is set when
// the change was made by another process sharing the storage.
type Event struct {
	Keys     []string
	External bool
}

type Option func(*TokenService)

func WithClock(now func() time.Time) Option {
	return func(s *TokenService) {
		s.now = now
	}
}

// TokenService owns the persisted access and refresh tokens. A nil storage
// turns every operation into a no-op.
type TokenService struct {
	log   *slog.Logger
	store storage.Storage
	now   func() time.Time

	mu      sync.RWMutex
	subs    map[int]func(Event)
	nextSub int

	cancel context.CancelFunc
	done   chan struct{}
}

func NewTokenService(log *slog.Logger, store storage.Storage, opts ...Option) *TokenService {
	s := &TokenService{
		log:   log,
		store: store,
		now:   time.Now,
		subs:  make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TokenService) SetAccessToken(ctx context.Context, token string) error {
	const op = "token_service.SetAccessToken"

	claims, err := jwt.DecodeAccess(token)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if s.store == nil {
		return nil
	}

	values := accessValues(token, claims)
	if err := s.store.SetMany(ctx, values); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.notify(Event{Keys: keysOf(values)})

	return nil
}

func (s *TokenService) SetRefreshToken(ctx context.Context, token string) error {
	const op = "token_service.SetRefreshToken"

	if _, err := jwt.DecodeExpiry(token); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if s.store == nil {
		return nil
	}

	if err := s.store.SetMany(ctx, map[string]string{KeyRefreshToken: token}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.notify(Event{Keys: []string{KeyRefreshToken}})

	return nil
}

// SetTokens stores both tokens in a single write.
func (s *TokenService) SetTokens(ctx context.Context, pair models.TokenPair) error {
	const op = "token_service.SetTokens"

	claims, err := jwt.DecodeAccess(pair.AccessToken)
	if err != nil {
		return fmt.Errorf("%s: access: %w", op, err)
	}
	if _, err := jwt.DecodeExpiry(pair.RefreshToken); err != nil {
		return fmt.Errorf("%s: refresh: %w", op, err)
	}
	if s.store == nil {
		return nil
	}

	values := accessValues(pair.AccessToken, claims)
	values[KeyRefreshToken] = pair.RefreshToken

	if err := s.store.SetMany(ctx, values); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.notify(Event{Keys: keysOf(values)})

	return nil
}

// AccessToken returns the stored access token while it is decodable and
// unexpired. Anything else is evicted and reported as absent.
func (s *TokenService) AccessToken(ctx context.Context) (string, bool) {
	token, _, ok := s.validAccess(ctx)
	return token, ok
}

// Claims returns the decoded claims of the current valid access token.
func (s *TokenService) Claims(ctx context.Context) (models.Claims, bool) {
	_, claims, ok := s.validAccess(ctx)
	return claims, ok
}

func (s *TokenService) validAccess(ctx context.Context) (string, models.Claims, bool) {
	const op = "token_service.validAccess"

	token, ok := s.read(ctx, KeyAccessToken)
	if !ok {
		return "", models.Claims{}, false
	}

	claims, err := jwt.DecodeAccess(token)
	if err != nil {
		s.log.Warn("evicting undecodable access token", slog.String("op", op), sl.Err(err))
		s.evict(ctx, accessKeys)
		return "", models.Claims{}, false
	}
	if claims.ExpiredAt(s.now()) {
		s.log.Debug("evicting expired access token", slog.String("op", op))
		s.evict(ctx, accessKeys)
		return "", models.Claims{}, false
	}

	return token, claims, true
}

// RefreshToken returns the stored refresh token while it is unexpired. A dead
// refresh token means the session cannot recover, so everything is cleared.
func (s *TokenService) RefreshToken(ctx context.Context) (string, bool) {
	const op = "token_service.RefreshToken"

	token, ok := s.read(ctx, KeyRefreshToken)
	if !ok {
		return "", false
	}

	exp, err := jwt.DecodeExpiry(token)
	if err != nil || !s.now().Before(exp) {
		s.log.Info("refresh token unusable, clearing session", slog.String("op", op))
		s.evict(ctx, sessionKeys)
		return "", false
	}

	return token, true
}

// Clear removes every persisted session key in one operation.
func (s *TokenService) Clear(ctx context.Context) error {
	const op = "token_service.Clear"

	if s.store == nil {
		return nil
	}
	if err := s.store.Delete(ctx, sessionKeys...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.notify(Event{Keys: append([]string(nil), sessionKeys...)})

	return nil
}

// IsExpired reports true when there is no access token or no readable expiry.
func (s *TokenService) IsExpired(ctx context.Context) bool {
	exp, ok := s.accessExpiry(ctx)
	if !ok {
		return true
	}
	return !s.now().Before(exp)
}

// IsExpiringWithin reports whether the access token expires within d.
func (s *TokenService) IsExpiringWithin(ctx context.Context, d time.Duration) bool {
	exp, ok := s.accessExpiry(ctx)
	if !ok {
		return true
	}
	return exp.Sub(s.now()) <= d
}

// ExpiresIn returns the remaining lifetime of the access token, zero when absent.
func (s *TokenService) ExpiresIn(ctx context.Context) time.Duration {
	exp, ok := s.accessExpiry(ctx)
	if !ok {
		return 0
	}
	if left := exp.Sub(s.now()); left > 0 {
		return left
	}
	return 0
}

func (s *TokenService) accessExpiry(ctx context.Context) (time.Time, bool) {
	token, ok := s.read(ctx, KeyAccessToken)
	if !ok {
		return time.Time{}, false
	}
	exp, err := jwt.DecodeExpiry(token)
	if err != nil {
		return time.Time{}, false
	}
	return exp, true
}

// Subscribe registers fn for every change of session keys. The returned
// function removes the subscription.
func (s *TokenService) Subscribe(fn func(Event)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Start begins forwarding changes made by other processes to subscribers
// when the storage supports it.
func (s *TokenService) Start(ctx context.Context) {
	const op = "token_service.Start"

	watcher, ok := s.store.(storage.Watcher)
	if !ok {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)

		for {
			err := watcher.Watch(ctx, func(keys []string) {
				s.notify(Event{Keys: keys, External: true})
			})
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				s.log.Error("session watch failed", slog.String("op", op), sl.Err(err))
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(watchRetryDelay):
			}
		}
	}()
}

// Close stops the watch loop started by Start.
func (s *TokenService) Close() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

func (s *TokenService) read(ctx context.Context, key string) (string, bool) {
	const op = "token_service.read"

	if s.store == nil {
		return "", false
	}

	v, err := s.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, storage.ErrKeyNotFound) {
			s.log.Warn("session storage read failed", slog.String("op", op), slog.String("key", key), sl.Err(err))
		}
		return "", false
	}
	if v == "" {
		return "", false
	}

	return v, true
}

func (s *TokenService) evict(ctx context.Context, keys []string) {
	const op = "token_service.evict"

	if err := s.store.Delete(ctx, keys...); err != nil {
		s.log.Warn("session eviction failed", slog.String("op", op), sl.Err(err))
		return
	}

	s.notify(Event{Keys: append([]string(nil), keys...)})
}

func (s *TokenService) notify(e Event) {
	s.mu.RLock()
	fns := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(e)
	}
}

func accessValues(token string, c models.Claims) map[string]string {
	return map[string]string{
		KeyAccessToken:      token,
		KeyUserID:           strconv.FormatInt(c.UserID, 10),
		KeyUserName:         c.Name,
		KeyUserEmail:        c.Email,
		KeyUserRole:         string(c.Role),
		KeyProfileCompleted: strconv.FormatBool(c.ProfileCompleted),
	}
}

func keysOf(values map[string]string) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	return keys
}
