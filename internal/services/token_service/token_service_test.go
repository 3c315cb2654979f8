package tokenservice

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"
	"time"

	"gymweb/internal/domain/models"
	"gymweb/internal/lib/jwt"
	"gymweb/internal/lib/logger/handlers/slogdiscard"
	"gymweb/internal/storage"
	"gymweb/internal/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	testNow  = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	testKey  = []byte("test")
	testUser = models.User{
		ID:               42,
		Email:            "test@example.com",
		Name:             "Test User",
		Role:             models.RoleAdmin,
		ProfileCompleted: true,
	}
	testCtx = context.Background()
)

type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockStorage) SetMany(ctx context.Context, values map[string]string) error {
	args := m.Called(ctx, values)
	return args.Error(0)
}

func (m *MockStorage) Delete(ctx context.Context, keys ...string) error {
	args := m.Called(ctx, keys)
	return args.Error(0)
}

func accessToken(t *testing.T, issuedAt time.Time, ttl time.Duration) string {
	t.Helper()
	token, err := jwt.NewToken(testUser, issuedAt, ttl, testKey)
	require.NoError(t, err)
	return token
}

func refreshToken(t *testing.T, issuedAt time.Time, ttl time.Duration) string {
	t.Helper()
	token, err := jwt.NewRefreshToken(testUser, issuedAt, ttl, testKey)
	require.NoError(t, err)
	return token
}

func newService(t *testing.T) (*TokenService, *memory.Storage) {
	t.Helper()
	store, err := memory.New("")
	require.NoError(t, err)
	svc := NewTokenService(slogdiscard.NewDiscardLogger(), store, WithClock(func() time.Time { return testNow }))
	return svc, store
}

func TestSetAccessToken_StoresTokenAndDerivedFields(t *testing.T) {
	svc, store := newService(t)
	token := accessToken(t, testNow, 15*time.Minute)

	require.NoError(t, svc.SetAccessToken(testCtx, token))

	got, ok := svc.AccessToken(testCtx)
	require.True(t, ok)
	assert.Equal(t, token, got)

	expected := map[string]string{
		KeyUserID:           "42",
		KeyUserName:         "Test User",
		KeyUserEmail:        "test@example.com",
		KeyUserRole:         "ADMIN",
		KeyProfileCompleted: "true",
	}
	for k, v := range expected {
		stored, err := store.Get(testCtx, k)
		require.NoError(t, err, k)
		assert.Equal(t, v, stored, k)
	}

	claims, ok := svc.Claims(testCtx)
	require.True(t, ok)
	assert.Equal(t, models.RoleAdmin, claims.Role)
	assert.True(t, claims.ProfileCompleted)
}

func TestAccessToken_ExpiredIsEvictedIdempotently(t *testing.T) {
	svc, store := newService(t)
	token := accessToken(t, testNow.Add(-time.Hour), time.Hour-time.Second)

	require.NoError(t, svc.SetAccessToken(testCtx, token))

	for i := 0; i < 3; i++ {
		got, ok := svc.AccessToken(testCtx)
		assert.False(t, ok)
		assert.Empty(t, got)
	}

	for _, k := range accessKeys {
		_, err := store.Get(testCtx, k)
		assert.ErrorIs(t, err, storage.ErrKeyNotFound, k)
	}
}

func TestAccessToken_ExpiryBoundary(t *testing.T) {
	svc, _ := newService(t)

	// exp == now is already expired.
	require.NoError(t, svc.SetAccessToken(testCtx, accessToken(t, testNow.Add(-time.Minute), time.Minute)))
	_, ok := svc.AccessToken(testCtx)
	assert.False(t, ok)
}

func TestSetAccessToken_MalformedTokens(t *testing.T) {
	payloadOnly := func(json string) string {
		return "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9." +
			base64.RawURLEncoding.EncodeToString([]byte(json)) + ".sig"
	}

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "no segments", token: "not-a-token"},
		{name: "bad base64", token: "a.!!!.c"},
		{name: "payload not json", token: payloadOnly("plain text")},
		{name: "missing exp", token: payloadOnly(`{"userId":1,"email":"a@b.c","role":"USER","iat":1}`)},
		{name: "missing userId", token: payloadOnly(`{"email":"a@b.c","role":"USER","iat":1,"exp":2}`)},
		{name: "unknown role", token: payloadOnly(`{"userId":1,"email":"a@b.c","role":"ROOT","iat":1,"exp":2}`)},
		{name: "refresh token as access", token: payloadOnly(`{"userId":1,"email":"a@b.c","role":"USER","type":"REFRESH","iat":1,"exp":2}`)},
		{name: "userId wrong type", token: payloadOnly(`{"userId":"1","email":"a@b.c","role":"USER","iat":1,"exp":2}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newService(t)

			err := svc.SetAccessToken(testCtx, tt.token)
			var decodeErr *jwt.DecodeError
			require.ErrorAs(t, err, &decodeErr)

			_, err = store.Get(testCtx, KeyAccessToken)
			assert.ErrorIs(t, err, storage.ErrKeyNotFound)

			// Garbage written by someone else reads as absent.
			require.NoError(t, store.SetMany(testCtx, map[string]string{KeyAccessToken: tt.token + "x"}))
			assert.NotPanics(t, func() {
				_, ok := svc.AccessToken(testCtx)
				assert.False(t, ok)
				_, ok = svc.Claims(testCtx)
				assert.False(t, ok)
			})
		})
	}
}

func TestRefreshToken_ExpiredClearsWholeSession(t *testing.T) {
	svc, store := newService(t)

	require.NoError(t, svc.SetTokens(testCtx, models.TokenPair{
		AccessToken:  accessToken(t, testNow, 15*time.Minute),
		RefreshToken: refreshToken(t, testNow.Add(-48*time.Hour), 24*time.Hour),
	}))

	_, ok := svc.RefreshToken(testCtx)
	assert.False(t, ok)

	for _, k := range sessionKeys {
		_, err := store.Get(testCtx, k)
		assert.ErrorIs(t, err, storage.ErrKeyNotFound, k)
	}
}

func TestRefreshToken_Valid(t *testing.T) {
	svc, _ := newService(t)
	token := refreshToken(t, testNow, 24*time.Hour)

	require.NoError(t, svc.SetRefreshToken(testCtx, token))

	got, ok := svc.RefreshToken(testCtx)
	assert.True(t, ok)
	assert.Equal(t, token, got)
}

func TestClear_RemovesEverythingAndNotifies(t *testing.T) {
	svc, store := newService(t)

	require.NoError(t, svc.SetTokens(testCtx, models.TokenPair{
		AccessToken:  accessToken(t, testNow, 15*time.Minute),
		RefreshToken: refreshToken(t, testNow, 24*time.Hour),
	}))

	var events []Event
	cancel := svc.Subscribe(func(e Event) { events = append(events, e) })
	defer cancel()

	require.NoError(t, svc.Clear(testCtx))
	require.NoError(t, svc.Clear(testCtx))

	for _, k := range sessionKeys {
		_, err := store.Get(testCtx, k)
		assert.ErrorIs(t, err, storage.ErrKeyNotFound, k)
	}
	require.Len(t, events, 2)
	assert.ElementsMatch(t, sessionKeys, events[0].Keys)
	assert.False(t, events[0].External)
}

func TestIsExpired_And_IsExpiringWithin(t *testing.T) {
	svc, _ := newService(t)

	assert.True(t, svc.IsExpired(testCtx), "no token fails open")
	assert.True(t, svc.IsExpiringWithin(testCtx, time.Minute), "no token fails open")
	assert.Zero(t, svc.ExpiresIn(testCtx))

	require.NoError(t, svc.SetAccessToken(testCtx, accessToken(t, testNow, 10*time.Minute)))

	assert.False(t, svc.IsExpired(testCtx))
	assert.False(t, svc.IsExpiringWithin(testCtx, 5*time.Minute))
	assert.True(t, svc.IsExpiringWithin(testCtx, 15*time.Minute))
	assert.Equal(t, 10*time.Minute, svc.ExpiresIn(testCtx))
}

func TestNilStorage_IsNoOp(t *testing.T) {
	svc := NewTokenService(slogdiscard.NewDiscardLogger(), nil)

	assert.NotPanics(t, func() {
		require.NoError(t, svc.SetAccessToken(testCtx, accessToken(t, time.Now(), time.Hour)))
		require.NoError(t, svc.SetRefreshToken(testCtx, refreshToken(t, time.Now(), time.Hour)))
		require.NoError(t, svc.Clear(testCtx))

		_, ok := svc.AccessToken(testCtx)
		assert.False(t, ok)
		_, ok = svc.RefreshToken(testCtx)
		assert.False(t, ok)
		assert.True(t, svc.IsExpired(testCtx))

		svc.Start(testCtx)
		svc.Close()
	})
}

func TestAccessToken_StorageErrorReadsAsAbsent(t *testing.T) {
	store := new(MockStorage)
	svc := NewTokenService(slogdiscard.NewDiscardLogger(), store)

	store.On("Get", testCtx, KeyAccessToken).Return("", storage.ErrUnavailable)

	_, ok := svc.AccessToken(testCtx)

	assert.False(t, ok)
	store.AssertExpectations(t)
	store.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestSetAccessToken_StorageError(t *testing.T) {
	store := new(MockStorage)
	svc := NewTokenService(slogdiscard.NewDiscardLogger(), store)
	expectedErr := errors.New("disk full")

	store.On("SetMany", testCtx, mock.Anything).Return(expectedErr)

	err := svc.SetAccessToken(testCtx, accessToken(t, time.Now(), time.Hour))

	assert.ErrorIs(t, err, expectedErr)
	store.AssertExpectations(t)
}

type watchingStorage struct {
	*memory.Storage
	changes chan []string
}

func (w *watchingStorage) Watch(ctx context.Context, fn func(keys []string)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case keys := <-w.changes:
			fn(keys)
		}
	}
}

func TestStart_ForwardsExternalChanges(t *testing.T) {
	mem, err := memory.New("")
	require.NoError(t, err)
	store := &watchingStorage{Storage: mem, changes: make(chan []string)}
	svc := NewTokenService(slogdiscard.NewDiscardLogger(), store)

	var mu sync.Mutex
	var got []Event
	svc.Subscribe(func(e Event) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
	})

	svc.Start(testCtx)
	store.changes <- []string{KeyAccessToken}
	svc.Close()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.True(t, got[0].External)
	assert.Equal(t, []string{KeyAccessToken}, got[0].Keys)
}

func TestSubscribe_Cancel(t *testing.T) {
	svc, _ := newService(t)

	calls := 0
	cancel := svc.Subscribe(func(Event) { calls++ })
	require.NoError(t, svc.Clear(testCtx))
	cancel()
	require.NoError(t, svc.Clear(testCtx))

	assert.Equal(t, 1, calls)
}
