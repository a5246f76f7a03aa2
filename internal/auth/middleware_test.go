package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mfontaine/aegis/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockAccountFetcher struct {
	GetByIDFunc func(ctx context.Context, id string) (*models.Account, error)
}

func (m *mockAccountFetcher) GetByID(ctx context.Context, id string) (*models.Account, error) {
	return m.GetByIDFunc(ctx, id)
}

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddleware_MissingHeader(t *testing.T) {
	tm := NewTokenManager(testSecret, 15*time.Minute)
	called := false

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	rec := httptest.NewRecorder()

	Middleware(tm)(okHandler(&called)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)
}

func TestMiddleware_MalformedHeader(t *testing.T) {
	tm := NewTokenManager(testSecret, 15*time.Minute)

	for _, header := range []string{"Basic abc", "Bearer", "token-without-scheme"} {
		called := false
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()

		Middleware(tm)(okHandler(&called)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
		assert.False(t, called)
	}
}

func TestMiddleware_ValidToken(t *testing.T) {
	tm := NewTokenManager(testSecret, 15*time.Minute)

	token, err := tm.GenerateToken(testAccount())
	require.NoError(t, err)

	var claims *models.TokenClaims
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims = ClaimsFromRequest(r)
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	Middleware(tm)(handler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, claims)
	assert.Equal(t, "11111111-1111-1111-1111-111111111111", claims.AccountID)
}

func TestRequireRole_Allowed(t *testing.T) {
	fetcher := &mockAccountFetcher{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Account, error) {
			return &models.Account{ID: id, Role: "admin"}, nil
		},
	}

	called := false
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	ctx := context.WithValue(req.Context(), AccountContextKey, &models.TokenClaims{AccountID: "a-1", Role: "admin"})
	rec := httptest.NewRecorder()

	RequireRole(fetcher, "admin")(okHandler(&called)).ServeHTTP(rec, req.WithContext(ctx))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)
}

func TestRequireRole_WrongRole(t *testing.T) {
	fetcher := &mockAccountFetcher{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Account, error) {
			return &models.Account{ID: id, Role: "user"}, nil
		},
	}

	called := false
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	ctx := context.WithValue(req.Context(), AccountContextKey, &models.TokenClaims{AccountID: "a-1", Role: "user"})
	rec := httptest.NewRecorder()

	RequireRole(fetcher, "admin")(okHandler(&called)).ServeHTTP(rec, req.WithContext(ctx))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, called)
}

func TestRequireRole_AccountGone(t *testing.T) {
	fetcher := &mockAccountFetcher{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Account, error) {
			return nil, models.ErrNotFound
		},
	}

	called := false
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	ctx := context.WithValue(req.Context(), AccountContextKey, &models.TokenClaims{AccountID: "gone"})
	rec := httptest.NewRecorder()

	RequireRole(fetcher, "admin")(okHandler(&called)).ServeHTTP(rec, req.WithContext(ctx))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)
}

func TestRequireRole_NoClaims(t *testing.T) {
	fetcher := &mockAccountFetcher{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Account, error) {
			t.Fatal("should not be called without claims")
			return nil, nil
		},
	}

	called := false
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	rec := httptest.NewRecorder()

	RequireRole(fetcher, "admin")(okHandler(&called)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)
}
