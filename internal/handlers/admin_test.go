package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mfontaine/aegis/internal/auth"
	"github.com/mfontaine/aegis/internal/models"
	"github.com/mfontaine/aegis/internal/repositories"
	"github.com/mfontaine/aegis/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func adminRouter(h *AdminHandler) chi.Router {
	r := chi.NewRouter()
	r.Get("/admin/attempts", h.ListAttempts)
	r.Get("/admin/attempts/{id}", h.GetAttempt)
	r.Get("/admin/stats", h.Stats)
	r.Get("/admin/locations", h.Locations)
	r.Get("/admin/accounts", h.GetAccountDetail)
	r.Get("/admin/events", h.ListEvents)
	r.Get("/admin/events/{id}", h.GetEvent)
	r.Post("/admin/events/{id}/resolve", h.ResolveEvent)
	r.Post("/admin/accounts/unlock", h.UnlockAccount)
	return r
}

func adminRequest(method, path, body string) *http.Request {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	return r.WithContext(context.WithValue(r.Context(),
		auth.AccountContextKey, &models.TokenClaims{AccountID: "admin-1", Role: "admin"}))
}

func TestAdminHandler_ListAttemptsPassesFilter(t *testing.T) {
	service := &MockAdminService{
		ListAttemptsFunc: func(ctx context.Context, filter repositories.AttemptFilter, limit, offset int) ([]*models.LoginAttempt, error) {
			assert.Equal(t, "user@example.com", filter.Email)
			assert.Equal(t, "critical", filter.RiskLevel)
			assert.Equal(t, "PT", filter.Country)
			assert.Equal(t, 25, limit)
			assert.Equal(t, 50, offset)
			return []*models.LoginAttempt{{ID: "attempt-1"}}, nil
		},
	}
	router := adminRouter(NewAdminHandler(service))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, adminRequest(http.MethodGet, "/admin/attempts?email=user@example.com&risk_level=critical&country=PT&limit=25&offset=50", ""))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "attempt-1")
}

func TestAdminHandler_GetAttemptNotFound(t *testing.T) {
	service := &MockAdminService{
		GetAttemptFunc: func(ctx context.Context, id string) (*models.LoginAttempt, error) {
			return nil, models.ErrNotFound
		},
	}
	router := adminRouter(NewAdminHandler(service))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, adminRequest(http.MethodGet, "/admin/attempts/missing", ""))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminHandler_StatsWindow(t *testing.T) {
	service := &MockAdminService{
		StatsFunc: func(ctx context.Context, since time.Time) (*services.DashboardStats, error) {
			assert.WithinDuration(t, time.Now().Add(-48*time.Hour), since, 5*time.Second)
			return &services.DashboardStats{Since: since}, nil
		},
	}
	router := adminRouter(NewAdminHandler(service))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, adminRequest(http.MethodGet, "/admin/stats?hours=48", ""))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminHandler_StatsRejectsBadWindow(t *testing.T) {
	router := adminRouter(NewAdminHandler(&MockAdminService{}))

	for _, query := range []string{"?hours=0", "?hours=-3", "?hours=abc", "?hours=99999"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, adminRequest(http.MethodGet, "/admin/stats"+query, ""))
		assert.Equal(t, http.StatusBadRequest, w.Code, query)
	}
}

func TestAdminHandler_Locations(t *testing.T) {
	service := &MockAdminService{
		LocationMarkersFunc: func(ctx context.Context, since time.Time, limit int) ([]repositories.LocationMarker, error) {
			assert.WithinDuration(t, time.Now().Add(-6*time.Hour), since, 5*time.Second)
			return []repositories.LocationMarker{
				{Latitude: 38.7223, Longitude: -9.1393, City: "Lisbon", Country: "PT", RiskLevel: "safe"},
			}, nil
		},
	}
	router := adminRouter(NewAdminHandler(service))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, adminRequest(http.MethodGet, "/admin/locations?hours=6", ""))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Lisbon")
}

func TestAdminHandler_LocationsRejectsBadWindow(t *testing.T) {
	router := adminRouter(NewAdminHandler(&MockAdminService{}))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, adminRequest(http.MethodGet, "/admin/locations?hours=abc", ""))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminHandler_GetAccountDetail(t *testing.T) {
	service := &MockAdminService{
		GetAccountDetailFunc: func(ctx context.Context, email string) (*services.AccountDetail, error) {
			assert.Equal(t, "user@example.com", email)
			return &services.AccountDetail{ID: "acc-1", Email: email, TOTPEnabled: true}, nil
		},
	}
	router := adminRouter(NewAdminHandler(service))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, adminRequest(http.MethodGet, "/admin/accounts?email=user@example.com", ""))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "acc-1")
}

func TestAdminHandler_GetAccountDetailRequiresEmail(t *testing.T) {
	router := adminRouter(NewAdminHandler(&MockAdminService{}))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, adminRequest(http.MethodGet, "/admin/accounts", ""))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminHandler_GetAccountDetailUnknown(t *testing.T) {
	service := &MockAdminService{
		GetAccountDetailFunc: func(ctx context.Context, email string) (*services.AccountDetail, error) {
			return nil, models.ErrNotFound
		},
	}
	router := adminRouter(NewAdminHandler(service))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, adminRequest(http.MethodGet, "/admin/accounts?email=ghost@example.com", ""))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminHandler_ListEventsFilter(t *testing.T) {
	service := &MockAdminService{
		ListEventsFunc: func(ctx context.Context, filter repositories.EventFilter, limit, offset int) ([]*models.SuspiciousEvent, error) {
			assert.Equal(t, models.EventTypeBruteForce, filter.Type)
			assert.True(t, filter.Unresolved)
			return nil, nil
		},
	}
	router := adminRouter(NewAdminHandler(service))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, adminRequest(http.MethodGet, "/admin/events?type=brute_force&unresolved=true", ""))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminHandler_ResolveEventUsesActingAdmin(t *testing.T) {
	service := &MockAdminService{
		ResolveEventFunc: func(ctx context.Context, eventID, adminID string) error {
			assert.Equal(t, "event-1", eventID)
			assert.Equal(t, "admin-1", adminID)
			return nil
		},
	}
	router := adminRouter(NewAdminHandler(service))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, adminRequest(http.MethodPost, "/admin/events/event-1/resolve", ""))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminHandler_ResolveEventAlreadyResolved(t *testing.T) {
	service := &MockAdminService{
		ResolveEventFunc: func(ctx context.Context, eventID, adminID string) error {
			return models.ErrNotFound
		},
	}
	router := adminRouter(NewAdminHandler(service))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, adminRequest(http.MethodPost, "/admin/events/event-1/resolve", ""))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminHandler_UnlockAccount(t *testing.T) {
	service := &MockAdminService{
		UnlockAccountFunc: func(ctx context.Context, email, adminID string) error {
			assert.Equal(t, "locked@example.com", email)
			assert.Equal(t, "admin-1", adminID)
			return nil
		},
	}
	router := adminRouter(NewAdminHandler(service))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, adminRequest(http.MethodPost, "/admin/accounts/unlock", `{"email":"locked@example.com"}`))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminHandler_UnlockAccountRequiresValidEmail(t *testing.T) {
	router := adminRouter(NewAdminHandler(&MockAdminService{}))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, adminRequest(http.MethodPost, "/admin/accounts/unlock", `{"email":"not-an-email"}`))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminHandler_UnlockWithoutClaims(t *testing.T) {
	router := adminRouter(NewAdminHandler(&MockAdminService{}))

	r := httptest.NewRequest(http.MethodPost, "/admin/accounts/unlock", strings.NewReader(`{"email":"a@b.com"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
