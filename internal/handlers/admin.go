package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mfontaine/aegis/internal/auth"
	"github.com/mfontaine/aegis/internal/models"
	"github.com/mfontaine/aegis/internal/repositories"
	"github.com/mfontaine/aegis/internal/services"
	pkghttp "github.com/mfontaine/aegis/pkg/http"
)

// AdminServiceInterface defines the security review surface
type AdminServiceInterface interface {
	ListAttempts(ctx context.Context, filter repositories.AttemptFilter, limit, offset int) ([]*models.LoginAttempt, error)
	GetAttempt(ctx context.Context, id string) (*models.LoginAttempt, error)
	Stats(ctx context.Context, since time.Time) (*services.DashboardStats, error)
	LocationMarkers(ctx context.Context, since time.Time, limit int) ([]repositories.LocationMarker, error)
	ListEvents(ctx context.Context, filter repositories.EventFilter, limit, offset int) ([]*models.SuspiciousEvent, error)
	GetEvent(ctx context.Context, id string) (*models.SuspiciousEvent, error)
	ResolveEvent(ctx context.Context, eventID, adminID string) error
	GetAccountDetail(ctx context.Context, email string) (*services.AccountDetail, error)
	UnlockAccount(ctx context.Context, email, adminID string) error
}

// AdminHandler handles the admin review endpoints
type AdminHandler struct {
	service AdminServiceInterface
}

func NewAdminHandler(service AdminServiceInterface) *AdminHandler {
	return &AdminHandler{service: service}
}

// UnlockAccountRequest represents the request body for a manual unlock
type UnlockAccountRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ListAttempts returns the login attempt trail, newest first.
// Query params: email, risk_level, country (optional filters), limit, offset.
func (h *AdminHandler) ListAttempts(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePaging(r)
	query := r.URL.Query()

	filter := repositories.AttemptFilter{
		Email:     query.Get("email"),
		RiskLevel: query.Get("risk_level"),
		Country:   query.Get("country"),
	}

	attempts, err := h.service.ListAttempts(r.Context(), filter, limit, offset)
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to list login attempts")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"attempts": attempts,
		"count":    len(attempts),
	})
}

// GetAttempt returns one login attempt by ID
func (h *AdminHandler) GetAttempt(w http.ResponseWriter, r *http.Request) {
	attempt, err := h.service.GetAttempt(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Login attempt not found")
			return
		}
		pkghttp.WriteInternalError(w, "Failed to load login attempt")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, attempt)
}

// Stats returns aggregate attempt and event counts. The window defaults to
// 24 hours and is set with ?hours=N.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	hours, err := parseHoursWindow(r)
	if err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	stats, err := h.service.Stats(r.Context(), time.Now().Add(-time.Duration(hours)*time.Hour))
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to compute stats")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, stats)
}

// Locations returns geolocated attempts for the admin map. The window
// defaults to 24 hours and is set with ?hours=N.
func (h *AdminHandler) Locations(w http.ResponseWriter, r *http.Request) {
	hours, err := parseHoursWindow(r)
	if err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}
	limit, _ := parsePaging(r)

	markers, err := h.service.LocationMarkers(r.Context(), time.Now().Add(-time.Duration(hours)*time.Hour), limit)
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to load attempt locations")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"locations": markers,
		"count":     len(markers),
	})
}

// GetAccountDetail returns one account's security profile by ?email=
func (h *AdminHandler) GetAccountDetail(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		pkghttp.WriteBadRequest(w, "email query parameter is required")
		return
	}

	detail, err := h.service.GetAccountDetail(r.Context(), email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Account not found")
			return
		}
		pkghttp.WriteInternalError(w, "Failed to load account")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, detail)
}

// ListEvents returns suspicious events, filterable by type, severity, email
// and resolution state.
func (h *AdminHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePaging(r)
	query := r.URL.Query()

	filter := repositories.EventFilter{
		Type:       query.Get("type"),
		Severity:   query.Get("severity"),
		Email:      query.Get("email"),
		Unresolved: query.Get("unresolved") == "true",
	}

	events, err := h.service.ListEvents(r.Context(), filter, limit, offset)
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to list events")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}

// GetEvent returns one suspicious event by ID
func (h *AdminHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.service.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Event not found")
			return
		}
		pkghttp.WriteInternalError(w, "Failed to load event")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, event)
}

// ResolveEvent marks an event handled by the acting admin
func (h *AdminHandler) ResolveEvent(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromRequest(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	err := h.service.ResolveEvent(r.Context(), chi.URLParam(r, "id"), claims.AccountID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Event not found or already resolved")
			return
		}
		pkghttp.WriteInternalError(w, "Failed to resolve event")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "resolved"})
}

// UnlockAccount lifts an account lock ahead of its expiry
func (h *AdminHandler) UnlockAccount(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromRequest(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req UnlockAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.UnlockAccount(r.Context(), req.Email, claims.AccountID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Account not found")
			return
		}
		pkghttp.WriteInternalError(w, "Failed to unlock account")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "unlocked"})
}

func parsePaging(r *http.Request) (int, int) {
	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	offset, _ := strconv.Atoi(query.Get("offset"))
	return limit, offset
}

func parseHoursWindow(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("hours")
	if raw == "" {
		return 24, nil
	}

	hours, err := strconv.Atoi(raw)
	if err != nil || hours <= 0 || hours > 24*90 {
		return 0, errors.New("hours must be a positive integer up to 2160")
	}
	return hours, nil
}
