package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mfontaine/aegis/internal/auth"
	"github.com/mfontaine/aegis/internal/models"
	"github.com/mfontaine/aegis/internal/services"
	pkghttp "github.com/mfontaine/aegis/pkg/http"
)

// TOTPServiceInterface defines authenticator enrollment operations
type TOTPServiceInterface interface {
	Enroll(ctx context.Context, accountID string) (*services.EnrollResponse, error)
	Activate(ctx context.Context, accountID, code string) error
	Disable(ctx context.Context, accountID string) error
}

// TOTPHandler handles authenticator-app enrollment endpoints
type TOTPHandler struct {
	service TOTPServiceInterface
}

func NewTOTPHandler(service TOTPServiceInterface) *TOTPHandler {
	return &TOTPHandler{service: service}
}

// ActivateTOTPRequest represents the request body for confirming enrollment
type ActivateTOTPRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

// Enroll generates a new secret and returns the provisioning QR code.
// TOTP stays disabled until the user activates it with a valid code.
func (h *TOTPHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromRequest(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	resp, err := h.service.Enroll(r.Context(), claims.AccountID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "TOTP is already enabled")
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Account not found")
		default:
			pkghttp.WriteInternalError(w, "Failed to start TOTP enrollment")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// Activate enables TOTP once the user proves their app produces valid codes
func (h *TOTPHandler) Activate(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromRequest(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req ActivateTOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.Activate(r.Context(), claims.AccountID, req.Code); err != nil {
		switch {
		case errors.Is(err, models.ErrChallengeMismatch):
			pkghttp.WriteUnauthorized(w, "Incorrect verification code")
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "TOTP is already enabled")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "No pending enrollment, enroll first")
		default:
			pkghttp.WriteInternalError(w, "Failed to activate TOTP")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "enabled"})
}

// Disable turns TOTP off for the authenticated account
func (h *TOTPHandler) Disable(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromRequest(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	if err := h.service.Disable(r.Context(), claims.AccountID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Account not found")
			return
		}
		pkghttp.WriteInternalError(w, "Failed to disable TOTP")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
}
