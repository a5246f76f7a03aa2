package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mfontaine/aegis/internal/auth"
	"github.com/mfontaine/aegis/internal/models"
	"github.com/mfontaine/aegis/internal/services"
	pkgauth "github.com/mfontaine/aegis/pkg/auth"
	pkghttp "github.com/mfontaine/aegis/pkg/http"
)

// AuthServiceInterface defines the login pipeline as the HTTP layer uses it
type AuthServiceInterface interface {
	Login(ctx context.Context, req services.LoginRequest) (*services.LoginResult, error)
	VerifyOTP(ctx context.Context, attemptID, code string) (*services.LoginResult, error)
	Register(ctx context.Context, req services.RegisterRequest) (*services.AccountResponse, error)
	GetAccount(ctx context.Context, accountID string) (*services.AccountResponse, error)
}

// AuthHandler handles authentication HTTP requests
type AuthHandler struct {
	service  AuthServiceInterface
	ipConfig *pkghttp.IPConfig
}

func NewAuthHandler(service AuthServiceInterface, ipConfig *pkghttp.IPConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		ipConfig: ipConfig,
	}
}

// Request DTOs

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest represents the request body for registration
type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	FirstName string `json:"first_name" validate:"max=100"`
	LastName  string `json:"last_name" validate:"max=100"`
}

// VerifyOTPRequest represents the request body for step-up verification
type VerifyOTPRequest struct {
	AttemptID string `json:"attempt_id" validate:"required"`
	Code      string `json:"code" validate:"required,len=6,numeric"`
}

// Login runs the risk-adaptive login pipeline for one attempt
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.service.Login(r.Context(), services.LoginRequest{
		Email:          strings.ToLower(strings.TrimSpace(req.Email)),
		Password:       req.Password,
		IP:             pkghttp.ExtractClientIP(r, h.ipConfig),
		UserAgent:      r.UserAgent(),
		AcceptLanguage: r.Header.Get("Accept-Language"),
	})
	if err != nil {
		writeLoginError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, result)
}

// VerifyOTP completes a login that was answered with otp_required
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.service.VerifyOTP(r.Context(), req.AttemptID, req.Code)
	if err != nil {
		writeLoginError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, result)
}

// Register creates a new account
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	account, err := h.service.Register(r.Context(), services.RegisterRequest{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
	})
	if err != nil {
		var pwErr *pkgauth.PasswordValidationError
		switch {
		case errors.As(err, &pwErr):
			pkghttp.WriteBadRequest(w, pwErr.Error())
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "An account with this email already exists")
		default:
			pkghttp.WriteInternalError(w, "Failed to create account")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, account)
}

// Me returns the authenticated account
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromRequest(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	account, err := h.service.GetAccount(r.Context(), claims.AccountID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Account not found")
			return
		}
		pkghttp.WriteInternalError(w, "Failed to load account")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, account)
}

// writeLoginError maps pipeline sentinels to HTTP statuses. Unknown account
// and wrong password share one response so the API never confirms whether an
// email is registered.
func writeLoginError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidCredentials):
		pkghttp.WriteUnauthorized(w, "Invalid email or password")
	case errors.Is(err, models.ErrAccountLocked):
		pkghttp.WriteLocked(w, "Account is temporarily locked")
	case errors.Is(err, models.ErrIPBlacklisted):
		pkghttp.WriteTooManyRequests(w, "Too many failed attempts, try again later")
	case errors.Is(err, models.ErrHighRiskBlocked):
		pkghttp.WriteForbidden(w, "Login blocked due to suspicious activity")
	case errors.Is(err, models.ErrChallengeNotFound):
		pkghttp.WriteError(w, http.StatusGone, "challenge_expired", "Verification code expired, log in again")
	case errors.Is(err, models.ErrChallengeExhausted):
		pkghttp.WriteTooManyRequests(w, "Too many incorrect codes, log in again")
	case errors.Is(err, models.ErrChallengeMismatch):
		var mismatch *models.ChallengeMismatchError
		if errors.As(err, &mismatch) {
			pkghttp.WriteUnauthorized(w, fmt.Sprintf("Incorrect verification code. %d attempts remaining.", mismatch.Remaining))
		} else {
			pkghttp.WriteUnauthorized(w, "Incorrect verification code")
		}
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, "Request cannot be processed")
	default:
		pkghttp.WriteInternalError(w, "Authentication failed")
	}
}
