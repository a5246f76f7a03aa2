package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mfontaine/aegis/internal/auth"
	"github.com/mfontaine/aegis/internal/models"
	"github.com/mfontaine/aegis/internal/services"
	pkgauth "github.com/mfontaine/aegis/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postJSON(t *testing.T, handler http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	r.RemoteAddr = "203.0.113.7:51000"
	w := httptest.NewRecorder()
	handler(w, r)
	return w
}

func withClaims(r *http.Request, claims *models.TokenClaims) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), auth.AccountContextKey, claims))
}

func TestAuthHandler_LoginSuccess(t *testing.T) {
	service := &MockAuthService{
		LoginFunc: func(ctx context.Context, req services.LoginRequest) (*services.LoginResult, error) {
			assert.Equal(t, "user@example.com", req.Email)
			assert.Equal(t, "203.0.113.7", req.IP)
			return &services.LoginResult{
				Status:    services.LoginStatusSuccess,
				Token:     "jwt-token",
				RiskLevel: models.RiskLevelSafe,
			}, nil
		},
	}
	h := NewAuthHandler(service, nil)

	w := postJSON(t, h.Login, "/auth/login", `{"email":"User@Example.com","password":"secret"}`)

	require.Equal(t, http.StatusOK, w.Code)
	var result services.LoginResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "jwt-token", result.Token)
	assert.Equal(t, services.LoginStatusSuccess, result.Status)
}

func TestAuthHandler_LoginStepUp(t *testing.T) {
	service := &MockAuthService{
		LoginFunc: func(ctx context.Context, req services.LoginRequest) (*services.LoginResult, error) {
			return &services.LoginResult{
				Status:    services.LoginStatusOTPRequired,
				AttemptID: "attempt-1",
				RiskLevel: models.RiskLevelWarning,
				RiskScore: 55,
			}, nil
		},
	}
	h := NewAuthHandler(service, nil)

	w := postJSON(t, h.Login, "/auth/login", `{"email":"user@example.com","password":"secret"}`)

	require.Equal(t, http.StatusOK, w.Code)
	var result services.LoginResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, services.LoginStatusOTPRequired, result.Status)
	assert.Equal(t, "attempt-1", result.AttemptID)
	assert.Empty(t, result.Token)
}

func TestAuthHandler_LoginErrorStatuses(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"invalid credentials", models.ErrInvalidCredentials, http.StatusUnauthorized},
		{"account locked", models.ErrAccountLocked, http.StatusLocked},
		{"ip blacklisted", models.ErrIPBlacklisted, http.StatusTooManyRequests},
		{"high risk blocked", models.ErrHighRiskBlocked, http.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			service := &MockAuthService{
				LoginFunc: func(ctx context.Context, req services.LoginRequest) (*services.LoginResult, error) {
					return nil, tc.err
				},
			}
			h := NewAuthHandler(service, nil)

			w := postJSON(t, h.Login, "/auth/login", `{"email":"user@example.com","password":"secret"}`)
			assert.Equal(t, tc.wantStatus, w.Code)
		})
	}
}

func TestAuthHandler_LoginRejectsBadPayloads(t *testing.T) {
	h := NewAuthHandler(&MockAuthService{}, nil)

	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{"email":`},
		{"missing password", `{"email":"user@example.com"}`},
		{"invalid email", `{"email":"not-an-email","password":"secret"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := postJSON(t, h.Login, "/auth/login", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestAuthHandler_VerifyOTP(t *testing.T) {
	service := &MockAuthService{
		VerifyOTPFunc: func(ctx context.Context, attemptID, code string) (*services.LoginResult, error) {
			assert.Equal(t, "attempt-1", attemptID)
			assert.Equal(t, "482910", code)
			return &services.LoginResult{Status: services.LoginStatusSuccess, Token: "jwt-token"}, nil
		},
	}
	h := NewAuthHandler(service, nil)

	w := postJSON(t, h.VerifyOTP, "/auth/verify-otp", `{"attempt_id":"attempt-1","code":"482910"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "jwt-token")
}

func TestAuthHandler_VerifyOTPErrorStatuses(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"expired challenge", models.ErrChallengeNotFound, http.StatusGone},
		{"exhausted attempts", models.ErrChallengeExhausted, http.StatusTooManyRequests},
		{"wrong code", models.ErrChallengeMismatch, http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			service := &MockAuthService{
				VerifyOTPFunc: func(ctx context.Context, attemptID, code string) (*services.LoginResult, error) {
					return nil, tc.err
				},
			}
			h := NewAuthHandler(service, nil)

			w := postJSON(t, h.VerifyOTP, "/auth/verify-otp", `{"attempt_id":"attempt-1","code":"000000"}`)
			assert.Equal(t, tc.wantStatus, w.Code)
		})
	}
}

func TestAuthHandler_VerifyOTPWrongCodeReportsRemaining(t *testing.T) {
	service := &MockAuthService{
		VerifyOTPFunc: func(ctx context.Context, attemptID, code string) (*services.LoginResult, error) {
			return nil, &models.ChallengeMismatchError{Remaining: 2}
		},
	}
	h := NewAuthHandler(service, nil)

	w := postJSON(t, h.VerifyOTP, "/auth/verify-otp", `{"attempt_id":"attempt-1","code":"000000"}`)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "2 attempts remaining")
}

func TestAuthHandler_VerifyOTPRejectsNonNumericCode(t *testing.T) {
	h := NewAuthHandler(&MockAuthService{}, nil)

	w := postJSON(t, h.VerifyOTP, "/auth/verify-otp", `{"attempt_id":"attempt-1","code":"abc123"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandler_Register(t *testing.T) {
	service := &MockAuthService{
		RegisterFunc: func(ctx context.Context, req services.RegisterRequest) (*services.AccountResponse, error) {
			return &services.AccountResponse{ID: "acc-1", Email: "user@example.com"}, nil
		},
	}
	h := NewAuthHandler(service, nil)

	w := postJSON(t, h.Register, "/auth/register", `{"email":"user@example.com","password":"Sup3rSecret!pass"}`)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "acc-1")
}

func TestAuthHandler_RegisterWeakPassword(t *testing.T) {
	service := &MockAuthService{
		RegisterFunc: func(ctx context.Context, req services.RegisterRequest) (*services.AccountResponse, error) {
			return nil, &pkgauth.PasswordValidationError{Errors: []string{"must be at least 12 characters"}}
		},
	}
	h := NewAuthHandler(service, nil)

	w := postJSON(t, h.Register, "/auth/register", `{"email":"user@example.com","password":"short"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandler_RegisterDuplicateEmail(t *testing.T) {
	service := &MockAuthService{
		RegisterFunc: func(ctx context.Context, req services.RegisterRequest) (*services.AccountResponse, error) {
			return nil, models.ErrConflict
		},
	}
	h := NewAuthHandler(service, nil)

	w := postJSON(t, h.Register, "/auth/register", `{"email":"user@example.com","password":"Sup3rSecret!pass"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAuthHandler_Me(t *testing.T) {
	service := &MockAuthService{
		GetAccountFunc: func(ctx context.Context, accountID string) (*services.AccountResponse, error) {
			assert.Equal(t, "acc-1", accountID)
			return &services.AccountResponse{ID: "acc-1", Email: "user@example.com"}, nil
		},
	}
	h := NewAuthHandler(service, nil)

	r := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	r = withClaims(r, &models.TokenClaims{AccountID: "acc-1"})
	w := httptest.NewRecorder()
	h.Me(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "user@example.com")
}

func TestAuthHandler_MeWithoutClaims(t *testing.T) {
	h := NewAuthHandler(&MockAuthService{}, nil)

	r := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	w := httptest.NewRecorder()
	h.Me(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
