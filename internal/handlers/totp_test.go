package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mfontaine/aegis/internal/models"
	"github.com/mfontaine/aegis/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func totpRequest(method, path, body string) *http.Request {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	return withClaims(r, &models.TokenClaims{AccountID: "acc-1"})
}

func TestTOTPHandler_Enroll(t *testing.T) {
	service := &MockTOTPService{
		EnrollFunc: func(ctx context.Context, accountID string) (*services.EnrollResponse, error) {
			assert.Equal(t, "acc-1", accountID)
			return &services.EnrollResponse{QRCode: "data:image/png;base64,abcd"}, nil
		},
	}
	h := NewTOTPHandler(service)

	w := httptest.NewRecorder()
	h.Enroll(w, totpRequest(http.MethodPost, "/auth/totp/enroll", ""))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "data:image/png;base64,")
}

func TestTOTPHandler_EnrollAlreadyEnabled(t *testing.T) {
	service := &MockTOTPService{
		EnrollFunc: func(ctx context.Context, accountID string) (*services.EnrollResponse, error) {
			return nil, models.ErrConflict
		},
	}
	h := NewTOTPHandler(service)

	w := httptest.NewRecorder()
	h.Enroll(w, totpRequest(http.MethodPost, "/auth/totp/enroll", ""))

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestTOTPHandler_Activate(t *testing.T) {
	service := &MockTOTPService{
		ActivateFunc: func(ctx context.Context, accountID, code string) error {
			assert.Equal(t, "482910", code)
			return nil
		},
	}
	h := NewTOTPHandler(service)

	w := httptest.NewRecorder()
	h.Activate(w, totpRequest(http.MethodPost, "/auth/totp/activate", `{"code":"482910"}`))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTOTPHandler_ActivateWrongCode(t *testing.T) {
	service := &MockTOTPService{
		ActivateFunc: func(ctx context.Context, accountID, code string) error {
			return models.ErrChallengeMismatch
		},
	}
	h := NewTOTPHandler(service)

	w := httptest.NewRecorder()
	h.Activate(w, totpRequest(http.MethodPost, "/auth/totp/activate", `{"code":"000000"}`))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTOTPHandler_ActivateRejectsShortCode(t *testing.T) {
	h := NewTOTPHandler(&MockTOTPService{})

	w := httptest.NewRecorder()
	h.Activate(w, totpRequest(http.MethodPost, "/auth/totp/activate", `{"code":"123"}`))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTOTPHandler_Disable(t *testing.T) {
	called := false
	service := &MockTOTPService{
		DisableFunc: func(ctx context.Context, accountID string) error {
			called = true
			return nil
		},
	}
	h := NewTOTPHandler(service)

	w := httptest.NewRecorder()
	h.Disable(w, totpRequest(http.MethodDelete, "/auth/totp", ""))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, called)
}

func TestTOTPHandler_RequiresClaims(t *testing.T) {
	h := NewTOTPHandler(&MockTOTPService{})

	w := httptest.NewRecorder()
	h.Enroll(w, httptest.NewRequest(http.MethodPost, "/auth/totp/enroll", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
