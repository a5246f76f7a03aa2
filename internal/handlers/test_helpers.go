package handlers

import (
	"context"
	"time"

	"github.com/mfontaine/aegis/internal/models"
	"github.com/mfontaine/aegis/internal/repositories"
	"github.com/mfontaine/aegis/internal/services"
)

// MockAuthService implements AuthServiceInterface for handler tests
type MockAuthService struct {
	LoginFunc      func(ctx context.Context, req services.LoginRequest) (*services.LoginResult, error)
	VerifyOTPFunc  func(ctx context.Context, attemptID, code string) (*services.LoginResult, error)
	RegisterFunc   func(ctx context.Context, req services.RegisterRequest) (*services.AccountResponse, error)
	GetAccountFunc func(ctx context.Context, accountID string) (*services.AccountResponse, error)
}

func (m *MockAuthService) Login(ctx context.Context, req services.LoginRequest) (*services.LoginResult, error) {
	return m.LoginFunc(ctx, req)
}

func (m *MockAuthService) VerifyOTP(ctx context.Context, attemptID, code string) (*services.LoginResult, error) {
	return m.VerifyOTPFunc(ctx, attemptID, code)
}

func (m *MockAuthService) Register(ctx context.Context, req services.RegisterRequest) (*services.AccountResponse, error) {
	return m.RegisterFunc(ctx, req)
}

func (m *MockAuthService) GetAccount(ctx context.Context, accountID string) (*services.AccountResponse, error) {
	return m.GetAccountFunc(ctx, accountID)
}

// MockAdminService implements AdminServiceInterface for handler tests
type MockAdminService struct {
	ListAttemptsFunc     func(ctx context.Context, filter repositories.AttemptFilter, limit, offset int) ([]*models.LoginAttempt, error)
	GetAttemptFunc       func(ctx context.Context, id string) (*models.LoginAttempt, error)
	StatsFunc            func(ctx context.Context, since time.Time) (*services.DashboardStats, error)
	LocationMarkersFunc  func(ctx context.Context, since time.Time, limit int) ([]repositories.LocationMarker, error)
	ListEventsFunc       func(ctx context.Context, filter repositories.EventFilter, limit, offset int) ([]*models.SuspiciousEvent, error)
	GetEventFunc         func(ctx context.Context, id string) (*models.SuspiciousEvent, error)
	ResolveEventFunc     func(ctx context.Context, eventID, adminID string) error
	GetAccountDetailFunc func(ctx context.Context, email string) (*services.AccountDetail, error)
	UnlockAccountFunc    func(ctx context.Context, email, adminID string) error
}

func (m *MockAdminService) ListAttempts(ctx context.Context, filter repositories.AttemptFilter, limit, offset int) ([]*models.LoginAttempt, error) {
	return m.ListAttemptsFunc(ctx, filter, limit, offset)
}

func (m *MockAdminService) LocationMarkers(ctx context.Context, since time.Time, limit int) ([]repositories.LocationMarker, error) {
	return m.LocationMarkersFunc(ctx, since, limit)
}

func (m *MockAdminService) GetAccountDetail(ctx context.Context, email string) (*services.AccountDetail, error) {
	return m.GetAccountDetailFunc(ctx, email)
}

func (m *MockAdminService) GetAttempt(ctx context.Context, id string) (*models.LoginAttempt, error) {
	return m.GetAttemptFunc(ctx, id)
}

func (m *MockAdminService) Stats(ctx context.Context, since time.Time) (*services.DashboardStats, error) {
	return m.StatsFunc(ctx, since)
}

func (m *MockAdminService) ListEvents(ctx context.Context, filter repositories.EventFilter, limit, offset int) ([]*models.SuspiciousEvent, error) {
	return m.ListEventsFunc(ctx, filter, limit, offset)
}

func (m *MockAdminService) GetEvent(ctx context.Context, id string) (*models.SuspiciousEvent, error) {
	return m.GetEventFunc(ctx, id)
}

func (m *MockAdminService) ResolveEvent(ctx context.Context, eventID, adminID string) error {
	return m.ResolveEventFunc(ctx, eventID, adminID)
}

func (m *MockAdminService) UnlockAccount(ctx context.Context, email, adminID string) error {
	return m.UnlockAccountFunc(ctx, email, adminID)
}

// MockTOTPService implements TOTPServiceInterface for handler tests
type MockTOTPService struct {
	EnrollFunc   func(ctx context.Context, accountID string) (*services.EnrollResponse, error)
	ActivateFunc func(ctx context.Context, accountID, code string) error
	DisableFunc  func(ctx context.Context, accountID string) error
}

func (m *MockTOTPService) Enroll(ctx context.Context, accountID string) (*services.EnrollResponse, error) {
	return m.EnrollFunc(ctx, accountID)
}

func (m *MockTOTPService) Activate(ctx context.Context, accountID, code string) error {
	return m.ActivateFunc(ctx, accountID, code)
}

func (m *MockTOTPService) Disable(ctx context.Context, accountID string) error {
	return m.DisableFunc(ctx, accountID)
}
