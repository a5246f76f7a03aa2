package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/mfontaine/aegis/internal/models"
	pkglogger "github.com/mfontaine/aegis/pkg/logger"
)

// MockAccountRepository implements AccountRepository for testing
type MockAccountRepository struct {
	CreateFunc                  func(ctx context.Context, account *models.Account) error
	GetByEmailFunc              func(ctx context.Context, email string) (*models.Account, error)
	GetByIDFunc                 func(ctx context.Context, id string) (*models.Account, error)
	IncrementFailedAttemptsFunc func(ctx context.Context, id string) (int, error)
	ResetFailedAttemptsFunc     func(ctx context.Context, id string) error
	LockFunc                    func(ctx context.Context, id, reason string, until time.Time) error
	UnlockFunc                  func(ctx context.Context, id string) error
	RecordSuccessfulLoginFunc   func(ctx context.Context, account *models.Account) error
	SetTOTPFunc                 func(ctx context.Context, id string, enabled bool, secret, nonce []byte) error
	CountLockedFunc             func(ctx context.Context) (int64, error)
}

func (m *MockAccountRepository) CountLocked(ctx context.Context) (int64, error) {
	if m.CountLockedFunc != nil {
		return m.CountLockedFunc(ctx)
	}
	return 0, nil
}

func (m *MockAccountRepository) Create(ctx context.Context, account *models.Account) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, account)
	}
	return nil
}

func (m *MockAccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) IncrementFailedAttempts(ctx context.Context, id string) (int, error) {
	if m.IncrementFailedAttemptsFunc != nil {
		return m.IncrementFailedAttemptsFunc(ctx, id)
	}
	return 1, nil
}

func (m *MockAccountRepository) ResetFailedAttempts(ctx context.Context, id string) error {
	if m.ResetFailedAttemptsFunc != nil {
		return m.ResetFailedAttemptsFunc(ctx, id)
	}
	return nil
}

func (m *MockAccountRepository) Lock(ctx context.Context, id, reason string, until time.Time) error {
	if m.LockFunc != nil {
		return m.LockFunc(ctx, id, reason, until)
	}
	return nil
}

func (m *MockAccountRepository) Unlock(ctx context.Context, id string) error {
	if m.UnlockFunc != nil {
		return m.UnlockFunc(ctx, id)
	}
	return nil
}

func (m *MockAccountRepository) RecordSuccessfulLogin(ctx context.Context, account *models.Account) error {
	if m.RecordSuccessfulLoginFunc != nil {
		return m.RecordSuccessfulLoginFunc(ctx, account)
	}
	return nil
}

func (m *MockAccountRepository) SetTOTP(ctx context.Context, id string, enabled bool, secret, nonce []byte) error {
	if m.SetTOTPFunc != nil {
		return m.SetTOTPFunc(ctx, id, enabled, secret, nonce)
	}
	return nil
}

// MockAttemptRepository implements AttemptRepository for testing. Created
// attempts get sequential IDs and are retrievable by ID.
type MockAttemptRepository struct {
	CreateFunc       func(ctx context.Context, attempt *models.LoginAttempt) error
	GetByIDFunc      func(ctx context.Context, id string) (*models.LoginAttempt, error)
	UpdateStatusFunc func(ctx context.Context, id, status string) error

	Created []*models.LoginAttempt
}

func (m *MockAttemptRepository) Create(ctx context.Context, attempt *models.LoginAttempt) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, attempt)
	}
	if attempt.ID == "" {
		attempt.ID = fmt.Sprintf("attempt-%d", len(m.Created)+1)
	}
	m.Created = append(m.Created, attempt)
	return nil
}

func (m *MockAttemptRepository) GetByID(ctx context.Context, id string) (*models.LoginAttempt, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	for _, a := range m.Created {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *MockAttemptRepository) UpdateStatus(ctx context.Context, id, status string) error {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, id, status)
	}
	for _, a := range m.Created {
		if a.ID == id {
			a.Status = status
			return nil
		}
	}
	return models.ErrNotFound
}

// MockEventRecorder implements EventRecorder for testing
type MockEventRecorder struct {
	CreateFunc func(ctx context.Context, event *models.SuspiciousEvent) error

	Events []*models.SuspiciousEvent
}

func (m *MockEventRecorder) Create(ctx context.Context, event *models.SuspiciousEvent) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, event)
	}
	m.Events = append(m.Events, event)
	return nil
}

// MockChallengeRepository implements ChallengeRepository for testing
type MockChallengeRepository struct {
	CreateFunc               func(ctx context.Context, challenge *models.Challenge) error
	GetActiveByAttemptIDFunc func(ctx context.Context, attemptID string) (*models.Challenge, error)
	IncrementAttemptsFunc    func(ctx context.Context, id string) (int, error)
	DeleteFunc               func(ctx context.Context, id string) error

	Stored  *models.Challenge
	Deleted []string
}

func (m *MockChallengeRepository) Create(ctx context.Context, challenge *models.Challenge) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, challenge)
	}
	challenge.ID = "challenge-1"
	challenge.CreatedAt = time.Now()
	m.Stored = challenge
	return nil
}

func (m *MockChallengeRepository) GetActiveByAttemptID(ctx context.Context, attemptID string) (*models.Challenge, error) {
	if m.GetActiveByAttemptIDFunc != nil {
		return m.GetActiveByAttemptIDFunc(ctx, attemptID)
	}
	if m.Stored != nil && m.Stored.LoginAttemptID == attemptID {
		return m.Stored, nil
	}
	return nil, models.ErrNotFound
}

func (m *MockChallengeRepository) IncrementAttempts(ctx context.Context, id string) (int, error) {
	if m.IncrementAttemptsFunc != nil {
		return m.IncrementAttemptsFunc(ctx, id)
	}
	m.Stored.Attempts++
	return m.Stored.Attempts, nil
}

func (m *MockChallengeRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	m.Deleted = append(m.Deleted, id)
	m.Stored = nil
	return nil
}

// MockNotifier implements Notifier for testing, recording every send.
// Safe for concurrent use: the pipeline delivers notifications from
// goroutines.
type MockNotifier struct {
	mu             sync.Mutex
	challengeCodes []string
	highRiskAlerts []string
	lockAlerts     []string

	SendChallengeCodeFunc func(ctx context.Context, email, code string) error
}

func (m *MockNotifier) SendChallengeCode(ctx context.Context, email, code string) error {
	if m.SendChallengeCodeFunc != nil {
		return m.SendChallengeCodeFunc(ctx, email, code)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.challengeCodes = append(m.challengeCodes, code)
	return nil
}

func (m *MockNotifier) SendHighRiskAlert(ctx context.Context, email string, attempt *models.LoginAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.highRiskAlerts = append(m.highRiskAlerts, email)
	return nil
}

func (m *MockNotifier) SendLockAlert(ctx context.Context, email, reason string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lockAlerts = append(m.lockAlerts, email)
	return nil
}

func (m *MockNotifier) ChallengeCodes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.challengeCodes...)
}

func (m *MockNotifier) HighRiskAlerts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.highRiskAlerts...)
}

func (m *MockNotifier) LockAlerts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.lockAlerts...)
}

// staticResolver returns a fixed location for every lookup
type staticResolver struct {
	location models.Location
}

func (r *staticResolver) Resolve(ctx context.Context, ip string) models.Location {
	loc := r.location
	loc.IP = ip
	return loc
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func discardAudit() *pkglogger.AuditLogger {
	return pkglogger.NewAuditLogger(discardLogger())
}
