package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mfontaine/aegis/internal/models"
	"github.com/mfontaine/aegis/internal/repositories"
	pkglogger "github.com/mfontaine/aegis/pkg/logger"
)

// AttemptReader is the read side of the audit trail
type AttemptReader interface {
	GetByID(ctx context.Context, id string) (*models.LoginAttempt, error)
	List(ctx context.Context, filter repositories.AttemptFilter, limit, offset int) ([]*models.LoginAttempt, error)
	ListByAccount(ctx context.Context, accountID string, limit int) ([]*models.LoginAttempt, error)
	Stats(ctx context.Context, since time.Time) (*repositories.AttemptStats, error)
	TopCountries(ctx context.Context, since time.Time, limit int) ([]repositories.CountryCount, error)
	HourlyCounts(ctx context.Context, since time.Time) ([]repositories.HourlyCount, error)
	LocationMarkers(ctx context.Context, since time.Time, limit int) ([]repositories.LocationMarker, error)
}

// EventStore is the suspicious event log as the admin surface sees it
type EventStore interface {
	List(ctx context.Context, filter repositories.EventFilter, limit, offset int) ([]*models.SuspiciousEvent, error)
	GetByID(ctx context.Context, id string) (*models.SuspiciousEvent, error)
	Resolve(ctx context.Context, id, adminID string) error
	CountByTypeSince(ctx context.Context, since time.Time) (map[string]int64, error)
	CountUnresolvedSince(ctx context.Context, since time.Time) (int64, error)
}

// AccountDirectory is the slice of the account store admins may touch
type AccountDirectory interface {
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	Unlock(ctx context.Context, id string) error
	CountLocked(ctx context.Context) (int64, error)
}

// AdminService serves the security review surface: the attempt trail, the
// event log, aggregate stats, and manual unlock.
type AdminService struct {
	attempts AttemptReader
	events   EventStore
	accounts AccountDirectory
	logger   *slog.Logger
	audit    *pkglogger.AuditLogger
}

func NewAdminService(attempts AttemptReader, events EventStore, accounts AccountDirectory, logger *slog.Logger, audit *pkglogger.AuditLogger) *AdminService {
	return &AdminService{
		attempts: attempts,
		events:   events,
		accounts: accounts,
		logger:   logger,
		audit:    audit,
	}
}

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// ListAttempts returns recent attempts, optionally filtered
func (s *AdminService) ListAttempts(ctx context.Context, filter repositories.AttemptFilter, limit, offset int) ([]*models.LoginAttempt, error) {
	limit, offset = clampPage(limit, offset)
	return s.attempts.List(ctx, filter, limit, offset)
}

// GetAttempt returns one attempt by ID
func (s *AdminService) GetAttempt(ctx context.Context, id string) (*models.LoginAttempt, error) {
	return s.attempts.GetByID(ctx, id)
}

// DashboardStats is the admin overview for a time window
type DashboardStats struct {
	Since            time.Time                   `json:"since"`
	Attempts         *repositories.AttemptStats  `json:"attempts"`
	EventsByType     map[string]int64            `json:"events_by_type"`
	UnresolvedEvents int64                       `json:"unresolved_events"`
	LockedAccounts   int64                       `json:"locked_accounts"`
	TopCountries     []repositories.CountryCount `json:"top_countries"`
	Hourly           []repositories.HourlyCount  `json:"hourly"`
}

const topCountryLimit = 10

// Stats aggregates attempt outcomes, event counts, lock state, and the
// geographic and hourly breakdowns since the given time
func (s *AdminService) Stats(ctx context.Context, since time.Time) (*DashboardStats, error) {
	attemptStats, err := s.attempts.Stats(ctx, since)
	if err != nil {
		return nil, err
	}

	eventCounts, err := s.events.CountByTypeSince(ctx, since)
	if err != nil {
		return nil, err
	}

	unresolved, err := s.events.CountUnresolvedSince(ctx, since)
	if err != nil {
		return nil, err
	}

	locked, err := s.accounts.CountLocked(ctx)
	if err != nil {
		return nil, err
	}

	countries, err := s.attempts.TopCountries(ctx, since, topCountryLimit)
	if err != nil {
		return nil, err
	}

	hourly, err := s.attempts.HourlyCounts(ctx, since)
	if err != nil {
		return nil, err
	}

	return &DashboardStats{
		Since:            since,
		Attempts:         attemptStats,
		EventsByType:     eventCounts,
		UnresolvedEvents: unresolved,
		LockedAccounts:   locked,
		TopCountries:     countries,
		Hourly:           hourly,
	}, nil
}

// LocationMarkers returns geolocated attempts for the admin map view
func (s *AdminService) LocationMarkers(ctx context.Context, since time.Time, limit int) ([]repositories.LocationMarker, error) {
	limit, _ = clampPage(limit, 0)
	return s.attempts.LocationMarkers(ctx, since, limit)
}

// ListEvents returns suspicious events, newest first
func (s *AdminService) ListEvents(ctx context.Context, filter repositories.EventFilter, limit, offset int) ([]*models.SuspiciousEvent, error) {
	limit, offset = clampPage(limit, offset)
	return s.events.List(ctx, filter, limit, offset)
}

// GetEvent returns one event by ID
func (s *AdminService) GetEvent(ctx context.Context, id string) (*models.SuspiciousEvent, error) {
	return s.events.GetByID(ctx, id)
}

// ResolveEvent marks an event handled by the acting admin
func (s *AdminService) ResolveEvent(ctx context.Context, eventID, adminID string) error {
	if err := s.events.Resolve(ctx, eventID, adminID); err != nil {
		return err
	}

	s.audit.LogAccountAction("event_resolved", adminID, "", map[string]string{
		"event_id": eventID,
	})
	return nil
}

// AccountDetail is the admin view of one account: identity and security
// state without credentials or TOTP material, plus recent login history.
type AccountDetail struct {
	ID             string                 `json:"id"`
	Email          string                 `json:"email"`
	FirstName      string                 `json:"first_name"`
	LastName       string                 `json:"last_name"`
	Role           string                 `json:"role"`
	IsLocked       bool                   `json:"is_locked"`
	LockReason     *string                `json:"lock_reason,omitempty"`
	LockUntil      *time.Time             `json:"lock_until,omitempty"`
	FailedAttempts int                    `json:"failed_attempts"`
	TOTPEnabled    bool                   `json:"totp_enabled"`
	KnownDevices   int                    `json:"known_devices"`
	KnownLocations int                    `json:"known_locations"`
	LastLogin      *models.LoginSnapshot  `json:"last_login,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	RecentAttempts []*models.LoginAttempt `json:"recent_attempts"`
}

const accountHistoryLimit = 20

// GetAccountDetail returns the security profile of one account
func (s *AdminService) GetAccountDetail(ctx context.Context, email string) (*AccountDetail, error) {
	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	history, err := s.attempts.ListByAccount(ctx, account.ID, accountHistoryLimit)
	if err != nil {
		return nil, err
	}

	return &AccountDetail{
		ID:             account.ID,
		Email:          account.Email,
		FirstName:      account.FirstName,
		LastName:       account.LastName,
		Role:           account.Role,
		IsLocked:       account.IsLocked,
		LockReason:     account.LockReason,
		LockUntil:      account.LockUntil,
		FailedAttempts: account.FailedAttempts,
		TOTPEnabled:    account.TOTPEnabled,
		KnownDevices:   len(account.DeviceHistory),
		KnownLocations: len(account.LocationHistory),
		LastLogin:      account.LastLogin,
		CreatedAt:      account.CreatedAt,
		RecentAttempts: history,
	}, nil
}

// UnlockAccount lifts a lock ahead of its expiry
func (s *AdminService) UnlockAccount(ctx context.Context, email, adminID string) error {
	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		return err
	}

	if err := s.accounts.Unlock(ctx, account.ID); err != nil {
		return err
	}

	s.logger.Info("account unlocked by admin",
		slog.String("account_id", account.ID),
		slog.String("admin_id", adminID))
	s.audit.LogAccountAction("account_unlocked", account.ID, "", map[string]string{
		"admin_id": adminID,
	})

	return nil
}
