package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mfontaine/aegis/internal/auth"
	"github.com/mfontaine/aegis/internal/models"
	pkglogger "github.com/mfontaine/aegis/pkg/logger"
)

// TOTPAccountStore is the account persistence TOTP enrollment needs
type TOTPAccountStore interface {
	GetByID(ctx context.Context, id string) (*models.Account, error)
	SetTOTP(ctx context.Context, id string, enabled bool, secret, nonce []byte) error
}

// TOTPService manages authenticator-app enrollment. Enrollment is two-phase:
// Enroll stores the encrypted secret disabled, Activate flips it on once the
// user proves their app produces matching codes.
type TOTPService struct {
	accounts TOTPAccountStore
	manager  *auth.TOTPManager
	logger   *slog.Logger
	audit    *pkglogger.AuditLogger
}

func NewTOTPService(accounts TOTPAccountStore, manager *auth.TOTPManager, logger *slog.Logger, audit *pkglogger.AuditLogger) *TOTPService {
	return &TOTPService{
		accounts: accounts,
		manager:  manager,
		logger:   logger,
		audit:    audit,
	}
}

// EnrollResponse carries the provisioning QR code for the authenticator app
type EnrollResponse struct {
	QRCode string `json:"qr_code"`
}

// Enroll generates and stores a new (disabled) TOTP secret for the account
func (s *TOTPService) Enroll(ctx context.Context, accountID string) (*EnrollResponse, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.TOTPEnabled {
		return nil, models.ErrConflict
	}

	encrypted, nonce, qrDataURL, err := s.manager.Enroll(account.Email)
	if err != nil {
		s.logger.Error("totp enrollment failed", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := s.accounts.SetTOTP(ctx, accountID, false, encrypted, nonce); err != nil {
		return nil, err
	}

	return &EnrollResponse{QRCode: qrDataURL}, nil
}

// Activate enables TOTP once the user confirms a code from their app
func (s *TOTPService) Activate(ctx context.Context, accountID, code string) error {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	if account.TOTPEnabled {
		return models.ErrConflict
	}
	if len(account.TOTPSecret) == 0 {
		return models.ErrBadRequest
	}

	secret, err := s.manager.DecryptSecret(account.TOTPSecret, account.TOTPNonce)
	if err != nil {
		s.logger.Error("failed to decrypt TOTP secret", slog.Any("error", err))
		return models.ErrInternalServer
	}

	valid, err := s.manager.Validate(secret, code)
	if err != nil {
		return models.ErrInternalServer
	}
	if !valid {
		return models.ErrChallengeMismatch
	}

	if err := s.accounts.SetTOTP(ctx, accountID, true, account.TOTPSecret, account.TOTPNonce); err != nil {
		return err
	}

	s.audit.LogAccountAction("totp_enabled", accountID, "", nil)
	return nil
}

// Disable turns TOTP off and discards the stored secret
func (s *TOTPService) Disable(ctx context.Context, accountID string) error {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	if !account.TOTPEnabled && len(account.TOTPSecret) == 0 {
		return nil
	}

	if err := s.accounts.SetTOTP(ctx, accountID, false, nil, nil); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		return err
	}

	s.audit.LogAccountAction("totp_disabled", accountID, "", nil)
	return nil
}
