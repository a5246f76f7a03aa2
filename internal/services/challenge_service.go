package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/mfontaine/aegis/internal/models"
)

// ChallengeRepository is the persistence the challenge service consumes
type ChallengeRepository interface {
	Create(ctx context.Context, challenge *models.Challenge) error
	GetActiveByAttemptID(ctx context.Context, attemptID string) (*models.Challenge, error)
	IncrementAttempts(ctx context.Context, id string) (int, error)
	Delete(ctx context.Context, id string) error
}

// ChallengeService issues and verifies email step-up codes. Codes are six
// digits, stored only as SHA-256 hashes, and burn out after three wrong
// guesses or ten minutes.
type ChallengeService struct {
	repo     ChallengeRepository
	notifier Notifier
	logger   *slog.Logger
}

func NewChallengeService(repo ChallengeRepository, notifier Notifier, logger *slog.Logger) *ChallengeService {
	return &ChallengeService{
		repo:     repo,
		notifier: notifier,
		logger:   logger,
	}
}

// generateCode produces a uniform random six-digit code
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// Issue creates a challenge for the login attempt and mails the code.
// Reissuing for the same attempt replaces the earlier challenge. The mail is
// sent in the background; delivery failure is logged, never surfaced.
func (s *ChallengeService) Issue(ctx context.Context, account *models.Account, attemptID string) (*models.Challenge, error) {
	code, err := generateCode()
	if err != nil {
		return nil, err
	}

	challenge := &models.Challenge{
		AccountID:      account.ID,
		Email:          account.Email,
		CodeHash:       hashCode(code),
		LoginAttemptID: attemptID,
	}

	if err := s.repo.Create(ctx, challenge); err != nil {
		return nil, fmt.Errorf("failed to store challenge: %w", err)
	}

	go func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.notifier.SendChallengeCode(sendCtx, account.Email, code); err != nil {
			s.logger.Warn("challenge code delivery failed",
				slog.String("account_id", account.ID),
				slog.Any("error", err))
		}
	}()

	s.logger.Info("step-up challenge issued",
		slog.String("account_id", account.ID),
		slog.String("attempt_id", attemptID))

	return challenge, nil
}

// Verify checks a submitted code against the attempt's live challenge.
// Returns the challenge on success. Errors:
//   - ErrChallengeNotFound: no live challenge (expired, consumed, or never issued)
//   - ErrChallengeExhausted: attempt budget spent, challenge invalidated
//   - ChallengeMismatchError: wrong code, carries the remaining try count
func (s *ChallengeService) Verify(ctx context.Context, attemptID, code string) (*models.Challenge, error) {
	challenge, err := s.repo.GetActiveByAttemptID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrChallengeNotFound
		}
		return nil, err
	}

	if challenge.Attempts >= models.MaxChallengeAttempts {
		_ = s.repo.Delete(ctx, challenge.ID)
		return nil, models.ErrChallengeExhausted
	}

	if subtle.ConstantTimeCompare([]byte(hashCode(code)), []byte(challenge.CodeHash)) != 1 {
		attempts, err := s.repo.IncrementAttempts(ctx, challenge.ID)
		if err != nil {
			return nil, err
		}

		if attempts >= models.MaxChallengeAttempts {
			_ = s.repo.Delete(ctx, challenge.ID)
			s.logger.Warn("challenge exhausted",
				slog.String("account_id", challenge.AccountID),
				slog.String("attempt_id", attemptID))
			return nil, models.ErrChallengeExhausted
		}

		return nil, &models.ChallengeMismatchError{Remaining: models.MaxChallengeAttempts - attempts}
	}

	// consumed on success
	if err := s.repo.Delete(ctx, challenge.ID); err != nil {
		s.logger.Warn("failed to delete verified challenge", slog.Any("error", err))
	}

	s.logger.Info("step-up challenge verified",
		slog.String("account_id", challenge.AccountID),
		slog.String("attempt_id", attemptID))

	return challenge, nil
}
