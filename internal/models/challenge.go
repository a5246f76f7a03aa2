package models

import "time"

// ChallengeTTL is the hard expiry of a step-up code, enforced at read time by
// the repository and physically by the background cleanup.
const ChallengeTTL = 10 * time.Minute

// MaxChallengeAttempts is the number of verification tries before a challenge
// is invalidated and the user must start a fresh login.
const MaxChallengeAttempts = 3

// Challenge is an ephemeral step-up secret tied to exactly one login attempt.
// At most one active challenge exists per attempt; issuing a new one replaces
// the previous. Deleted on success, on attempt exhaustion, or by expiry.
type Challenge struct {
	ID             string    `db:"id"`
	AccountID      string    `db:"account_id"`
	Email          string    `db:"email"`
	CodeHash       string    `db:"code_hash"` // SHA-256 of the 6-digit code
	LoginAttemptID string    `db:"login_attempt_id"`
	Attempts       int       `db:"attempts"`
	IsVerified     bool      `db:"is_verified"`
	CreatedAt      time.Time `db:"created_at"`
}

// Expired reports whether the challenge is past its hard expiry.
func (c *Challenge) Expired(now time.Time) bool {
	return now.Sub(c.CreatedAt) > ChallengeTTL
}

// RemainingAttempts returns how many verification tries are left.
func (c *Challenge) RemainingAttempts() int {
	remaining := MaxChallengeAttempts - c.Attempts
	if remaining < 0 {
		return 0
	}
	return remaining
}
