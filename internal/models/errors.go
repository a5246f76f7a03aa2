package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Authentication outcomes. ErrInvalidCredentials deliberately covers both
	// "no such account" and "wrong password" so callers cannot distinguish them.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account is temporarily locked")
	ErrIPBlacklisted      = errors.New("source address is temporarily blocked")
	ErrHighRiskBlocked    = errors.New("login blocked due to suspicious activity")

	// Step-up challenge outcomes
	ErrChallengeNotFound  = errors.New("challenge not found or expired")
	ErrChallengeExhausted = errors.New("too many verification attempts")
	ErrChallengeMismatch  = errors.New("incorrect verification code")
)

// ChallengeMismatchError is a wrong step-up code that still leaves tries on
// the challenge. It carries the remaining count for the response and matches
// ErrChallengeMismatch under errors.Is.
type ChallengeMismatchError struct {
	Remaining int
}

func (e *ChallengeMismatchError) Error() string {
	return fmt.Sprintf("incorrect verification code, %d attempts remaining", e.Remaining)
}

func (e *ChallengeMismatchError) Is(target error) bool {
	return target == ErrChallengeMismatch
}
