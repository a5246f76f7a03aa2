package repositories

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mfontaine/aegis/internal/database"
	"github.com/mfontaine/aegis/internal/models"
)

// AccountRepository handles database operations for accounts
type AccountRepository struct {
	pool *pgxpool.Pool
}

func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{pool: db.Pool}
}

// rowScanner supports both pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

const accountColumns = `
	id, email, password_hash, first_name, last_name, role,
	is_locked, lock_reason, lock_until, failed_attempts,
	device_history, location_history, last_login, last_location,
	totp_enabled, totp_secret, totp_nonce, created_at, updated_at`

// scanAccountRow handles nullable fields and populates an Account model from a database row
func scanAccountRow(scanner rowScanner) (*models.Account, error) {
	var account models.Account
	var lockReason *string
	var lockUntil *time.Time

	err := scanner.Scan(
		&account.ID, &account.Email, &account.PasswordHash,
		&account.FirstName, &account.LastName, &account.Role,
		&account.IsLocked, &lockReason, &lockUntil, &account.FailedAttempts,
		&account.DeviceHistory, &account.LocationHistory,
		&account.LastLogin, &account.LastLocation,
		&account.TOTPEnabled, &account.TOTPSecret, &account.TOTPNonce,
		&account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	account.LockReason = lockReason
	account.LockUntil = lockUntil

	return &account, nil
}

// Create stores a new account. The caller provides an already-hashed password.
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO accounts (email, password_hash, first_name, last_name, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		strings.ToLower(account.Email),
		account.PasswordHash,
		account.FirstName,
		account.LastName,
		account.Role,
	).Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)

	return database.MapPostgresError(err)
}

// GetByEmail retrieves an account by email (case-insensitive)
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE LOWER(email) = LOWER($1)`

	return scanAccountRow(r.pool.QueryRow(ctx, query, email))
}

// GetByID retrieves an account by its ID
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	return scanAccountRow(r.pool.QueryRow(ctx, query, id))
}

// IncrementFailedAttempts bumps the per-account failure counter and returns
// the new value.
func (r *AccountRepository) IncrementFailedAttempts(ctx context.Context, id string) (int, error) {
	query := `
		UPDATE accounts
		SET failed_attempts = failed_attempts + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING failed_attempts
	`

	var count int
	err := r.pool.QueryRow(ctx, query, id).Scan(&count)
	return count, database.MapPostgresError(err)
}

// ResetFailedAttempts clears the per-account failure counter
func (r *AccountRepository) ResetFailedAttempts(ctx context.Context, id string) error {
	query := `UPDATE accounts SET failed_attempts = 0, updated_at = NOW() WHERE id = $1`

	_, err := r.pool.Exec(ctx, query, id)
	return database.MapPostgresError(err)
}

// Lock sets an explicit lock with a reason and an expiry
func (r *AccountRepository) Lock(ctx context.Context, id, reason string, until time.Time) error {
	query := `
		UPDATE accounts
		SET is_locked = TRUE, lock_reason = $2, lock_until = $3, updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.pool.Exec(ctx, query, id, reason, until)
	return database.MapPostgresError(err)
}

// Unlock clears the lock and the failure counter
func (r *AccountRepository) Unlock(ctx context.Context, id string) error {
	query := `
		UPDATE accounts
		SET is_locked = FALSE, lock_reason = NULL, lock_until = NULL,
		    failed_attempts = 0, updated_at = NOW()
		WHERE id = $1
	`

	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// CountLocked returns how many accounts currently hold an active lock
func (r *AccountRepository) CountLocked(ctx context.Context) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM accounts
		WHERE is_locked = TRUE AND lock_until > NOW()
	`

	var count int64
	if err := r.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}

// RecordSuccessfulLogin applies all post-success mutations in one statement:
// history appends, last-login snapshot, counter reset.
func (r *AccountRepository) RecordSuccessfulLogin(ctx context.Context, account *models.Account) error {
	query := `
		UPDATE accounts
		SET device_history = $2, location_history = $3,
		    last_login = $4, last_location = $5,
		    failed_attempts = 0, updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.pool.Exec(ctx, query,
		account.ID,
		account.DeviceHistory,
		account.LocationHistory,
		account.LastLogin,
		account.LastLocation,
	)
	return database.MapPostgresError(err)
}

// SetTOTP stores the encrypted TOTP secret and toggles enrollment
func (r *AccountRepository) SetTOTP(ctx context.Context, id string, enabled bool, secret, nonce []byte) error {
	query := `
		UPDATE accounts
		SET totp_enabled = $2, totp_secret = $3, totp_nonce = $4, updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.pool.Exec(ctx, query, id, enabled, secret, nonce)
	return database.MapPostgresError(err)
}

// UnlockExpired releases locks whose window has passed. Returns the number of
// accounts released; used by the background cleanup.
func (r *AccountRepository) UnlockExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE accounts
		SET is_locked = FALSE, lock_reason = NULL, lock_until = NULL, updated_at = NOW()
		WHERE is_locked = TRUE AND lock_until IS NOT NULL AND lock_until <= $1
	`

	tag, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}
