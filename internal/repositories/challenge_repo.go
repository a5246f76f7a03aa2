package repositories

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mfontaine/aegis/internal/database"
	"github.com/mfontaine/aegis/internal/models"
)

// ChallengeRepository handles database operations for step-up challenges.
// Expiry is enforced on read: rows older than the TTL are treated as absent
// and physically removed by the background cleanup.
type ChallengeRepository struct {
	pool *pgxpool.Pool
}

func NewChallengeRepository(db *database.DB) *ChallengeRepository {
	return &ChallengeRepository{pool: db.Pool}
}

const challengeColumns = `
	id, account_id, email, code_hash, login_attempt_id,
	attempts, is_verified, created_at`

func scanChallengeRow(scanner rowScanner) (*models.Challenge, error) {
	var c models.Challenge

	err := scanner.Scan(
		&c.ID, &c.AccountID, &c.Email, &c.CodeHash, &c.LoginAttemptID,
		&c.Attempts, &c.IsVerified, &c.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &c, nil
}

// Create stores a challenge, replacing any previous one for the same login
// attempt.
func (r *ChallengeRepository) Create(ctx context.Context, challenge *models.Challenge) error {
	query := `
		INSERT INTO challenges (account_id, email, code_hash, login_attempt_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (login_attempt_id) DO UPDATE
		SET code_hash = EXCLUDED.code_hash, attempts = 0,
		    is_verified = FALSE, created_at = NOW()
		RETURNING id, created_at
	`

	err := r.pool.QueryRow(ctx, query,
		challenge.AccountID,
		challenge.Email,
		challenge.CodeHash,
		challenge.LoginAttemptID,
	).Scan(&challenge.ID, &challenge.CreatedAt)

	return database.MapPostgresError(err)
}

// GetActiveByAttemptID retrieves the live challenge for a login attempt.
// Expired or verified rows are treated as not found.
func (r *ChallengeRepository) GetActiveByAttemptID(ctx context.Context, attemptID string) (*models.Challenge, error) {
	query := `
		SELECT ` + challengeColumns + `
		FROM challenges
		WHERE login_attempt_id = $1
		  AND is_verified = FALSE
		  AND created_at > $2
	`

	cutoff := time.Now().Add(-models.ChallengeTTL)
	return scanChallengeRow(r.pool.QueryRow(ctx, query, attemptID, cutoff))
}

// IncrementAttempts records a failed verification try and returns the new count
func (r *ChallengeRepository) IncrementAttempts(ctx context.Context, id string) (int, error) {
	query := `
		UPDATE challenges
		SET attempts = attempts + 1
		WHERE id = $1
		RETURNING attempts
	`

	var attempts int
	err := r.pool.QueryRow(ctx, query, id).Scan(&attempts)
	return attempts, database.MapPostgresError(err)
}

// Delete removes a challenge outright (success or exhaustion)
func (r *ChallengeRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM challenges WHERE id = $1`

	_, err := r.pool.Exec(ctx, query, id)
	return database.MapPostgresError(err)
}

// DeleteExpired purges challenges past the TTL. Returns the count of deleted
// rows; used by the background cleanup.
func (r *ChallengeRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `DELETE FROM challenges WHERE created_at <= $1`

	tag, err := r.pool.Exec(ctx, query, now.Add(-models.ChallengeTTL))
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}
