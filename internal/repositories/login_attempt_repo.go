package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
	"github.com/mfontaine/aegis/internal/database"
	"github.com/mfontaine/aegis/internal/models"
)

// LoginAttemptRepository handles database operations for login attempts
type LoginAttemptRepository struct {
	pool *pgxpool.Pool
}

func NewLoginAttemptRepository(db *database.DB) *LoginAttemptRepository {
	return &LoginAttemptRepository{pool: db.Pool}
}

const attemptColumns = `
	id, account_id, email, ip, user_agent,
	device_fingerprint, device_name, browser, os, location,
	risk_score, risk_level, status, reasons,
	otp_sent, otp_verified, ip_rate_limited, user_rate_limited,
	is_new_device, is_new_location, is_impossible_travel, is_odd_login_time,
	attempt_time, expires_at`

func scanAttemptRow(scanner rowScanner) (*models.LoginAttempt, error) {
	var attempt models.LoginAttempt
	var accountID *string

	err := scanner.Scan(
		&attempt.ID, &accountID, &attempt.Email, &attempt.IP, &attempt.UserAgent,
		&attempt.DeviceFingerprint, &attempt.DeviceName, &attempt.Browser, &attempt.OS, &attempt.Location,
		&attempt.RiskScore, &attempt.RiskLevel, &attempt.Status, pq.Array(&attempt.Reasons),
		&attempt.OTPSent, &attempt.OTPVerified, &attempt.IPRateLimited, &attempt.UserRateLimited,
		&attempt.IsNewDevice, &attempt.IsNewLocation, &attempt.IsImpossibleTravel, &attempt.IsOddLoginTime,
		&attempt.AttemptTime, &attempt.ExpiresAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	attempt.AccountID = accountID

	return &attempt, nil
}

func scanAttemptRows(rows pgx.Rows) ([]*models.LoginAttempt, error) {
	defer rows.Close()

	attempts := make([]*models.LoginAttempt, 0)
	for rows.Next() {
		attempt, err := scanAttemptRow(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, attempt)
	}
	return attempts, rows.Err()
}

// Create persists a new attempt and fills in its generated ID
func (r *LoginAttemptRepository) Create(ctx context.Context, attempt *models.LoginAttempt) error {
	query := `
		INSERT INTO login_attempts (
			account_id, email, ip, user_agent,
			device_fingerprint, device_name, browser, os, location,
			risk_score, risk_level, status, reasons,
			otp_sent, otp_verified, ip_rate_limited, user_rate_limited,
			is_new_device, is_new_location, is_impossible_travel, is_odd_login_time,
			attempt_time, expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
		        $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
		RETURNING id
	`

	err := r.pool.QueryRow(ctx, query,
		attempt.AccountID, attempt.Email, attempt.IP, attempt.UserAgent,
		attempt.DeviceFingerprint, attempt.DeviceName, attempt.Browser, attempt.OS, attempt.Location,
		attempt.RiskScore, attempt.RiskLevel, attempt.Status, pq.Array(attempt.Reasons),
		attempt.OTPSent, attempt.OTPVerified, attempt.IPRateLimited, attempt.UserRateLimited,
		attempt.IsNewDevice, attempt.IsNewLocation, attempt.IsImpossibleTravel, attempt.IsOddLoginTime,
		attempt.AttemptTime, attempt.ExpiresAt,
	).Scan(&attempt.ID)

	return database.MapPostgresError(err)
}

// GetByID retrieves one attempt
func (r *LoginAttemptRepository) GetByID(ctx context.Context, id string) (*models.LoginAttempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM login_attempts WHERE id = $1`

	return scanAttemptRow(r.pool.QueryRow(ctx, query, id))
}

// UpdateStatus finalizes an attempt. Refuses to touch rows already in a
// terminal state so the audit trail stays immutable.
func (r *LoginAttemptRepository) UpdateStatus(ctx context.Context, id, status string) error {
	query := `
		UPDATE login_attempts
		SET status = $2,
		    otp_verified = CASE WHEN $2 = 'otp_verified' THEN TRUE ELSE otp_verified END
		WHERE id = $1 AND status IN ('received', 'otp_pending')
	`

	tag, err := r.pool.Exec(ctx, query, id, status)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// AttemptFilter narrows an attempt listing. Zero-value fields are ignored.
type AttemptFilter struct {
	Email     string
	RiskLevel string
	Country   string
}

// List returns attempts newest first, optionally filtered
func (r *LoginAttemptRepository) List(ctx context.Context, filter AttemptFilter, limit, offset int) ([]*models.LoginAttempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM login_attempts WHERE 1=1`
	args := make([]interface{}, 0, 5)

	if filter.Email != "" {
		args = append(args, filter.Email)
		query += fmt.Sprintf(" AND LOWER(email) = LOWER($%d)", len(args))
	}
	if filter.RiskLevel != "" {
		args = append(args, filter.RiskLevel)
		query += fmt.Sprintf(" AND risk_level = $%d", len(args))
	}
	if filter.Country != "" {
		args = append(args, filter.Country)
		query += fmt.Sprintf(" AND location->>'country' = $%d", len(args))
	}

	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY attempt_time DESC LIMIT $%d", len(args))
	args = append(args, offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return scanAttemptRows(rows)
}

// ListByAccount returns the login history for one account, newest first
func (r *LoginAttemptRepository) ListByAccount(ctx context.Context, accountID string, limit int) ([]*models.LoginAttempt, error) {
	query := `
		SELECT ` + attemptColumns + `
		FROM login_attempts
		WHERE account_id = $1
		ORDER BY attempt_time DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return scanAttemptRows(rows)
}

// AttemptStats aggregates the audit trail for the admin dashboard
type AttemptStats struct {
	Total      int64 `json:"total"`
	Success    int64 `json:"success"`
	Failed     int64 `json:"failed"`
	Blocked    int64 `json:"blocked"`
	OTPPending int64 `json:"otp_pending"`
	Critical   int64 `json:"critical"`
	Warning    int64 `json:"warning"`
}

// Stats aggregates counts by status and risk level since the given time
func (r *LoginAttemptRepository) Stats(ctx context.Context, since time.Time) (*AttemptStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status IN ('success', 'otp_verified')),
			COUNT(*) FILTER (WHERE status = 'failed'),
			COUNT(*) FILTER (WHERE status = 'blocked'),
			COUNT(*) FILTER (WHERE status = 'otp_pending'),
			COUNT(*) FILTER (WHERE risk_level = 'critical'),
			COUNT(*) FILTER (WHERE risk_level = 'warning')
		FROM login_attempts
		WHERE attempt_time >= $1
	`

	var stats AttemptStats
	err := r.pool.QueryRow(ctx, query, since).Scan(
		&stats.Total, &stats.Success, &stats.Failed,
		&stats.Blocked, &stats.OTPPending,
		&stats.Critical, &stats.Warning,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &stats, nil
}

// CountryCount is one row of the per-country attempt breakdown
type CountryCount struct {
	Country string `json:"country"`
	Count   int64  `json:"count"`
}

// TopCountries returns the most active source countries since the given time
func (r *LoginAttemptRepository) TopCountries(ctx context.Context, since time.Time, limit int) ([]CountryCount, error) {
	query := `
		SELECT location->>'country', COUNT(*)
		FROM login_attempts
		WHERE attempt_time >= $1
		  AND COALESCE(location->>'country', '') NOT IN ('', 'Unknown')
		GROUP BY location->>'country'
		ORDER BY COUNT(*) DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, since, limit)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	counts := make([]CountryCount, 0)
	for rows.Next() {
		var c CountryCount
		if err := rows.Scan(&c.Country, &c.Count); err != nil {
			return nil, database.MapPostgresError(err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// HourlyCount is the attempt volume for one UTC hour bucket
type HourlyCount struct {
	Hour  time.Time `json:"hour"`
	Count int64     `json:"count"`
}

// HourlyCounts buckets attempt volume by hour since the given time
func (r *LoginAttemptRepository) HourlyCounts(ctx context.Context, since time.Time) ([]HourlyCount, error) {
	query := `
		SELECT date_trunc('hour', attempt_time AT TIME ZONE 'UTC'), COUNT(*)
		FROM login_attempts
		WHERE attempt_time >= $1
		GROUP BY 1
		ORDER BY 1
	`

	rows, err := r.pool.Query(ctx, query, since)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	counts := make([]HourlyCount, 0)
	for rows.Next() {
		var c HourlyCount
		if err := rows.Scan(&c.Hour, &c.Count); err != nil {
			return nil, database.MapPostgresError(err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// LocationMarker is one geolocated attempt for the admin map view
type LocationMarker struct {
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	City        string    `json:"city"`
	Country     string    `json:"country"`
	RiskLevel   string    `json:"risk_level"`
	Status      string    `json:"status"`
	AttemptTime time.Time `json:"attempt_time"`
}

// LocationMarkers returns recent attempts that resolved to real coordinates
func (r *LoginAttemptRepository) LocationMarkers(ctx context.Context, since time.Time, limit int) ([]LocationMarker, error) {
	query := `
		SELECT
			(location->>'latitude')::float8,
			(location->>'longitude')::float8,
			COALESCE(location->>'city', ''),
			COALESCE(location->>'country', ''),
			risk_level, status, attempt_time
		FROM login_attempts
		WHERE attempt_time >= $1
		  AND location->>'latitude' IS NOT NULL
		  AND NOT ((location->>'latitude')::float8 = 0 AND (location->>'longitude')::float8 = 0)
		ORDER BY attempt_time DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, since, limit)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	markers := make([]LocationMarker, 0)
	for rows.Next() {
		var m LocationMarker
		if err := rows.Scan(&m.Latitude, &m.Longitude, &m.City, &m.Country, &m.RiskLevel, &m.Status, &m.AttemptTime); err != nil {
			return nil, database.MapPostgresError(err)
		}
		markers = append(markers, m)
	}
	return markers, rows.Err()
}

// DeleteExpired removes attempts past their retention window. Returns the
// count of deleted rows; used by the background cleanup.
func (r *LoginAttemptRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `DELETE FROM login_attempts WHERE expires_at <= $1`

	tag, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}
