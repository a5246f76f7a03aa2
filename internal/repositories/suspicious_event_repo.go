package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mfontaine/aegis/internal/database"
	"github.com/mfontaine/aegis/internal/models"
)

// SuspiciousEventRepository handles database operations for the security
// event log. Rows are append-only except for the resolve action.
type SuspiciousEventRepository struct {
	pool *pgxpool.Pool
}

func NewSuspiciousEventRepository(db *database.DB) *SuspiciousEventRepository {
	return &SuspiciousEventRepository{pool: db.Pool}
}

const eventColumns = `
	id, account_id, email, type, severity, details, ip, location,
	resolved, resolved_at, resolved_by, created_at`

func scanEventRow(scanner rowScanner) (*models.SuspiciousEvent, error) {
	var event models.SuspiciousEvent
	var accountID, resolvedBy *string
	var resolvedAt *time.Time

	err := scanner.Scan(
		&event.ID, &accountID, &event.Email, &event.Type, &event.Severity,
		&event.Details, &event.IP, &event.Location,
		&event.Resolved, &resolvedAt, &resolvedBy, &event.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	event.AccountID = accountID
	event.ResolvedAt = resolvedAt
	event.ResolvedBy = resolvedBy

	return &event, nil
}

func scanEventRows(rows pgx.Rows) ([]*models.SuspiciousEvent, error) {
	defer rows.Close()

	events := make([]*models.SuspiciousEvent, 0)
	for rows.Next() {
		event, err := scanEventRow(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// Create appends an event and fills in its generated ID
func (r *SuspiciousEventRepository) Create(ctx context.Context, event *models.SuspiciousEvent) error {
	query := `
		INSERT INTO suspicious_events (account_id, email, type, severity, details, ip, location)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	err := r.pool.QueryRow(ctx, query,
		event.AccountID, event.Email, event.Type, event.Severity,
		event.Details, event.IP, event.Location,
	).Scan(&event.ID, &event.CreatedAt)

	return database.MapPostgresError(err)
}

// EventFilter narrows the admin listing
type EventFilter struct {
	Type       string
	Severity   string
	Email      string
	Unresolved bool
}

// List returns events newest first, optionally filtered
func (r *SuspiciousEventRepository) List(ctx context.Context, filter EventFilter, limit, offset int) ([]*models.SuspiciousEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM suspicious_events WHERE 1=1`
	args := make([]interface{}, 0, 5)

	if filter.Type != "" {
		args = append(args, filter.Type)
		query += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if filter.Severity != "" {
		args = append(args, filter.Severity)
		query += fmt.Sprintf(" AND severity = $%d", len(args))
	}
	if filter.Email != "" {
		args = append(args, filter.Email)
		query += fmt.Sprintf(" AND LOWER(email) = LOWER($%d)", len(args))
	}
	if filter.Unresolved {
		query += " AND resolved = FALSE"
	}

	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))
	args = append(args, offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return scanEventRows(rows)
}

// GetByID retrieves one event
func (r *SuspiciousEventRepository) GetByID(ctx context.Context, id string) (*models.SuspiciousEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM suspicious_events WHERE id = $1`

	return scanEventRow(r.pool.QueryRow(ctx, query, id))
}

// Resolve marks an event handled by the given admin
func (r *SuspiciousEventRepository) Resolve(ctx context.Context, id, adminID string) error {
	query := `
		UPDATE suspicious_events
		SET resolved = TRUE, resolved_at = NOW(), resolved_by = $2
		WHERE id = $1 AND resolved = FALSE
	`

	tag, err := r.pool.Exec(ctx, query, id, adminID)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// CountUnresolvedSince returns the open event backlog for the time window
func (r *SuspiciousEventRepository) CountUnresolvedSince(ctx context.Context, since time.Time) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM suspicious_events
		WHERE resolved = FALSE AND created_at >= $1
	`

	var count int64
	if err := r.pool.QueryRow(ctx, query, since).Scan(&count); err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}

// CountByTypeSince aggregates event counts per type for the admin dashboard
func (r *SuspiciousEventRepository) CountByTypeSince(ctx context.Context, since time.Time) (map[string]int64, error) {
	query := `
		SELECT type, COUNT(*)
		FROM suspicious_events
		WHERE created_at >= $1
		GROUP BY type
	`

	rows, err := r.pool.Query(ctx, query, since)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var eventType string
		var count int64
		if err := rows.Scan(&eventType, &count); err != nil {
			return nil, database.MapPostgresError(err)
		}
		counts[eventType] = count
	}
	return counts, rows.Err()
}
