package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Suspicious event types
const (
	EventTypeBruteForce       = "brute_force"
	EventTypeImpossibleTravel = "impossible_travel"
	EventTypeNewDevice        = "new_device"
	EventTypeNewLocation      = "new_location"
	EventTypeVelocityExceeded = "velocity_limit_exceeded"
	EventTypeAccountLocked    = "account_locked"
	EventTypeHighRiskLogin    = "high_risk_login"
	EventTypeOddLoginTime     = "odd_login_time"
)

// Severities
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// SuspiciousEvent is an append-only security log entry emitted by the
// authentication pipeline. Only the administrative resolve action mutates it.
type SuspiciousEvent struct {
	ID         string       `db:"id"`
	AccountID  *string      `db:"account_id"`
	Email      string       `db:"email"`
	Type       string       `db:"type"`
	Severity   string       `db:"severity"`
	Details    EventDetails `db:"details"`
	IP         string       `db:"ip"`
	Location   Location     `db:"location"`
	Resolved   bool         `db:"resolved"`
	ResolvedAt *time.Time   `db:"resolved_at"`
	ResolvedBy *string      `db:"resolved_by"`
	CreatedAt  time.Time    `db:"created_at"`
}

// EventDetails holds the free-form detail payload for an event
type EventDetails map[string]interface{}

// Scan implements sql.Scanner for JSONB
func (ed *EventDetails) Scan(value interface{}) error {
	if value == nil {
		*ed = make(EventDetails)
		return nil
	}
	return scanJSON(value, ed)
}

// Value implements driver.Valuer for JSONB
func (ed EventDetails) Value() (driver.Value, error) {
	if ed == nil {
		return nil, nil
	}
	return json.Marshal(ed)
}
