package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Account is the identity record. It is created at registration, never
// hard-deleted, and mutated only by the authentication pipeline after an
// attempt reaches a terminal state (plus the admin unlock action).
type Account struct {
	ID              string          `db:"id"`
	Email           string          `db:"email"`
	PasswordHash    string          `db:"password_hash"`
	FirstName       string          `db:"first_name"`
	LastName        string          `db:"last_name"`
	Role            string          `db:"role"` // "user", "admin"
	IsLocked        bool            `db:"is_locked"`
	LockReason      *string         `db:"lock_reason"`
	LockUntil       *time.Time      `db:"lock_until"`
	FailedAttempts  int             `db:"failed_attempts"`
	DeviceHistory   DeviceHistory   `db:"device_history"`
	LocationHistory LocationHistory `db:"location_history"`
	LastLogin       *LoginSnapshot  `db:"last_login"`
	LastLocation    *Location       `db:"last_location"`
	TOTPEnabled     bool            `db:"totp_enabled"`
	TOTPSecret      []byte          `db:"totp_secret"` // AES-256-GCM ciphertext
	TOTPNonce       []byte          `db:"totp_nonce"`
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
}

// LockedNow reports whether an explicit lock is still in effect.
func (a *Account) LockedNow(now time.Time) bool {
	return a.IsLocked && a.LockUntil != nil && a.LockUntil.After(now)
}

// KnownDevice is one entry of an account's device history. Fingerprints are
// heuristic (hash of request metadata), not proof of device identity.
type KnownDevice struct {
	Fingerprint string    `json:"fingerprint"`
	DeviceName  string    `json:"device_name"`
	Browser     string    `json:"browser"`
	OS          string    `json:"os"`
	FirstSeen   time.Time `json:"first_seen"`
	LastUsed    time.Time `json:"last_used"`
	IsVerified  bool      `json:"is_verified"`
}

// KnownLocation is one entry of an account's location history.
type KnownLocation struct {
	IP        string    `json:"ip"`
	City      string    `json:"city"`
	Country   string    `json:"country"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
}

// LoginSnapshot records the most recent successful login.
type LoginSnapshot struct {
	Timestamp time.Time `json:"timestamp"`
	IP        string    `json:"ip"`
	City      string    `json:"city"`
	Country   string    `json:"country"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
}

type DeviceHistory []KnownDevice

type LocationHistory []KnownLocation

// Scan implements sql.Scanner for JSONB
func (dh *DeviceHistory) Scan(value interface{}) error {
	return scanJSON(value, dh)
}

// Value implements driver.Valuer for JSONB
func (dh DeviceHistory) Value() (driver.Value, error) {
	if dh == nil {
		return json.Marshal(DeviceHistory{})
	}
	return json.Marshal(dh)
}

// Scan implements sql.Scanner for JSONB
func (lh *LocationHistory) Scan(value interface{}) error {
	return scanJSON(value, lh)
}

// Value implements driver.Valuer for JSONB
func (lh LocationHistory) Value() (driver.Value, error) {
	if lh == nil {
		return json.Marshal(LocationHistory{})
	}
	return json.Marshal(lh)
}

func scanJSON(value interface{}, dest interface{}) error {
	if value == nil {
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return ErrBadRequest
	}

	return json.Unmarshal(bytes, dest)
}
