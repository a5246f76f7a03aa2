package models

import "time"

// Attempt statuses. An attempt starts at received and must be finalized to a
// terminal status before the response is returned; otp_pending is the only
// non-terminal persisted status (it resolves through challenge verification).
const (
	AttemptStatusReceived    = "received"
	AttemptStatusSuccess     = "success"
	AttemptStatusFailed      = "failed"
	AttemptStatusBlocked     = "blocked"
	AttemptStatusOTPPending  = "otp_pending"
	AttemptStatusOTPVerified = "otp_verified"
)

// Risk levels derived from the 0-100 risk score.
const (
	RiskLevelSafe     = "safe"
	RiskLevelWarning  = "warning"
	RiskLevelCritical = "critical"
)

// LoginAttempt is the audit record of one authentication try. Immutable after
// finalization; together the rows form an append-only audit trail.
type LoginAttempt struct {
	ID                string    `db:"id"`
	AccountID         *string   `db:"account_id"`
	Email             string    `db:"email"`
	IP                string    `db:"ip"`
	UserAgent         string    `db:"user_agent"`
	DeviceFingerprint string    `db:"device_fingerprint"`
	DeviceName        string    `db:"device_name"`
	Browser           string    `db:"browser"`
	OS                string    `db:"os"`
	Location          Location  `db:"location"`
	RiskScore         int       `db:"risk_score"`
	RiskLevel         string    `db:"risk_level"`
	Status            string    `db:"status"`
	Reasons           []string  `db:"reasons"`
	OTPSent           bool      `db:"otp_sent"`
	OTPVerified       bool      `db:"otp_verified"`
	IPRateLimited     bool      `db:"ip_rate_limited"`
	UserRateLimited   bool      `db:"user_rate_limited"`
	IsNewDevice        bool     `db:"is_new_device"`
	IsNewLocation      bool     `db:"is_new_location"`
	IsImpossibleTravel bool     `db:"is_impossible_travel"`
	IsOddLoginTime     bool     `db:"is_odd_login_time"`
	AttemptTime       time.Time `db:"attempt_time"`
	ExpiresAt         time.Time `db:"expires_at"`
}

// Terminal reports whether the attempt status can no longer change.
func (a *LoginAttempt) Terminal() bool {
	switch a.Status {
	case AttemptStatusSuccess, AttemptStatusFailed, AttemptStatusBlocked, AttemptStatusOTPVerified:
		return true
	}
	return false
}
