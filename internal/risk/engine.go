// Package risk scores login attempts for fraud. The engine is pure: it takes
// the attempt context and the caller-supplied account history, performs no
// I/O, and returns a deterministic assessment.
package risk

import (
	"fmt"
	"time"

	"github.com/mfontaine/aegis/internal/geo"
	"github.com/mfontaine/aegis/internal/models"
)

// Factor weights. Each factor is evaluated independently; the sum is capped
// at 100.
const (
	pointsNewDevice        = 30
	pointsNewLocation      = 25
	pointsImpossibleTravel = 40
	pointsOddHour          = 10
	pointsFailedPerAttempt = 5
	pointsFailedCap        = 15
	pointsFlaggedIP        = 20
	pointsDeviceAndLoc     = 15
)

// Risk level thresholds over the 0-100 score.
const (
	safeMax    = 30
	warningMax = 70
)

// Impossible travel bounds: below the floor two logins are too close in time
// to be meaningful, above the ceiling too far apart to be suspicious.
const (
	travelMinElapsed = 5 * time.Minute
	travelMaxElapsed = 24 * time.Hour
	maxPlausibleKmh  = 900 // approx. max commercial flight speed
)

const flaggedIPWindow = 30 * 24 * time.Hour

// Context captures one login attempt as seen by the scorer.
type Context struct {
	IP                   string
	UserAgent            string
	DeviceFingerprint    string
	CurrentLocation      models.Location
	Timestamp            time.Time
	FailedAttemptsBefore int
}

// History is the stored account history the factors are evaluated against.
type History struct {
	LastLogin       *models.LoginSnapshot
	DeviceHistory   models.DeviceHistory
	LocationHistory models.LocationHistory
}

// Factors exposes each factor decision for downstream logging and audit.
type Factors struct {
	IsNewDevice        bool `json:"is_new_device"`
	IsNewLocation      bool `json:"is_new_location"`
	IsImpossibleTravel bool `json:"is_impossible_travel"`
	IsOddLoginTime     bool `json:"is_odd_login_time"`
	FailedAttempts     int  `json:"failed_attempts"`
	IsIPFlagged        bool `json:"is_ip_flagged"`
}

// Assessment is the scoring result.
type Assessment struct {
	Score   int      `json:"risk_score"`
	Level   string   `json:"risk_level"`
	Reasons []string `json:"reasons"`
	Factors Factors  `json:"factors"`
}

// Score evaluates every factor, sums the weights and caps the result at 100.
// A first-ever login (empty history) is never penalized for new device or
// new location.
func Score(ctx Context, history History) Assessment {
	score := 0
	reasons := make([]string, 0, 4)

	isNewDevice := !knownFingerprint(history.DeviceHistory, ctx.DeviceFingerprint)
	if isNewDevice && len(history.DeviceHistory) > 0 {
		score += pointsNewDevice
		reasons = append(reasons, "new_device")
	}

	isNewLocation := !knownLocation(history.LocationHistory, ctx.CurrentLocation)
	if isNewLocation && len(history.LocationHistory) > 0 {
		score += pointsNewLocation
		reasons = append(reasons, "new_location")
	}

	isImpossibleTravel := impossibleTravel(history.LastLogin, ctx.CurrentLocation, ctx.Timestamp)
	if isImpossibleTravel {
		score += pointsImpossibleTravel
		reasons = append(reasons, "impossible_travel")
	}

	isOddHour := oddLoginTime(ctx.Timestamp)
	if isOddHour {
		score += pointsOddHour
		reasons = append(reasons, "odd_login_time")
	}

	if ctx.FailedAttemptsBefore > 0 {
		points := ctx.FailedAttemptsBefore * pointsFailedPerAttempt
		if points > pointsFailedCap {
			points = pointsFailedCap
		}
		score += points
		reasons = append(reasons, fmt.Sprintf("failed_attempts_%d", ctx.FailedAttemptsBefore))
	}

	isIPFlagged := flaggedIP(ctx.IP, history.LocationHistory, ctx.Timestamp)
	if isIPFlagged {
		score += pointsFlaggedIP
		reasons = append(reasons, "flagged_ip")
	}

	// Compounding signal: both factors firing together outweighs their sum
	if isNewDevice && len(history.DeviceHistory) > 0 && isNewLocation && len(history.LocationHistory) > 0 {
		score += pointsDeviceAndLoc
		reasons = append(reasons, "new_device_and_location_combination")
	}

	if score > 100 {
		score = 100
	}

	return Assessment{
		Score:   score,
		Level:   Level(score),
		Reasons: reasons,
		Factors: Factors{
			IsNewDevice:        isNewDevice,
			IsNewLocation:      isNewLocation,
			IsImpossibleTravel: isImpossibleTravel,
			IsOddLoginTime:     isOddHour,
			FailedAttempts:     ctx.FailedAttemptsBefore,
			IsIPFlagged:        isIPFlagged,
		},
	}
}

// Level maps a score to its classification: safe up to 30, warning up to 70,
// critical above.
func Level(score int) string {
	switch {
	case score <= safeMax:
		return models.RiskLevelSafe
	case score <= warningMax:
		return models.RiskLevelWarning
	default:
		return models.RiskLevelCritical
	}
}

func knownFingerprint(history models.DeviceHistory, fingerprint string) bool {
	for _, d := range history {
		if d.Fingerprint == fingerprint {
			return true
		}
	}
	return false
}

// knownLocation matches on the (country, city) pair. Coordinate-radius
// matching would disambiguate same-named cities but would also reshuffle
// scores for existing histories; the tag match stays the default.
func knownLocation(history models.LocationHistory, current models.Location) bool {
	for _, l := range history {
		if l.Country == current.Country && l.City == current.City {
			return true
		}
	}
	return false
}

// impossibleTravel reports whether reaching the current location from the
// last login would require implausible speed.
func impossibleTravel(last *models.LoginSnapshot, current models.Location, now time.Time) bool {
	if last == nil || last.Timestamp.IsZero() {
		return false
	}

	elapsed := now.Sub(last.Timestamp)
	if elapsed < travelMinElapsed || elapsed > travelMaxElapsed {
		return false
	}

	distanceKm := geo.Distance(last.Latitude, last.Longitude, current.Latitude, current.Longitude)
	speedKmh := distanceKm / elapsed.Hours()

	return speedKmh > maxPlausibleKmh
}

// oddLoginTime reports whether the attempt falls in the 02:00-04:59 UTC
// window. Pinned to UTC so all instances of a deployment agree.
func oddLoginTime(ts time.Time) bool {
	hour := ts.UTC().Hour()
	return hour >= 2 && hour <= 4
}

// flaggedIP reports whether the current IP already appears in the location
// history within the last 30 days.
func flaggedIP(ip string, history models.LocationHistory, now time.Time) bool {
	cutoff := now.Add(-flaggedIPWindow)
	for _, l := range history {
		if l.IP == ip && l.Timestamp.After(cutoff) {
			return true
		}
	}
	return false
}

// ReasonDescription returns a human-readable description for a reason tag.
func ReasonDescription(reason string) string {
	if desc, ok := reasonDescriptions[reason]; ok {
		return desc
	}
	return reason
}

var reasonDescriptions = map[string]string{
	"new_device":                          "Login from a new or unrecognized device",
	"new_location":                        "Login from a new geographic location",
	"impossible_travel":                   "Impossible travel detected (too fast between locations)",
	"odd_login_time":                      "Login at unusual time of day",
	"failed_attempts_1":                   "1 failed login attempt before success",
	"failed_attempts_2":                   "2 failed login attempts before success",
	"failed_attempts_3":                   "3+ failed login attempts before success",
	"flagged_ip":                          "IP address previously flagged as suspicious",
	"new_device_and_location_combination": "New device and location combination",
	"velocity_limit_exceeded":             "Too many login attempts in short time",
}
