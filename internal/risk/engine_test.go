package risk_test

import (
	"testing"
	"time"

	"github.com/mfontaine/aegis/internal/models"
	"github.com/mfontaine/aegis/internal/risk"
	"github.com/stretchr/testify/assert"
)

// noon avoids the odd-hour window in every test that is not about it
var noon = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func baseContext() risk.Context {
	return risk.Context{
		IP:                "203.0.113.7",
		UserAgent:         "Mozilla/5.0",
		DeviceFingerprint: "fp-known",
		CurrentLocation: models.Location{
			City: "Lisbon", Country: "PT", Latitude: 38.7223, Longitude: -9.1393,
		},
		Timestamp: noon,
	}
}

func knownHistory() risk.History {
	return risk.History{
		LastLogin: &models.LoginSnapshot{
			Timestamp: noon.Add(-48 * time.Hour),
			IP:        "198.51.100.1",
			City:      "Lisbon", Country: "PT",
			Latitude: 38.7223, Longitude: -9.1393,
		},
		DeviceHistory: models.DeviceHistory{
			{Fingerprint: "fp-known", Browser: "Chrome", OS: "macOS"},
		},
		LocationHistory: models.LocationHistory{
			{IP: "198.51.100.1", City: "Lisbon", Country: "PT", Latitude: 38.7223, Longitude: -9.1393, Timestamp: noon.Add(-60 * 24 * time.Hour)},
		},
	}
}

func TestScore_KnownDeviceAndLocationIsSafe(t *testing.T) {
	a := risk.Score(baseContext(), knownHistory())

	assert.Equal(t, 0, a.Score)
	assert.Equal(t, models.RiskLevelSafe, a.Level)
	assert.Empty(t, a.Reasons)
	assert.False(t, a.Factors.IsNewDevice)
	assert.False(t, a.Factors.IsNewLocation)
}

func TestScore_FirstEverLoginNotPenalized(t *testing.T) {
	ctx := baseContext()
	ctx.DeviceFingerprint = "fp-never-seen"

	a := risk.Score(ctx, risk.History{})

	assert.Equal(t, 0, a.Score)
	assert.Equal(t, models.RiskLevelSafe, a.Level)
	assert.NotContains(t, a.Reasons, "new_device")
	assert.NotContains(t, a.Reasons, "new_location")
	// The factors still report the raw observation
	assert.True(t, a.Factors.IsNewDevice)
	assert.True(t, a.Factors.IsNewLocation)
}

func TestScore_NewDevice(t *testing.T) {
	ctx := baseContext()
	ctx.DeviceFingerprint = "fp-new"

	a := risk.Score(ctx, knownHistory())

	assert.Equal(t, 30, a.Score)
	assert.Contains(t, a.Reasons, "new_device")
	assert.Equal(t, models.RiskLevelSafe, a.Level)
}

func TestScore_NewLocation(t *testing.T) {
	ctx := baseContext()
	ctx.CurrentLocation = models.Location{City: "Porto", Country: "PT", Latitude: 41.1579, Longitude: -8.6291}

	a := risk.Score(ctx, knownHistory())

	assert.Equal(t, 25, a.Score)
	assert.Contains(t, a.Reasons, "new_location")
}

func TestScore_NewDeviceAndLocationCombination(t *testing.T) {
	ctx := baseContext()
	ctx.DeviceFingerprint = "fp-new"
	ctx.CurrentLocation = models.Location{City: "Porto", Country: "PT", Latitude: 41.1579, Longitude: -8.6291}

	a := risk.Score(ctx, knownHistory())

	// 30 + 25 + 15, warning band
	assert.Equal(t, 70, a.Score)
	assert.Contains(t, a.Reasons, "new_device_and_location_combination")
	assert.Equal(t, models.RiskLevelWarning, a.Level)
}

func TestScore_ImpossibleTravel(t *testing.T) {
	// Last login 2000 km away, 10 minutes ago: ~12,000 km/h
	history := knownHistory()
	history.LastLogin = &models.LoginSnapshot{
		Timestamp: noon.Add(-10 * time.Minute),
		City:      "Warsaw", Country: "PL",
		Latitude: 52.2297, Longitude: 21.0122,
	}

	a := risk.Score(baseContext(), history)

	assert.True(t, a.Factors.IsImpossibleTravel)
	assert.Contains(t, a.Reasons, "impossible_travel")
	assert.Equal(t, 40, a.Score)
}

func TestScore_ImpossibleTravelElapsedBounds(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		flagged bool
	}{
		{"under five minutes", 3 * time.Minute, false},
		{"over 24 hours", 25 * time.Hour, false},
		{"inside window", 30 * time.Minute, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			history := knownHistory()
			history.LastLogin = &models.LoginSnapshot{
				Timestamp: noon.Add(-tt.elapsed),
				City:      "Sydney", Country: "AU",
				Latitude: -33.8688, Longitude: 151.2093,
			}

			a := risk.Score(baseContext(), history)
			assert.Equal(t, tt.flagged, a.Factors.IsImpossibleTravel)
		})
	}
}

func TestScore_ImpossibleTravelRequiresPriorLogin(t *testing.T) {
	history := knownHistory()
	history.LastLogin = nil

	a := risk.Score(baseContext(), history)
	assert.False(t, a.Factors.IsImpossibleTravel)
}

func TestScore_OddHour(t *testing.T) {
	tests := []struct {
		hour int
		odd  bool
	}{
		{0, false}, {1, false}, {2, true}, {3, true}, {4, true}, {5, false}, {14, false}, {23, false},
	}

	for _, tt := range tests {
		ctx := baseContext()
		ctx.Timestamp = time.Date(2025, 6, 15, tt.hour, 30, 0, 0, time.UTC)

		a := risk.Score(ctx, knownHistory())
		assert.Equal(t, tt.odd, a.Factors.IsOddLoginTime, "hour %d", tt.hour)
		if tt.odd {
			assert.Contains(t, a.Reasons, "odd_login_time")
		}
	}
}

func TestScore_FailedAttemptsCappedAt15(t *testing.T) {
	tests := []struct {
		attempts int
		points   int
		reason   string
	}{
		{0, 0, ""},
		{1, 5, "failed_attempts_1"},
		{2, 10, "failed_attempts_2"},
		{3, 15, "failed_attempts_3"},
		{7, 15, "failed_attempts_7"},
	}

	for _, tt := range tests {
		ctx := baseContext()
		ctx.FailedAttemptsBefore = tt.attempts

		a := risk.Score(ctx, knownHistory())
		assert.Equal(t, tt.points, a.Score, "attempts=%d", tt.attempts)
		if tt.reason != "" {
			assert.Contains(t, a.Reasons, tt.reason)
		}
	}
}

func TestScore_FlaggedIP(t *testing.T) {
	ctx := baseContext()
	ctx.IP = "198.51.100.1"

	// Recent history entry from the same IP
	history := knownHistory()
	history.LocationHistory[0].Timestamp = noon.Add(-5 * 24 * time.Hour)

	a := risk.Score(ctx, history)
	assert.True(t, a.Factors.IsIPFlagged)
	assert.Contains(t, a.Reasons, "flagged_ip")
}

func TestScore_FlaggedIPOlderThan30DaysIgnored(t *testing.T) {
	ctx := baseContext()
	ctx.IP = "198.51.100.1"

	a := risk.Score(ctx, knownHistory()) // entry is 60 days old
	assert.False(t, a.Factors.IsIPFlagged)
}

func TestScore_CappedAt100(t *testing.T) {
	// Every factor fires: 30+25+40+10+15+20+15 = 155, cap at 100
	ctx := baseContext()
	ctx.DeviceFingerprint = "fp-new"
	ctx.CurrentLocation = models.Location{City: "Tokyo", Country: "JP", Latitude: 35.6762, Longitude: 139.6503}
	ctx.Timestamp = time.Date(2025, 6, 15, 3, 0, 0, 0, time.UTC)
	ctx.FailedAttemptsBefore = 4
	ctx.IP = "198.51.100.1"

	history := knownHistory()
	history.LastLogin = &models.LoginSnapshot{
		Timestamp: ctx.Timestamp.Add(-20 * time.Minute),
		City:      "Lisbon", Country: "PT",
		Latitude: 38.7223, Longitude: -9.1393,
	}
	history.LocationHistory[0].Timestamp = ctx.Timestamp.Add(-24 * time.Hour)

	a := risk.Score(ctx, history)
	assert.Equal(t, 100, a.Score)
	assert.Equal(t, models.RiskLevelCritical, a.Level)
}

func TestLevel_Thresholds(t *testing.T) {
	tests := []struct {
		score int
		level string
	}{
		{0, models.RiskLevelSafe},
		{30, models.RiskLevelSafe},
		{31, models.RiskLevelWarning},
		{70, models.RiskLevelWarning},
		{71, models.RiskLevelCritical},
		{100, models.RiskLevelCritical},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.level, risk.Level(tt.score), "score %d", tt.score)
	}
}

func TestReasonDescription(t *testing.T) {
	assert.Equal(t, "Login from a new geographic location", risk.ReasonDescription("new_location"))
	assert.Equal(t, "some_unknown_tag", risk.ReasonDescription("some_unknown_tag"))
}
