package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mfontaine/aegis/internal/models"
)

// TestAccount generates unique test credentials
func TestAccount(suffix string) (email, password string) {
	email = fmt.Sprintf("test-%d-%s@example.com", time.Now().UnixNano(), suffix)
	password = "TestPassword123!x"
	return
}

// SeedHistory arranges an account so its next login lands in the warning
// band regardless of wall-clock time: the device is unfamiliar and prior
// failed attempts add weight, while the location matches the test server's
// pinned resolver so no location factors fire.
func SeedHistory(ctx context.Context, pool *pgxpool.Pool, accountID string) error {
	past := time.Now().Add(-60 * 24 * time.Hour)

	devices, err := json.Marshal(models.DeviceHistory{{
		Fingerprint: "legacy-device-fingerprint",
		DeviceName:  "Chrome on Windows",
		Browser:     "Chrome",
		OS:          "Windows",
		FirstSeen:   past,
		LastUsed:    past,
	}})
	if err != nil {
		return err
	}

	locations, err := json.Marshal(models.LocationHistory{{
		IP:        "198.51.100.20",
		City:      "Lisbon",
		Country:   "PT",
		Latitude:  38.7223,
		Longitude: -9.1393,
		Timestamp: past,
	}})
	if err != nil {
		return err
	}

	_, err = pool.Exec(ctx, `
		UPDATE accounts
		SET device_history = $2, location_history = $3, failed_attempts = 3
		WHERE id = $1
	`, accountID, devices, locations)
	return err
}
