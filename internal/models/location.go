package models

import (
	"database/sql/driver"
	"encoding/json"
)

// Location is a resolved, approximate geolocation for an IP address.
// The zero coordinates paired with "Unknown" fields mean the lookup failed;
// "Local"/"Private Network" means the address was in a private range and
// no external lookup was performed.
type Location struct {
	City      string  `json:"city"`
	Country   string  `json:"country"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	IP        string  `json:"ip,omitempty"`
}

// Unknown reports whether the location carries no usable geographic data.
func (l Location) Unknown() bool {
	return l.Latitude == 0 && l.Longitude == 0 && (l.City == "Unknown" || l.City == "")
}

// Scan implements sql.Scanner for JSONB
func (l *Location) Scan(value interface{}) error {
	return scanJSON(value, l)
}

// Value implements driver.Valuer for JSONB
func (l Location) Value() (driver.Value, error) {
	return json.Marshal(l)
}
