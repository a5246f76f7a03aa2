// Package device derives a heuristic device identity from request metadata.
//
// The fingerprint is a hash of caller-controlled headers, so it identifies a
// device only as long as the client does not lie about itself. It is a risk
// signal, never an authentication factor.
package device

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	ua "github.com/mileusna/useragent"
)

// Info describes the client software parsed from a User-Agent string.
type Info struct {
	Browser        string
	BrowserVersion string
	OS             string
	OSVersion      string
	DeviceType     string
	DeviceName     string
}

// Parse extracts browser, OS and device details from a User-Agent string.
// Every field defaults to "Unknown" when unparseable; DeviceType defaults
// to "desktop".
func Parse(userAgent string) Info {
	parsed := ua.Parse(userAgent)

	info := Info{
		Browser:        orUnknown(parsed.Name),
		BrowserVersion: orUnknown(parsed.Version),
		OS:             orUnknown(parsed.OS),
		OSVersion:      orUnknown(parsed.OSVersion),
		DeviceType:     "desktop",
		DeviceName:     orDefault(parsed.Device, "Desktop Device"),
	}

	switch {
	case parsed.Mobile:
		info.DeviceType = "mobile"
	case parsed.Tablet:
		info.DeviceType = "tablet"
	case parsed.Bot:
		info.DeviceType = "bot"
	}

	return info
}

// Fingerprint hashes the raw user agent, source IP and Accept-Language
// header (in that fixed order) into a stable hex identity. Identical inputs
// always produce the same fingerprint.
func Fingerprint(userAgent, ip, acceptLanguage string) string {
	sum := sha256.Sum256([]byte(userAgent + ip + acceptLanguage))
	return hex.EncodeToString(sum[:])
}

// Identifier returns a short browser_OS label for display in history entries.
func Identifier(userAgent string) string {
	parsed := ua.Parse(userAgent)
	return fmt.Sprintf("%s_%s", orUnknown(parsed.Name), orUnknown(parsed.OS))
}

func orUnknown(s string) string {
	return orDefault(s, "Unknown")
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
