// Package geo resolves IP addresses to approximate locations and provides
// the great-circle distance used by risk scoring. Lookup failure is always
// degraded to an "Unknown" location; geolocation must never block
// authentication.
package geo

import (
	"context"
	"net/netip"

	"github.com/mfontaine/aegis/internal/models"
)

// Resolver maps an IP address to an approximate location.
type Resolver interface {
	Resolve(ctx context.Context, ip string) models.Location
}

// LocalLocation is returned for private, loopback and link-local addresses,
// which are never sent to an external lookup service.
func LocalLocation(ip string) models.Location {
	return models.Location{
		City:    "Local",
		Country: "Private Network",
		IP:      ip,
	}
}

// UnknownLocation is returned when a lookup fails for any reason.
func UnknownLocation(ip string) models.Location {
	return models.Location{
		City:    "Unknown",
		Country: "Unknown",
		IP:      ip,
	}
}

// IsPrivateIP reports whether the address is in a range that cannot be
// geolocated: RFC1918 IPv4 blocks, loopback, IPv6 unique-local and
// link-local.
func IsPrivateIP(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	return addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast()
}
