package geo

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/mfontaine/aegis/internal/models"
	"github.com/oschwald/geoip2-golang"
)

// MaxMindResolver resolves addresses from a local MaxMind City database.
// Preferred over the HTTP resolver when a .mmdb file is available, since it
// removes the external dependency from the login path.
type MaxMindResolver struct {
	reader *geoip2.Reader
	logger *slog.Logger
}

// NewMaxMindResolver opens the City database at the given path.
func NewMaxMindResolver(dbPath string, logger *slog.Logger) (*MaxMindResolver, error) {
	reader, err := geoip2.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open geoip database: %w", err)
	}

	return &MaxMindResolver{reader: reader, logger: logger}, nil
}

// Close releases the underlying database handle.
func (r *MaxMindResolver) Close() error {
	return r.reader.Close()
}

// Resolve looks up the location of an IP in the local database. Private
// ranges short-circuit; any failure degrades to Unknown.
func (r *MaxMindResolver) Resolve(ctx context.Context, ip string) models.Location {
	if IsPrivateIP(ip) {
		return LocalLocation(ip)
	}

	parsed := net.ParseIP(ip)
	if parsed == nil {
		return UnknownLocation(ip)
	}

	record, err := r.reader.City(parsed)
	if err != nil {
		r.logger.Warn("geoip database lookup failed", slog.String("ip", ip), slog.Any("error", err))
		return UnknownLocation(ip)
	}

	loc := models.Location{
		City:      record.City.Names["en"],
		Country:   record.Country.IsoCode,
		Latitude:  record.Location.Latitude,
		Longitude: record.Location.Longitude,
		IP:        ip,
	}
	if loc.City == "" {
		loc.City = "Unknown"
	}
	if loc.Country == "" {
		loc.Country = "Unknown"
	}

	return loc
}
