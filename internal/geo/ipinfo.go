package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mfontaine/aegis/internal/models"
)

const defaultIPInfoBaseURL = "https://ipinfo.io"

// IPInfoResolver resolves public addresses through the ipinfo.io JSON API.
type IPInfoResolver struct {
	client  *http.Client
	baseURL string
	token   string
	logger  *slog.Logger
}

// NewIPInfoResolver creates a resolver backed by ipinfo.io. An empty baseURL
// selects the public endpoint; token may be empty for the free tier.
func NewIPInfoResolver(baseURL, token string, timeout time.Duration, logger *slog.Logger) *IPInfoResolver {
	if baseURL == "" {
		baseURL = defaultIPInfoBaseURL
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	return &IPInfoResolver{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		logger:  logger,
	}
}

type ipinfoResponse struct {
	City    string `json:"city"`
	Country string `json:"country"`
	Loc     string `json:"loc"` // "lat,lon"
}

// Resolve looks up the location of an IP. Private ranges short-circuit to a
// fixed local result; every lookup failure degrades to Unknown.
func (r *IPInfoResolver) Resolve(ctx context.Context, ip string) models.Location {
	if IsPrivateIP(ip) {
		return LocalLocation(ip)
	}

	lookupURL := fmt.Sprintf("%s/%s", r.baseURL, url.PathEscape(ip))
	if r.token != "" {
		lookupURL += "?token=" + url.QueryEscape(r.token)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, lookupURL, nil)
	if err != nil {
		r.logger.Warn("geolocation request build failed", slog.String("ip", ip), slog.Any("error", err))
		return UnknownLocation(ip)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Warn("geolocation lookup failed", slog.String("ip", ip), slog.Any("error", err))
		return UnknownLocation(ip)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		r.logger.Warn("geolocation lookup returned non-OK status",
			slog.String("ip", ip),
			slog.Int("status", resp.StatusCode))
		return UnknownLocation(ip)
	}

	var payload ipinfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		r.logger.Warn("geolocation response decode failed", slog.String("ip", ip), slog.Any("error", err))
		return UnknownLocation(ip)
	}

	loc := models.Location{
		City:    payload.City,
		Country: payload.Country,
		IP:      ip,
	}
	if loc.City == "" {
		loc.City = "Unknown"
	}
	if loc.Country == "" {
		loc.Country = "Unknown"
	}

	if lat, lon, ok := parseLoc(payload.Loc); ok {
		loc.Latitude = lat
		loc.Longitude = lon
	}

	return loc
}

func parseLoc(raw string) (float64, float64, bool) {
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return 0, 0, false
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, false
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, false
	}

	return lat, lon, true
}
