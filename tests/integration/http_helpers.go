package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/mfontaine/aegis/internal/auth"
	"github.com/mfontaine/aegis/internal/config"
	"github.com/mfontaine/aegis/internal/counter"
	"github.com/mfontaine/aegis/internal/database"
	"github.com/mfontaine/aegis/internal/handlers"
	middlewareCustom "github.com/mfontaine/aegis/internal/middleware"
	"github.com/mfontaine/aegis/internal/models"
	"github.com/mfontaine/aegis/internal/repositories"
	"github.com/mfontaine/aegis/internal/routes"
	"github.com/mfontaine/aegis/internal/services"
	pkghttp "github.com/mfontaine/aegis/pkg/http"
	pkglogger "github.com/mfontaine/aegis/pkg/logger"
)

// CapturingNotifier records all outbound security mail for assertions
type CapturingNotifier struct {
	mu             sync.Mutex
	challengeCodes map[string]string // email -> last code
	lockAlerts     []string
	riskAlerts     []string
}

func NewCapturingNotifier() *CapturingNotifier {
	return &CapturingNotifier{challengeCodes: make(map[string]string)}
}

func (n *CapturingNotifier) SendChallengeCode(ctx context.Context, email, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.challengeCodes[email] = code
	return nil
}

func (n *CapturingNotifier) SendHighRiskAlert(ctx context.Context, email string, attempt *models.LoginAttempt) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.riskAlerts = append(n.riskAlerts, email)
	return nil
}

func (n *CapturingNotifier) SendLockAlert(ctx context.Context, email, reason string, until time.Time) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.lockAlerts = append(n.lockAlerts, email)
	return nil
}

// ChallengeCodeFor returns the last code mailed to the address
func (n *CapturingNotifier) ChallengeCodeFor(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.challengeCodes[email]
}

// LockAlerts returns the addresses that received lock alerts
func (n *CapturingNotifier) LockAlerts() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.lockAlerts...)
}

// staticResolver pins every lookup to one location so risk factors are
// deterministic in tests
type staticResolver struct {
	location models.Location
}

func (r *staticResolver) Resolve(ctx context.Context, ip string) models.Location {
	loc := r.location
	loc.IP = ip
	return loc
}

// TestServer wraps httptest.Server with the full service stack
type TestServer struct {
	Server   *httptest.Server
	DB       *database.DB
	Notifier *CapturingNotifier
	Config   *config.Config
}

// NewTestServer wires the production router against a real database with
// a capturing notifier and a pinned geo resolver.
func NewTestServer(db *database.DB) *TestServer {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:         "test-secret-32-characters-long-!!",
			AccessTokenExpiry: 15 * time.Minute,
			CleanupInterval:   time.Hour,
			TOTPEncryptionKey: "0123456789abcdef0123456789abcdef",
			TOTPIssuer:        "AegisTest",
		},
		Risk: config.RiskConfig{
			VelocityLimit:        5,
			VelocityWindow:       time.Hour,
			IPBlacklistDuration:  time.Hour,
			AccountLockDuration:  30 * time.Minute,
			HighRiskLockDuration: time.Hour,
			AttemptRetention:     90 * 24 * time.Hour,
		},
		Server: config.ServerConfig{
			Port: "0",
			Env:  "test",
		},
	}

	accountRepo := repositories.NewAccountRepository(db)
	attemptRepo := repositories.NewLoginAttemptRepository(db)
	challengeRepo := repositories.NewChallengeRepository(db)
	eventRepo := repositories.NewSuspiciousEventRepository(db)

	auditLogger := pkglogger.NewAuditLogger(logger)
	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry)
	totpManager, err := auth.NewTOTPManager([]byte(cfg.Auth.TOTPEncryptionKey), cfg.Auth.TOTPIssuer)
	if err != nil {
		panic(err)
	}

	notifier := NewCapturingNotifier()
	challengeService := services.NewChallengeService(challengeRepo, notifier, logger)

	authService := services.NewAuthService(services.AuthServiceDeps{
		Accounts:   accountRepo,
		Attempts:   attemptRepo,
		Events:     eventRepo,
		Challenges: challengeService,
		Counters:   counter.NewMemoryStore(),
		Geo:        &staticResolver{location: models.Location{Country: "PT", City: "Lisbon", Latitude: 38.7223, Longitude: -9.1393}},
		Tokens:     tokenManager,
		TOTP:       totpManager,
		Timing:     auth.NewTimingDelay(auth.TimingConfig{}),
		Notifier:   notifier,
		Risk:       cfg.Risk,
		Logger:     logger,
		Audit:      auditLogger,
	})

	totpService := services.NewTOTPService(accountRepo, totpManager, logger, auditLogger)
	adminService := services.NewAdminService(attemptRepo, eventRepo, accountRepo, logger, auditLogger)

	ipConfig := &pkghttp.IPConfig{}
	authHandler := handlers.NewAuthHandler(authService, ipConfig)
	totpHandler := handlers.NewTOTPHandler(totpService)
	adminHandler := handlers.NewAdminHandler(adminService)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	// High transport rate limit so tests exercise the pipeline's own
	// velocity counters, not the per-IP request cap.
	routes.RegisterRoutes(r, authHandler, totpHandler, adminHandler, tokenManager, accountRepo,
		middlewareCustom.RateLimitConfig{RequestsPerMinute: 10000, IPConfig: ipConfig})

	return &TestServer{
		Server:   httptest.NewServer(r),
		DB:       db,
		Notifier: notifier,
		Config:   cfg,
	}
}

// Close shuts down the test server
func (ts *TestServer) Close() {
	if ts.Server != nil {
		ts.Server.Close()
	}
}

// Request makes an HTTP request to the test server
func (ts *TestServer) Request(method, path string, body interface{}, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, ts.Server.URL+path, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	return http.DefaultClient.Do(req)
}

// RequestWithAuth makes an authenticated HTTP request with a bearer token
func (ts *TestServer) RequestWithAuth(method, path, token string, body interface{}) (*http.Response, error) {
	return ts.Request(method, path, body, map[string]string{
		"Authorization": "Bearer " + token,
	})
}

// ParseJSONResponse parses the JSON response body into target
func ParseJSONResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(target)
}
