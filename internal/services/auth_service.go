package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mfontaine/aegis/internal/auth"
	"github.com/mfontaine/aegis/internal/config"
	"github.com/mfontaine/aegis/internal/counter"
	"github.com/mfontaine/aegis/internal/device"
	"github.com/mfontaine/aegis/internal/geo"
	"github.com/mfontaine/aegis/internal/models"
	"github.com/mfontaine/aegis/internal/risk"
	pkgauth "github.com/mfontaine/aegis/pkg/auth"
	pkglogger "github.com/mfontaine/aegis/pkg/logger"
)

// AccountRepository is the account persistence the pipeline consumes
type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	GetByID(ctx context.Context, id string) (*models.Account, error)
	IncrementFailedAttempts(ctx context.Context, id string) (int, error)
	ResetFailedAttempts(ctx context.Context, id string) error
	Lock(ctx context.Context, id, reason string, until time.Time) error
	RecordSuccessfulLogin(ctx context.Context, account *models.Account) error
}

// AttemptRepository is the audit-trail persistence the pipeline consumes
type AttemptRepository interface {
	Create(ctx context.Context, attempt *models.LoginAttempt) error
	GetByID(ctx context.Context, id string) (*models.LoginAttempt, error)
	UpdateStatus(ctx context.Context, id, status string) error
}

// EventRecorder appends to the suspicious event log
type EventRecorder interface {
	Create(ctx context.Context, event *models.SuspiciousEvent) error
}

// Lock and block reasons shown to users and stored on accounts
const (
	lockReasonFailedAttempts = "multiple failed login attempts"
	lockReasonHighRisk       = "high-risk login attempt detected"
)

// AuthServiceDeps bundles the pipeline's collaborators
type AuthServiceDeps struct {
	Accounts   AccountRepository
	Attempts   AttemptRepository
	Events     EventRecorder
	Challenges *ChallengeService
	Counters   counter.Store
	Geo        geo.Resolver
	Tokens     *auth.TokenManager
	TOTP       *auth.TOTPManager
	Timing     *auth.TimingDelay
	Notifier   Notifier
	Risk       config.RiskConfig
	Logger     *slog.Logger
	Audit      *pkglogger.AuditLogger
}

// AuthService runs the risk-adaptive login pipeline: every attempt is scored
// and ends in exactly one of allow, challenge, or block. Failure responses
// are deliberately uniform so callers cannot probe which accounts exist.
type AuthService struct {
	accounts   AccountRepository
	attempts   AttemptRepository
	events     EventRecorder
	challenges *ChallengeService
	counters   counter.Store
	geo        geo.Resolver
	tokens     *auth.TokenManager
	totp       *auth.TOTPManager
	timing     *auth.TimingDelay
	notifier   Notifier
	cfg        config.RiskConfig
	logger     *slog.Logger
	audit      *pkglogger.AuditLogger

	now func() time.Time
}

func NewAuthService(deps AuthServiceDeps) *AuthService {
	return &AuthService{
		accounts:   deps.Accounts,
		attempts:   deps.Attempts,
		events:     deps.Events,
		challenges: deps.Challenges,
		counters:   deps.Counters,
		geo:        deps.Geo,
		tokens:     deps.Tokens,
		totp:       deps.TOTP,
		timing:     deps.Timing,
		notifier:   deps.Notifier,
		cfg:        deps.Risk,
		logger:     deps.Logger,
		audit:      deps.Audit,
		now:        time.Now,
	}
}

// WithClock overrides the pipeline clock. Test hook.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

// LoginRequest is one authentication attempt plus its request metadata
type LoginRequest struct {
	Email          string
	Password       string
	IP             string
	UserAgent      string
	AcceptLanguage string
}

// AccountResponse is the account as exposed over HTTP
type AccountResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
}

func toAccountResponse(account *models.Account) *AccountResponse {
	return &AccountResponse{
		ID:        account.ID,
		Email:     account.Email,
		FirstName: account.FirstName,
		LastName:  account.LastName,
		Role:      account.Role,
		CreatedAt: account.CreatedAt.Format(time.RFC3339),
	}
}

// Login result statuses
const (
	LoginStatusSuccess     = "success"
	LoginStatusOTPRequired = "otp_required"
)

// LoginResult is the outcome of a non-rejected login
type LoginResult struct {
	Status    string           `json:"status"`
	Token     string           `json:"token,omitempty"`
	AttemptID string           `json:"attempt_id,omitempty"`
	RiskLevel string           `json:"risk_level"`
	RiskScore int              `json:"risk_score"`
	Account   *AccountResponse `json:"account,omitempty"`
}

func failKeyIP(ip string) string       { return "fail:ip:" + ip }
func failKeyEmail(email string) string { return "fail:email:" + email }
func blacklistKey(ip string) string    { return "blacklist:ip:" + ip }

// Login runs the full decision pipeline for one attempt. Rejections surface
// as sentinel errors (ErrInvalidCredentials, ErrAccountLocked,
// ErrIPBlacklisted); a nil error means the attempt succeeded outright or is
// waiting on a step-up code.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	start := s.now()
	email := strings.ToLower(strings.TrimSpace(req.Email))

	// Blacklist pre-check: a blocked source never reaches credential
	// verification.
	blacklisted, err := s.counters.HasFlag(ctx, blacklistKey(req.IP))
	if err != nil {
		s.logger.Error("blacklist check failed", slog.Any("error", err))
	}
	if blacklisted {
		attempt := s.newAttempt(email, req)
		attempt.Status = models.AttemptStatusBlocked
		attempt.IPRateLimited = true
		attempt.Reasons = []string{models.EventTypeVelocityExceeded}
		s.recordAttempt(ctx, attempt)

		s.audit.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_blocked",
			IPAddress:     req.IP,
			Success:       false,
			FailureReason: "ip_blacklisted",
		})
		return nil, models.ErrIPBlacklisted
	}

	attempt := s.newAttempt(email, req)
	attempt.Location = s.resolveLocation(ctx, req.IP)

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, s.failUnknownAccount(ctx, attempt, start)
		}
		s.logger.Error("failed to load account", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	accountID := account.ID
	attempt.AccountID = &accountID

	if account.LockedNow(start) {
		attempt.Status = models.AttemptStatusBlocked
		s.recordAttempt(ctx, attempt)

		s.audit.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_blocked",
			AccountID:     account.ID,
			IPAddress:     req.IP,
			Success:       false,
			FailureReason: "account_locked",
		})
		return nil, models.ErrAccountLocked
	}

	if err := pkgauth.ComparePassword(account.PasswordHash, req.Password); err != nil {
		return nil, s.failWrongPassword(ctx, attempt, account, start)
	}

	// Credentials match: the failure streak ends here, before the risk
	// branch, so a stale counter cannot feed a later lock. The assessment
	// still sees the streak that preceded this attempt.
	failedBefore := account.FailedAttempts
	if err := s.counters.Delete(ctx, failKeyEmail(email)); err != nil {
		s.logger.Error("failed to reset email counter", slog.Any("error", err))
	}
	if failedBefore > 0 {
		if err := s.accounts.ResetFailedAttempts(ctx, account.ID); err != nil {
			s.logger.Error("failed to reset account failure counter", slog.Any("error", err))
		}
		account.FailedAttempts = 0
	}

	// Score the attempt before letting it through.
	assessment := risk.Score(risk.Context{
		IP:                   req.IP,
		UserAgent:            req.UserAgent,
		DeviceFingerprint:    attempt.DeviceFingerprint,
		CurrentLocation:      attempt.Location,
		Timestamp:            start,
		FailedAttemptsBefore: failedBefore,
	}, risk.History{
		LastLogin:       account.LastLogin,
		DeviceHistory:   account.DeviceHistory,
		LocationHistory: account.LocationHistory,
	})
	applyAssessment(attempt, assessment)

	switch assessment.Level {
	case models.RiskLevelCritical:
		return nil, s.blockHighRisk(ctx, attempt, account)

	case models.RiskLevelWarning:
		attempt.Status = models.AttemptStatusOTPPending
		attempt.OTPSent = true
		s.recordAttempt(ctx, attempt)

		if _, err := s.challenges.Issue(ctx, account, attempt.ID); err != nil {
			s.logger.Error("failed to issue challenge", slog.Any("error", err))
			return nil, models.ErrInternalServer
		}

		s.audit.LogAuthAttempt(pkglogger.AuditEvent{
			EventType: "login_challenge",
			AccountID: account.ID,
			IPAddress: req.IP,
			RiskScore: assessment.Score,
			RiskLevel: assessment.Level,
			Success:   false,
		})

		return &LoginResult{
			Status:    LoginStatusOTPRequired,
			AttemptID: attempt.ID,
			RiskLevel: assessment.Level,
			RiskScore: assessment.Score,
		}, nil
	}

	// Safe: let the attempt through.
	attempt.Status = models.AttemptStatusSuccess
	s.recordAttempt(ctx, attempt)

	token, err := s.finalizeSuccess(ctx, account, attempt)
	if err != nil {
		return nil, err
	}

	s.audit.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_success",
		AccountID: account.ID,
		IPAddress: req.IP,
		RiskScore: assessment.Score,
		RiskLevel: assessment.Level,
		Success:   true,
	})

	return &LoginResult{
		Status:    LoginStatusSuccess,
		Token:     token,
		AttemptID: attempt.ID,
		RiskLevel: assessment.Level,
		RiskScore: assessment.Score,
		Account:   toAccountResponse(account),
	}, nil
}

// VerifyOTP resolves a pending attempt with the step-up code. Accounts
// enrolled in TOTP may answer with an authenticator code instead of the
// mailed one.
func (s *AuthService) VerifyOTP(ctx context.Context, attemptID, code string) (*LoginResult, error) {
	attempt, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrChallengeNotFound
		}
		return nil, err
	}
	if attempt.Status != models.AttemptStatusOTPPending || attempt.AccountID == nil {
		return nil, models.ErrChallengeNotFound
	}

	account, err := s.accounts.GetByID(ctx, *attempt.AccountID)
	if err != nil {
		return nil, models.ErrChallengeNotFound
	}

	if _, err := s.challenges.Verify(ctx, attemptID, code); err != nil {
		if errors.Is(err, models.ErrChallengeMismatch) && s.verifyTOTPFallback(account, code) {
			// authenticator code accepted in place of the mailed one
		} else {
			s.audit.LogAuthAttempt(pkglogger.AuditEvent{
				EventType:     "otp_failed",
				AccountID:     account.ID,
				IPAddress:     attempt.IP,
				Success:       false,
				FailureReason: err.Error(),
			})
			return nil, err
		}
	}

	if err := s.attempts.UpdateStatus(ctx, attemptID, models.AttemptStatusOTPVerified); err != nil {
		return nil, err
	}
	attempt.Status = models.AttemptStatusOTPVerified

	token, err := s.finalizeSuccess(ctx, account, attempt)
	if err != nil {
		return nil, err
	}

	s.audit.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "otp_verified",
		AccountID: account.ID,
		IPAddress: attempt.IP,
		RiskScore: attempt.RiskScore,
		RiskLevel: attempt.RiskLevel,
		Success:   true,
	})

	return &LoginResult{
		Status:    LoginStatusSuccess,
		Token:     token,
		AttemptID: attempt.ID,
		RiskLevel: attempt.RiskLevel,
		RiskScore: attempt.RiskScore,
		Account:   toAccountResponse(account),
	}, nil
}

// verifyTOTPFallback checks an authenticator code for TOTP-enrolled accounts
func (s *AuthService) verifyTOTPFallback(account *models.Account, code string) bool {
	if s.totp == nil || !account.TOTPEnabled || len(account.TOTPSecret) == 0 {
		return false
	}

	secret, err := s.totp.DecryptSecret(account.TOTPSecret, account.TOTPNonce)
	if err != nil {
		s.logger.Error("failed to decrypt TOTP secret",
			slog.String("account_id", account.ID),
			slog.Any("error", err))
		return false
	}

	valid, err := s.totp.Validate(secret, code)
	if err != nil {
		return false
	}
	return valid
}

// RegisterRequest creates a new account
type RegisterRequest struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Register creates an account with a hashed password
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*AccountResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if err := pkgauth.ValidatePassword(req.Password); err != nil {
		return nil, err
	}

	hash, err := pkgauth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	account := &models.Account{
		Email:        email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         "user",
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to create account", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.audit.LogAccountAction("account_created", account.ID, "", nil)

	return toAccountResponse(account), nil
}

// newAttempt builds the audit record shared by every pipeline branch
func (s *AuthService) newAttempt(email string, req LoginRequest) *models.LoginAttempt {
	info := device.Parse(req.UserAgent)
	now := s.now()

	return &models.LoginAttempt{
		Email:             email,
		IP:                req.IP,
		UserAgent:         req.UserAgent,
		DeviceFingerprint: device.Fingerprint(req.UserAgent, req.IP, req.AcceptLanguage),
		DeviceName:        info.DeviceName,
		Browser:           info.Browser,
		OS:                info.OS,
		Status:            models.AttemptStatusReceived,
		RiskLevel:         models.RiskLevelSafe,
		Reasons:           []string{},
		AttemptTime:       now,
		ExpiresAt:         now.Add(s.cfg.AttemptRetention),
	}
}

func (s *AuthService) resolveLocation(ctx context.Context, ip string) models.Location {
	if geo.IsPrivateIP(ip) {
		return geo.LocalLocation(ip)
	}
	return s.geo.Resolve(ctx, ip)
}

// recordAttempt persists the attempt; audit gaps are logged, never fatal
func (s *AuthService) recordAttempt(ctx context.Context, attempt *models.LoginAttempt) {
	if err := s.attempts.Create(ctx, attempt); err != nil {
		s.logger.Error("failed to record login attempt",
			slog.String("email", attempt.Email),
			slog.Any("error", err))
	}
}

func applyAssessment(attempt *models.LoginAttempt, a risk.Assessment) {
	attempt.RiskScore = a.Score
	attempt.RiskLevel = a.Level
	attempt.Reasons = a.Reasons
	attempt.IsNewDevice = a.Factors.IsNewDevice
	attempt.IsNewLocation = a.Factors.IsNewLocation
	attempt.IsImpossibleTravel = a.Factors.IsImpossibleTravel
	attempt.IsOddLoginTime = a.Factors.IsOddLoginTime
}

// failUnknownAccount handles a login for a nonexistent account: the response
// is identical to a wrong password, and the per-IP velocity counter still
// advances so enumeration sweeps get blacklisted.
func (s *AuthService) failUnknownAccount(ctx context.Context, attempt *models.LoginAttempt, start time.Time) error {
	ipCount, err := s.counters.Increment(ctx, failKeyIP(attempt.IP), s.cfg.VelocityWindow)
	if err != nil {
		s.logger.Error("failed to advance ip counter", slog.Any("error", err))
	}

	if ipCount >= int64(s.cfg.VelocityLimit) {
		s.blacklistIP(ctx, attempt)
		attempt.IPRateLimited = true
	}

	attempt.Status = models.AttemptStatusFailed
	s.recordAttempt(ctx, attempt)

	s.audit.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:     "login_failed",
		IPAddress:     attempt.IP,
		Success:       false,
		FailureReason: "invalid_credentials",
	})

	s.timing.WaitFrom(start, false)
	return models.ErrInvalidCredentials
}

// failWrongPassword advances every failure counter and escalates to IP
// blacklist or account lock the moment a velocity limit is reached.
func (s *AuthService) failWrongPassword(ctx context.Context, attempt *models.LoginAttempt, account *models.Account, start time.Time) error {
	ipCount, err := s.counters.Increment(ctx, failKeyIP(attempt.IP), s.cfg.VelocityWindow)
	if err != nil {
		s.logger.Error("failed to advance ip counter", slog.Any("error", err))
	}
	emailCount, err := s.counters.Increment(ctx, failKeyEmail(attempt.Email), s.cfg.VelocityWindow)
	if err != nil {
		s.logger.Error("failed to advance email counter", slog.Any("error", err))
	}

	if _, err := s.accounts.IncrementFailedAttempts(ctx, account.ID); err != nil {
		s.logger.Error("failed to advance account failure counter", slog.Any("error", err))
	}

	if ipCount >= int64(s.cfg.VelocityLimit) {
		s.blacklistIP(ctx, attempt)
		attempt.IPRateLimited = true
	}

	if emailCount >= int64(s.cfg.VelocityLimit) {
		s.lockForFailures(ctx, attempt, account)
		attempt.UserRateLimited = true
	}

	attempt.Status = models.AttemptStatusFailed
	s.recordAttempt(ctx, attempt)

	s.audit.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:     "login_failed",
		AccountID:     account.ID,
		IPAddress:     attempt.IP,
		Success:       false,
		FailureReason: "invalid_credentials",
	})

	s.timing.WaitFrom(start, false)
	return models.ErrInvalidCredentials
}

// blacklistIP flags the source address and logs a brute-force event
func (s *AuthService) blacklistIP(ctx context.Context, attempt *models.LoginAttempt) {
	if err := s.counters.SetFlag(ctx, blacklistKey(attempt.IP), s.cfg.IPBlacklistDuration); err != nil {
		s.logger.Error("failed to blacklist ip", slog.Any("error", err))
		return
	}

	s.recordEvent(ctx, &models.SuspiciousEvent{
		AccountID: attempt.AccountID,
		Email:     attempt.Email,
		Type:      models.EventTypeBruteForce,
		Severity:  models.SeverityCritical,
		IP:        attempt.IP,
		Location:  attempt.Location,
		Details: models.EventDetails{
			"window":  s.cfg.VelocityWindow.String(),
			"limit":   s.cfg.VelocityLimit,
			"blocked": s.cfg.IPBlacklistDuration.String(),
		},
	})

	s.logger.Warn("ip blacklisted",
		slog.String("ip", attempt.IP),
		slog.Duration("duration", s.cfg.IPBlacklistDuration))
}

// lockForFailures locks the account after too many per-account failures and
// notifies the holder in the background.
func (s *AuthService) lockForFailures(ctx context.Context, attempt *models.LoginAttempt, account *models.Account) {
	until := s.now().Add(s.cfg.AccountLockDuration)
	if err := s.accounts.Lock(ctx, account.ID, lockReasonFailedAttempts, until); err != nil {
		s.logger.Error("failed to lock account", slog.Any("error", err))
		return
	}

	s.recordEvent(ctx, &models.SuspiciousEvent{
		AccountID: attempt.AccountID,
		Email:     account.Email,
		Type:      models.EventTypeAccountLocked,
		Severity:  models.SeverityHigh,
		IP:        attempt.IP,
		Location:  attempt.Location,
		Details: models.EventDetails{
			"reason": lockReasonFailedAttempts,
			"until":  until.UTC().Format(time.RFC3339),
		},
	})

	s.notifyAsync(func(ctx context.Context) error {
		return s.notifier.SendLockAlert(ctx, account.Email, lockReasonFailedAttempts, until)
	})

	s.audit.LogAccountAction("account_locked", account.ID, attempt.IP, map[string]string{
		"reason": lockReasonFailedAttempts,
	})
}

// blockHighRisk rejects a critical-risk attempt: correct password, but the
// signals say it is probably not the owner.
func (s *AuthService) blockHighRisk(ctx context.Context, attempt *models.LoginAttempt, account *models.Account) error {
	attempt.Status = models.AttemptStatusBlocked
	s.recordAttempt(ctx, attempt)

	until := s.now().Add(s.cfg.HighRiskLockDuration)
	if err := s.accounts.Lock(ctx, account.ID, lockReasonHighRisk, until); err != nil {
		s.logger.Error("failed to lock account", slog.Any("error", err))
	}

	s.recordEvent(ctx, &models.SuspiciousEvent{
		AccountID: attempt.AccountID,
		Email:     account.Email,
		Type:      models.EventTypeHighRiskLogin,
		Severity:  models.SeverityCritical,
		IP:        attempt.IP,
		Location:  attempt.Location,
		Details: models.EventDetails{
			"risk_score": attempt.RiskScore,
			"reasons":    attempt.Reasons,
		},
	})

	s.notifyAsync(func(ctx context.Context) error {
		return s.notifier.SendHighRiskAlert(ctx, account.Email, attempt)
	})

	s.audit.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:     "login_blocked",
		AccountID:     account.ID,
		IPAddress:     attempt.IP,
		RiskScore:     attempt.RiskScore,
		RiskLevel:     attempt.RiskLevel,
		Success:       false,
		FailureReason: "high_risk",
	})

	return models.ErrHighRiskBlocked
}

// finalizeSuccess applies the success side effects exactly once: history
// append, last-login snapshot, token issue. The failure counters were
// already reset at credential match.
func (s *AuthService) finalizeSuccess(ctx context.Context, account *models.Account, attempt *models.LoginAttempt) (string, error) {
	now := s.now()

	s.appendDevice(account, attempt, now)
	s.appendLocation(account, attempt, now)

	account.LastLogin = &models.LoginSnapshot{
		Timestamp: now,
		IP:        attempt.IP,
		City:      attempt.Location.City,
		Country:   attempt.Location.Country,
		Latitude:  attempt.Location.Latitude,
		Longitude: attempt.Location.Longitude,
	}
	loc := attempt.Location
	account.LastLocation = &loc

	if err := s.accounts.RecordSuccessfulLogin(ctx, account); err != nil {
		s.logger.Error("failed to persist login state",
			slog.String("account_id", account.ID),
			slog.Any("error", err))
		return "", models.ErrInternalServer
	}

	token, err := s.tokens.GenerateToken(account)
	if err != nil {
		s.logger.Error("failed to issue token", slog.Any("error", err))
		return "", models.ErrInternalServer
	}

	return token, nil
}

func (s *AuthService) appendDevice(account *models.Account, attempt *models.LoginAttempt, now time.Time) {
	for i := range account.DeviceHistory {
		if account.DeviceHistory[i].Fingerprint == attempt.DeviceFingerprint {
			account.DeviceHistory[i].LastUsed = now
			return
		}
	}

	account.DeviceHistory = append(account.DeviceHistory, models.KnownDevice{
		Fingerprint: attempt.DeviceFingerprint,
		DeviceName:  attempt.DeviceName,
		Browser:     attempt.Browser,
		OS:          attempt.OS,
		FirstSeen:   now,
		LastUsed:    now,
	})
}

func (s *AuthService) appendLocation(account *models.Account, attempt *models.LoginAttempt, now time.Time) {
	loc := attempt.Location
	for i := range account.LocationHistory {
		if account.LocationHistory[i].Country == loc.Country && account.LocationHistory[i].City == loc.City {
			account.LocationHistory[i].IP = attempt.IP
			account.LocationHistory[i].Timestamp = now
			return
		}
	}

	account.LocationHistory = append(account.LocationHistory, models.KnownLocation{
		IP:        attempt.IP,
		City:      loc.City,
		Country:   loc.Country,
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
		Timestamp: now,
	})
}

func (s *AuthService) recordEvent(ctx context.Context, event *models.SuspiciousEvent) {
	if err := s.events.Create(ctx, event); err != nil {
		s.logger.Error("failed to record suspicious event",
			slog.String("type", event.Type),
			slog.Any("error", err))
	}
}

// notifyAsync runs a notification in the background with its own deadline
func (s *AuthService) notifyAsync(send func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := send(ctx); err != nil {
			s.logger.Warn("notification delivery failed", slog.Any("error", err))
		}
	}()
}

// GetAccount returns the account behind a token's claims
func (s *AuthService) GetAccount(ctx context.Context, accountID string) (*AccountResponse, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	return toAccountResponse(account), nil
}
