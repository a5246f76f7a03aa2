package integration

import (
	"context"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/mfontaine/aegis/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testDB     *TestDB
	testServer *TestServer
)

func TestMain(m *testing.M) {
	ctx := context.Background()

	db, err := SetupTestDatabase(ctx)
	if err != nil {
		// No docker available; integration tests cannot run
		os.Exit(0)
	}
	testDB = db
	testServer = NewTestServer(db.DB)

	code := m.Run()

	testServer.Close()
	testDB.Teardown(ctx)
	os.Exit(code)
}

func register(t *testing.T, email, password string) {
	t.Helper()
	resp, err := testServer.Request(http.MethodPost, "/auth/register", map[string]string{
		"email":    email,
		"password": password,
	}, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func login(t *testing.T, email, password string) (*http.Response, services.LoginResult) {
	t.Helper()
	resp, err := testServer.Request(http.MethodPost, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, nil)
	require.NoError(t, err)

	var result services.LoginResult
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, ParseJSONResponse(resp, &result))
	} else {
		resp.Body.Close()
	}
	return resp, result
}

func TestRegisterAndFirstLogin(t *testing.T) {
	email, password := TestAccount("first-login")
	register(t, email, password)

	resp, result := login(t, email, password)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// First-ever login has no history to deviate from, so it is safe
	assert.Equal(t, services.LoginStatusSuccess, result.Status)
	assert.Equal(t, "safe", result.RiskLevel)
	assert.NotEmpty(t, result.Token)

	// Token works against the authenticated surface
	meResp, err := testServer.RequestWithAuth(http.MethodGet, "/auth/me", result.Token, nil)
	require.NoError(t, err)
	var me services.AccountResponse
	require.NoError(t, ParseJSONResponse(meResp, &me))
	assert.Equal(t, email, me.Email)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	email, password := TestAccount("duplicate")
	register(t, email, password)

	resp, err := testServer.Request(http.MethodPost, "/auth/register", map[string]string{
		"email":    email,
		"password": password,
	}, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestWrongPasswordAndUnknownAccountLookAlike(t *testing.T) {
	email, password := TestAccount("indistinct")
	register(t, email, password)

	wrongResp, _ := login(t, email, "WrongPassword123!x")
	unknownResp, _ := login(t, "nobody-"+email, "WrongPassword123!x")

	assert.Equal(t, http.StatusUnauthorized, wrongResp.StatusCode)
	assert.Equal(t, http.StatusUnauthorized, unknownResp.StatusCode)
}

func TestLockedAccountRejectedUntilExpiry(t *testing.T) {
	ctx := context.Background()
	email, password := TestAccount("locked")
	_, err := SeedLockedAccount(ctx, testDB.Pool, email, password, time.Now().Add(30*time.Minute))
	require.NoError(t, err)

	resp, _ := login(t, email, password)
	assert.Equal(t, http.StatusLocked, resp.StatusCode)
}

func TestExpiredLockAdmitsValidCredentials(t *testing.T) {
	ctx := context.Background()
	email, password := TestAccount("lock-expired")
	_, err := SeedLockedAccount(ctx, testDB.Pool, email, password, time.Now().Add(-time.Minute))
	require.NoError(t, err)

	resp, result := login(t, email, password)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, services.LoginStatusSuccess, result.Status)
}

func TestStepUpChallengeFlow(t *testing.T) {
	ctx := context.Background()
	email, password := TestAccount("step-up")
	account, err := SeedAccount(ctx, testDB.Pool, email, password, "user")
	require.NoError(t, err)

	// Unfamiliar device in an unfamiliar location scores into the warning band
	require.NoError(t, SeedHistory(ctx, testDB.Pool, account.ID))

	resp, result := login(t, email, password)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, services.LoginStatusOTPRequired, result.Status)
	require.NotEmpty(t, result.AttemptID)
	assert.Empty(t, result.Token)

	// Code delivery is asynchronous
	var code string
	require.Eventually(t, func() bool {
		code = testServer.Notifier.ChallengeCodeFor(email)
		return code != ""
	}, 2*time.Second, 10*time.Millisecond)

	verifyResp, err := testServer.Request(http.MethodPost, "/auth/verify-otp", map[string]string{
		"attempt_id": result.AttemptID,
		"code":       code,
	}, nil)
	require.NoError(t, err)

	var verified services.LoginResult
	require.NoError(t, ParseJSONResponse(verifyResp, &verified))
	assert.Equal(t, services.LoginStatusSuccess, verified.Status)
	assert.NotEmpty(t, verified.Token)

	// The consumed code cannot be replayed
	replayResp, err := testServer.Request(http.MethodPost, "/auth/verify-otp", map[string]string{
		"attempt_id": result.AttemptID,
		"code":       code,
	}, nil)
	require.NoError(t, err)
	defer replayResp.Body.Close()
	assert.Equal(t, http.StatusGone, replayResp.StatusCode)
}

func TestWrongChallengeCodeRejected(t *testing.T) {
	ctx := context.Background()
	email, password := TestAccount("step-up-wrong")
	account, err := SeedAccount(ctx, testDB.Pool, email, password, "user")
	require.NoError(t, err)
	require.NoError(t, SeedHistory(ctx, testDB.Pool, account.ID))

	resp, result := login(t, email, password)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, services.LoginStatusOTPRequired, result.Status)

	wrongResp, err := testServer.Request(http.MethodPost, "/auth/verify-otp", map[string]string{
		"attempt_id": result.AttemptID,
		"code":       "000000",
	}, nil)
	require.NoError(t, err)
	defer wrongResp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, wrongResp.StatusCode)

	body, err := io.ReadAll(wrongResp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "2 attempts remaining")
}

func TestAdminReviewSurface(t *testing.T) {
	ctx := context.Background()
	adminEmail, adminPassword := TestAccount("admin")
	_, err := SeedAccount(ctx, testDB.Pool, adminEmail, adminPassword, "admin")
	require.NoError(t, err)

	resp, result := login(t, adminEmail, adminPassword)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, result.Token)

	// The attempt trail includes the admin's own login
	attemptsResp, err := testServer.RequestWithAuth(http.MethodGet, "/admin/attempts?email="+adminEmail, result.Token, nil)
	require.NoError(t, err)
	var attempts struct {
		Count int `json:"count"`
	}
	require.NoError(t, ParseJSONResponse(attemptsResp, &attempts))
	assert.GreaterOrEqual(t, attempts.Count, 1)

	statsResp, err := testServer.RequestWithAuth(http.MethodGet, "/admin/stats", result.Token, nil)
	require.NoError(t, err)
	var stats services.DashboardStats
	require.NoError(t, ParseJSONResponse(statsResp, &stats))
	require.NotNil(t, stats.Attempts)
	assert.GreaterOrEqual(t, stats.Attempts.Total, int64(1))
	assert.NotEmpty(t, stats.Hourly)

	// The resolver pins every lookup to Lisbon, so the map view has markers
	locResp, err := testServer.RequestWithAuth(http.MethodGet, "/admin/locations", result.Token, nil)
	require.NoError(t, err)
	var locations struct {
		Count int `json:"count"`
	}
	require.NoError(t, ParseJSONResponse(locResp, &locations))
	assert.GreaterOrEqual(t, locations.Count, 1)

	detailResp, err := testServer.RequestWithAuth(http.MethodGet, "/admin/accounts?email="+adminEmail, result.Token, nil)
	require.NoError(t, err)
	var detail services.AccountDetail
	require.NoError(t, ParseJSONResponse(detailResp, &detail))
	assert.Equal(t, "admin", detail.Role)
	assert.NotEmpty(t, detail.RecentAttempts)

	// Manual unlock of a locked account
	lockedEmail, lockedPassword := TestAccount("admin-unlock")
	_, err = SeedLockedAccount(ctx, testDB.Pool, lockedEmail, lockedPassword, time.Now().Add(time.Hour))
	require.NoError(t, err)

	unlockResp, err := testServer.RequestWithAuth(http.MethodPost, "/admin/accounts/unlock", result.Token, map[string]string{
		"email": lockedEmail,
	})
	require.NoError(t, err)
	unlockResp.Body.Close()
	require.Equal(t, http.StatusOK, unlockResp.StatusCode)

	loginResp, _ := login(t, lockedEmail, lockedPassword)
	assert.Equal(t, http.StatusOK, loginResp.StatusCode)
}

func TestAdminSurfaceForbiddenForUsers(t *testing.T) {
	email, password := TestAccount("non-admin")
	register(t, email, password)

	resp, result := login(t, email, password)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	adminResp, err := testServer.RequestWithAuth(http.MethodGet, "/admin/attempts", result.Token, nil)
	require.NoError(t, err)
	defer adminResp.Body.Close()
	assert.Equal(t, http.StatusForbidden, adminResp.StatusCode)
}
