package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/mfontaine/aegis/internal/models"
)

// Notifier delivers security mail to account holders. Every call is
// best-effort: the login pipeline fires notifications in goroutines and an
// undelivered mail never changes an authentication outcome.
type Notifier interface {
	SendChallengeCode(ctx context.Context, email, code string) error
	SendHighRiskAlert(ctx context.Context, email string, attempt *models.LoginAttempt) error
	SendLockAlert(ctx context.Context, email, reason string, until time.Time) error
}

// AWSSESNotifier sends notifications using AWS SES
type AWSSESNotifier struct {
	sesClient   *ses.Client
	fromAddress string
	logger      *slog.Logger
}

func NewAWSSESNotifier(region, fromAddress string, logger *slog.Logger) (*AWSSESNotifier, error) {
	cfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSESNotifier{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		logger:      logger,
	}, nil
}

// SendChallengeCode delivers the 6-digit step-up code
func (s *AWSSESNotifier) SendChallengeCode(ctx context.Context, email, code string) error {
	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h1>Verification Code</h1>
        <p>We noticed a login attempt that looks a little unusual. To continue, enter this code:</p>
        <p style="font-size: 32px; letter-spacing: 8px; font-weight: bold;">%s</p>
        <p>The code expires in 10 minutes.</p>
        <p><strong>Didn't try to log in?</strong> Someone may have your password. Change it now.</p>
    </div>
</body>
</html>
`, code)

	textBody := fmt.Sprintf(`Verification Code

We noticed a login attempt that looks a little unusual. To continue, enter this code:

%s

The code expires in 10 minutes.

Didn't try to log in? Someone may have your password. Change it now.
`, code)

	return s.send(ctx, email, "Your verification code", htmlBody, textBody)
}

// SendHighRiskAlert warns the account holder about a blocked login
func (s *AWSSESNotifier) SendHighRiskAlert(ctx context.Context, email string, attempt *models.LoginAttempt) error {
	location := fmt.Sprintf("%s, %s", attempt.Location.City, attempt.Location.Country)

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h1>Suspicious Login Blocked</h1>
        <p>We blocked a high-risk login attempt on your account.</p>
        <ul>
            <li>Time: %s</li>
            <li>Location: %s</li>
            <li>IP address: %s</li>
            <li>Device: %s (%s)</li>
        </ul>
        <p>Your account has been temporarily locked as a precaution. If this was you,
        try again after the lock expires. If it wasn't, change your password immediately.</p>
    </div>
</body>
</html>
`, attempt.AttemptTime.UTC().Format(time.RFC1123), location, attempt.IP, attempt.Browser, attempt.OS)

	textBody := fmt.Sprintf(`Suspicious Login Blocked

We blocked a high-risk login attempt on your account.

Time: %s
Location: %s
IP address: %s
Device: %s (%s)

Your account has been temporarily locked as a precaution. If this was you,
try again after the lock expires. If it wasn't, change your password immediately.
`, attempt.AttemptTime.UTC().Format(time.RFC1123), location, attempt.IP, attempt.Browser, attempt.OS)

	return s.send(ctx, email, "Suspicious login attempt blocked", htmlBody, textBody)
}

// SendLockAlert informs the account holder that their account was locked
func (s *AWSSESNotifier) SendLockAlert(ctx context.Context, email, reason string, until time.Time) error {
	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h1>Account Temporarily Locked</h1>
        <p>Your account was locked: %s.</p>
        <p>The lock lifts automatically at %s.</p>
        <p>If this wasn't triggered by you, change your password once the lock expires.</p>
    </div>
</body>
</html>
`, reason, until.UTC().Format(time.RFC1123))

	textBody := fmt.Sprintf(`Account Temporarily Locked

Your account was locked: %s.

The lock lifts automatically at %s.

If this wasn't triggered by you, change your password once the lock expires.
`, reason, until.UTC().Format(time.RFC1123))

	return s.send(ctx, email, "Your account has been locked", htmlBody, textBody)
}

func (s *AWSSESNotifier) send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(subject),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data: aws.String(htmlBody),
				},
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	result, err := s.sesClient.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("failed to send email via SES",
			slog.String("subject", subject),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("email sent",
		slog.String("subject", subject),
		slog.String("message_id", *result.MessageId))

	return nil
}

// LogNotifier writes notifications to the log instead of sending mail.
// Used in development and when EMAIL_ENABLED is off.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (s *LogNotifier) SendChallengeCode(ctx context.Context, email, code string) error {
	s.logger.Info("challenge code issued", slog.String("email", email), slog.String("code", code))
	return nil
}

func (s *LogNotifier) SendHighRiskAlert(ctx context.Context, email string, attempt *models.LoginAttempt) error {
	s.logger.Info("high-risk alert",
		slog.String("email", email),
		slog.String("ip", attempt.IP),
		slog.Int("risk_score", attempt.RiskScore))
	return nil
}

func (s *LogNotifier) SendLockAlert(ctx context.Context, email, reason string, until time.Time) error {
	s.logger.Info("lock alert",
		slog.String("email", email),
		slog.String("reason", reason),
		slog.Time("until", until))
	return nil
}
