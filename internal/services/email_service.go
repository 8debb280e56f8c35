package services

import (
	"context"
	"fmt"
	"log/slog"

	pkglogger "github.com/BradenHooton/kickvault/pkg/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SESAPI is the subset of the SES client used to deliver mail
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// AWSSESEmailService sends account notices using AWS SES
type AWSSESEmailService struct {
	sesClient   SESAPI
	fromAddress string
	logger      *slog.Logger
}

// NewAWSSESEmailService creates a new AWS SES email service
func NewAWSSESEmailService(ctx context.Context, region, fromAddress string, logger *slog.Logger) (*AWSSESEmailService, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewAWSSESEmailServiceWithClient(ses.NewFromConfig(cfg), fromAddress, logger), nil
}

// NewAWSSESEmailServiceWithClient wraps an existing SES client
func NewAWSSESEmailServiceWithClient(client SESAPI, fromAddress string, logger *slog.Logger) *AWSSESEmailService {
	return &AWSSESEmailService{
		sesClient:   client,
		fromAddress: fromAddress,
		logger:      logger,
	}
}

// SendLockoutNotice tells the owner of username that their account has been
// deactivated after repeated failed logins
func (s *AWSSESEmailService) SendLockoutNotice(ctx context.Context, email, username string) error {
	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #f8f9fa; padding: 20px; text-align: center; border-radius: 4px; }
        .content { padding: 20px 0; }
        .footer { color: #666; font-size: 12px; margin-top: 20px; padding-top: 20px; border-top: 1px solid #eee; }
        .warning { background-color: #fff3cd; padding: 10px; border-left: 4px solid #ffc107; margin: 10px 0; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Your KickVault account was locked</h1>
        </div>
        <div class="content">
            <p>Hi %s,</p>
            <div class="warning">
                <strong>Security Notice:</strong> We locked your account after several failed sign-in attempts.
            </div>
            <p>While the account is locked nobody can sign in to it, including you. Contact support to have it reactivated.</p>
            <p><strong>Wasn't you?</strong><br>
            Someone may be trying to guess your password. Choose a new, unique password once your account is restored.</p>
        </div>
        <div class="footer">
            <p>This is an automated message. Please do not reply to this email.</p>
        </div>
    </div>
</body>
</html>
`, username)

	textBody := fmt.Sprintf(`Your KickVault account was locked

Hi %s,

We locked your account after several failed sign-in attempts. While the account is locked nobody can sign in to it, including you. Contact support to have it reactivated.

Wasn't you?
Someone may be trying to guess your password. Choose a new, unique password once your account is restored.

This is an automated message. Please do not reply to this email.
`, username)

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{email},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String("Your account has been locked"),
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
		s.logger.Error("failed to send lockout notice via SES",
			slog.String("email", pkglogger.SanitizedEmail(email)),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("lockout notice sent",
		slog.String("email", pkglogger.SanitizedEmail(email)),
		slog.String("message_id", aws.ToString(result.MessageId)))

	return nil
}

// LogOnlyNotifier records lockout notices in the log when email delivery is disabled
type LogOnlyNotifier struct {
	logger *slog.Logger
}

func NewLogOnlyNotifier(logger *slog.Logger) *LogOnlyNotifier {
	return &LogOnlyNotifier{logger: logger}
}

func (n *LogOnlyNotifier) SendLockoutNotice(ctx context.Context, email, username string) error {
	n.logger.Info("lockout notice not sent, email delivery disabled",
		slog.String("email", pkglogger.SanitizedEmail(email)),
		slog.String("username", pkglogger.MaskUsername(username)))
	return nil
}
