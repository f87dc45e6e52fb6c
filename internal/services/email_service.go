package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// Notifier sends account lifecycle emails. Delivery is fire-and-forget:
// failures are logged and swallowed, never propagated to the business
// operation that triggered them.
type Notifier interface {
	SendApprovalNotice(ctx context.Context, email, name string) error
	SendRejectionNotice(ctx context.Context, email, name string) error
	SendResetCode(ctx context.Context, email, code string, expiresAt time.Time) error
}

// AWSSESNotifier sends emails using AWS SES.
type AWSSESNotifier struct {
	sesClient    *ses.Client
	fromAddress  string
	dashboardURL string
	logger       *slog.Logger
}

// NewAWSSESNotifier creates a new AWS SES notifier.
func NewAWSSESNotifier(region, fromAddress, dashboardURL string, logger *slog.Logger) (*AWSSESNotifier, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSESNotifier{
		sesClient:    ses.NewFromConfig(cfg),
		fromAddress:  fromAddress,
		dashboardURL: dashboardURL,
		logger:       logger,
	}, nil
}

func (s *AWSSESNotifier) SendApprovalNotice(ctx context.Context, email, name string) error {
	subject := "Your account has been approved"
	body := fmt.Sprintf(`Hi %s,

Your account has been approved. You can now sign in and start managing your tasks:

%s

Welcome aboard!
`, name, s.dashboardURL)

	return s.send(ctx, email, subject, body)
}

func (s *AWSSESNotifier) SendRejectionNotice(ctx context.Context, email, name string) error {
	subject := "Your account request was declined"
	body := fmt.Sprintf(`Hi %s,

Unfortunately your account request was declined by an administrator.
If you believe this is a mistake, please contact your company administrator.
`, name)

	return s.send(ctx, email, subject, body)
}

func (s *AWSSESNotifier) SendResetCode(ctx context.Context, email, code string, expiresAt time.Time) error {
	subject := "Your password reset code"
	body := fmt.Sprintf(`Your password reset code is:

    %s

It expires at %s. If you did not request a reset, you can ignore this email.
`, code, expiresAt.UTC().Format(time.RFC1123))

	return s.send(ctx, email, subject, body)
}

func (s *AWSSESNotifier) send(ctx context.Context, email, subject, textBody string) error {
	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{email},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(subject),
			},
			Body: &types.Body{
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
		slog.String("message_id", aws.ToString(result.MessageId)))

	return nil
}

// LogNotifier is used when outbound email is disabled; it records what
// would have been sent.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (s *LogNotifier) SendApprovalNotice(_ context.Context, email, name string) error {
	s.logger.Info("email disabled: approval notice", slog.String("email", email), slog.String("name", name))
	return nil
}

func (s *LogNotifier) SendRejectionNotice(_ context.Context, email, name string) error {
	s.logger.Info("email disabled: rejection notice", slog.String("email", email), slog.String("name", name))
	return nil
}

func (s *LogNotifier) SendResetCode(_ context.Context, email, _ string, _ time.Time) error {
	s.logger.Info("email disabled: reset code", slog.String("email", email))
	return nil
}
