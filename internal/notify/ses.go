package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SESConfig holds configuration for AWS SES.
type SESConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	From            string
	To              []string
}

// sesAPI is the part of *ses.Client the sender uses.
type sesAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESSender emails alerts to administrators through AWS SES.
type SESSender struct {
	client sesAPI
	from   string
	to     []string
	logger *slog.Logger
}

// NewSESSender creates an SES client from static credentials. Without an
// access key requests go out unsigned, which only local SES emulators accept.
func NewSESSender(cfg SESConfig, logger *slog.Logger) *SESSender {
	awsCfg := aws.Config{Region: cfg.Region, Credentials: aws.AnonymousCredentials{}}
	if cfg.AccessKeyID != "" {
		awsCfg.Credentials = aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		)
	}
	return newSESSender(ses.NewFromConfig(awsCfg), cfg, logger)
}

func newSESSender(client sesAPI, cfg SESConfig, logger *slog.Logger) *SESSender {
	return &SESSender{client: client, from: cfg.From, to: cfg.To, logger: logger}
}

// Name returns the channel name.
func (s *SESSender) Name() string { return "email" }

// Send emails the alert to every configured recipient.
func (s *SESSender) Send(ctx context.Context, alert Alert) error {
	input := &ses.SendEmailInput{
		Source:      aws.String(s.from),
		Destination: &types.Destination{ToAddresses: s.to},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(alert.Subject()), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(alert.Text()), Charset: aws.String("UTF-8")},
			},
		},
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("send alert via SES: %w", err)
	}
	s.logger.InfoContext(ctx, "review alert emailed",
		slog.Int64("review_id", alert.ReviewID),
		slog.String("message_id", aws.ToString(out.MessageId)),
	)
	return nil
}
