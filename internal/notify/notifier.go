// internal/notify/notifier.go
package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"jobhunt-pipeline/internal/common/config"
	"jobhunt-pipeline/internal/common/logger"
	"jobhunt-pipeline/internal/models"
)

// EmailSender is the SES surface the notifier needs.
type EmailSender interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

// SMSSender is the SNS surface the notifier needs.
type SMSSender interface {
	Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error)
}

// Notifier delivers follow-up reminders for tracked applications. Email is
// the primary channel; SMS is sent additionally when configured.
type Notifier struct {
	email  EmailSender
	sms    SMSSender
	cfg    config.AWSConfig
	logger logger.Logger
}

func New(email EmailSender, sms SMSSender, cfg config.AWSConfig, log logger.Logger) *Notifier {
	return &Notifier{
		email:  email,
		sms:    sms,
		cfg:    cfg,
		logger: log.WithFields(map[string]interface{}{"component": "notify"}),
	}
}

// SendReminders delivers one reminder per due record. Delivery failures are
// isolated per record; the first error is returned after all attempts.
func (n *Notifier) SendReminders(ctx context.Context, records []*models.ApplicationRecord, toEmail, toPhone string) error {
	var firstErr error
	for _, rec := range records {
		if err := n.sendOne(ctx, rec, toEmail, toPhone); err != nil {
			n.logger.Error("reminder delivery failed", map[string]interface{}{
				"jobId": rec.JobID,
				"error": err.Error(),
			})
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (n *Notifier) sendOne(ctx context.Context, rec *models.ApplicationRecord, toEmail, toPhone string) error {
	subject, body := reminderContent(rec)

	if n.cfg.SES.Enabled && n.email != nil && toEmail != "" {
		input := &ses.SendEmailInput{
			Source:      aws.String(n.cfg.SES.FromEmail),
			Destination: &sestypes.Destination{ToAddresses: []string{toEmail}},
			Message: &sestypes.Message{
				Subject: &sestypes.Content{Data: aws.String(subject)},
				Body: &sestypes.Body{
					Text: &sestypes.Content{Data: aws.String(body)},
				},
			},
		}
		if _, err := n.email.SendEmail(ctx, input); err != nil {
			return fmt.Errorf("send reminder email: %w", err)
		}
	}

	if n.cfg.SNS.Enabled && n.sms != nil && toPhone != "" {
		input := &sns.PublishInput{
			PhoneNumber: aws.String(toPhone),
			Message:     aws.String(subject),
		}
		if _, err := n.sms.Publish(ctx, input); err != nil {
			return fmt.Errorf("send reminder sms: %w", err)
		}
	}

	n.logger.Info("reminder sent", map[string]interface{}{
		"jobId": rec.JobID,
		"stage": string(rec.Stage),
	})
	return nil
}

func reminderContent(rec *models.ApplicationRecord) (subject, body string) {
	subject = fmt.Sprintf("Follow up: %s at %s (%s)", rec.Title, rec.Company, rec.Stage)
	body = fmt.Sprintf(
		"Your application for %s at %s has been in stage %s since %s.\n"+
			"Match score at discovery: %.2f.\n"+
			"Consider following up.",
		rec.Title, rec.Company, rec.Stage,
		rec.UpdatedAt.Format("2006-01-02"), rec.MatchScore,
	)
	return subject, body
}
