// internal/notify/notifier_test.go
package notify

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobhunt-pipeline/internal/common/config"
	"jobhunt-pipeline/internal/common/logger"
	"jobhunt-pipeline/internal/models"
)

type fakeEmailSender struct {
	inputs []*ses.SendEmailInput
	err    error
}

func (f *fakeEmailSender) SendEmail(_ context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.inputs = append(f.inputs, input)
	return &ses.SendEmailOutput{}, nil
}

type fakeSMSSender struct {
	inputs []*sns.PublishInput
}

func (f *fakeSMSSender) Publish(_ context.Context, input *sns.PublishInput) (*sns.PublishOutput, error) {
	f.inputs = append(f.inputs, input)
	return &sns.PublishOutput{}, nil
}

func awsConfig(sesEnabled, snsEnabled bool) config.AWSConfig {
	return config.AWSConfig{
		Region: "eu-central-1",
		SES:    config.SESConfig{Enabled: sesEnabled, FromEmail: "pipeline@example.com"},
		SNS:    config.SNSConfig{Enabled: snsEnabled},
	}
}

func dueRecord(jobID string) *models.ApplicationRecord {
	return &models.ApplicationRecord{
		JobID:      jobID,
		Company:    "Acme",
		Title:      "EM",
		MatchScore: 0.8,
		Stage:      models.AppStageApplied,
		UpdatedAt:  time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestNotifier_SendsEmailPerRecord(t *testing.T) {
	email := &fakeEmailSender{}
	n := New(email, nil, awsConfig(true, false), logger.NewNoOpLogger())

	records := []*models.ApplicationRecord{dueRecord("board:1"), dueRecord("board:2")}
	err := n.SendReminders(context.Background(), records, "me@example.com", "")

	require.NoError(t, err)
	require.Len(t, email.inputs, 2)
	assert.Equal(t, "pipeline@example.com", *email.inputs[0].Source)
	assert.Equal(t, []string{"me@example.com"}, email.inputs[0].Destination.ToAddresses)
	assert.Contains(t, *email.inputs[0].Message.Subject.Data, "Acme")
}

func TestNotifier_SMSOnlyWhenEnabled(t *testing.T) {
	sms := &fakeSMSSender{}
	n := New(&fakeEmailSender{}, sms, awsConfig(true, false), logger.NewNoOpLogger())

	err := n.SendReminders(context.Background(), []*models.ApplicationRecord{dueRecord("board:1")}, "me@example.com", "+490000000")
	require.NoError(t, err)
	assert.Empty(t, sms.inputs)

	n = New(&fakeEmailSender{}, sms, awsConfig(true, true), logger.NewNoOpLogger())
	err = n.SendReminders(context.Background(), []*models.ApplicationRecord{dueRecord("board:1")}, "me@example.com", "+490000000")
	require.NoError(t, err)
	require.Len(t, sms.inputs, 1)
	assert.Equal(t, "+490000000", *sms.inputs[0].PhoneNumber)
}

func TestNotifier_FailureIsIsolatedPerRecord(t *testing.T) {
	email := &fakeEmailSender{err: fmt.Errorf("ses throttled")}
	n := New(email, nil, awsConfig(true, false), logger.NewNoOpLogger())

	records := []*models.ApplicationRecord{dueRecord("board:1"), dueRecord("board:2")}
	err := n.SendReminders(context.Background(), records, "me@example.com", "")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "ses throttled")
}

func TestNotifier_NoChannelsConfigured(t *testing.T) {
	n := New(nil, nil, awsConfig(false, false), logger.NewNoOpLogger())
	err := n.SendReminders(context.Background(), []*models.ApplicationRecord{dueRecord("board:1")}, "", "")
	assert.NoError(t, err)
}
