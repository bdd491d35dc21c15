// internal/notify/aws.go
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/google/uuid"

	"assignment-service/internal/common/config"
	"assignment-service/internal/common/errors"
	"assignment-service/internal/common/logger"
	"assignment-service/internal/common/metrics"
	"assignment-service/internal/storage"
)

// Interfaces over the AWS clients so tests can substitute mocks.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// AWSNotifier sends candidate notifications over SES email and SNS SMS.
// Recipient contact details come from the developer records.
type AWSNotifier struct {
	config    *config.NotificationConfig
	store     storage.Store
	logger    logger.Logger
	sesClient SESService
	snsClient SNSService
	templates map[Event]notificationTemplate
}

type notificationTemplate struct {
	subject string
	body    string
}

func NewAWSNotifier(ctx context.Context, cfg *config.NotificationConfig, store storage.Store, log logger.Logger) (*AWSNotifier, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	return &AWSNotifier{
		config:    cfg,
		store:     store,
		logger:    log.WithFields(map[string]interface{}{"component": "notifier"}),
		sesClient: ses.NewFromConfig(awsCfg),
		snsClient: sns.NewFromConfig(awsCfg),
		templates: defaultTemplates(),
	}, nil
}

// NewAWSNotifierWithClients wires explicit clients, used by tests.
func NewAWSNotifierWithClients(cfg *config.NotificationConfig, store storage.Store, sesClient SESService, snsClient SNSService, log logger.Logger) *AWSNotifier {
	return &AWSNotifier{
		config:    cfg,
		store:     store,
		logger:    log.WithFields(map[string]interface{}{"component": "notifier"}),
		sesClient: sesClient,
		snsClient: snsClient,
		templates: defaultTemplates(),
	}
}

// Notify renders the event template and delivers it to each recipient
// over every enabled channel. Per-recipient failures are logged and do
// not stop the remaining deliveries; the returned id identifies the
// whole send for correlation.
func (n *AWSNotifier) Notify(ctx context.Context, event Event, recipientIDs []string, payload map[string]interface{}) (string, error) {
	tmpl, ok := n.templates[event]
	if !ok {
		return "", errors.NewNotificationSendFailedError(string(event), fmt.Errorf("no template registered"))
	}

	subject := renderTemplate(tmpl.subject, payload)
	body := renderTemplate(tmpl.body, payload)
	notificationID := uuid.New().String()

	var failed int
	for _, id := range recipientIDs {
		if err := n.notifyOne(ctx, id, subject, body); err != nil {
			failed++
			metrics.NotificationsSent.WithLabelValues(string(event), "failed").Inc()
			n.logger.Warn("notification delivery failed", map[string]interface{}{
				"notification_id": notificationID,
				"event":           string(event),
				"developer_id":    id,
				"error":           err.Error(),
			})
			continue
		}
		metrics.NotificationsSent.WithLabelValues(string(event), "sent").Inc()
	}

	if failed == len(recipientIDs) && len(recipientIDs) > 0 {
		return notificationID, errors.NewNotificationSendFailedError(string(event), fmt.Errorf("all deliveries failed"))
	}
	return notificationID, nil
}

func (n *AWSNotifier) notifyOne(ctx context.Context, developerID, subject, body string) error {
	dev, err := n.store.GetDeveloper(ctx, developerID)
	if err != nil {
		return err
	}

	var sent bool
	if n.config.Email.Enabled && dev.Email != "" {
		if err := n.sendEmail(ctx, dev.Email, subject, body); err != nil {
			return err
		}
		sent = true
	}
	if n.config.SMS.Enabled && dev.Phone != "" {
		if err := n.sendSMS(ctx, dev.Phone, body); err != nil {
			return err
		}
		sent = true
	}
	if !sent {
		n.logger.Debug("no enabled channel for developer", map[string]interface{}{
			"developer_id": developerID,
		})
	}
	return nil
}

func (n *AWSNotifier) sendEmail(ctx context.Context, to, subject, body string) error {
	_, err := n.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(n.config.Email.FromEmail),
	})
	return err
}

func (n *AWSNotifier) sendSMS(ctx context.Context, to, message string) error {
	_, err := n.snsClient.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(to),
		Message:     aws.String(message),
	})
	return err
}

// renderTemplate substitutes {{key}} placeholders; unknown placeholders
// collapse to empty strings.
func renderTemplate(tmpl string, data map[string]interface{}) string {
	result := tmpl
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		value := ""
		switch t := v.(type) {
		case string:
			value = t
		case int:
			value = fmt.Sprintf("%d", t)
		default:
			if v != nil {
				value = fmt.Sprintf("%v", v)
			}
		}
		result = strings.ReplaceAll(result, placeholder, value)
	}

	for {
		start := strings.Index(result, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}}")
		if end == -1 {
			break
		}
		end += start + 2
		result = result[:start] + result[end:]
	}

	return result
}

func defaultTemplates() map[Event]notificationTemplate {
	return map[Event]notificationTemplate{
		EventAssignmentInvite: {
			subject: "New project available: {{projectTitle}}",
			body:    "You have been selected for \"{{projectTitle}}\". Reply ACCEPT or REJECT before {{deadline}}.",
		},
		EventManualInvite: {
			subject: "Personal invite: {{projectTitle}}",
			body:    "You have been personally invited to \"{{projectTitle}}\". Reply ACCEPT or REJECT at your convenience.",
		},
		EventAssignmentWon: {
			subject: "Assignment confirmed: {{projectTitle}}",
			body:    "You won the assignment for \"{{projectTitle}}\". The client has been notified.",
		},
		EventAssignmentClosed: {
			subject: "Assignment closed: {{projectTitle}}",
			body:    "\"{{projectTitle}}\" has been assigned to another developer. Thanks for responding.",
		},
	}
}
