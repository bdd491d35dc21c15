// internal/notify/aws_test.go
package notify

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assignment-service/internal/common/config"
	"assignment-service/internal/common/errors"
	"assignment-service/internal/common/logger"
	"assignment-service/internal/models"
	"assignment-service/internal/storage/storagetest"
)

type mockSES struct {
	mu     sync.Mutex
	inputs []*ses.SendEmailInput
	err    error
}

func (m *mockSES) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputs = append(m.inputs, params)
	if m.err != nil {
		return nil, m.err
	}
	return &ses.SendEmailOutput{}, nil
}

type mockSNS struct {
	mu     sync.Mutex
	inputs []*sns.PublishInput
	err    error
}

func (m *mockSNS) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputs = append(m.inputs, params)
	if m.err != nil {
		return nil, m.err
	}
	return &sns.PublishOutput{}, nil
}

func notifierConfig(email, sms bool) *config.NotificationConfig {
	cfg := &config.NotificationConfig{}
	cfg.Email.Enabled = email
	cfg.Email.FromEmail = "noreply@example.com"
	cfg.SMS.Enabled = sms
	return cfg
}

func seedDeveloper(store *storagetest.Fake, id, email, phone string) {
	store.Developers[id] = &models.Developer{
		ID:    id,
		Email: email,
		Phone: phone,
		Tier:  models.TierMid,
	}
}

func TestNotify_EmailDelivery(t *testing.T) {
	store := storagetest.NewFake()
	seedDeveloper(store, "dev-1", "dev1@example.com", "")
	seedDeveloper(store, "dev-2", "dev2@example.com", "")

	sesMock := &mockSES{}
	snsMock := &mockSNS{}
	n := NewAWSNotifierWithClients(notifierConfig(true, false), store, sesMock, snsMock, logger.NewTestLogger(t))

	id, err := n.Notify(context.Background(), EventAssignmentInvite, []string{"dev-1", "dev-2"}, map[string]interface{}{
		"projectTitle": "Payment gateway",
		"deadline":     "2026-08-29T12:00:00Z",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	require.Len(t, sesMock.inputs, 2)
	assert.Empty(t, snsMock.inputs)

	first := sesMock.inputs[0]
	assert.Equal(t, "noreply@example.com", *first.Source)
	assert.Equal(t, []string{"dev1@example.com"}, first.Destination.ToAddresses)
	assert.Equal(t, "New project available: Payment gateway", *first.Message.Subject.Data)
	assert.Contains(t, *first.Message.Body.Text.Data, "2026-08-29T12:00:00Z")
}

func TestNotify_SMSDelivery(t *testing.T) {
	store := storagetest.NewFake()
	seedDeveloper(store, "dev-1", "", "+15550001111")

	sesMock := &mockSES{}
	snsMock := &mockSNS{}
	n := NewAWSNotifierWithClients(notifierConfig(false, true), store, sesMock, snsMock, logger.NewTestLogger(t))

	_, err := n.Notify(context.Background(), EventAssignmentWon, []string{"dev-1"}, map[string]interface{}{
		"projectTitle": "Payment gateway",
	})
	require.NoError(t, err)
	assert.Empty(t, sesMock.inputs)
	require.Len(t, snsMock.inputs, 1)
	assert.Equal(t, "+15550001111", *snsMock.inputs[0].PhoneNumber)
	assert.Contains(t, *snsMock.inputs[0].Message, "Payment gateway")
}

func TestNotify_PartialFailureContinues(t *testing.T) {
	store := storagetest.NewFake()
	seedDeveloper(store, "dev-2", "dev2@example.com", "")

	sesMock := &mockSES{}
	n := NewAWSNotifierWithClients(notifierConfig(true, false), store, sesMock, &mockSNS{}, logger.NewTestLogger(t))

	// dev-1 does not exist; dev-2 must still get its email.
	_, err := n.Notify(context.Background(), EventAssignmentClosed, []string{"dev-1", "dev-2"}, map[string]interface{}{
		"projectTitle": "Payment gateway",
	})
	require.NoError(t, err)
	require.Len(t, sesMock.inputs, 1)
	assert.Equal(t, []string{"dev2@example.com"}, sesMock.inputs[0].Destination.ToAddresses)
}

func TestNotify_AllFailed(t *testing.T) {
	store := storagetest.NewFake()
	seedDeveloper(store, "dev-1", "dev1@example.com", "")

	sesMock := &mockSES{err: fmt.Errorf("throttled")}
	n := NewAWSNotifierWithClients(notifierConfig(true, false), store, sesMock, &mockSNS{}, logger.NewTestLogger(t))

	id, err := n.Notify(context.Background(), EventAssignmentInvite, []string{"dev-1"}, nil)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNotificationSendFailed, errors.CodeOf(err))
	assert.NotEmpty(t, id, "notification id is still returned for correlation")
}

func TestNotify_UnknownEvent(t *testing.T) {
	n := NewAWSNotifierWithClients(notifierConfig(true, false), storagetest.NewFake(), &mockSES{}, &mockSNS{}, logger.NewTestLogger(t))

	_, err := n.Notify(context.Background(), Event("no_such_event"), []string{"dev-1"}, nil)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNotificationSendFailed, errors.CodeOf(err))
}

func TestRenderTemplate(t *testing.T) {
	tests := []struct {
		name     string
		tmpl     string
		data     map[string]interface{}
		expected string
	}{
		{
			name:     "string substitution",
			tmpl:     "Hello {{name}}",
			data:     map[string]interface{}{"name": "dev"},
			expected: "Hello dev",
		},
		{
			name:     "int substitution",
			tmpl:     "{{count}} slots left",
			data:     map[string]interface{}{"count": 3},
			expected: "3 slots left",
		},
		{
			name:     "unknown placeholder stripped",
			tmpl:     "Hi {{name}}, bye {{missing}}",
			data:     map[string]interface{}{"name": "dev"},
			expected: "Hi dev, bye ",
		},
		{
			name:     "nil data",
			tmpl:     "plain text",
			data:     nil,
			expected: "plain text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, renderTemplate(tt.tmpl, tt.data))
		})
	}
}

func TestDispatcher_DeliversQueuedSends(t *testing.T) {
	store := storagetest.NewFake()
	seedDeveloper(store, "dev-1", "dev1@example.com", "")

	sesMock := &mockSES{}
	n := NewAWSNotifierWithClients(notifierConfig(true, false), store, sesMock, &mockSNS{}, logger.NewTestLogger(t))

	d := NewDispatcher(n, 8, 1, logger.NewTestLogger(t))
	d.Dispatch(EventAssignmentInvite, []string{"dev-1"}, map[string]interface{}{"projectTitle": "p"})
	d.Dispatch(EventAssignmentWon, []string{"dev-1"}, map[string]interface{}{"projectTitle": "p"})
	d.Close()

	sesMock.mu.Lock()
	defer sesMock.mu.Unlock()
	assert.Len(t, sesMock.inputs, 2)
}

func TestDispatcher_EmptyRecipientsSkipped(t *testing.T) {
	sesMock := &mockSES{}
	n := NewAWSNotifierWithClients(notifierConfig(true, false), storagetest.NewFake(), sesMock, &mockSNS{}, logger.NewTestLogger(t))

	d := NewDispatcher(n, 8, 1, logger.NewTestLogger(t))
	d.Dispatch(EventAssignmentInvite, nil, nil)
	d.Close()

	assert.Empty(t, sesMock.inputs)
}

func TestDispatcher_CloseIsIdempotent(t *testing.T) {
	n := NewAWSNotifierWithClients(notifierConfig(true, false), storagetest.NewFake(), &mockSES{}, &mockSNS{}, logger.NewTestLogger(t))
	d := NewDispatcher(n, 8, 1, logger.NewTestLogger(t))
	d.Close()
	assert.NotPanics(t, func() { d.Close() })
}
