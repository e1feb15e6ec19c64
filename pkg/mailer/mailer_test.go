package mailer

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmatch/dmatch-api/pkg/config"
)

type sesClientStub struct {
	input *ses.SendEmailInput
	err   error
}

func (s *sesClientStub) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	s.input = params
	if s.err != nil {
		return nil, s.err
	}
	return &ses.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSESMailerSend(t *testing.T) {
	client := &sesClientStub{}
	m := NewSESMailerWithClient(client, "no-reply@dmatch.local")

	err := m.Send(context.Background(), Message{To: "a@example.com", Subject: "Application accepted", Body: "hello"})
	require.NoError(t, err)
	require.NotNil(t, client.input)
	assert.Equal(t, []string{"a@example.com"}, client.input.Destination.ToAddresses)
	assert.Equal(t, "no-reply@dmatch.local", aws.ToString(client.input.Source))
	assert.Equal(t, "Application accepted", aws.ToString(client.input.Message.Subject.Data))
}

func TestSESMailerErrors(t *testing.T) {
	client := &sesClientStub{err: errors.New("throttled")}
	m := NewSESMailerWithClient(client, "no-reply@dmatch.local")

	assert.Error(t, m.Send(context.Background(), Message{To: " "}))
	assert.Nil(t, client.input)

	err := m.Send(context.Background(), Message{To: "a@example.com"})
	assert.ErrorContains(t, err, "throttled")
}

func TestNewDefaultsToLogMailer(t *testing.T) {
	m, err := New(context.Background(), config.MailConfig{Provider: "log"}, nil)
	require.NoError(t, err)
	_, ok := m.(*LogMailer)
	assert.True(t, ok)
	assert.NoError(t, m.Send(context.Background(), Message{To: "a@example.com"}))
}
