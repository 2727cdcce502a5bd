package email

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSES struct {
	input       *sesv2.SendEmailInput
	hasDeadline bool
	err         error
}

func (f *fakeSES) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = params
	_, f.hasDeadline = ctx.Deadline()
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{}, nil
}

func TestSend(t *testing.T) {
	client := &fakeSES{}
	sink := newSESSink(client, " agent@example.com ", time.Second)

	err := sink.Send(context.Background(), []string{"dba@example.com", " ", "ops@example.com"}, "[DB Agent Alert - HIGH] Performance", "body")
	require.NoError(t, err)

	assert.True(t, client.hasDeadline)
	assert.Equal(t, "agent@example.com", *client.input.FromEmailAddress)
	assert.Equal(t, []string{"dba@example.com", "ops@example.com"}, client.input.Destination.ToAddresses)
	assert.Equal(t, "[DB Agent Alert - HIGH] Performance", *client.input.Content.Simple.Subject.Data)
	assert.Equal(t, "body", *client.input.Content.Simple.Body.Text.Data)
}

func TestSendWithoutRecipients(t *testing.T) {
	client := &fakeSES{}
	sink := newSESSink(client, "agent@example.com", 0)

	err := sink.Send(context.Background(), nil, "s", "b")
	assert.Error(t, err)
	assert.Nil(t, client.input)
	assert.Equal(t, defaultSendTimeout, sink.timeout)
}

func TestSendWrapsClientError(t *testing.T) {
	sink := newSESSink(&fakeSES{err: errors.New("throttled")}, "agent@example.com", time.Second)

	err := sink.Send(context.Background(), []string{"dba@example.com"}, "s", "b")
	assert.ErrorContains(t, err, "failed to send email: throttled")
}

func TestNewSESSinkRequiresSender(t *testing.T) {
	_, err := NewSESSink(context.Background(), Config{Region: "eu-west-1"})
	assert.Error(t, err)
}
