package email

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/ses"
	"github.com/aws/aws-sdk-go/service/ses/sesiface"
	"github.com/stretchr/testify/require"

	"github.com/therealityreport/socializer/internal/domain"
)

type fakeSESClient struct {
	sesiface.SESAPI
	lastInput *ses.SendEmailInput
	err       error
}

func (f *fakeSESClient) SendEmailWithContext(ctx aws.Context, input *ses.SendEmailInput, opts ...request.Option) (*ses.SendEmailOutput, error) {
	f.lastInput = input
	if f.err != nil {
		return nil, f.err
	}
	return &ses.SendEmailOutput{}, nil
}

func TestDeliver_SendsToResolvedRecipients(t *testing.T) {
	client := &fakeSESClient{}
	n := &Notifier{client: client, fromEmail: "alerts@example.com"}

	err := n.Deliver(context.Background(), domain.AlertSummary{
		Subject: "Alert: test", PlainBody: "plain", HTMLBody: "<p>html</p>", Recipients: []string{"a@x.com"},
	})
	require.NoError(t, err)
	require.NotNil(t, client.lastInput)
	require.Equal(t, "alerts@example.com", *client.lastInput.Source)
}

func TestDeliver_ErrorsWithNoRecipients(t *testing.T) {
	n := &Notifier{client: &fakeSESClient{}, fromEmail: "alerts@example.com"}
	err := n.Deliver(context.Background(), domain.AlertSummary{Subject: "x"})
	require.ErrorIs(t, err, domain.ErrConfigError)
}

func TestChannel_ReturnsEmail(t *testing.T) {
	n := &Notifier{}
	require.Equal(t, "email", n.Channel())
}
