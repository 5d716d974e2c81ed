package notify

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	stderrors "ticketflow/internal/common/errors"
	"ticketflow/internal/common/logger"
	"ticketflow/internal/models"
)

// SESService is the slice of the SES client the channel needs; kept as an
// interface for mocking.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// EmailChannel delivers messages over AWS SES.
type EmailChannel struct {
	client    SESService
	resolver  ContactResolver
	logger    logger.Logger
	fromEmail string
}

func NewEmailChannel(client SESService, resolver ContactResolver, fromEmail string, log logger.Logger) *EmailChannel {
	return &EmailChannel{
		client:    client,
		resolver:  resolver,
		logger:    log.WithFields(map[string]interface{}{"channel": "email"}),
		fromEmail: fromEmail,
	}
}

var _ Channel = (*EmailChannel)(nil)

func (c *EmailChannel) NotifyCalled(ctx context.Context, t *models.Ticket) error {
	return c.send(ctx, t.Recipient, "Your turn has arrived", calledMessage(t.DisplayNumber))
}

func (c *EmailChannel) NotifyReminder(ctx context.Context, t *models.Ticket, level int) error {
	return c.send(ctx, t.Recipient, reminderSubject(level), reminderMessage(t.DisplayNumber, level))
}

func (c *EmailChannel) NotifyTransfer(ctx context.Context, t *models.Ticket, newServiceName string) error {
	return c.send(ctx, t.Recipient, "Your ticket was transferred", transferMessage(t.DisplayNumber, newServiceName))
}

func (c *EmailChannel) send(ctx context.Context, recipient, subject, body string) error {
	contact, err := c.resolver.Contact(ctx, recipient)
	if err != nil {
		return stderrors.NewNotificationSendFailedError("email", err)
	}
	if contact.Email == "" {
		return stderrors.NewRecipientUnresolvedError(recipient)
	}

	_, err = c.client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{contact.Email},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(c.fromEmail),
	})
	if err != nil {
		return stderrors.NewNotificationSendFailedError("email", err)
	}
	return nil
}
