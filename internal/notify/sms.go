package notify

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	stderrors "ticketflow/internal/common/errors"
	"ticketflow/internal/common/logger"
	"ticketflow/internal/models"
)

// SNSService is the slice of the SNS client the channel needs; kept as an
// interface for mocking.
type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SMSChannel delivers messages over AWS SNS.
type SMSChannel struct {
	client   SNSService
	resolver ContactResolver
	logger   logger.Logger
}

func NewSMSChannel(client SNSService, resolver ContactResolver, log logger.Logger) *SMSChannel {
	return &SMSChannel{
		client:   client,
		resolver: resolver,
		logger:   log.WithFields(map[string]interface{}{"channel": "sms"}),
	}
}

var _ Channel = (*SMSChannel)(nil)

func (c *SMSChannel) NotifyCalled(ctx context.Context, t *models.Ticket) error {
	return c.send(ctx, t.Recipient, calledMessage(t.DisplayNumber))
}

func (c *SMSChannel) NotifyReminder(ctx context.Context, t *models.Ticket, level int) error {
	return c.send(ctx, t.Recipient, reminderMessage(t.DisplayNumber, level))
}

func (c *SMSChannel) NotifyTransfer(ctx context.Context, t *models.Ticket, newServiceName string) error {
	return c.send(ctx, t.Recipient, transferMessage(t.DisplayNumber, newServiceName))
}

func (c *SMSChannel) send(ctx context.Context, recipient, message string) error {
	contact, err := c.resolver.Contact(ctx, recipient)
	if err != nil {
		return stderrors.NewNotificationSendFailedError("sms", err)
	}
	if contact.Phone == "" {
		return stderrors.NewRecipientUnresolvedError(recipient)
	}

	_, err = c.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(contact.Phone),
		Message:     aws.String(message),
	})
	if err != nil {
		return stderrors.NewNotificationSendFailedError("sms", err)
	}
	return nil
}
