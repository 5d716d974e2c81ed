package notify

import (
	"context"

	stderrors "ticketflow/internal/common/errors"
	"ticketflow/internal/common/logger"
	"ticketflow/internal/models"
)

// FanoutChannel tries every configured channel and reports success when at
// least one delivery went through. Per-channel failures are logged, not
// surfaced individually.
type FanoutChannel struct {
	channels []Channel
	logger   logger.Logger
}

func NewFanoutChannel(log logger.Logger, channels ...Channel) *FanoutChannel {
	return &FanoutChannel{
		channels: channels,
		logger:   log.WithFields(map[string]interface{}{"channel": "fanout"}),
	}
}

var _ Channel = (*FanoutChannel)(nil)

func (c *FanoutChannel) NotifyCalled(ctx context.Context, t *models.Ticket) error {
	return c.each(ctx, "called", t.Recipient, func(ch Channel) error {
		return ch.NotifyCalled(ctx, t)
	})
}

func (c *FanoutChannel) NotifyReminder(ctx context.Context, t *models.Ticket, level int) error {
	return c.each(ctx, "reminder", t.Recipient, func(ch Channel) error {
		return ch.NotifyReminder(ctx, t, level)
	})
}

func (c *FanoutChannel) NotifyTransfer(ctx context.Context, t *models.Ticket, newServiceName string) error {
	return c.each(ctx, "transfer", t.Recipient, func(ch Channel) error {
		return ch.NotifyTransfer(ctx, t, newServiceName)
	})
}

func (c *FanoutChannel) each(ctx context.Context, kind, recipient string, send func(Channel) error) error {
	if len(c.channels) == 0 {
		return stderrors.NewNotificationSendFailedError("fanout",
			stderrors.NewRecipientUnresolvedError(recipient))
	}

	var lastErr error
	delivered := false
	for _, ch := range c.channels {
		if err := send(ch); err != nil {
			lastErr = err
			c.logger.Warn("channel delivery failed", map[string]interface{}{
				"kind":      kind,
				"recipient": recipient,
				"error":     err.Error(),
			})
			continue
		}
		delivered = true
	}

	if !delivered {
		return lastErr
	}
	return nil
}
