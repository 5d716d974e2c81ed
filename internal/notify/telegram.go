package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	stderrors "ticketflow/internal/common/errors"
	"ticketflow/internal/common/httpx"
	"ticketflow/internal/common/logger"
	"ticketflow/internal/models"
)

// TelegramChannel delivers messages through the Telegram bot HTTP API. The
// chat ID for a recipient comes from the directory; an unbound recipient is
// a soft delivery failure, not a fatal error.
type TelegramChannel struct {
	client   *httpx.Client
	resolver ContactResolver
	logger   logger.Logger
	apiBase  string
	botToken string
}

func NewTelegramChannel(client *httpx.Client, resolver ContactResolver, apiBase, botToken string, log logger.Logger) *TelegramChannel {
	return &TelegramChannel{
		client:   client,
		resolver: resolver,
		logger:   log.WithFields(map[string]interface{}{"channel": "telegram"}),
		apiBase:  apiBase,
		botToken: botToken,
	}
}

var _ Channel = (*TelegramChannel)(nil)

func (c *TelegramChannel) NotifyCalled(ctx context.Context, t *models.Ticket) error {
	return c.send(ctx, t.Recipient, calledMessage(t.DisplayNumber))
}

func (c *TelegramChannel) NotifyReminder(ctx context.Context, t *models.Ticket, level int) error {
	return c.send(ctx, t.Recipient, reminderMessage(t.DisplayNumber, level))
}

func (c *TelegramChannel) NotifyTransfer(ctx context.Context, t *models.Ticket, newServiceName string) error {
	return c.send(ctx, t.Recipient, transferMessage(t.DisplayNumber, newServiceName))
}

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

func (c *TelegramChannel) send(ctx context.Context, recipient, text string) error {
	contact, err := c.resolver.Contact(ctx, recipient)
	if err != nil {
		return stderrors.NewNotificationSendFailedError("telegram", err)
	}
	if contact.ChatID == "" {
		return stderrors.NewRecipientUnresolvedError(recipient)
	}

	body, err := json.Marshal(sendMessageRequest{ChatID: contact.ChatID, Text: text})
	if err != nil {
		return stderrors.NewNotificationSendFailedError("telegram", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", c.apiBase, c.botToken)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return stderrors.NewNotificationSendFailedError("telegram", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.DoWithContext(ctx, req)
	if err != nil {
		return stderrors.NewNotificationSendFailedError("telegram", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return stderrors.NewNotificationSendFailedError("telegram",
			fmt.Errorf("sendMessage returned status %d", resp.StatusCode))
	}

	c.logger.Debug("message delivered", map[string]interface{}{
		"recipient": recipient,
	})
	return nil
}
