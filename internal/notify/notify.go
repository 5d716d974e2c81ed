// Package notify delivers messages to ticket holders. Delivery is always
// best-effort from the caller's point of view: a failed send is reported as
// an error but never rolls back the operation that triggered it.
package notify

import (
	"context"

	"ticketflow/internal/models"
)

// Channel is the outbound side of the queue core.
type Channel interface {
	// NotifyCalled tells a ticket holder their turn has arrived.
	NotifyCalled(ctx context.Context, t *models.Ticket) error

	// NotifyReminder sends the leveled appointment reminder (1..3).
	NotifyReminder(ctx context.Context, t *models.Ticket, level int) error

	// NotifyTransfer tells a ticket holder their ticket moved to another
	// service.
	NotifyTransfer(ctx context.Context, t *models.Ticket, newServiceName string) error
}

// Contact is the delivery target bound to a recipient identifier.
type Contact struct {
	ChatID string `json:"chat_id,omitempty"`
	Email  string `json:"email,omitempty"`
	Phone  string `json:"phone,omitempty"`
}

// ContactResolver maps an opaque recipient identifier onto a delivery
// target. Implemented by the recipient directory.
type ContactResolver interface {
	Contact(ctx context.Context, recipient string) (Contact, error)
}
