// Package store defines durable keyed storage for tickets and services.
package store

import (
	"context"
	"time"

	"ticketflow/internal/models"
)

// Scope optionally restricts dispatch queries to an organization and/or
// branch. Zero values mean unrestricted.
type Scope struct {
	OrgID    string
	BranchID string
}

// String renders the scope for logs and error details.
func (s Scope) String() string {
	switch {
	case s.OrgID != "" && s.BranchID != "":
		return s.OrgID + "/" + s.BranchID
	case s.OrgID != "":
		return s.OrgID
	case s.BranchID != "":
		return "*/" + s.BranchID
	default:
		return "*"
	}
}

// TicketStore is the single shared mutable resource of the queue core. All
// exclusive status transitions go through CASStatus; plain reads need only
// read consistency at the point of query.
type TicketStore interface {
	Create(ctx context.Context, t *models.Ticket) error
	Get(ctx context.Context, id string) (*models.Ticket, error)

	// ListWaitingByPartition returns waiting tickets of one (service, branch)
	// partition in total order: created_at ascending, ticket id ascending.
	ListWaitingByPartition(ctx context.Context, serviceID, branchID string) ([]*models.Ticket, error)

	// ListWaitingByScope returns waiting tickets across all partitions inside
	// the scope, in the same total order.
	ListWaitingByScope(ctx context.Context, scope Scope) ([]*models.Ticket, error)

	// ListScheduledWaiting returns waiting tickets that carry a scheduled
	// appointment time, for the reminder sweep.
	ListScheduledWaiting(ctx context.Context) ([]*models.Ticket, error)

	// CASStatus atomically moves a ticket from expected to next status and
	// reports whether this caller won the transition.
	CASStatus(ctx context.Context, id string, expected, next models.Status) (bool, error)

	// UpdateStatus writes a validated status and stamps last_notified_at.
	UpdateStatus(ctx context.Context, id string, status models.Status, at time.Time) error

	// SetNotificationLevel persists an escalation level together with its
	// timestamp; level and timestamp change together or not at all, and the
	// level never decreases.
	SetNotificationLevel(ctx context.Context, id string, level int, at time.Time) error

	// Reassign moves a ticket to a new service partition, forces waiting
	// status, and clears any assigned server.
	Reassign(ctx context.Context, id string, newServiceID string) error

	GetService(ctx context.Context, serviceID string) (*models.Service, error)

	// ServiceDuration returns the service's estimated duration in minutes,
	// falling back to the default when the record is missing. Only genuine
	// storage failures produce an error.
	ServiceDuration(ctx context.Context, serviceID string) (int, error)

	// CountByRecipientSince counts tickets a recipient created at or after
	// the given time, for the daily booking limit.
	CountByRecipientSince(ctx context.Context, recipient string, since time.Time) (int, error)
}
