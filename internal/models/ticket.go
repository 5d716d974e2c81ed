package models

import "time"

// Status is the ticket lifecycle state.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusServing   Status = "serving"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusWaiting, StatusServing, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether s permits no further transitions other than transfer.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Ticket is a single queued request for service.
type Ticket struct {
	ID            string     `json:"ticket_id"`
	Recipient     string     `json:"recipient"`
	DisplayNumber string     `json:"display_number"`
	OrgID         string     `json:"org_id"`
	BranchID      string     `json:"branch_id"`
	ServiceID     string     `json:"service_id"`
	Status        Status     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	ScheduledAt   *time.Time `json:"scheduled_at,omitempty"`

	// NotificationLevel is the reminder escalation stage already reached,
	// 0 through 3, never decreasing.
	NotificationLevel int        `json:"notification_level"`
	LastNotifiedAt    *time.Time `json:"last_notified_at,omitempty"`

	AssignedServer *string `json:"assigned_server,omitempty"`
}

// PartitionKey scopes FIFO ordering for position estimation. OrgID is a
// visibility scope for dispatch, not part of the partition.
type PartitionKey struct {
	ServiceID string
	BranchID  string
}

// Partition returns the ticket's ordering partition.
func (t *Ticket) Partition() PartitionKey {
	return PartitionKey{ServiceID: t.ServiceID, BranchID: t.BranchID}
}

// Before defines the total order within a partition: CreatedAt ascending,
// ties broken by ID so ranking stays deterministic under identical timestamps.
func (t *Ticket) Before(other *Ticket) bool {
	if t.CreatedAt.Equal(other.CreatedAt) {
		return t.ID < other.ID
	}
	return t.CreatedAt.Before(other.CreatedAt)
}
