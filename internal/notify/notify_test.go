package notify

import (
	"context"
	"time"

	"ticketflow/internal/models"
)

// ==========================
// Shared Test Fixtures
// ==========================

// stubResolver returns a fixed contact, or an error when set.
type stubResolver struct {
	contact Contact
	err     error
}

func (r *stubResolver) Contact(_ context.Context, _ string) (Contact, error) {
	if r.err != nil {
		return Contact{}, r.err
	}
	return r.contact, nil
}

func testTicket() *models.Ticket {
	return &models.Ticket{
		ID:            "ticket-a",
		Recipient:     "recipient-a",
		DisplayNumber: "P-AB12CD",
		OrgID:         "org-1",
		BranchID:      "br-1",
		ServiceID:     "svc-1",
		Status:        models.StatusWaiting,
		CreatedAt:     time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
	}
}
