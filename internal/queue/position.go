// Package queue holds the queue core: position estimation and dispatch.
package queue

import (
	"context"

	"ticketflow/internal/common/logger"
	"ticketflow/internal/models"
	"ticketflow/internal/store"
)

// Position is the answer to "where am I in the queue".
type Position struct {
	Status               models.Status `json:"status"`
	Position             int           `json:"position"`
	PeopleAhead          int           `json:"people_ahead"`
	EstimatedWaitMinutes int           `json:"estimated_wait_minutes"`
}

// PositionResolver computes a ticket's rank and estimated wait within its
// (service, branch) partition. Resolve is a pure read: calling it repeatedly
// with no intervening mutation yields identical results.
type PositionResolver struct {
	store  store.TicketStore
	logger logger.Logger
}

func NewPositionResolver(st store.TicketStore, log logger.Logger) *PositionResolver {
	return &PositionResolver{
		store:  st,
		logger: log.WithFields(map[string]interface{}{"component": "position-resolver"}),
	}
}

// Resolve returns the ticket's position payload. Position is only meaningful
// for waiting tickets; any other status yields zeros.
func (r *PositionResolver) Resolve(ctx context.Context, ticketID string) (*Position, error) {
	t, err := r.store.Get(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	if t.Status != models.StatusWaiting {
		return &Position{Status: t.Status}, nil
	}

	waiting, err := r.store.ListWaitingByPartition(ctx, t.ServiceID, t.BranchID)
	if err != nil {
		return nil, err
	}

	ahead := 0
	for _, other := range waiting {
		if other.ID == t.ID {
			continue
		}
		if other.Before(t) {
			ahead++
		}
	}

	// Missing service records fall back to the default duration inside the
	// store; a position lookup never fails on an unknown service.
	duration, err := r.store.ServiceDuration(ctx, t.ServiceID)
	if err != nil {
		return nil, err
	}

	position := ahead + 1
	return &Position{
		Status:               t.Status,
		Position:             position,
		PeopleAhead:          ahead,
		EstimatedWaitMinutes: position * duration,
	}, nil
}
