package queue

import (
	"context"
	"time"

	stderrors "ticketflow/internal/common/errors"
	"ticketflow/internal/common/logger"
	"ticketflow/internal/common/metrics"
	"ticketflow/internal/models"
	"ticketflow/internal/notify"
	"ticketflow/internal/store"
)

// EventSink receives best-effort audit events for ticket mutations. A nil
// sink disables auditing.
type EventSink interface {
	TicketCreated(ctx context.Context, t *models.Ticket)
	TicketCalled(ctx context.Context, t *models.Ticket)
	TicketStatusChanged(ctx context.Context, t *models.Ticket, from, to models.Status)
	TicketTransferred(ctx context.Context, t *models.Ticket, newServiceID string)
}

// DispatchConfig tunes the controller.
type DispatchConfig struct {
	// CASRetries is how many extra selection attempts follow a lost
	// compare-and-swap race before giving up with NoneWaiting.
	CASRetries int

	// NotifyTimeout bounds the best-effort notification call.
	NotifyTimeout time.Duration
}

// DispatchController atomically selects and advances the next eligible
// ticket, and applies validated status changes and transfers.
type DispatchController struct {
	store   store.TicketStore
	channel notify.Channel
	events  EventSink
	logger  logger.Logger
	cfg     DispatchConfig
}

func NewDispatchController(st store.TicketStore, ch notify.Channel, events EventSink, cfg DispatchConfig, log logger.Logger) *DispatchController {
	if cfg.CASRetries <= 0 {
		cfg.CASRetries = 1
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 5 * time.Second
	}
	return &DispatchController{
		store:   st,
		channel: ch,
		events:  events,
		logger:  log.WithFields(map[string]interface{}{"component": "dispatch-controller"}),
		cfg:     cfg,
	}
}

// CallNext selects the oldest waiting ticket in scope, true FIFO across all
// partitions (created_at ascending with id tie-break), and moves it to
// serving with a compare-and-swap. At most one concurrent caller wins a
// given ticket. Losing a race retries selection against the remaining pool;
// an exhausted or empty pool surfaces as ErrNoneWaiting.
func (c *DispatchController) CallNext(ctx context.Context, scope store.Scope) (*models.Ticket, error) {
	tried := make(map[string]bool)

	for attempt := 0; attempt <= c.cfg.CASRetries; attempt++ {
		waiting, err := c.store.ListWaitingByScope(ctx, scope)
		if err != nil {
			return nil, err
		}

		var candidate *models.Ticket
		for _, t := range waiting {
			if !tried[t.ID] {
				candidate = t
				break
			}
		}
		if candidate == nil {
			return nil, stderrors.NewNoneWaitingError(scope.String())
		}

		won, err := c.store.CASStatus(ctx, candidate.ID, models.StatusWaiting, models.StatusServing)
		if err != nil {
			return nil, err
		}
		if !won {
			// Another caller dispatched this ticket between our read and
			// write; drop it from consideration and reselect.
			metrics.DispatchConflicts.Inc()
			tried[candidate.ID] = true
			c.logger.Debug("lost dispatch race, reselecting", map[string]interface{}{
				"ticketId": candidate.ID,
			})
			continue
		}

		candidate.Status = models.StatusServing
		metrics.TicketsDispatched.WithLabelValues(candidate.OrgID).Inc()

		c.notifyCalled(ctx, candidate)
		if c.events != nil {
			c.events.TicketCalled(ctx, candidate)
		}

		c.logger.Info("ticket dispatched", map[string]interface{}{
			"ticketId":      candidate.ID,
			"displayNumber": candidate.DisplayNumber,
			"scope":         scope.String(),
		})
		return candidate, nil
	}

	return nil, stderrors.NewNoneWaitingError(scope.String())
}

// notifyCalled is best-effort: a delivery failure never rolls back the
// status transition.
func (c *DispatchController) notifyCalled(ctx context.Context, t *models.Ticket) {
	nctx, cancel := context.WithTimeout(ctx, c.cfg.NotifyTimeout)
	defer cancel()

	if err := c.channel.NotifyCalled(nctx, t); err != nil {
		metrics.NotificationFailures.WithLabelValues("called").Inc()
		c.logger.Warn("call notification failed", map[string]interface{}{
			"ticketId": t.ID,
			"error":    err.Error(),
		})
	}
}

// UpdateStatus applies a validated status change. The write goes through the
// same compare-and-swap as dispatch so a stale read cannot clobber a
// concurrent transition.
func (c *DispatchController) UpdateStatus(ctx context.Context, ticketID string, newStatus models.Status) (*models.Ticket, error) {
	if !newStatus.Valid() {
		return nil, stderrors.NewInvalidTransitionError("?", string(newStatus))
	}

	t, err := c.store.Get(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	if !models.ValidTransition(t.Status, newStatus) {
		return nil, stderrors.NewInvalidTransitionError(string(t.Status), string(newStatus))
	}

	won, err := c.store.CASStatus(ctx, ticketID, t.Status, newStatus)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, stderrors.NewDispatchConflictError(ticketID)
	}

	from := t.Status
	t.Status = newStatus
	now := time.Now().UTC()
	t.LastNotifiedAt = &now

	if c.events != nil {
		c.events.TicketStatusChanged(ctx, t, from, newStatus)
	}

	c.logger.Info("ticket status updated", map[string]interface{}{
		"ticketId": t.ID,
		"from":     string(from),
		"to":       string(newStatus),
	})
	return t, nil
}

// Transfer reassigns a ticket to another service partition, forcing it back
// to waiting and clearing any server assignment. Valid from any non-terminal
// status.
func (c *DispatchController) Transfer(ctx context.Context, ticketID, newServiceID string) (*models.Ticket, error) {
	t, err := c.store.Get(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	if t.Status.Terminal() {
		return nil, stderrors.NewInvalidTransitionError(string(t.Status), string(models.StatusWaiting))
	}

	svc, err := c.store.GetService(ctx, newServiceID)
	if err != nil {
		return nil, err
	}

	if err := c.store.Reassign(ctx, ticketID, newServiceID); err != nil {
		return nil, err
	}

	t.ServiceID = newServiceID
	t.Status = models.StatusWaiting
	t.AssignedServer = nil

	c.notifyTransfer(ctx, t, svc.Name)
	if c.events != nil {
		c.events.TicketTransferred(ctx, t, newServiceID)
	}

	c.logger.Info("ticket transferred", map[string]interface{}{
		"ticketId":     t.ID,
		"newServiceId": newServiceID,
	})
	return t, nil
}

func (c *DispatchController) notifyTransfer(ctx context.Context, t *models.Ticket, serviceName string) {
	nctx, cancel := context.WithTimeout(ctx, c.cfg.NotifyTimeout)
	defer cancel()

	if err := c.channel.NotifyTransfer(nctx, t, serviceName); err != nil {
		metrics.NotificationFailures.WithLabelValues("transfer").Inc()
		c.logger.Warn("transfer notification failed", map[string]interface{}{
			"ticketId": t.ID,
			"error":    err.Error(),
		})
	}
}
