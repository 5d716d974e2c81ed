package queue

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	stderrors "ticketflow/internal/common/errors"
	"ticketflow/internal/common/logger"
	"ticketflow/internal/models"
	"ticketflow/internal/store"
)

// BookingRequest creates one ticket. ScheduledAt is optional; when present
// it drives the reminder scheduler.
type BookingRequest struct {
	Recipient   string
	OrgID       string
	BranchID    string
	ServiceID   string
	ScheduledAt *time.Time
}

// BookingService creates tickets, enforcing the per-recipient daily limit.
type BookingService struct {
	store      store.TicketStore
	events     EventSink
	logger     logger.Logger
	dailyLimit int
}

func NewBookingService(st store.TicketStore, events EventSink, dailyLimit int, log logger.Logger) *BookingService {
	if dailyLimit <= 0 {
		dailyLimit = 3
	}
	return &BookingService{
		store:      st,
		events:     events,
		logger:     log.WithFields(map[string]interface{}{"component": "booking-service"}),
		dailyLimit: dailyLimit,
	}
}

// Create books a ticket. The target service must exist; the recipient must
// be under their daily ticket quota.
func (b *BookingService) Create(ctx context.Context, req BookingRequest) (*models.Ticket, error) {
	svc, err := b.store.GetService(ctx, req.ServiceID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	count, err := b.store.CountByRecipientSince(ctx, req.Recipient, midnight)
	if err != nil {
		return nil, err
	}
	if count >= b.dailyLimit {
		return nil, stderrors.NewDailyLimitReachedError(req.Recipient, b.dailyLimit)
	}

	id := uuid.New().String()
	t := &models.Ticket{
		ID:            id,
		Recipient:     req.Recipient,
		DisplayNumber: displayNumber(svc.Name, id),
		OrgID:         req.OrgID,
		BranchID:      req.BranchID,
		ServiceID:     req.ServiceID,
		Status:        models.StatusWaiting,
		CreatedAt:     now,
		ScheduledAt:   req.ScheduledAt,
	}

	if err := b.store.Create(ctx, t); err != nil {
		return nil, err
	}

	if b.events != nil {
		b.events.TicketCreated(ctx, t)
	}

	b.logger.Info("ticket booked", map[string]interface{}{
		"ticketId":      t.ID,
		"displayNumber": t.DisplayNumber,
		"serviceId":     t.ServiceID,
	})
	return t, nil
}

// displayNumber builds the human-facing label: service initial plus a short
// unique suffix. Opaque to the core.
func displayNumber(serviceName, id string) string {
	prefix := "T"
	if trimmed := []rune(strings.TrimSpace(serviceName)); len(trimmed) > 0 {
		prefix = strings.ToUpper(string(trimmed[0]))
	}
	suffix := strings.ToUpper(strings.ReplaceAll(id, "-", ""))
	if len(suffix) > 6 {
		suffix = suffix[:6]
	}
	return prefix + "-" + suffix
}
