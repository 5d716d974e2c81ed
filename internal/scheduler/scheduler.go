// Package scheduler runs the recurring reminder sweep: a single background
// task that escalates time-windowed appointment reminders per ticket and
// sends them through the notification channel.
package scheduler

import (
	"context"
	"sync"
	"time"

	"ticketflow/internal/common/logger"
	"ticketflow/internal/common/metrics"
	"ticketflow/internal/models"
	"ticketflow/internal/notify"
	"ticketflow/internal/store"
)

// EventSink receives best-effort audit events for fired reminders. A nil
// sink disables auditing.
type EventSink interface {
	TicketReminded(ctx context.Context, t *models.Ticket, level int)
}

// Config tunes the scheduler.
type Config struct {
	// SweepInterval is the fixed time between sweeps. Reference value 60s;
	// the reminder windows are wide enough that a failed send is retried on
	// following sweeps until the window elapses.
	SweepInterval time.Duration

	// NotifyTimeout bounds each delivery call; a timeout counts as a
	// delivery failure, not a fatal error.
	NotifyTimeout time.Duration
}

// Scheduler is an explicitly managed background task: Start launches the
// sweep loop, Stop lets an in-flight sweep finish before returning. Sweeps
// never overlap because a single goroutine runs them sequentially.
type Scheduler struct {
	store   store.TicketStore
	channel notify.Channel
	events  EventSink
	logger  logger.Logger
	cfg     Config

	// now is injectable for window arithmetic in tests.
	now func() time.Time

	// missedLogged dedupes missed-window accounting per ticket so a window
	// that elapsed unsent is reported once, not on every later sweep.
	missedLogged map[string]int

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(st store.TicketStore, ch notify.Channel, events EventSink, cfg Config, log logger.Logger) *Scheduler {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 5 * time.Second
	}
	return &Scheduler{
		store:        st,
		channel:      ch,
		events:       events,
		logger:       log.WithFields(map[string]interface{}{"component": "reminder-scheduler"}),
		cfg:          cfg,
		now:          time.Now,
		missedLogged: make(map[string]int),
	}
}

// Start launches the sweep loop. It returns immediately; the loop stops when
// Stop is called or the parent context is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.cfg.SweepInterval)
		defer ticker.Stop()

		s.logger.Info("reminder scheduler started", map[string]interface{}{
			"sweepInterval": s.cfg.SweepInterval.String(),
		})

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("reminder scheduler stopped", nil)
				return
			case <-ticker.C:
				s.Sweep(ctx)
			}
		}
	}()
}

// Stop signals the loop and waits for any in-flight sweep to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// Sweep runs one full pass over all waiting tickets with a scheduled time.
// Each ticket is evaluated independently: a failure on one never stops the
// rest of the sweep.
func (s *Scheduler) Sweep(ctx context.Context) {
	started := s.now()

	tickets, err := s.store.ListScheduledWaiting(ctx)
	if err != nil {
		s.logger.Error("sweep enumeration failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	metrics.SweepTickets.Set(float64(len(tickets)))

	seen := make(map[string]bool, len(tickets))
	for _, t := range tickets {
		seen[t.ID] = true
		s.sweepTicket(ctx, t)
	}
	s.pruneMissed(seen)

	metrics.SweepDuration.Observe(s.now().Sub(started).Seconds())
}

// sweepTicket applies the escalation window table to a single ticket. The
// windows are disjoint, so at most one reminder fires per sweep per ticket.
func (s *Scheduler) sweepTicket(ctx context.Context, t *models.Ticket) {
	if t.ScheduledAt == nil {
		return
	}

	minutesLeft := t.ScheduledAt.Sub(s.now()).Minutes()

	s.recordMissed(t, minutesLeft)

	level, due := models.NextReminder(minutesLeft, t.NotificationLevel)
	if !due {
		return
	}

	nctx, cancel := context.WithTimeout(ctx, s.cfg.NotifyTimeout)
	err := s.channel.NotifyReminder(nctx, t, level)
	cancel()
	if err != nil {
		// The level stays unchanged, so this window is retried every sweep
		// until the send succeeds or the window elapses.
		metrics.NotificationFailures.WithLabelValues("reminder").Inc()
		s.logger.Warn("reminder delivery failed, will retry next sweep", map[string]interface{}{
			"ticketId":    t.ID,
			"level":       level,
			"minutesLeft": minutesLeft,
			"error":       err.Error(),
		})
		return
	}

	// Level and timestamp persist together, and only after a confirmed send.
	if err := s.store.SetNotificationLevel(ctx, t.ID, level, s.now().UTC()); err != nil {
		s.logger.Error("failed to persist notification level", map[string]interface{}{
			"ticketId": t.ID,
			"level":    level,
			"error":    err.Error(),
		})
		return
	}

	t.NotificationLevel = level
	metrics.RemindersSent.WithLabelValues(levelLabel(level)).Inc()
	if s.events != nil {
		s.events.TicketReminded(ctx, t, level)
	}

	s.logger.Info("reminder sent", map[string]interface{}{
		"ticketId":    t.ID,
		"level":       level,
		"minutesLeft": minutesLeft,
	})
}

// recordMissed accounts for windows that fully elapsed without a successful
// send. A missed level is logged once per ticket; no error surfaces.
func (s *Scheduler) recordMissed(t *models.Ticket, minutesLeft float64) {
	for _, level := range models.MissedLevels(minutesLeft, t.NotificationLevel) {
		if s.missedLogged[t.ID] >= level {
			continue
		}
		s.missedLogged[t.ID] = level
		metrics.RemindersMissed.WithLabelValues(levelLabel(level)).Inc()
		s.logger.Warn("reminder window elapsed without delivery", map[string]interface{}{
			"ticketId":    t.ID,
			"level":       level,
			"minutesLeft": minutesLeft,
		})
	}
}

// pruneMissed drops bookkeeping for tickets that left the sweep set.
func (s *Scheduler) pruneMissed(seen map[string]bool) {
	for id := range s.missedLogged {
		if !seen[id] {
			delete(s.missedLogged, id)
		}
	}
}

func levelLabel(level int) string {
	switch level {
	case 1:
		return "1"
	case 2:
		return "2"
	case 3:
		return "3"
	default:
		return "0"
	}
}

// SetClock overrides the scheduler's clock. Test helper.
func (s *Scheduler) SetClock(now func() time.Time) {
	s.now = now
}
