// Package memory implements store.TicketStore in process memory. It backs
// unit tests and local runs without PostgreSQL; the mutex gives the same
// exactly-once CAS semantics as the conditional UPDATE in the SQL store.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	stderrors "ticketflow/internal/common/errors"
	"ticketflow/internal/models"
	"ticketflow/internal/store"
)

type Store struct {
	mu       sync.Mutex
	tickets  map[string]*models.Ticket
	services map[string]*models.Service
}

func New() *Store {
	return &Store{
		tickets:  make(map[string]*models.Ticket),
		services: make(map[string]*models.Service),
	}
}

var _ store.TicketStore = (*Store)(nil)

// AddService registers a service record. Test and seeding helper.
func (s *Store) AddService(svc *models.Service) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *svc
	s.services[svc.ID] = &cp
}

func (s *Store) Create(_ context.Context, t *models.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.tickets[t.ID] = &cp
	return nil
}

func (s *Store) Get(_ context.Context, id string) (*models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return nil, stderrors.NewTicketNotFoundError(id)
	}
	cp := *t
	return &cp, nil
}

func (s *Store) ListWaitingByPartition(_ context.Context, serviceID, branchID string) ([]*models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Ticket
	for _, t := range s.tickets {
		if t.Status == models.StatusWaiting && t.ServiceID == serviceID && t.BranchID == branchID {
			cp := *t
			out = append(out, &cp)
		}
	}
	sortTickets(out)
	return out, nil
}

func (s *Store) ListWaitingByScope(_ context.Context, scope store.Scope) ([]*models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Ticket
	for _, t := range s.tickets {
		if t.Status != models.StatusWaiting {
			continue
		}
		if scope.OrgID != "" && t.OrgID != scope.OrgID {
			continue
		}
		if scope.BranchID != "" && t.BranchID != scope.BranchID {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	sortTickets(out)
	return out, nil
}

func (s *Store) ListScheduledWaiting(_ context.Context) ([]*models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Ticket
	for _, t := range s.tickets {
		if t.Status == models.StatusWaiting && t.ScheduledAt != nil {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ScheduledAt.Equal(*out[j].ScheduledAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].ScheduledAt.Before(*out[j].ScheduledAt)
	})
	return out, nil
}

func (s *Store) CASStatus(_ context.Context, id string, expected, next models.Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return false, stderrors.NewTicketNotFoundError(id)
	}
	if t.Status != expected {
		return false, nil
	}
	t.Status = next
	now := time.Now().UTC()
	t.LastNotifiedAt = &now
	return true, nil
}

func (s *Store) UpdateStatus(_ context.Context, id string, status models.Status, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return stderrors.NewTicketNotFoundError(id)
	}
	t.Status = status
	t.LastNotifiedAt = &at
	return nil
}

func (s *Store) SetNotificationLevel(_ context.Context, id string, level int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return stderrors.NewTicketNotFoundError(id)
	}
	if level <= t.NotificationLevel {
		return nil
	}
	t.NotificationLevel = level
	t.LastNotifiedAt = &at
	return nil
}

func (s *Store) Reassign(_ context.Context, id string, newServiceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return stderrors.NewTicketNotFoundError(id)
	}
	t.ServiceID = newServiceID
	t.Status = models.StatusWaiting
	t.AssignedServer = nil
	return nil
}

func (s *Store) GetService(_ context.Context, serviceID string) (*models.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, ok := s.services[serviceID]
	if !ok {
		return nil, stderrors.NewServiceNotFoundError(serviceID)
	}
	cp := *svc
	return &cp, nil
}

func (s *Store) ServiceDuration(_ context.Context, serviceID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, ok := s.services[serviceID]
	if !ok {
		return models.DefaultServiceDurationMinutes, nil
	}
	return svc.Duration(), nil
}

func (s *Store) CountByRecipientSince(_ context.Context, recipient string, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tickets {
		if t.Recipient == recipient && !t.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func sortTickets(ts []*models.Ticket) {
	sort.Slice(ts, func(i, j int) bool {
		return ts[i].Before(ts[j])
	})
}
