package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stderrors "ticketflow/internal/common/errors"
	"ticketflow/internal/common/logger"
	"ticketflow/internal/models"
	"ticketflow/internal/notify"
	"ticketflow/internal/store"
	"ticketflow/internal/store/memory"
)

// ==========================
// Mocks
// ==========================

type mockChannel struct {
	mu        sync.Mutex
	called    []string
	transfers []string

	calledErr   error
	transferErr error
}

func (c *mockChannel) NotifyCalled(_ context.Context, t *models.Ticket) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.called = append(c.called, t.ID)
	return c.calledErr
}

func (c *mockChannel) NotifyReminder(_ context.Context, _ *models.Ticket, _ int) error {
	return nil
}

func (c *mockChannel) NotifyTransfer(_ context.Context, t *models.Ticket, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transfers = append(c.transfers, t.ID)
	return c.transferErr
}

func (c *mockChannel) calledIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.called...)
}

var _ notify.Channel = (*mockChannel)(nil)

type recordingSink struct {
	mu          sync.Mutex
	created     []string
	dispatched  []string
	transitions []string
	transferred []string
}

func (s *recordingSink) TicketCreated(_ context.Context, t *models.Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, t.ID)
}

func (s *recordingSink) TicketCalled(_ context.Context, t *models.Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dispatched = append(s.dispatched, t.ID)
}

func (s *recordingSink) TicketStatusChanged(_ context.Context, t *models.Ticket, from, to models.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transitions = append(s.transitions, t.ID+":"+string(from)+">"+string(to))
}

func (s *recordingSink) TicketTransferred(_ context.Context, t *models.Ticket, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transferred = append(s.transferred, t.ID)
}

var _ EventSink = (*recordingSink)(nil)

func newTestDispatcher(t *testing.T, st store.TicketStore, ch notify.Channel, sink EventSink) *DispatchController {
	t.Helper()
	var events EventSink
	if sink != nil {
		events = sink
	}
	return NewDispatchController(st, ch, events, DispatchConfig{
		CASRetries:    10,
		NotifyTimeout: time.Second,
	}, logger.NewTestLogger(t))
}

// ==========================
// CallNext
// ==========================

func TestDispatchController_CallNext_OldestFirst(t *testing.T) {
	st := memory.New()
	base := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

	seedTicket(t, st, "ticket-old", "svc-1", "br-1", models.StatusWaiting, base)
	seedTicket(t, st, "ticket-new", "svc-1", "br-1", models.StatusWaiting, base.Add(time.Minute))

	ch := &mockChannel{}
	sink := &recordingSink{}
	dispatcher := newTestDispatcher(t, st, ch, sink)

	ticket, err := dispatcher.CallNext(context.Background(), store.Scope{})
	require.NoError(t, err)
	assert.Equal(t, "ticket-old", ticket.ID)
	assert.Equal(t, models.StatusServing, ticket.Status)

	// Status change is visible through the store, not just the return value.
	stored, err := st.Get(context.Background(), "ticket-old")
	require.NoError(t, err)
	assert.Equal(t, models.StatusServing, stored.Status)

	assert.Equal(t, []string{"ticket-old"}, ch.calledIDs())
	assert.Equal(t, []string{"ticket-old"}, sink.dispatched)
}

func TestDispatchController_CallNext_GlobalFIFOAcrossPartitions(t *testing.T) {
	st := memory.New()
	base := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

	// Unscoped dispatch ignores partition boundaries: the oldest waiting
	// ticket anywhere wins, even when another partition has newer tickets.
	seedTicket(t, st, "oldest-other-partition", "svc-2", "br-2", models.StatusWaiting, base)
	seedTicket(t, st, "newer", "svc-1", "br-1", models.StatusWaiting, base.Add(time.Minute))

	dispatcher := newTestDispatcher(t, st, &mockChannel{}, nil)

	ticket, err := dispatcher.CallNext(context.Background(), store.Scope{})
	require.NoError(t, err)
	assert.Equal(t, "oldest-other-partition", ticket.ID)
}

func TestDispatchController_CallNext_ScopedToBranch(t *testing.T) {
	st := memory.New()
	base := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

	seedTicket(t, st, "other-branch", "svc-1", "br-2", models.StatusWaiting, base)
	seedTicket(t, st, "this-branch", "svc-1", "br-1", models.StatusWaiting, base.Add(time.Minute))

	dispatcher := newTestDispatcher(t, st, &mockChannel{}, nil)

	ticket, err := dispatcher.CallNext(context.Background(), store.Scope{BranchID: "br-1"})
	require.NoError(t, err)
	assert.Equal(t, "this-branch", ticket.ID)
}

func TestDispatchController_CallNext_EmptyPool(t *testing.T) {
	st := memory.New()
	seedTicket(t, st, "already-serving", "svc-1", "br-1", models.StatusServing, time.Now().UTC())

	ch := &mockChannel{}
	dispatcher := newTestDispatcher(t, st, ch, nil)

	ticket, err := dispatcher.CallNext(context.Background(), store.Scope{})
	assert.Nil(t, ticket)
	assert.True(t, errors.Is(err, stderrors.ErrNoneWaiting))
	assert.Empty(t, ch.calledIDs())
}

func TestDispatchController_CallNext_ExactlyOnceUnderContention(t *testing.T) {
	st := memory.New()
	base := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

	const waiting = 5
	const callers = 12

	ids := make(map[string]bool, waiting)
	for i := 0; i < waiting; i++ {
		ticket := seedTicket(t, st, string(rune('a'+i)), "svc-1", "br-1", models.StatusWaiting,
			base.Add(time.Duration(i)*time.Second))
		ids[ticket.ID] = true
	}

	dispatcher := newTestDispatcher(t, st, &mockChannel{}, nil)

	var wg sync.WaitGroup
	results := make(chan *models.Ticket, callers)
	failures := make(chan error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticket, err := dispatcher.CallNext(context.Background(), store.Scope{})
			if err != nil {
				failures <- err
				return
			}
			results <- ticket
		}()
	}
	wg.Wait()
	close(results)
	close(failures)

	// Every waiting ticket is dispatched to exactly one caller; everyone
	// else gets the empty-pool answer.
	won := make(map[string]int)
	for ticket := range results {
		won[ticket.ID]++
		assert.True(t, ids[ticket.ID], "unexpected winner %s", ticket.ID)
	}
	assert.Len(t, won, waiting)
	for id, n := range won {
		assert.Equal(t, 1, n, "ticket %s dispatched more than once", id)
	}

	for err := range failures {
		assert.True(t, errors.Is(err, stderrors.ErrNoneWaiting))
	}
}

func TestDispatchController_CallNext_NotifyFailureDoesNotRollBack(t *testing.T) {
	st := memory.New()
	seedTicket(t, st, "ticket-a", "svc-1", "br-1", models.StatusWaiting, time.Now().UTC())

	ch := &mockChannel{calledErr: stderrors.NewNotificationSendFailedError("telegram", errors.New("boom"))}
	dispatcher := newTestDispatcher(t, st, ch, nil)

	ticket, err := dispatcher.CallNext(context.Background(), store.Scope{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusServing, ticket.Status)

	stored, err := st.Get(context.Background(), "ticket-a")
	require.NoError(t, err)
	assert.Equal(t, models.StatusServing, stored.Status)
}

// ==========================
// UpdateStatus
// ==========================

func TestDispatchController_UpdateStatus(t *testing.T) {
	tests := []struct {
		name      string
		from      models.Status
		to        models.Status
		wantErr   error
		wantFinal models.Status
	}{
		{"complete a serving ticket", models.StatusServing, models.StatusCompleted, nil, models.StatusCompleted},
		{"cancel a waiting ticket", models.StatusWaiting, models.StatusCancelled, nil, models.StatusCancelled},
		{"complete from waiting", models.StatusWaiting, models.StatusCompleted, stderrors.ErrInvalidTransition, models.StatusWaiting},
		{"cancel a serving ticket", models.StatusServing, models.StatusCancelled, stderrors.ErrInvalidTransition, models.StatusServing},
		{"revive a completed ticket", models.StatusCompleted, models.StatusServing, stderrors.ErrInvalidTransition, models.StatusCompleted},
		{"unknown status", models.StatusWaiting, models.Status("paused"), stderrors.ErrInvalidTransition, models.StatusWaiting},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := memory.New()
			seedTicket(t, st, "ticket-a", "svc-1", "br-1", tt.from, time.Now().UTC())

			sink := &recordingSink{}
			dispatcher := newTestDispatcher(t, st, &mockChannel{}, sink)

			ticket, err := dispatcher.UpdateStatus(context.Background(), "ticket-a", tt.to)
			if tt.wantErr != nil {
				assert.Nil(t, ticket)
				assert.True(t, errors.Is(err, tt.wantErr))
				assert.Empty(t, sink.transitions)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.to, ticket.Status)
				assert.Equal(t, []string{"ticket-a:" + string(tt.from) + ">" + string(tt.to)}, sink.transitions)
			}

			stored, err := st.Get(context.Background(), "ticket-a")
			require.NoError(t, err)
			assert.Equal(t, tt.wantFinal, stored.Status)
		})
	}
}

func TestDispatchController_UpdateStatus_UnknownTicket(t *testing.T) {
	dispatcher := newTestDispatcher(t, memory.New(), &mockChannel{}, nil)

	_, err := dispatcher.UpdateStatus(context.Background(), "nope", models.StatusCancelled)
	assert.True(t, errors.Is(err, stderrors.ErrTicketNotFound))
}

// staleReadStore dispatches the ticket behind the controller's back between
// its read and its write, forcing a lost compare-and-swap.
type staleReadStore struct {
	store.TicketStore
	once sync.Once
}

func (s *staleReadStore) Get(ctx context.Context, id string) (*models.Ticket, error) {
	t, err := s.TicketStore.Get(ctx, id)
	if err == nil {
		s.once.Do(func() {
			_, _ = s.TicketStore.CASStatus(ctx, id, t.Status, models.StatusServing)
		})
	}
	return t, err
}

func TestDispatchController_UpdateStatus_LostRaceIsConflict(t *testing.T) {
	inner := memory.New()
	seedTicket(t, inner, "ticket-a", "svc-1", "br-1", models.StatusWaiting, time.Now().UTC())

	dispatcher := newTestDispatcher(t, &staleReadStore{TicketStore: inner}, &mockChannel{}, nil)

	ticket, err := dispatcher.UpdateStatus(context.Background(), "ticket-a", models.StatusCancelled)
	assert.Nil(t, ticket)
	assert.True(t, errors.Is(err, stderrors.ErrDispatchConflict))

	// The concurrent dispatch stands; the stale cancel never lands.
	stored, err := inner.Get(context.Background(), "ticket-a")
	require.NoError(t, err)
	assert.Equal(t, models.StatusServing, stored.Status)
}

// ==========================
// Transfer
// ==========================

func TestDispatchController_Transfer(t *testing.T) {
	st := memory.New()
	st.AddService(&models.Service{ID: "svc-2", Name: "Licenses"})

	server := "counter-3"
	ticket := &models.Ticket{
		ID:             "ticket-a",
		Recipient:      "recipient-a",
		OrgID:          "org-1",
		BranchID:       "br-1",
		ServiceID:      "svc-1",
		Status:         models.StatusServing,
		CreatedAt:      time.Now().UTC(),
		AssignedServer: &server,
	}
	require.NoError(t, st.Create(context.Background(), ticket))

	ch := &mockChannel{}
	sink := &recordingSink{}
	dispatcher := newTestDispatcher(t, st, ch, sink)

	moved, err := dispatcher.Transfer(context.Background(), "ticket-a", "svc-2")
	require.NoError(t, err)
	assert.Equal(t, "svc-2", moved.ServiceID)
	assert.Equal(t, models.StatusWaiting, moved.Status)
	assert.Nil(t, moved.AssignedServer)

	stored, err := st.Get(context.Background(), "ticket-a")
	require.NoError(t, err)
	assert.Equal(t, "svc-2", stored.ServiceID)
	assert.Equal(t, models.StatusWaiting, stored.Status)
	assert.Nil(t, stored.AssignedServer)

	assert.Equal(t, []string{"ticket-a"}, ch.transfers)
	assert.Equal(t, []string{"ticket-a"}, sink.transferred)
}

func TestDispatchController_Transfer_TerminalTicket(t *testing.T) {
	for _, status := range []models.Status{models.StatusCompleted, models.StatusCancelled} {
		t.Run(string(status), func(t *testing.T) {
			st := memory.New()
			st.AddService(&models.Service{ID: "svc-2", Name: "Licenses"})
			seedTicket(t, st, "ticket-a", "svc-1", "br-1", status, time.Now().UTC())

			dispatcher := newTestDispatcher(t, st, &mockChannel{}, nil)

			_, err := dispatcher.Transfer(context.Background(), "ticket-a", "svc-2")
			assert.True(t, errors.Is(err, stderrors.ErrInvalidTransition))
		})
	}
}

func TestDispatchController_Transfer_UnknownService(t *testing.T) {
	st := memory.New()
	seedTicket(t, st, "ticket-a", "svc-1", "br-1", models.StatusWaiting, time.Now().UTC())

	dispatcher := newTestDispatcher(t, st, &mockChannel{}, nil)

	_, err := dispatcher.Transfer(context.Background(), "ticket-a", "svc-missing")
	assert.True(t, errors.Is(err, stderrors.ErrServiceNotFound))

	// The ticket itself is untouched.
	stored, err := st.Get(context.Background(), "ticket-a")
	require.NoError(t, err)
	assert.Equal(t, "svc-1", stored.ServiceID)
}

func TestDispatchController_TransferredTicketRejoinsQueueTail(t *testing.T) {
	st := memory.New()
	st.AddService(&models.Service{ID: "svc-2", Name: "Licenses", EstimatedDurationMinutes: 15})

	base := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	seedTicket(t, st, "incumbent", "svc-2", "br-1", models.StatusWaiting, base)
	seedTicket(t, st, "mover", "svc-1", "br-1", models.StatusServing, base.Add(-time.Hour))

	dispatcher := newTestDispatcher(t, st, &mockChannel{}, nil)
	resolver := NewPositionResolver(st, logger.NewTestLogger(t))

	_, err := dispatcher.Transfer(context.Background(), "mover", "svc-2")
	require.NoError(t, err)

	// CreatedAt is preserved, so the transferred ticket ranks by its
	// original booking time within the new partition.
	pos, err := resolver.Resolve(context.Background(), "mover")
	require.NoError(t, err)
	assert.Equal(t, 1, pos.Position)

	pos, err = resolver.Resolve(context.Background(), "incumbent")
	require.NoError(t, err)
	assert.Equal(t, 2, pos.Position)
}
