package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stderrors "ticketflow/internal/common/errors"
	"ticketflow/internal/common/logger"
	"ticketflow/internal/models"
)

// stubChannel records calls and fails when err is set.
type stubChannel struct {
	err   error
	calls int
}

func (c *stubChannel) NotifyCalled(_ context.Context, _ *models.Ticket) error {
	c.calls++
	return c.err
}

func (c *stubChannel) NotifyReminder(_ context.Context, _ *models.Ticket, _ int) error {
	c.calls++
	return c.err
}

func (c *stubChannel) NotifyTransfer(_ context.Context, _ *models.Ticket, _ string) error {
	c.calls++
	return c.err
}

func TestFanoutChannel_AllChannelsAttempted(t *testing.T) {
	first := &stubChannel{}
	second := &stubChannel{}
	fanout := NewFanoutChannel(logger.NewTestLogger(t), first, second)

	require.NoError(t, fanout.NotifyCalled(context.Background(), testTicket()))

	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
}

func TestFanoutChannel_OneSuccessIsEnough(t *testing.T) {
	failing := &stubChannel{err: errors.New("unreachable")}
	working := &stubChannel{}
	fanout := NewFanoutChannel(logger.NewTestLogger(t), failing, working)

	require.NoError(t, fanout.NotifyReminder(context.Background(), testTicket(), 1))

	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, working.calls)
}

func TestFanoutChannel_AllFailuresSurfaceLastError(t *testing.T) {
	firstErr := errors.New("first down")
	lastErr := errors.New("second down")
	fanout := NewFanoutChannel(logger.NewTestLogger(t),
		&stubChannel{err: firstErr}, &stubChannel{err: lastErr})

	err := fanout.NotifyTransfer(context.Background(), testTicket(), "Visa desk")

	assert.ErrorIs(t, err, lastErr)
}

func TestFanoutChannel_NoChannelsConfigured(t *testing.T) {
	fanout := NewFanoutChannel(logger.NewTestLogger(t))

	err := fanout.NotifyCalled(context.Background(), testTicket())

	var se *stderrors.StandardError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, stderrors.ErrCodeNotificationSendFailed, se.Code)
}
