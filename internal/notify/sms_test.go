package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stderrors "ticketflow/internal/common/errors"
	"ticketflow/internal/common/logger"
)

type mockSNSService struct {
	publishFn func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
	inputs    []*sns.PublishInput
}

func (m *mockSNSService) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	m.inputs = append(m.inputs, params)
	if m.publishFn != nil {
		return m.publishFn(ctx, params, optFns...)
	}
	return &sns.PublishOutput{}, nil
}

func TestSMSChannel_NotifyCalled(t *testing.T) {
	mockSNS := &mockSNSService{}
	resolver := &stubResolver{contact: Contact{Phone: "+15550100"}}
	ch := NewSMSChannel(mockSNS, resolver, logger.NewTestLogger(t))

	require.NoError(t, ch.NotifyCalled(context.Background(), testTicket()))

	require.Len(t, mockSNS.inputs, 1)
	assert.Equal(t, "+15550100", *mockSNS.inputs[0].PhoneNumber)
	assert.Contains(t, *mockSNS.inputs[0].Message, "P-AB12CD")
}

func TestSMSChannel_NoPhoneBound(t *testing.T) {
	mockSNS := &mockSNSService{}
	resolver := &stubResolver{contact: Contact{Email: "holder@example.com"}}
	ch := NewSMSChannel(mockSNS, resolver, logger.NewTestLogger(t))

	err := ch.NotifyTransfer(context.Background(), testTicket(), "Visa desk")

	var se *stderrors.StandardError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, stderrors.ErrCodeRecipientUnresolved, se.Code)
	assert.Empty(t, mockSNS.inputs)
}

func TestSMSChannel_PublishFailure(t *testing.T) {
	mockSNS := &mockSNSService{
		publishFn: func(_ context.Context, _ *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
			return nil, errors.New("opted out")
		},
	}
	resolver := &stubResolver{contact: Contact{Phone: "+15550100"}}
	ch := NewSMSChannel(mockSNS, resolver, logger.NewTestLogger(t))

	err := ch.NotifyReminder(context.Background(), testTicket(), 3)

	var se *stderrors.StandardError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, stderrors.ErrCodeNotificationSendFailed, se.Code)
}
