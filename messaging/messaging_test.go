package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pbravv456123-lgtm/fourvoice-integrated/domain"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/handlers"
)

type MockDeliveryHandler struct {
	mock.Mock
}

func (m *MockDeliveryHandler) HandleProviderEvent(ctx context.Context, cmd handlers.ProviderEventCommand) (*handlers.ProviderEventResult, error) {
	args := m.Called(ctx, cmd)
	result, _ := args.Get(0).(*handlers.ProviderEventResult)
	return result, args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) SendMessage(ctx context.Context, body interface{}) error {
	args := m.Called(ctx, body)
	return args.Error(0)
}

func TestProcessDeliveryReport(t *testing.T) {
	handler := new(MockDeliveryHandler)
	handler.On("HandleProviderEvent", mock.Anything, mock.MatchedBy(func(cmd handlers.ProviderEventCommand) bool {
		return cmd.Provider == "sendgrid" && cmd.Event == "BOUNCED" && cmd.Recipient == "ap@acme.test" && len(cmd.Payload) > 0
	})).Return(&handlers.ProviderEventResult{Outcome: handlers.OutcomeApplied, InvoiceID: 4}, nil).Once()

	processor := NewProcessor(handler)
	body := []byte(`{"eventType":"DeliveryReport","data":{"provider":"sendgrid","event":"BOUNCED","recipient_email":"ap@acme.test","message_id":"m-1"}}`)

	require.NoError(t, processor.Process(context.Background(), body))
	handler.AssertExpectations(t)
}

func TestProcessRetriesInternalErrors(t *testing.T) {
	handler := new(MockDeliveryHandler)
	handler.On("HandleProviderEvent", mock.Anything, mock.Anything).Return(nil, errors.New("database is locked")).Once()

	processor := NewProcessor(handler)
	body := []byte(`{"eventType":"DeliveryReport","data":{"provider":"sendgrid","event":"DELIVERED","recipient_email":"ap@acme.test"}}`)

	assert.Error(t, processor.Process(context.Background(), body))
}

func TestProcessDropsInvalidMessages(t *testing.T) {
	handler := new(MockDeliveryHandler)
	handler.On("HandleProviderEvent", mock.Anything, mock.Anything).Return(nil, domain.NewValidationError("event", "unsupported provider event")).Once()

	processor := NewProcessor(handler)
	ctx := context.Background()

	assert.NoError(t, processor.Process(ctx, []byte(`not json`)))
	assert.NoError(t, processor.Process(ctx, []byte(`{"eventType":"SomethingElse","data":{}}`)))
	assert.NoError(t, processor.Process(ctx, []byte(`{"eventType":"DeliveryReport","data":{"event":"CLICKED"}}`)))
	handler.AssertExpectations(t)
}

func TestEventPublisherProjectsNotification(t *testing.T) {
	queue := new(MockPublisher)
	queue.On("SendMessage", mock.Anything, mock.MatchedBy(func(n Notification) bool {
		return n.EventType == domain.DeliveryOpened && n.AggregateID == "7" && n.Version == 3
	})).Return(nil).Once()

	publisher := NewEventPublisher(queue)
	assert.Equal(t, "servicebus", publisher.Name())

	err := publisher.Project(context.Background(), domain.Event{
		ID:            "evt-1",
		AggregateID:   "7",
		AggregateType: domain.AggregateTypeDelivery,
		Type:          domain.DeliveryOpened,
		Version:       3,
		Timestamp:     time.Now(),
		Data:          domain.DeliveryOpenedEvent{InvoiceID: 7, Source: domain.SourcePixel},
	})
	require.NoError(t, err)
	queue.AssertExpectations(t)
}
