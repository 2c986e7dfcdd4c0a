package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockWriter struct{ mock.Mock }

func (m *mockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	return m.Called(msgs).Error(0)
}

func (m *mockWriter) Close() error { return m.Called().Error(0) }

func TestPublishOrderKeysByOrderID(t *testing.T) {
	w := &mockWriter{}
	var sent []kafka.Message
	w.On("WriteMessages", mock.Anything).Run(func(args mock.Arguments) {
		sent = args.Get(0).([]kafka.Message)
	}).Return(nil)

	p := &KafkaPublisher{w: w}
	err := p.PublishOrder(context.Background(), OrderEvent{
		Type: OrderCreated, OrderID: "o-1", UserID: "u-1", Status: "pending",
		Total: decimal.RequireFromString("59.97"), ItemCount: 2,
	})
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, "o-1", string(sent[0].Key))
	assert.Equal(t, "event-type", sent[0].Headers[0].Key)
	assert.Equal(t, OrderCreated, string(sent[0].Headers[0].Value))

	var ev OrderEvent
	require.NoError(t, json.Unmarshal(sent[0].Value, &ev))
	assert.Equal(t, "u-1", ev.UserID)
	assert.True(t, ev.Total.Equal(decimal.RequireFromString("59.97")))
	assert.False(t, ev.OccurredAt.IsZero())
	w.AssertExpectations(t)
}

func TestPublishOrderReturnsWriterError(t *testing.T) {
	w := &mockWriter{}
	w.On("WriteMessages", mock.Anything).Return(errors.New("broker down"))

	err := (&KafkaPublisher{w: w}).PublishOrder(context.Background(), OrderEvent{Type: OrderStatusChanged, OrderID: "o-2"})
	assert.EqualError(t, err, "broker down")
}
