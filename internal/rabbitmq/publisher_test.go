package rabbitmq

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockChannel struct {
	mock.Mock
}

func (m *MockChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	args := m.Called(exchange, key, mandatory, immediate, msg)
	return args.Error(0)
}

type testMsg struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func TestPublisher_Publish(t *testing.T) {
	ch := new(MockChannel)
	ch.On("Publish", Exchange, RoutingRenewed, false, false, mock.MatchedBy(func(p amqp.Publishing) bool {
		var got testMsg
		if err := json.Unmarshal(p.Body, &got); err != nil {
			return false
		}
		return p.ContentType == "application/json" &&
			p.DeliveryMode == amqp.Persistent &&
			got == testMsg{ID: 1, Name: "Netflix"}
	})).Return(nil).Once()

	err := NewPublisher(ch).Publish(RoutingRenewed, testMsg{ID: 1, Name: "Netflix"})
	require.NoError(t, err)
	ch.AssertExpectations(t)
}

func TestPublishMessage_ChannelError(t *testing.T) {
	ch := new(MockChannel)
	ch.On("Publish", "", "queue", false, false, mock.Anything).Return(errors.New("channel closed")).Once()

	err := PublishMessage(ch, "", "queue", testMsg{ID: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel closed")
}

func TestPublishMessage_MarshalError(t *testing.T) {
	ch := new(MockChannel)

	err := PublishMessage(ch, "", "queue", make(chan int))
	require.Error(t, err)
	ch.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGetQueues(t *testing.T) {
	queues := GetQueues()
	keys := make([]string, 0, len(queues))
	for _, q := range queues {
		keys = append(keys, q.RoutingKey)
	}
	assert.ElementsMatch(t, []string{RoutingUpcoming, RoutingRenewed, RoutingPlanChanged}, keys)
}
