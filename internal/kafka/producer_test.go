package kafka

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cafe-fulfillment/internal/logger"
	"cafe-fulfillment/internal/models"
)

func TestMockProducerPublishes(t *testing.T) {
	log := logger.NewLogger()
	producer, err := NewProducer(nil, true, log)
	require.NoError(t, err)
	defer producer.Close()

	err = producer.PublishOrderEvent(&models.OrderEvent{
		Type:      "order.preparing",
		OrderID:   "ord-1",
		Status:    "preparing",
		Timestamp: time.Now(),
	})
	assert.NoError(t, err)

	err = producer.PublishReservationEvent(&models.ReservationEvent{
		Type:          "reservation.created",
		ReservationID: "res-1",
		TableID:       "t-02",
		Timestamp:     time.Now(),
	})
	assert.NoError(t, err)
}

func TestMockProducerCloseIsSafe(t *testing.T) {
	producer, err := NewProducer(nil, true, logger.NewLogger())
	require.NoError(t, err)
	assert.NoError(t, producer.Close())
}
