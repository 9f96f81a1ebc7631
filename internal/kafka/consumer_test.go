package kafka

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cafe-fulfillment/internal/models"
)

// TestPaymentConsumerIntegration exercises the consumer against a real Kafka
// broker and is skipped when one is not reachable.
func TestPaymentConsumerIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	kafkaBrokers := os.Getenv("KAFKA_BROKERS")
	if kafkaBrokers == "" {
		kafkaBrokers = "localhost:29092"
	}

	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Net.DialTimeout = 5 * time.Second
	config.Consumer.Offsets.Initial = sarama.OffsetOldest

	producer, err := sarama.NewSyncProducer([]string{kafkaBrokers}, config)
	if err != nil {
		t.Skip("Skipping test because Kafka is not available:", err)
		return
	}
	defer producer.Close()

	consumer, err := NewPaymentConsumer([]string{kafkaBrokers}, "cafe-fulfillment-test")
	require.NoError(t, err)
	defer consumer.Close()

	received := make(chan *models.PaymentEvent, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	go func() {
		_ = consumer.ConsumePayments(ctx, func(event *models.PaymentEvent) error {
			select {
			case received <- event:
			default:
			}
			return nil
		})
	}()

	// Give the consumer group time to join before producing.
	time.Sleep(3 * time.Second)

	event := &models.PaymentEvent{
		Type:      "payment.success",
		PaymentID: "pay-test-1",
		OrderID:   "ord-test-1",
		Timestamp: time.Now(),
	}
	data, err := json.Marshal(event)
	require.NoError(t, err)

	_, _, err = producer.SendMessage(&sarama.ProducerMessage{
		Topic: "payment-success",
		Key:   sarama.StringEncoder(event.PaymentID),
		Value: sarama.ByteEncoder(data),
	})
	require.NoError(t, err)

	select {
	case got := <-received:
		assert.Equal(t, "payment.success", got.Type)
		assert.Equal(t, "ord-test-1", got.OrderID)
	case <-ctx.Done():
		t.Fatal("consumer did not receive the payment event in time")
	}
}
