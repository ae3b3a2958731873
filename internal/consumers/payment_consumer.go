package consumers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"lanchonete/internal/models"
	"lanchonete/internal/repositories"

	amqp "github.com/streadway/amqp"
)

// OutcomeApplier is the slice of the order service the consumer needs.
type OutcomeApplier interface {
	ApplyPaymentOutcome(orderID uint, outcome string) error
}

// PaymentConsumer bridges asynchronous payment outcome events back into
// the order state machine. It runs as a background loop decoupled from
// request handling.
type PaymentConsumer struct {
	orders OutcomeApplier
}

// NewPaymentConsumer creates a new PaymentConsumer.
func NewPaymentConsumer(orders OutcomeApplier) *PaymentConsumer {
	return &PaymentConsumer{orders: orders}
}

// Run processes deliveries until the context is cancelled or the
// channel closes. The in-flight message is always drained before
// returning, so shutdown never abandons an unacked delivery.
func (c *PaymentConsumer) Run(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			log.Println("payment consumer stopping")
			return
		case msg, ok := <-deliveries:
			if !ok {
				log.Println("payment delivery channel closed")
				return
			}
			c.handle(msg)
		}
	}
}

// handle applies one payment outcome delivery. Malformed payloads are
// acked away (redelivery cannot fix them); transient failures are
// nacked with requeue; duplicates are acked as no-ops.
func (c *PaymentConsumer) handle(msg amqp.Delivery) {
	response, err := decodeResponse(msg.Body)
	if err != nil {
		log.Printf("discarding malformed payment response: %v", err)
		if nackErr := msg.Nack(false, false); nackErr != nil {
			log.Printf("failed to nack malformed message %d: %v", msg.DeliveryTag, nackErr)
		}
		return
	}

	err = c.orders.ApplyPaymentOutcome(response.OrderID, response.Outcome)
	if err != nil {
		if errors.Is(err, repositories.ErrOrderNotFound) {
			// The order was deleted while payment was in flight; a
			// redelivery cannot succeed either.
			log.Printf("payment outcome for unknown order %d discarded (correlation %s)",
				response.OrderID, response.CorrelationID)
			if nackErr := msg.Nack(false, false); nackErr != nil {
				log.Printf("failed to nack message %d: %v", msg.DeliveryTag, nackErr)
			}
			return
		}
		log.Printf("failed to apply payment outcome for order %d, requeueing: %v", response.OrderID, err)
		if nackErr := msg.Nack(false, true); nackErr != nil {
			log.Printf("failed to nack message %d: %v", msg.DeliveryTag, nackErr)
		}
		return
	}

	if ackErr := msg.Ack(false); ackErr != nil {
		log.Printf("failed to ack message %d: %v", msg.DeliveryTag, ackErr)
	}
}

func decodeResponse(body []byte) (*models.PaymentResponse, error) {
	var response models.PaymentResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if response.OrderID == 0 {
		return nil, fmt.Errorf("missing order_id in payload %s", body)
	}
	if response.Outcome != models.PaymentApproved && response.Outcome != models.PaymentDeclined {
		return nil, fmt.Errorf("unknown outcome %q for order %d", response.Outcome, response.OrderID)
	}
	return &response, nil
}
