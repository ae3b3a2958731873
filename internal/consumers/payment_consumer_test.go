package consumers_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"lanchonete/internal/consumers"
	"lanchonete/internal/models"
	"lanchonete/internal/repositories"
	"lanchonete/internal/services"

	"github.com/shopspring/decimal"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAcknowledger records ack/nack decisions for a delivery.
type fakeAcknowledger struct {
	mu      sync.Mutex
	acks    int
	nacks   int
	requeue bool
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acks++
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nacks++
	f.requeue = requeue
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return f.Nack(tag, false, requeue)
}

func delivery(ack *fakeAcknowledger, body string) amqp.Delivery {
	return amqp.Delivery{
		Acknowledger: ack,
		DeliveryTag:  1,
		Body:         []byte(body),
	}
}

// applierFunc adapts a function to the OutcomeApplier interface.
type applierFunc func(orderID uint, outcome string) error

func (f applierFunc) ApplyPaymentOutcome(orderID uint, outcome string) error {
	return f(orderID, outcome)
}

func runConsumer(t *testing.T, applier consumers.OutcomeApplier, deliveries ...amqp.Delivery) {
	t.Helper()

	ch := make(chan amqp.Delivery, len(deliveries))
	for _, d := range deliveries {
		ch <- d
	}
	close(ch)

	done := make(chan struct{})
	go func() {
		consumers.NewPaymentConsumer(applier).Run(context.Background(), ch)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumer did not drain deliveries")
	}
}

func TestPaymentConsumer_AppliesOutcomeAndAcks(t *testing.T) {
	ack := &fakeAcknowledger{}
	var gotID uint
	var gotOutcome string

	runConsumer(t, applierFunc(func(orderID uint, outcome string) error {
		gotID = orderID
		gotOutcome = outcome
		return nil
	}), delivery(ack, `{"order_id":3,"outcome":"approved","correlation_id":"abc"}`))

	assert.Equal(t, uint(3), gotID)
	assert.Equal(t, models.PaymentApproved, gotOutcome)
	assert.Equal(t, 1, ack.acks)
	assert.Equal(t, 0, ack.nacks)
}

func TestPaymentConsumer_MalformedPayloadNackedWithoutRequeue(t *testing.T) {
	ack := &fakeAcknowledger{}
	called := false

	runConsumer(t, applierFunc(func(orderID uint, outcome string) error {
		called = true
		return nil
	}), delivery(ack, `{"order_id":0,"outcome":"maybe"}`))

	assert.False(t, called)
	assert.Equal(t, 1, ack.nacks)
	assert.False(t, ack.requeue)
}

func TestPaymentConsumer_UnknownOrderNotRequeued(t *testing.T) {
	ack := &fakeAcknowledger{}

	runConsumer(t, applierFunc(func(orderID uint, outcome string) error {
		return repositories.ErrOrderNotFound
	}), delivery(ack, `{"order_id":42,"outcome":"declined","correlation_id":"abc"}`))

	assert.Equal(t, 1, ack.nacks)
	assert.False(t, ack.requeue)
}

func TestPaymentConsumer_TransientErrorRequeued(t *testing.T) {
	ack := &fakeAcknowledger{}

	runConsumer(t, applierFunc(func(orderID uint, outcome string) error {
		return assert.AnError
	}), delivery(ack, `{"order_id":3,"outcome":"approved","correlation_id":"abc"}`))

	assert.Equal(t, 1, ack.nacks)
	assert.True(t, ack.requeue)
}

func TestPaymentConsumer_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan amqp.Delivery)

	done := make(chan struct{})
	go func() {
		consumers.NewPaymentConsumer(applierFunc(func(uint, string) error { return nil })).Run(ctx, ch)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop on context cancellation")
	}
}

// Duplicate deliveries of the same outcome must transition the order
// exactly once: the status after both deliveries equals the status
// after the first.
func TestPaymentConsumer_DuplicateDeliveryTransitionsOnce(t *testing.T) {
	repo := repositories.NewMockOrderRepository()
	order := &models.Order{
		Status:     models.StatusPaymentPending,
		TotalPrice: decimal.RequireFromString("28.00"),
		Items: []models.OrderItem{
			{ProductID: "1", Quantity: 1, UnitPrice: decimal.RequireFromString("28.00")},
		},
	}
	require.NoError(t, repo.Create(order))

	svc := services.NewOrderService(repo, nil, nil, nil)

	ack1 := &fakeAcknowledger{}
	ack2 := &fakeAcknowledger{}
	body := `{"order_id":1,"outcome":"approved","correlation_id":"abc"}`
	runConsumer(t, svc, delivery(ack1, body), delivery(ack2, body))

	got, err := repo.GetByID(order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReceived, got.Status)
	// Both deliveries are acknowledged; the second is a logged no-op.
	assert.Equal(t, 1, ack1.acks)
	assert.Equal(t, 1, ack2.acks)
}
