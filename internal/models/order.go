package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidTransition is returned when a status change is not allowed
// by the order state machine. It is always wrapped with the current and
// requested states.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrInvalidStatus is returned when a status literal is not recognized.
var ErrInvalidStatus = errors.New("invalid order status")

// OrderStatus enumerates the states of the order lifecycle.
type OrderStatus string

const (
	StatusReceived       OrderStatus = "RECEIVED"
	StatusPreparing      OrderStatus = "PREPARING"
	StatusReady          OrderStatus = "READY"
	StatusCompleted      OrderStatus = "COMPLETED"
	StatusCancelled      OrderStatus = "CANCELLED"
	StatusPaymentPending OrderStatus = "PAYMENT_PENDING"
	StatusPaymentFailed  OrderStatus = "PAYMENT_FAILED"
)

// transitions is the order state machine. A status missing from the map
// is terminal.
var transitions = map[OrderStatus][]OrderStatus{
	StatusReceived:       {StatusPreparing, StatusPaymentPending, StatusCancelled},
	StatusPaymentPending: {StatusReceived, StatusPaymentFailed, StatusCancelled},
	StatusPaymentFailed:  {StatusPaymentPending, StatusCancelled},
	StatusPreparing:      {StatusReady, StatusCancelled},
	StatusReady:          {StatusCompleted},
}

// ParseOrderStatus validates a status literal from the outside world.
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch status := OrderStatus(s); status {
	case StatusReceived, StatusPreparing, StatusReady, StatusCompleted,
		StatusCancelled, StatusPaymentPending, StatusPaymentFailed:
		return status, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
}

// CanTransitionTo reports whether the state machine allows moving from
// s to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// OrderItem is a single line item of an order. The unit price is the
// catalog price captured at order creation; it is never refreshed from
// the live catalog afterwards.
type OrderItem struct {
	ID          uint            `json:"-" gorm:"primaryKey"`
	OrderID     uint            `json:"-" gorm:"uniqueIndex:idx_order_product;not null"`
	ProductID   string          `json:"product_id" gorm:"uniqueIndex:idx_order_product;type:varchar(64);not null"`
	ProductName string          `json:"product_name" gorm:"type:varchar(100)"`
	Quantity    int             `json:"quantity" gorm:"not null"`
	UnitPrice   decimal.Decimal `json:"unit_price" gorm:"type:numeric(12,2);not null"`
}

// Subtotal returns quantity * unit price for this line.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order is a customer order. The customer association is optional: CPF,
// name and email are nil when the order was placed anonymously.
type Order struct {
	ID            uint            `json:"id" gorm:"primaryKey"`
	CustomerCPF   *string         `json:"customer_cpf,omitempty" gorm:"type:varchar(11)"`
	CustomerName  *string         `json:"customer_name,omitempty" gorm:"type:varchar(100)"`
	CustomerEmail *string         `json:"customer_email,omitempty" gorm:"type:varchar(255)"`
	Status        OrderStatus     `json:"status" gorm:"type:varchar(20);not null"`
	TotalPrice    decimal.Decimal `json:"total_price" gorm:"type:numeric(12,2);not null"`
	Items         []OrderItem     `json:"items" gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Transition moves the order to the requested status, enforcing the
// state machine. It touches only Status and UpdatedAt; persisting the
// change is the caller's job.
func (o *Order) Transition(next OrderStatus) error {
	if !o.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, next)
	}
	o.Status = next
	o.UpdatedAt = time.Now()
	return nil
}

// ComputeTotal recalculates the order total from its items.
func (o *Order) ComputeTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}
