package models

import "github.com/shopspring/decimal"

// Queue names used by the payment exchange with the payment service.
const (
	PaymentRequestQueue  = "payment_requests"
	PaymentResponseQueue = "payment_responses"
)

// Payment outcomes reported by the payment service.
const (
	PaymentApproved = "approved"
	PaymentDeclined = "declined"
)

// CustomerRef is the customer slice of a payment request, present only
// when the order is linked to a customer.
type CustomerRef struct {
	CPF   string `json:"cpf"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// PaymentRequest is published to the payment service when a customer
// asks to pay for an order.
type PaymentRequest struct {
	OrderID       uint            `json:"order_id"`
	Amount        decimal.Decimal `json:"amount"`
	CorrelationID string          `json:"correlation_id"`
	Customer      *CustomerRef    `json:"customer,omitempty"`
}

// PaymentResponse is the asynchronous payment outcome consumed from the
// payment service, correlated back to the order by id.
type PaymentResponse struct {
	OrderID       uint   `json:"order_id"`
	Outcome       string `json:"outcome"`
	CorrelationID string `json:"correlation_id"`
}
