package gateways

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrServiceUnavailable is returned when a remote service cannot be
// reached: transport failure, timeout, 5xx, or an open circuit breaker.
var ErrServiceUnavailable = errors.New("service unavailable")

// ErrProductNotFound is returned when the product service reports one
// or more of the requested ids as unknown.
var ErrProductNotFound = errors.New("product not found")

// ErrCustomerNotFound is returned when the user service has no customer
// for the given CPF.
var ErrCustomerNotFound = errors.New("customer not found")

// ProductDetails is the slice of the product service's record this
// service consumes.
type ProductDetails struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Available bool            `json:"available"`
}

// CustomerInfo is the customer record resolved from the user service.
type CustomerInfo struct {
	CPF   string `json:"cpf"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ProductGateway fetches authoritative product details from the product
// service. The returned map contains every requested id; a missing id
// fails the whole call with ErrProductNotFound.
type ProductGateway interface {
	FetchProducts(ctx context.Context, ids []string) (map[string]ProductDetails, error)
}

// UserGateway resolves a customer by fiscal id (CPF).
type UserGateway interface {
	ResolveCustomer(ctx context.Context, cpf string) (*CustomerInfo, error)
}
