package gateways

import (
	"context"
	"errors"
	"fmt"

	"lanchonete/pkg/breaker"
)

// BreakerProductGateway wraps a ProductGateway with a circuit breaker.
// Each gateway owns its breaker instance so the product and user
// services are independent failure domains.
type BreakerProductGateway struct {
	inner   ProductGateway
	breaker *breaker.Breaker
}

// NewBreakerProductGateway wraps gw with b.
func NewBreakerProductGateway(gw ProductGateway, b *breaker.Breaker) *BreakerProductGateway {
	return &BreakerProductGateway{inner: gw, breaker: b}
}

// FetchProducts runs the wrapped fetch through the breaker. A not-found
// answer means the remote service responded, so it does not count as a
// breaker failure.
func (g *BreakerProductGateway) FetchProducts(ctx context.Context, ids []string) (map[string]ProductDetails, error) {
	var (
		products map[string]ProductDetails
		notFound error
	)

	err := g.breaker.Execute(func() error {
		var callErr error
		products, callErr = g.inner.FetchProducts(ctx, ids)
		if errors.Is(callErr, ErrProductNotFound) {
			notFound = callErr
			return nil
		}
		return callErr
	})
	if err != nil {
		if errors.Is(err, breaker.ErrOpen) {
			return nil, fmt.Errorf("%w: product service circuit is open", ErrServiceUnavailable)
		}
		return nil, err
	}
	if notFound != nil {
		return nil, notFound
	}

	return products, nil
}

// BreakerUserGateway wraps a UserGateway with its own circuit breaker.
type BreakerUserGateway struct {
	inner   UserGateway
	breaker *breaker.Breaker
}

// NewBreakerUserGateway wraps gw with b.
func NewBreakerUserGateway(gw UserGateway, b *breaker.Breaker) *BreakerUserGateway {
	return &BreakerUserGateway{inner: gw, breaker: b}
}

// ResolveCustomer runs the wrapped lookup through the breaker, with the
// same not-found exemption as the product gateway.
func (g *BreakerUserGateway) ResolveCustomer(ctx context.Context, cpf string) (*CustomerInfo, error) {
	var (
		customer *CustomerInfo
		notFound error
	)

	err := g.breaker.Execute(func() error {
		var callErr error
		customer, callErr = g.inner.ResolveCustomer(ctx, cpf)
		if errors.Is(callErr, ErrCustomerNotFound) {
			notFound = callErr
			return nil
		}
		return callErr
	})
	if err != nil {
		if errors.Is(err, breaker.ErrOpen) {
			return nil, fmt.Errorf("%w: user service circuit is open", ErrServiceUnavailable)
		}
		return nil, err
	}
	if notFound != nil {
		return nil, notFound
	}

	return customer, nil
}
