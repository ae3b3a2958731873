package gateways_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"lanchonete/internal/gateways"
	"lanchonete/pkg/breaker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPUserGateway_ResolveCustomer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/cpf/12345678901", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"cpf":"12345678901","name":"Maria Silva","email":"maria@example.com"}`))
	}))
	defer server.Close()

	gw := gateways.NewHTTPUserGateway(server.URL, time.Second)
	customer, err := gw.ResolveCustomer(context.Background(), "12345678901")

	require.NoError(t, err)
	assert.Equal(t, "12345678901", customer.CPF)
	assert.Equal(t, "Maria Silva", customer.Name)
	assert.Equal(t, "maria@example.com", customer.Email)
}

func TestHTTPUserGateway_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	gw := gateways.NewHTTPUserGateway(server.URL, time.Second)
	_, err := gw.ResolveCustomer(context.Background(), "00000000000")

	assert.ErrorIs(t, err, gateways.ErrCustomerNotFound)
}

func TestHTTPUserGateway_ServerErrorIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	gw := gateways.NewHTTPUserGateway(server.URL, time.Second)
	_, err := gw.ResolveCustomer(context.Background(), "12345678901")

	assert.ErrorIs(t, err, gateways.ErrServiceUnavailable)
}

func TestBreakerUserGateway_IndependentFailureDomain(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer down.Close()
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"products":[{"id":"1","name":"Burger","price":"15.00","available":true}]}`))
	}))
	defer up.Close()

	userBreaker := breaker.New(breaker.Config{FailureThreshold: 1, OpenDuration: time.Minute})
	productBreaker := breaker.New(breaker.Config{FailureThreshold: 1, OpenDuration: time.Minute})

	userGw := gateways.NewBreakerUserGateway(gateways.NewHTTPUserGateway(down.URL, time.Second), userBreaker)
	productGw := gateways.NewBreakerProductGateway(gateways.NewHTTPProductGateway(up.URL, time.Second), productBreaker)

	_, err := userGw.ResolveCustomer(context.Background(), "12345678901")
	assert.ErrorIs(t, err, gateways.ErrServiceUnavailable)
	assert.Equal(t, breaker.StateOpen, userBreaker.State())

	// A user-service outage must not gate product lookups.
	products, err := productGw.FetchProducts(context.Background(), []string{"1"})
	require.NoError(t, err)
	assert.Len(t, products, 1)
	assert.Equal(t, breaker.StateClosed, productBreaker.State())
}
