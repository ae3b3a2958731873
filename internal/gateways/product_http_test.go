package gateways_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"lanchonete/internal/gateways"
	"lanchonete/pkg/breaker"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPProductGateway_FetchProducts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1,2", r.URL.Query().Get("ids"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"products":[
			{"id":"1","name":"Burger","price":"15.00","available":true},
			{"id":"2","name":"Fries","price":"8.00","available":true}
		]}`))
	}))
	defer server.Close()

	gw := gateways.NewHTTPProductGateway(server.URL, time.Second)
	products, err := gw.FetchProducts(context.Background(), []string{"1", "2"})

	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "Burger", products["1"].Name)
	assert.True(t, products["1"].Price.Equal(decimal.RequireFromString("15.00")))
	assert.True(t, products["2"].Available)
}

func TestHTTPProductGateway_MissingSubsetFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"products":[{"id":"1","name":"Burger","price":"15.00","available":true}]}`))
	}))
	defer server.Close()

	gw := gateways.NewHTTPProductGateway(server.URL, time.Second)
	_, err := gw.FetchProducts(context.Background(), []string{"1", "99"})

	assert.ErrorIs(t, err, gateways.ErrProductNotFound)
	assert.Contains(t, err.Error(), "99")
}

func TestHTTPProductGateway_ServerErrorIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	gw := gateways.NewHTTPProductGateway(server.URL, time.Second)
	_, err := gw.FetchProducts(context.Background(), []string{"1"})

	assert.ErrorIs(t, err, gateways.ErrServiceUnavailable)
}

func TestHTTPProductGateway_TimeoutIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	gw := gateways.NewHTTPProductGateway(server.URL, 20*time.Millisecond)
	_, err := gw.FetchProducts(context.Background(), []string{"1"})

	assert.ErrorIs(t, err, gateways.ErrServiceUnavailable)
}

func TestBreakerProductGateway_OpensAfterFailuresAndFailsFast(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	b := breaker.New(breaker.Config{FailureThreshold: 2, OpenDuration: time.Minute})
	gw := gateways.NewBreakerProductGateway(gateways.NewHTTPProductGateway(server.URL, time.Second), b)

	for i := 0; i < 2; i++ {
		_, err := gw.FetchProducts(context.Background(), []string{"1"})
		assert.ErrorIs(t, err, gateways.ErrServiceUnavailable)
	}
	assert.Equal(t, breaker.StateOpen, b.State())

	// Tripped: the next call never reaches the server.
	_, err := gw.FetchProducts(context.Background(), []string{"1"})
	assert.ErrorIs(t, err, gateways.ErrServiceUnavailable)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestBreakerProductGateway_NotFoundDoesNotTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	b := breaker.New(breaker.Config{FailureThreshold: 1, OpenDuration: time.Minute})
	gw := gateways.NewBreakerProductGateway(gateways.NewHTTPProductGateway(server.URL, time.Second), b)

	_, err := gw.FetchProducts(context.Background(), []string{"404"})
	assert.ErrorIs(t, err, gateways.ErrProductNotFound)
	assert.Equal(t, breaker.StateClosed, b.State())
}

func TestBreakerProductGateway_RecoversThroughProbe(t *testing.T) {
	var failing atomic.Bool
	failing.Store(true)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"products":[{"id":"1","name":"Burger","price":"15.00","available":true}]}`))
	}))
	defer server.Close()

	b := breaker.New(breaker.Config{FailureThreshold: 1, OpenDuration: 20 * time.Millisecond})
	gw := gateways.NewBreakerProductGateway(gateways.NewHTTPProductGateway(server.URL, time.Second), b)

	_, err := gw.FetchProducts(context.Background(), []string{"1"})
	assert.ErrorIs(t, err, gateways.ErrServiceUnavailable)

	failing.Store(false)
	time.Sleep(30 * time.Millisecond)

	products, err := gw.FetchProducts(context.Background(), []string{"1"})
	require.NoError(t, err)
	assert.Len(t, products, 1)
	assert.Equal(t, breaker.StateClosed, b.State())
}
