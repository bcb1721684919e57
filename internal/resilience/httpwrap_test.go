package resilience_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-beaute/internal/resilience"
)

func TestTransportOpensOnServerErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	breaker := resilience.NewBreaker(2, 0.5, time.Minute).WithTarget("stripe")
	client := &http.Client{Transport: resilience.NewTransport(nil, breaker)}

	for i := 0; i < 2; i++ {
		resp, err := client.Get(srv.URL)
		require.NoError(t, err)
		require.Equal(t, http.StatusBadGateway, resp.StatusCode)
		_ = resp.Body.Close()
	}
	require.Equal(t, resilience.Open, breaker.State())

	_, err := client.Get(srv.URL)
	require.True(t, errors.Is(err, resilience.ErrOpenCircuit))
	require.Equal(t, 2, calls)
}

func TestTransportPassesClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	breaker := resilience.NewBreaker(1, 0.5, time.Minute)
	client := &http.Client{Transport: resilience.NewTransport(nil, breaker)}
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, resilience.Closed, breaker.State())
}
