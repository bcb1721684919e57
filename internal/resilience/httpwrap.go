package resilience

import (
	"fmt"
	"net/http"
)

// Transport is an http.RoundTripper guarded by a circuit breaker. Responses with
// a 5xx or 429 status count as failures; the response itself is still returned
// so the caller's client can decode the upstream error.
type Transport struct {
	Base    http.RoundTripper
	Breaker *Breaker
}

// NewTransport wraps base (http.DefaultTransport when nil) with breaker.
func NewTransport(base http.RoundTripper, breaker *Breaker) *Transport {
	return &Transport{Base: base, Breaker: breaker}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if t.Breaker == nil {
		return base.RoundTrip(req)
	}
	ctx := req.Context()
	if !t.Breaker.Allow(ctx) {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Host, ErrOpenCircuit)
	}
	resp, err := base.RoundTrip(req)
	if err != nil {
		t.Breaker.Report(ctx, false)
		return nil, err
	}
	t.Breaker.Report(ctx, resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests)
	return resp, nil
}
