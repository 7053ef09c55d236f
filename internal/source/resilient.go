package source

import (
	"context"
	"errors"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/pkg/resilience"
)

// ResilientProvider retries the inner provider behind a circuit breaker,
// bounding each attempt with a timeout. An open circuit fails fast.
type ResilientProvider struct {
	inner   Provider
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig
	timeout time.Duration
}

func NewResilientProvider(inner Provider, breaker *resilience.CircuitBreaker, retry resilience.RetryConfig, timeout time.Duration) *ResilientProvider {
	return &ResilientProvider{
		inner:   inner,
		breaker: breaker,
		retry:   retry,
		timeout: timeout,
	}
}

func (p *ResilientProvider) Load(ctx context.Context) ([]document.Document, error) {
	return resilience.RetryValue(ctx, "load-collection", p.retry, func() ([]document.Document, error) {
		var docs []document.Document
		err := p.breaker.Execute(func() error {
			var err error
			docs, err = resilience.WithTimeoutValue(ctx, p.timeout, "load-collection", p.inner.Load)
			return err
		})
		if errors.Is(err, resilience.ErrCircuitOpen) {
			return nil, resilience.Permanent(err)
		}
		return docs, err
	})
}

// Breaker exposes the circuit breaker for health reporting.
func (p *ResilientProvider) Breaker() *resilience.CircuitBreaker {
	return p.breaker
}
