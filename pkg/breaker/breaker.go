// Package breaker wraps sony/gobreaker with the failure-rate policy shared by
// every guarded downstream call: profile lookup, template render and provider
// dispatch all use the same shape.
package breaker

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
)

// ErrOpen is returned when the breaker rejects a call without invoking the
// downstream. Callers treat it as a transient failure.
var ErrOpen = errors.New("circuit breaker is open")

type Settings struct {
	Name         string
	Window       time.Duration // rolling window for the failure rate
	FailureRatio float64       // trip threshold, e.g. 0.5
	MinRequests  uint32        // no trip decision below this many calls
	ResetTimeout time.Duration // open duration before the half-open probe
}

func (s *Settings) fillDefaults() {
	if s.Window <= 0 {
		s.Window = 60 * time.Second
	}
	if s.FailureRatio <= 0 {
		s.FailureRatio = 0.5
	}
	if s.MinRequests == 0 {
		s.MinRequests = 5
	}
	if s.ResetTimeout <= 0 {
		s.ResetTimeout = 30 * time.Second
	}
}

// Breaker guards calls returning T. State is process-local and not persisted
// across restarts.
type Breaker[T any] struct {
	cb *gobreaker.CircuitBreaker[T]
}

func New[T any](settings Settings) *Breaker[T] {
	settings.fillDefaults()

	cb := gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: 1, // single half-open probe
		Interval:    settings.Window,
		Timeout:     settings.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < settings.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= settings.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logrus.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("circuit breaker state changed")
		},
	})

	return &Breaker[T]{cb: cb}
}

// Execute runs fn through the breaker. While open it fails fast with ErrOpen;
// downstream errors pass through unchanged.
func (b *Breaker[T]) Execute(fn func() (T, error)) (T, error) {
	result, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return result, fmt.Errorf("%s: %w", b.cb.Name(), ErrOpen)
	}
	return result, err
}

func (b *Breaker[T]) Name() string {
	return b.cb.Name()
}

// State reports closed, half-open or open, for health endpoints.
func (b *Breaker[T]) State() string {
	return b.cb.State().String()
}

// IsOpen is a convenience for health checks.
func (b *Breaker[T]) IsOpen() bool {
	return b.cb.State() == gobreaker.StateOpen
}
