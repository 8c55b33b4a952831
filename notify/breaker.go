package notify

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Breaker trips after consecutive gateway failures so a dead provider does
// not add its full timeout to every login request.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

func NewBreaker(name string, failures uint32, cooldown time.Duration, log *zap.Logger) *Breaker {
	return &Breaker{cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("notification breaker state change",
				zap.String("gateway", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})}
}

func (b *Breaker) run(fn func() error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	return err
}

// BreakerSMS guards an SMSSender with a circuit breaker.
type BreakerSMS struct {
	Next    SMSSender
	Breaker *Breaker
}

func (s BreakerSMS) SendSMS(ctx context.Context, phone, message string) error {
	return s.Breaker.run(func() error { return s.Next.SendSMS(ctx, phone, message) })
}

// BreakerEmail guards an EmailSender with a circuit breaker.
type BreakerEmail struct {
	Next    EmailSender
	Breaker *Breaker
}

func (e BreakerEmail) SendEmail(ctx context.Context, to, subject, html string) error {
	return e.Breaker.run(func() error { return e.Next.SendEmail(ctx, to, subject, html) })
}
