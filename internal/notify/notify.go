// Package notify dispatches customer-facing referral notifications off the
// crediting path. Delivery is fire-and-forget: failures are logged and
// retried with backoff, and never propagate to the caller.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
)

// Sender delivers referral notifications. The email client implements it;
// tests use fakes.
type Sender interface {
	SendWelcome(toEmail, name, code string) error
	SendCreditEarned(toEmail, name string, amount int64, referredName string) error
}

// Dispatcher wraps a Sender with async delivery and bounded retries.
type Dispatcher struct {
	sender  Sender
	logger  *slog.Logger
	backoff time.Duration
	retries uint64
	wg      sync.WaitGroup
}

func NewDispatcher(sender Sender, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		sender:  sender,
		logger:  logger,
		backoff: 2 * time.Second,
		retries: 3,
	}
}

// WelcomeAsync sends a welcome notification in the background.
func (d *Dispatcher) WelcomeAsync(toEmail, name, code string) {
	d.dispatch("welcome", toEmail, func() error {
		return d.sender.SendWelcome(toEmail, name, code)
	})
}

// CreditEarnedAsync sends a credit-earned notification in the background.
func (d *Dispatcher) CreditEarnedAsync(toEmail, name string, amount int64, referredName string) {
	d.dispatch("credit_earned", toEmail, func() error {
		return d.sender.SendCreditEarned(toEmail, name, amount, referredName)
	})
}

func (d *Dispatcher) dispatch(kind, toEmail string, send func() error) {
	if d.sender == nil {
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		b := retry.WithMaxRetries(d.retries, retry.NewExponential(d.backoff))
		err := retry.Do(context.Background(), b, func(ctx context.Context) error {
			if err := send(); err != nil {
				return retry.RetryableError(err)
			}
			return nil
		})
		if err != nil {
			d.logger.Error("notification delivery failed", "kind", kind, "to", toEmail, "error", err)
			return
		}
		d.logger.Debug("notification delivered", "kind", kind, "to", toEmail)
	}()
}

// Wait blocks until in-flight deliveries finish. Used in tests and on
// shutdown.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
