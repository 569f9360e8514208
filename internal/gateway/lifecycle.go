// internal/gateway/lifecycle.go
package gateway

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/storeframe/payment-gateway/internal/checkout"
	"github.com/storeframe/payment-gateway/internal/events"
)

// pendingIntentTTL is how long we keep re-trying a capture whose remote
// intent has not succeeded yet. The window is measured from the payment
// METHOD's creation time, not the payment's: the method and the remote
// intent are created together, and the window tracks provider-side intent
// expiry. After the window the payment is written off as expired so stuck
// authorizations cannot pile up forever.
const pendingIntentTTL = 24 * time.Hour

// lifecycle is the state-machine plumbing both gateway flavors share.
type lifecycle struct {
	payments checkout.PaymentStore
	methods  checkout.PaymentMethodStore
	registry CustomerUpserter
	events   events.Publisher

	// injectable clock for the expiry tests
	now func() time.Time
}

func newLifecycle(payments checkout.PaymentStore, methods checkout.PaymentMethodStore, registry CustomerUpserter, pub events.Publisher) lifecycle {
	return lifecycle{
		payments: payments,
		methods:  methods,
		registry: registry,
		events:   pub,
		now:      time.Now,
	}
}

// decline builds a soft, user-facing failure. By convention the caller has
// already persisted whatever state change explains the decline.
func decline(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", checkout.ErrPaymentDeclined, fmt.Sprintf(format, args...))
}

// requireNewPayment is the shared CreatePayment precondition: a payment we
// have not touched yet, with a method to charge against. Violations are
// flow errors, not declines.
func (l *lifecycle) requireNewPayment(p *checkout.Payment) error {
	if p.Method == nil {
		return checkout.ErrNoPaymentMethod
	}
	if p.State != checkout.PaymentStateNew {
		return fmt.Errorf("%w: expected %q, payment %s is %q",
			checkout.ErrWrongPaymentState, checkout.PaymentStateNew, p.ID, p.State)
	}
	return nil
}

// transition persists the payment in its new state and, for states that end
// the story, publishes a lifecycle event. Event publishing is best-effort.
func (l *lifecycle) transition(ctx context.Context, p *checkout.Payment, state checkout.PaymentState) error {
	p.State = state
	if err := l.payments.SavePayment(ctx, p); err != nil {
		return err
	}
	if state.Terminal() && l.events != nil {
		l.events.PaymentTransitioned(ctx, p)
	}
	return nil
}

// failVoided handles a remote intent that was cancelled underneath us.
func (l *lifecycle) failVoided(ctx context.Context, p *checkout.Payment) error {
	if err := l.transition(ctx, p, checkout.PaymentStateVoided); err != nil {
		return err
	}
	return decline("the payment was cancelled")
}

// failPending handles every non-final remote status: inside the 24h window
// the payment stays in authorization (a later capture may still succeed),
// outside it the authorization is written off as expired.
func (l *lifecycle) failPending(ctx context.Context, p *checkout.Payment, remoteStatus string) error {
	age := l.now().Sub(p.Method.CreatedAt)
	if age >= pendingIntentTTL {
		log.Printf("[Gateway] payment %s pending for %s (remote status %s), expiring it", p.ID, age, remoteStatus)
		if err := l.transition(ctx, p, checkout.PaymentStateExpired); err != nil {
			return err
		}
		return decline("the payment authorization expired")
	}
	if err := l.transition(ctx, p, checkout.PaymentStateAuthorization); err != nil {
		return err
	}
	return decline("the payment has not succeeded yet (remote status %s)", remoteStatus)
}

// voidableStatus is the fixed set of remote statuses an intent can still be
// cancelled from. Anything past these (succeeded, processing, canceled) is
// out of reach.
func voidableStatus(status string) bool {
	switch status {
	case "requires_payment_method", "requires_capture", "requires_confirmation", "requires_action":
		return true
	}
	return false
}

// notVoidable is the hard rejection for void attempts on intents that
// already moved past the cancelable statuses.
func notVoidable(status string) error {
	return fmt.Errorf("%w: remote status is %q", checkout.ErrNotVoidable, status)
}

// createPaymentMethod is shared verbatim between the flavors.
func (l *lifecycle) createPaymentMethod(ctx context.Context, m *checkout.PaymentMethod) error {
	customerID, err := l.registry.Upsert(ctx, m)
	if err != nil {
		return err
	}
	m.CustomerID = customerID
	// Single use by design, the client-side token cannot be charged twice.
	m.Reusable = false
	return l.methods.SavePaymentMethod(ctx, m)
}

// deletePaymentMethod removes the local record. The remote customer stays.
func (l *lifecycle) deletePaymentMethod(ctx context.Context, m *checkout.PaymentMethod) error {
	return l.methods.DeletePaymentMethod(ctx, m.ID)
}
