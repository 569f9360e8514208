// internal/gateway/gateway.interfaces.go
package gateway

import (
	"context"

	"github.com/storeframe/payment-gateway/internal/checkout"
)

// Gateway is the contract the hosting checkout flow programs against.
// Two flavors exist: the one-off gateway (payment intents) and the
// recurring gateway (setup intents + subscriptions). The flavor is picked
// at configuration time, per payment-method the storefront offers.
type Gateway interface {
	// CreatePayment prepares the remote intent for a payment in state "new".
	// With capture=true (the default storefront contract) this is a no-op:
	// the remote intent was already created by the client-side confirmation
	// flow and the Payment carries its client secret. With capture=false
	// the intent is created server-side instead.
	CreatePayment(ctx context.Context, p *checkout.Payment, capture bool) error

	// CapturePayment re-fetches the remote intent, translates its status
	// into the local payment state and finalizes on success. Decline-class
	// failures persist the new state BEFORE returning the error.
	CapturePayment(ctx context.Context, p *checkout.Payment) error

	// VoidPayment cancels the remote intent if its status still allows it.
	VoidPayment(ctx context.Context, p *checkout.Payment) error

	// CreatePaymentMethod upserts the remote customer (when the payer has
	// an e-mail) and persists the local method record.
	CreatePaymentMethod(ctx context.Context, m *checkout.PaymentMethod) error

	// DeletePaymentMethod removes the local record only. Remote customer
	// records are never deleted.
	DeletePaymentMethod(ctx context.Context, m *checkout.PaymentMethod) error
}

// CustomerUpserter is implemented by customer.Registry.
type CustomerUpserter interface {
	Upsert(ctx context.Context, m *checkout.PaymentMethod) (string, error)
}

// Gateway labels, stamped into intent metadata so payments can be filtered
// per flavor in the Stripe dashboard.
const (
	oneOffLabel    = "storeframe_stripe"
	recurringLabel = "storeframe_stripe_recurring"
)
