// internal/gateway/oneoff_gateway.go
package gateway

import (
	"context"
	"strings"

	"github.com/stripe/stripe-go/v79"

	"github.com/storeframe/payment-gateway/internal/checkout"
	"github.com/storeframe/payment-gateway/internal/currency"
	"github.com/storeframe/payment-gateway/internal/events"
)

// OneOffAPI is the slice of the Stripe client the one-off flavor needs.
type OneOffAPI interface {
	CreatePaymentIntent(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	GetPaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error)
	CancelPaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error)
}

// OneOff is the single-charge gateway flavor built on payment intents.
type OneOff struct {
	lifecycle
	api OneOffAPI

	// When enabled, the order's e-mail is forced into the intent payload so
	// Stripe sends its own receipt.
	receiptEmail bool
}

var _ Gateway = (*OneOff)(nil)

func NewOneOff(api OneOffAPI, registry CustomerUpserter, payments checkout.PaymentStore, methods checkout.PaymentMethodStore, pub events.Publisher, receiptEmail bool) *OneOff {
	return &OneOff{
		lifecycle:    newLifecycle(payments, methods, registry, pub),
		api:          api,
		receiptEmail: receiptEmail,
	}
}

// CreatePayment builds the remote payment intent for the server-side flow.
// With capture=true nothing happens here: the client confirmation round
// trip already created the intent and handed the secret to the Payment, and
// keeping that round trip out of the server request/response cycle is the
// whole point of the split.
func (g *OneOff) CreatePayment(ctx context.Context, p *checkout.Payment, capture bool) error {
	if err := g.requireNewPayment(p); err != nil {
		return err
	}
	if capture {
		return nil
	}

	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(currency.MinorUnits(p.Amount.Number, p.Amount.CurrencyCode)),
		Currency:           stripe.String(strings.ToLower(p.Amount.CurrencyCode)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		CaptureMethod:      stripe.String(string(stripe.PaymentIntentCaptureMethodAutomatic)),
	}
	params.AddMetadata("order_id", p.OrderID)
	params.AddMetadata("payment_gateway", oneOffLabel)
	if p.Method.CustomerID != "" {
		params.Customer = stripe.String(p.Method.CustomerID)
	}
	if g.receiptEmail && p.Email != "" {
		params.ReceiptEmail = stripe.String(p.Email)
	}

	pi, err := g.api.CreatePaymentIntent(ctx, params)
	if err != nil {
		// No local mutation happened yet, abort cleanly.
		return decline("could not create the payment intent: %v", err)
	}

	// The client secret is what the storefront hands to the browser; the
	// intent id is ours for capture/void later.
	p.RemoteID = pi.ClientSecret
	if err := g.payments.SavePayment(ctx, p); err != nil {
		return err
	}
	p.Method.RemoteID = pi.ID
	p.Method.CardType = "card" // placeholder until capture knows the brand
	return g.methods.SavePaymentMethod(ctx, p.Method)
}

// CapturePayment pulls the intent fresh from Stripe (status is never cached
// across calls) and walks the status table.
func (g *OneOff) CapturePayment(ctx context.Context, p *checkout.Payment) error {
	if p.Method == nil {
		return checkout.ErrNoPaymentMethod
	}
	pi, err := g.api.GetPaymentIntent(ctx, p.Method.RemoteID)
	if err != nil {
		return decline("could not retrieve the payment intent: %v", err)
	}

	switch pi.Status {
	case stripe.PaymentIntentStatusCanceled, stripe.PaymentIntentStatusRequiresPaymentMethod:
		// requires_payment_method after a confirmation attempt means the
		// card was rejected and the intent fell back to square one; for the
		// one-off flow that is as dead as an explicit cancel.
		return g.failVoided(ctx, p)
	case stripe.PaymentIntentStatusSucceeded:
		return g.finalize(ctx, p, pi)
	default:
		return g.failPending(ctx, p, string(pi.Status))
	}
}

// finalize copies the charge data onto the local records and completes the
// payment. A succeeded intent without a loadable charge is suspicious, so
// we park the payment in authorization instead of silently completing.
func (g *OneOff) finalize(ctx context.Context, p *checkout.Payment, pi *stripe.PaymentIntent) error {
	charge := pi.LatestCharge
	if charge == nil {
		if err := g.transition(ctx, p, checkout.PaymentStateAuthorization); err != nil {
			return err
		}
		return decline("could not load payment data for intent %s", pi.ID)
	}

	// Absent card details are tolerated, the metadata just stays unset.
	if pmd := charge.PaymentMethodDetails; pmd != nil && pmd.Card != nil {
		p.Method.CardType = string(pmd.Card.Brand)
		p.Method.CardLast4 = pmd.Card.Last4
		p.Method.CardExpMonth = pmd.Card.ExpMonth
		p.Method.CardExpYear = pmd.Card.ExpYear
	}
	p.Method.RemoteID = charge.ID
	if err := g.methods.SavePaymentMethod(ctx, p.Method); err != nil {
		return err
	}
	p.RemoteID = pi.ID
	return g.transition(ctx, p, checkout.PaymentStateCompleted)
}

// VoidPayment cancels the intent while it is still cancelable. A rejection
// changes nothing, locally or remotely.
func (g *OneOff) VoidPayment(ctx context.Context, p *checkout.Payment) error {
	if p.Method == nil {
		return checkout.ErrNoPaymentMethod
	}
	pi, err := g.api.GetPaymentIntent(ctx, p.Method.RemoteID)
	if err != nil {
		return err
	}
	if !voidableStatus(string(pi.Status)) {
		return notVoidable(string(pi.Status))
	}
	if _, err := g.api.CancelPaymentIntent(ctx, pi.ID); err != nil {
		return err
	}
	p.RemoteID = pi.ID
	return g.transition(ctx, p, checkout.PaymentStateVoided)
}

func (g *OneOff) CreatePaymentMethod(ctx context.Context, m *checkout.PaymentMethod) error {
	return g.createPaymentMethod(ctx, m)
}

func (g *OneOff) DeletePaymentMethod(ctx context.Context, m *checkout.PaymentMethod) error {
	return g.deletePaymentMethod(ctx, m)
}
