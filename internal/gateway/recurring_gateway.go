// internal/gateway/recurring_gateway.go
package gateway

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v79"

	"github.com/storeframe/payment-gateway/internal/checkout"
	"github.com/storeframe/payment-gateway/internal/events"
	"github.com/storeframe/payment-gateway/internal/plan"
)

// RecurringAPI is the slice of the Stripe client the recurring flavor needs.
type RecurringAPI interface {
	CreateSetupIntent(ctx context.Context, params *stripe.SetupIntentParams) (*stripe.SetupIntent, error)
	GetSetupIntent(ctx context.Context, id string) (*stripe.SetupIntent, error)
	CancelSetupIntent(ctx context.Context, id string) (*stripe.SetupIntent, error)
	AttachPaymentMethod(ctx context.Context, paymentMethodID, customerID string) (*stripe.PaymentMethod, error)
	CreateSubscription(ctx context.Context, params *stripe.SubscriptionParams) (*stripe.Subscription, error)
}

// PlanResolver is implemented by plan.Manager.
type PlanResolver interface {
	GetOrCreate(ctx context.Context, currencyCode string) (*stripe.Plan, error)
}

// Recurring is the subscription gateway flavor. The customer confirms a
// setup intent (no money moves), capture then attaches the card to the
// customer and creates a trialing subscription whose first real billing
// lands on the configured day of month.
type Recurring struct {
	lifecycle
	api      RecurringAPI
	plans    PlanResolver
	startDay int
}

var _ Gateway = (*Recurring)(nil)

func NewRecurring(api RecurringAPI, registry CustomerUpserter, plans PlanResolver, payments checkout.PaymentStore, methods checkout.PaymentMethodStore, pub events.Publisher, startDay int) *Recurring {
	return &Recurring{
		lifecycle: newLifecycle(payments, methods, registry, pub),
		api:       api,
		plans:     plans,
		startDay:  startDay,
	}
}

// CreatePayment creates the setup intent for the server-side flow. Unlike
// the one-off flavor this REQUIRES a remote customer: there is nobody to
// hang the subscription on otherwise.
func (g *Recurring) CreatePayment(ctx context.Context, p *checkout.Payment, capture bool) error {
	if err := g.requireNewPayment(p); err != nil {
		return err
	}
	if capture {
		return nil
	}
	if p.Method.CustomerID == "" {
		return fmt.Errorf("%w: %w", checkout.ErrPaymentDeclined, checkout.ErrMissingCustomer)
	}

	params := &stripe.SetupIntentParams{
		Customer:           stripe.String(p.Method.CustomerID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Usage:              stripe.String("off_session"),
	}
	params.AddMetadata("order_id", p.OrderID)
	params.AddMetadata("payment_gateway", recurringLabel)

	si, err := g.api.CreateSetupIntent(ctx, params)
	if err != nil {
		return decline("could not create the setup intent: %v", err)
	}

	p.RemoteID = si.ClientSecret
	if err := g.payments.SavePayment(ctx, p); err != nil {
		return err
	}
	p.Method.RemoteID = si.ID
	p.Method.CardType = "card"
	return g.methods.SavePaymentMethod(ctx, p.Method)
}

// CapturePayment re-fetches the setup intent and, on success, builds the
// subscription. Note that requires_payment_method does NOT void here: a
// setup intent waiting for its card is just the normal pre-confirmation
// state for this flow.
func (g *Recurring) CapturePayment(ctx context.Context, p *checkout.Payment) error {
	if p.Method == nil {
		return checkout.ErrNoPaymentMethod
	}
	si, err := g.api.GetSetupIntent(ctx, p.Method.RemoteID)
	if err != nil {
		return decline("could not retrieve the setup intent: %v", err)
	}

	switch si.Status {
	case stripe.SetupIntentStatusCanceled:
		return g.failVoided(ctx, p)
	case stripe.SetupIntentStatusSucceeded:
		return g.finalize(ctx, p, si)
	default:
		return g.failPending(ctx, p, string(si.Status))
	}
}

func (g *Recurring) finalize(ctx context.Context, p *checkout.Payment, si *stripe.SetupIntent) error {
	if si.PaymentMethod == nil {
		if err := g.transition(ctx, p, checkout.PaymentStateAuthorization); err != nil {
			return err
		}
		return decline("could not load payment method data for setup intent %s", si.ID)
	}

	// The confirmed card has to live on the customer before a subscription
	// can bill it.
	if _, err := g.api.AttachPaymentMethod(ctx, si.PaymentMethod.ID, p.Method.CustomerID); err != nil {
		return decline("could not attach the payment method: %v", err)
	}

	pl, err := g.plans.GetOrCreate(ctx, p.Amount.CurrencyCode)
	if err != nil {
		return decline("could not resolve the billing plan: %v", err)
	}

	// Quantity multiplies the plan's one-currency-unit base price back up
	// to the payment amount: 20.00 on a base price of 1.00 is quantity 20.
	// The fraction is truncated, that is a long-standing business rule.
	quantity := p.Amount.Number.IntPart()

	params := &stripe.SubscriptionParams{
		Customer: stripe.String(p.Method.CustomerID),
		TrialEnd: stripe.Int64(plan.NextBillingStart(g.startDay, g.now()).Unix()),
		Items: []*stripe.SubscriptionItemsParams{{
			Plan:     stripe.String(pl.ID),
			Quantity: stripe.Int64(quantity),
		}},
		// Pinned explicitly so Stripe never silently bills a different
		// stored card of the same customer.
		DefaultPaymentMethod: stripe.String(si.PaymentMethod.ID),
	}
	params.AddMetadata("order_id", p.OrderID)
	params.AddMetadata("payment_gateway", recurringLabel)

	sub, err := g.api.CreateSubscription(ctx, params)
	if err != nil {
		return decline("could not create the subscription: %v", err)
	}

	if card := si.PaymentMethod.Card; card != nil {
		p.Method.CardType = string(card.Brand)
		p.Method.CardLast4 = card.Last4
		p.Method.CardExpMonth = card.ExpMonth
		p.Method.CardExpYear = card.ExpYear
	}
	p.Method.RemoteID = sub.ID
	if err := g.methods.SavePaymentMethod(ctx, p.Method); err != nil {
		return err
	}
	p.RemoteID = si.ID
	return g.transition(ctx, p, checkout.PaymentStateCompleted)
}

func (g *Recurring) VoidPayment(ctx context.Context, p *checkout.Payment) error {
	if p.Method == nil {
		return checkout.ErrNoPaymentMethod
	}
	si, err := g.api.GetSetupIntent(ctx, p.Method.RemoteID)
	if err != nil {
		return err
	}
	if !voidableStatus(string(si.Status)) {
		return notVoidable(string(si.Status))
	}
	if _, err := g.api.CancelSetupIntent(ctx, si.ID); err != nil {
		return err
	}
	p.RemoteID = si.ID
	return g.transition(ctx, p, checkout.PaymentStateVoided)
}

func (g *Recurring) CreatePaymentMethod(ctx context.Context, m *checkout.PaymentMethod) error {
	return g.createPaymentMethod(ctx, m)
}

func (g *Recurring) DeletePaymentMethod(ctx context.Context, m *checkout.PaymentMethod) error {
	return g.deletePaymentMethod(ctx, m)
}
