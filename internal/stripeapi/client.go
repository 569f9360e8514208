// internal/stripeapi/client.go
package stripeapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
)

// ErrProviderDown means Stripe itself is having a bad day (HTTP 5xx).
// Everything else the API rejects comes back with the provider's message.
var ErrProviderDown = errors.New("payment provider is currently unavailable")

// Client defines the subset of the Stripe SDK the gateway needs.
// Keeping this narrow makes every caller testable with a hand-written mock
// and stops stripe-go from leaking into business code beyond the parameter
// and response structs.
type Client interface {
	CreatePaymentIntent(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	GetPaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error)
	CancelPaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error)

	CreateSetupIntent(ctx context.Context, params *stripe.SetupIntentParams) (*stripe.SetupIntent, error)
	GetSetupIntent(ctx context.Context, id string) (*stripe.SetupIntent, error)
	CancelSetupIntent(ctx context.Context, id string) (*stripe.SetupIntent, error)

	// FindCustomerByEmail returns the first match or nil when none exists.
	FindCustomerByEmail(ctx context.Context, email string) (*stripe.Customer, error)
	CreateCustomer(ctx context.Context, params *stripe.CustomerParams) (*stripe.Customer, error)
	UpdateCustomer(ctx context.Context, id string, params *stripe.CustomerParams) (*stripe.Customer, error)

	AttachPaymentMethod(ctx context.Context, paymentMethodID, customerID string) (*stripe.PaymentMethod, error)

	GetPlan(ctx context.Context, id string) (*stripe.Plan, error)
	CreatePlan(ctx context.Context, params *stripe.PlanParams) (*stripe.Plan, error)
	CreateSubscription(ctx context.Context, params *stripe.SubscriptionParams) (*stripe.Subscription, error)
}

// APIClient is the real implementation backed by an injected client.API.
// We build the client once from configuration and pass it around, no
// process-wide stripe.Key mutation.
type APIClient struct {
	api *client.API
}

// New creates an APIClient with the provided secret key.
func New(secretKey string) *APIClient {
	sc := &client.API{}
	sc.Init(secretKey, nil)
	return &APIClient{api: sc}
}

func (c *APIClient) CreatePaymentIntent(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	params.Context = ctx
	pi, err := c.api.PaymentIntents.New(params)
	if err != nil {
		return nil, mapStripeError(err)
	}
	return pi, nil
}

func (c *APIClient) GetPaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error) {
	// latest_charge carries the card detail we need after a successful
	// confirmation, and it is not expanded by default.
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	params.AddExpand("latest_charge")
	pi, err := c.api.PaymentIntents.Get(id, params)
	if err != nil {
		return nil, mapStripeError(err)
	}
	return pi, nil
}

func (c *APIClient) CancelPaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	pi, err := c.api.PaymentIntents.Cancel(id, params)
	if err != nil {
		return nil, mapStripeError(err)
	}
	return pi, nil
}

func (c *APIClient) CreateSetupIntent(ctx context.Context, params *stripe.SetupIntentParams) (*stripe.SetupIntent, error) {
	params.Context = ctx
	si, err := c.api.SetupIntents.New(params)
	if err != nil {
		return nil, mapStripeError(err)
	}
	return si, nil
}

func (c *APIClient) GetSetupIntent(ctx context.Context, id string) (*stripe.SetupIntent, error) {
	params := &stripe.SetupIntentParams{}
	params.Context = ctx
	params.AddExpand("payment_method")
	si, err := c.api.SetupIntents.Get(id, params)
	if err != nil {
		return nil, mapStripeError(err)
	}
	return si, nil
}

func (c *APIClient) CancelSetupIntent(ctx context.Context, id string) (*stripe.SetupIntent, error) {
	params := &stripe.SetupIntentCancelParams{}
	params.Context = ctx
	si, err := c.api.SetupIntents.Cancel(id, params)
	if err != nil {
		return nil, mapStripeError(err)
	}
	return si, nil
}

func (c *APIClient) FindCustomerByEmail(ctx context.Context, email string) (*stripe.Customer, error) {
	// Stripe does not enforce e-mail uniqueness, first match wins here.
	params := &stripe.CustomerListParams{Email: stripe.String(email)}
	params.Context = ctx
	params.Limit = stripe.Int64(1)
	iter := c.api.Customers.List(params)
	for iter.Next() {
		return iter.Customer(), nil
	}
	if err := iter.Err(); err != nil {
		return nil, mapStripeError(err)
	}
	return nil, nil
}

func (c *APIClient) CreateCustomer(ctx context.Context, params *stripe.CustomerParams) (*stripe.Customer, error) {
	params.Context = ctx
	cus, err := c.api.Customers.New(params)
	if err != nil {
		return nil, mapStripeError(err)
	}
	return cus, nil
}

func (c *APIClient) UpdateCustomer(ctx context.Context, id string, params *stripe.CustomerParams) (*stripe.Customer, error) {
	params.Context = ctx
	cus, err := c.api.Customers.Update(id, params)
	if err != nil {
		return nil, mapStripeError(err)
	}
	return cus, nil
}

func (c *APIClient) AttachPaymentMethod(ctx context.Context, paymentMethodID, customerID string) (*stripe.PaymentMethod, error) {
	params := &stripe.PaymentMethodAttachParams{Customer: stripe.String(customerID)}
	params.Context = ctx
	pm, err := c.api.PaymentMethods.Attach(paymentMethodID, params)
	if err != nil {
		return nil, mapStripeError(err)
	}
	return pm, nil
}

func (c *APIClient) GetPlan(ctx context.Context, id string) (*stripe.Plan, error) {
	params := &stripe.PlanParams{}
	params.Context = ctx
	p, err := c.api.Plans.Get(id, params)
	if err != nil {
		return nil, mapStripeError(err)
	}
	return p, nil
}

func (c *APIClient) CreatePlan(ctx context.Context, params *stripe.PlanParams) (*stripe.Plan, error) {
	params.Context = ctx
	p, err := c.api.Plans.New(params)
	if err != nil {
		return nil, mapStripeError(err)
	}
	return p, nil
}

func (c *APIClient) CreateSubscription(ctx context.Context, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	params.Context = ctx
	sub, err := c.api.Subscriptions.New(params)
	if err != nil {
		return nil, mapStripeError(err)
	}
	return sub, nil
}

// mapStripeError converts SDK errors into something callers can reason
// about without importing stripe-go themselves. Card-level rejections keep
// Stripe's message (it is what the storefront shows the customer), outages
// collapse into ErrProviderDown.
func mapStripeError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("%w: %s", ErrProviderDown, stripeErr.Msg)
		}
		return fmt.Errorf("stripe rejected the request (%s): %s", stripeErr.Code, stripeErr.Msg)
	}
	return err
}
