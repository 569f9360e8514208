// internal/customer/customer_registry.go
package customer

import (
	"context"
	"log"

	"github.com/stripe/stripe-go/v79"

	"github.com/storeframe/payment-gateway/internal/checkout"
)

// CustomerAPI is the slice of the Stripe client the registry needs.
// stripeapi.Client satisfies it; tests use a mock.
type CustomerAPI interface {
	FindCustomerByEmail(ctx context.Context, email string) (*stripe.Customer, error)
	CreateCustomer(ctx context.Context, params *stripe.CustomerParams) (*stripe.Customer, error)
	UpdateCustomer(ctx context.Context, id string, params *stripe.CustomerParams) (*stripe.Customer, error)
}

// Metadata tag stamped on every customer record this gateway creates, so
// they can be told apart from records other tools made in the same account.
const (
	metadataTagKey   = "storeframe_gateway"
	metadataTagValue = "1"
)

// lookupOutcome makes the three-way result of the remote e-mail lookup
// explicit instead of hiding the error case behind a swallowed exception.
type lookupOutcome int

const (
	lookupFound lookupOutcome = iota
	lookupNotFound
	lookupFailed
)

type lookupResult struct {
	outcome  lookupOutcome
	customer *stripe.Customer
}

// Registry idempotently upserts Stripe customer records keyed by e-mail.
type Registry struct {
	api CustomerAPI
}

func NewRegistry(api CustomerAPI) *Registry {
	return &Registry{api: api}
}

// Upsert ensures a remote customer exists for the payment method's owner and
// returns its id. Anonymous payers (no e-mail) get no remote customer at
// all: the empty id comes back immediately, no remote call is made, and
// callers must skip the customer association.
//
// A failed lookup is deliberately NOT fatal. It is logged and treated as
// "no existing customer found" so a flaky list call can never block payment
// creation. Create/update failures DO abort, per the no-partial-state rule.
func (r *Registry) Upsert(ctx context.Context, method *checkout.PaymentMethod) (string, error) {
	if method.OwnerEmail == "" {
		return "", nil
	}

	res := r.lookupByEmail(ctx, method.OwnerEmail)

	if res.outcome == lookupFound {
		// Refresh name/address/metadata on the record we already have.
		// E-mail is the lookup key, no point re-sending it.
		cus, err := r.api.UpdateCustomer(ctx, res.customer.ID, buildCustomerParams(method, false))
		if err != nil {
			return "", err
		}
		return cus.ID, nil
	}

	cus, err := r.api.CreateCustomer(ctx, buildCustomerParams(method, true))
	if err != nil {
		return "", err
	}
	return cus.ID, nil
}

func (r *Registry) lookupByEmail(ctx context.Context, email string) lookupResult {
	cus, err := r.api.FindCustomerByEmail(ctx, email)
	if err != nil {
		log.Printf("[CustomerRegistry] customer lookup for %s failed, proceeding as not found: %v", email, err)
		return lookupResult{outcome: lookupFailed}
	}
	if cus == nil {
		return lookupResult{outcome: lookupNotFound}
	}
	return lookupResult{outcome: lookupFound, customer: cus}
}

// buildCustomerParams maps the billing profile onto the Stripe payload.
// The address block is omitted entirely when there is no address line;
// inside it every field is independently optional and the postal code is
// only sent when non-empty.
func buildCustomerParams(method *checkout.PaymentMethod, includeEmail bool) *stripe.CustomerParams {
	params := &stripe.CustomerParams{}
	if includeEmail {
		params.Email = stripe.String(method.OwnerEmail)
	}
	if name := method.Billing.FullName(); name != "" {
		params.Name = stripe.String(name)
	}
	if addr := method.Billing; addr != nil && addr.Line1 != "" {
		ap := &stripe.AddressParams{Line1: stripe.String(addr.Line1)}
		if addr.Line2 != "" {
			ap.Line2 = stripe.String(addr.Line2)
		}
		if addr.City != "" {
			ap.City = stripe.String(addr.City)
		}
		if addr.CountryCode != "" {
			ap.Country = stripe.String(addr.CountryCode)
		}
		if addr.AdministrativeArea != "" {
			ap.State = stripe.String(addr.AdministrativeArea)
		}
		if addr.PostalCode != "" {
			ap.PostalCode = stripe.String(addr.PostalCode)
		}
		params.Address = ap
	}
	params.AddMetadata(metadataTagKey, metadataTagValue)
	return params
}
