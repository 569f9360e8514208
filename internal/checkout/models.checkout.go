// internal/checkout/models.checkout.go
package checkout

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// These are the local records the gateway mutates. The storefront owns the
// order itself; we only carry the slice of it the payment flow needs.

// Standard gateway errors.
// Decline-class errors are soft failures: the payment record was already
// persisted in a state that explains what happened before the error is
// returned, so the storefront can show the customer something useful.
var (
	ErrPaymentDeclined   = errors.New("payment was declined")
	ErrWrongPaymentState = errors.New("payment is not in a processable state")
	ErrNoPaymentMethod   = errors.New("payment has no resolvable payment method")
	ErrMissingCustomer   = errors.New("payment method has no remote customer attached")
	ErrNotVoidable       = errors.New("remote intent cannot be voided")
)

// PaymentState is the local payment lifecycle.
// Transitions only move forward: completed, authorization_voided and
// authorization_expired are terminal. authorization is NOT terminal, a later
// capture attempt can still resolve it either way.
type PaymentState string

const (
	PaymentStateNew           PaymentState = "new"
	PaymentStateAuthorization PaymentState = "authorization"
	PaymentStateCompleted     PaymentState = "completed"
	PaymentStateVoided        PaymentState = "authorization_voided"
	PaymentStateExpired       PaymentState = "authorization_expired"
)

// Terminal reports whether the state can never change again.
func (s PaymentState) Terminal() bool {
	switch s {
	case PaymentStateCompleted, PaymentStateVoided, PaymentStateExpired:
		return true
	}
	return false
}

// Amount is a storefront money value: exact decimal number + ISO currency.
// Stripe wants integer minor units, the conversion lives in internal/currency.
type Amount struct {
	Number       decimal.Decimal
	CurrencyCode string
}

// Address is the billing-profile slice we forward to Stripe.
// Every field is independently optional.
type Address struct {
	GivenName          string `json:"given_name"`
	FamilyName         string `json:"family_name"`
	Line1              string `json:"line1"`
	Line2              string `json:"line2"`
	City               string `json:"city"`
	CountryCode        string `json:"country_code"`
	AdministrativeArea string `json:"administrative_area"`
	PostalCode         string `json:"postal_code"`
}

// FullName joins the profile names the way they appear on the card statement.
func (a *Address) FullName() string {
	if a == nil {
		return ""
	}
	switch {
	case a.GivenName == "":
		return a.FamilyName
	case a.FamilyName == "":
		return a.GivenName
	}
	return a.GivenName + " " + a.FamilyName
}

// PaymentMethod is the local record created when a payer submits card
// details. RemoteID is overloaded over the lifecycle: first the intent id,
// after a one-off capture the charge id, after a recurring capture the
// subscription id. CustomerID holds the Stripe customer reference (empty for
// anonymous payers).
type PaymentMethod struct {
	ID         uuid.UUID
	OwnerEmail string // empty means anonymous, no remote customer is created
	Billing    *Address
	CustomerID string
	RemoteID   string

	// Card metadata, only populated after a successful capture.
	CardType     string
	CardLast4    string
	CardExpMonth int64
	CardExpYear  int64

	// Always false post-creation. The client-side tokens this gateway deals
	// in are single use, so stored-card reuse is not supported.
	Reusable bool

	// CreatedAt drives the 24h pending-expiry window. The METHOD's age is
	// what matters because the remote intent is created together with it.
	CreatedAt time.Time
}

// Payment is the local payment record for one order.
// RemoteID is overloaded too: after create it holds the client-confirmable
// secret, after capture the intent id.
type Payment struct {
	ID       uuid.UUID
	OrderID  string
	Email    string // order e-mail, used for receipt_email when enabled
	Amount   Amount
	Method   *PaymentMethod
	RemoteID string
	State    PaymentState
}
