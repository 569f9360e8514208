// internal/checkout/checkout_store.go
package checkout

import (
	"context"

	"github.com/google/uuid"
)

// Small store interfaces so the gateways never see a concrete database.
// The postgres implementations live in internal/store/postgres; tests use
// in-memory mocks.

// PaymentStore persists payment records.
// SavePayment MUST be called before a decline-class error is returned, the
// local record is the storefront's only view of what happened.
type PaymentStore interface {
	SavePayment(ctx context.Context, p *Payment) error
	GetPayment(ctx context.Context, id uuid.UUID) (*Payment, error)
}

// PaymentMethodStore persists payment-method records.
// DeletePaymentMethod is local-only: remote customer records are kept.
type PaymentMethodStore interface {
	SavePaymentMethod(ctx context.Context, m *PaymentMethod) error
	GetPaymentMethod(ctx context.Context, id uuid.UUID) (*PaymentMethod, error)
	DeletePaymentMethod(ctx context.Context, id uuid.UUID) error
}
