// internal/gateway/oneoff_gateway_test.go
package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v79"

	"github.com/storeframe/payment-gateway/internal/checkout"
)

// --- MOCKS (shared by both flavor test files) ---

type MockPaymentStore struct {
	Saves int
	Err   error
}

func (m *MockPaymentStore) SavePayment(ctx context.Context, p *checkout.Payment) error {
	if m.Err != nil {
		return m.Err
	}
	m.Saves++
	return nil
}

func (m *MockPaymentStore) GetPayment(ctx context.Context, id uuid.UUID) (*checkout.Payment, error) {
	return nil, nil
}

type MockMethodStore struct {
	Saves   int
	Deleted []uuid.UUID
	Err     error
}

func (m *MockMethodStore) SavePaymentMethod(ctx context.Context, pm *checkout.PaymentMethod) error {
	if m.Err != nil {
		return m.Err
	}
	m.Saves++
	return nil
}

func (m *MockMethodStore) GetPaymentMethod(ctx context.Context, id uuid.UUID) (*checkout.PaymentMethod, error) {
	return nil, nil
}

func (m *MockMethodStore) DeletePaymentMethod(ctx context.Context, id uuid.UUID) error {
	m.Deleted = append(m.Deleted, id)
	return nil
}

type MockRegistry struct {
	ID    string
	Err   error
	Calls int
}

func (m *MockRegistry) Upsert(ctx context.Context, pm *checkout.PaymentMethod) (string, error) {
	m.Calls++
	return m.ID, m.Err
}

type MockOneOffAPI struct {
	Intent    *stripe.PaymentIntent
	CreateErr error
	GetErr    error
	CancelErr error

	Created   *stripe.PaymentIntentParams
	Cancelled []string
}

func (m *MockOneOffAPI) CreatePaymentIntent(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	m.Created = params
	return m.Intent, nil
}

func (m *MockOneOffAPI) GetPaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	return m.Intent, nil
}

func (m *MockOneOffAPI) CancelPaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error) {
	if m.CancelErr != nil {
		return nil, m.CancelErr
	}
	m.Cancelled = append(m.Cancelled, id)
	return m.Intent, nil
}

// --- helpers ---

var testNow = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

func newTestPayment(methodAge time.Duration) *checkout.Payment {
	return &checkout.Payment{
		ID:      uuid.New(),
		OrderID: "order-42",
		Email:   "a@example.com",
		Amount:  checkout.Amount{Number: decimal.RequireFromString("19.99"), CurrencyCode: "USD"},
		State:   checkout.PaymentStateNew,
		Method: &checkout.PaymentMethod{
			ID:         uuid.New(),
			OwnerEmail: "a@example.com",
			RemoteID:   "pi_123",
			CreatedAt:  testNow.Add(-methodAge),
		},
	}
}

func newTestOneOff(api *MockOneOffAPI, receiptEmail bool) (*OneOff, *MockPaymentStore, *MockMethodStore) {
	payments := &MockPaymentStore{}
	methods := &MockMethodStore{}
	g := NewOneOff(api, &MockRegistry{ID: "cus_123"}, payments, methods, nil, receiptEmail)
	g.now = func() time.Time { return testNow }
	return g, payments, methods
}

func succeededIntent(withCharge bool) *stripe.PaymentIntent {
	pi := &stripe.PaymentIntent{
		ID:           "pi_123",
		ClientSecret: "pi_123_secret_abc",
		Status:       stripe.PaymentIntentStatusSucceeded,
	}
	if withCharge {
		pi.LatestCharge = &stripe.Charge{
			ID: "ch_456",
			PaymentMethodDetails: &stripe.ChargePaymentMethodDetails{
				Card: &stripe.ChargePaymentMethodDetailsCard{
					Brand:    "visa",
					Last4:    "4242",
					ExpMonth: 12,
					ExpYear:  2030,
				},
			},
		}
	}
	return pi
}

// --- CreatePayment ---

func TestOneOffCreatePayment_CaptureIsNoOp(t *testing.T) {
	api := &MockOneOffAPI{}
	g, payments, methods := newTestOneOff(api, false)
	p := newTestPayment(0)

	if err := g.CreatePayment(context.Background(), p, true); err != nil {
		t.Fatalf("expected no-op, got error: %v", err)
	}
	if api.Created != nil || payments.Saves != 0 || methods.Saves != 0 {
		t.Error("capture=true must not touch Stripe or the stores")
	}
	if p.State != checkout.PaymentStateNew {
		t.Errorf("state changed to %s", p.State)
	}
}

func TestOneOffCreatePayment_Preconditions(t *testing.T) {
	g, _, _ := newTestOneOff(&MockOneOffAPI{}, false)

	p := newTestPayment(0)
	p.State = checkout.PaymentStateCompleted
	if err := g.CreatePayment(context.Background(), p, false); !errors.Is(err, checkout.ErrWrongPaymentState) {
		t.Errorf("expected ErrWrongPaymentState, got %v", err)
	}

	p = newTestPayment(0)
	p.Method = nil
	if err := g.CreatePayment(context.Background(), p, false); !errors.Is(err, checkout.ErrNoPaymentMethod) {
		t.Errorf("expected ErrNoPaymentMethod, got %v", err)
	}
}

func TestOneOffCreatePayment_BuildsIntentAndStoresReferences(t *testing.T) {
	api := &MockOneOffAPI{Intent: succeededIntent(false)}
	g, payments, methods := newTestOneOff(api, true)
	p := newTestPayment(0)
	p.Method.CustomerID = "cus_123"
	p.Method.RemoteID = ""

	if err := g.CreatePayment(context.Background(), p, false); err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}

	params := api.Created
	if params == nil {
		t.Fatal("no intent was created")
	}
	if *params.Amount != 1999 {
		t.Errorf("amount = %d, want 1999", *params.Amount)
	}
	if *params.Currency != "usd" {
		t.Errorf("currency = %q, want usd (lowercased)", *params.Currency)
	}
	if len(params.PaymentMethodTypes) != 1 || *params.PaymentMethodTypes[0] != "card" {
		t.Error("payment_method_types must be exactly [card]")
	}
	if *params.CaptureMethod != string(stripe.PaymentIntentCaptureMethodAutomatic) {
		t.Errorf("capture_method = %q", *params.CaptureMethod)
	}
	if params.Metadata["order_id"] != "order-42" || params.Metadata["payment_gateway"] != oneOffLabel {
		t.Errorf("metadata wrong: %v", params.Metadata)
	}
	if params.Customer == nil || *params.Customer != "cus_123" {
		t.Error("known customer id was not forwarded")
	}
	if params.ReceiptEmail == nil || *params.ReceiptEmail != "a@example.com" {
		t.Error("receipt_email missing although enabled")
	}

	if p.RemoteID != "pi_123_secret_abc" {
		t.Errorf("payment remote id should hold the client secret, got %q", p.RemoteID)
	}
	if p.Method.RemoteID != "pi_123" {
		t.Errorf("method remote id should hold the intent id, got %q", p.Method.RemoteID)
	}
	if p.Method.CardType != "card" {
		t.Errorf("placeholder card type not set, got %q", p.Method.CardType)
	}
	if payments.Saves != 1 || methods.Saves != 1 {
		t.Errorf("expected both records persisted, got %d/%d saves", payments.Saves, methods.Saves)
	}
}

func TestOneOffCreatePayment_ProviderFailureAbortsCleanly(t *testing.T) {
	api := &MockOneOffAPI{CreateErr: errors.New("stripe said no")}
	g, payments, methods := newTestOneOff(api, false)
	p := newTestPayment(0)

	err := g.CreatePayment(context.Background(), p, false)
	if !errors.Is(err, checkout.ErrPaymentDeclined) {
		t.Fatalf("expected a decline, got %v", err)
	}
	if payments.Saves != 0 || methods.Saves != 0 || p.RemoteID != "" {
		t.Error("failed creation must leave no partial local state")
	}
}

// --- CapturePayment: the status table ---

func TestOneOffCapturePayment_StatusTable(t *testing.T) {
	tests := []struct {
		name      string
		status    stripe.PaymentIntentStatus
		methodAge time.Duration
		wantState checkout.PaymentState
	}{
		{"canceled voids", stripe.PaymentIntentStatusCanceled, time.Hour, checkout.PaymentStateVoided},
		{"requires_payment_method voids", stripe.PaymentIntentStatusRequiresPaymentMethod, time.Hour, checkout.PaymentStateVoided},
		{"requires_confirmation young holds", stripe.PaymentIntentStatusRequiresConfirmation, time.Hour, checkout.PaymentStateAuthorization},
		{"requires_action young holds", stripe.PaymentIntentStatusRequiresAction, 23 * time.Hour, checkout.PaymentStateAuthorization},
		{"processing young holds", stripe.PaymentIntentStatusProcessing, time.Minute, checkout.PaymentStateAuthorization},
		{"requires_action old expires", stripe.PaymentIntentStatusRequiresAction, 25 * time.Hour, checkout.PaymentStateExpired},
		{"processing exactly 24h expires", stripe.PaymentIntentStatusProcessing, 24 * time.Hour, checkout.PaymentStateExpired},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			api := &MockOneOffAPI{Intent: &stripe.PaymentIntent{ID: "pi_123", Status: tc.status}}
			g, payments, _ := newTestOneOff(api, false)
			p := newTestPayment(tc.methodAge)

			err := g.CapturePayment(context.Background(), p)
			if !errors.Is(err, checkout.ErrPaymentDeclined) {
				t.Fatalf("expected a decline, got %v", err)
			}
			if p.State != tc.wantState {
				t.Errorf("state = %s, want %s", p.State, tc.wantState)
			}
			// The state must be persisted before the decline surfaces.
			if payments.Saves != 1 {
				t.Errorf("expected 1 persisted transition, got %d", payments.Saves)
			}
		})
	}
}

func TestOneOffCapturePayment_SucceededWithoutChargeHolds(t *testing.T) {
	api := &MockOneOffAPI{Intent: succeededIntent(false)}
	g, payments, _ := newTestOneOff(api, false)
	p := newTestPayment(time.Hour)

	err := g.CapturePayment(context.Background(), p)
	if !errors.Is(err, checkout.ErrPaymentDeclined) {
		t.Fatalf("expected a decline, got %v", err)
	}
	if p.State != checkout.PaymentStateAuthorization {
		t.Errorf("state = %s, want authorization (never silently complete)", p.State)
	}
	if payments.Saves != 1 {
		t.Error("authorization state was not persisted")
	}
}

func TestOneOffCapturePayment_SucceededCompletes(t *testing.T) {
	api := &MockOneOffAPI{Intent: succeededIntent(true)}
	g, payments, methods := newTestOneOff(api, false)
	p := newTestPayment(time.Hour)

	if err := g.CapturePayment(context.Background(), p); err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if p.State != checkout.PaymentStateCompleted {
		t.Errorf("state = %s, want completed", p.State)
	}
	if p.RemoteID != "pi_123" {
		t.Errorf("payment remote id should now be the intent id, got %q", p.RemoteID)
	}
	if p.Method.RemoteID != "ch_456" {
		t.Errorf("method remote id should now be the charge id, got %q", p.Method.RemoteID)
	}
	if p.Method.CardType != "visa" || p.Method.CardLast4 != "4242" {
		t.Errorf("card metadata not extracted: %s %s", p.Method.CardType, p.Method.CardLast4)
	}
	if p.Method.CardExpMonth != 12 || p.Method.CardExpYear != 2030 {
		t.Errorf("card expiry not extracted: %d/%d", p.Method.CardExpMonth, p.Method.CardExpYear)
	}
	if payments.Saves != 1 || methods.Saves != 1 {
		t.Errorf("expected both records persisted, got %d/%d", payments.Saves, methods.Saves)
	}
}

func TestOneOffCapturePayment_MissingCardDetailsTolerated(t *testing.T) {
	pi := succeededIntent(true)
	pi.LatestCharge.PaymentMethodDetails = nil
	api := &MockOneOffAPI{Intent: pi}
	g, _, _ := newTestOneOff(api, false)
	p := newTestPayment(time.Hour)

	if err := g.CapturePayment(context.Background(), p); err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if p.State != checkout.PaymentStateCompleted {
		t.Errorf("state = %s, want completed", p.State)
	}
	if p.Method.CardLast4 != "" {
		t.Errorf("card metadata should stay unset, got %q", p.Method.CardLast4)
	}
}

// --- VoidPayment ---

func TestOneOffVoidPayment_Table(t *testing.T) {
	voidables := []stripe.PaymentIntentStatus{
		stripe.PaymentIntentStatusRequiresPaymentMethod,
		stripe.PaymentIntentStatusRequiresCapture,
		stripe.PaymentIntentStatusRequiresConfirmation,
		stripe.PaymentIntentStatusRequiresAction,
	}
	for _, status := range voidables {
		t.Run(string(status), func(t *testing.T) {
			api := &MockOneOffAPI{Intent: &stripe.PaymentIntent{ID: "pi_123", Status: status}}
			g, payments, _ := newTestOneOff(api, false)
			p := newTestPayment(time.Hour)

			if err := g.VoidPayment(context.Background(), p); err != nil {
				t.Fatalf("expected void to succeed, got %v", err)
			}
			if len(api.Cancelled) != 1 || api.Cancelled[0] != "pi_123" {
				t.Error("intent was not cancelled remotely")
			}
			if p.State != checkout.PaymentStateVoided || p.RemoteID != "pi_123" {
				t.Errorf("local record wrong after void: state=%s remote=%s", p.State, p.RemoteID)
			}
			if payments.Saves != 1 {
				t.Error("voided state was not persisted")
			}
		})
	}

	unVoidables := []stripe.PaymentIntentStatus{
		stripe.PaymentIntentStatusSucceeded,
		stripe.PaymentIntentStatusCanceled,
		stripe.PaymentIntentStatusProcessing,
	}
	for _, status := range unVoidables {
		t.Run(string(status)+" rejected", func(t *testing.T) {
			api := &MockOneOffAPI{Intent: &stripe.PaymentIntent{ID: "pi_123", Status: status}}
			g, payments, _ := newTestOneOff(api, false)
			p := newTestPayment(time.Hour)

			if err := g.VoidPayment(context.Background(), p); !errors.Is(err, checkout.ErrNotVoidable) {
				t.Fatalf("expected ErrNotVoidable, got %v", err)
			}
			if len(api.Cancelled) != 0 || payments.Saves != 0 || p.State != checkout.PaymentStateNew {
				t.Error("rejected void must change nothing, locally or remotely")
			}
		})
	}
}

// --- end to end scenario ---

func TestOneOff_EndToEnd(t *testing.T) {
	api := &MockOneOffAPI{Intent: &stripe.PaymentIntent{ID: "pi_123", ClientSecret: "pi_123_secret_abc", Status: stripe.PaymentIntentStatusRequiresConfirmation}}
	g, _, methods := newTestOneOff(api, false)

	// 1. Payer submits card details; no remote customer exists yet.
	method := &checkout.PaymentMethod{ID: uuid.New(), OwnerEmail: "a@example.com", CreatedAt: testNow}
	if err := g.CreatePaymentMethod(context.Background(), method); err != nil {
		t.Fatalf("create payment method: %v", err)
	}
	if method.CustomerID != "cus_123" {
		t.Errorf("remote customer not attached, got %q", method.CustomerID)
	}
	if method.Reusable {
		t.Error("payment methods must never be reusable")
	}
	if methods.Saves != 1 {
		t.Error("method record not persisted")
	}

	// 2. Server-side intent creation for a 19.99 USD order.
	p := &checkout.Payment{
		ID:      uuid.New(),
		OrderID: "order-42",
		Amount:  checkout.Amount{Number: decimal.RequireFromString("19.99"), CurrencyCode: "USD"},
		State:   checkout.PaymentStateNew,
		Method:  method,
	}
	if err := g.CreatePayment(context.Background(), p, false); err != nil {
		t.Fatalf("create payment: %v", err)
	}
	if p.RemoteID != "pi_123_secret_abc" || method.RemoteID != "pi_123" {
		t.Fatalf("references wrong after create: payment=%q method=%q", p.RemoteID, method.RemoteID)
	}

	// 3. Client confirmed; the intent is now succeeded with a visa charge.
	api.Intent = succeededIntent(true)
	if err := g.CapturePayment(context.Background(), p); err != nil {
		t.Fatalf("capture: %v", err)
	}
	if p.State != checkout.PaymentStateCompleted {
		t.Errorf("state = %s, want completed", p.State)
	}
	if method.CardType != "visa" || method.CardLast4 != "4242" {
		t.Errorf("card metadata wrong: %s %s", method.CardType, method.CardLast4)
	}

	// 4. Local deletion leaves the remote customer alone.
	if err := g.DeletePaymentMethod(context.Background(), method); err != nil {
		t.Fatalf("delete payment method: %v", err)
	}
	if len(methods.Deleted) != 1 || methods.Deleted[0] != method.ID {
		t.Error("local method record was not deleted")
	}
}
