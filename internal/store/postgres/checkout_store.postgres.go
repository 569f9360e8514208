// internal/store/postgres/checkout_store.postgres.go
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/storeframe/payment-gateway/internal/checkout"
)

// CheckoutStore persists the local payment and payment-method records.
// It implements both checkout.PaymentStore and checkout.PaymentMethodStore.
type CheckoutStore struct {
	db *sql.DB
}

// Open connects to postgres and returns a ready store.
func Open(databaseURL string) (*CheckoutStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("db: failed to open connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db: failed to ping: %w", err)
	}
	return &CheckoutStore{db: db}, nil
}

// NewCheckoutStore wraps an existing connection (used by tests and callers
// that manage the pool themselves).
func NewCheckoutStore(db *sql.DB) *CheckoutStore {
	return &CheckoutStore{db: db}
}

func (s *CheckoutStore) Close() error { return s.db.Close() }

// EnsureSchema creates the two tables on first run. Amounts are stored as
// NUMERIC so the decimal survives the round trip exactly.
func (s *CheckoutStore) EnsureSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS payment_methods (
		id             UUID PRIMARY KEY,
		owner_email    TEXT NOT NULL DEFAULT '',
		given_name     TEXT NOT NULL DEFAULT '',
		family_name    TEXT NOT NULL DEFAULT '',
		line1          TEXT NOT NULL DEFAULT '',
		line2          TEXT NOT NULL DEFAULT '',
		city           TEXT NOT NULL DEFAULT '',
		country        TEXT NOT NULL DEFAULT '',
		admin_area     TEXT NOT NULL DEFAULT '',
		postal_code    TEXT NOT NULL DEFAULT '',
		customer_id    TEXT NOT NULL DEFAULT '',
		remote_id      TEXT NOT NULL DEFAULT '',
		card_type      TEXT NOT NULL DEFAULT '',
		card_last4     TEXT NOT NULL DEFAULT '',
		card_exp_month BIGINT NOT NULL DEFAULT 0,
		card_exp_year  BIGINT NOT NULL DEFAULT 0,
		reusable       BOOLEAN NOT NULL DEFAULT FALSE,
		created_at     TIMESTAMPTZ NOT NULL
	);
	CREATE TABLE IF NOT EXISTS payments (
		id         UUID PRIMARY KEY,
		order_id   TEXT NOT NULL,
		email      TEXT NOT NULL DEFAULT '',
		amount     NUMERIC NOT NULL,
		currency   TEXT NOT NULL,
		method_id  UUID NULL REFERENCES payment_methods(id) ON DELETE SET NULL,
		remote_id  TEXT NOT NULL DEFAULT '',
		state      TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("db: failed to ensure schema: %w", err)
	}
	return nil
}

// SavePayment upserts the payment row. Saves happen mid-flow (the state is
// persisted before a decline surfaces), so the same record comes through
// here several times per payment.
func (s *CheckoutStore) SavePayment(ctx context.Context, p *checkout.Payment) error {
	var methodID interface{}
	if p.Method != nil {
		methodID = p.Method.ID
	}
	query := `
		INSERT INTO payments (id, order_id, email, amount, currency, method_id, remote_id, state, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (id) DO UPDATE
		SET remote_id = EXCLUDED.remote_id,
		    state = EXCLUDED.state,
		    method_id = EXCLUDED.method_id,
		    updated_at = NOW()
	`
	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.OrderID, p.Email, p.Amount.Number, p.Amount.CurrencyCode, methodID, p.RemoteID, p.State)
	if err != nil {
		return fmt.Errorf("db: failed to save payment: %w", err)
	}
	return nil
}

func (s *CheckoutStore) GetPayment(ctx context.Context, id uuid.UUID) (*checkout.Payment, error) {
	query := `
		SELECT id, order_id, email, amount, currency, method_id, remote_id, state
		FROM payments WHERE id = $1
	`
	var p checkout.Payment
	var methodID uuid.NullUUID
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.OrderID, &p.Email, &p.Amount.Number, &p.Amount.CurrencyCode,
		&methodID, &p.RemoteID, &p.State,
	)
	if err != nil {
		return nil, err // let the caller handle ErrNoRows
	}
	if methodID.Valid {
		method, err := s.GetPaymentMethod(ctx, methodID.UUID)
		if err != nil && err != sql.ErrNoRows {
			return nil, err
		}
		p.Method = method
	}
	return &p, nil
}

func (s *CheckoutStore) SavePaymentMethod(ctx context.Context, m *checkout.PaymentMethod) error {
	billing := m.Billing
	if billing == nil {
		billing = &checkout.Address{}
	}
	query := `
		INSERT INTO payment_methods
			(id, owner_email, given_name, family_name, line1, line2, city, country, admin_area, postal_code,
			 customer_id, remote_id, card_type, card_last4, card_exp_month, card_exp_year, reusable, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (id) DO UPDATE
		SET customer_id = EXCLUDED.customer_id,
		    remote_id = EXCLUDED.remote_id,
		    card_type = EXCLUDED.card_type,
		    card_last4 = EXCLUDED.card_last4,
		    card_exp_month = EXCLUDED.card_exp_month,
		    card_exp_year = EXCLUDED.card_exp_year,
		    reusable = EXCLUDED.reusable
	`
	_, err := s.db.ExecContext(ctx, query,
		m.ID, m.OwnerEmail, billing.GivenName, billing.FamilyName, billing.Line1, billing.Line2,
		billing.City, billing.CountryCode, billing.AdministrativeArea, billing.PostalCode,
		m.CustomerID, m.RemoteID, m.CardType, m.CardLast4, m.CardExpMonth, m.CardExpYear,
		m.Reusable, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("db: failed to save payment method: %w", err)
	}
	return nil
}

func (s *CheckoutStore) GetPaymentMethod(ctx context.Context, id uuid.UUID) (*checkout.PaymentMethod, error) {
	query := `
		SELECT id, owner_email, given_name, family_name, line1, line2, city, country, admin_area, postal_code,
		       customer_id, remote_id, card_type, card_last4, card_exp_month, card_exp_year, reusable, created_at
		FROM payment_methods WHERE id = $1
	`
	var m checkout.PaymentMethod
	var billing checkout.Address
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&m.ID, &m.OwnerEmail, &billing.GivenName, &billing.FamilyName, &billing.Line1, &billing.Line2,
		&billing.City, &billing.CountryCode, &billing.AdministrativeArea, &billing.PostalCode,
		&m.CustomerID, &m.RemoteID, &m.CardType, &m.CardLast4, &m.CardExpMonth, &m.CardExpYear,
		&m.Reusable, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	if billing != (checkout.Address{}) {
		m.Billing = &billing
	}
	return &m, nil
}

// DeletePaymentMethod removes the local record only; the remote customer
// record stays untouched by design.
func (s *CheckoutStore) DeletePaymentMethod(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM payment_methods WHERE id = $1`, id); err != nil {
		return fmt.Errorf("db: failed to delete payment method: %w", err)
	}
	return nil
}
