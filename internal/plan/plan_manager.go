// internal/plan/plan_manager.go
package plan

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v79"

	"github.com/storeframe/payment-gateway/internal/currency"
)

const (
	metadataTagKey   = "storeframe_gateway"
	metadataTagValue = "1"
)

// PlanAPI is the slice of the Stripe client the plan manager needs.
type PlanAPI interface {
	GetPlan(ctx context.Context, id string) (*stripe.Plan, error)
	CreatePlan(ctx context.Context, params *stripe.PlanParams) (*stripe.Plan, error)
}

// Manager owns the single recurring billing plan the gateway subscribes
// customers to. The plan id and display name come from configuration.
type Manager struct {
	api      PlanAPI
	planID   string
	planName string
}

func NewManager(api PlanAPI, planID, planName string) *Manager {
	return &Manager{api: api, planID: planID, planName: planName}
}

// GetOrCreate fetches the configured plan, creating it on first use.
// ANY retrieval failure falls through to creation: if the plan genuinely
// exists and the fetch just hiccuped, the create call will be rejected with
// a duplicate-id error and that error is what the caller sees.
//
// The plan's base price is exactly ONE unit of the currency (100 cents for
// USD, 1 yen for JPY). Subscription quantity multiplies it back up to the
// payment amount, see the recurring gateway.
func (m *Manager) GetOrCreate(ctx context.Context, currencyCode string) (*stripe.Plan, error) {
	p, err := m.api.GetPlan(ctx, m.planID)
	if err == nil {
		return p, nil
	}
	log.Printf("[PlanManager] plan %s not retrievable, creating it: %v", m.planID, err)

	params := &stripe.PlanParams{
		ID:            stripe.String(m.planID),
		Amount:        stripe.Int64(currency.MinorUnits(decimal.NewFromInt(1), currencyCode)),
		Currency:      stripe.String(strings.ToLower(currencyCode)),
		BillingScheme: stripe.String("per_unit"),
		Interval:      stripe.String("month"),
		Product: &stripe.PlanProductParams{
			ID:       stripe.String(m.planID),
			Name:     stripe.String(m.planName),
			Metadata: map[string]string{metadataTagKey: metadataTagValue},
		},
	}
	return m.api.CreatePlan(ctx, params)
}

// NextBillingStart computes when the subscription's first real billing
// cycle begins (until then the subscription trials). Pure function of
// (startDay, now) so it can be tested on month boundaries.
//
// Rules: if today's day-of-month already reached startDay the cycle starts
// next month, otherwise this month. AddDate normalizes month overflow
// (Jan 31 + 1 month = Mar 3), when that happens we step back to the last
// day of the intended month. The final day is clamped to the target
// month's length so a configured 30 never lands in March from February.
// The start is pinned at 11:00 local time.
func NextBillingStart(startDay int, now time.Time) time.Time {
	target := now
	if now.Day() >= startDay {
		target = now.AddDate(0, 1, 0)
		if target.Day() != now.Day() {
			// Overflowed past the intended month, back up into it.
			target = target.AddDate(0, 0, -target.Day())
		}
	}
	day := startDay
	if last := lastDayOfMonth(target); day > last {
		day = last
	}
	return time.Date(target.Year(), target.Month(), day, 11, 0, 0, 0, now.Location())
}

func lastDayOfMonth(t time.Time) int {
	// Day zero of the next month is the last day of this one.
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}
