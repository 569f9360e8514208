// internal/config/config.paymentGateway.go
package config

import (
	"fmt"
	"os"
	"strconv"
)

// GatewayConfig is everything the payment gateway reads at runtime.
// Credentials come from the environment; nothing here is mutated after load.
type GatewayConfig struct {
	// Stripe credentials. The publishable key is handed to the client-side
	// confirmation flow, the server only ever uses the secret key.
	StripeSecretKey      string
	StripePublishableKey string

	// One-off flavor: force a receipt_email field into the intent payload
	// using the order's e-mail.
	EnableReceiptEmail bool

	// Recurring flavor settings.
	RecurringStartDay int    // day of month the subscription bills on, 1..30
	RecurringPlanID   string // Stripe plan id, fetched or created on first use
	RecurringPlanName string

	// Infrastructure.
	DatabaseURL string
	KafkaBroker string
	KafkaTopic  string
	HTTPAddr    string
}

// LoadGatewayConfig reads the gateway configuration from environment
// variables. Only the Stripe secret key is hard-required; everything else
// has a sane default so local development works out of the box.
func LoadGatewayConfig() (*GatewayConfig, error) {
	secretKey := os.Getenv("STRIPE_SECRET_KEY")
	if secretKey == "" {
		return nil, fmt.Errorf("STRIPE_SECRET_KEY is required")
	}

	startDay := 1
	if raw := os.Getenv("RECURRING_START_DAY"); raw != "" {
		day, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("RECURRING_START_DAY must be a number, got %q", raw)
		}
		// 31 is deliberately not allowed, not every month has one.
		if day < 1 || day > 30 {
			return nil, fmt.Errorf("RECURRING_START_DAY must be between 1 and 30, got %d", day)
		}
		startDay = day
	}

	planID := os.Getenv("RECURRING_PLAN_ID")
	if planID == "" {
		planID = "storeframe-monthly"
	}
	planName := os.Getenv("RECURRING_PLAN_NAME")
	if planName == "" {
		planName = "Storeframe monthly plan"
	}

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8087"
	}

	topic := os.Getenv("KAFKA_TOPIC")
	if topic == "" {
		topic = "payment.events"
	}

	return &GatewayConfig{
		StripeSecretKey:      secretKey,
		StripePublishableKey: os.Getenv("STRIPE_PUBLISHABLE_KEY"),
		EnableReceiptEmail:   os.Getenv("ENABLE_RECEIPT_EMAIL") == "true",
		RecurringStartDay:    startDay,
		RecurringPlanID:      planID,
		RecurringPlanName:    planName,
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		KafkaBroker:          os.Getenv("KAFKA_BROKER"),
		KafkaTopic:           topic,
		HTTPAddr:             addr,
	}, nil
}
