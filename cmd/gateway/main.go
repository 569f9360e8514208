// cmd/gateway/main.go
package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/storeframe/payment-gateway/internal/checkout"
	"github.com/storeframe/payment-gateway/internal/config"
	"github.com/storeframe/payment-gateway/internal/customer"
	"github.com/storeframe/payment-gateway/internal/events"
	"github.com/storeframe/payment-gateway/internal/gateway"
	"github.com/storeframe/payment-gateway/internal/plan"
	"github.com/storeframe/payment-gateway/internal/store/postgres"
	"github.com/storeframe/payment-gateway/internal/stripeapi"
)

// main wires the gateway stack together and exposes a thin JSON harness for
// the hosting checkout flow. The harness is reference wiring, the real
// contract is the gateway.Gateway interface.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("[Main] no .env file, relying on the environment")
	}
	cfg, err := config.LoadGatewayConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	store, err := postgres.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()
	if err := store.EnsureSchema(context.Background()); err != nil {
		log.Fatalf("failed to ensure schema: %v", err)
	}

	// Lifecycle events are optional: without a broker the gateways simply
	// skip publishing.
	var producer *events.Producer
	if cfg.KafkaBroker != "" {
		producer = events.NewProducer(cfg.KafkaBroker, cfg.KafkaTopic)
		defer producer.Close()
		log.Printf("[Main] publishing payment events to %s/%s", cfg.KafkaBroker, cfg.KafkaTopic)
	}

	api := stripeapi.New(cfg.StripeSecretKey)
	registry := customer.NewRegistry(api)
	plans := plan.NewManager(api, cfg.RecurringPlanID, cfg.RecurringPlanName)

	gateways := map[string]gateway.Gateway{
		"oneoff":    gateway.NewOneOff(api, registry, store, store, producer, cfg.EnableReceiptEmail),
		"recurring": gateway.NewRecurring(api, registry, plans, store, store, producer, cfg.RecurringStartDay),
	}

	h := &harness{store: store, gateways: gateways}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /payment-methods", h.createPaymentMethod)
	mux.HandleFunc("POST /payments", h.createPayment)
	mux.HandleFunc("POST /payments/{id}/capture", h.capturePayment)
	mux.HandleFunc("POST /payments/{id}/void", h.voidPayment)

	log.Printf("[Main] payment gateway listening on %s", cfg.HTTPAddr)
	if err := http.ListenAndServe(cfg.HTTPAddr, mux); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}

type harness struct {
	store    *postgres.CheckoutStore
	gateways map[string]gateway.Gateway
}

func (h *harness) gatewayFor(flavor string) (gateway.Gateway, bool) {
	g, ok := h.gateways[flavor]
	return g, ok
}

func (h *harness) createPaymentMethod(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Flavor  string            `json:"flavor"`
		Email   string            `json:"email"`
		Billing *checkout.Address `json:"billing"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	g, ok := h.gatewayFor(req.Flavor)
	if !ok {
		http.Error(w, "unknown gateway flavor", http.StatusBadRequest)
		return
	}
	method := &checkout.PaymentMethod{
		ID:         uuid.New(),
		OwnerEmail: req.Email,
		Billing:    req.Billing,
		CreatedAt:  time.Now(),
	}
	if err := g.CreatePaymentMethod(r.Context(), method); err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"id":          method.ID.String(),
		"customer_id": method.CustomerID,
	})
}

func (h *harness) createPayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Flavor   string `json:"flavor"`
		OrderID  string `json:"order_id"`
		Email    string `json:"email"`
		Amount   string `json:"amount"`
		Currency string `json:"currency"`
		MethodID string `json:"method_id"`
		Capture  *bool  `json:"capture"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	g, ok := h.gatewayFor(req.Flavor)
	if !ok {
		http.Error(w, "unknown gateway flavor", http.StatusBadRequest)
		return
	}
	methodID, err := uuid.Parse(req.MethodID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	method, err := h.store.GetPaymentMethod(r.Context(), methodID)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	p := &checkout.Payment{
		ID:      uuid.New(),
		OrderID: req.OrderID,
		Email:   req.Email,
		Amount:  checkout.Amount{Number: amount, CurrencyCode: req.Currency},
		State:   checkout.PaymentStateNew,
		Method:  method,
	}
	if err := h.store.SavePayment(r.Context(), p); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	capture := true // default caller contract
	if req.Capture != nil {
		capture = *req.Capture
	}
	if err := g.CreatePayment(r.Context(), p, capture); err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"id":            p.ID.String(),
		"client_secret": p.RemoteID,
		"state":         string(p.State),
	})
}

func (h *harness) capturePayment(w http.ResponseWriter, r *http.Request) {
	h.resolveAndRun(w, r, func(g gateway.Gateway, p *checkout.Payment) error {
		return g.CapturePayment(r.Context(), p)
	})
}

func (h *harness) voidPayment(w http.ResponseWriter, r *http.Request) {
	h.resolveAndRun(w, r, func(g gateway.Gateway, p *checkout.Payment) error {
		return g.VoidPayment(r.Context(), p)
	})
}

func (h *harness) resolveAndRun(w http.ResponseWriter, r *http.Request, op func(gateway.Gateway, *checkout.Payment) error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	p, err := h.store.GetPayment(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	g, ok := h.gatewayFor(r.URL.Query().Get("flavor"))
	if !ok {
		http.Error(w, "unknown gateway flavor", http.StatusBadRequest)
		return
	}
	opErr := op(g, p)
	resp := map[string]string{"id": p.ID.String(), "state": string(p.State)}
	if opErr != nil {
		// Declines still report the (persisted) state alongside the error.
		resp["error"] = opErr.Error()
		writeJSON(w, http.StatusPaymentRequired, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[Main] failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
