package services

import (
	"context"
	"fmt"
	"time"

	"github.com/grumming/grumming-app-sub004/config"
	"github.com/grumming/grumming-app-sub004/models"
	"github.com/razorpay/razorpay-go"
	"github.com/shopspring/decimal"
)

// OrderRequest asks the gateway to mint an order. Amount is in minor units.
type OrderRequest struct {
	Amount   int64
	Currency string
	Receipt  string
	Notes    map[string]interface{}
}

type GatewayOrder struct {
	ID       string
	Amount   int64
	Currency string
}

// Gateway is the subset of the payment gateway this service talks to.
type Gateway interface {
	KeyID() string
	CreateOrder(ctx context.Context, req OrderRequest) (*GatewayOrder, error)
	ListSettlements(ctx context.Context, count int) ([]models.Settlement, error)
	SettlementTransactions(ctx context.Context, st models.Settlement, count int) ([]models.SettlementTransaction, error)
}

// RazorpayGateway implements Gateway with the official Razorpay client.
type RazorpayGateway struct {
	client *razorpay.Client
	keyID  string
}

// NewRazorpayGateway returns nil when the credentials are missing, so callers can report a configuration error.
func NewRazorpayGateway(cfg config.RazorpayConfig) *RazorpayGateway {
	if !cfg.Configured() {
		return nil
	}
	return &RazorpayGateway{
		client: razorpay.NewClient(cfg.KeyID, cfg.KeySecret),
		keyID:  cfg.KeyID,
	}
}

func (g *RazorpayGateway) KeyID() string {
	return g.keyID
}

func (g *RazorpayGateway) CreateOrder(ctx context.Context, req OrderRequest) (*GatewayOrder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data := map[string]interface{}{
		"amount":   req.Amount,
		"currency": req.Currency,
		"receipt":  req.Receipt,
	}
	if len(req.Notes) > 0 {
		data["notes"] = req.Notes
	}

	resp, err := g.client.Order.Create(data, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating razorpay order: %w", err)
	}

	id, _ := resp["id"].(string)
	if id == "" {
		return nil, fmt.Errorf("razorpay order response has no id")
	}
	order := &GatewayOrder{ID: id, Amount: req.Amount, Currency: req.Currency}
	if amount, ok := asInt64(resp["amount"]); ok {
		order.Amount = amount
	}
	if currency, ok := resp["currency"].(string); ok && currency != "" {
		order.Currency = currency
	}
	return order, nil
}

func (g *RazorpayGateway) ListSettlements(ctx context.Context, count int) ([]models.Settlement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp, err := g.client.Settlement.All(map[string]interface{}{"count": count}, nil)
	if err != nil {
		return nil, fmt.Errorf("error listing razorpay settlements: %w", err)
	}
	return parseSettlements(resp), nil
}

// SettlementTransactions pages through the combined recon report for the day the settlement was
// created and keeps up to count entries that belong to it.
func (g *RazorpayGateway) SettlementTransactions(ctx context.Context, st models.Settlement, count int) ([]models.SettlementTransaction, error) {
	day := st.CreatedAt
	if st.SettledAt != nil {
		day = *st.SettledAt
	}
	day = day.In(ist)

	return collectRecon(ctx, st.RazorpaySettlementID, count, func(skip int) (map[string]interface{}, error) {
		resp, err := g.client.Settlement.Reports(map[string]interface{}{
			"year":  day.Year(),
			"month": int(day.Month()),
			"day":   day.Day(),
			"count": reconPageSize,
			"skip":  skip,
		}, nil)
		if err != nil {
			return nil, fmt.Errorf("error fetching recon for settlement %s: %w", st.RazorpaySettlementID, err)
		}
		return resp, nil
	})
}

const (
	reconPageSize = 100
	maxReconPages = 50
)

// collectRecon reads report pages until it has want entries for the settlement or the report runs out.
func collectRecon(ctx context.Context, settlementID string, want int, fetch func(skip int) (map[string]interface{}, error)) ([]models.SettlementTransaction, error) {
	var out []models.SettlementTransaction
	for page := 0; page < maxReconPages; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		resp, err := fetch(page * reconPageSize)
		if err != nil {
			return nil, err
		}
		out = append(out, parseReconItems(resp, settlementID)...)
		if want > 0 && len(out) >= want {
			return out[:want], nil
		}
		if items, _ := resp["items"].([]interface{}); len(items) < reconPageSize {
			return out, nil
		}
	}
	return out, nil
}

var ist = time.FixedZone("IST", 5*3600+1800)

func parseSettlements(resp map[string]interface{}) []models.Settlement {
	items, _ := resp["items"].([]interface{})
	out := make([]models.Settlement, 0, len(items))
	for _, raw := range items {
		item, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		id, _ := item["id"].(string)
		if id == "" {
			continue
		}
		st := models.Settlement{
			RazorpaySettlementID: id,
			Amount:               minorField(item, "amount"),
			Fees:                 minorField(item, "fees"),
			Tax:                  minorField(item, "tax"),
		}
		st.UTR, _ = item["utr"].(string)
		st.Status, _ = item["status"].(string)
		if created, ok := asInt64(item["created_at"]); ok && created > 0 {
			st.CreatedAt = time.Unix(created, 0).UTC()
			if st.Status == "processed" {
				settled := st.CreatedAt
				st.SettledAt = &settled
			}
		}
		out = append(out, st)
	}
	return out
}

func parseReconItems(resp map[string]interface{}, settlementID string) []models.SettlementTransaction {
	items, _ := resp["items"].([]interface{})
	var out []models.SettlementTransaction
	for _, raw := range items {
		item, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		sid, _ := item["settlement_id"].(string)
		if sid != settlementID {
			continue
		}
		tx := models.SettlementTransaction{SettlementID: sid, Amount: minorField(item, "amount")}
		tx.EntityID, _ = item["entity_id"].(string)
		tx.Type, _ = item["type"].(string)
		if settled, ok := asInt64(item["settled_at"]); ok && settled > 0 {
			t := time.Unix(settled, 0).UTC()
			tx.SettledAt = &t
		}
		out = append(out, tx)
	}
	return out
}

func minorField(item map[string]interface{}, key string) decimal.Decimal {
	v, _ := asInt64(item[key])
	return models.FromMinorUnits(v)
}

func asInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	}
	return 0, false
}
