package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Plan struct {
	ID    string          `json:"id"`
	Label string          `json:"label"`
	Price decimal.Decimal `json:"price"`
}

// MinorUnits is the price in the currency's smallest unit (paise for INR).
func (p Plan) MinorUnits() int64 {
	return p.Price.Shift(2).IntPart()
}

var Plans = []Plan{
	{ID: "daily", Label: "Daily Pass", Price: decimal.NewFromInt(29)},
	{ID: "monthly", Label: "Monthly Plan", Price: decimal.NewFromInt(499)},
}

func PlanByID(id string) (Plan, error) {
	for _, p := range Plans {
		if p.ID == id {
			return p, nil
		}
	}
	return Plan{}, fmt.Errorf("%w: %q", ErrUnknownPlan, id)
}

// CheckoutOrder is what the payment widget needs to take a payment.
type CheckoutOrder struct {
	ID          string `json:"id"`
	Key         string `json:"key"`
	AmountMinor int64  `json:"amount"`
	Currency    string `json:"currency"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Checkout hands a purchase to the payment collaborator. onSuccess runs once
// the payment is confirmed through Complete.
type Checkout interface {
	OpenCheckout(ctx context.Context, amount decimal.Decimal, planLabel string, onSuccess func()) (CheckoutOrder, error)
	Complete(ctx context.Context, orderID, paymentID string) error
}

// PendingCheckout keeps opened orders in memory until the client reports the
// payment result.
type PendingCheckout struct {
	key      string
	currency string
	log      *zap.Logger

	mu     sync.Mutex
	orders map[string]func()
}

func NewPendingCheckout(key, currency string, log *zap.Logger) *PendingCheckout {
	return &PendingCheckout{key: key, currency: currency, log: log, orders: make(map[string]func())}
}

func (c *PendingCheckout) OpenCheckout(_ context.Context, amount decimal.Decimal, planLabel string, onSuccess func()) (CheckoutOrder, error) {
	if !amount.IsPositive() {
		return CheckoutOrder{}, fmt.Errorf("checkout amount must be positive, got %s", amount)
	}
	order := CheckoutOrder{
		ID:          uuid.NewString(),
		Key:         c.key,
		AmountMinor: amount.Shift(2).IntPart(),
		Currency:    c.currency,
		Name:        "RADZZ AI Premium",
		Description: "Unlock Premium Features - " + planLabel,
	}

	c.mu.Lock()
	c.orders[order.ID] = onSuccess
	c.mu.Unlock()

	c.log.Info("checkout_opened", zap.String("order", order.ID), zap.String("plan", planLabel), zap.Int64("amount", order.AmountMinor))
	return order, nil
}

func (c *PendingCheckout) Complete(_ context.Context, orderID, paymentID string) error {
	c.mu.Lock()
	onSuccess, ok := c.orders[orderID]
	delete(c.orders, orderID)
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownOrder, orderID)
	}

	c.log.Info("checkout_completed", zap.String("order", orderID), zap.String("payment", paymentID))
	if onSuccess != nil {
		onSuccess()
	}
	return nil
}
