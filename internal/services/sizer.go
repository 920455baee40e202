package services

import (
	"fmt"

	"github.com/Cyvadra/tv-dispatch/broker"
	"github.com/Cyvadra/tv-dispatch/internal/models"
	"github.com/shopspring/decimal"
)

// SizingError indicates a degenerate quantity computation
type SizingError struct {
	Reason string
}

func (e *SizingError) Error() string {
	return fmt.Sprintf("sizing failed: %s", e.Reason)
}

// ComputeQuantity converts a subscription's configured capital and
// leverage plus the alert's close price into an order quantity:
// amount * leverage / close. The result is not yet lot-step rounded.
func ComputeQuantity(sub *models.Subscription, closePrice float64) (decimal.Decimal, error) {
	if closePrice <= 0 {
		return decimal.Zero, &SizingError{Reason: "close price must be positive"}
	}
	if sub.Amount <= 0 {
		return decimal.Zero, &SizingError{Reason: "subscription amount must be positive"}
	}

	leverage := sub.Leverage
	if leverage < 1 {
		leverage = 1
	}

	amount := decimal.NewFromFloat(sub.Amount)
	close := decimal.NewFromFloat(closePrice)

	quantity := amount.Mul(decimal.NewFromInt(int64(leverage))).Div(close)
	if quantity.Sign() <= 0 {
		return decimal.Zero, &SizingError{Reason: "computed quantity is zero"}
	}

	return quantity, nil
}

// ApplyLotStep floors a quantity to the exchange lot step taken from the
// symbol info. An unknown step returns the raw quantity with rounded=false
// so the outcome can be flagged for audit. A quantity that rounds to zero
// is a sizing error.
func ApplyLotStep(quantity decimal.Decimal, info *broker.SymbolInfo) (decimal.Decimal, bool, error) {
	if info == nil || info.StepSize == "" {
		return quantity, false, nil
	}

	step, err := decimal.NewFromString(info.StepSize)
	if err != nil || step.Sign() <= 0 {
		return quantity, false, nil
	}

	rounded := broker.RoundToStep(quantity, step)
	if rounded.Sign() <= 0 {
		return decimal.Zero, true, &SizingError{Reason: "quantity rounds to zero at the exchange lot step"}
	}

	return rounded, true, nil
}
