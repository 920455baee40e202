package broker

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FormatSymbol formats a symbol according to exchange requirements
func FormatSymbol(symbol string, exchange string) string {
	symbol = strings.ToUpper(symbol)

	switch exchange {
	case "binance":
		// Binance uses BTCUSDT format
		return symbol
	case "alpaca":
		// Alpaca uses plain uppercase tickers, forex pairs as EUR/USD
		return symbol
	default:
		return symbol
	}
}

// ParseQuantity parses a quantity string to float64
func ParseQuantity(quantity string) (float64, error) {
	if quantity == "" {
		return 0, ErrInvalidQuantity
	}

	qty, err := strconv.ParseFloat(quantity, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidQuantity, quantity)
	}

	if qty <= 0 {
		return 0, fmt.Errorf("%w: quantity must be positive", ErrInvalidQuantity)
	}

	return qty, nil
}

// ParsePrice parses a price string to float64
func ParsePrice(price string) (float64, error) {
	if price == "" {
		return 0, ErrInvalidPrice
	}

	p, err := strconv.ParseFloat(price, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidPrice, price)
	}

	if p <= 0 {
		return 0, fmt.Errorf("%w: price must be positive", ErrInvalidPrice)
	}

	return p, nil
}

// RoundToStep floors a quantity down to a multiple of the exchange lot
// step. A zero or negative step returns the quantity unchanged.
func RoundToStep(quantity, step decimal.Decimal) decimal.Decimal {
	if step.Sign() <= 0 {
		return quantity
	}
	return quantity.Div(step).Floor().Mul(step)
}

// ValidateOrderRequest validates an order request
func ValidateOrderRequest(req *OrderRequest) error {
	if req == nil {
		return fmt.Errorf("order request is nil")
	}

	if req.Symbol == "" {
		return ErrInvalidSymbol
	}

	if req.Side != OrderSideBuy && req.Side != OrderSideSell {
		return ErrInvalidOrderSide
	}

	if req.Type != OrderTypeMarket && req.Type != OrderTypeLimit {
		return ErrInvalidOrderType
	}

	if _, err := ParseQuantity(req.Quantity); err != nil {
		return err
	}

	if req.Type == OrderTypeLimit {
		if req.Price == "" {
			return fmt.Errorf("%w: price required for limit orders", ErrInvalidPrice)
		}
		if _, err := ParsePrice(req.Price); err != nil {
			return err
		}
	}

	return nil
}

// NormalizeSymbol normalizes symbol format (removes common variations)
func NormalizeSymbol(symbol string) string {
	symbol = strings.ToUpper(symbol)
	symbol = strings.ReplaceAll(symbol, "-", "")
	symbol = strings.ReplaceAll(symbol, "_", "")
	symbol = strings.ReplaceAll(symbol, "/", "")
	return symbol
}

// GetOppositeOrderSide returns the opposite order side
func GetOppositeOrderSide(side OrderSide) OrderSide {
	if side == OrderSideBuy {
		return OrderSideSell
	}
	return OrderSideBuy
}

// RetryWithBackoff executes a function with exponential backoff. Attempts
// stop early on permanent errors and when the context is done; errors not
// explicitly classified transient are retried once at most. The last
// error is returned. attempts receives the number of calls actually made.
func RetryWithBackoff(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func() error) (attempts int, err error) {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := baseDelay * time.Duration(1<<uint(attempt-1)) // Exponential backoff
			if delay > time.Minute {
				delay = time.Minute // Cap at 1 minute
			}

			select {
			case <-ctx.Done():
				return attempts, ctx.Err()
			case <-time.After(delay):
			}
		}

		attempts++
		err := fn()
		if err == nil {
			return attempts, nil
		}

		lastErr = err

		// Don't retry if it's not a retryable error
		if !IsRetryableError(err) {
			break
		}

		// Unclassified failures get a single retry before giving up
		if attempt >= 1 && !IsClassifiedTransient(err) {
			break
		}
	}

	return attempts, lastErr
}
