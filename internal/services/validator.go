package services

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"github.com/Cyvadra/tv-dispatch/internal/models"
)

// TradingViewAlert represents the structure of a TradingView webhook alert
type TradingViewAlert struct {
	DeliveryID string  `json:"delivery_id,omitempty"`
	BotUUID    string  `json:"uuid"`
	Symbol     string  `json:"symbol"`
	Type       string  `json:"type"` // crypto, stock, forex
	Interval   string  `json:"interval"`
	Action     string  `json:"action"` // buy, sell
	Close      float64 `json:"close"`
	Strategy   string  `json:"strategy"`
	Time       string  `json:"time,omitempty"`
}

// ValidationError describes the first field that failed validation
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid alert: field %q %s", e.Field, e.Reason)
}

// Asset types accepted from the webhook.
var validAssetTypes = map[string]bool{
	"crypto": true,
	"stock":  true,
	"forex":  true,
}

// ValidateAlert parses a raw TradingView alert into a canonical Alert.
// Validation stops at the first failing field; no partial alerts are
// produced. The function has no side effects.
func ValidateAlert(payload *TradingViewAlert) (*models.Alert, *ValidationError) {
	if payload.BotUUID == "" {
		return nil, &ValidationError{Field: "uuid", Reason: "must not be empty"}
	}
	if payload.Symbol == "" {
		return nil, &ValidationError{Field: "symbol", Reason: "must not be empty"}
	}
	if !validAssetTypes[payload.Type] {
		return nil, &ValidationError{Field: "type", Reason: "must be one of crypto, stock, forex"}
	}
	if payload.Action != "buy" && payload.Action != "sell" {
		return nil, &ValidationError{Field: "action", Reason: "must be buy or sell"}
	}
	if payload.Close <= 0 || math.IsNaN(payload.Close) || math.IsInf(payload.Close, 0) {
		return nil, &ValidationError{Field: "close", Reason: "must be a positive finite number"}
	}
	if payload.Interval == "" {
		return nil, &ValidationError{Field: "interval", Reason: "must not be empty"}
	}
	if payload.Strategy == "" {
		return nil, &ValidationError{Field: "strategy", Reason: "must not be empty"}
	}

	receivedAt := time.Now().UTC()

	deliveryID := payload.DeliveryID
	if deliveryID == "" {
		deliveryID = synthesizeDeliveryID(payload, receivedAt)
	}

	return &models.Alert{
		DeliveryID: deliveryID,
		BotUUID:    payload.BotUUID,
		Symbol:     payload.Symbol,
		AssetType:  payload.Type,
		Interval:   payload.Interval,
		Action:     payload.Action,
		ClosePrice: payload.Close,
		Strategy:   payload.Strategy,
		ReceivedAt: receivedAt,
	}, nil
}

// synthesizeDeliveryID derives an idempotency key for senders that do not
// supply one. The minute bucket makes the same decision re-delivered
// shortly after collapse onto one key without deduplicating distinct
// signals on the same candle.
func synthesizeDeliveryID(payload *TradingViewAlert, receivedAt time.Time) string {
	bucket := receivedAt.Truncate(time.Minute).Unix()
	seed := fmt.Sprintf("%s|%s|%s|%.8f|%d",
		payload.BotUUID, payload.Symbol, payload.Action, payload.Close, bucket)
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:16])
}
