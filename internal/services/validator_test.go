package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validPayload() *TradingViewAlert {
	return &TradingViewAlert{
		BotUUID:  "bot-1234",
		Symbol:   "BTCUSDT",
		Type:     "crypto",
		Interval: "15m",
		Action:   "buy",
		Close:    50000.0,
		Strategy: "ema-cross",
	}
}

func TestValidateAlert(t *testing.T) {
	t.Run("valid alert", func(t *testing.T) {
		alert, vErr := ValidateAlert(validPayload())
		assert.Nil(t, vErr)
		assert.NotNil(t, alert)
		assert.Equal(t, "bot-1234", alert.BotUUID)
		assert.Equal(t, "BTCUSDT", alert.Symbol)
		assert.Equal(t, "crypto", alert.AssetType)
		assert.Equal(t, "buy", alert.Action)
		assert.Equal(t, 50000.0, alert.ClosePrice)
		assert.NotEmpty(t, alert.DeliveryID)
		assert.False(t, alert.ReceivedAt.IsZero())
	})

	t.Run("sender delivery id is kept", func(t *testing.T) {
		payload := validPayload()
		payload.DeliveryID = "delivery-42"

		alert, vErr := ValidateAlert(payload)
		assert.Nil(t, vErr)
		assert.Equal(t, "delivery-42", alert.DeliveryID)
	})

	t.Run("synthesized delivery id is stable", func(t *testing.T) {
		at := time.Date(2025, 6, 1, 12, 30, 5, 0, time.UTC)
		later := at.Add(20 * time.Second)

		// Same decision re-delivered within the minute bucket collapses
		// onto one idempotency key.
		assert.Equal(t,
			synthesizeDeliveryID(validPayload(), at),
			synthesizeDeliveryID(validPayload(), later))

		nextBucket := at.Add(time.Minute)
		assert.NotEqual(t,
			synthesizeDeliveryID(validPayload(), at),
			synthesizeDeliveryID(validPayload(), nextBucket))
	})

	t.Run("rejects first failing field", func(t *testing.T) {
		cases := []struct {
			name   string
			mutate func(*TradingViewAlert)
			field  string
		}{
			{"missing uuid", func(p *TradingViewAlert) { p.BotUUID = "" }, "uuid"},
			{"missing symbol", func(p *TradingViewAlert) { p.Symbol = "" }, "symbol"},
			{"bad type", func(p *TradingViewAlert) { p.Type = "bond" }, "type"},
			{"bad action", func(p *TradingViewAlert) { p.Action = "hold" }, "action"},
			{"zero close", func(p *TradingViewAlert) { p.Close = 0 }, "close"},
			{"negative close", func(p *TradingViewAlert) { p.Close = -1 }, "close"},
			{"missing interval", func(p *TradingViewAlert) { p.Interval = "" }, "interval"},
			{"missing strategy", func(p *TradingViewAlert) { p.Strategy = "" }, "strategy"},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				payload := validPayload()
				tc.mutate(payload)

				alert, vErr := ValidateAlert(payload)
				assert.Nil(t, alert)
				assert.NotNil(t, vErr)
				assert.Equal(t, tc.field, vErr.Field)
				assert.Contains(t, vErr.Error(), tc.field)
			})
		}
	})

	t.Run("stock and forex types accepted", func(t *testing.T) {
		for _, assetType := range []string{"stock", "forex"} {
			payload := validPayload()
			payload.Type = assetType
			alert, vErr := ValidateAlert(payload)
			assert.Nil(t, vErr)
			assert.Equal(t, assetType, alert.AssetType)
		}
	})
}
