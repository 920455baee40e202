package services

import (
	"testing"

	"github.com/Cyvadra/tv-dispatch/broker"
	"github.com/Cyvadra/tv-dispatch/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestComputeQuantity(t *testing.T) {
	t.Run("deterministic sizing", func(t *testing.T) {
		sub := &models.Subscription{Amount: 100, Leverage: 5}
		qty, err := ComputeQuantity(sub, 50)
		assert.NoError(t, err)
		assert.Equal(t, "10", qty.String())
	})

	t.Run("scenario quantities", func(t *testing.T) {
		cases := []struct {
			amount   float64
			leverage int
			want     string
		}{
			{100, 2, "0.004"},
			{200, 1, "0.004"},
			{300, 3, "0.018"},
		}

		for _, tc := range cases {
			sub := &models.Subscription{Amount: tc.amount, Leverage: tc.leverage}
			qty, err := ComputeQuantity(sub, 50000)
			assert.NoError(t, err)
			assert.Equal(t, tc.want, qty.String())
		}
	})

	t.Run("leverage below one treated as one", func(t *testing.T) {
		sub := &models.Subscription{Amount: 100, Leverage: 0}
		qty, err := ComputeQuantity(sub, 50)
		assert.NoError(t, err)
		assert.Equal(t, "2", qty.String())
	})

	t.Run("non-positive close price fails", func(t *testing.T) {
		sub := &models.Subscription{Amount: 100, Leverage: 1}

		_, err := ComputeQuantity(sub, 0)
		assert.Error(t, err)

		_, err = ComputeQuantity(sub, -50)
		assert.Error(t, err)

		var sizingErr *SizingError
		assert.ErrorAs(t, err, &sizingErr)
	})

	t.Run("non-positive amount fails", func(t *testing.T) {
		sub := &models.Subscription{Amount: 0, Leverage: 1}
		_, err := ComputeQuantity(sub, 50)
		assert.Error(t, err)
	})
}

func TestApplyLotStep(t *testing.T) {
	t.Run("rounds down to step", func(t *testing.T) {
		sub := &models.Subscription{Amount: 100, Leverage: 1}
		qty, err := ComputeQuantity(sub, 30000) // 0.00333...
		assert.NoError(t, err)

		rounded, toStep, err := ApplyLotStep(qty, &broker.SymbolInfo{StepSize: "0.001"})
		assert.NoError(t, err)
		assert.True(t, toStep)
		assert.Equal(t, "0.003", rounded.String())
	})

	t.Run("unknown step falls back to raw quantity", func(t *testing.T) {
		sub := &models.Subscription{Amount: 100, Leverage: 2}
		qty, err := ComputeQuantity(sub, 50000)
		assert.NoError(t, err)

		rounded, toStep, err := ApplyLotStep(qty, nil)
		assert.NoError(t, err)
		assert.False(t, toStep)
		assert.Equal(t, "0.004", rounded.String())

		rounded, toStep, err = ApplyLotStep(qty, &broker.SymbolInfo{})
		assert.NoError(t, err)
		assert.False(t, toStep)
		assert.Equal(t, "0.004", rounded.String())
	})

	t.Run("rounding to zero is a sizing error", func(t *testing.T) {
		sub := &models.Subscription{Amount: 10, Leverage: 1}
		qty, err := ComputeQuantity(sub, 50000) // 0.0002
		assert.NoError(t, err)

		_, _, err = ApplyLotStep(qty, &broker.SymbolInfo{StepSize: "0.001"})
		assert.Error(t, err)

		var sizingErr *SizingError
		assert.ErrorAs(t, err, &sizingErr)
	})
}
