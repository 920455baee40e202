package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBotLifecycle(t *testing.T) {
	setupTestDB(t)
	bots := NewBotService()

	bot, err := bots.Create("owner-1", "BTCUSDT", "15m", "ema-cross")
	require.NoError(t, err)
	assert.False(t, bot.IsActive, "bots start inactive")

	t.Run("start and stop", func(t *testing.T) {
		assert.NoError(t, bots.SetActive(bot.UUID, true))
		got, err := bots.GetByUUID(bot.UUID)
		assert.NoError(t, err)
		assert.True(t, got.IsActive)

		assert.NoError(t, bots.SetActive(bot.UUID, false))
		got, err = bots.GetByUUID(bot.UUID)
		assert.NoError(t, err)
		assert.False(t, got.IsActive)
	})

	t.Run("unknown uuid", func(t *testing.T) {
		assert.ErrorIs(t, bots.SetActive("missing", true), ErrNotFound)
		_, err := bots.GetByUUID("missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete works in any state", func(t *testing.T) {
		inactive, err := bots.Create("owner-1", "ETHUSDT", "1h", "rsi")
		require.NoError(t, err)
		assert.NoError(t, bots.Delete(inactive.UUID))
		assert.ErrorIs(t, bots.Delete(inactive.UUID), ErrNotFound)
	})

	t.Run("bulk start all", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			_, err := bots.Create("owner-2", "BTCUSDT", "15m", "ema-cross")
			require.NoError(t, err)
		}

		updated, err := bots.SetActiveAll("owner-2", true)
		assert.NoError(t, err)
		assert.Equal(t, 3, updated)
	})
}

func TestSubscriptionLifecycle(t *testing.T) {
	setupTestDB(t)
	subs := NewSubscriptionService()

	t.Run("create validates amount", func(t *testing.T) {
		_, err := subs.Create("bot-1", "user-1", 0, 1)
		assert.Error(t, err)
	})

	t.Run("list active by bot reads current state", func(t *testing.T) {
		s1, err := subs.Create("bot-1", "user-1", 100, 2)
		require.NoError(t, err)
		s2, err := subs.Create("bot-1", "user-2", 200, 1)
		require.NoError(t, err)
		_, err = subs.Create("bot-other", "user-3", 300, 1)
		require.NoError(t, err)

		active, err := subs.ListActiveByBot("bot-1")
		assert.NoError(t, err)
		assert.Empty(t, active, "subscriptions start inactive")

		require.NoError(t, subs.SetActive(s1.UUID, true))
		require.NoError(t, subs.SetActive(s2.UUID, true))

		active, err = subs.ListActiveByBot("bot-1")
		assert.NoError(t, err)
		assert.Len(t, active, 2)

		// Disabled mid-flight subscriptions drop out on the next read
		require.NoError(t, subs.SetActive(s2.UUID, false))
		active, err = subs.ListActiveByBot("bot-1")
		assert.NoError(t, err)
		assert.Len(t, active, 1)
		assert.Equal(t, s1.UUID, active[0].UUID)
	})

	t.Run("bulk stop all", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			sub, err := subs.Create("bot-bulk", "user-bulk", 50, 1)
			require.NoError(t, err)
			require.NoError(t, subs.SetActive(sub.UUID, true))
		}

		updated, err := subs.SetActiveAll("user-bulk", false)
		assert.NoError(t, err)
		assert.Equal(t, 2, updated)

		active, err := subs.ListActiveByBot("bot-bulk")
		assert.NoError(t, err)
		assert.Empty(t, active)
	})
}

func TestCredentialService(t *testing.T) {
	setupTestDB(t)
	creds := NewCredentialService()
	ctx := context.Background()

	_, err := creds.Save("user-1", "binance", "key", "secret", "")
	assert.NoError(t, err)

	t.Run("resolves active credentials", func(t *testing.T) {
		cred, err := creds.GetActive(ctx, "user-1", "binance")
		assert.NoError(t, err)
		assert.Equal(t, "key", cred.APIKey)
		assert.Equal(t, "secret", cred.SecretKey)
	})

	t.Run("missing credentials", func(t *testing.T) {
		_, err := creds.GetActive(ctx, "user-1", "alpaca")
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = creds.GetActive(ctx, "user-unknown", "binance")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
