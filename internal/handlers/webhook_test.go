package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Cyvadra/tv-dispatch/internal/config"
	"github.com/Cyvadra/tv-dispatch/internal/database"
	"github.com/Cyvadra/tv-dispatch/internal/handlers"
	"github.com/Cyvadra/tv-dispatch/internal/routes"
	"github.com/Cyvadra/tv-dispatch/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupRouter points the global database at a fresh in-memory sqlite
// instance and wires a router with all routes registered.
func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	require.NoError(t, database.InitDatabase(dsn))

	gin.SetMode(gin.TestMode)
	handlers.SetGlobalHandler(handlers.NewWebhookHandler(config.DefaultDispatchConfig()))

	r := gin.New()
	routes.SetupRoutes(r)
	return r
}

func postJSON(r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	json.NewEncoder(&buf).Encode(body)
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func validAlertPayload(botUUID string) map[string]any {
	return map[string]any{
		"delivery_id": "delivery-1",
		"uuid":        botUUID,
		"symbol":      "BTCUSDT",
		"type":        "crypto",
		"interval":    "1h",
		"action":      "buy",
		"close":       50000.0,
		"strategy":    "momentum",
	}
}

func TestHandleTradingViewAlert(t *testing.T) {
	t.Run("rejects malformed payload", func(t *testing.T) {
		r := setupRouter(t)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/webhook/tradingview",
			strings.NewReader("{not json"))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "Malformed alert payload", body["error"])
	})

	t.Run("rejects invalid payload with failing field", func(t *testing.T) {
		r := setupRouter(t)

		payload := validAlertPayload("bot-1")
		payload["action"] = "hold"
		w := postJSON(r, "/api/v1/webhook/tradingview", payload)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "action", body["field"])
	})

	t.Run("accepts alert for unknown bot as skipped", func(t *testing.T) {
		r := setupRouter(t)

		w := postJSON(r, "/api/v1/webhook/tradingview", validAlertPayload("no-such-bot"))

		assert.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		report := body["report"].(map[string]any)
		assert.Equal(t, "skipped_no_bot", report["status"])
	})

	t.Run("accepts alert for bot with no subscribers", func(t *testing.T) {
		r := setupRouter(t)

		bot, err := services.NewBotService().Create("owner-1", "BTCUSDT", "1h", "momentum")
		require.NoError(t, err)
		require.NoError(t, services.NewBotService().SetActive(bot.UUID, true))

		w := postJSON(r, "/api/v1/webhook/tradingview", validAlertPayload(bot.UUID))

		assert.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		report := body["report"].(map[string]any)
		assert.Equal(t, "skipped_no_subscribers", report["status"])
	})

	t.Run("persists accepted alerts for audit", func(t *testing.T) {
		r := setupRouter(t)

		w := postJSON(r, "/api/v1/webhook/tradingview", validAlertPayload("no-such-bot"))
		require.Equal(t, http.StatusOK, w.Code)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		alerts := body["alerts"].([]any)
		require.Len(t, alerts, 1)
		alert := alerts[0].(map[string]any)
		assert.Equal(t, "delivery-1", alert["delivery_id"])
	})
}

func TestGetDispatch(t *testing.T) {
	t.Run("returns 404 for unknown delivery", func(t *testing.T) {
		r := setupRouter(t)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/dispatches/unknown", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestBotLifecycleEndpoints(t *testing.T) {
	r := setupRouter(t)

	w := postJSON(r, "/api/v1/bots", map[string]any{
		"owner_uuid": "owner-1",
		"symbol":     "BTCUSDT",
		"timeframe":  "1h",
		"strategy":   "momentum",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	created := decodeBody(t, w)
	botUUID := created["uuid"].(string)
	assert.Equal(t, false, created["is_active"], "bots start inactive")

	w = postJSON(r, "/api/v1/bots/"+botUUID+"/start", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeBody(t, w)["is_active"])

	w = postJSON(r, "/api/v1/bots/"+botUUID+"/stop", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = postJSON(r, "/api/v1/bots/missing/start", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/bots/"+botUUID, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBotBulkEndpoints(t *testing.T) {
	r := setupRouter(t)

	bots := services.NewBotService()
	for i := 0; i < 3; i++ {
		_, err := bots.Create("owner-7", "BTCUSDT", "1h", "momentum")
		require.NoError(t, err)
	}

	w := postJSON(r, "/api/v1/users/owner-7/bots/start-all", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, float64(3), body["updated"])
	assert.Equal(t, true, body["is_active"])

	w = postJSON(r, "/api/v1/users/owner-7/bots/stop-all", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), decodeBody(t, w)["updated"])
}

func TestSubscriptionLifecycleEndpoints(t *testing.T) {
	r := setupRouter(t)

	bot, err := services.NewBotService().Create("owner-1", "BTCUSDT", "1h", "momentum")
	require.NoError(t, err)

	w := postJSON(r, "/api/v1/subscriptions", map[string]any{
		"bot_uuid":  bot.UUID,
		"user_uuid": "user-1",
		"amount":    100.0,
		"leverage":  2,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	subUUID := decodeBody(t, w)["uuid"].(string)

	w = postJSON(r, "/api/v1/subscriptions", map[string]any{
		"bot_uuid":  bot.UUID,
		"user_uuid": "user-1",
		"amount":    -5.0,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(r, "/api/v1/subscriptions/"+subUUID+"/start", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = postJSON(r, "/api/v1/users/user-1/subscriptions/stop-all", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, float64(1), body["updated"])
}
