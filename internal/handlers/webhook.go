package handlers

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/Cyvadra/tv-dispatch/internal/config"
	"github.com/Cyvadra/tv-dispatch/internal/database"
	"github.com/Cyvadra/tv-dispatch/internal/models"
	"github.com/Cyvadra/tv-dispatch/internal/services"
	"github.com/gin-gonic/gin"
)

// Global handler instance
var globalHandler *WebhookHandler

// WebhookHandler handles TradingView alert webhooks and dispatch queries
type WebhookHandler struct {
	dispatchService *services.DispatchService
	notifyService   *services.NotifyService
	botService      *services.BotService
	subService      *services.SubscriptionService
	credService     *services.CredentialService
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(dispatchCfg config.DispatchConfig) *WebhookHandler {
	return &WebhookHandler{
		dispatchService: services.NewDispatchService(dispatchCfg),
		notifyService:   services.NewNotifyService(),
		botService:      services.NewBotService(),
		subService:      services.NewSubscriptionService(),
		credService:     services.NewCredentialService(),
	}
}

// SetGlobalHandler sets the global handler instance
func SetGlobalHandler(handler *WebhookHandler) {
	globalHandler = handler
}

// GetGlobalHandler returns the global handler instance
func GetGlobalHandler() *WebhookHandler {
	return globalHandler
}

// SetConfig sets the configuration for all services
func (h *WebhookHandler) SetConfig(cfg *config.Config) {
	h.notifyService.SetConfig(cfg)
}

// HandleTradingViewAlert handles incoming TradingView alerts. The alert
// is validated, persisted, dispatched to all active subscriptions of the
// targeted bot, and the aggregate report returned. The sender gets a 200
// once the alert was accepted regardless of individual subscription
// outcomes; only validation failures are client errors.
func (h *WebhookHandler) HandleTradingViewAlert(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		log.Printf("Failed to read request body: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}

	var payload services.TradingViewAlert
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Printf("Malformed alert payload: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Malformed alert payload"})
		return
	}

	alert, vErr := services.ValidateAlert(&payload)
	if vErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "Alert validation failed",
			"field":  vErr.Field,
			"reason": vErr.Reason,
		})
		return
	}

	// Persist the alert for audit before dispatching
	alert.RawPayload = string(body)
	if err := database.GetDB().Create(alert).Error; err != nil {
		log.Printf("Failed to save alert: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save alert"})
		return
	}

	report, err := h.dispatchService.Dispatch(c.Request.Context(), alert)
	if err != nil {
		log.Printf("Dispatch failed for delivery %s: %v", alert.DeliveryID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Dispatch failed"})
		return
	}

	go func() {
		if err := h.notifyService.NotifyReport(report); err != nil {
			log.Printf("Failed to notify report for delivery %s: %v", report.DeliveryID, err)
		}
	}()

	c.JSON(http.StatusOK, gin.H{
		"message": "Alert accepted",
		"report":  report,
	})
}

// GetDispatch returns the recorded outcomes for one delivery
func (h *WebhookHandler) GetDispatch(c *gin.Context) {
	deliveryID := c.Param("delivery_id")
	if deliveryID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "delivery_id is required"})
		return
	}

	outcomes, err := h.dispatchService.Ledger().ListByDelivery(deliveryID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve outcomes"})
		return
	}
	if len(outcomes) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "No outcomes for delivery"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"delivery_id": deliveryID,
		"outcomes":    outcomes,
	})
}

// GetAlerts retrieves recent alerts for audit
func (h *WebhookHandler) GetAlerts(c *gin.Context) {
	var alerts []models.Alert
	err := database.GetDB().Order("created_at DESC").Limit(50).Find(&alerts).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve alerts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}
