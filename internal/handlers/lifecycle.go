package handlers

import (
	"errors"
	"net/http"

	"github.com/Cyvadra/tv-dispatch/internal/services"
	"github.com/gin-gonic/gin"
)

// CreateBotRequest is the payload for creating a bot
type CreateBotRequest struct {
	OwnerUUID string `json:"owner_uuid"`
	Symbol    string `json:"symbol" binding:"required"`
	Timeframe string `json:"timeframe"`
	Strategy  string `json:"strategy"`
}

// CreateSubscriptionRequest is the payload for creating a subscription
type CreateSubscriptionRequest struct {
	BotUUID  string  `json:"bot_uuid" binding:"required"`
	UserUUID string  `json:"user_uuid" binding:"required"`
	Amount   float64 `json:"amount" binding:"required"`
	Leverage int     `json:"leverage"`
}

// CreateBot creates a new bot in the inactive state
func (h *WebhookHandler) CreateBot(c *gin.Context) {
	var req CreateBotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	bot, err := h.botService.Create(req.OwnerUUID, req.Symbol, req.Timeframe, req.Strategy)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create bot"})
		return
	}

	c.JSON(http.StatusCreated, bot)
}

// SetBotActive starts or stops a bot
func (h *WebhookHandler) SetBotActive(active bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := h.botService.SetActive(c.Param("uuid"), active)
		if errors.Is(err, services.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Bot not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update bot"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"uuid": c.Param("uuid"), "is_active": active})
	}
}

// DeleteBot removes a bot in any state
func (h *WebhookHandler) DeleteBot(c *gin.Context) {
	err := h.botService.Delete(c.Param("uuid"))
	if errors.Is(err, services.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Bot not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete bot"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"uuid": c.Param("uuid"), "deleted": true})
}

// CreateSubscription creates a new subscription in the inactive state
func (h *WebhookHandler) CreateSubscription(c *gin.Context) {
	var req CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sub, err := h.subService.Create(req.BotUUID, req.UserUUID, req.Amount, req.Leverage)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, sub)
}

// SetSubscriptionActive starts or stops a subscription
func (h *WebhookHandler) SetSubscriptionActive(active bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := h.subService.SetActive(c.Param("uuid"), active)
		if errors.Is(err, services.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Subscription not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update subscription"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"uuid": c.Param("uuid"), "is_active": active})
	}
}

// DeleteSubscription removes a subscription
func (h *WebhookHandler) DeleteSubscription(c *gin.Context) {
	err := h.subService.Delete(c.Param("uuid"))
	if errors.Is(err, services.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Subscription not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete subscription"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"uuid": c.Param("uuid"), "deleted": true})
}

// SetAllBotsActive bulk starts or stops every bot an owner has; each
// transition is applied independently.
func (h *WebhookHandler) SetAllBotsActive(active bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		updated, err := h.botService.SetActiveAll(c.Param("uuid"), active)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update bots"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"owner_uuid": c.Param("uuid"), "updated": updated, "is_active": active})
	}
}

// SetAllSubscriptionsActive bulk starts or stops every subscription a
// user owns; each transition is applied independently.
func (h *WebhookHandler) SetAllSubscriptionsActive(active bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		updated, err := h.subService.SetActiveAll(c.Param("uuid"), active)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update subscriptions"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_uuid": c.Param("uuid"), "updated": updated, "is_active": active})
	}
}
