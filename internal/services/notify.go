package services

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/Cyvadra/tv-dispatch/internal/config"
	"github.com/go-resty/resty/v2"
)

// NotifyService posts dispatch report summaries to configured downstream
// endpoints, fire-and-forget per endpoint.
type NotifyService struct {
	client *resty.Client
	config *config.Config
}

// NewNotifyService creates a new notify service
func NewNotifyService() *NotifyService {
	return &NotifyService{
		client: resty.New().SetTimeout(10 * time.Second),
		config: nil, // Will be set later
	}
}

// SetConfig sets the configuration for the notify service
func (s *NotifyService) SetConfig(cfg *config.Config) {
	s.config = cfg
}

// NotifyReport sends a dispatch report summary to all active endpoints
func (s *NotifyService) NotifyReport(report *DispatchReport) error {
	if s.config == nil {
		return fmt.Errorf("configuration not set")
	}

	for _, endpoint := range s.config.Endpoints {
		if !endpoint.IsActive {
			continue
		}

		go func(ep config.EndpointConfig) {
			if err := s.notifyEndpoint(report, ep); err != nil {
				log.Printf("Failed to notify %s (%s): %v", ep.Name, ep.Type, err)
			}
		}(endpoint)
	}

	return nil
}

// notifyEndpoint sends a report summary to a specific endpoint
func (s *NotifyService) notifyEndpoint(report *DispatchReport, endpoint config.EndpointConfig) error {
	switch endpoint.Type {
	case "telegram":
		return s.notifyTelegram(report, endpoint)
	case "webhook":
		return s.notifyWebhook(report, endpoint)
	default:
		return fmt.Errorf("unsupported endpoint type: %s", endpoint.Type)
	}
}

// notifyTelegram sends a report summary to Telegram
func (s *NotifyService) notifyTelegram(report *DispatchReport, endpoint config.EndpointConfig) error {
	message := s.formatSummary(report)

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", endpoint.Token)
	payload := map[string]interface{}{
		"chat_id":    endpoint.ChatID,
		"text":       message,
		"parse_mode": "HTML",
	}

	resp, err := s.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(url)

	if err != nil {
		return fmt.Errorf("telegram API request failed: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d: %s", resp.StatusCode(), resp.String())
	}

	return nil
}

// notifyWebhook posts the full report to a generic webhook endpoint
func (s *NotifyService) notifyWebhook(report *DispatchReport, endpoint config.EndpointConfig) error {
	req := s.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(report)

	if endpoint.Token != "" {
		req = req.SetHeader("Authorization", "Bearer "+endpoint.Token)
	}

	resp, err := req.Post(endpoint.URL)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}

	if resp.StatusCode() >= 300 {
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode(), resp.String())
	}

	return nil
}

// formatSummary renders a human-readable dispatch summary
func (s *NotifyService) formatSummary(report *DispatchReport) string {
	return fmt.Sprintf(
		"Dispatch %s\nBot: %s\nStatus: %s\nSubscriptions: %d (filled %d, rejected %d, skipped %d, errored %d)",
		report.DeliveryID, report.BotUUID, report.Status,
		report.Total, report.Filled, report.Rejected, report.Skipped, report.Errored)
}
