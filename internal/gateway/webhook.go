package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/community-service/internal/config"
)

// WebhookGateway posts outbound messages to the configured bridge
// endpoint. With no endpoint configured it degrades to a logging stub,
// which keeps local development free of external services.
type WebhookGateway struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// NewWebhookGateway constructs the gateway from configuration.
func NewWebhookGateway(cfg config.GatewayConfig, logger *zap.Logger) *WebhookGateway {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookGateway{
		url:    cfg.WebhookURL,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

type outboundMessage struct {
	UserID  int64      `json:"user_id"`
	Text    string     `json:"text"`
	Choices [][]Choice `json:"choices,omitempty"`
}

// Prompt sends a message with selectable choices.
func (g *WebhookGateway) Prompt(ctx context.Context, userID int64, text string, choices [][]Choice) error {
	return g.send(ctx, outboundMessage{UserID: userID, Text: text, Choices: choices})
}

// Notify sends a plain message.
func (g *WebhookGateway) Notify(ctx context.Context, userID int64, text string) error {
	return g.send(ctx, outboundMessage{UserID: userID, Text: text})
}

func (g *WebhookGateway) send(ctx context.Context, msg outboundMessage) error {
	if g.url == "" {
		g.logger.Debug("no gateway webhook configured, dropping outbound message",
			zap.Int64("user_id", msg.UserID))
		return nil
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal outbound message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build outbound request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver outbound message: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("gateway rejected message: status %d", resp.StatusCode)
	}
	return nil
}
