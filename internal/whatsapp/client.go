package whatsapp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"leadfunnel_backend/platform/apperr"
	"leadfunnel_backend/platform/config"
	"leadfunnel_backend/platform/logger"
	"leadfunnel_backend/platform/phone"

	"golang.org/x/time/rate"
)

// Sender delivers one WhatsApp message from a pool connection.
type Sender interface {
	SendMessage(ctx context.Context, connectionID, phoneNumber, message string) error
}

// Client talks to the gateway that fronts the pool devices.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	log     *logger.Logger
}

type gatewayRequest struct {
	ConnectionID string `json:"connection_id"`
	Phone        string `json:"phone"`
	Message      string `json:"message"`
}

// NewClient builds the gateway client. Returns nil when no gateway URL is
// configured; a nil client drops sends silently, which keeps local
// development working without a device farm.
func NewClient(cfg config.WhatsAppConfig, rates config.ProviderConfig, log *logger.Logger) *Client {
	if cfg.GetWhatsAppURL() == "" {
		return nil
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.GetWhatsAppURL(), "/"),
		apiKey:  cfg.GetWhatsAppKey(),
		http:    &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(rates.GetProviderRatePerSecond()), 1),
		log:     log,
	}
}

// SendMessage delivers one message through the given connection.
func (c *Client) SendMessage(ctx context.Context, connectionID, phoneNumber, message string) error {
	if c == nil {
		return nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	normalized := strings.TrimPrefix(phone.NormalizeE164(phoneNumber), "+")

	payload := gatewayRequest{
		ConnectionID: connectionID,
		Phone:        normalized,
		Message:      message,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal whatsapp payload: %w", err)
	}

	url := fmt.Sprintf("%s/send/message", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", formatAuthHeader(c.apiKey))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: whatsapp request: %v", apperr.ErrTransport, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: whatsapp gateway returned %d: %s", apperr.ErrTransport, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	c.log.Info("whatsapp sent", "connection_id", connectionID, "phone", normalized)
	return nil
}

func formatAuthHeader(apiKey string) string {
	if strings.HasPrefix(strings.ToLower(apiKey), "basic ") {
		return apiKey
	}

	encoded := base64.StdEncoding.EncodeToString([]byte(apiKey))
	return "Basic " + encoded
}
