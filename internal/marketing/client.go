// Package marketing runs the mass-outreach engines (RCS, SMS, email) and
// turns their delivery webhooks back into lead engagement.
package marketing

import (
	"bytes"
	"context"
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

// MessageSender delivers one text message through a channel gateway.
type MessageSender interface {
	Send(ctx context.Context, phoneNumber, message string) error
}

// gatewayClient is the shared HTTP client for the RCS and SMS gateways; both
// speak the same send contract.
type gatewayClient struct {
	channel string
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	log     *logger.Logger
}

type sendRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// NewRCSClient builds the RCS gateway client, nil when unconfigured.
func NewRCSClient(cfg config.MessagingConfig, rates config.ProviderConfig, log *logger.Logger) MessageSender {
	return newGatewayClient("rcs", cfg.GetRCSURL(), cfg.GetRCSKey(), rates, log)
}

// NewSMSClient builds the SMS gateway client, nil when unconfigured.
func NewSMSClient(cfg config.MessagingConfig, rates config.ProviderConfig, log *logger.Logger) MessageSender {
	return newGatewayClient("sms", cfg.GetSMSURL(), cfg.GetSMSKey(), rates, log)
}

func newGatewayClient(channel, baseURL, apiKey string, rates config.ProviderConfig, log *logger.Logger) MessageSender {
	if baseURL == "" {
		return nil
	}

	return &gatewayClient{
		channel: channel,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(rates.GetProviderRatePerSecond()), 1),
		log:     log,
	}
}

// Send delivers one message.
func (c *gatewayClient) Send(ctx context.Context, phoneNumber, message string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	normalized := phone.NormalizeE164(phoneNumber)

	body, err := json.Marshal(sendRequest{Phone: normalized, Message: message})
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", c.channel, err)
	}

	url := fmt.Sprintf("%s/messages", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s request: %v", apperr.ErrTransport, c.channel, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: %s gateway returned %d: %s", apperr.ErrTransport, c.channel, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	c.log.Info("channel message sent", "channel", c.channel, "phone", normalized)
	return nil
}
