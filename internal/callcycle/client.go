package callcycle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"leadfunnel_backend/internal/leads/domain"
	"leadfunnel_backend/platform/apperr"
	"leadfunnel_backend/platform/config"
	"leadfunnel_backend/platform/logger"
	"leadfunnel_backend/platform/phone"

	"golang.org/x/time/rate"
)

// Dialer places one AI voice call and reports how it ended.
type Dialer interface {
	PlaceCall(ctx context.Context, phoneNumber, script string) (domain.CallOutcome, error)
}

// Client talks to the voice-AI dialer gateway. The gateway runs the call to
// completion and answers with the outcome.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	log     *logger.Logger
}

type dialRequest struct {
	Phone  string `json:"phone"`
	Script string `json:"script"`
}

type dialResponse struct {
	Outcome string `json:"outcome"`
}

// NewClient builds the dialer client, nil when no gateway is configured.
func NewClient(cfg config.VoiceConfig, rates config.ProviderConfig, log *logger.Logger) *Client {
	if cfg.GetVoiceURL() == "" {
		return nil
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.GetVoiceURL(), "/"),
		apiKey:  cfg.GetVoiceKey(),
		// Calls run for minutes; the generous timeout covers the whole script.
		http:    &http.Client{Timeout: 5 * time.Minute},
		limiter: rate.NewLimiter(rate.Limit(rates.GetProviderRatePerSecond()), 1),
		log:     log,
	}
}

// PlaceCall dials the number and blocks until the gateway reports an outcome.
func (c *Client) PlaceCall(ctx context.Context, phoneNumber, script string) (domain.CallOutcome, error) {
	if c == nil {
		return "", fmt.Errorf("%w: no dialer configured", apperr.ErrTransport)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	normalized := phone.NormalizeE164(phoneNumber)

	body, err := json.Marshal(dialRequest{Phone: normalized, Script: script})
	if err != nil {
		return "", fmt.Errorf("marshal dial payload: %w", err)
	}

	url := fmt.Sprintf("%s/calls", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperr.ErrTransport, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: gateway returned %d: %s", apperr.ErrTransport, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var out dialResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode outcome: %v", apperr.ErrTransport, err)
	}

	outcome := domain.CallOutcome(out.Outcome)
	if !outcome.Valid() {
		return "", fmt.Errorf("%w: unknown outcome %q", apperr.ErrTransport, out.Outcome)
	}

	c.log.Info("voice call completed", "phone", normalized, "outcome", outcome)
	return outcome, nil
}
