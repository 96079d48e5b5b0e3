// Package email delivers transactional mail for the marketing engine. Bodies
// come from the message template store already rendered; this package only
// wraps them in the shared layout and ships them over SMTP.
package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"leadfunnel_backend/platform/config"
	"leadfunnel_backend/platform/logger"
)

// Sender delivers one email.
type Sender interface {
	Send(ctx context.Context, toEmail, subject, body string) error
}

// NewSender picks the configured implementation. Without SMTP settings the
// sends are logged and dropped, which keeps development environments working.
func NewSender(cfg config.EmailConfig, log *logger.Logger) Sender {
	if !cfg.GetEmailEnabled() {
		log.Warn("email sending disabled, using noop sender")
		return &NoopSender{log: log}
	}
	return NewSMTPSender(cfg)
}

// NoopSender logs instead of sending.
type NoopSender struct {
	log *logger.Logger
}

// Send logs the would-be delivery.
func (s *NoopSender) Send(_ context.Context, toEmail, subject, _ string) error {
	s.log.Info("email skipped (noop sender)", "to", toEmail, "subject", subject)
	return nil
}

var layoutTmpl = template.Must(template.New("layout").Parse(`<!DOCTYPE html>
<html>
<body style="margin:0;padding:0;background:#f4f4f7;font-family:Arial,Helvetica,sans-serif">
  <table role="presentation" width="100%" cellpadding="0" cellspacing="0">
    <tr><td align="center" style="padding:24px">
      <table role="presentation" width="600" cellpadding="0" cellspacing="0" style="background:#ffffff;border-radius:8px">
        <tr><td style="padding:32px;color:#333333;font-size:15px;line-height:1.6">{{.Body}}</td></tr>
      </table>
    </td></tr>
  </table>
</body>
</html>`))

type layoutData struct {
	Body template.HTML
}

func renderLayout(body string) (string, error) {
	var buf bytes.Buffer
	// Template bodies are authored by operators, not end users; they may
	// carry markup.
	if err := layoutTmpl.Execute(&buf, layoutData{Body: template.HTML(body)}); err != nil {
		return "", fmt.Errorf("render email layout: %w", err)
	}
	return buf.String(), nil
}
