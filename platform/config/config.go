// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// SchedulerConfig provides settings for the asynq task queue.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// WhatsAppConfig provides settings for the WhatsApp gateway.
type WhatsAppConfig interface {
	GetWhatsAppURL() string
	GetWhatsAppKey() string
	GetWhatsAppPoolSize() int
	GetWhatsAppDailyLimit() int
}

// VoiceConfig provides settings for the voice-AI dialer gateway.
type VoiceConfig interface {
	GetVoiceURL() string
	GetVoiceKey() string
}

// MessagingConfig provides settings for the RCS and SMS gateways.
type MessagingConfig interface {
	GetRCSURL() string
	GetRCSKey() string
	GetSMSURL() string
	GetSMSKey() string
}

// ProviderConfig provides throttling settings shared by all channel gateways.
type ProviderConfig interface {
	GetProviderRatePerSecond() float64
}

// EmailConfig provides settings for email sending.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
}

// EngineConfig provides engagement-engine costs and policy limits.
// Costs are integer cents so totals stay exact.
type EngineConfig interface {
	GetCostVoiceCall() int64
	GetCostWhatsAppMessage() int64
	GetCostRCS() int64
	GetCostSMS() int64
	GetCostEmail() int64
	GetLinkRenewalDays() int
	GetProposalExpirationDays() int
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                    string
	HTTPAddr               string
	DatabaseURL            string
	MigrationsDir          string
	RedisURL               string
	RedisTLSInsecure       bool
	AsynqQueueName         string
	AsynqConcurrency       int
	CORSAllowAll           bool
	CORSOrigins            []string
	CORSAllowCreds         bool
	WhatsAppURL            string
	WhatsAppKey            string
	WhatsAppPoolSize       int
	WhatsAppDailyLimit     int
	VoiceURL               string
	VoiceKey               string
	RCSURL                 string
	RCSKey                 string
	SMSURL                 string
	SMSKey                 string
	ProviderRatePerSecond  float64
	EmailEnabled           bool
	SMTPHost               string
	SMTPPort               int
	SMTPUsername           string
	SMTPPassword           string
	EmailFromName          string
	EmailFromAddress       string
	CostVoiceCall          int64
	CostWhatsAppMessage    int64
	CostRCS                int64
	CostSMS                int64
	CostEmail              int64
	LinkRenewalDays        int
	ProposalExpirationDays int
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// WhatsAppConfig implementation
func (c *Config) GetWhatsAppURL() string     { return c.WhatsAppURL }
func (c *Config) GetWhatsAppKey() string     { return c.WhatsAppKey }
func (c *Config) GetWhatsAppPoolSize() int   { return c.WhatsAppPoolSize }
func (c *Config) GetWhatsAppDailyLimit() int { return c.WhatsAppDailyLimit }

// VoiceConfig implementation
func (c *Config) GetVoiceURL() string { return c.VoiceURL }
func (c *Config) GetVoiceKey() string { return c.VoiceKey }

// MessagingConfig implementation
func (c *Config) GetRCSURL() string { return c.RCSURL }
func (c *Config) GetRCSKey() string { return c.RCSKey }
func (c *Config) GetSMSURL() string { return c.SMSURL }
func (c *Config) GetSMSKey() string { return c.SMSKey }

// ProviderConfig implementation
func (c *Config) GetProviderRatePerSecond() float64 { return c.ProviderRatePerSecond }

// EmailConfig implementation
func (c *Config) GetEmailEnabled() bool       { return c.EmailEnabled }
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }

// EngineConfig implementation
func (c *Config) GetCostVoiceCall() int64       { return c.CostVoiceCall }
func (c *Config) GetCostWhatsAppMessage() int64 { return c.CostWhatsAppMessage }
func (c *Config) GetCostRCS() int64             { return c.CostRCS }
func (c *Config) GetCostSMS() int64             { return c.CostSMS }
func (c *Config) GetCostEmail() int64           { return c.CostEmail }
func (c *Config) GetLinkRenewalDays() int       { return c.LinkRenewalDays }
func (c *Config) GetProposalExpirationDays() int {
	return c.ProposalExpirationDays
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	smtpHost := getEnv("SMTP_HOST", "")
	emailEnabled := strings.EqualFold(getEnv("EMAIL_ENABLED", "true"), "true")

	cfg := &Config{
		Env:                    getEnv("APP_ENV", "development"),
		HTTPAddr:               getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:            getEnv("DATABASE_URL", ""),
		MigrationsDir:          getEnv("MIGRATIONS_DIR", "migrations"),
		RedisURL:               getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RedisTLSInsecure:       strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:         getEnv("ASYNQ_QUEUE", "engagement"),
		AsynqConcurrency:       mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		CORSAllowAll:           corsAllowAll,
		CORSOrigins:            corsOrigins,
		CORSAllowCreds:         strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		WhatsAppURL:            getEnv("WHATSAPP_API_URL", ""),
		WhatsAppKey:            getEnv("WHATSAPP_API_KEY", ""),
		WhatsAppPoolSize:       mustInt(getEnv("WHATSAPP_POOL_SIZE", "20")),
		WhatsAppDailyLimit:     mustInt(getEnv("WHATSAPP_DAILY_LIMIT", "25")),
		VoiceURL:               getEnv("VOICE_API_URL", ""),
		VoiceKey:               getEnv("VOICE_API_KEY", ""),
		RCSURL:                 getEnv("RCS_API_URL", ""),
		RCSKey:                 getEnv("RCS_API_KEY", ""),
		SMSURL:                 getEnv("SMS_API_URL", ""),
		SMSKey:                 getEnv("SMS_API_KEY", ""),
		ProviderRatePerSecond:  mustFloat(getEnv("PROVIDER_RATE_PER_SECOND", "5")),
		EmailEnabled:           emailEnabled && smtpHost != "",
		SMTPHost:               smtpHost,
		SMTPPort:               mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:           getEnv("SMTP_USERNAME", ""),
		SMTPPassword:           getEnv("SMTP_PASSWORD", ""),
		EmailFromName:          getEnv("EMAIL_FROM_NAME", "Funnel"),
		EmailFromAddress:       getEnv("EMAIL_FROM_ADDRESS", ""),
		CostVoiceCall:          mustInt64(getEnv("COST_VOICE_CALL", "50")),
		CostWhatsAppMessage:    mustInt64(getEnv("COST_WHATSAPP_MESSAGE", "5")),
		CostRCS:                mustInt64(getEnv("COST_RCS", "15")),
		CostSMS:                mustInt64(getEnv("COST_SMS", "10")),
		CostEmail:              mustInt64(getEnv("COST_EMAIL", "5")),
		LinkRenewalDays:        mustInt(getEnv("LINK_RENEWAL_DAYS", "3")),
		ProposalExpirationDays: mustInt(getEnv("PROPOSAL_EXPIRATION_DAYS", "30")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	if cfg.EmailEnabled && cfg.EmailFromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when email is enabled")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func mustInt64(value string) int64 {
	result, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
