package payment

import (
	"errors"
	"strings"
	"time"

	"github.com/intlshop/backend/internal/infrastructure/config"
)

const (
	paypalSandboxBaseURL = "https://api-m.sandbox.paypal.com"
	paypalLiveBaseURL    = "https://api-m.paypal.com"

	defaultPayPalClockSkew = 5 * time.Minute
	defaultPayPalReplayTTL = 96 * time.Hour
	defaultPayPalTimeout   = 30 * time.Second
	defaultPayPalRPS       = 10
)

// PayPalConfig contains configuration for the PayPal REST API
type PayPalConfig struct {
	// BaseURL is the REST endpoint, sandbox unless configured otherwise
	BaseURL      string
	ClientID     string
	ClientSecret string
	// WebhookID identifies the registered webhook for signature verification
	WebhookID string
	// ClockSkew bounds the accepted transmission time drift of webhooks
	ClockSkew time.Duration
	// ReplayTTL is how long processed webhook event ids are remembered
	ReplayTTL time.Duration
	// RequestsPerSecond throttles outbound calls
	RequestsPerSecond float64
	Timeout           time.Duration
}

// Errors for configuration validation
var (
	ErrPayPalMissingClientID     = errors.New("paypal: missing client id")
	ErrPayPalMissingClientSecret = errors.New("paypal: missing client secret")
	ErrPayPalMissingWebhookID    = errors.New("paypal: missing webhook id")
)

// NewPayPalConfig maps application configuration onto the adapter config
func NewPayPalConfig(cfg config.PayPalConfig, replayTTL time.Duration) *PayPalConfig {
	return &PayPalConfig{
		BaseURL:           cfg.BaseURL,
		ClientID:          cfg.ClientID,
		ClientSecret:      cfg.ClientSecret,
		WebhookID:         cfg.WebhookID,
		ClockSkew:         cfg.ClockSkew,
		ReplayTTL:         replayTTL,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Timeout:           cfg.Timeout,
	}
}

// Validate checks required fields and fills defaults
func (c *PayPalConfig) Validate() error {
	if c.ClientID == "" {
		return ErrPayPalMissingClientID
	}
	if c.ClientSecret == "" {
		return ErrPayPalMissingClientSecret
	}
	if c.WebhookID == "" {
		return ErrPayPalMissingWebhookID
	}
	if c.BaseURL == "" {
		c.BaseURL = paypalSandboxBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.ClockSkew <= 0 {
		c.ClockSkew = defaultPayPalClockSkew
	}
	if c.ReplayTTL <= 0 {
		c.ReplayTTL = defaultPayPalReplayTTL
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = defaultPayPalRPS
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultPayPalTimeout
	}
	return nil
}

// IsSandbox reports whether the adapter talks to the sandbox
func (c *PayPalConfig) IsSandbox() bool {
	return c.BaseURL != paypalLiveBaseURL
}
