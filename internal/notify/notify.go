// Package notify composes and dispatches WhatsApp confirmation messages.
//
// Dispatch is strictly best-effort and runs only after the registration
// transaction has committed: a gateway outage must never fail or roll
// back a registration. The deterministic template below is both the
// default message generator and the mandatory fallback for any fancier
// generator.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

// ErrDispatchFailed marks a soft notification failure. Callers log it
// and fall back to the local template; it never propagates as a
// registration error.
var ErrDispatchFailed = errors.New("notification dispatch failed")

// Message composes the confirmation text for a donor. Pure and
// deterministic: same inputs, same sentence.
func Message(fullName, locationAndDate string) string {
	return fmt.Sprintf(
		"Hallo %s, selamat anda terdaftar sebagai peserta donor darah PT. Kereta Commuter Indonesia. Sampai jumpa di %s",
		fullName, locationAndDate,
	)
}

// NormalizeNumber converts a local Indonesian phone number to the
// international format the gateway expects: separators are stripped and
// a leading "0" becomes "62".
func NormalizeNumber(number string) string {
	var b strings.Builder
	for _, r := range number {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if strings.HasPrefix(digits, "0") {
		return "62" + digits[1:]
	}
	return digits
}

// Generator produces the confirmation text for a donor. The zero-cost
// template generator is the default; an AI-backed generator may replace
// it as long as callers fall back to Message on any error.
type Generator interface {
	Compose(ctx context.Context, fullName, locationAndDate string) (string, error)
}

// TemplateGenerator is the deterministic Generator. It cannot fail.
type TemplateGenerator struct{}

// Compose implements Generator using the fixed template.
func (TemplateGenerator) Compose(_ context.Context, fullName, locationAndDate string) (string, error) {
	return Message(fullName, locationAndDate), nil
}

// Client sends messages to a Ponte-style WhatsApp gateway.
type Client struct {
	baseURL  string
	apiKey   string
	deviceID string
	http     *http.Client
	log      *slog.Logger
}

// ClientFromEnv builds a Client from WA_GATEWAY_URL, WA_API_KEY and
// WA_DEVICE_ID. When the URL is unset the client is disabled and every
// Send reports ErrDispatchFailed without a network call.
func ClientFromEnv(log *slog.Logger) *Client {
	return &Client{
		baseURL:  os.Getenv("WA_GATEWAY_URL"),
		apiKey:   os.Getenv("WA_API_KEY"),
		deviceID: os.Getenv("WA_DEVICE_ID"),
		http:     &http.Client{Timeout: 10 * time.Second},
		log:      log,
	}
}

// NewClient constructs a Client for a known gateway (used in tests).
func NewClient(baseURL, apiKey, deviceID string, log *slog.Logger) *Client {
	return &Client{
		baseURL:  baseURL,
		apiKey:   apiKey,
		deviceID: deviceID,
		http:     &http.Client{Timeout: 10 * time.Second},
		log:      log,
	}
}

type sendPayload struct {
	DeviceID string `json:"device_id"`
	Number   string `json:"number"`
	Message  string `json:"message"`
}

// Send delivers a composed message to the given local-format number.
// The response status is advisory only; any failure is wrapped in
// ErrDispatchFailed and logged, never escalated.
func (c *Client) Send(ctx context.Context, number, text string) error {
	if c.baseURL == "" {
		return fmt.Errorf("%w: gateway not configured", ErrDispatchFailed)
	}

	body, err := json.Marshal(sendPayload{
		DeviceID: c.deviceID,
		Number:   NormalizeNumber(number),
		Message:  text,
	})
	if err != nil {
		return fmt.Errorf("%w: encode payload: %s", ErrDispatchFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/send-message", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build request: %s", ErrDispatchFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrDispatchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Warn("gateway rejected message", "status", resp.StatusCode)
		return fmt.Errorf("%w: gateway status %d", ErrDispatchFailed, resp.StatusCode)
	}
	return nil
}
