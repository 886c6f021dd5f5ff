// Package verify checks bot-verification tokens with Cloudflare Turnstile.
package verify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// DefaultEndpoint is the Turnstile siteverify URL.
const DefaultEndpoint = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

// Result is the outcome of a verification. Error is set when Success is
// false.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Turnstile verifies tokens against the siteverify endpoint.
type Turnstile struct {
	secret     string
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewTurnstile creates a verifier. An empty secret disables verification.
// An empty endpoint uses DefaultEndpoint; a zero timeout uses 10s.
func NewTurnstile(secret, endpoint string, timeout time.Duration, logger *slog.Logger) *Turnstile {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Turnstile{
		secret:     secret,
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Enabled reports whether a secret is configured. Callers skip verification
// when it is not.
func (t *Turnstile) Enabled() bool {
	return t != nil && t.secret != ""
}

type siteverifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
	Hostname   string   `json:"hostname"`
	Action     string   `json:"action"`
}

// Verify checks token. Transport and decoding failures are reported as an
// unsuccessful Result, never as a Go error.
func (t *Turnstile) Verify(ctx context.Context, token string) Result {
	if !t.Enabled() {
		return Result{Error: "Turnstile secret key not configured"}
	}

	form := url.Values{}
	form.Set("secret", t.secret)
	form.Set("response", token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Result{Error: err.Error()}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		t.logger.Warn("turnstile request failed", "error", err)
		return Result{Error: err.Error()}
	}
	defer resp.Body.Close()

	var body siteverifyResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err != nil {
		t.logger.Warn("turnstile response undecodable", "status", resp.StatusCode, "error", err)
		return Result{Error: fmt.Sprintf("invalid verification response (status %d)", resp.StatusCode)}
	}
	if !body.Success {
		return Result{Error: "Validation failed: " + strings.Join(body.ErrorCodes, ", ")}
	}
	return Result{Success: true}
}
