// Package nightscout submits normalized treatment records to a
// Nightscout-compatible time-series store.
package nightscout

import (
	"bytes"
	"context"
	"crypto/sha1" //nolint:gosec // Nightscout's legacy API-SECRET scheme requires SHA1
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pumpsync/internal/errs"
	"pumpsync/internal/model"
)

// Client talks to one Nightscout instance.
type Client struct {
	baseURL    string
	apiSecret  string
	httpClient *http.Client
}

// NewClient creates a Nightscout client.
func NewClient(baseURL, apiSecret string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiSecret: apiSecret,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// hashSecret generates the SHA1 hash the legacy Nightscout API expects.
func hashSecret(secret string) string {
	hasher := sha1.New() //nolint:gosec // required by the Nightscout API
	hasher.Write([]byte(secret))
	return hex.EncodeToString(hasher.Sum(nil))
}

// treatment is the Nightscout wire representation of a treatment record.
type treatment struct {
	ID        string  `json:"_id"`
	EventType string  `json:"eventType"`
	CreatedAt string  `json:"created_at"`
	Notes     string  `json:"notes,omitempty"`
	Profile   string  `json:"profile,omitempty"`
	Duration  float64 `json:"duration,omitempty"`
	EnteredBy string  `json:"enteredBy,omitempty"`
}

func toWire(r model.TreatmentRecord) treatment {
	return treatment{
		ID:        r.ID,
		EventType: r.Type.String(),
		CreatedAt: r.Time.UTC().Format(time.RFC3339),
		Notes:     r.Notes,
		Profile:   r.Profile,
		Duration:  r.Duration,
		EnteredBy: r.EnteredBy,
	}
}

// SubmitTreatments uploads the batch. Record IDs are deterministic, so
// Nightscout treats re-submission as an idempotent upsert. Any non-2xx
// response is a cycle-level retryable submission error.
func (c *Client) SubmitTreatments(ctx context.Context, records []model.TreatmentRecord) error {
	if len(records) == 0 {
		return nil
	}
	wire := make([]treatment, 0, len(records))
	for _, r := range records {
		wire = append(wire, toWire(r))
	}
	body, err := json.Marshal(wire)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/treatments", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiSecret != "" {
		req.Header.Set("API-SECRET", hashSecret(c.apiSecret))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrSubmission, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", errs.ErrSubmission, resp.StatusCode, string(msg))
	}
	return nil
}

// Ping verifies the Nightscout instance is reachable and the secret is
// accepted. Used once at startup.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/status", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiSecret != "" {
		req.Header.Set("API-SECRET", hashSecret(c.apiSecret))
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("nightscout unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("nightscout status endpoint returned %d", resp.StatusCode)
	}
	return nil
}
