// Package ledger implements the LedgerReader and LedgerWriter ports against
// the ledger gateway's HTTP API. The gateway fronts the smart contract:
// reads are plain GETs, writes submit a transaction whose confirmation is
// polled separately.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/noisemap/noisemap/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.LedgerReader = (*Client)(nil)
	_ driven.LedgerWriter = (*Client)(nil)
)

// Client talks to the ledger gateway.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	confirmWait time.Duration
}

// NewClient creates a ledger gateway client. confirmWait bounds how long a
// Transaction's Wait polls for confirmation before giving up.
func NewClient(baseURL string, confirmWait time.Duration) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		baseURL:     strings.TrimRight(baseURL, "/"),
		confirmWait: confirmWait,
	}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client.
// Intended for testing against an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string, confirmWait time.Duration) (*Client, error) {
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	return &Client{
		httpClient:  httpClient,
		baseURL:     strings.TrimRight(baseURL, "/"),
		confirmWait: confirmWait,
	}, nil
}

type idListPayload struct {
	IDs []string `json:"ids"`
}

type recordPayload struct {
	ID            string `json:"id"`
	Label         string `json:"label"`
	AreaCode      int    `json:"area_code"`
	PublicTag     int    `json:"public_tag"`
	SubmittedAt   int64  `json:"submitted_at"`
	Submitter     string `json:"submitter"`
	IsVerified    bool   `json:"is_verified"`
	VerifiedValue int64  `json:"verified_value"`
}

type handlePayload struct {
	Handle string `json:"handle"`
}

type healthPayload struct {
	Available bool `json:"available"`
}

type txPayload struct {
	TxHash string `json:"tx_hash"`
}

type createRecordRequest struct {
	ID         string `json:"id"`
	Label      string `json:"label"`
	Ciphertext string `json:"ciphertext"`
	Proof      string `json:"proof"`
	AreaCode   int    `json:"area_code"`
	PublicTag  int    `json:"public_tag"`
	ContentTag string `json:"content_tag"`
}

type verifyDecryptionRequest struct {
	ClearValues string `json:"clear_values"`
	Proof       string `json:"proof"`
}

// ListRecordIDs returns all record ids known to the ledger.
func (c *Client) ListRecordIDs(ctx context.Context) ([]string, error) {
	var payload idListPayload
	if err := c.get(ctx, "/v1/records", &payload); err != nil {
		return nil, fmt.Errorf("listing record ids: %w", err)
	}
	if payload.IDs == nil {
		payload.IDs = []string{}
	}
	return payload.IDs, nil
}

// GetRecord fetches the public fields of a single record.
func (c *Client) GetRecord(ctx context.Context, id string) (driven.RecordFields, error) {
	var payload recordPayload
	if err := c.get(ctx, "/v1/records/"+url.PathEscape(id), &payload); err != nil {
		return driven.RecordFields{}, fmt.Errorf("fetching record %s: %w", id, err)
	}
	return driven.RecordFields{
		ID:            payload.ID,
		Label:         payload.Label,
		AreaCode:      payload.AreaCode,
		PublicTag:     payload.PublicTag,
		SubmittedAt:   payload.SubmittedAt,
		Submitter:     payload.Submitter,
		IsVerified:    payload.IsVerified,
		VerifiedValue: payload.VerifiedValue,
	}, nil
}

// GetCiphertextHandle resolves the opaque decryption handle for a record.
func (c *Client) GetCiphertextHandle(ctx context.Context, id string) (string, error) {
	var payload handlePayload
	if err := c.get(ctx, "/v1/records/"+url.PathEscape(id)+"/handle", &payload); err != nil {
		return "", fmt.Errorf("fetching ciphertext handle for %s: %w", id, err)
	}
	return payload.Handle, nil
}

// IsAvailable probes the gateway's contract availability check.
func (c *Client) IsAvailable(ctx context.Context) (bool, error) {
	var payload healthPayload
	if err := c.get(ctx, "/v1/health", &payload); err != nil {
		return false, fmt.Errorf("checking ledger availability: %w", err)
	}
	return payload.Available, nil
}

// CreateRecord submits a createRecord write and returns its transaction.
func (c *Client) CreateRecord(ctx context.Context, rec driven.NewRecord) (driven.Transaction, error) {
	body := createRecordRequest{
		ID:         rec.ID,
		Label:      rec.Label,
		Ciphertext: rec.Ciphertext,
		Proof:      rec.Proof,
		AreaCode:   rec.AreaCode,
		PublicTag:  rec.PublicTag,
		ContentTag: rec.ContentTag,
	}

	var payload txPayload
	if err := c.post(ctx, "/v1/records", body, &payload); err != nil {
		return nil, fmt.Errorf("creating record %s: %w", rec.ID, err)
	}

	return newTransaction(c, payload.TxHash), nil
}

// VerifyDecryption submits the verification write recording the proven
// plaintext for a record.
func (c *Client) VerifyDecryption(ctx context.Context, id, clearValues, proof string) (driven.Transaction, error) {
	body := verifyDecryptionRequest{ClearValues: clearValues, Proof: proof}

	var payload txPayload
	if err := c.post(ctx, "/v1/records/"+url.PathEscape(id)+"/verify", body, &payload); err != nil {
		return nil, fmt.Errorf("verifying decryption for %s: %w", id, err)
	}

	return newTransaction(c, payload.TxHash), nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return gatewayError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

type errorPayload struct {
	Error string `json:"error"`
}

// gatewayError maps a non-2xx gateway response to a sentinel error where the
// status or message identifies a known condition.
func gatewayError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var payload errorPayload
	_ = json.Unmarshal(data, &payload)
	message := payload.Error
	if message == "" {
		message = strings.TrimSpace(string(data))
	}
	if message == "" {
		message = resp.Status
	}

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", message, driven.ErrRecordNotFound)
	}
	if err := mapLedgerMessage(message); err != nil {
		return err
	}

	return fmt.Errorf("gateway responded %d: %s", resp.StatusCode, message)
}

// mapLedgerMessage matches known contract revert phrases to sentinel errors.
// Returns nil when the message identifies no known condition.
func mapLedgerMessage(message string) error {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "already verified"):
		return fmt.Errorf("%s: %w", message, driven.ErrAlreadyVerified)
	case strings.Contains(lower, "user rejected"):
		return fmt.Errorf("%s: %w", message, driven.ErrRejectedBySigner)
	}
	return nil
}
