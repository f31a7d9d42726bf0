// Package relayer implements the Encryptor and Decryptor ports against the
// encryption service's HTTP API. The service holds the FHE key material;
// this client fetches it once, then proxies encrypt and verified-decrypt
// requests.
package relayer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gregjones/httpcache"

	"github.com/noisemap/noisemap/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.Encryptor = (*Client)(nil)
	_ driven.Decryptor = (*Client)(nil)
)

// Client talks to the encryption service.
type Client struct {
	httpClient *http.Client
	baseURL    string

	mu       sync.Mutex
	keyID    string
	keysOnce bool
}

// NewClient creates an encryption service client. Key-material fetches go
// through an in-memory caching transport so a re-initialization after a
// transient failure revalidates instead of re-downloading.
func NewClient(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout:   60 * time.Second,
			Transport: httpcache.NewMemoryCacheTransport(),
		},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client.
// Intended for testing against an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

type keysPayload struct {
	KeyID string `json:"key_id"`
}

type encryptRequest struct {
	Contract string `json:"contract"`
	Identity string `json:"identity"`
	Value    int64  `json:"value"`
}

type encryptPayload struct {
	Ciphertext string `json:"ciphertext"`
	Proof      string `json:"proof"`
}

type decryptRequest struct {
	Handles  []string `json:"handles"`
	Contract string   `json:"contract"`
}

type decryptPayload struct {
	ClearValues    map[string]int64 `json:"clear_values"`
	ABIClearValues string           `json:"abi_clear_values"`
	Proof          string           `json:"proof"`
}

// Init fetches the service's public key material. It completes once; later
// calls return immediately. A failed attempt leaves the client
// uninitialized so the session gate can retry.
func (c *Client) Init(ctx context.Context) error {
	c.mu.Lock()
	if c.keysOnce {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	var payload keysPayload
	if err := c.get(ctx, "/v1/keys", &payload); err != nil {
		return fmt.Errorf("fetching key material: %w", err)
	}
	if payload.KeyID == "" {
		return fmt.Errorf("key material response missing key id")
	}

	c.mu.Lock()
	c.keyID = payload.KeyID
	c.keysOnce = true
	c.mu.Unlock()
	return nil
}

// Encrypt encrypts value for the contract context, bound to the submitter
// identity, and returns the ciphertext with its input proof.
func (c *Client) Encrypt(ctx context.Context, targetContext, identity string, value int64) (driven.EncryptedValue, error) {
	if !c.initialized() {
		return driven.EncryptedValue{}, fmt.Errorf("encryption service not initialized")
	}

	var payload encryptPayload
	err := c.post(ctx, "/v1/encrypt", encryptRequest{
		Contract: targetContext,
		Identity: identity,
		Value:    value,
	}, &payload)
	if err != nil {
		return driven.EncryptedValue{}, fmt.Errorf("encrypting value: %w", err)
	}

	return driven.EncryptedValue{Ciphertext: payload.Ciphertext, Proof: payload.Proof}, nil
}

// VerifyDecryption decrypts the handles for the contract context, hands the
// ABI-encoded clear values and proof to the submit callback, awaits the
// resulting ledger transaction, then returns the per-handle plaintexts. The
// nested confirmation is part of this single logical step: if the write
// fails, no clear values are returned.
func (c *Client) VerifyDecryption(ctx context.Context, handles []string, targetContext string, submit driven.SubmitProof) (map[string]int64, error) {
	if !c.initialized() {
		return nil, fmt.Errorf("encryption service not initialized")
	}

	var payload decryptPayload
	err := c.post(ctx, "/v1/decrypt", decryptRequest{
		Handles:  handles,
		Contract: targetContext,
	}, &payload)
	if err != nil {
		return nil, fmt.Errorf("requesting decryption: %w", err)
	}

	tx, err := submit(ctx, payload.ABIClearValues, payload.Proof)
	if err != nil {
		return nil, fmt.Errorf("submitting decryption proof: %w", err)
	}
	if err := tx.Wait(ctx); err != nil {
		return nil, fmt.Errorf("confirming decryption proof: %w", err)
	}

	return payload.ClearValues, nil
}

func (c *Client) initialized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.keysOnce
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
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		message := strings.TrimSpace(string(data))
		if message == "" {
			message = resp.Status
		}
		return fmt.Errorf("encryption service responded %d: %s", resp.StatusCode, message)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
