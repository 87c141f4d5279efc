// Package entropy provides run seeds for simulations configured with seed 0.
// Seeds come from random.org when an API key is configured and fall back to
// crypto/rand otherwise.
package entropy

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const randomOrgURL = "https://api.random.org/json-rpc/4/invoke"

// Client fetches seeds from random.org.
type Client struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

// NewClient creates a random.org client. Returns nil if apiKey is empty.
func NewClient(apiKey string) *Client {
	if apiKey == "" {
		return nil
	}
	return &Client{
		apiKey:   apiKey,
		endpoint: randomOrgURL,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

// Enabled returns true if the client has a valid API key.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// Seed returns a positive seed and the name of its source ("random.org" or
// "crypto"). A nil client, or any failure talking to random.org, falls back
// to crypto/rand.
func (c *Client) Seed(ctx context.Context) (int64, string) {
	if c.Enabled() {
		seed, err := c.fetch(ctx)
		if err == nil {
			return seed, "random.org"
		}
		slog.Debug("random.org seed failed", "error", err)
	}
	return CryptoSeed(), "crypto"
}

// fetch asks random.org for two 31-bit integers and joins them.
func (c *Client) fetch(ctx context.Context) (int64, error) {
	req := map[string]any{
		"jsonrpc": "2.0",
		"method":  "generateIntegers",
		"params": map[string]any{
			"apiKey": c.apiKey,
			"n":      2,
			"min":    0,
			"max":    1<<31 - 1,
		},
		"id": 1,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return 0, fmt.Errorf("marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read: %w", err)
	}

	var result struct {
		Result struct {
			Random struct {
				Data []int64 `json:"data"`
			} `json:"random"`
		} `json:"result"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return 0, fmt.Errorf("parse: %w", err)
	}
	if result.Error != nil {
		return 0, fmt.Errorf("api error: %s", result.Error.Message)
	}

	data := result.Result.Random.Data
	if len(data) < 2 {
		return 0, fmt.Errorf("expected 2 integers, got %d", len(data))
	}
	seed := data[0]<<31 | data[1]
	if seed == 0 {
		seed = 1
	}
	return seed, nil
}

// CryptoSeed returns a positive seed from crypto/rand.
func CryptoSeed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// This should never happen but keep the run going.
		return time.Now().UnixNano() & (1<<62 - 1)
	}
	seed := int64(binary.LittleEndian.Uint64(buf[:]) >> 2)
	if seed == 0 {
		seed = 1
	}
	return seed
}
