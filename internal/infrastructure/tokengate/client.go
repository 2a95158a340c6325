package tokengate

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// Config holds token gateway API configuration
type Config struct {
	Token   string // fungible asset reference the merchant account is bound to
	APIKey  string // API key issued by the gateway
	BaseURL string // base URL (sandbox or production)
}

// Client executes token transfers against the custody gateway. It is the
// ledger's only outbound dependency; the ledger treats any non-success
// result as a hard failure of the whole purchase.
type Client struct {
	config     Config
	httpClient *http.Client
}

// TransferRequest represents the request body for an asset transfer
type TransferRequest struct {
	Token       string `json:"token"`
	From        string `json:"from"`
	To          string `json:"to"`
	Amount      uint64 `json:"amount"`
	ReferenceID string `json:"referenceId"`
}

// TransferResponse represents the gateway API response
type TransferResponse struct {
	Status  int    `json:"Status"`
	Message string `json:"Message"`
	Data    struct {
		TransactionID string `json:"TransactionId"`
		Token         string `json:"Token"`
		Amount        uint64 `json:"Amount"`
		SettledAt     string `json:"SettledAt"`
	} `json:"Data"`
}

// NewClient creates a new token gateway client
func NewClient(cfg Config) *Client {
	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// generateSignature creates the HMAC-SHA256 signature for the gateway API
// Step 1: bodyHash = lowercase(sha256(jsonBody))
// Step 2: stringToSign = METHOD + ":" + token + ":" + bodyHash + ":" + apiKey
// Step 3: signature = lowercase(hmacSha256(apiKey, stringToSign))
func (c *Client) generateSignature(jsonBody []byte, method string) string {
	bodyHashBytes := sha256.Sum256(jsonBody)
	bodyHash := strings.ToLower(hex.EncodeToString(bodyHashBytes[:]))

	stringToSign := fmt.Sprintf("%s:%s:%s:%s", method, c.config.Token, bodyHash, c.config.APIKey)

	h := hmac.New(sha256.New, []byte(c.config.APIKey))
	h.Write([]byte(stringToSign))
	return strings.ToLower(hex.EncodeToString(h.Sum(nil)))
}

// Transfer moves amount token base units from the payer to the recipient.
// A nil return means the transfer has settled on the gateway side.
func (c *Client) Transfer(ctx context.Context, referenceID, from, to string, amount uint64) error {
	endpoint := "/api/v1/transfers"
	url := c.config.BaseURL + endpoint

	reqBody := TransferRequest{
		Token:       c.config.Token,
		From:        from,
		To:          to,
		Amount:      amount,
		ReferenceID: referenceID,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	signature := c.generateSignature(jsonBody, "POST")

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("token", c.config.Token)
	req.Header.Set("signature", signature)
	req.Header.Set("timestamp", fmt.Sprintf("%d", time.Now().Unix()))

	log.Printf("[TokenGate] Calling %s: from=%s, to=%s, amount=%d", url, from, to, amount)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	log.Printf("[TokenGate] Response status: %d, body: %s", resp.StatusCode, string(respBody))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway API error: status %d, body: %s", resp.StatusCode, string(respBody))
	}

	var apiResp TransferResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if apiResp.Status != 200 {
		return fmt.Errorf("gateway API error: %s", apiResp.Message)
	}

	return nil
}
