package verifier

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/p2pmart/dealroom/internal/retry"
)

const (
	scanTimeout        = 15 * time.Second
	scanRetryAttempts  = 3
	scanRetryBaseDelay = 500 * time.Millisecond
)

// ScanClient looks transactions up through a bscscan-style JSON API
// (module=proxy, action=eth_getTransactionByHash).
type ScanClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewScanClient creates a scan API client
func NewScanClient(baseURL, apiKey string) *ScanClient {
	return &ScanClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: scanTimeout},
	}
}

// WithHTTPClient overrides the underlying HTTP client (used in tests)
func (c *ScanClient) WithHTTPClient(h *http.Client) *ScanClient {
	c.http = h
	return c
}

// proxyResponse is the eth_getTransactionByHash envelope
type proxyResponse struct {
	Result *struct {
		Hash  string `json:"hash"`
		To    string `json:"to"`
		Value string `json:"value"` // hex quantity
	} `json:"result"`
	Message string `json:"message"`
}

// Transaction fetches one transaction by hash
func (c *ScanClient) Transaction(ctx context.Context, hash string) (*Tx, error) {
	params := url.Values{}
	params.Set("module", "proxy")
	params.Set("action", "eth_getTransactionByHash")
	params.Set("txhash", hash)
	if c.apiKey != "" {
		params.Set("apikey", c.apiKey)
	}
	reqURL := c.baseURL + "?" + params.Encode()

	var envelope proxyResponse
	err := retry.Do(ctx, scanRetryAttempts, scanRetryBaseDelay, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return retry.Permanent(err)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("scan lookup: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("scan lookup: status %d", resp.StatusCode)
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return err
			}
			return retry.Permanent(err)
		}

		envelope = proxyResponse{}
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			return fmt.Errorf("scan lookup: decoding response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if envelope.Result == nil {
		return nil, ErrTxNotFound
	}

	value := new(big.Int)
	if envelope.Result.Value != "" {
		v, err := hexutil.DecodeBig(envelope.Result.Value)
		if err != nil {
			return nil, fmt.Errorf("scan lookup: bad value %q: %w", envelope.Result.Value, err)
		}
		value = v
	}

	return &Tx{
		Hash:  envelope.Result.Hash,
		To:    envelope.Result.To,
		Value: value,
	}, nil
}

// Compile-time assertion that ScanClient implements LedgerLookup.
var _ LedgerLookup = (*ScanClient)(nil)
