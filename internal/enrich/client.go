package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"riskradar/pkg/models"
)

// Payload caps keep downstream evaluation prompts bounded.
const (
	maxSourceChars   = 50_000
	maxBytecodeChars = 20_000
)

// Config configures the Etherscan-compatible metadata client.
type Config struct {
	APIURL  string
	APIKey  string
	Timeout time.Duration
}

// Client fetches contract metadata from an Etherscan-compatible API:
// verified source code when available, otherwise deployed bytecode.
type Client struct {
	apiURL string
	apiKey string
	client *http.Client
}

// NewClient creates a metadata client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIURL == "" {
		return nil, fmt.Errorf("enrichment api url is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		apiURL: cfg.APIURL,
		apiKey: cfg.APIKey,
		client: &http.Client{Timeout: timeout},
	}, nil
}

type sourceResponse struct {
	Status string `json:"status"`
	Result []struct {
		SourceCode      string `json:"SourceCode"`
		ContractName    string `json:"ContractName"`
		CompilerVersion string `json:"CompilerVersion"`
	} `json:"result"`
}

type codeResponse struct {
	Result string `json:"result"`
}

// Lookup returns the best available enrichment for a contract address. The
// caller treats an error as a degradation and continues with Unavailable.
func (c *Client) Lookup(ctx context.Context, address string) (models.Enrichment, error) {
	src, err := c.fetchSource(ctx, address)
	if err != nil {
		return models.Unavailable(), err
	}
	if src.Kind == models.EnrichmentVerified {
		return src, nil
	}

	code, err := c.fetchBytecode(ctx, address)
	if err != nil {
		return models.Unavailable(), err
	}
	if code == "" {
		return models.Unavailable(), nil
	}
	return models.Enrichment{Kind: models.EnrichmentBytecode, Bytecode: code}, nil
}

func (c *Client) fetchSource(ctx context.Context, address string) (models.Enrichment, error) {
	q := url.Values{}
	q.Set("module", "contract")
	q.Set("action", "getsourcecode")
	q.Set("address", address)

	var resp sourceResponse
	if err := c.get(ctx, q, &resp); err != nil {
		return models.Unavailable(), fmt.Errorf("fetch contract source: %w", err)
	}

	if resp.Status != "1" || len(resp.Result) == 0 {
		return models.Unavailable(), nil
	}
	item := resp.Result[0]
	if item.SourceCode == "" {
		return models.Unavailable(), nil
	}

	source := item.SourceCode
	if len(source) > maxSourceChars {
		source = source[:maxSourceChars]
	}
	return models.Enrichment{
		Kind:         models.EnrichmentVerified,
		ContractName: item.ContractName,
		Compiler:     item.CompilerVersion,
		Source:       source,
	}, nil
}

func (c *Client) fetchBytecode(ctx context.Context, address string) (string, error) {
	q := url.Values{}
	q.Set("module", "proxy")
	q.Set("action", "eth_getCode")
	q.Set("address", address)
	q.Set("tag", "latest")

	var resp codeResponse
	if err := c.get(ctx, q, &resp); err != nil {
		return "", fmt.Errorf("fetch contract bytecode: %w", err)
	}

	code := resp.Result
	switch code {
	case "", "0x", "0x0":
		return "", nil
	}
	if len(code) > maxBytecodeChars {
		code = code[:maxBytecodeChars]
	}
	return code, nil
}

func (c *Client) get(ctx context.Context, q url.Values, out interface{}) error {
	if c.apiKey != "" {
		q.Set("apikey", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("http request failed with status %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
