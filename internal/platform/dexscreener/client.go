// Package dexscreener is the REST client for the DexScreener pair API,
// used to surface live market context for the tokens the router settles.
package dexscreener

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Ortegaa03/vpnchain-router/internal/domain"
)

// Client is the REST client for the DexScreener API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a DexScreener client.
//
// baseURL is the API root, e.g. "https://api.dexscreener.com".
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Token is one side of a trading pair.
type Token struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

// Pair is the market snapshot of one DEX pool.
type Pair struct {
	ChainID     string  `json:"chainId"`
	DexID       string  `json:"dexId"`
	URL         string  `json:"url"`
	PairAddress string  `json:"pairAddress"`
	BaseToken   Token   `json:"baseToken"`
	QuoteToken  Token   `json:"quoteToken"`
	PriceNative string  `json:"priceNative"`
	PriceUSD    string  `json:"priceUsd"`
	Liquidity   struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
	Volume struct {
		H24 float64 `json:"h24"`
	} `json:"volume"`
	FDV float64 `json:"fdv"`
}

type pairsResponse struct {
	Pairs []Pair `json:"pairs"`
}

// PairsByToken returns every indexed pair involving the given token.
func (c *Client) PairsByToken(ctx context.Context, tokenAddress string) ([]Pair, error) {
	path := fmt.Sprintf("/latest/dex/tokens/%s", url.PathEscape(tokenAddress))

	body, err := c.doGet(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("dexscreener: get pairs for token %s: %w", tokenAddress, err)
	}

	var resp pairsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("dexscreener: decode pairs: %w", err)
	}
	return resp.Pairs, nil
}

// PairByAddress returns one pair by chain and pool address.
func (c *Client) PairByAddress(ctx context.Context, chainID, pairAddress string) (Pair, error) {
	path := fmt.Sprintf("/latest/dex/pairs/%s/%s", url.PathEscape(chainID), url.PathEscape(pairAddress))

	body, err := c.doGet(ctx, path)
	if err != nil {
		return Pair{}, fmt.Errorf("dexscreener: get pair %s/%s: %w", chainID, pairAddress, err)
	}

	var resp pairsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Pair{}, fmt.Errorf("dexscreener: decode pair: %w", err)
	}
	if len(resp.Pairs) == 0 {
		return Pair{}, fmt.Errorf("dexscreener: %w: pair %s/%s", domain.ErrNotFound, chainID, pairAddress)
	}
	return resp.Pairs[0], nil
}

// doGet sends an unauthenticated GET request to the API.
func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(body, 200))
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
