package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const defaultJupiterBaseURL = "https://quote-api.jup.ag/v6"

// Jupiter fetches swap quotes and prices from a Jupiter-compatible
// aggregator API.
type Jupiter struct {
	baseURL    string
	httpClient *http.Client
}

// NewJupiter creates a client. baseURL may be empty to use the public API.
func NewJupiter(baseURL string) *Jupiter {
	if baseURL == "" {
		baseURL = defaultJupiterBaseURL
	}
	return &Jupiter{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Quote is the aggregator's best route for a swap.
type Quote struct {
	InputMint      string  `json:"inputMint"`
	OutputMint     string  `json:"outputMint"`
	InAmount       uint64  `json:"inAmount,string"`
	OutAmount      uint64  `json:"outAmount,string"`
	PriceImpactPct float64 `json:"priceImpactPct,string"`
	SlippageBps    int     `json:"slippageBps"`
}

// GetQuote fetches the best route for swapping amount (in the input mint's
// base units) with the given slippage tolerance in basis points.
func (j *Jupiter) GetQuote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (*Quote, error) {
	q := url.Values{}
	q.Set("inputMint", inputMint)
	q.Set("outputMint", outputMint)
	q.Set("amount", strconv.FormatUint(amount, 10))
	q.Set("slippageBps", strconv.Itoa(slippageBps))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.baseURL+"/quote?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating quote request: %w", err)
	}

	resp, err := j.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching quote: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote endpoint returned %s", resp.Status)
	}

	var quote Quote
	if err := json.NewDecoder(resp.Body).Decode(&quote); err != nil {
		return nil, fmt.Errorf("decoding quote: %w", err)
	}
	return &quote, nil
}

// GetPrice returns the USD price for a mint, using the aggregator's price
// endpoint.
func (j *Jupiter) GetPrice(ctx context.Context, mint string) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.baseURL+"/price?ids="+url.QueryEscape(mint), nil)
	if err != nil {
		return 0, fmt.Errorf("creating price request: %w", err)
	}

	resp, err := j.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetching price: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("price endpoint returned %s", resp.Status)
	}

	var body struct {
		Data map[string]struct {
			Price float64 `json:"price"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decoding price: %w", err)
	}

	entry, ok := body.Data[mint]
	if !ok {
		return 0, fmt.Errorf("no price for mint %s", mint)
	}
	return entry.Price, nil
}
