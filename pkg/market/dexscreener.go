// Package market provides read-only market data clients for the token tools:
// a Dexscreener-style pair search and a Jupiter-style quote/price API.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"
)

const (
	dexscreenerBaseURL = "https://api.dexscreener.com"
	httpTimeout        = 15 * time.Second
)

// Token identifies one side of a trading pair.
type Token struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

// Pair is one DEX trading pair with its headline stats.
type Pair struct {
	ChainID      string  `json:"chainId"`
	DexID        string  `json:"dexId"`
	PairAddress  string  `json:"pairAddress"`
	BaseToken    Token   `json:"baseToken"`
	QuoteToken   Token   `json:"quoteToken"`
	PriceUSD     float64 `json:"priceUsd"`
	Volume24h    float64 `json:"volume24h"`
	LiquidityUSD float64 `json:"liquidityUsd"`
}

// Dexscreener searches DEX pairs by token symbol, name, or mint address.
type Dexscreener struct {
	baseURL    string
	httpClient *http.Client
}

// NewDexscreener creates a client. baseURL may be empty to use the public API.
func NewDexscreener(baseURL string) *Dexscreener {
	if baseURL == "" {
		baseURL = dexscreenerBaseURL
	}
	return &Dexscreener{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: httpTimeout},
	}
}

type pairsResponse struct {
	Pairs []struct {
		ChainID     string `json:"chainId"`
		DexID       string `json:"dexId"`
		PairAddress string `json:"pairAddress"`
		BaseToken   Token  `json:"baseToken"`
		QuoteToken  Token  `json:"quoteToken"`
		PriceUSD    string `json:"priceUsd"`
		Volume      struct {
			H24 float64 `json:"h24"`
		} `json:"volume"`
		Liquidity struct {
			USD float64 `json:"usd"`
		} `json:"liquidity"`
	} `json:"pairs"`
}

// SearchPairs finds Solana pairs matching the query, ordered by liquidity
// descending. limit caps the result count; zero means 10.
func (d *Dexscreener) SearchPairs(ctx context.Context, query string, limit int) ([]Pair, error) {
	if limit <= 0 {
		limit = 10
	}

	endpoint := fmt.Sprintf("%s/latest/dex/search?q=%s", d.baseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating search request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("searching pairs: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pair search returned %s", resp.Status)
	}

	var body pairsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding pair search: %w", err)
	}

	pairs := make([]Pair, 0, len(body.Pairs))
	for _, p := range body.Pairs {
		if p.ChainID != "solana" {
			continue
		}
		var price float64
		fmt.Sscanf(p.PriceUSD, "%f", &price)
		pairs = append(pairs, Pair{
			ChainID:      p.ChainID,
			DexID:        p.DexID,
			PairAddress:  p.PairAddress,
			BaseToken:    p.BaseToken,
			QuoteToken:   p.QuoteToken,
			PriceUSD:     price,
			Volume24h:    p.Volume.H24,
			LiquidityUSD: p.Liquidity.USD,
		})
	}

	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].LiquidityUSD > pairs[j].LiquidityUSD
	})
	if len(pairs) > limit {
		pairs = pairs[:limit]
	}
	return pairs, nil
}

// Trending returns the pairs with the highest 24h volume for the chain.
// Dexscreener has no dedicated trending endpoint, so this reuses search over
// the wrapped-SOL quote and sorts by volume.
func (d *Dexscreener) Trending(ctx context.Context, limit int) ([]Pair, error) {
	pairs, err := d.SearchPairs(ctx, "SOL", 50)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].Volume24h > pairs[j].Volume24h
	})
	if limit <= 0 {
		limit = 10
	}
	if len(pairs) > limit {
		pairs = pairs[:limit]
	}
	return pairs, nil
}
