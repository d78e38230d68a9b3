package builtin

import (
	"context"

	"github.com/Xalamander777/neur-app/pkg/market"
	"github.com/Xalamander777/neur-app/pkg/tool"
)

// TokenPrice returns the current USD price for a mint, preferring the
// aggregator price feed and falling back to DEX pair data.
type TokenPrice struct {
	jupiter *market.Jupiter
	dex     *market.Dexscreener
}

func (t *TokenPrice) Name() string { return "token_price" }

func (t *TokenPrice) Description() string {
	return "Get the current USD price of a Solana token by mint address."
}

func (t *TokenPrice) Parameters() tool.ParameterSchema {
	return tool.ParameterSchema{
		Type: "object",
		Properties: map[string]tool.PropertySchema{
			"mint": {Type: "string", Description: "Token mint address"},
		},
		Required: []string{"mint"},
	}
}

func (t *TokenPrice) Execute(ctx context.Context, rt *tool.Runtime, params map[string]any) (*tool.Result, error) {
	mint := stringParam(params, "mint")
	if mint == "" {
		return tool.Errorf("mint is required"), nil
	}

	price, err := t.jupiter.GetPrice(ctx, mint)
	if err != nil {
		// The aggregator does not index every mint; fall back to pair data.
		pairs, dexErr := t.dex.SearchPairs(ctx, mint, 1)
		if dexErr != nil || len(pairs) == 0 {
			return tool.Errorf("no price available for %s", mint), nil
		}
		price = pairs[0].PriceUSD
	}

	return &tool.Result{
		Success:     true,
		Data:        map[string]any{"mint": mint, "priceUsd": price},
		DisplayData: map[string]any{"priceUsd": price},
	}, nil
}
