package builtin

import (
	"context"

	"github.com/Xalamander777/neur-app/pkg/market"
	"github.com/Xalamander777/neur-app/pkg/tool"
)

// TrendingTokens lists the highest-volume Solana pairs.
type TrendingTokens struct {
	dex *market.Dexscreener
}

func (t *TrendingTokens) Name() string { return "trending_tokens" }

func (t *TrendingTokens) Description() string {
	return "List the Solana tokens with the highest 24h trading volume."
}

func (t *TrendingTokens) Parameters() tool.ParameterSchema {
	one := 1.0
	twenty := 20.0
	return tool.ParameterSchema{
		Type: "object",
		Properties: map[string]tool.PropertySchema{
			"limit": {Type: "integer", Description: "Number of tokens to return", Minimum: &one, Maximum: &twenty},
		},
	}
}

func (t *TrendingTokens) Execute(ctx context.Context, rt *tool.Runtime, params map[string]any) (*tool.Result, error) {
	limit := intParam(params, "limit", 10)

	pairs, err := t.dex.Trending(ctx, limit)
	if err != nil {
		return tool.Errorf("trending lookup failed: %v", err), nil
	}

	tokens := make([]map[string]any, 0, len(pairs))
	for _, p := range pairs {
		tokens = append(tokens, map[string]any{
			"symbol":    p.BaseToken.Symbol,
			"mint":      p.BaseToken.Address,
			"priceUsd":  p.PriceUSD,
			"volume24h": p.Volume24h,
		})
	}

	return &tool.Result{
		Success:     true,
		Data:        map[string]any{"tokens": tokens},
		DisplayData: map[string]any{"count": len(tokens)},
	}, nil
}
