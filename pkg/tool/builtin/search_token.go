package builtin

import (
	"context"
	"fmt"

	"github.com/Xalamander777/neur-app/pkg/market"
	"github.com/Xalamander777/neur-app/pkg/tool"
)

// SearchToken looks up tokens by symbol, name, or mint address. It is the
// default tool exposed on every turn.
type SearchToken struct {
	dex *market.Dexscreener
}

func (s *SearchToken) Name() string { return "search_token" }

func (s *SearchToken) Description() string {
	return "Search for a Solana token by symbol, name, or mint address and return its trading pairs with price, volume, and liquidity."
}

func (s *SearchToken) Parameters() tool.ParameterSchema {
	one := 1.0
	twentyFive := 25.0
	return tool.ParameterSchema{
		Type: "object",
		Properties: map[string]tool.PropertySchema{
			"query": {Type: "string", Description: "Token symbol, name, or mint address"},
			"limit": {Type: "integer", Description: "Maximum number of pairs to return", Minimum: &one, Maximum: &twentyFive},
		},
		Required: []string{"query"},
	}
}

func (s *SearchToken) Execute(ctx context.Context, rt *tool.Runtime, params map[string]any) (*tool.Result, error) {
	query, _ := params["query"].(string)
	if query == "" {
		return tool.Errorf("query is required"), nil
	}
	limit := intParam(params, "limit", 5)

	pairs, err := s.dex.SearchPairs(ctx, query, limit)
	if err != nil {
		return tool.Errorf("token search failed: %v", err), nil
	}
	if len(pairs) == 0 {
		return tool.Errorf("no tokens found for %q", query), nil
	}

	tokens := make([]map[string]any, 0, len(pairs))
	for _, p := range pairs {
		tokens = append(tokens, map[string]any{
			"symbol":       p.BaseToken.Symbol,
			"name":         p.BaseToken.Name,
			"mint":         p.BaseToken.Address,
			"priceUsd":     p.PriceUSD,
			"volume24h":    p.Volume24h,
			"liquidityUsd": p.LiquidityUSD,
			"dex":          p.DexID,
		})
	}

	top := pairs[0]
	return &tool.Result{
		Success: true,
		Data:    map[string]any{"tokens": tokens},
		DisplayData: map[string]any{
			"symbol":   top.BaseToken.Symbol,
			"mint":     top.BaseToken.Address,
			"priceUsd": top.PriceUSD,
			"summary":  fmt.Sprintf("%s at $%g across %d pairs", top.BaseToken.Symbol, top.PriceUSD, len(pairs)),
		},
	}, nil
}

// intParam reads an integer parameter that may arrive as float64 after JSON
// decoding.
func intParam(params map[string]any, key string, fallback int) int {
	switch v := params[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return fallback
	}
}

// floatParam reads a numeric parameter.
func floatParam(params map[string]any, key string, fallback float64) float64 {
	switch v := params[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return fallback
	}
}

// stringParam reads a string parameter.
func stringParam(params map[string]any, key string) string {
	s, _ := params[key].(string)
	return s
}
