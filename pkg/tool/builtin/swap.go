package builtin

import (
	"context"

	"github.com/Xalamander777/neur-app/pkg/market"
	"github.com/Xalamander777/neur-app/pkg/solana"
	"github.com/Xalamander777/neur-app/pkg/tool"
)

// SwapTokens quotes a token swap and, on confirmation, prepares it for
// signing. Execute never moves funds: it returns the quote and waits for the
// user to confirm or cancel the pending call.
type SwapTokens struct {
	jupiter *market.Jupiter
	solana  *solana.Client
}

func (s *SwapTokens) Name() string { return "swap_tokens" }

func (s *SwapTokens) Description() string {
	return "Swap one Solana token for another at the best available route. Requires user confirmation before executing."
}

func (s *SwapTokens) RequiredEnv() []string {
	return []string{"SOLANA_RPC_URL", "JUPITER_API_URL"}
}

func (s *SwapTokens) Parameters() tool.ParameterSchema {
	one := 1.0
	return tool.ParameterSchema{
		Type: "object",
		Properties: map[string]tool.PropertySchema{
			"inputMint":   {Type: "string", Description: "Mint address of the token to sell"},
			"outputMint":  {Type: "string", Description: "Mint address of the token to buy"},
			"amount":      {Type: "number", Description: "Amount to sell, in the input token's base units", Minimum: &one},
			"slippageBps": {Type: "integer", Description: "Slippage tolerance in basis points", Default: 50},
		},
		Required: []string{"inputMint", "outputMint", "amount"},
	}
}

// UpdateParameters limits pending-call edits to the fields a user may safely
// change without invalidating the route.
func (s *SwapTokens) UpdateParameters() tool.ParameterSchema {
	one := 1.0
	return tool.ParameterSchema{
		Type: "object",
		Properties: map[string]tool.PropertySchema{
			"amount":      {Type: "number", Description: "Amount to sell, in the input token's base units", Minimum: &one},
			"slippageBps": {Type: "integer", Description: "Slippage tolerance in basis points"},
		},
	}
}

func (s *SwapTokens) Execute(ctx context.Context, rt *tool.Runtime, params map[string]any) (*tool.Result, error) {
	inputMint := stringParam(params, "inputMint")
	outputMint := stringParam(params, "outputMint")
	amount := uint64(floatParam(params, "amount", 0))
	slippage := intParam(params, "slippageBps", 50)

	if inputMint == "" || outputMint == "" || amount == 0 {
		return tool.Errorf("inputMint, outputMint, and a positive amount are required"), nil
	}

	quote, err := s.jupiter.GetQuote(ctx, inputMint, outputMint, amount, slippage)
	if err != nil {
		return tool.Errorf("quote failed: %v", err), nil
	}

	return &tool.Result{
		Success: true,
		Data: map[string]any{
			"requiresConfirmation": true,
			"inputMint":            quote.InputMint,
			"outputMint":           quote.OutputMint,
			"inAmount":             quote.InAmount,
			"outAmount":            quote.OutAmount,
			"priceImpactPct":       quote.PriceImpactPct,
			"slippageBps":          quote.SlippageBps,
		},
		DisplayData: map[string]any{
			"outAmount":      quote.OutAmount,
			"priceImpactPct": quote.PriceImpactPct,
		},
	}, nil
}

// Confirm re-quotes with the latest parameters and attaches a fresh blockhash
// so the client can build and sign the transaction.
func (s *SwapTokens) Confirm(ctx context.Context, rt *tool.Runtime, params map[string]any) (*tool.Result, error) {
	inputMint := stringParam(params, "inputMint")
	outputMint := stringParam(params, "outputMint")
	amount := uint64(floatParam(params, "amount", 0))
	slippage := intParam(params, "slippageBps", 50)

	quote, err := s.jupiter.GetQuote(ctx, inputMint, outputMint, amount, slippage)
	if err != nil {
		return tool.Errorf("re-quote failed: %v", err), nil
	}

	blockhash, err := s.solana.GetLatestBlockhash(ctx)
	if err != nil {
		return tool.Errorf("fetching blockhash failed: %v", err), nil
	}

	return &tool.Result{
		Success: true,
		Data: map[string]any{
			"confirmed":   true,
			"inputMint":   quote.InputMint,
			"outputMint":  quote.OutputMint,
			"inAmount":    quote.InAmount,
			"outAmount":   quote.OutAmount,
			"slippageBps": quote.SlippageBps,
			"blockhash":   blockhash,
		},
		DisplayData: map[string]any{"outAmount": quote.OutAmount},
	}, nil
}
