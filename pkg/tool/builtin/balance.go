package builtin

import (
	"context"

	"github.com/Xalamander777/neur-app/pkg/solana"
	"github.com/Xalamander777/neur-app/pkg/tool"
)

// WalletBalance reports SOL and SPL token balances. It defaults to the
// authenticated user's linked wallet when no address is given.
type WalletBalance struct {
	solana *solana.Client
}

func (w *WalletBalance) Name() string { return "wallet_balance" }

func (w *WalletBalance) Description() string {
	return "Get the SOL and token balances of a wallet. Defaults to the user's own wallet."
}

func (w *WalletBalance) RequiredEnv() []string { return []string{"SOLANA_RPC_URL"} }

func (w *WalletBalance) Parameters() tool.ParameterSchema {
	return tool.ParameterSchema{
		Type: "object",
		Properties: map[string]tool.PropertySchema{
			"address": {Type: "string", Description: "Wallet address; omit for the user's own wallet"},
		},
	}
}

func (w *WalletBalance) Execute(ctx context.Context, rt *tool.Runtime, params map[string]any) (*tool.Result, error) {
	address := stringParam(params, "address")
	if address == "" {
		address = rt.WalletAddress
	}
	if address == "" {
		return tool.Errorf("no wallet address: none given and no wallet linked to the account"), nil
	}

	lamports, err := w.solana.GetBalance(ctx, address)
	if err != nil {
		return tool.Errorf("balance lookup failed: %v", err), nil
	}
	sol := float64(lamports) / solana.LamportsPerSOL

	tokens, err := w.solana.GetTokenBalances(ctx, address)
	if err != nil {
		return tool.Errorf("token balance lookup failed: %v", err), nil
	}

	tokenData := make([]map[string]any, 0, len(tokens))
	for _, tb := range tokens {
		tokenData = append(tokenData, map[string]any{
			"mint":   tb.Mint,
			"amount": tb.Amount,
		})
	}

	return &tool.Result{
		Success: true,
		Data: map[string]any{
			"address": address,
			"sol":     sol,
			"tokens":  tokenData,
		},
		DisplayData: map[string]any{"sol": sol, "tokenCount": len(tokens)},
	}, nil
}
