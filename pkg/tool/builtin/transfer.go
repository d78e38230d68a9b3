package builtin

import (
	"context"

	"github.com/Xalamander777/neur-app/pkg/solana"
	"github.com/Xalamander777/neur-app/pkg/tool"
)

// TransferTokens prepares a SOL or SPL transfer from the user's wallet.
// Like SwapTokens it is confirm-gated; Execute only summarizes the pending
// transfer.
type TransferTokens struct {
	solana *solana.Client
}

func (t *TransferTokens) Name() string { return "transfer_tokens" }

func (t *TransferTokens) Description() string {
	return "Transfer SOL or an SPL token from the user's wallet to another address. Requires user confirmation before executing."
}

func (t *TransferTokens) RequiredEnv() []string { return []string{"SOLANA_RPC_URL"} }

func (t *TransferTokens) Parameters() tool.ParameterSchema {
	zero := 0.0
	return tool.ParameterSchema{
		Type: "object",
		Properties: map[string]tool.PropertySchema{
			"recipient": {Type: "string", Description: "Destination wallet address"},
			"amount":    {Type: "number", Description: "Amount to send, in whole tokens", Minimum: &zero},
			"mint":      {Type: "string", Description: "Token mint address; omit to send SOL"},
		},
		Required: []string{"recipient", "amount"},
	}
}

func (t *TransferTokens) Execute(ctx context.Context, rt *tool.Runtime, params map[string]any) (*tool.Result, error) {
	recipient := stringParam(params, "recipient")
	amount := floatParam(params, "amount", 0)
	mint := stringParam(params, "mint")

	if recipient == "" || amount <= 0 {
		return tool.Errorf("recipient and a positive amount are required"), nil
	}
	if rt.WalletAddress == "" {
		return tool.Errorf("no wallet linked to the account"), nil
	}

	asset := "SOL"
	if mint != "" {
		asset = mint
	}
	return &tool.Result{
		Success: true,
		Data: map[string]any{
			"requiresConfirmation": true,
			"from":                 rt.WalletAddress,
			"recipient":            recipient,
			"amount":               amount,
			"asset":                asset,
		},
		DisplayData: map[string]any{"recipient": recipient, "amount": amount, "asset": asset},
	}, nil
}

// Confirm attaches a fresh blockhash so the client can build and sign the
// transfer transaction.
func (t *TransferTokens) Confirm(ctx context.Context, rt *tool.Runtime, params map[string]any) (*tool.Result, error) {
	recipient := stringParam(params, "recipient")
	amount := floatParam(params, "amount", 0)
	mint := stringParam(params, "mint")

	if recipient == "" || amount <= 0 {
		return tool.Errorf("recipient and a positive amount are required"), nil
	}

	blockhash, err := t.solana.GetLatestBlockhash(ctx)
	if err != nil {
		return tool.Errorf("fetching blockhash failed: %v", err), nil
	}

	asset := "SOL"
	if mint != "" {
		asset = mint
	}
	return &tool.Result{
		Success: true,
		Data: map[string]any{
			"confirmed": true,
			"from":      rt.WalletAddress,
			"recipient": recipient,
			"amount":    amount,
			"asset":     asset,
			"blockhash": blockhash,
		},
		DisplayData: map[string]any{"recipient": recipient, "amount": amount, "asset": asset},
	}, nil
}
