// Package builtin contains the built-in tool implementations: token search
// and market data, wallet operations, and social sentiment.
package builtin

import (
	"github.com/Xalamander777/neur-app/pkg/market"
	"github.com/Xalamander777/neur-app/pkg/social"
	"github.com/Xalamander777/neur-app/pkg/solana"
	"github.com/Xalamander777/neur-app/pkg/tool"
)

// Deps carries the domain clients the built-in tools run on. Any field may be
// nil when its backing service is unconfigured; the corresponding tools are
// env-gated and filtered out before they can execute.
type Deps struct {
	Solana  *solana.Client
	Dex     *market.Dexscreener
	Jupiter *market.Jupiter
	Twitter *social.Twitter
}

// RegisterAll registers every built-in tool.
func RegisterAll(reg *tool.Registry, deps Deps) {
	reg.Register(&SearchToken{dex: deps.Dex})
	reg.Register(&TrendingTokens{dex: deps.Dex})
	reg.Register(&TokenPrice{jupiter: deps.Jupiter, dex: deps.Dex})
	reg.Register(&WalletBalance{solana: deps.Solana})
	reg.Register(&SwapTokens{jupiter: deps.Jupiter, solana: deps.Solana})
	reg.Register(&TransferTokens{solana: deps.Solana})
	reg.Register(&SearchTweets{twitter: deps.Twitter})
}
