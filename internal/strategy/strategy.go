// Package strategy holds the policies that decide which swaps the scheduler
// should request. Strategies only decide; execution belongs to the
// orchestrator.
package strategy

import (
	"context"

	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/swapengine"
	"github.com/gagliardetto/solana-go"
)

// Target is one item a strategy visits per round.
type Target struct {
	Mint   solana.PublicKey
	Symbol string
}

func (t Target) String() string {
	if t.Symbol != "" {
		return t.Symbol
	}
	return t.Mint.String()
}

// Decision is a swap the strategy wants executed. Quotes, when set, are
// handed to the orchestrator for the first attempt.
type Decision struct {
	Request swapengine.SwapRequest
	Quotes  []*swapengine.Quote
	Reason  string
}

// Strategy decides, target by target, whether to swap. Decide returns a nil
// Decision when nothing should happen for the target.
type Strategy interface {
	Name() string
	Targets() []Target
	Decide(ctx context.Context, target Target) (*Decision, error)
}

// BalanceSource reports raw token balances. Failures read as zero.
type BalanceSource interface {
	TokenBalance(ctx context.Context, owner, mint solana.PublicKey) uint64
}
