package strategy

import (
	"context"
	"fmt"

	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/swapengine"
)

type SingleConfig struct {
	Input       Target
	Output      Target
	Amount      uint64
	SlippageBps uint16
	MaxAttempts int
}

// Single requests the same swap every round.
type Single struct {
	cfg SingleConfig
}

func NewSingle(cfg SingleConfig) (*Single, error) {
	if cfg.Input.Mint.IsZero() || cfg.Output.Mint.IsZero() {
		return nil, fmt.Errorf("single: input and output mints are required")
	}
	if cfg.Input.Mint.Equals(cfg.Output.Mint) {
		return nil, fmt.Errorf("single: input and output mints must differ")
	}
	if cfg.Amount == 0 {
		return nil, fmt.Errorf("single: amount must be > 0")
	}
	return &Single{cfg: cfg}, nil
}

func (s *Single) Name() string { return "single" }

func (s *Single) Targets() []Target { return []Target{s.cfg.Output} }

func (s *Single) Decide(_ context.Context, target Target) (*Decision, error) {
	return &Decision{
		Request: swapengine.SwapRequest{
			InputMint:   s.cfg.Input.Mint,
			OutputMint:  target.Mint,
			Amount:      s.cfg.Amount,
			SlippageBps: s.cfg.SlippageBps,
			MaxAttempts: s.cfg.MaxAttempts,
			Label:       fmt.Sprintf("%s->%s", s.cfg.Input, target),
		},
		Reason: "scheduled",
	}, nil
}
