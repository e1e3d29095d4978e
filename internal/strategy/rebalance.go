package strategy

import (
	"context"
	"fmt"

	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/swapengine"
	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
)

type RebalanceConfig struct {
	Owner        solana.PublicKey
	Source       Target
	SourceAmount uint64
	SlippageBps  uint16
	MaxAttempts  int
	Targets      []Target
}

// Rebalance tops up every target whose balance is below what SourceAmount
// currently buys.
type Rebalance struct {
	cfg      RebalanceConfig
	quotes   swapengine.QuoteProvider
	balances BalanceSource
	logger   *logrus.Logger
	targets  []Target
}

func NewRebalance(cfg RebalanceConfig, quotes swapengine.QuoteProvider, balances BalanceSource, logger *logrus.Logger) (*Rebalance, error) {
	if cfg.Owner.IsZero() {
		return nil, fmt.Errorf("rebalance: owner is required")
	}
	if cfg.Source.Mint.IsZero() {
		return nil, fmt.Errorf("rebalance: source mint is required")
	}
	if cfg.SourceAmount == 0 {
		return nil, fmt.Errorf("rebalance: source amount must be > 0")
	}
	if quotes == nil || balances == nil {
		return nil, fmt.Errorf("rebalance: quote provider and balance source are required")
	}
	if logger == nil {
		logger = logrus.New()
	}

	targets := make([]Target, 0, len(cfg.Targets))
	for _, t := range cfg.Targets {
		if t.Mint.Equals(cfg.Source.Mint) {
			continue
		}
		targets = append(targets, t)
	}

	return &Rebalance{
		cfg:      cfg,
		quotes:   quotes,
		balances: balances,
		logger:   logger,
		targets:  targets,
	}, nil
}

func (r *Rebalance) Name() string { return "rebalance" }

func (r *Rebalance) Targets() []Target { return r.targets }

func (r *Rebalance) Decide(ctx context.Context, target Target) (*Decision, error) {
	log := r.logger.WithFields(logrus.Fields{
		"strategy": r.Name(),
		"target":   target.String(),
	})

	balance := r.balances.TokenBalance(ctx, r.cfg.Owner, target.Mint)

	q, err := r.quotes.Quote(ctx, r.cfg.Source.Mint, target.Mint, r.cfg.SourceAmount, r.cfg.SlippageBps)
	if err != nil {
		log.WithError(err).Warn("target quote unavailable, skipping")
		return nil, nil
	}

	log = log.WithFields(logrus.Fields{
		"balance":       balance,
		"target_amount": q.OutAmount,
	})
	if !NeedsTopUp(balance, q.OutAmount) {
		log.Info("balance sufficient")
		return nil, nil
	}

	log.Info("balance below target, topping up")
	return &Decision{
		Request: swapengine.SwapRequest{
			InputMint:   r.cfg.Source.Mint,
			OutputMint:  target.Mint,
			Amount:      r.cfg.SourceAmount,
			SlippageBps: r.cfg.SlippageBps,
			MaxAttempts: r.cfg.MaxAttempts,
			Label:       fmt.Sprintf("rebalance %s->%s", r.cfg.Source, target),
		},
		Reason: fmt.Sprintf("balance %d < target %d", balance, q.OutAmount),
	}, nil
}

// NeedsTopUp reports whether balance is strictly below target.
func NeedsTopUp(balance, target uint64) bool {
	return balance < target
}
