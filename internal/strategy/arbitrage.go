package strategy

import (
	"context"
	"fmt"
	"math/big"

	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/swapengine"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type ArbitrageConfig struct {
	Base        Target
	Amount      uint64
	SlippageBps uint16

	// Threshold is the minimum profit in raw base units. It may be negative.
	Threshold        int64
	MaxAttempts      int
	SimulationRounds int
	Intermediates    []Target
}

// Arbitrage looks for base -> intermediate -> base round trips that return
// at least Threshold more than they spend.
type Arbitrage struct {
	cfg     ArbitrageConfig
	quotes  swapengine.QuoteProvider
	logger  *logrus.Logger
	targets []Target
}

func NewArbitrage(cfg ArbitrageConfig, quotes swapengine.QuoteProvider, logger *logrus.Logger) (*Arbitrage, error) {
	if cfg.Base.Mint.IsZero() {
		return nil, fmt.Errorf("arbitrage: base mint is required")
	}
	if cfg.Amount == 0 {
		return nil, fmt.Errorf("arbitrage: amount must be > 0")
	}
	if quotes == nil {
		return nil, fmt.Errorf("arbitrage: quote provider is required")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.SimulationRounds <= 0 {
		cfg.SimulationRounds = 6
	}
	if logger == nil {
		logger = logrus.New()
	}

	targets := make([]Target, 0, len(cfg.Intermediates))
	for _, t := range cfg.Intermediates {
		if !t.Mint.Equals(cfg.Base.Mint) {
			targets = append(targets, t)
		}
	}
	return &Arbitrage{cfg: cfg, quotes: quotes, logger: logger, targets: targets}, nil
}

func (a *Arbitrage) Name() string { return "arbitrage" }

func (a *Arbitrage) Targets() []Target { return a.targets }

func (a *Arbitrage) Decide(ctx context.Context, target Target) (*Decision, error) {
	log := a.logger.WithFields(logrus.Fields{
		"strategy": a.Name(),
		"route":    fmt.Sprintf("%s->%s->%s", a.cfg.Base, target, a.cfg.Base),
		"amount":   a.cfg.Amount,
	})

	first, err := a.quotes.Quote(ctx, a.cfg.Base.Mint, target.Mint, a.cfg.Amount, a.cfg.SlippageBps)
	if err != nil {
		log.WithError(err).Warn("first leg quote unavailable")
		return nil, nil
	}
	second, err := a.quotes.Quote(ctx, target.Mint, a.cfg.Base.Mint, first.OutAmount, a.cfg.SlippageBps)
	if err != nil {
		log.WithError(err).Warn("second leg quote unavailable")
		return nil, nil
	}

	profit := Profit(a.cfg.Amount, second.OutAmount)
	log = log.WithFields(logrus.Fields{
		"intermediate": first.OutAmount,
		"returned":     second.OutAmount,
		"profit":       profit.String(),
	})
	if !Profitable(a.cfg.Amount, second.OutAmount, a.cfg.Threshold) {
		log.Debug("no opportunity")
		return nil, nil
	}

	log.Info("arbitrage opportunity")
	return &Decision{
		Request: swapengine.SwapRequest{
			InputMint:        a.cfg.Base.Mint,
			Via:              []solana.PublicKey{target.Mint},
			OutputMint:       a.cfg.Base.Mint,
			Amount:           a.cfg.Amount,
			SlippageBps:      a.cfg.SlippageBps,
			MaxAttempts:      a.cfg.MaxAttempts,
			SimulationRounds: a.cfg.SimulationRounds,
			Label:            fmt.Sprintf("arb %s->%s->%s", a.cfg.Base, target, a.cfg.Base),
		},
		Quotes: []*swapengine.Quote{first, second},
		Reason: fmt.Sprintf("profit %s >= %d", profit, a.cfg.Threshold),
	}, nil
}

// Profit returns returned - spent as a signed value.
func Profit(spent, returned uint64) decimal.Decimal {
	return rawDecimal(returned).Sub(rawDecimal(spent))
}

// Profitable reports whether returned - spent >= threshold.
func Profitable(spent, returned uint64, threshold int64) bool {
	return Profit(spent, returned).GreaterThanOrEqual(decimal.NewFromInt(threshold))
}

func rawDecimal(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}
