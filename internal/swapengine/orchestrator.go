package swapengine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/metrics"
	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/models"
	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/txbuild"
	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
)

// Config tunes the retry and confirmation workflow.
type Config struct {
	MaxAttempts  int
	RetryBackoff time.Duration

	// SlippageStep widens slippage by base*step per failed attempt.
	SlippageStep   float64
	MaxSlippageBps uint16

	SimulationRounds int

	// ComputeUnitMarginPct is added on top of simulated units.
	ComputeUnitMarginPct uint64

	// DefaultPriorityFee is used when the fee estimator fails.
	DefaultPriorityFee uint64

	TipLamports uint64

	PollInterval time.Duration
	PollAttempts int

	Resubmit         ResubmitMode
	CheckpointMaxAge time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		MaxAttempts:          5,
		RetryBackoff:         2 * time.Second,
		SlippageStep:         0.5,
		MaxSlippageBps:       1000,
		SimulationRounds:     5,
		ComputeUnitMarginPct: 20,
		DefaultPriorityFee:   10_000,
		TipLamports:          10_000,
		PollInterval:         15 * time.Second,
		PollAttempts:         3,
		Resubmit:             ResubmitRefresh,
		CheckpointMaxAge:     60 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.RetryBackoff < 0 {
		c.RetryBackoff = 0
	}
	if c.SimulationRounds <= 0 {
		c.SimulationRounds = d.SimulationRounds
	}
	if c.PollAttempts <= 0 {
		c.PollAttempts = d.PollAttempts
	}
	if c.Resubmit == "" {
		c.Resubmit = d.Resubmit
	}
	if c.CheckpointMaxAge <= 0 {
		c.CheckpointMaxAge = d.CheckpointMaxAge
	}
	return c
}

// Deps are the collaborators the orchestrator drives.
type Deps struct {
	Quotes       QuoteProvider
	Instructions InstructionBuilder
	Tables       LookupTableResolver
	Simulator    Simulator
	Checkpoints  CheckpointSource
	Fees         FeeEstimator
	Relay        Relay
	Signer       Signer
}

func (d Deps) validate() error {
	var missing []string
	if d.Quotes == nil {
		missing = append(missing, "quotes")
	}
	if d.Instructions == nil {
		missing = append(missing, "instructions")
	}
	if d.Tables == nil {
		missing = append(missing, "lookup tables")
	}
	if d.Simulator == nil {
		missing = append(missing, "simulator")
	}
	if d.Checkpoints == nil {
		missing = append(missing, "checkpoints")
	}
	if d.Fees == nil {
		missing = append(missing, "fees")
	}
	if d.Relay == nil {
		missing = append(missing, "relay")
	}
	if d.Signer == nil {
		missing = append(missing, "signer")
	}
	if len(missing) > 0 {
		return fmt.Errorf("swapengine: missing dependencies: %v", missing)
	}
	return nil
}

// Orchestrator turns a SwapRequest into a landed bundle, retrying with wider
// slippage until it lands, the request is skipped or attempts run out.
// Requests are executed one at a time.
type Orchestrator struct {
	deps    Deps
	cfg     Config
	logger  *logrus.Logger
	metrics *metrics.Metrics

	now  func() time.Time
	wait func(ctx context.Context, d time.Duration) error
}

func New(deps Deps, cfg Config, logger *logrus.Logger) (*Orchestrator, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Orchestrator{
		deps:   deps,
		cfg:    cfg.withDefaults(),
		logger: logger,
		now:    time.Now,
		wait:   Sleep,
	}, nil
}

func (o *Orchestrator) WithMetrics(m *metrics.Metrics) *Orchestrator {
	o.metrics = m
	return o
}

// Config returns the effective configuration.
func (o *Orchestrator) Config() Config { return o.cfg }

// Execute runs req to completion.
func (o *Orchestrator) Execute(ctx context.Context, req SwapRequest) (*Result, error) {
	return o.ExecuteWithQuotes(ctx, req, nil)
}

// ExecuteWithQuotes runs req, using quotes (one per leg) for the first attempt
// instead of quoting afresh. Later attempts always re-quote.
func (o *Orchestrator) ExecuteWithQuotes(ctx context.Context, req SwapRequest, quotes []*Quote) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, fmt.Errorf("invalid swap request: %w", err)
	}

	maxAttempts := o.cfg.MaxAttempts
	if req.MaxAttempts > 0 {
		maxAttempts = req.MaxAttempts
	}
	if len(quotes) != len(req.Route())-1 {
		quotes = nil
	}

	log := o.logger.WithFields(logrus.Fields{
		"label":        req.Label,
		"input_mint":   req.InputMint.String(),
		"output_mint":  req.OutputMint.String(),
		"legs":         len(req.Route()) - 1,
		"amount":       req.Amount,
		"max_attempts": maxAttempts,
	})

	start := o.now()
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			log.WithField("backoff", o.cfg.RetryBackoff).Info("retrying swap")
			if err := o.wait(ctx, o.cfg.RetryBackoff); err != nil {
				return nil, err
			}
		}

		var prequoted []*Quote
		if attempt == 0 {
			prequoted = quotes
		}

		res, err := o.attempt(ctx, log.WithField("attempt", attempt+1), req, attempt, prequoted)
		if err == nil {
			res.Attempts = attempt + 1
			o.metrics.RecordAttempt(string(models.OutcomeLanded))
			o.metrics.RecordOutcome(string(models.OutcomeLanded))
			o.metrics.ObserveSettlement(o.now().Sub(start).Seconds())
			log.WithFields(logrus.Fields{
				"signature": res.Signature,
				"bundle_id": res.BundleID,
				"attempts":  res.Attempts,
			}).Info("swap landed")
			return res, nil
		}

		if errors.Is(err, ErrInsufficientFundsForRent) {
			o.metrics.RecordAttempt(string(models.OutcomeSkipped))
			o.metrics.RecordOutcome(string(models.OutcomeSkipped))
			log.Warn("insufficient funds for rent, skipping swap")
			return &Result{Outcome: models.OutcomeSkipped, Attempts: attempt + 1}, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		o.metrics.RecordAttempt(string(models.OutcomeFailed))
		entry := log.WithError(err).WithField("attempt", attempt+1)
		var ae *AttemptError
		if errors.As(err, &ae) {
			o.metrics.RecordStageFailure(string(ae.Stage))
			entry = entry.WithField("stage", ae.Stage)
		}
		entry.Warn("swap attempt failed")
		lastErr = err
	}

	o.metrics.RecordOutcome(string(models.OutcomeFailed))
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, maxAttempts, lastErr)
}

func (o *Orchestrator) attempt(ctx context.Context, log *logrus.Entry, req SwapRequest, attempt int, quotes []*Quote) (*Result, error) {
	fail := func(stage Stage, err error) error {
		return &AttemptError{Attempt: attempt, Stage: stage, Err: err}
	}

	slippage := SlippageForAttempt(req.SlippageBps, attempt, o.cfg.SlippageStep, o.cfg.MaxSlippageBps)
	log = log.WithField("slippage_bps", slippage)

	if quotes == nil {
		var err error
		quotes, err = o.quoteRoute(ctx, req, slippage)
		if err != nil {
			return nil, fail(StageQuoting, err)
		}
	}
	log.WithField("quoted_out", quotes[len(quotes)-1].OutAmount).Debug("route quoted")

	plan, err := o.plan(ctx, quotes)
	if err != nil {
		return nil, fail(StagePlanning, err)
	}

	rounds := o.cfg.SimulationRounds
	if req.SimulationRounds > 0 {
		rounds = req.SimulationRounds
	}
	units, err := o.estimate(ctx, log, plan, rounds)
	if err != nil {
		if errors.Is(err, ErrInsufficientFundsForRent) {
			return nil, err
		}
		return nil, fail(StageEstimating, err)
	}
	plan.ComputeUnits = units

	fee, err := o.deps.Fees.PriorityFee(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fail(StageAssembling, err)
		}
		log.WithError(err).Warn("priority fee unavailable, using default")
		fee = o.cfg.DefaultPriorityFee
	}
	plan.PriorityFee = fee
	log.WithFields(logrus.Fields{
		"compute_units": units,
		"priority_fee":  fee,
		"lookup_tables": len(plan.LookupTables),
		"instructions":  len(plan.Instructions),
	}).Debug("plan estimated")

	bundle, err := o.signBundle(ctx, plan)
	if err != nil {
		return nil, fail(StageAssembling, err)
	}

	bundleID, err := o.deps.Relay.Submit(ctx, bundle.Transactions)
	if err != nil {
		return nil, fail(StageSubmitting, err)
	}
	log.WithField("bundle_id", bundleID).Info("bundle submitted")

	res, err := o.confirm(ctx, log, plan, bundle, bundleID)
	if err != nil {
		return nil, fail(StageConfirming, err)
	}
	res.Quotes = quotes
	return res, nil
}

// quoteRoute prices every leg in order, feeding each leg's output into the next.
func (o *Orchestrator) quoteRoute(ctx context.Context, req SwapRequest, slippage uint16) ([]*Quote, error) {
	route := req.Route()
	quotes := make([]*Quote, 0, len(route)-1)
	amount := req.Amount

	for i := 0; i+1 < len(route); i++ {
		q, err := o.deps.Quotes.Quote(ctx, route[i], route[i+1], amount, slippage)
		if err != nil {
			return nil, fmt.Errorf("leg %d %s->%s: %w", i+1, route[i], route[i+1], err)
		}
		if q == nil || q.OutAmount == 0 {
			return nil, fmt.Errorf("leg %d %s->%s: %w", i+1, route[i], route[i+1], ErrNoRoute)
		}
		quotes = append(quotes, q)
		amount = q.OutAmount
	}
	return quotes, nil
}

// plan gathers the instructions of every leg into one transaction body.
func (o *Orchestrator) plan(ctx context.Context, quotes []*Quote) (*Plan, error) {
	payer := o.deps.Signer.PublicKey()

	var ixs []solana.Instruction
	var tableAddrs []solana.PublicKey
	seen := make(map[solana.PublicKey]struct{})

	for i, q := range quotes {
		leg, err := o.deps.Instructions.Instructions(ctx, q, payer)
		if err != nil {
			return nil, fmt.Errorf("leg %d instructions: %w", i+1, err)
		}
		if leg.Swap == nil {
			return nil, fmt.Errorf("leg %d: missing swap instruction", i+1)
		}
		ixs = append(ixs, leg.Setup...)
		ixs = append(ixs, leg.Swap)
		if leg.Cleanup != nil {
			ixs = append(ixs, leg.Cleanup)
		}
		for _, addr := range leg.LookupTables {
			if _, ok := seen[addr]; ok {
				continue
			}
			seen[addr] = struct{}{}
			tableAddrs = append(tableAddrs, addr)
		}
	}

	plan := &Plan{Instructions: ixs}
	if len(tableAddrs) > 0 {
		tables, err := o.deps.Tables.ResolveLookupTables(ctx, tableAddrs)
		if err != nil {
			return nil, err
		}
		plan.LookupTables = tables
	}
	return plan, nil
}

// estimate simulates the plan under the compute ceiling and returns the
// units to request, with margin.
func (o *Orchestrator) estimate(ctx context.Context, log *logrus.Entry, plan *Plan, rounds int) (uint32, error) {
	ixs := make([]solana.Instruction, 0, len(plan.Instructions)+1)
	ixs = append(ixs, txbuild.NewSetComputeUnitLimitIx(txbuild.MaxComputeUnits))
	ixs = append(ixs, plan.Instructions...)

	// the simulator replaces the blockhash, any value will do
	tx, err := txbuild.Build(o.deps.Signer.PublicKey(), ixs, solana.Hash{}, plan.LookupTables, nil)
	if err != nil {
		return 0, err
	}

	var lastErr error
	for round := 1; round <= rounds; round++ {
		used, err := o.deps.Simulator.SimulateUnits(ctx, tx)
		if err == nil {
			return withMargin(used, o.cfg.ComputeUnitMarginPct), nil
		}
		if errors.Is(err, ErrInsufficientFundsForRent) {
			return 0, err
		}
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		lastErr = err
		log.WithError(err).WithField("round", round).Debug("simulation round failed")
	}
	return 0, fmt.Errorf("simulation failed after %d rounds: %w", rounds, lastErr)
}

// withMargin returns ceil(used * (100+pct) / 100), capped at the per-tx ceiling.
func withMargin(used, pct uint64) uint32 {
	units := (used*(100+pct) + 99) / 100
	if units > uint64(txbuild.MaxComputeUnits) {
		return txbuild.MaxComputeUnits
	}
	return uint32(units)
}

// signBundle builds and signs the swap and tip transactions against a fresh
// checkpoint.
func (o *Orchestrator) signBundle(ctx context.Context, plan *Plan) (*Bundle, error) {
	payer := o.deps.Signer.PublicKey()

	checkpoint, err := o.deps.Checkpoints.LatestCheckpoint(ctx)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: %w", err)
	}

	swapTx, err := txbuild.Build(payer, plan.Instructions, checkpoint, plan.LookupTables, &txbuild.Budget{
		Units:              plan.ComputeUnits,
		MicroLamportsPerCU: plan.PriorityFee,
	})
	if err != nil {
		return nil, err
	}

	tipAccount, err := o.deps.Relay.TipAccount(ctx)
	if err != nil {
		return nil, fmt.Errorf("tip account: %w", err)
	}
	tipTx, err := txbuild.Build(payer, []solana.Instruction{txbuild.NewTipIx(payer, tipAccount, o.cfg.TipLamports)}, checkpoint, nil, nil)
	if err != nil {
		return nil, err
	}

	for _, tx := range []*solana.Transaction{swapTx, tipTx} {
		if err := o.deps.Signer.SignTransaction(tx); err != nil {
			return nil, err
		}
	}

	return &Bundle{
		Transactions: []*solana.Transaction{swapTx, tipTx},
		Checkpoint:   checkpoint,
		SignedAt:     o.now(),
	}, nil
}

// confirm polls the relay until the bundle lands or the poll budget runs out.
// A Failed status resubmits and polling continues under the new bundle id.
// Failed on the last poll is not resubmitted: the bundle could never be
// polled, and the next attempt would swap a second time if it landed.
func (o *Orchestrator) confirm(ctx context.Context, log *logrus.Entry, plan *Plan, bundle *Bundle, bundleID string) (*Result, error) {
	for poll := 1; poll <= o.cfg.PollAttempts; poll++ {
		if err := o.wait(ctx, o.cfg.PollInterval); err != nil {
			return nil, err
		}

		status, slot, err := o.deps.Relay.Status(ctx, bundleID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.WithError(err).WithField("bundle_id", bundleID).Debug("bundle status lookup failed")
			status = models.StatusUnknown
		}
		o.metrics.RecordPoll(string(status))

		plog := log.WithFields(logrus.Fields{
			"bundle_id": bundleID,
			"poll":      poll,
			"status":    status,
		})

		switch status {
		case models.StatusLanded:
			sig, err := txbuild.Signature(bundle.Transactions[0])
			if err != nil {
				return nil, err
			}
			return &Result{
				Outcome:    models.OutcomeLanded,
				Signature:  sig.String(),
				BundleID:   bundleID,
				LandedSlot: slot,
				Polls:      poll,
			}, nil

		case models.StatusFailed:
			if poll == o.cfg.PollAttempts {
				plog.Warn("bundle failed on the last poll, not resubmitting")
				return nil, fmt.Errorf("%w: bundle %s failed", ErrNotLanded, bundleID)
			}
			plog.Warn("bundle failed, resubmitting")
			bundle, bundleID, err = o.resubmit(ctx, plan, bundle)
			if err != nil {
				return nil, fmt.Errorf("resubmit: %w", err)
			}
			plog.WithField("new_bundle_id", bundleID).Info("bundle resubmitted")

		default:
			plog.Info("bundle not landed yet")
		}
	}
	return nil, ErrNotLanded
}

func (o *Orchestrator) resubmit(ctx context.Context, plan *Plan, bundle *Bundle) (*Bundle, string, error) {
	mode := ResubmitRefresh
	if o.cfg.Resubmit == ResubmitReuse && o.now().Sub(bundle.SignedAt) < o.cfg.CheckpointMaxAge {
		mode = ResubmitReuse
	}
	o.metrics.RecordResubmit(string(mode))

	if mode == ResubmitRefresh {
		fresh, err := o.signBundle(ctx, plan)
		if err != nil {
			return nil, "", err
		}
		bundle = fresh
	}

	id, err := o.deps.Relay.Submit(ctx, bundle.Transactions)
	if err != nil {
		return nil, "", err
	}
	return bundle, id, nil
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
