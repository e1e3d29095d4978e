// Package scheduler drives a strategy in rounds: every round visits the
// strategy's targets one after another and executes whatever swaps it asks
// for.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/flags"
	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/metrics"
	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/models"
	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/storage"
	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/strategy"
	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/swapengine"
	"github.com/sirupsen/logrus"
)

// Executor runs one swap request to completion.
type Executor interface {
	ExecuteWithQuotes(ctx context.Context, req swapengine.SwapRequest, quotes []*swapengine.Quote) (*swapengine.Result, error)
}

type Config struct {
	// Interval is the wait between rounds.
	Interval time.Duration
	// Pacing is the wait after every target that produced a swap.
	Pacing time.Duration
	// MaxDuration bounds the whole run. Zero means no ceiling.
	MaxDuration time.Duration
	// Once stops after the first round.
	Once bool
}

// Status is a snapshot of the runner for the status surface.
type Status struct {
	Strategy      string    `json:"strategy"`
	Running       bool      `json:"running"`
	Enabled       bool      `json:"enabled"`
	StartedAt     time.Time `json:"started_at,omitempty"`
	LastRoundAt   time.Time `json:"last_round_at,omitempty"`
	Rounds        int       `json:"rounds"`
	Landed        int       `json:"landed"`
	Skipped       int       `json:"skipped"`
	Failed        int       `json:"failed"`
	LastSignature string    `json:"last_signature,omitempty"`
	LastError     string    `json:"last_error,omitempty"`
}

type Runner struct {
	strategy strategy.Strategy
	exec     Executor
	cfg      Config
	logger   *logrus.Logger

	flags   flags.Backend
	sink    storage.SettlementSink
	metrics *metrics.Metrics

	mu     sync.RWMutex
	status Status

	now  func() time.Time
	wait func(ctx context.Context, d time.Duration) error
}

func NewRunner(s strategy.Strategy, exec Executor, cfg Config, logger *logrus.Logger) *Runner {
	if logger == nil {
		logger = logrus.New()
	}
	return &Runner{
		strategy: s,
		exec:     exec,
		cfg:      cfg,
		logger:   logger,
		status:   Status{Strategy: s.Name(), Enabled: true},
		now:      time.Now,
		wait:     swapengine.Sleep,
	}
}

// WithFlags sets the store holding the strategy kill switch.
func (r *Runner) WithFlags(b flags.Backend) *Runner {
	r.flags = b
	return r
}

// WithSink sets where settlement events go.
func (r *Runner) WithSink(s storage.SettlementSink) *Runner {
	r.sink = s
	return r
}

func (r *Runner) WithMetrics(m *metrics.Metrics) *Runner {
	r.metrics = m
	return r
}

// Status returns a copy of the current status.
func (r *Runner) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// Run loops rounds until the ceiling passes, ctx is cancelled or, with Once,
// the first round ends. Reaching the ceiling is not an error.
func (r *Runner) Run(ctx context.Context) error {
	runCtx := ctx
	if r.cfg.MaxDuration > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.cfg.MaxDuration)
		defer cancel()
	}

	r.update(func(s *Status) {
		s.Running = true
		s.StartedAt = r.now()
	})
	defer r.update(func(s *Status) { s.Running = false })

	log := r.logger.WithFields(logrus.Fields{
		"strategy":     r.strategy.Name(),
		"interval":     r.cfg.Interval,
		"max_duration": r.cfg.MaxDuration,
	})
	log.Info("scheduler started")

	for {
		r.round(runCtx)
		if r.cfg.Once {
			log.Info("single round finished")
			return nil
		}
		if err := r.wait(runCtx, r.cfg.Interval); err != nil {
			break
		}
	}

	if err := ctx.Err(); err != nil {
		log.WithError(err).Info("scheduler cancelled")
		return err
	}
	log.Info("maximum run duration reached, stopping")
	return nil
}

// round visits every target once. Panics are recovered so the loop survives.
func (r *Runner) round(ctx context.Context) {
	name := r.strategy.Name()
	log := r.logger.WithField("strategy", name)

	defer func() {
		if p := recover(); p != nil {
			r.metrics.RecordPanic(name)
			log.WithField("panic", p).Error("recovered panic in scheduler round")
			r.update(func(s *Status) { s.LastError = fmt.Sprintf("panic: %v", p) })
		}
	}()

	enabled, err := flags.Enabled(ctx, r.flags, flags.StrategyKey(name), true)
	if err != nil {
		log.WithError(err).Warn("kill switch unreadable, assuming enabled")
	}
	r.update(func(s *Status) { s.Enabled = enabled })
	if !enabled {
		log.Info("strategy disabled by kill switch, skipping round")
		return
	}

	for _, target := range r.strategy.Targets() {
		if ctx.Err() != nil {
			return
		}
		if !r.visit(ctx, log.WithField("target", target.String()), target) {
			continue
		}
		if err := r.wait(ctx, r.cfg.Pacing); err != nil {
			return
		}
	}

	r.metrics.RecordRound(name)
	r.update(func(s *Status) {
		s.Rounds++
		s.LastRoundAt = r.now()
	})
}

// visit decides and, if asked to, executes one target. It reports whether a
// swap was attempted.
func (r *Runner) visit(ctx context.Context, log *logrus.Entry, target strategy.Target) bool {
	name := r.strategy.Name()

	d, err := r.strategy.Decide(ctx, target)
	if err != nil {
		r.metrics.RecordDecision(name, "error")
		log.WithError(err).Warn("strategy decision failed")
		r.update(func(s *Status) { s.LastError = err.Error() })
		return false
	}
	if d == nil {
		r.metrics.RecordDecision(name, "skip")
		return false
	}
	r.metrics.RecordDecision(name, "swap")
	log.WithField("reason", d.Reason).Info("executing swap")

	res, err := r.exec.ExecuteWithQuotes(ctx, d.Request, d.Quotes)
	if err != nil && errors.Is(err, ctx.Err()) {
		log.WithError(err).Info("swap interrupted")
		return true
	}

	ev := r.settlement(d, res, err)
	r.update(func(s *Status) {
		switch ev.Outcome {
		case models.OutcomeLanded:
			s.Landed++
			s.LastSignature = ev.Signature
		case models.OutcomeSkipped:
			s.Skipped++
		default:
			s.Failed++
			s.LastError = ev.Error
		}
	})

	entry := log.WithFields(logrus.Fields{
		"outcome":  ev.Outcome,
		"attempts": ev.Attempts,
	})
	switch ev.Outcome {
	case models.OutcomeLanded:
		entry.WithFields(logrus.Fields{
			"signature":   ev.Signature,
			"bundle_id":   ev.BundleID,
			"landed_slot": ev.LandedSlot,
		}).Info("swap settled")
	case models.OutcomeSkipped:
		entry.Warn("swap skipped")
	default:
		entry.WithError(err).Error("swap failed")
	}

	if r.sink != nil {
		if err := r.sink.RecordSettlement(ctx, ev); err != nil {
			log.WithError(err).Warn("failed to publish settlement")
		}
	}
	return true
}

func (r *Runner) settlement(d *strategy.Decision, res *swapengine.Result, err error) *models.SettlementEvent {
	route := d.Request.Route()
	mints := make([]string, 0, len(route))
	for _, m := range route {
		mints = append(mints, m.String())
	}

	ev := &models.SettlementEvent{
		Strategy:   r.strategy.Name(),
		Label:      d.Request.Label,
		InputMint:  d.Request.InputMint.String(),
		OutputMint: d.Request.OutputMint.String(),
		Route:      mints,
		AmountIn:   strconv.FormatUint(d.Request.Amount, 10),
		Timestamp:  r.now().UTC(),
	}

	if err != nil {
		ev.Outcome = models.OutcomeFailed
		ev.Error = err.Error()
		return ev
	}

	ev.Outcome = res.Outcome
	ev.Signature = res.Signature
	ev.BundleID = res.BundleID
	ev.LandedSlot = res.LandedSlot
	ev.Attempts = res.Attempts
	if n := len(res.Quotes); n > 0 {
		ev.QuotedOut = strconv.FormatUint(res.Quotes[n-1].OutAmount, 10)
	}
	return ev
}

func (r *Runner) update(fn func(s *Status)) {
	r.mu.Lock()
	fn(&r.status)
	r.mu.Unlock()
}
