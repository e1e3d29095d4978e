package scheduler

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/constants"
	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/events"
	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/flags"
	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/metrics"
	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/models"
	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/strategy"
	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/swapengine"
	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	sol  = strategy.Target{Mint: solana.MustPublicKeyFromBase58(constants.MintSOL), Symbol: "SOL"}
	usdc = strategy.Target{Mint: solana.MustPublicKeyFromBase58(constants.MintUSDC), Symbol: "USDC"}
	usdt = strategy.Target{Mint: solana.MustPublicKeyFromBase58(constants.MintUSDT), Symbol: "USDT"}
)

// scriptedStrategy swaps SOL into every target listed in swap.
type scriptedStrategy struct {
	targets []strategy.Target
	swap    map[solana.PublicKey]bool
	panicOn solana.PublicKey
	decided []string
}

func (s *scriptedStrategy) Name() string { return "scripted" }

func (s *scriptedStrategy) Targets() []strategy.Target { return s.targets }

func (s *scriptedStrategy) Decide(_ context.Context, t strategy.Target) (*strategy.Decision, error) {
	s.decided = append(s.decided, t.Symbol)
	if t.Mint.Equals(s.panicOn) {
		panic("boom")
	}
	if !s.swap[t.Mint] {
		return nil, nil
	}
	return &strategy.Decision{
		Request: swapengine.SwapRequest{InputMint: sol.Mint, OutputMint: t.Mint, Amount: 1_500_000, Label: t.Symbol},
		Reason:  "test",
	}, nil
}

type fakeExecutor struct {
	mu       sync.Mutex
	requests []swapengine.SwapRequest
	results  map[solana.PublicKey]*swapengine.Result
	errs     map[solana.PublicKey]error
}

func (f *fakeExecutor) ExecuteWithQuotes(_ context.Context, req swapengine.SwapRequest, _ []*swapengine.Quote) (*swapengine.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if err := f.errs[req.OutputMint]; err != nil {
		return nil, err
	}
	if res := f.results[req.OutputMint]; res != nil {
		return res, nil
	}
	return &swapengine.Result{Outcome: models.OutcomeLanded, Signature: "sig-" + req.Label, Attempts: 1}, nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newRunner(s strategy.Strategy, exec Executor, cfg Config) (*Runner, *[]time.Duration) {
	r := NewRunner(s, exec, cfg, quietLogger())
	waits := &[]time.Duration{}
	r.wait = func(ctx context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return ctx.Err()
	}
	return r, waits
}

func TestRunner_RoundPacesAfterSwaps(t *testing.T) {
	strat := &scriptedStrategy{
		targets: []strategy.Target{usdc, usdt},
		swap:    map[solana.PublicKey]bool{usdc.Mint: true},
	}
	exec := &fakeExecutor{}
	sink := events.NewMemoryStore(10)

	r, waits := newRunner(strat, exec, Config{Interval: 3 * time.Minute, Pacing: 3 * time.Second, Once: true})
	r.WithSink(sink).WithMetrics(metrics.NewMetrics(prometheus.NewRegistry()))

	require.NoError(t, r.Run(context.Background()))

	assert.Equal(t, []string{"USDC", "USDT"}, strat.decided)
	require.Len(t, exec.requests, 1)
	assert.Equal(t, usdc.Mint, exec.requests[0].OutputMint)
	// pacing only after the target that swapped, no interval with Once
	assert.Equal(t, []time.Duration{3 * time.Second}, *waits)

	st := r.Status()
	assert.Equal(t, 1, st.Rounds)
	assert.Equal(t, 1, st.Landed)
	assert.Equal(t, "sig-USDC", st.LastSignature)
	assert.False(t, st.Running)

	recent, err := sink.RecentSettlements(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "scripted", recent[0].Strategy)
	assert.Equal(t, models.OutcomeLanded, recent[0].Outcome)
	assert.Equal(t, "1500000", recent[0].AmountIn)
	assert.Equal(t, []string{constants.MintSOL, constants.MintUSDC}, recent[0].Route)
}

func TestRunner_RecordsFailuresAndSkips(t *testing.T) {
	strat := &scriptedStrategy{
		targets: []strategy.Target{usdc, usdt},
		swap:    map[solana.PublicKey]bool{usdc.Mint: true, usdt.Mint: true},
	}
	exec := &fakeExecutor{
		results: map[solana.PublicKey]*swapengine.Result{usdc.Mint: {Outcome: models.OutcomeSkipped, Attempts: 1}},
		errs:    map[solana.PublicKey]error{usdt.Mint: swapengine.ErrRetriesExhausted},
	}
	sink := events.NewMemoryStore(10)
	r, _ := newRunner(strat, exec, Config{Once: true})
	r.WithSink(sink)

	require.NoError(t, r.Run(context.Background()))

	st := r.Status()
	assert.Equal(t, 1, st.Skipped)
	assert.Equal(t, 1, st.Failed)
	assert.Contains(t, st.LastError, "retries exhausted")

	recent, err := sink.RecentSettlements(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, models.OutcomeFailed, recent[0].Outcome)
	assert.Equal(t, models.OutcomeSkipped, recent[1].Outcome)
}

func TestRunner_KillSwitch(t *testing.T) {
	strat := &scriptedStrategy{targets: []strategy.Target{usdc}, swap: map[solana.PublicKey]bool{usdc.Mint: true}}
	exec := &fakeExecutor{}
	store := flags.NewMemoryStore()
	_, err := store.Upsert(context.Background(), flags.StrategyKey("scripted"), false)
	require.NoError(t, err)

	r, _ := newRunner(strat, exec, Config{Once: true})
	r.WithFlags(store)
	require.NoError(t, r.Run(context.Background()))

	assert.Empty(t, strat.decided)
	assert.Empty(t, exec.requests)
	assert.False(t, r.Status().Enabled)
	assert.Zero(t, r.Status().Rounds)
}

type brokenFlags struct{ flags.Backend }

func (brokenFlags) Get(context.Context, string) (*flags.Flag, error) {
	return nil, errors.New("redis down")
}

func TestRunner_UnreadableKillSwitchMeansEnabled(t *testing.T) {
	strat := &scriptedStrategy{targets: []strategy.Target{usdc}, swap: map[solana.PublicKey]bool{usdc.Mint: true}}
	exec := &fakeExecutor{}

	r, _ := newRunner(strat, exec, Config{Once: true})
	r.WithFlags(brokenFlags{})
	require.NoError(t, r.Run(context.Background()))

	assert.Len(t, exec.requests, 1)
	assert.True(t, r.Status().Enabled)
}

func TestRunner_RecoversPanics(t *testing.T) {
	strat := &scriptedStrategy{
		targets: []strategy.Target{usdc},
		panicOn: usdc.Mint,
	}
	r, waits := newRunner(strat, &fakeExecutor{}, Config{Interval: time.Minute})

	// stop after the third round
	rounds := 0
	r.wait = func(ctx context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		rounds++
		if rounds == 3 {
			return context.DeadlineExceeded
		}
		return nil
	}

	require.NoError(t, r.Run(context.Background()))
	assert.Len(t, strat.decided, 3)
	assert.Contains(t, r.Status().LastError, "panic: boom")
}

func TestRunner_StopsAtCeiling(t *testing.T) {
	strat := &scriptedStrategy{targets: []strategy.Target{usdc}}
	r := NewRunner(strat, &fakeExecutor{}, Config{Interval: time.Hour, MaxDuration: 50 * time.Millisecond}, quietLogger())

	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background()) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not stop at its ceiling")
	}
	assert.Equal(t, 1, r.Status().Rounds)
}

func TestRunner_CancelReturnsError(t *testing.T) {
	strat := &scriptedStrategy{targets: []strategy.Target{usdc}}
	r := NewRunner(strat, &fakeExecutor{}, Config{Interval: time.Hour}, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not stop on cancel")
	}
}
