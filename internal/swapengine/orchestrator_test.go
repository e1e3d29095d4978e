package swapengine

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/chain"
	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/models"
	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/txbuild"
	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/wallet"
	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	mintA = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
	mintB = solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	mintC = solana.MustPublicKeyFromBase58("J3NKxxXZcnNiMjKw9hYb2K4LUxgwB6t1FtPtQVsv3KFr")
)

type fakeQuotes struct {
	mu        sync.Mutex
	calls     int
	slippages []uint16
	amounts   []uint64
	// failUntil makes every call with a lower call index fail.
	failUntil int
	ratio     uint64
}

func (f *fakeQuotes) Quote(_ context.Context, in, out solana.PublicKey, amount uint64, slippageBps uint16) (*Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.calls
	f.calls++
	f.slippages = append(f.slippages, slippageBps)
	f.amounts = append(f.amounts, amount)
	if idx < f.failUntil {
		return nil, fmt.Errorf("quote %d: %w", idx, ErrNoRoute)
	}
	ratio := f.ratio
	if ratio == 0 {
		ratio = 1
	}
	return &Quote{InputMint: in, OutputMint: out, InAmount: amount, OutAmount: amount * ratio, SlippageBps: slippageBps}, nil
}

type fakeBuilder struct {
	calls  []*Quote
	tables [][]solana.PublicKey
	err    error
}

func (f *fakeBuilder) Instructions(_ context.Context, q *Quote, _ solana.PublicKey) (*LegInstructions, error) {
	f.calls = append(f.calls, q)
	if f.err != nil {
		return nil, f.err
	}
	leg := &LegInstructions{
		Setup:   []solana.Instruction{solana.NewInstruction(solana.MemoProgramID, solana.AccountMetaSlice{}, []byte("setup"))},
		Swap:    solana.NewInstruction(solana.MemoProgramID, solana.AccountMetaSlice{}, []byte("swap")),
		Cleanup: solana.NewInstruction(solana.MemoProgramID, solana.AccountMetaSlice{}, []byte("cleanup")),
	}
	if i := len(f.calls) - 1; i < len(f.tables) {
		leg.LookupTables = f.tables[i]
	}
	return leg, nil
}

type fakeTables struct {
	requested []solana.PublicKey
}

func (f *fakeTables) ResolveLookupTables(_ context.Context, addrs []solana.PublicKey) (map[solana.PublicKey]solana.PublicKeySlice, error) {
	f.requested = append(f.requested, addrs...)
	return nil, nil
}

type fakeSimulator struct {
	calls int
	errs  []error
	units uint64
}

func (f *fakeSimulator) SimulateUnits(context.Context, *solana.Transaction) (uint64, error) {
	idx := f.calls
	f.calls++
	if idx < len(f.errs) && f.errs[idx] != nil {
		return 0, f.errs[idx]
	}
	return f.units, nil
}

type fakeCheckpoints struct {
	calls int
}

func (f *fakeCheckpoints) LatestCheckpoint(context.Context) (solana.Hash, error) {
	f.calls++
	var h solana.Hash
	h[0] = byte(f.calls)
	return h, nil
}

type fakeFees struct {
	fee uint64
	err error
}

func (f *fakeFees) PriorityFee(context.Context) (uint64, error) {
	return f.fee, f.err
}

type fakeRelay struct {
	tip       solana.PublicKey
	submitted [][]*solana.Transaction
	statuses  []models.SettlementStatus
	polls     int
	polledIDs []string
}

func (f *fakeRelay) TipAccount(context.Context) (solana.PublicKey, error) {
	return f.tip, nil
}

func (f *fakeRelay) Submit(_ context.Context, txs []*solana.Transaction) (string, error) {
	f.submitted = append(f.submitted, txs)
	return fmt.Sprintf("bundle-%d", len(f.submitted)), nil
}

func (f *fakeRelay) Status(_ context.Context, id string) (models.SettlementStatus, uint64, error) {
	f.polledIDs = append(f.polledIDs, id)
	idx := f.polls
	f.polls++
	if idx < len(f.statuses) {
		st := f.statuses[idx]
		if st == models.StatusLanded {
			return st, 4242, nil
		}
		return st, 0, nil
	}
	return models.StatusPending, 0, nil
}

type harness struct {
	quotes      *fakeQuotes
	builder     *fakeBuilder
	tables      *fakeTables
	sim         *fakeSimulator
	checkpoints *fakeCheckpoints
	fees        *fakeFees
	relay       *fakeRelay
	signer      *wallet.Wallet
	waits       []time.Duration
	clock       time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	w, err := wallet.New(solana.NewWallet().PrivateKey)
	require.NoError(t, err)
	return &harness{
		quotes:      &fakeQuotes{},
		builder:     &fakeBuilder{},
		tables:      &fakeTables{},
		sim:         &fakeSimulator{units: 100_000},
		checkpoints: &fakeCheckpoints{},
		fees:        &fakeFees{fee: 5_000},
		relay:       &fakeRelay{tip: solana.NewWallet().PublicKey()},
		signer:      w,
		clock:       time.Unix(1_700_000_000, 0),
	}
}

func (h *harness) orchestrator(t *testing.T, cfg Config) *Orchestrator {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	o, err := New(Deps{
		Quotes:       h.quotes,
		Instructions: h.builder,
		Tables:       h.tables,
		Simulator:    h.sim,
		Checkpoints:  h.checkpoints,
		Fees:         h.fees,
		Relay:        h.relay,
		Signer:       h.signer,
	}, cfg, logger)
	require.NoError(t, err)

	o.now = func() time.Time { return h.clock }
	o.wait = func(ctx context.Context, d time.Duration) error {
		h.waits = append(h.waits, d)
		return ctx.Err()
	}
	return o
}

func request() SwapRequest {
	return SwapRequest{
		InputMint:   mintA,
		OutputMint:  mintB,
		Amount:      2_000_000,
		SlippageBps: 100,
		Label:       "test",
	}
}

func ixData(t *testing.T, tx *solana.Transaction, i int) (solana.PublicKey, []byte) {
	t.Helper()
	require.Greater(t, len(tx.Message.Instructions), i)
	ix := tx.Message.Instructions[i]
	program, err := tx.Message.Program(ix.ProgramIDIndex)
	require.NoError(t, err)
	return program, []byte(ix.Data)
}

func TestNew_RequiresDeps(t *testing.T) {
	_, err := New(Deps{}, DefaultConfig(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relay")
}

func TestExecute_LandsOnFirstAttempt(t *testing.T) {
	h := newHarness(t)
	h.relay.statuses = []models.SettlementStatus{models.StatusPending, models.StatusLanded}
	o := h.orchestrator(t, DefaultConfig())

	res, err := o.Execute(context.Background(), request())
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeLanded, res.Outcome)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, 2, res.Polls)
	assert.Equal(t, "bundle-1", res.BundleID)
	assert.Equal(t, uint64(4242), res.LandedSlot)
	require.Len(t, res.Quotes, 1)

	require.Len(t, h.relay.submitted, 1)
	txs := h.relay.submitted[0]
	require.Len(t, txs, 2)

	sig, err := txbuild.Signature(txs[0])
	require.NoError(t, err)
	assert.Equal(t, sig.String(), res.Signature)

	// swap tx: limit, price, then setup, swap, cleanup
	program, data := ixData(t, txs[0], 0)
	assert.Equal(t, txbuild.ComputeBudgetProgramID, program)
	assert.Equal(t, byte(2), data[0])
	assert.Equal(t, uint32(120_000), binary.LittleEndian.Uint32(data[1:5]))

	program, data = ixData(t, txs[0], 1)
	assert.Equal(t, txbuild.ComputeBudgetProgramID, program)
	assert.Equal(t, byte(3), data[0])
	assert.Equal(t, uint64(5_000), binary.LittleEndian.Uint64(data[1:9]))
	assert.Len(t, txs[0].Message.Instructions, 5)

	// tip tx shares the checkpoint
	program, _ = ixData(t, txs[1], 0)
	assert.Equal(t, solana.SystemProgramID, program)
	assert.Equal(t, txs[0].Message.RecentBlockhash, txs[1].Message.RecentBlockhash)
	assert.NoError(t, txs[0].VerifySignatures())
	assert.NoError(t, txs[1].VerifySignatures())

	assert.Equal(t, []time.Duration{15 * time.Second, 15 * time.Second}, h.waits)
}

func TestExecute_SkipsOnRentShortfall(t *testing.T) {
	h := newHarness(t)
	h.sim.errs = []error{chain.ErrInsufficientFundsForRent}
	o := h.orchestrator(t, DefaultConfig())

	res, err := o.Execute(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSkipped, res.Outcome)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, 1, h.quotes.calls)
	assert.Equal(t, 1, h.sim.calls)
	assert.Empty(t, h.relay.submitted)
	assert.Empty(t, h.waits)
}

func TestExecute_WidensSlippageUntilQuoted(t *testing.T) {
	h := newHarness(t)
	h.quotes.failUntil = 3
	h.relay.statuses = []models.SettlementStatus{models.StatusPending, models.StatusLanded}
	o := h.orchestrator(t, DefaultConfig())

	res, err := o.Execute(context.Background(), request())
	require.NoError(t, err)

	assert.Equal(t, []uint16{100, 150, 200, 250}, h.quotes.slippages)
	assert.Equal(t, 4, res.Attempts)
	assert.Equal(t, 2, res.Polls)
	assert.Equal(t, uint16(250), res.Quotes[0].SlippageBps)
	assert.Equal(t, []time.Duration{
		2 * time.Second, 2 * time.Second, 2 * time.Second,
		15 * time.Second, 15 * time.Second,
	}, h.waits)
}

func TestExecute_ResubmitsWithFreshCheckpointOnFailed(t *testing.T) {
	h := newHarness(t)
	h.relay.statuses = []models.SettlementStatus{models.StatusPending, models.StatusFailed, models.StatusLanded}
	o := h.orchestrator(t, DefaultConfig())

	res, err := o.Execute(context.Background(), request())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, 3, res.Polls)
	assert.Equal(t, "bundle-2", res.BundleID)
	require.Len(t, h.relay.submitted, 2)
	assert.Equal(t, 2, h.checkpoints.calls)
	assert.NotEqual(t,
		h.relay.submitted[0][0].Message.RecentBlockhash,
		h.relay.submitted[1][0].Message.RecentBlockhash)
	assert.Equal(t, []string{"bundle-1", "bundle-1", "bundle-2"}, h.relay.polledIDs)

	sig, err := txbuild.Signature(h.relay.submitted[1][0])
	require.NoError(t, err)
	assert.Equal(t, sig.String(), res.Signature)
}

func TestExecute_ReusesYoungBundle(t *testing.T) {
	h := newHarness(t)
	h.relay.statuses = []models.SettlementStatus{models.StatusFailed, models.StatusLanded}
	cfg := DefaultConfig()
	cfg.Resubmit = ResubmitReuse
	o := h.orchestrator(t, cfg)

	res, err := o.Execute(context.Background(), request())
	require.NoError(t, err)

	require.Len(t, h.relay.submitted, 2)
	assert.Equal(t, 1, h.checkpoints.calls)
	assert.Same(t, h.relay.submitted[0][0], h.relay.submitted[1][0])
	assert.Equal(t, "bundle-2", res.BundleID)
}

func TestExecute_ReuseFallsBackToRefreshWhenStale(t *testing.T) {
	h := newHarness(t)
	h.relay.statuses = []models.SettlementStatus{models.StatusFailed, models.StatusLanded}
	cfg := DefaultConfig()
	cfg.Resubmit = ResubmitReuse
	cfg.CheckpointMaxAge = 10 * time.Second
	o := h.orchestrator(t, cfg)

	// every poll wait advances the clock past the checkpoint age
	o.wait = func(ctx context.Context, d time.Duration) error {
		h.waits = append(h.waits, d)
		h.clock = h.clock.Add(d)
		return nil
	}

	_, err := o.Execute(context.Background(), request())
	require.NoError(t, err)
	require.Len(t, h.relay.submitted, 2)
	assert.Equal(t, 2, h.checkpoints.calls)
	assert.NotSame(t, h.relay.submitted[0][0], h.relay.submitted[1][0])
}

func TestExecute_FailedOnLastPollIsNotResubmitted(t *testing.T) {
	h := newHarness(t)
	h.relay.statuses = []models.SettlementStatus{models.StatusPending, models.StatusPending, models.StatusFailed}
	cfg := DefaultConfig()
	cfg.MaxAttempts = 1
	o := h.orchestrator(t, cfg)

	_, err := o.Execute(context.Background(), request())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotLanded)
	assert.ErrorIs(t, err, ErrRetriesExhausted)

	// only the original bundle went out and every submission was polled
	require.Len(t, h.relay.submitted, 1)
	assert.Equal(t, []string{"bundle-1", "bundle-1", "bundle-1"}, h.relay.polledIDs)
	assert.Equal(t, 1, h.checkpoints.calls)
}

func TestExecute_NeverLands(t *testing.T) {
	h := newHarness(t)
	cfg := DefaultConfig()
	cfg.MaxAttempts = 2
	o := h.orchestrator(t, cfg)

	res, err := o.Execute(context.Background(), request())
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.ErrorIs(t, err, ErrNotLanded)

	var ae *AttemptError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, StageConfirming, ae.Stage)
	assert.Equal(t, 1, ae.Attempt)

	assert.Len(t, h.relay.submitted, 2)
	assert.Equal(t, 6, h.relay.polls)
	assert.Equal(t, []uint16{100, 150}, h.quotes.slippages)
}

func TestExecute_RequestMaxAttemptsOverrides(t *testing.T) {
	h := newHarness(t)
	h.quotes.failUntil = 100
	o := h.orchestrator(t, DefaultConfig())

	req := request()
	req.MaxAttempts = 1
	_, err := o.Execute(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoRoute)
	assert.Equal(t, 1, h.quotes.calls)
	assert.Empty(t, h.waits)
}

func TestExecute_ContextCancelledDuringBackoff(t *testing.T) {
	h := newHarness(t)
	h.quotes.failUntil = 100
	o := h.orchestrator(t, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	o.wait = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	_, err := o.Execute(ctx, request())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, h.quotes.calls)
}

func TestExecuteWithQuotes_UsesPrequotedFirstAttempt(t *testing.T) {
	h := newHarness(t)
	h.relay.statuses = []models.SettlementStatus{models.StatusLanded}
	o := h.orchestrator(t, DefaultConfig())

	pre := &Quote{InputMint: mintA, OutputMint: mintB, InAmount: 2_000_000, OutAmount: 7, SlippageBps: 100}
	res, err := o.ExecuteWithQuotes(context.Background(), request(), []*Quote{pre})
	require.NoError(t, err)

	assert.Zero(t, h.quotes.calls)
	require.Len(t, h.builder.calls, 1)
	assert.Same(t, pre, h.builder.calls[0])
	assert.Same(t, pre, res.Quotes[0])
}

func TestExecuteWithQuotes_IgnoresMismatchedQuotes(t *testing.T) {
	h := newHarness(t)
	h.relay.statuses = []models.SettlementStatus{models.StatusLanded}
	o := h.orchestrator(t, DefaultConfig())

	pre := &Quote{InputMint: mintA, OutputMint: mintB, OutAmount: 7}
	_, err := o.ExecuteWithQuotes(context.Background(), request(), []*Quote{pre, pre})
	require.NoError(t, err)
	assert.Equal(t, 1, h.quotes.calls)
}

func TestExecute_ChainsMultiLegRoute(t *testing.T) {
	h := newHarness(t)
	h.quotes.ratio = 3
	tableX := solana.NewWallet().PublicKey()
	tableY := solana.NewWallet().PublicKey()
	h.builder.tables = [][]solana.PublicKey{{tableX}, {tableX, tableY}}
	h.relay.statuses = []models.SettlementStatus{models.StatusLanded}
	o := h.orchestrator(t, DefaultConfig())

	req := SwapRequest{InputMint: mintA, Via: []solana.PublicKey{mintB}, OutputMint: mintA, Amount: 10, SlippageBps: 30}
	res, err := o.Execute(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, []uint64{10, 30}, h.quotes.amounts)
	require.Len(t, res.Quotes, 2)
	assert.Equal(t, uint64(90), res.Quotes[1].OutAmount)
	assert.Len(t, h.builder.calls, 2)
	assert.Equal(t, []solana.PublicKey{tableX, tableY}, h.tables.requested)

	// two budget instructions plus setup, swap, cleanup per leg
	assert.Len(t, h.relay.submitted[0][0].Message.Instructions, 8)
}

func TestExecute_RejectsInvalidRequest(t *testing.T) {
	h := newHarness(t)
	o := h.orchestrator(t, DefaultConfig())

	_, err := o.Execute(context.Background(), SwapRequest{InputMint: mintA, OutputMint: mintA, Amount: 1})
	require.Error(t, err)

	_, err = o.Execute(context.Background(), SwapRequest{InputMint: mintA, OutputMint: mintC})
	require.Error(t, err)
	assert.Zero(t, h.quotes.calls)
}

func TestExecute_FeeFallback(t *testing.T) {
	h := newHarness(t)
	h.fees.err = errors.New("node down")
	h.relay.statuses = []models.SettlementStatus{models.StatusLanded}
	cfg := DefaultConfig()
	cfg.DefaultPriorityFee = 777
	o := h.orchestrator(t, cfg)

	_, err := o.Execute(context.Background(), request())
	require.NoError(t, err)

	_, data := ixData(t, h.relay.submitted[0][0], 1)
	assert.Equal(t, uint64(777), binary.LittleEndian.Uint64(data[1:9]))
}

func TestExecute_SimulationRounds(t *testing.T) {
	t.Run("recovers within rounds", func(t *testing.T) {
		h := newHarness(t)
		boom := errors.New("blockhash not found")
		h.sim.errs = []error{boom, boom}
		h.relay.statuses = []models.SettlementStatus{models.StatusLanded}
		o := h.orchestrator(t, DefaultConfig())

		res, err := o.Execute(context.Background(), request())
		require.NoError(t, err)
		assert.Equal(t, 1, res.Attempts)
		assert.Equal(t, 3, h.sim.calls)
	})

	t.Run("fails the attempt after all rounds", func(t *testing.T) {
		h := newHarness(t)
		boom := errors.New("custom program error")
		h.sim.errs = []error{boom, boom, boom}
		cfg := DefaultConfig()
		cfg.SimulationRounds = 3
		cfg.MaxAttempts = 1
		o := h.orchestrator(t, cfg)

		_, err := o.Execute(context.Background(), request())
		require.Error(t, err)
		var ae *AttemptError
		require.ErrorAs(t, err, &ae)
		assert.Equal(t, StageEstimating, ae.Stage)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 3, h.sim.calls)
	})
}

func TestWithMargin(t *testing.T) {
	assert.Equal(t, uint32(120_000), withMargin(100_000, 20))
	assert.Equal(t, uint32(122), withMargin(101, 20))
	assert.Equal(t, uint32(0), withMargin(0, 20))
	assert.Equal(t, txbuild.MaxComputeUnits, withMargin(1_300_000, 20))
}

func TestSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, Sleep(context.Background(), time.Millisecond))
	assert.NoError(t, Sleep(context.Background(), 0))
}
