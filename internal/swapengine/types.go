package swapengine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/chain"
	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/models"
	"github.com/gagliardetto/solana-go"
)

var (
	// ErrInsufficientFundsForRent ends a request as skipped: the wallet cannot
	// pay rent for accounts the swap would open.
	ErrInsufficientFundsForRent = chain.ErrInsufficientFundsForRent

	// ErrNoRoute means the quote provider produced no usable route.
	ErrNoRoute = errors.New("no route")

	// ErrNotLanded means the poll budget ran out before the bundle landed.
	ErrNotLanded = errors.New("bundle did not land")

	// ErrRetriesExhausted wraps the last attempt error once no attempts remain.
	ErrRetriesExhausted = errors.New("swap retries exhausted")
)

// SwapRequest is one swap to carry out. Amount is in raw units of InputMint.
// Via lists intermediate mints; each leg after the first spends the previous
// leg's quoted output, and every leg lands in the same transaction.
type SwapRequest struct {
	InputMint   solana.PublicKey
	OutputMint  solana.PublicKey
	Via         []solana.PublicKey
	Amount      uint64
	SlippageBps uint16

	// MaxAttempts overrides the orchestrator default when positive.
	MaxAttempts int

	// SimulationRounds overrides the orchestrator default when positive.
	SimulationRounds int

	Label string
}

// Route returns the full mint path, input first.
func (r SwapRequest) Route() []solana.PublicKey {
	out := make([]solana.PublicKey, 0, len(r.Via)+2)
	out = append(out, r.InputMint)
	out = append(out, r.Via...)
	return append(out, r.OutputMint)
}

func (r SwapRequest) validate() error {
	if r.InputMint.IsZero() {
		return fmt.Errorf("input mint is required")
	}
	if r.OutputMint.IsZero() {
		return fmt.Errorf("output mint is required")
	}
	if r.Amount == 0 {
		return fmt.Errorf("amount must be > 0")
	}
	route := r.Route()
	for i := 1; i < len(route); i++ {
		if route[i].Equals(route[i-1]) {
			return fmt.Errorf("route leg %d swaps %s into itself", i, route[i])
		}
	}
	return nil
}

// Quote is a priced route for one leg. Payload is the provider's own form,
// handed back to the provider's instruction builder.
type Quote struct {
	InputMint    solana.PublicKey
	OutputMint   solana.PublicKey
	InAmount     uint64
	OutAmount    uint64
	MinOutAmount uint64
	SlippageBps  uint16
	Route        []string
	Payload      any
	QuotedAt     time.Time
}

// LegInstructions are the instructions that execute one quoted leg.
type LegInstructions struct {
	Setup        []solana.Instruction
	Swap         solana.Instruction
	Cleanup      solana.Instruction
	LookupTables []solana.PublicKey
}

// Plan is the unsigned content of a swap transaction.
type Plan struct {
	Instructions []solana.Instruction
	LookupTables map[solana.PublicKey]solana.PublicKeySlice
	ComputeUnits uint32
	PriorityFee  uint64
}

// Bundle is the signed swap and tip pair submitted to the relay. It is valid
// only for Checkpoint.
type Bundle struct {
	Transactions []*solana.Transaction
	Checkpoint   solana.Hash
	SignedAt     time.Time
}

// Result is returned when a request finishes without error.
type Result struct {
	Outcome    models.Outcome
	Signature  string
	BundleID   string
	LandedSlot uint64
	Attempts   int
	Polls      int
	Quotes     []*Quote
}

// Stage names one step of an attempt.
type Stage string

const (
	StageQuoting    Stage = "quoting"
	StagePlanning   Stage = "planning"
	StageEstimating Stage = "estimating"
	StageAssembling Stage = "assembling"
	StageSubmitting Stage = "submitting"
	StageConfirming Stage = "confirming"
)

// AttemptError records where an attempt failed.
type AttemptError struct {
	Attempt int
	Stage   Stage
	Err     error
}

func (e *AttemptError) Error() string {
	return fmt.Sprintf("attempt %d: %s: %v", e.Attempt+1, e.Stage, e.Err)
}

func (e *AttemptError) Unwrap() error { return e.Err }

// ResubmitMode controls what happens when the relay reports a bundle Failed.
type ResubmitMode string

const (
	// ResubmitRefresh re-signs the bundle against a fresh checkpoint.
	ResubmitRefresh ResubmitMode = "refresh"
	// ResubmitReuse resends the signed bundle while its checkpoint is young.
	ResubmitReuse ResubmitMode = "reuse"
)

// Collaborators

type QuoteProvider interface {
	Quote(ctx context.Context, inputMint, outputMint solana.PublicKey, amount uint64, slippageBps uint16) (*Quote, error)
}

type InstructionBuilder interface {
	Instructions(ctx context.Context, quote *Quote, user solana.PublicKey) (*LegInstructions, error)
}

type LookupTableResolver interface {
	ResolveLookupTables(ctx context.Context, addrs []solana.PublicKey) (map[solana.PublicKey]solana.PublicKeySlice, error)
}

type Simulator interface {
	SimulateUnits(ctx context.Context, tx *solana.Transaction) (uint64, error)
}

type CheckpointSource interface {
	LatestCheckpoint(ctx context.Context) (solana.Hash, error)
}

type FeeEstimator interface {
	PriorityFee(ctx context.Context) (uint64, error)
}

type Relay interface {
	TipAccount(ctx context.Context) (solana.PublicKey, error)
	Submit(ctx context.Context, txs []*solana.Transaction) (string, error)
	Status(ctx context.Context, bundleID string) (models.SettlementStatus, uint64, error)
}

type Signer interface {
	PublicKey() solana.PublicKey
	SignTransaction(tx *solana.Transaction) error
}
