package swapengine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/jito"
	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/jupiter"
	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/models"
	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/txbuild"
	"github.com/gagliardetto/solana-go"
)

// JupiterRoutes prices legs and builds their instructions through the
// Jupiter swap API.
type JupiterRoutes struct {
	client *jupiter.Client

	// RestrictIntermediateTokens limits multi-hop routes to liquid
	// intermediates when set.
	RestrictIntermediateTokens *bool
	MaxAccounts                *uint64

	now func() time.Time
}

func NewJupiterRoutes(client *jupiter.Client) *JupiterRoutes {
	return &JupiterRoutes{client: client, now: time.Now}
}

func (j *JupiterRoutes) Quote(ctx context.Context, inputMint, outputMint solana.PublicKey, amount uint64, slippageBps uint16) (*Quote, error) {
	resp, err := j.client.Quote(ctx, jupiter.QuoteRequest{
		InputMint:                  inputMint.String(),
		OutputMint:                 outputMint.String(),
		Amount:                     strconv.FormatUint(amount, 10),
		SlippageBps:                &slippageBps,
		SwapMode:                   "ExactIn",
		RestrictIntermediateTokens: j.RestrictIntermediateTokens,
		MaxAccounts:                j.MaxAccounts,
	})
	if err != nil {
		if errors.Is(err, jupiter.ErrNoRoute) {
			return nil, fmt.Errorf("%w: %w", ErrNoRoute, err)
		}
		return nil, err
	}

	in, err := parseAmount(resp.InAmount, amount)
	if err != nil {
		return nil, fmt.Errorf("inAmount: %w", err)
	}
	out, err := parseAmount(resp.OutAmount, 0)
	if err != nil {
		return nil, fmt.Errorf("outAmount: %w", err)
	}
	if out == 0 {
		return nil, ErrNoRoute
	}
	minOut, err := parseAmount(resp.OtherAmountThreshold, out)
	if err != nil {
		return nil, fmt.Errorf("otherAmountThreshold: %w", err)
	}

	hops := make([]string, 0, len(resp.RoutePlan))
	for _, step := range resp.RoutePlan {
		label := step.SwapInfo.Label
		if label == "" {
			label = step.SwapInfo.AmmKey
		}
		hops = append(hops, label)
	}

	return &Quote{
		InputMint:    inputMint,
		OutputMint:   outputMint,
		InAmount:     in,
		OutAmount:    out,
		MinOutAmount: minOut,
		SlippageBps:  slippageBps,
		Route:        hops,
		Payload:      resp,
		QuotedAt:     j.now(),
	}, nil
}

// Instructions drops the aggregator's compute budget instructions; the
// orchestrator sets its own.
func (j *JupiterRoutes) Instructions(ctx context.Context, quote *Quote, user solana.PublicKey) (*LegInstructions, error) {
	resp, ok := quote.Payload.(*jupiter.QuoteResponse)
	if !ok || resp == nil {
		return nil, fmt.Errorf("quote was not produced by jupiter")
	}

	ixs, err := j.client.SwapInstructions(ctx, resp, user.String())
	if err != nil {
		return nil, err
	}

	leg := &LegInstructions{}
	for i := range ixs.SetupInstructions {
		ix, err := ixs.SetupInstructions[i].ToSolana()
		if err != nil {
			return nil, fmt.Errorf("setup instruction %d: %w", i, err)
		}
		leg.Setup = append(leg.Setup, ix)
	}
	if leg.Swap, err = ixs.SwapInstruction.ToSolana(); err != nil {
		return nil, fmt.Errorf("swap instruction: %w", err)
	}
	if ixs.CleanupInstruction != nil {
		if leg.Cleanup, err = ixs.CleanupInstruction.ToSolana(); err != nil {
			return nil, fmt.Errorf("cleanup instruction: %w", err)
		}
	}
	if leg.LookupTables, err = ixs.LookupTables(); err != nil {
		return nil, err
	}
	return leg, nil
}

func parseAmount(s string, def uint64) (uint64, error) {
	if s == "" {
		return def, nil
	}
	return strconv.ParseUint(s, 10, 64)
}

// JitoRelay submits bundles to a Jito block engine.
type JitoRelay struct {
	client *jito.Client
}

func NewJitoRelay(client *jito.Client) *JitoRelay {
	return &JitoRelay{client: client}
}

func (r *JitoRelay) TipAccount(ctx context.Context) (solana.PublicKey, error) {
	return r.client.RandomTipAccount(ctx)
}

func (r *JitoRelay) Submit(ctx context.Context, txs []*solana.Transaction) (string, error) {
	encoded := make([]string, 0, len(txs))
	for _, tx := range txs {
		s, err := txbuild.EncodeBase58(tx)
		if err != nil {
			return "", err
		}
		encoded = append(encoded, s)
	}
	return r.client.SendBundle(ctx, encoded)
}

func (r *JitoRelay) Status(ctx context.Context, bundleID string) (models.SettlementStatus, uint64, error) {
	st, err := r.client.InflightStatus(ctx, bundleID)
	if err != nil {
		return models.StatusUnknown, 0, err
	}
	return st.Status, st.LandedSlot, nil
}
