// Package chain wraps the Solana RPC calls the swap workflow depends on:
// blockhash checkpoints, lookup table resolution, simulation, priority fee
// estimation and token balance queries.
package chain

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/rpc"
	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/txbuild"
	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
)

// ErrInsufficientFundsForRent is returned when simulation shows the wallet
// cannot cover rent for accounts the swap would create.
var ErrInsufficientFundsForRent = errors.New("insufficient funds for rent")

const (
	// DefaultPriorityFee is used when the node reports no recent fees.
	DefaultPriorityFee uint64 = 10_000
	// feeSampleWindow is how many of the most recent slots are averaged.
	feeSampleWindow = 150

	rentShortfallMarker = "InsufficientFundsForRent"
)

// Client answers chain queries through a JSON-RPC endpoint.
type Client struct {
	rpc        *rpc.Client
	commitment string
	logger     *logrus.Logger
}

func NewClient(rpcClient *rpc.Client, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
	}
	return &Client{rpc: rpcClient, commitment: "finalized", logger: logger}
}

// LatestCheckpoint returns a finalized blockhash.
func (c *Client) LatestCheckpoint(ctx context.Context) (solana.Hash, error) {
	res, err := c.rpc.GetLatestBlockhash(ctx, c.commitment)
	if err != nil {
		return solana.Hash{}, err
	}
	hash, err := solana.HashFromBase58(res.Value.Blockhash)
	if err != nil {
		return solana.Hash{}, fmt.Errorf("invalid blockhash format: %w", err)
	}
	return hash, nil
}

// ResolveLookupTables fetches and decodes each address lookup table.
func (c *Client) ResolveLookupTables(ctx context.Context, addrs []solana.PublicKey) (map[solana.PublicKey]solana.PublicKeySlice, error) {
	out := make(map[solana.PublicKey]solana.PublicKeySlice, len(addrs))
	for _, addr := range addrs {
		if _, ok := out[addr]; ok {
			continue
		}
		acct, err := c.rpc.GetAccountInfo(ctx, addr.String())
		if err != nil {
			return nil, fmt.Errorf("lookup table %s: %w", addr, err)
		}
		if acct == nil || len(acct.Data) == 0 {
			return nil, fmt.Errorf("lookup table %s: account not found", addr)
		}
		raw, err := base64.StdEncoding.DecodeString(acct.Data[0])
		if err != nil {
			return nil, fmt.Errorf("lookup table %s: %w", addr, err)
		}
		entries, err := txbuild.DecodeLookupTable(raw)
		if err != nil {
			return nil, fmt.Errorf("lookup table %s: %w", addr, err)
		}
		out[addr] = entries
	}
	return out, nil
}

// SimulateUnits runs one simulation of tx and returns the compute units it
// consumed. A rent shortfall is reported as ErrInsufficientFundsForRent.
func (c *Client) SimulateUnits(ctx context.Context, tx *solana.Transaction) (uint64, error) {
	enc, err := txbuild.EncodeForSimulation(tx)
	if err != nil {
		return 0, err
	}

	res, err := c.rpc.SimulateTransaction(ctx, enc)
	if err != nil {
		return 0, err
	}

	if res.Err != nil {
		detail := fmt.Sprintf("%v", res.Err)
		if strings.Contains(detail, rentShortfallMarker) || logsContain(res.Logs, rentShortfallMarker) {
			return 0, ErrInsufficientFundsForRent
		}
		c.logger.WithFields(logrus.Fields{
			"err":  detail,
			"logs": len(res.Logs),
		}).Debug("simulation failed")
		return 0, fmt.Errorf("simulation failed: %s", detail)
	}
	if res.UnitsConsumed == nil {
		return 0, fmt.Errorf("simulation returned no unitsConsumed")
	}
	return *res.UnitsConsumed, nil
}

// PriorityFee averages the most recent prioritization fees, in micro-lamports
// per compute unit, rounding up.
func (c *Client) PriorityFee(ctx context.Context) (uint64, error) {
	fees, err := c.rpc.GetRecentPrioritizationFees(ctx, nil)
	if err != nil {
		return 0, err
	}
	return averageFee(fees), nil
}

func averageFee(fees []rpc.PrioritizationFee) uint64 {
	if len(fees) == 0 {
		return DefaultPriorityFee
	}
	if len(fees) > feeSampleWindow {
		fees = fees[len(fees)-feeSampleWindow:]
	}
	var sum float64
	for _, f := range fees {
		sum += float64(f.PrioritizationFee)
	}
	return uint64(math.Ceil(sum / float64(len(fees))))
}

// TokenBalance returns the raw balance of owner's associated token account
// for mint. Any failure, including a missing account, reads as zero.
func (c *Client) TokenBalance(ctx context.Context, owner, mint solana.PublicKey) uint64 {
	log := c.logger.WithFields(logrus.Fields{"owner": owner.String(), "mint": mint.String()})

	ata, err := txbuild.AssociatedTokenAddress(owner, mint)
	if err != nil {
		log.WithError(err).Debug("ata derivation failed")
		return 0
	}
	bal, err := c.rpc.GetTokenAccountBalance(ctx, ata.String())
	if err != nil {
		log.WithError(err).Debug("token balance unavailable, treating as zero")
		return 0
	}
	n, err := strconv.ParseUint(bal.Amount, 10, 64)
	if err != nil {
		log.WithError(err).Debug("token balance unparsable, treating as zero")
		return 0
	}
	return n
}

// MintDecimals returns the decimals of mint.
func (c *Client) MintDecimals(ctx context.Context, mint solana.PublicKey) (uint8, error) {
	supply, err := c.rpc.GetTokenSupply(ctx, mint.String())
	if err != nil {
		return 0, err
	}
	if supply.Decimals < 0 || supply.Decimals > math.MaxUint8 {
		return 0, fmt.Errorf("mint %s: invalid decimals %d", mint, supply.Decimals)
	}
	return uint8(supply.Decimals), nil
}

func logsContain(logs []string, needle string) bool {
	for _, l := range logs {
		if strings.Contains(l, needle) {
			return true
		}
	}
	return false
}
