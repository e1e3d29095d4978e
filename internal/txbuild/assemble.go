package txbuild

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	lookup "github.com/gagliardetto/solana-go/programs/address-lookup-table"
	"github.com/mr-tron/base58"
)

// ErrNoInstructions is returned when asked to build an empty transaction.
var ErrNoInstructions = errors.New("txbuild: no instructions")

// Budget is the compute budget prepended to every swap transaction.
type Budget struct {
	Units              uint32
	MicroLamportsPerCU uint64
}

// Build assembles a versioned transaction. When budget is non-nil the compute
// unit limit and price instructions are prepended, in that order. Lookup
// tables switch the message to v0.
func Build(
	payer solana.PublicKey,
	instructions []solana.Instruction,
	checkpoint solana.Hash,
	tables map[solana.PublicKey]solana.PublicKeySlice,
	budget *Budget,
) (*solana.Transaction, error) {
	if len(instructions) == 0 {
		return nil, ErrNoInstructions
	}

	ixs := make([]solana.Instruction, 0, len(instructions)+2)
	if budget != nil {
		ixs = append(ixs,
			NewSetComputeUnitLimitIx(budget.Units),
			NewSetComputeUnitPriceIx(budget.MicroLamportsPerCU),
		)
	}
	ixs = append(ixs, instructions...)

	opts := []solana.TransactionOption{solana.TransactionPayer(payer)}
	if len(tables) > 0 {
		opts = append(opts, solana.TransactionAddressTables(tables))
	}

	tx, err := solana.NewTransaction(ixs, checkpoint, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	return tx, nil
}

// EncodeForSimulation serializes tx to base64 with zeroed signatures. The
// simulator runs with signature verification off, so the placeholders only
// need the right count.
func EncodeForSimulation(tx *solana.Transaction) (string, error) {
	cp := *tx
	cp.Signatures = make([]solana.Signature, tx.Message.Header.NumRequiredSignatures)
	raw, err := cp.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to serialize transaction: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// EncodeBase58 serializes a signed transaction the way the bundle relay expects.
func EncodeBase58(tx *solana.Transaction) (string, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to serialize transaction: %w", err)
	}
	return base58.Encode(raw), nil
}

// Signature returns the first (fee payer) signature of a signed transaction.
func Signature(tx *solana.Transaction) (solana.Signature, error) {
	if len(tx.Signatures) == 0 || tx.Signatures[0] == (solana.Signature{}) {
		return solana.Signature{}, fmt.Errorf("transaction is not signed")
	}
	return tx.Signatures[0], nil
}

// DecodeLookupTable returns the addresses stored in an address lookup table account.
func DecodeLookupTable(data []byte) (solana.PublicKeySlice, error) {
	state, err := lookup.DecodeAddressLookupTableState(data)
	if err != nil {
		return nil, fmt.Errorf("decode lookup table: %w", err)
	}
	return state.Addresses, nil
}
