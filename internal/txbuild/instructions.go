package txbuild

import (
	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/programs/system"
)

// ComputeBudgetProgramID is the native compute budget program.
var ComputeBudgetProgramID = computebudget.ProgramID

// MaxComputeUnits is the per-transaction compute ceiling, used while simulating.
const MaxComputeUnits uint32 = 1_400_000

// NewSetComputeUnitLimitIx caps the compute units the transaction may use.
func NewSetComputeUnitLimitIx(units uint32) solana.Instruction {
	return computebudget.NewSetComputeUnitLimitInstruction(units).Build()
}

// NewSetComputeUnitPriceIx sets the priority fee in micro-lamports per unit.
func NewSetComputeUnitPriceIx(microLamports uint64) solana.Instruction {
	return computebudget.NewSetComputeUnitPriceInstruction(microLamports).Build()
}

// NewTipIx transfers lamports from payer to a relay tip account.
func NewTipIx(from, tipAccount solana.PublicKey, lamports uint64) solana.Instruction {
	return system.NewTransferInstruction(lamports, from, tipAccount).Build()
}

// AssociatedTokenAddress derives the owner's associated token account for mint.
func AssociatedTokenAddress(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	return ata, err
}
