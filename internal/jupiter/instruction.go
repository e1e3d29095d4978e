package jupiter

import (
	"encoding/base64"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// ToSolana decodes the instruction into the solana-go form.
func (ix *Instruction) ToSolana() (solana.Instruction, error) {
	if ix == nil {
		return nil, fmt.Errorf("nil instruction")
	}
	programID, err := solana.PublicKeyFromBase58(ix.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("invalid programId %q: %w", ix.ProgramID, err)
	}
	data, err := base64.StdEncoding.DecodeString(ix.Data)
	if err != nil {
		return nil, fmt.Errorf("invalid data for program %s: %w", ix.ProgramID, err)
	}

	metas := make(solana.AccountMetaSlice, 0, len(ix.Accounts))
	for _, a := range ix.Accounts {
		pk, err := solana.PublicKeyFromBase58(a.Pubkey)
		if err != nil {
			return nil, fmt.Errorf("invalid account %q: %w", a.Pubkey, err)
		}
		metas = append(metas, solana.NewAccountMeta(pk, a.IsWritable, a.IsSigner))
	}
	return solana.NewInstruction(programID, metas, data), nil
}

// LookupTables parses the lookup table addresses of the response.
func (r *SwapInstructionsResponse) LookupTables() ([]solana.PublicKey, error) {
	out := make([]solana.PublicKey, 0, len(r.AddressLookupTableAddresses))
	for _, s := range r.AddressLookupTableAddresses {
		pk, err := solana.PublicKeyFromBase58(s)
		if err != nil {
			return nil, fmt.Errorf("invalid lookup table %q: %w", s, err)
		}
		out = append(out, pk)
	}
	return out, nil
}
