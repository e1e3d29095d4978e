package jupiter

import (
	"encoding/base64"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstruction_ToSolana(t *testing.T) {
	acct := solana.NewWallet().PublicKey()
	ix := &Instruction{
		ProgramID: solana.MemoProgramID.String(),
		Accounts: []AccountMeta{
			{Pubkey: acct.String(), IsSigner: true, IsWritable: false},
		},
		Data: base64.StdEncoding.EncodeToString([]byte("hi")),
	}

	got, err := ix.ToSolana()
	require.NoError(t, err)
	assert.Equal(t, solana.MemoProgramID, got.ProgramID())

	data, err := got.Data()
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), data)

	accounts := got.Accounts()
	require.Len(t, accounts, 1)
	assert.Equal(t, acct, accounts[0].PublicKey)
	assert.True(t, accounts[0].IsSigner)
	assert.False(t, accounts[0].IsWritable)
}

func TestInstruction_ToSolanaErrors(t *testing.T) {
	_, err := (&Instruction{ProgramID: "bad", Data: ""}).ToSolana()
	assert.Error(t, err)

	_, err = (&Instruction{ProgramID: solana.MemoProgramID.String(), Data: "!!"}).ToSolana()
	assert.Error(t, err)

	_, err = (&Instruction{
		ProgramID: solana.MemoProgramID.String(),
		Accounts:  []AccountMeta{{Pubkey: "nope"}},
	}).ToSolana()
	assert.Error(t, err)

	var nilIx *Instruction
	_, err = nilIx.ToSolana()
	assert.Error(t, err)
}

func TestSwapInstructionsResponse_LookupTables(t *testing.T) {
	a := solana.NewWallet().PublicKey()
	r := &SwapInstructionsResponse{AddressLookupTableAddresses: []string{a.String()}}
	got, err := r.LookupTables()
	require.NoError(t, err)
	assert.Equal(t, []solana.PublicKey{a}, got)

	r.AddressLookupTableAddresses = append(r.AddressLookupTableAddresses, "xyz")
	_, err = r.LookupTables()
	assert.Error(t, err)
}
