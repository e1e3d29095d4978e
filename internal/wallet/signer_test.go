package wallet

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keygenJSON(t *testing.T, priv solana.PrivateKey) string {
	ints := make([]int, len(priv))
	for i, b := range priv {
		ints[i] = int(b)
	}
	out, err := json.Marshal(ints)
	require.NoError(t, err)
	return string(out)
}

func TestFromString_Base58AndJSON(t *testing.T) {
	priv := solana.NewWallet().PrivateKey

	w1, err := FromString(base58.Encode(priv))
	require.NoError(t, err)
	assert.Equal(t, priv.PublicKey(), w1.PublicKey())

	w2, err := FromString(keygenJSON(t, priv))
	require.NoError(t, err)
	assert.Equal(t, w1.Address(), w2.Address())
}

func TestFromString_Invalid(t *testing.T) {
	_, err := FromString("not-base58-0OIl")
	assert.Error(t, err)

	_, err = FromString("[1,2,3]")
	assert.Error(t, err)

	_, err = FromString("[300]")
	assert.Error(t, err)

	_, err = FromString(base58.Encode([]byte{1, 2, 3}))
	assert.Error(t, err)
}

func TestLoad_PrefersInlineThenFile(t *testing.T) {
	inline := solana.NewWallet().PrivateKey
	fileKey := solana.NewWallet().PrivateKey

	path := filepath.Join(t.TempDir(), "id.json")
	require.NoError(t, os.WriteFile(path, []byte(keygenJSON(t, fileKey)), 0o600))

	w, err := Load(base58.Encode(inline), path)
	require.NoError(t, err)
	assert.Equal(t, inline.PublicKey(), w.PublicKey())

	w, err = Load("", path)
	require.NoError(t, err)
	assert.Equal(t, fileKey.PublicKey(), w.PublicKey())

	_, err = Load("", filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, ErrNoCredential)
}

func TestSignTransaction(t *testing.T) {
	w, err := New(solana.NewWallet().PrivateKey)
	require.NoError(t, err)

	tx, err := solana.NewTransaction(
		[]solana.Instruction{solana.NewInstruction(solana.MemoProgramID, solana.AccountMetaSlice{
			{PublicKey: w.PublicKey(), IsSigner: true, IsWritable: true},
		}, []byte("hi"))},
		solana.Hash{1},
		solana.TransactionPayer(w.PublicKey()),
	)
	require.NoError(t, err)

	require.NoError(t, w.SignTransaction(tx))
	require.Len(t, tx.Signatures, 1)
	assert.NoError(t, tx.VerifySignatures())
}
