package tokens

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDecimals struct {
	calls int
	d     uint8
	err   error
}

func (s *stubDecimals) MintDecimals(ctx context.Context, mint solana.PublicKey) (uint8, error) {
	s.calls++
	return s.d, s.err
}

func TestToRaw(t *testing.T) {
	tests := []struct {
		amount   string
		decimals uint8
		want     uint64
	}{
		{"0.002", 9, 2_000_000},
		{"0.0015", 9, 1_500_000},
		{"0.01", 9, 10_000_000},
		{"1", 6, 1_000_000},
		{"1.2345678", 6, 1_234_567},
		{"0", 9, 0},
	}
	for _, tt := range tests {
		got, err := ToRaw(tt.amount, tt.decimals)
		require.NoError(t, err, tt.amount)
		assert.Equal(t, tt.want, got, tt.amount)
	}

	_, err := ToRaw("-1", 9)
	assert.Error(t, err)
	_, err = ToRaw("abc", 9)
	assert.Error(t, err)
	_, err = ToRaw("100000000000", 9)
	assert.Error(t, err)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "0.002", Format(2_000_000, 9))
	assert.Equal(t, "1.5", Format(1_500_000, 6))
	assert.Equal(t, "0", Format(0, 6))
}

func TestRegistry_BuiltinsAndResolve(t *testing.T) {
	r := NewRegistry(nil)

	sol, err := r.Resolve("sol")
	require.NoError(t, err)
	assert.Equal(t, "So11111111111111111111111111111111111111112", sol.String())
	assert.Equal(t, "SOL", r.Symbol(sol))

	d, err := r.Decimals(context.Background(), sol)
	require.NoError(t, err)
	assert.Equal(t, uint8(9), d)

	usdc, err := r.Resolve("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	require.NoError(t, err)
	assert.Equal(t, "USDC", r.Symbol(usdc))

	_, err = r.Resolve("NOPE")
	assert.Error(t, err)
}

func TestRegistry_DecimalsFallbackCached(t *testing.T) {
	src := &stubDecimals{d: 5}
	r := NewRegistry(src)
	mint := solana.NewWallet().PublicKey()

	d, err := r.Decimals(context.Background(), mint)
	require.NoError(t, err)
	assert.Equal(t, uint8(5), d)

	_, err = r.Decimals(context.Background(), mint)
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)

	failing := NewRegistry(&stubDecimals{err: errors.New("rpc down")})
	_, err = failing.Decimals(context.Background(), solana.NewWallet().PublicKey())
	assert.Error(t, err)
}

func TestRegistry_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"symbol":"SPX","mint":"J3NKxxXZcnNiMjKw9hYb2K4LUxgwB6t1FtPtQVsv3KFr","decimals":8}]`), 0o600))

	r := NewRegistry(nil)
	require.NoError(t, r.LoadFile(path))

	spx, err := r.Resolve("SPX")
	require.NoError(t, err)
	d, err := r.Decimals(context.Background(), spx)
	require.NoError(t, err)
	assert.Equal(t, uint8(8), d)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`[{"symbol":"X","mint":"nope","decimals":1}]`), 0o600))
	assert.Error(t, r.LoadFile(bad))
}
