// Package tokens maps mints to symbols and decimals and converts between
// human-readable amounts and raw smallest units.
package tokens

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"
	"sync"

	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/constants"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

// Token describes one mint.
type Token struct {
	Symbol   string `json:"symbol"`
	Mint     string `json:"mint"`
	Decimals uint8  `json:"decimals"`
}

// DecimalsSource resolves decimals of mints the registry does not know.
type DecimalsSource interface {
	MintDecimals(ctx context.Context, mint solana.PublicKey) (uint8, error)
}

// Registry is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	byMint   map[solana.PublicKey]Token
	bySymbol map[string]solana.PublicKey
	source   DecimalsSource
}

// NewRegistry seeds the registry with the built-in tokens.
func NewRegistry(source DecimalsSource) *Registry {
	r := &Registry{
		byMint:   make(map[solana.PublicKey]Token),
		bySymbol: make(map[string]solana.PublicKey),
		source:   source,
	}
	for _, t := range constants.KnownTokens {
		_ = r.Add(Token{Symbol: t.Symbol, Mint: t.Mint, Decimals: t.Decimals})
	}
	return r
}

// LoadFile adds tokens from a JSON array of {symbol, mint, decimals}.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read token registry: %w", err)
	}

	var entries []Token
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("failed to parse token registry: %w", err)
	}
	for i, t := range entries {
		if err := r.Add(t); err != nil {
			return fmt.Errorf("token %d (%s): %w", i, t.Symbol, err)
		}
	}
	return nil
}

// Add registers or replaces a token.
func (r *Registry) Add(t Token) error {
	mint, err := solana.PublicKeyFromBase58(strings.TrimSpace(t.Mint))
	if err != nil {
		return fmt.Errorf("invalid mint: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byMint[mint] = t
	if t.Symbol != "" {
		r.bySymbol[strings.ToUpper(t.Symbol)] = mint
	}
	return nil
}

// Resolve accepts either a symbol known to the registry or a base58 mint.
func (r *Registry) Resolve(symbolOrMint string) (solana.PublicKey, error) {
	s := strings.TrimSpace(symbolOrMint)
	r.mu.RLock()
	mint, ok := r.bySymbol[strings.ToUpper(s)]
	r.mu.RUnlock()
	if ok {
		return mint, nil
	}
	mint, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("unknown token %q", symbolOrMint)
	}
	return mint, nil
}

// Symbol returns the registered symbol, or a shortened mint.
func (r *Registry) Symbol(mint solana.PublicKey) string {
	r.mu.RLock()
	t, ok := r.byMint[mint]
	r.mu.RUnlock()
	if ok && t.Symbol != "" {
		return t.Symbol
	}
	s := mint.String()
	if len(s) > 8 {
		return s[:4] + ".." + s[len(s)-4:]
	}
	return s
}

// Decimals returns the mint's decimals, asking the chain for unknown mints
// and remembering the answer.
func (r *Registry) Decimals(ctx context.Context, mint solana.PublicKey) (uint8, error) {
	r.mu.RLock()
	t, ok := r.byMint[mint]
	r.mu.RUnlock()
	if ok {
		return t.Decimals, nil
	}
	if r.source == nil {
		return 0, fmt.Errorf("decimals unknown for mint %s", mint)
	}
	d, err := r.source.MintDecimals(ctx, mint)
	if err != nil {
		return 0, fmt.Errorf("decimals for mint %s: %w", mint, err)
	}
	r.mu.Lock()
	r.byMint[mint] = Token{Mint: mint.String(), Decimals: d}
	r.mu.Unlock()
	return d, nil
}

// ToRaw converts a human amount such as "0.002" into raw units. Fractional
// remainders below one raw unit are truncated.
func ToRaw(amount string, decimals uint8) (uint64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("invalid amount %q: negative", amount)
	}
	raw := d.Shift(int32(decimals)).Truncate(0)
	if !raw.BigInt().IsUint64() {
		return 0, fmt.Errorf("invalid amount %q: overflows uint64", amount)
	}
	return raw.BigInt().Uint64(), nil
}

// Format renders raw units with the given decimals, trimming trailing zeros.
func Format(raw uint64, decimals uint8) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(raw), -int32(decimals)).String()
}
