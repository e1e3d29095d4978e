package wallet

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// ErrNoCredential is returned when neither an inline key nor a keygen file is available.
var ErrNoCredential = errors.New("wallet: no private key configured")

// Wallet holds the signing identity. It is immutable once loaded.
type Wallet struct {
	priv solana.PrivateKey
	pub  solana.PublicKey
}

// New wraps an existing private key.
func New(priv solana.PrivateKey) (*Wallet, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("wallet: expected %d bytes, got %d", ed25519.PrivateKeySize, len(priv))
	}
	return &Wallet{priv: priv, pub: priv.PublicKey()}, nil
}

// FromString parses a base58-encoded 64-byte key or a solana-keygen JSON array.
func FromString(s string) (*Wallet, error) {
	priv, err := parsePrivateKey(s)
	if err != nil {
		return nil, err
	}
	return New(priv)
}

// FromKeygenFile reads a solana-keygen JSON keypair file.
func FromKeygenFile(path string) (*Wallet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("wallet: read keypair file: %w", err)
	}
	return FromString(string(data))
}

// Load prefers an inline key and falls back to the keygen file at path.
// An empty path means the solana CLI default location.
func Load(inlineKey, path string) (*Wallet, error) {
	if strings.TrimSpace(inlineKey) != "" {
		return FromString(inlineKey)
	}
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, ErrNoCredential
		}
		path = filepath.Join(home, ".config", "solana", "id.json")
	}
	w, err := FromKeygenFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoCredential
	}
	return w, err
}

func (w *Wallet) Address() string             { return w.pub.String() }
func (w *Wallet) PublicKey() solana.PublicKey { return w.pub }

// SignTransaction signs every slot of tx that belongs to this wallet.
func (w *Wallet) SignTransaction(tx *solana.Transaction) error {
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(w.pub) {
			return &w.priv
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to sign transaction: %w", err)
	}
	return nil
}

func parsePrivateKey(s string) (solana.PrivateKey, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") {
		var ints []int
		if err := json.Unmarshal([]byte(s), &ints); err != nil {
			return nil, fmt.Errorf("wallet: invalid JSON private key: %w", err)
		}
		b := make([]byte, len(ints))
		for i, v := range ints {
			if v < 0 || v > 255 {
				return nil, fmt.Errorf("wallet: invalid byte at %d: %d", i, v)
			}
			b[i] = byte(v)
		}
		if len(b) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("wallet: expected %d bytes, got %d", ed25519.PrivateKeySize, len(b))
		}
		return solana.PrivateKey(b), nil
	}

	raw, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("wallet: invalid base58 private key: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("wallet: expected %d bytes, got %d", ed25519.PrivateKeySize, len(raw))
	}
	return solana.PrivateKey(raw), nil
}
