package flags

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/constants"
)

var ErrNotFound = errors.New("flag not found")

type Flag struct {
	Key       string    `json:"key"`
	Value     bool      `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Backend is what the status surface and scheduler need from a flag store.
type Backend interface {
	Upsert(ctx context.Context, key string, value bool) (*Flag, error)
	Get(ctx context.Context, key string) (*Flag, error)
	List(ctx context.Context) ([]*Flag, error)
	Delete(ctx context.Context, key string) error
}

// StrategyKey is the kill switch key of a strategy.
func StrategyKey(strategy string) string {
	return fmt.Sprintf(constants.StrategyEnabledFlag, strategy)
}

// Enabled reads a boolean flag, returning def when the flag is not set. On a
// lookup error def is returned together with the error.
func Enabled(ctx context.Context, b Backend, key string, def bool) (bool, error) {
	if b == nil {
		return def, nil
	}
	f, err := b.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return def, err
	}
	return f.Value, nil
}
