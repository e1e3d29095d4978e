package jito

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/models"
	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/rpc"
	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
)

const (
	DefaultBlockEngineURL = "https://mainnet.block-engine.jito.wtf"
	bundlesPath           = "/api/v1/bundles"
	tipAccountsTTL        = 10 * time.Minute
)

// Client talks to the block engine bundle API.
type Client struct {
	rpc    *rpc.Client
	logger *logrus.Logger

	mu          sync.Mutex
	tipAccounts []solana.PublicKey
	tipsFetched time.Time
	now         func() time.Time
}

// Config holds configuration for the block engine client
type Config struct {
	BaseURL      string
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	RateLimit    float64
	Logger       *logrus.Logger
}

func NewClient(cfg Config) *Client {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBlockEngineURL
	}
	if !strings.HasSuffix(base, bundlesPath) {
		base += bundlesPath
	}
	return &Client{
		rpc: rpc.NewClient(rpc.ClientConfig{
			BaseURL:      base,
			Timeout:      cfg.Timeout,
			MaxRetries:   cfg.MaxRetries,
			RetryBackoff: cfg.RetryBackoff,
			RateLimit:    cfg.RateLimit,
			Logger:       cfg.Logger,
		}),
		logger: cfg.Logger,
		now:    time.Now,
	}
}

// SendBundle submits base58-encoded signed transactions as one atomic bundle
// and returns the bundle id. It is never retried at the transport level; the
// orchestrator's attempt loop owns resending.
func (c *Client) SendBundle(ctx context.Context, txs []string) (string, error) {
	if len(txs) == 0 {
		return "", fmt.Errorf("bundle is empty")
	}
	id, err := rpc.CallResultOnce[string](ctx, c.rpc, "sendBundle", []any{txs})
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", fmt.Errorf("sendBundle: empty bundle id")
	}
	c.logger.WithFields(logrus.Fields{
		"bundle_id": id,
		"txs":       len(txs),
	}).Debug("bundle submitted")
	return id, nil
}

// BundleStatus is the in-flight status of one bundle.
type BundleStatus struct {
	BundleID   string
	Status     models.SettlementStatus
	LandedSlot uint64
}

// InflightStatus looks up the status of a recently submitted bundle.
func (c *Client) InflightStatus(ctx context.Context, bundleID string) (*BundleStatus, error) {
	type entry struct {
		BundleID   string  `json:"bundle_id"`
		Status     string  `json:"status"`
		LandedSlot *uint64 `json:"landed_slot"`
	}

	res, err := rpc.CallResult[rpc.ValueResult[[]entry]](ctx, c.rpc, "getInflightBundleStatuses", []any{[]string{bundleID}})
	if err != nil {
		return nil, err
	}

	for _, e := range res.Value {
		if e.BundleID != bundleID {
			continue
		}
		out := &BundleStatus{BundleID: e.BundleID, Status: models.ParseSettlementStatus(e.Status)}
		if e.LandedSlot != nil {
			out.LandedSlot = *e.LandedSlot
		}
		return out, nil
	}
	return &BundleStatus{BundleID: bundleID, Status: models.StatusUnknown}, nil
}

// TipAccounts returns the block engine's tip accounts, cached for a while.
func (c *Client) TipAccounts(ctx context.Context) ([]solana.PublicKey, error) {
	c.mu.Lock()
	if len(c.tipAccounts) > 0 && c.now().Sub(c.tipsFetched) < tipAccountsTTL {
		out := c.tipAccounts
		c.mu.Unlock()
		return out, nil
	}
	c.mu.Unlock()

	raw, err := rpc.CallResult[[]string](ctx, c.rpc, "getTipAccounts", []any{})
	if err != nil {
		return nil, err
	}

	accounts := make([]solana.PublicKey, 0, len(raw))
	for _, s := range raw {
		pk, err := solana.PublicKeyFromBase58(s)
		if err != nil {
			return nil, fmt.Errorf("invalid tip account %q: %w", s, err)
		}
		accounts = append(accounts, pk)
	}
	if len(accounts) == 0 {
		return nil, fmt.Errorf("getTipAccounts: no tip accounts")
	}

	c.mu.Lock()
	c.tipAccounts = accounts
	c.tipsFetched = c.now()
	c.mu.Unlock()
	return accounts, nil
}

// RandomTipAccount picks one tip account uniformly.
func (c *Client) RandomTipAccount(ctx context.Context) (solana.PublicKey, error) {
	accounts, err := c.TipAccounts(ctx)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return accounts[rand.IntN(len(accounts))], nil
}
