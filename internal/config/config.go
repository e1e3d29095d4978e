package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// RPC settings
	RPCUrl       string
	RPCRateLimit float64

	// HTTP client settings
	HTTPTimeout  time.Duration
	MaxRetries   int
	RetryBackoff time.Duration

	// Jupiter
	JupiterURL    string
	JupiterAPIKey string

	// Jito block engine
	JitoURL       string
	JitoRateLimit float64
	TipLamports   uint64

	// Wallet
	WalletPrivateKey  string
	WalletKeypairPath string

	// Redis settings (empty address disables flags and pub/sub)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Status server (empty address disables it)
	StatusAddr      string
	StatusAPIKey    string
	StatusRateLimit float64

	LogLevel          string
	TokenRegistryPath string

	// Strategy selection
	Strategy       string
	MaxRunDuration time.Duration

	// Swap orchestrator
	SwapMaxAttempts      int
	SwapRetryBackoff     time.Duration
	SlippageStep         float64
	MaxSlippageBps       uint16
	SimulationRounds     int
	ComputeUnitMarginPct uint64
	DefaultPriorityFee   uint64
	BundlePollInterval   time.Duration
	BundlePollAttempts   int
	ResubmitMode         string
	CheckpointMaxAge     time.Duration

	// Single swap loop
	SingleInput       string
	SingleOutput      string
	SingleAmount      string
	SingleSlippageBps uint16
	SingleInterval    time.Duration

	// Rebalancer
	RebalanceSource      string
	RebalanceAmount      string
	RebalanceSlippageBps uint16
	RebalanceTargets     []string
	RebalanceInterval    time.Duration
	RebalancePacing      time.Duration

	// Arbitrage scanner
	ArbBase             string
	ArbAmount           string
	ArbSlippageBps      uint16
	ArbThreshold        int64
	ArbIntermediates    []string
	ArbMaxAttempts      int
	ArbSimulationRounds int
	ArbInterval         time.Duration
	ArbPacing           time.Duration

	// keys whose basis point value did not parse or was out of range
	invalidBps []string
}

// maxBps is 100% in basis points.
const maxBps = 10_000

var defaultRebalanceTargets = []string{
	"USDC", "USDT", "mSOL", "JitoSOL", "BONK", "JupSOL", "PENGU",
	"RAY", "TRUMP", "MEW", "SPX", "POPCAT", "WBTC", "WIF",
}

func Load() *Config {
	var invalid []string
	bps := func(key string, defaultVal uint16) uint16 {
		v, ok := getBpsEnv(key, defaultVal)
		if !ok {
			invalid = append(invalid, key)
		}
		return v
	}

	cfg := &Config{
		// RPC
		RPCUrl:       getEnv("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com"),
		RPCRateLimit: getFloatEnv("RPC_RATE_LIMIT", 10),

		// HTTP
		HTTPTimeout:  getDurationEnv("HTTP_TIMEOUT", 30*time.Second),
		MaxRetries:   getIntEnv("MAX_RETRIES", 3),
		RetryBackoff: getDurationEnv("RETRY_BACKOFF", 500*time.Millisecond),

		// Jupiter
		JupiterURL:    getEnv("JUPITER_API_URL", "https://api.jup.ag/swap/v1"),
		JupiterAPIKey: getEnv("JUPITER_API_KEY", ""),

		// Jito
		JitoURL:       getEnv("JITO_BLOCK_ENGINE_URL", "https://mainnet.block-engine.jito.wtf"),
		JitoRateLimit: getFloatEnv("JITO_RATE_LIMIT", 1),
		TipLamports:   getUintEnv("JITO_TIP_LAMPORTS", 10_000),

		// Wallet
		WalletPrivateKey:  getEnv("WALLET_PRIVATE_KEY", ""),
		WalletKeypairPath: getEnv("WALLET_KEYPAIR_PATH", ""),

		// Redis
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		// Status server
		StatusAddr:      getEnv("STATUS_ADDR", ""),
		StatusAPIKey:    getEnv("STATUS_API_KEY", ""),
		StatusRateLimit: getFloatEnv("STATUS_RATE_LIMIT", 20),

		LogLevel:          getEnv("LOG_LEVEL", "info"),
		TokenRegistryPath: getEnv("TOKEN_REGISTRY_PATH", ""),

		Strategy:       getEnv("STRATEGY", "single"),
		MaxRunDuration: getDurationEnv("MAX_RUN_DURATION", 24*time.Hour),

		// Orchestrator
		SwapMaxAttempts:      getIntEnv("SWAP_MAX_ATTEMPTS", 5),
		SwapRetryBackoff:     getDurationEnv("SWAP_RETRY_BACKOFF", 2*time.Second),
		SlippageStep:         getFloatEnv("SWAP_SLIPPAGE_STEP", 0.5),
		MaxSlippageBps:       bps("SWAP_MAX_SLIPPAGE_BPS", 1000),
		SimulationRounds:     getIntEnv("SIMULATION_ROUNDS", 5),
		ComputeUnitMarginPct: getUintEnv("COMPUTE_UNIT_MARGIN_PCT", 20),
		DefaultPriorityFee:   getUintEnv("DEFAULT_PRIORITY_FEE", 10_000),
		BundlePollInterval:   getDurationEnv("BUNDLE_POLL_INTERVAL", 15*time.Second),
		BundlePollAttempts:   getIntEnv("BUNDLE_POLL_ATTEMPTS", 3),
		ResubmitMode:         getEnv("RESUBMIT_MODE", "refresh"),
		CheckpointMaxAge:     getDurationEnv("CHECKPOINT_MAX_AGE", 60*time.Second),

		// Single
		SingleInput:       getEnv("SINGLE_INPUT", "SOL"),
		SingleOutput:      getEnv("SINGLE_OUTPUT", "SPX"),
		SingleAmount:      getEnv("SINGLE_AMOUNT", "0.002"),
		SingleSlippageBps: bps("SINGLE_SLIPPAGE_BPS", 100),
		SingleInterval:    getDurationEnv("SINGLE_INTERVAL", 3*time.Second),

		// Rebalance
		RebalanceSource:      getEnv("REBALANCE_SOURCE", "SOL"),
		RebalanceAmount:      getEnv("REBALANCE_AMOUNT", "0.0015"),
		RebalanceSlippageBps: bps("REBALANCE_SLIPPAGE_BPS", 50),
		RebalanceTargets:     getListEnv("REBALANCE_TARGETS", defaultRebalanceTargets),
		RebalanceInterval:    getDurationEnv("REBALANCE_INTERVAL", 3*time.Minute),
		RebalancePacing:      getDurationEnv("REBALANCE_PACING", 3*time.Second),

		// Arbitrage
		ArbBase:             getEnv("ARB_BASE", "SOL"),
		ArbAmount:           getEnv("ARB_AMOUNT", "0.01"),
		ArbSlippageBps:      bps("ARB_SLIPPAGE_BPS", 30),
		ArbThreshold:        getInt64Env("ARB_THRESHOLD", 0),
		ArbIntermediates:    getListEnv("ARB_INTERMEDIATES", []string{"USDC"}),
		ArbMaxAttempts:      getIntEnv("ARB_MAX_ATTEMPTS", 1),
		ArbSimulationRounds: getIntEnv("ARB_SIMULATION_ROUNDS", 6),
		ArbInterval:         getDurationEnv("ARB_INTERVAL", 3*time.Second),
		ArbPacing:           getDurationEnv("ARB_PACING", 3*time.Second),
	}
	cfg.invalidBps = invalid
	return cfg
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.RPCUrl) == "" {
		errs = append(errs, errors.New("SOLANA_RPC_URL is required"))
	}
	if strings.TrimSpace(c.JupiterURL) == "" {
		errs = append(errs, errors.New("JUPITER_API_URL is required"))
	}
	switch c.Strategy {
	case "single", "rebalance", "arbitrage":
	default:
		errs = append(errs, fmt.Errorf("STRATEGY must be single, rebalance or arbitrage, got %q", c.Strategy))
	}
	switch c.ResubmitMode {
	case "refresh", "reuse":
	default:
		errs = append(errs, fmt.Errorf("RESUBMIT_MODE must be refresh or reuse, got %q", c.ResubmitMode))
	}
	if c.SwapMaxAttempts <= 0 {
		errs = append(errs, errors.New("SWAP_MAX_ATTEMPTS must be > 0"))
	}
	if c.SimulationRounds <= 0 {
		errs = append(errs, errors.New("SIMULATION_ROUNDS must be > 0"))
	}
	if c.BundlePollAttempts <= 0 {
		errs = append(errs, errors.New("BUNDLE_POLL_ATTEMPTS must be > 0"))
	}
	if c.SlippageStep < 0 {
		errs = append(errs, errors.New("SWAP_SLIPPAGE_STEP must be >= 0"))
	}
	if c.MaxRunDuration < 0 {
		errs = append(errs, errors.New("MAX_RUN_DURATION must be >= 0"))
	}
	if c.Strategy == "rebalance" && len(c.RebalanceTargets) == 0 {
		errs = append(errs, errors.New("REBALANCE_TARGETS must not be empty"))
	}
	if c.Strategy == "arbitrage" && len(c.ArbIntermediates) == 0 {
		errs = append(errs, errors.New("ARB_INTERMEDIATES must not be empty"))
	}
	for _, key := range c.invalidBps {
		errs = append(errs, fmt.Errorf("%s must be an integer between 0 and %d", key, maxBps))
	}
	for key, v := range map[string]uint16{
		"SWAP_MAX_SLIPPAGE_BPS":  c.MaxSlippageBps,
		"SINGLE_SLIPPAGE_BPS":    c.SingleSlippageBps,
		"REBALANCE_SLIPPAGE_BPS": c.RebalanceSlippageBps,
		"ARB_SLIPPAGE_BPS":       c.ArbSlippageBps,
	} {
		if v > maxBps {
			errs = append(errs, fmt.Errorf("%s must be <= %d, got %d", key, maxBps, v))
		}
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getInt64Env(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			return i
		}
	}
	return defaultVal
}

func getUintEnv(key string, defaultVal uint64) uint64 {
	if val := os.Getenv(key); val != "" {
		if u, err := strconv.ParseUint(val, 10, 64); err == nil {
			return u
		}
	}
	return defaultVal
}

// getBpsEnv parses a basis point value. ok is false when the variable is set
// but is not an integer in [0, 10000]; the default is returned then.
func getBpsEnv(key string, defaultVal uint16) (v uint16, ok bool) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, true
	}
	u, err := strconv.ParseUint(val, 10, 16)
	if err != nil || u > maxBps {
		return defaultVal, false
	}
	return uint16(u), true
}

func getFloatEnv(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

// getListEnv splits a comma separated value, dropping empty items.
func getListEnv(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
