package constants

// Mints
const (
	MintSOL  = "So11111111111111111111111111111111111111112"
	MintUSDC = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	MintUSDT = "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"
	MintSPX  = "J3NKxxXZcnNiMjKw9hYb2K4LUxgwB6t1FtPtQVsv3KFr"
)

// KnownToken is a built-in registry entry
type KnownToken struct {
	Symbol   string
	Mint     string
	Decimals uint8
}

// KnownTokens are always present in the token registry
var KnownTokens = []KnownToken{
	{Symbol: "SOL", Mint: MintSOL, Decimals: 9},
	{Symbol: "USDC", Mint: MintUSDC, Decimals: 6},
	{Symbol: "USDT", Mint: MintUSDT, Decimals: 6},
	{Symbol: "mSOL", Mint: "mSoLzYCxHdYgdzU16g5QSh3i5K3z3KZK7ytfqcJm7So", Decimals: 9},
	{Symbol: "JitoSOL", Mint: "J1toso1uCk3RLmjorhTtrVwY9HJ7X8V9yYac6Y7kGCPn", Decimals: 9},
	{Symbol: "BONK", Mint: "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263", Decimals: 5},
	{Symbol: "JupSOL", Mint: "jupSoLaHXQiZZTSfEWMTRRgpnyFm8f6sZdosWBjx93v", Decimals: 9},
	{Symbol: "RAY", Mint: "4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R", Decimals: 6},
	{Symbol: "TRUMP", Mint: "6p6xgHyF7AeE6TZkSmFsko444wqoP15icUSqi2jfGiPN", Decimals: 6},
	{Symbol: "MEW", Mint: "MEW1gQWJ3nEXg2qgERiKu7FAFj79PHvQVREQUzScPP5", Decimals: 5},
	{Symbol: "SPX", Mint: MintSPX, Decimals: 8},
	{Symbol: "POPCAT", Mint: "7GCihgDB8fe6KNjn2MYtkzZcRjQy3t9GHdC8uHYmW2hr", Decimals: 9},
	{Symbol: "WBTC", Mint: "5XZw2LKTyrfvfiskJ78AMpackRjPcyCif1WhUsPDuVqQ", Decimals: 8},
	{Symbol: "WIF", Mint: "EKpQGSJtjMFqKZ9KQanSqYXRcF8fBopzLHYxdM65zcjm", Decimals: 6},
	{Symbol: "PENGU", Mint: "2zMMhcVQEXDtdE6vsFS7S7D5oUodfJHE8vd1gnBouauv", Decimals: 6},
}

// Redis keys
const (
	RedisKeyRecentSettlements = "swaps:recent"
)

// Limits
const (
	MaxRecentSettlements = 100
)

// Redis Pub/Sub channels
const (
	PubSubChannelSettled        = "swaps:settled"
	PubSubChannelStrategyPrefix = "swaps:settled:"
)

// Flag key of the per-strategy kill switch, formatted with the strategy name.
const StrategyEnabledFlag = "strategy.%s.enabled"
