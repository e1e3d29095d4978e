package server

import "github.com/aman-zulfiqar/solana-bundle-swapper/internal/scheduler"

// ErrorResponse represents a standardized error response format
type ErrorResponse struct {
	Error   string `json:"error"`             // Human-readable error message
	Code    int    `json:"code"`              // HTTP status code
	Details any    `json:"details,omitempty"` // Additional error details (dev mode only)
}

// HealthResponse represents the health check response
type HealthResponse struct {
	OK bool `json:"ok"`
}

// StatusResponse wraps the scheduler snapshot
type StatusResponse struct {
	Wallet    string            `json:"wallet,omitempty"`
	Scheduler *scheduler.Status `json:"scheduler,omitempty"`
}

// FlagUpdateRequest represents a request to set a flag
type FlagUpdateRequest struct {
	Value *bool `json:"value"`
}

// QuoteResponse is a priced preview of a swap
type QuoteResponse struct {
	From        string   `json:"from"`
	To          string   `json:"to"`
	AmountIn    string   `json:"amount_in"`
	AmountOut   string   `json:"amount_out"`
	MinOut      string   `json:"min_out"`
	RawIn       uint64   `json:"raw_in"`
	RawOut      uint64   `json:"raw_out"`
	SlippageBps uint16   `json:"slippage_bps"`
	Route       []string `json:"route"`
}
