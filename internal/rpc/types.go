package rpc

import "fmt"

// Request is a JSON-RPC 2.0 request body
type Request struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      uint64      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

// Response is a JSON-RPC 2.0 response envelope
type Response[T any] struct {
	Result T         `json:"result"`
	Error  *RPCError `json:"error"`
}

// RPCError represents a JSON-RPC error response
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// StatusError is a transport-level failure, optionally carrying the HTTP status.
type StatusError struct {
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string { return e.Err.Error() }

func (e *StatusError) Unwrap() error { return e.Err }

// Context is the slot context attached to many Solana RPC results
type Context struct {
	Slot uint64 `json:"slot"`
}

// ValueResult wraps results shaped as {context, value}
type ValueResult[T any] struct {
	Context Context `json:"context"`
	Value   T       `json:"value"`
}

// TokenAmount represents token balance information
type TokenAmount struct {
	Amount         string   `json:"amount"`
	Decimals       int      `json:"decimals"`
	UIAmountString string   `json:"uiAmountString"`
	UIAmount       *float64 `json:"uiAmount"`
}

// BlockhashValue is the value of getLatestBlockhash
type BlockhashValue struct {
	Blockhash            string `json:"blockhash"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

// AccountInfo is a base64-encoded account returned by getAccountInfo
type AccountInfo struct {
	Data       []string `json:"data"`
	Executable bool     `json:"executable"`
	Lamports   uint64   `json:"lamports"`
	Owner      string   `json:"owner"`
}

// SimulationValue is the value of simulateTransaction
type SimulationValue struct {
	Err           interface{} `json:"err"`
	Logs          []string    `json:"logs"`
	UnitsConsumed *uint64     `json:"unitsConsumed,omitempty"`
}

// PrioritizationFee is one entry of getRecentPrioritizationFees
type PrioritizationFee struct {
	Slot              uint64 `json:"slot"`
	PrioritizationFee uint64 `json:"prioritizationFee"`
}
