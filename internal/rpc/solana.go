package rpc

import (
	"context"
)

// GetLatestBlockhash fetches the most recent blockhash at the given commitment
func (c *Client) GetLatestBlockhash(ctx context.Context, commitment string) (*ValueResult[BlockhashValue], error) {
	params := []any{
		map[string]any{"commitment": commitment},
	}
	res, err := CallResult[ValueResult[BlockhashValue]](ctx, c, "getLatestBlockhash", params)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// GetAccountInfo fetches a base64-encoded account. A nil value means the
// account does not exist.
func (c *Client) GetAccountInfo(ctx context.Context, address string) (*AccountInfo, error) {
	params := []any{
		address,
		map[string]any{"encoding": "base64"},
	}
	res, err := CallResult[ValueResult[*AccountInfo]](ctx, c, "getAccountInfo", params)
	if err != nil {
		return nil, err
	}
	return res.Value, nil
}

// SimulateTransaction runs a base64-encoded transaction without signature
// verification, substituting the latest blockhash.
func (c *Client) SimulateTransaction(ctx context.Context, encodedTx string) (*SimulationValue, error) {
	params := []any{
		encodedTx,
		map[string]any{
			"encoding":               "base64",
			"commitment":             "processed",
			"replaceRecentBlockhash": true,
			"sigVerify":              false,
		},
	}
	res, err := CallResult[ValueResult[SimulationValue]](ctx, c, "simulateTransaction", params)
	if err != nil {
		return nil, err
	}
	return &res.Value, nil
}

// GetRecentPrioritizationFees returns recent per-slot priority fees for the
// given writable accounts (empty means global).
func (c *Client) GetRecentPrioritizationFees(ctx context.Context, accounts []string) ([]PrioritizationFee, error) {
	params := []any{}
	if len(accounts) > 0 {
		params = append(params, accounts)
	}
	return CallResult[[]PrioritizationFee](ctx, c, "getRecentPrioritizationFees", params)
}

// GetTokenAccountBalance returns the balance of an SPL token account
func (c *Client) GetTokenAccountBalance(ctx context.Context, account string) (*TokenAmount, error) {
	params := []any{account}
	res, err := CallResult[ValueResult[TokenAmount]](ctx, c, "getTokenAccountBalance", params)
	if err != nil {
		return nil, err
	}
	return &res.Value, nil
}

// GetTokenSupply returns the supply and decimals of a mint
func (c *Client) GetTokenSupply(ctx context.Context, mint string) (*TokenAmount, error) {
	params := []any{mint}
	res, err := CallResult[ValueResult[TokenAmount]](ctx, c, "getTokenSupply", params)
	if err != nil {
		return nil, err
	}
	return &res.Value, nil
}
