package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/swapengine"
	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/tokens"
	"github.com/labstack/echo/v4"
)

// Quote previews a swap without executing it.
// Query: from, to (symbol or mint), amount (human units), slippageBps.
func (h *Handlers) Quote(c echo.Context) error {
	if h.Quotes == nil || h.Tokens == nil {
		return h.err(c, http.StatusServiceUnavailable, "quotes are not configured", nil)
	}

	from := strings.TrimSpace(c.QueryParam("from"))
	to := strings.TrimSpace(c.QueryParam("to"))
	amount := strings.TrimSpace(c.QueryParam("amount"))
	if from == "" || to == "" || amount == "" {
		return h.err(c, http.StatusBadRequest, "from, to and amount are required", nil)
	}

	inMint, err := h.Tokens.Resolve(from)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid from", map[string]any{"from": err.Error()})
	}
	outMint, err := h.Tokens.Resolve(to)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid to", map[string]any{"to": err.Error()})
	}
	if inMint.Equals(outMint) {
		return h.err(c, http.StatusBadRequest, "from and to must differ", nil)
	}

	slippage := uint16(50)
	if v := strings.TrimSpace(c.QueryParam("slippageBps")); v != "" {
		n, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			return h.err(c, http.StatusBadRequest, "invalid slippageBps", map[string]any{"slippageBps": "must be uint16"})
		}
		slippage = uint16(n)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	inDecimals, err := h.Tokens.Decimals(ctx, inMint)
	if err != nil {
		return h.err(c, http.StatusBadGateway, "input decimals unavailable", map[string]any{"err": err.Error()})
	}
	outDecimals, err := h.Tokens.Decimals(ctx, outMint)
	if err != nil {
		return h.err(c, http.StatusBadGateway, "output decimals unavailable", map[string]any{"err": err.Error()})
	}
	raw, err := tokens.ToRaw(amount, inDecimals)
	if err != nil || raw == 0 {
		return h.err(c, http.StatusBadRequest, "invalid amount", map[string]any{"amount": "must be a positive decimal"})
	}

	q, err := h.Quotes.Quote(ctx, inMint, outMint, raw, slippage)
	if err != nil {
		if errors.Is(err, swapengine.ErrNoRoute) {
			return h.err(c, http.StatusNotFound, "no route", nil)
		}
		return h.err(c, http.StatusBadGateway, "quote failed", map[string]any{"err": err.Error()})
	}

	return c.JSON(http.StatusOK, QuoteResponse{
		From:        h.Tokens.Symbol(inMint),
		To:          h.Tokens.Symbol(outMint),
		AmountIn:    tokens.Format(q.InAmount, inDecimals),
		AmountOut:   tokens.Format(q.OutAmount, outDecimals),
		MinOut:      tokens.Format(q.MinOutAmount, outDecimals),
		RawIn:       q.InAmount,
		RawOut:      q.OutAmount,
		SlippageBps: q.SlippageBps,
		Route:       q.Route,
	})
}
