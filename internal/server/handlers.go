package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/flags"
	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/scheduler"
	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/storage"
	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/swapengine"
	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/tokens"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// StatusSource provides the scheduler snapshot
type StatusSource interface {
	Status() scheduler.Status
}

// Handlers contains all dependencies for API endpoint handlers. Nil
// dependencies disable the endpoints that need them.
type Handlers struct {
	Scheduler   StatusSource              // Running scheduler
	Wallet      string                    // Public address of the trading wallet
	Flags       flags.Backend             // Kill switch store
	Settlements storage.SettlementHistory // Recent settlement events
	Quotes      swapengine.QuoteProvider  // Aggregator used for previews
	Tokens      *tokens.Registry          // Symbol and decimals lookup
	Gatherer    prometheus.Gatherer       // Metrics registry, default when nil
	DevMode     bool
	Logger      *logrus.Logger
}

// err returns a standardized JSON error response
// In dev mode, includes additional error details for debugging
func (h *Handlers) err(c echo.Context, code int, msg string, details any) error {
	resp := ErrorResponse{Error: msg, Code: code}
	if h.DevMode && details != nil {
		resp.Details = details
	}
	return c.JSON(code, resp)
}

func (h *Handlers) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{OK: true})
}

// Status returns the wallet and the scheduler snapshot
func (h *Handlers) Status(c echo.Context) error {
	resp := StatusResponse{Wallet: h.Wallet}
	if h.Scheduler != nil {
		st := h.Scheduler.Status()
		resp.Scheduler = &st
	}
	return c.JSON(http.StatusOK, resp)
}

// RecentSettlements returns the newest settlement events
// Accepts limit query parameter (default: 20, range: 1-100)
func (h *Handlers) RecentSettlements(c echo.Context) error {
	if h.Settlements == nil {
		return h.err(c, http.StatusServiceUnavailable, "settlement history is not configured", nil)
	}

	limit := 20
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "must be an integer"})
		}
		limit = n
	}
	if limit < 1 || limit > 100 {
		return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "min 1 max 100"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Settlements.RecentSettlements(ctx, int64(limit))
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to get settlements", map[string]any{"err": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

func (h *Handlers) FlagsList(c echo.Context) error {
	if h.Flags == nil {
		return h.err(c, http.StatusServiceUnavailable, "flags are not configured", nil)
	}
	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Flags.List(ctx)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to list flags", nil)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

func (h *Handlers) FlagsGet(c echo.Context) error {
	if h.Flags == nil {
		return h.err(c, http.StatusServiceUnavailable, "flags are not configured", nil)
	}
	key := c.Param("key")
	if err := flags.ValidateKey(key); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid key", map[string]any{"key": "invalid format"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	out, err := h.Flags.Get(ctx, key)
	if err != nil {
		if errors.Is(err, flags.ErrNotFound) {
			return h.err(c, http.StatusNotFound, "flag not found", nil)
		}
		return h.err(c, http.StatusInternalServerError, "failed to get flag", nil)
	}
	return c.JSON(http.StatusOK, out)
}

// FlagsUpdate sets a flag, creating it if needed. Strategy kill switches are
// strategy.<name>.enabled.
func (h *Handlers) FlagsUpdate(c echo.Context) error {
	if h.Flags == nil {
		return h.err(c, http.StatusServiceUnavailable, "flags are not configured", nil)
	}
	key := c.Param("key")
	if err := flags.ValidateKey(key); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid key", map[string]any{"key": "invalid format"})
	}
	var req FlagUpdateRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	if req.Value == nil {
		return h.err(c, http.StatusBadRequest, "value is required", map[string]any{"value": "required"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	out, err := h.Flags.Upsert(ctx, key, *req.Value)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to update flag", nil)
	}
	if h.Logger != nil {
		h.Logger.WithFields(logrus.Fields{"key": key, "value": out.Value}).Info("flag updated")
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handlers) FlagsDelete(c echo.Context) error {
	if h.Flags == nil {
		return h.err(c, http.StatusServiceUnavailable, "flags are not configured", nil)
	}
	key := c.Param("key")
	if err := flags.ValidateKey(key); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid key", map[string]any{"key": "invalid format"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	if err := h.Flags.Delete(ctx, key); err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to delete flag", nil)
	}
	return c.NoContent(http.StatusNoContent)
}
