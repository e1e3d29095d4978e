package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// JSONErrors renders every error, including 404 and 405, as an ErrorResponse.
// Unexpected errors become a 500 and are logged.
func (h *Handlers) JSONErrors() echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var he *echo.HTTPError
		if errors.As(err, &he) {
			resp := ErrorResponse{Error: http.StatusText(he.Code), Code: he.Code}
			if msg, ok := he.Message.(string); ok && msg != "" {
				resp.Error = msg
			}
			_ = c.JSON(he.Code, resp)
			return
		}

		if h.Logger != nil {
			h.Logger.WithError(err).WithField("uri", c.Request().RequestURI).Error("unhandled request error")
		}
		_ = h.err(c, http.StatusInternalServerError, "internal server error", map[string]any{"err": err.Error()})
	}
}
