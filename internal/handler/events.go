package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/ThomasRohde/ariadne/internal/sse"
)

// Events godoc
// @Summary      Live event stream
// @Description  Subscribes the caller to the live SSE stream. The first frame is a data frame with type "connected"; events follow in arrival order, interleaved with heartbeat comments. There is no history replay.
// @ID           events-stream
// @Tags         events
// @Produce      text/event-stream
// @Param        traceId  query  string  false  "Exact trace_id to follow"
// @Param        kinds    query  string  false  "Comma-separated span kinds"
// @Param        since    query  string  false  "RFC 3339 lower bound on span started_at"
// @Success      200  "SSE frame stream"
// @Failure      400  {object}  map[string]string  "Invalid since parameter"
// @Router       /events [get]
func (h *TelemetryHandler) Events(c echo.Context) error {
	filter, err := sse.ParseFilter(
		c.QueryParam("traceId"),
		c.QueryParam("kinds"),
		c.QueryParam("since"),
	)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid since parameter"})
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)

	sub := h.manager.Subscribe(filter)
	defer h.manager.Unsubscribe(sub)

	// Stream blocks for the lifetime of the subscription. A write failure
	// terminates this subscriber only; ingest and other subscribers are
	// unaffected.
	if err := sub.Stream(c.Request().Context(), resp); err != nil {
		h.logger.Info("subscriber stream terminated",
			zap.Int64("subscriber_id", sub.ID()),
			zap.Error(err),
		)
	}
	return nil
}
