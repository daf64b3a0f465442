// Package handler exposes the HTTP surface: event ingest, the live SSE
// stream, liveness, and a self-describing index.
package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/ThomasRohde/ariadne/internal/event"
	"github.com/ThomasRohde/ariadne/internal/service"
	"github.com/ThomasRohde/ariadne/internal/sse"
	"github.com/ThomasRohde/ariadne/internal/store"
)

// maxBodySize caps POST /ingest request bodies. Oversize requests are
// rejected at the gate with 413 before the body is read.
const maxBodySize = "256KiB"

// TelemetryHandler glues the ingest pipeline, the event store and the SSE
// manager to the HTTP surface.
type TelemetryHandler struct {
	svc     service.IngestService
	manager *sse.Manager
	store   *store.Store
	logger  *zap.Logger
}

// NewTelemetryHandler creates the handler over its collaborators.
func NewTelemetryHandler(svc service.IngestService, manager *sse.Manager, st *store.Store, logger *zap.Logger) *TelemetryHandler {
	return &TelemetryHandler{svc: svc, manager: manager, store: st, logger: logger}
}

// Register mounts all routes.
func (h *TelemetryHandler) Register(e *echo.Echo) {
	e.POST("/ingest", h.Ingest, middleware.BodyLimit(maxBodySize))
	e.GET("/events", h.Events)
	e.GET("/healthz", h.Health)
	e.GET("/", h.Index)
}

// --- Response DTOs ---

type ingestResponse struct {
	Success bool `json:"success"`
	Count   int  `json:"count"`
}

type validationResponse struct {
	Error   string             `json:"error"`
	Details []event.FieldError `json:"details"`
}

type internalErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type healthResponse struct {
	Status    string      `json:"status"`
	Timestamp string      `json:"timestamp"`
	Events    eventCounts `json:"events"`
}

type eventCounts struct {
	Count    int `json:"count"`
	Capacity int `json:"capacity"`
}

// Ingest godoc
// @Summary      Ingest telemetry events
// @Description  Accepts a single trace/span event or a {"batch":[...]} wrapper. Validation is all-or-nothing: any invalid event rejects the whole request and nothing is stored.
// @ID           ingest-events
// @Tags         ingest
// @Accept       json
// @Produce      json
// @Success      200  {object}  ingestResponse
// @Failure      400  {object}  validationResponse  "Validation Error"
// @Failure      413  "Request Body Too Large"
// @Failure      500  {object}  internalErrorResponse
// @Router       /ingest [post]
func (h *TelemetryHandler) Ingest(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return he // 413 from the body-limit gate
		}
		return c.JSON(http.StatusBadRequest, validationResponse{
			Error:   "Validation failed",
			Details: []event.FieldError{{Path: "body", Message: "unable to read request body"}},
		})
	}

	count, err := h.svc.Ingest(c.Request().Context(), body)
	if err != nil {
		var verr *event.ValidationError
		if errors.As(err, &verr) {
			return c.JSON(http.StatusBadRequest, validationResponse{
				Error:   "Validation failed",
				Details: verr.Details,
			})
		}
		h.logger.Error("ingest failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, internalErrorResponse{
			Error:   "Internal server error",
			Message: err.Error(),
		})
	}

	return c.JSON(http.StatusOK, ingestResponse{Success: true, Count: count})
}

// Health godoc
// @Summary      Liveness probe
// @Description  Reports service liveness plus current store occupancy.
// @ID           healthz
// @Tags         ops
// @Produce      json
// @Success      200  {object}  healthResponse
// @Router       /healthz [get]
func (h *TelemetryHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Events: eventCounts{
			Count:    h.store.Len(),
			Capacity: h.store.Cap(),
		},
	})
}

// Index godoc
// @Summary      Service index
// @Description  Self-describing endpoint map.
// @ID           index
// @Tags         ops
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       / [get]
func (h *TelemetryHandler) Index(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"service":     "ariadne",
		"description": "local-first observability backend for agent telemetry",
		"subscribers": h.manager.Count(),
		"endpoints": map[string]string{
			"POST /ingest": "ingest a trace/span event or {\"batch\":[...]}",
			"GET /events":  "live SSE stream; query: traceId, kinds, since",
			"GET /healthz": "liveness and store occupancy",
		},
	})
}
