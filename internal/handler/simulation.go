package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/seat-booking-simulator/internal/booking"
	"github.com/iliyamo/seat-booking-simulator/internal/model"
	"github.com/iliyamo/seat-booking-simulator/internal/queue"
	"github.com/iliyamo/seat-booking-simulator/internal/repository"
	"github.com/iliyamo/seat-booking-simulator/internal/service"
)

// SimulationRunner starts simulations and looks up their records.
type SimulationRunner interface {
	Start(ctx context.Context, req model.RunRequest) (model.RunRecord, error)
	Get(ctx context.Context, id string) (model.RunRecord, error)
}

// MessageSource drains published messages from the broker.
type MessageSource interface {
	Drain(ctx context.Context, queue string, max int) ([]queue.Message, error)
}

// SimulationHandler serves the /v1 simulation endpoints.  Messages may be
// nil when no broker is configured.
type SimulationHandler struct {
	Runs     SimulationRunner
	Messages MessageSource
	Log      zerolog.Logger
}

// Create handles POST /v1/simulations.  The run starts in the background
// and the response carries its ID; poll Get for the result.
func (h *SimulationHandler) Create(c echo.Context) error {
	var req model.RunRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	req.Movie = strings.TrimSpace(req.Movie)

	rec, err := h.Runs.Start(c.Request().Context(), req)
	switch {
	case errors.Is(err, booking.ErrInvalidRequest):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrShuttingDown):
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "server is shutting down"})
	case err != nil:
		h.Log.Error().Err(err).Msg("start simulation failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to start simulation"})
	}

	c.Response().Header().Set(echo.HeaderLocation, "/v1/simulations/"+rec.ID)
	return c.JSON(http.StatusAccepted, echo.Map{
		"run_id": rec.ID,
		"status": rec.Status,
	})
}

// Get handles GET /v1/simulations/:id.
func (h *SimulationHandler) Get(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "id is required"})
	}
	rec, err := h.Runs.Get(c.Request().Context(), id)
	if errors.Is(err, repository.ErrRunNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "simulation not found"})
	}
	if err != nil {
		h.Log.Error().Err(err).Str("run_id", id).Msg("load simulation failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load simulation"})
	}
	return c.JSON(http.StatusOK, rec)
}

// GetMessages handles GET /v1/messages?queue=seatupdates&max=10.  It drains
// and acknowledges up to max messages, so each message is returned once.
func (h *SimulationHandler) GetMessages(c echo.Context) error {
	if h.Messages == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "message broker not configured"})
	}
	name := strings.TrimSpace(c.QueryParam("queue"))
	if name == "" {
		name = queue.SeatUpdatesQueue
	}
	max := 10
	if v := c.QueryParam("max"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > queue.MaxDrain {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "max must be between 1 and 100"})
		}
		max = n
	}

	msgs, err := h.Messages.Drain(c.Request().Context(), name, max)
	if errors.Is(err, queue.ErrUnknownQueue) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unknown queue"})
	}
	if err != nil {
		h.Log.Error().Err(err).Str("queue", name).Msg("drain queue failed")
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "failed to read messages"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"queue":    name,
		"count":    len(msgs),
		"messages": msgs,
	})
}
