package router // package router builds the echo instance and registers the API routes

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/iliyamo/seat-booking-simulator/internal/handler"
)

// New returns an echo instance with go-json encoding, panic recovery and
// one zerolog line per request.
func New(log zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = JSONSerializer{}
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil || v.Status >= 500 {
				ev = log.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	}))
	return e
}

// RegisterRoutes registers the unauthenticated operational endpoints:
// the health check and the Prometheus scrape target.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterSimulations registers the simulation API under /v1.  limiter
// guards only the endpoint that starts work.
func RegisterSimulations(e *echo.Echo, h *handler.SimulationHandler, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1")
	if limiter != nil {
		g.POST("/simulations", h.Create, limiter)
	} else {
		g.POST("/simulations", h.Create)
	}
	g.GET("/simulations/:id", h.Get)
	g.GET("/messages", h.GetMessages)
}
