package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Health is a simple health-check endpoint used by load balancers and
// monitoring systems to verify that the service is running.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Ping answers connectivity probes from mobile clients with a timestamp.
func Ping(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"message":   "Server is reachable",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Root serves the bare-path liveness probe.
func Root(c echo.Context) error {
	return c.String(http.StatusOK, "Server is running")
}
