// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/mindflow/companion-backend/internal/handler"
)

// RegisterRoutes registers the unauthenticated liveness endpoints and
// the email relay on the provided Echo instance.
func RegisterRoutes(e *echo.Echo, email *handler.EmailHandler) {
	e.GET("/healthz", handler.Health)
	e.GET("/ping", handler.Ping)
	e.GET("/", handler.Root)

	e.POST("/api/email/send-email", email.Send)
}
