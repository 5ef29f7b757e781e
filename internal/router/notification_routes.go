package router

import (
	"github.com/labstack/echo/v4"

	"github.com/mindflow/companion-backend/internal/handler"
	"github.com/mindflow/companion-backend/internal/middleware"
	"github.com/mindflow/companion-backend/internal/repository"
)

// RegisterNotifications registers the push/inbox endpoints under
// /api/notifications. Every route requires a patient token.
func RegisterNotifications(e *echo.Echo, n *handler.NotificationHandler, jwtSecret string, users *repository.UserRepo) {
	g := e.Group("/api/notifications")
	g.Use(middleware.Protect(jwtSecret, users))

	g.POST("/register", n.RegisterToken)
	g.POST("/register-expo", n.RegisterExpoToken)
	g.POST("/send", n.Send)
	g.POST("/send-expo", n.SendExpo)
	g.POST("/subscribe", n.Subscribe)
	g.POST("/unsubscribe", n.Unsubscribe)
	g.GET("/unread/:userId", n.UnreadCount)
	g.GET("/user/:userId", n.List)
	g.PUT("/:notificationId/read", n.MarkRead)
}
