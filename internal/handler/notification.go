package handler

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mindflow/companion-backend/internal/middleware"
	"github.com/mindflow/companion-backend/internal/model"
	"github.com/mindflow/companion-backend/internal/notify"
	"github.com/mindflow/companion-backend/internal/queue"
	"github.com/mindflow/companion-backend/internal/repository"
)

// NotificationHandler serves device-token registration, push dispatch
// and the per-user notification inbox.
type NotificationHandler struct {
	Users         *repository.UserRepo
	Notifications *repository.NotificationRepo
	Pusher        *notify.Pusher

	// publish is best-effort; failures must never fail the request.
	// Swappable for tests.
	publish func(ctx context.Context, ev queue.NotificationDispatchedEvent)
}

func NewNotificationHandler(u *repository.UserRepo, n *repository.NotificationRepo, p *notify.Pusher) *NotificationHandler {
	h := &NotificationHandler{Users: u, Notifications: n, Pusher: p}
	h.publish = func(ctx context.Context, ev queue.NotificationDispatchedEvent) {
		_ = queue.PublishNotificationDispatched(ctx, ev)
	}
	return h
}

// announce records the dispatch on the broker. Never blocks the caller.
func (h *NotificationHandler) announce(userID, channel, target, title, typ string) {
	ev := queue.NotificationDispatchedEvent{
		EventID:      uuid.NewString(),
		UserID:       userID,
		Channel:      channel,
		Target:       target,
		Title:        title,
		Type:         typ,
		DispatchedAt: time.Now().UTC().Format(time.RFC3339),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		h.publish(ctx, ev)
	}()
}

// record persists an inbox entry for a user-targeted notification.
// Best-effort: a failed insert is logged, not surfaced.
func (h *NotificationHandler) record(ctx context.Context, userID primitive.ObjectID, title, body, typ string, data map[string]interface{}) {
	n := model.Notification{
		UserID: userID,
		Title:  title,
		Body:   body,
		Type:   typ,
		Data:   data,
	}
	if err := h.Notifications.Create(ctx, &n); err != nil {
		log.Printf("notification record insert failed: %v", err)
	}
}

// RegisterToken stores an FCM device token on the authenticated user.
func (h *NotificationHandler) RegisterToken(c echo.Context) error {
	user, _ := middleware.UserFrom(c)

	var req struct {
		Token string `json:"token"`
	}
	if err := c.Bind(&req); err != nil || req.Token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Device token is required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Users.UpdateByID(ctx, user.ID, bson.M{"fcmToken": req.Token}); err != nil {
		log.Printf("register device token failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "Failed to register device token"})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Device token registered successfully"})
}

// RegisterExpoToken stores an Expo push token on the authenticated user.
func (h *NotificationHandler) RegisterExpoToken(c echo.Context) error {
	user, _ := middleware.UserFrom(c)

	var req struct {
		Token string `json:"token"`
	}
	if err := c.Bind(&req); err != nil || req.Token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Expo Push Token is required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Users.UpdateByID(ctx, user.ID, bson.M{"expoPushToken": req.Token}); err != nil {
		log.Printf("register expo token failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "Failed to register Expo Push Token"})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Expo Push Token registered successfully"})
}

type sendReq struct {
	Title  string                 `json:"title"`
	Body   string                 `json:"body"`
	Token  string                 `json:"token"`
	Topic  string                 `json:"topic"`
	UserID string                 `json:"userId"`
	Data   map[string]interface{} `json:"data"`
	Type   string                 `json:"type"`
}

// Send dispatches through FCM to a token, a topic, or a user's
// registered token, in that precedence order.
func (h *NotificationHandler) Send(c echo.Context) error {
	var req sendReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Notification title and body are required"})
	}
	if req.Title == "" || req.Body == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Notification title and body are required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	var (
		target    string
		targetUID string
	)
	switch {
	case req.Token != "":
		target = req.Token
	case req.Topic != "":
		resp, err := h.Pusher.SendFCMTopic(ctx, req.Topic, req.Title, req.Body, req.Data)
		if err != nil {
			log.Printf("fcm topic send failed: %v", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "Failed to send notification"})
		}
		h.announce("", "fcm", "/topics/"+req.Topic, req.Title, req.Type)
		return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Notification sent successfully", "response": resp})
	case req.UserID != "":
		oid, err := primitive.ObjectIDFromHex(req.UserID)
		if err != nil {
			return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "User not found or does not have a registered device token"})
		}
		user, err := h.Users.GetByID(ctx, oid)
		if err != nil || user.FCMToken == nil || *user.FCMToken == "" {
			return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "User not found or does not have a registered device token"})
		}
		target = *user.FCMToken
		targetUID = req.UserID
		h.record(ctx, oid, req.Title, req.Body, req.Type, req.Data)
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Either token, topic, or userId must be provided"})
	}

	resp, err := h.Pusher.SendFCM(ctx, target, req.Title, req.Body, req.Data)
	if err != nil {
		log.Printf("fcm send failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "Failed to send notification"})
	}
	h.announce(targetUID, "fcm", target, req.Title, req.Type)
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Notification sent successfully", "response": resp})
}

// SendExpo dispatches through Expo to a token or a user's registered
// Expo token.
func (h *NotificationHandler) SendExpo(c echo.Context) error {
	var req sendReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Notification title and body are required"})
	}
	if req.Title == "" || req.Body == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Notification title and body are required"})
	}
	if req.Token == "" && req.UserID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Either token or userId must be provided"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	pushToken := req.Token
	targetUID := ""
	if req.UserID != "" && pushToken == "" {
		oid, err := primitive.ObjectIDFromHex(req.UserID)
		if err != nil {
			return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "User not found or does not have a registered push token"})
		}
		user, err := h.Users.GetByID(ctx, oid)
		if err != nil || user.ExpoPushToken == nil || *user.ExpoPushToken == "" {
			return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "User not found or does not have a registered push token"})
		}
		pushToken = *user.ExpoPushToken
		targetUID = req.UserID
		h.record(ctx, oid, req.Title, req.Body, req.Type, req.Data)
	}

	resp, err := h.Pusher.SendExpo(ctx, pushToken, req.Title, req.Body, req.Data)
	if err != nil {
		log.Printf("expo send failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "Failed to send notification"})
	}
	h.announce(targetUID, "expo", pushToken, req.Title, req.Type)
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Notification sent successfully", "response": resp})
}

// Subscribe adds a device token to an FCM topic.
func (h *NotificationHandler) Subscribe(c echo.Context) error {
	var req struct {
		Token string `json:"token"`
		Topic string `json:"topic"`
	}
	if err := c.Bind(&req); err != nil || req.Token == "" || req.Topic == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Token and topic are required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	if err := h.Pusher.Subscribe(ctx, req.Token, req.Topic); err != nil {
		log.Printf("topic subscribe failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "Failed to subscribe to topic"})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": fmt.Sprintf("Successfully subscribed to topic: %s", req.Topic)})
}

// Unsubscribe removes a device token from an FCM topic.
func (h *NotificationHandler) Unsubscribe(c echo.Context) error {
	var req struct {
		Token string `json:"token"`
		Topic string `json:"topic"`
	}
	if err := c.Bind(&req); err != nil || req.Token == "" || req.Topic == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Token and topic are required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	if err := h.Pusher.Unsubscribe(ctx, req.Token, req.Topic); err != nil {
		log.Printf("topic unsubscribe failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "Failed to unsubscribe from topic"})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": fmt.Sprintf("Successfully unsubscribed from topic: %s", req.Topic)})
}

// UnreadCount returns the user's unread inbox count. Users only see
// their own.
func (h *NotificationHandler) UnreadCount(c echo.Context) error {
	authed, _ := middleware.UserFrom(c)
	if authed.ID.Hex() != c.Param("userId") {
		return c.JSON(http.StatusForbidden, echo.Map{"success": false, "message": "Not authorized to access these notifications"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	count, err := h.Notifications.CountUnread(ctx, authed.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "Failed to get unread notifications count"})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "count": count})
}

// List returns the user's 50 most recent notifications, newest first.
func (h *NotificationHandler) List(c echo.Context) error {
	authed, _ := middleware.UserFrom(c)
	if authed.ID.Hex() != c.Param("userId") {
		return c.JSON(http.StatusForbidden, echo.Map{"success": false, "message": "Not authorized to access these notifications"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	notifications, err := h.Notifications.ListByUser(ctx, authed.ID, 50)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "Failed to get user notifications"})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "notifications": notifications})
}

// MarkRead marks one of the user's own notifications as read.
func (h *NotificationHandler) MarkRead(c echo.Context) error {
	authed, _ := middleware.UserFrom(c)
	oid, err := primitive.ObjectIDFromHex(c.Param("notificationId"))
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "Notification not found"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	n, err := h.Notifications.GetByID(ctx, oid)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "Notification not found"})
	}
	if n.UserID != authed.ID {
		return c.JSON(http.StatusForbidden, echo.Map{"success": false, "message": "Not authorized to modify this notification"})
	}

	if err := h.Notifications.MarkRead(ctx, oid); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "Failed to mark notification as read"})
	}
	n.Read = true
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Notification marked as read", "notification": n})
}
