package handler

import (
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mindflow/companion-backend/internal/notify"
)

// EmailHandler exposes the raw email relay used by clients for
// emergency alerts and other ad-hoc mail.
type EmailHandler struct {
	Mailer *notify.Mailer
}

func NewEmailHandler(m *notify.Mailer) *EmailHandler {
	return &EmailHandler{Mailer: m}
}

// Send relays a plain-text email to an arbitrary recipient.
func (h *EmailHandler) Send(c echo.Context) error {
	var req struct {
		To      string `json:"to"`
		Subject string `json:"subject"`
		Text    string `json:"text"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "To, subject, and text are required fields"})
	}
	if req.To == "" || req.Subject == "" || req.Text == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "To, subject, and text are required fields"})
	}

	if !h.Mailer.Configured() {
		log.Printf("email relay: credentials missing in environment")
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "Email service not properly configured"})
	}

	log.Printf("email relay: sending to %s (subject %q)", req.To, req.Subject)
	if err := h.Mailer.Send(req.To, req.Subject, req.Text); err != nil {
		log.Printf("email relay: send failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "Failed to send email"})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Email sent successfully"})
}
