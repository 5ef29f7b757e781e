package router

import (
	"github.com/labstack/echo/v4"

	"github.com/mindflow/companion-backend/internal/handler"
	"github.com/mindflow/companion-backend/internal/middleware"
	"github.com/mindflow/companion-backend/internal/repository"
)

// RegisterAuth registers the patient auth endpoints under /api/auth.
// Most of them are unauthenticated: password flows have to
// work for users without a valid token, and deleteAccount is the
// direct, body-addressed variant mobile clients rely on.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, users *repository.UserRepo) {
	g := e.Group("/api/auth")
	g.POST("/login", a.Login)
	g.POST("/signup", a.Signup)
	g.POST("/forgot-password", a.ForgotPassword)
	g.POST("/reset-password", a.ResetPassword)
	g.POST("/send-email-verification", a.SendEmailVerification)
	g.POST("/deleteAccount", a.DeleteAccount)

	g.GET("/verify-token", a.VerifyToken, middleware.Protect(jwtSecret, users))
}

// RegisterUser registers the patient profile, lookup and device-sync
// endpoints under /api/user. Lookup-by-email routes stay public so
// caregiver clients can resolve names before connecting.
func RegisterUser(e *echo.Echo, u *handler.UserHandler, s *handler.UserSyncHandler,
	jwtSecret string, users *repository.UserRepo, caregivers *repository.CaregiverRepo) {

	g := e.Group("/api/user")
	g.GET("/ping", u.Ping)
	g.GET("/", u.Root)
	g.GET("/profile/:email", u.ProfileByEmail)
	g.GET("/lookup/:email", u.LookupByEmail)

	protect := middleware.Protect(jwtSecret, users)
	g.PUT("/", u.UpdateSelf, protect)
	g.GET("/profile", u.GetProfile, protect)
	g.PUT("/profile", u.UpdateProfile, protect)
	g.GET("/activities/:userId", u.Activities, protect)
	g.POST("/connect/caregiver", u.ConnectCaregiver, protect)

	g.GET("/sync/email/:email", s.GetByEmail, protect)
	g.GET("/sync/reminders", s.GetReminders, protect)
	g.POST("/sync/reminders", s.PutReminders, protect)
	g.GET("/sync/memories", s.GetMemories, protect)
	g.POST("/sync/memories", s.PutMemories, protect)
	g.GET("/sync/contacts", s.GetContacts, protect)
	g.POST("/sync/contacts", s.PutContacts, protect)
	g.POST("/sync/homeLocation", s.PutHomeLocation, protect)

	// Caregivers read a connected patient's record with their own token.
	g.GET("/patient/:patientEmail", u.PatientData, middleware.ProtectCaregiver(jwtSecret, caregivers))

	// Param route last so the static paths above keep precedence.
	g.GET("/:userId", u.GetByID, protect)
}
