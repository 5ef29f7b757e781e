package router

import (
	"github.com/labstack/echo/v4"

	"github.com/mindflow/companion-backend/internal/handler"
)

// RegisterCaregiver registers the caregiver account, connection and
// sync endpoints under /api/caregivers. The caregiver client
// authenticates by carrying its id in bodies and query strings, so
// these routes stay token-free like the patient auth flows.
func RegisterCaregiver(e *echo.Echo, a *handler.CaregiverHandler, s *handler.CaregiverSyncHandler) {
	g := e.Group("/api/caregivers")

	g.POST("/signup", a.Signup)
	g.POST("/login", a.Login)
	g.POST("/check-email", a.CheckEmail)
	g.POST("/forgot-password", a.ForgotPassword)
	g.POST("/reset-password", a.ResetPassword)
	g.POST("/send-email-verification", a.SendEmailVerification)
	g.POST("/verify-code", a.VerifyCode)
	g.POST("/deleteAccount", a.DeleteAccount)

	g.POST("/connect", a.Connect)
	g.POST("/disconnect", a.Disconnect)
	g.GET("/check-patient/:email", a.CheckPatient)
	g.GET("/verify-connections/:caregiverId", a.VerifyConnections)
	g.GET("/verify-connection/:caregiverId/:patientEmail", a.VerifyConnection)
	g.GET("/verify-patient-connection/:caregiverId", a.VerifyPatientConnection)
	g.GET("/info/:email", a.Info)

	g.POST("/sync/patient-reminders", s.SyncPatientReminders)
	g.POST("/sync/patient-memories", s.SyncPatientMemories)
	g.POST("/sync/patient-contacts", s.SyncPatientContacts)
	g.POST("/sync/patient-location", s.SyncPatientLocation)
	g.GET("/sync/patient-data/:patientEmail", s.GetPatientData)
	g.POST("/sync/profile", s.SyncProfile)
	g.GET("/profile", s.GetProfile)

	g.GET("/:caregiverId/patients", s.ListPatients)
}
