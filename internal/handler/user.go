package handler

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mindflow/companion-backend/internal/middleware"
	"github.com/mindflow/companion-backend/internal/model"
	"github.com/mindflow/companion-backend/internal/repository"
	"github.com/mindflow/companion-backend/internal/service"
)

// UserHandler serves the patient-facing profile and lookup endpoints.
type UserHandler struct {
	Users      *repository.UserRepo
	Caregivers *repository.CaregiverRepo
	Conns      *service.ConnectionManager
}

func NewUserHandler(u *repository.UserRepo, cg *repository.CaregiverRepo, conns *service.ConnectionManager) *UserHandler {
	return &UserHandler{Users: u, Caregivers: cg, Conns: conns}
}

// guardedFields are account fields a client can never set through the
// generic update endpoints. Connection fields only move through the
// connection endpoints; credentials only through the auth flows.
var guardedFields = []string{"_id", "id", "email", "password", "passwordChangedAt", "caregiverEmail", "revision"}

func sanitizeUpdate(body map[string]interface{}) bson.M {
	set := bson.M{}
	for k, v := range body {
		set[k] = v
	}
	for _, f := range guardedFields {
		delete(set, f)
	}
	return set
}

// Ping answers connectivity checks from mobile clients.
func (h *UserHandler) Ping(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"success":   true,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"message":   "Server is available",
	})
}

// Root answers the bare /api/user/ probe.
func (h *UserHandler) Root(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"success":   true,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"message":   "User API is available",
	})
}

// UpdateSelf applies a free-form update to the authenticated user's own
// record, minus the guarded fields.
func (h *UserHandler) UpdateSelf(c echo.Context) error {
	user, _ := middleware.UserFrom(c)

	var body map[string]interface{}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Failed to update user"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	set := sanitizeUpdate(body)
	if len(set) > 0 {
		if err := h.Users.UpdateByID(ctx, user.ID, set); err != nil {
			log.Printf("user update error: %v", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "Failed to update user"})
		}
	}
	updated, err := h.Users.GetByID(ctx, user.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "Failed to update user"})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "user": updated})
}

// GetProfile returns the authenticated user's profile.
func (h *UserHandler) GetProfile(c echo.Context) error {
	user, _ := middleware.UserFrom(c)
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"id":           user.ID.Hex(),
			"name":         user.Name,
			"email":        user.Email,
			"phone":        user.Phone,
			"profileImage": user.ProfileImage,
			"address":      user.Address,
			"age":          user.Age,
			"medicalInfo":  user.MedicalInfo,
			"homeLocation": user.HomeLocation,
		},
	})
}

// UpdateProfile applies a partial profile update to the authenticated
// user and returns the updated document.
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	user, _ := middleware.UserFrom(c)

	var body map[string]interface{}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Server error"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	set := sanitizeUpdate(body)
	if len(set) > 0 {
		if err := h.Users.UpdateByID(ctx, user.ID, set); err != nil {
			log.Printf("profile update error: %v", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "Server error"})
		}
	}
	updated, err := h.Users.GetByID(ctx, user.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "Server error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": updated})
}

// ProfileByEmail is the public lookup caregivers use to resolve a
// patient's display name. Flat payload, no success envelope.
func (h *UserHandler) ProfileByEmail(c echo.Context) error {
	email := c.Param("email")
	if email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Valid email is required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	user, err := h.Users.GetByEmail(ctx, email)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "User not found with this email"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"id":           user.ID.Hex(),
		"name":         user.Name,
		"email":        user.Email,
		"profileImage": user.ProfileImage,
		"phone":        user.Phone,
	})
}

// LookupByEmail returns minimal identity info for a patient email.
func (h *UserHandler) LookupByEmail(c echo.Context) error {
	email := c.Param("email")
	if email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Valid email is required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	user, err := h.Users.GetByEmail(ctx, email)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "User not found with this email"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"id":           user.ID.Hex(),
		"name":         user.Name,
		"email":        user.Email,
		"profileImage": user.ProfileImage,
	})
}

// GetByID returns a patient's profile subset by object id.
func (h *UserHandler) GetByID(c echo.Context) error {
	oid, err := primitive.ObjectIDFromHex(c.Param("userId"))
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "User not found"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	user, err := h.Users.GetByID(ctx, oid)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "User not found"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"user": echo.Map{
			"id":           user.ID.Hex(),
			"name":         user.Name,
			"email":        user.Email,
			"profileImage": user.ProfileImage,
			"phone":        user.Phone,
			"address":      user.Address,
			"age":          user.Age,
			"medicalInfo":  user.MedicalInfo,
		},
	})
}

// Activities returns a fixed sample activity feed. The user lookup only
// feeds the userFound flag; missing accounts still get activities.
func (h *UserHandler) Activities(c echo.Context) error {
	userFound := false
	if oid, err := primitive.ObjectIDFromHex(c.Param("userId")); err == nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
		defer cancel()
		if _, err := h.Users.GetByID(ctx, oid); err == nil {
			userFound = true
		}
	}

	now := time.Now().UTC()
	activities := []echo.Map{
		{"type": "App Login", "timestamp": now.Add(-time.Hour), "details": "User logged into the application"},
		{"type": "Memory Game", "timestamp": now.Add(-2 * time.Hour), "details": "Completed memory game with score 85%"},
		{"type": "Medication", "timestamp": now.Add(-5 * time.Hour), "details": "Marked medication reminder as completed"},
		{"type": "Exercise", "timestamp": now.Add(-24 * time.Hour), "details": "Completed daily exercise routine"},
		{"type": "App Usage", "timestamp": now.Add(-48 * time.Hour), "details": "Viewed family photos"},
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":    true,
		"activities": activities,
		"userFound":  userFound,
	})
}

// ConnectCaregiver links the authenticated patient to a caregiver by
// email. Same link semantics as the caregiver-initiated connect.
func (h *UserHandler) ConnectCaregiver(c echo.Context) error {
	user, _ := middleware.UserFrom(c)

	var req struct {
		CaregiverEmail string `json:"caregiverEmail"`
	}
	if err := c.Bind(&req); err != nil || req.CaregiverEmail == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Caregiver email is required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Conns.ConnectByPatient(ctx, user.ID, req.CaregiverEmail); err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "Caregiver not found"})
		}
		log.Printf("connect caregiver error: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "Failed to connect caregiver"})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Connected patient with caregiver successfully"})
}

// PatientData serves a caregiver's read of a connected patient's full
// record. The caller authenticates as a caregiver; access requires the
// patient to be in the caregiver's connected set.
func (h *UserHandler) PatientData(c echo.Context) error {
	cg, ok := middleware.CaregiverFrom(c)
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "Caregiver not found"})
	}
	patientEmail := normalizeParamEmail(c.Param("patientEmail"))

	if !connectedTo(cg, patientEmail) {
		return c.JSON(http.StatusForbidden, echo.Map{"success": false, "message": "Not authorized to access this patient data"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	patient, err := h.Users.GetByEmail(ctx, patientEmail)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "Patient not found"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"patient": echo.Map{
			"id":                patient.ID.Hex(),
			"name":              patient.Name,
			"email":             patient.Email,
			"profileImage":      patient.ProfileImage,
			"phone":             patient.Phone,
			"address":           patient.Address,
			"age":               patient.Age,
			"medicalInfo":       patient.MedicalInfo,
			"homeLocation":      patient.HomeLocation,
			"reminders":         patient.Reminders,
			"memories":          patient.Memories,
			"emergencyContacts": patient.EmergencyContacts,
		},
	})
}

func connectedTo(cg model.Caregiver, patientEmail string) bool {
	for _, e := range cg.ConnectedPatients {
		if e == patientEmail {
			return true
		}
	}
	return false
}
