package handler

import (
	"context"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/mindflow/companion-backend/internal/model"
	"github.com/mindflow/companion-backend/internal/repository"
	"github.com/mindflow/companion-backend/internal/service"
)

// CaregiverSyncHandler serves the caregiver-side sync endpoints: pushing
// reminders/memories/contacts/location into a patient's record and
// reading the authoritative copy back.
type CaregiverSyncHandler struct {
	Caregivers *repository.CaregiverRepo
	Users      *repository.UserRepo
	Sync       *service.SyncService
}

func NewCaregiverSyncHandler(cg *repository.CaregiverRepo, u *repository.UserRepo, sync *service.SyncService) *CaregiverSyncHandler {
	return &CaregiverSyncHandler{Caregivers: cg, Users: u, Sync: sync}
}

type syncListReq struct {
	CaregiverID  string           `json:"caregiverId"`
	PatientEmail string           `json:"patientEmail"`
	Reminders    []model.ListItem `json:"reminders"`
	Memories     []model.ListItem `json:"memories"`
	Contacts     []model.ListItem `json:"contacts"`
}

// syncList is the shared body of the three list-sync endpoints.
func (h *CaregiverSyncHandler) syncList(c echo.Context, kind service.ListKind, items []model.ListItem, req syncListReq, successMsg, failMsg string) error {
	if req.CaregiverID == "" || req.PatientEmail == "" || items == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Missing required fields or invalid data format"})
	}
	oid, ok := caregiverIDParam(req.CaregiverID)
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "Caregiver not found"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	// Resolve the caregiver first so a missing-account error can name
	// the right side.
	if _, err := h.Caregivers.GetByID(ctx, oid); err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "Caregiver not found"})
	}

	n, err := h.Sync.SyncList(ctx, oid, req.PatientEmail, kind, items)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "Patient not found"})
		}
		log.Printf("sync %s failed: %v", kind, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": failMsg})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": successMsg, "count": n})
}

func (h *CaregiverSyncHandler) SyncPatientReminders(c echo.Context) error {
	var req syncListReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Missing required fields or invalid data format"})
	}
	return h.syncList(c, service.KindReminders, req.Reminders, req,
		"Patient reminders synced successfully", "Failed to sync patient reminders")
}

func (h *CaregiverSyncHandler) SyncPatientMemories(c echo.Context) error {
	var req syncListReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Missing required fields or invalid data format"})
	}
	return h.syncList(c, service.KindMemories, req.Memories, req,
		"Patient memories synced successfully", "Failed to sync patient memories")
}

func (h *CaregiverSyncHandler) SyncPatientContacts(c echo.Context) error {
	var req syncListReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Missing required fields or invalid data format"})
	}
	return h.syncList(c, service.KindContacts, req.Contacts, req,
		"Patient emergency contacts synced successfully", "Failed to sync patient emergency contacts")
}

// SyncPatientLocation replaces the patient's home location.
func (h *CaregiverSyncHandler) SyncPatientLocation(c echo.Context) error {
	var req struct {
		CaregiverID  string                 `json:"caregiverId"`
		PatientEmail string                 `json:"patientEmail"`
		HomeLocation map[string]interface{} `json:"homeLocation"`
	}
	if err := c.Bind(&req); err != nil || req.CaregiverID == "" || req.PatientEmail == "" || req.HomeLocation == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Missing required fields"})
	}
	oid, ok := caregiverIDParam(req.CaregiverID)
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "Caregiver not found"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if _, err := h.Caregivers.GetByID(ctx, oid); err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "Caregiver not found"})
	}
	if err := h.Sync.SyncHomeLocation(ctx, oid, req.PatientEmail, req.HomeLocation); err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "Patient not found"})
		}
		log.Printf("sync patient location failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "Failed to sync patient home location"})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Patient home location synced successfully"})
}

// GetPatientData returns the patient's authoritative lists and location.
func (h *CaregiverSyncHandler) GetPatientData(c echo.Context) error {
	patientEmail := c.Param("patientEmail")
	caregiverID := c.QueryParam("caregiverId")
	if caregiverID == "" || patientEmail == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Missing required fields"})
	}
	oid, ok := caregiverIDParam(caregiverID)
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "Caregiver not found"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if _, err := h.Caregivers.GetByID(ctx, oid); err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "Caregiver not found"})
	}
	patient, err := h.Sync.GetPatientData(ctx, oid, patientEmail)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "Patient not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "Failed to get patient data"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"patientData": echo.Map{
			"reminders":         patient.Reminders,
			"memories":          patient.Memories,
			"emergencyContacts": patient.EmergencyContacts,
			"homeLocation":      patient.HomeLocation,
		},
	})
}

// SyncProfile applies a partial caregiver profile update. Only provided
// fields change.
func (h *CaregiverSyncHandler) SyncProfile(c echo.Context) error {
	var req struct {
		CaregiverID string `json:"caregiverId"`
		Profile     *struct {
			Name            string  `json:"name"`
			Phone           *string `json:"phone"`
			ProfileImageURL string  `json:"profileImageUrl"`
		} `json:"profile"`
	}
	if err := c.Bind(&req); err != nil || req.Profile == nil || req.CaregiverID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Profile data and caregiver ID must be provided"})
	}
	oid, ok := caregiverIDParam(req.CaregiverID)
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "Caregiver not found"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if _, err := h.Caregivers.GetByID(ctx, oid); err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "Caregiver not found"})
	}

	set := bson.M{}
	if req.Profile.Name != "" {
		set["name"] = req.Profile.Name
	}
	if req.Profile.Phone != nil {
		set["phone"] = *req.Profile.Phone
	}
	if req.Profile.ProfileImageURL != "" {
		set["profileImage"] = req.Profile.ProfileImageURL
	}
	if len(set) > 0 {
		if err := h.Caregivers.UpdateByID(ctx, oid, set); err != nil {
			log.Printf("caregiver profile sync failed: %v", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "Failed to sync caregiver profile data"})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Caregiver profile data synced successfully"})
}

// GetProfile returns the caregiver's own profile, without credentials.
func (h *CaregiverSyncHandler) GetProfile(c echo.Context) error {
	caregiverID := c.QueryParam("caregiverId")
	if caregiverID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Caregiver ID must be provided"})
	}
	oid, ok := caregiverIDParam(caregiverID)
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "Caregiver not found"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	cg, err := h.Caregivers.GetByID(ctx, oid)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "Caregiver not found"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"name":         cg.Name,
			"email":        cg.Email,
			"phone":        cg.Phone,
			"profileImage": cg.ProfileImage,
			"patientEmail": cg.PatientEmail,
		},
	})
}

// ListPatients resolves the caregiver's connected patients to summary
// records, silently skipping emails whose accounts no longer exist.
func (h *CaregiverSyncHandler) ListPatients(c echo.Context) error {
	oid, ok := caregiverIDParam(c.Param("caregiverId"))
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "Caregiver not found"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	cg, err := h.Caregivers.GetByID(ctx, oid)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "Caregiver not found"})
	}
	if len(cg.ConnectedPatients) == 0 {
		return c.JSON(http.StatusOK, echo.Map{"success": true, "patients": []echo.Map{}, "message": "No connected patients found"})
	}

	patients := make([]echo.Map, 0, len(cg.ConnectedPatients))
	for _, email := range cg.ConnectedPatients {
		user, err := h.Users.GetByEmail(ctx, email)
		if err != nil {
			log.Printf("connected patient %s not found, skipping", email)
			continue
		}
		patients = append(patients, echo.Map{
			"id":           user.ID.Hex(),
			"name":         user.Name,
			"email":        user.Email,
			"profileImage": user.ProfileImage,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "patients": patients, "message": "Successfully retrieved connected patients"})
}
