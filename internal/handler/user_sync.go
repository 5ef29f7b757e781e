package handler

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/mindflow/companion-backend/internal/middleware"
	"github.com/mindflow/companion-backend/internal/model"
	"github.com/mindflow/companion-backend/internal/repository"
)

// UserSyncHandler serves the patient's own device-sync endpoints. These
// replace the stored lists wholesale; the merge-by-id path is reserved
// for caregiver pushes.
type UserSyncHandler struct {
	Users *repository.UserRepo
}

func NewUserSyncHandler(u *repository.UserRepo) *UserSyncHandler {
	return &UserSyncHandler{Users: u}
}

// GetByEmail returns the full sync payload for an email. Users can only
// read their own record.
func (h *UserSyncHandler) GetByEmail(c echo.Context) error {
	authed, _ := middleware.UserFrom(c)
	email := normalizeParamEmail(c.Param("email"))

	if authed.Email != email {
		return c.JSON(http.StatusForbidden, echo.Map{"success": false, "message": "You are not authorized to access this data"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	user, err := h.Users.GetByEmail(ctx, email)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "User not found"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"user": echo.Map{
			"id":                user.ID.Hex(),
			"name":              user.Name,
			"email":             user.Email,
			"profileImage":      user.ProfileImage,
			"phone":             user.Phone,
			"address":           user.Address,
			"age":               user.Age,
			"medicalInfo":       user.MedicalInfo,
			"homeLocation":      user.HomeLocation,
			"reminders":         user.Reminders,
			"memories":          user.Memories,
			"emergencyContacts": user.EmergencyContacts,
			"caregiverEmail":    user.CaregiverEmail,
		},
	})
}

// replaceList is the shared write path: the incoming array replaces the
// stored list and lastSyncTime moves forward.
func (h *UserSyncHandler) replaceList(c echo.Context, field string, items []model.ListItem) error {
	user, _ := middleware.UserFrom(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	set := bson.M{field: items, "lastSyncTime": time.Now().UTC()}
	if err := h.Users.UpdateByID(ctx, user.ID, set); err != nil {
		log.Printf("sync %s update error: %v", field, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "Failed to update " + field})
	}
	return nil
}

func (h *UserSyncHandler) GetReminders(c echo.Context) error {
	user, _ := middleware.UserFrom(c)
	return c.JSON(http.StatusOK, echo.Map{"success": true, "reminders": orEmpty(user.Reminders)})
}

func (h *UserSyncHandler) PutReminders(c echo.Context) error {
	var req struct {
		Reminders []model.ListItem `json:"reminders"`
	}
	if err := c.Bind(&req); err != nil || req.Reminders == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Reminders must be an array"})
	}
	if err := h.replaceList(c, "reminders", req.Reminders); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "reminders": req.Reminders})
}

func (h *UserSyncHandler) GetMemories(c echo.Context) error {
	user, _ := middleware.UserFrom(c)
	return c.JSON(http.StatusOK, echo.Map{"success": true, "memories": orEmpty(user.Memories)})
}

func (h *UserSyncHandler) PutMemories(c echo.Context) error {
	var req struct {
		Memories []model.ListItem `json:"memories"`
	}
	if err := c.Bind(&req); err != nil || req.Memories == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Memories must be an array"})
	}
	if err := h.replaceList(c, "memories", req.Memories); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "memories": req.Memories})
}

func (h *UserSyncHandler) GetContacts(c echo.Context) error {
	user, _ := middleware.UserFrom(c)
	return c.JSON(http.StatusOK, echo.Map{"success": true, "contacts": orEmpty(user.EmergencyContacts)})
}

func (h *UserSyncHandler) PutContacts(c echo.Context) error {
	var req struct {
		Contacts []model.ListItem `json:"contacts"`
	}
	if err := c.Bind(&req); err != nil || req.Contacts == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Contacts must be an array"})
	}
	if err := h.replaceList(c, "emergencyContacts", req.Contacts); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "contacts": req.Contacts})
}

// PutHomeLocation replaces the user's home location. Null clears it.
func (h *UserSyncHandler) PutHomeLocation(c echo.Context) error {
	user, _ := middleware.UserFrom(c)

	var req struct {
		HomeLocation map[string]interface{} `json:"homeLocation"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Failed to update home location"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	set := bson.M{"homeLocation": req.HomeLocation, "lastSyncTime": time.Now().UTC()}
	if err := h.Users.UpdateByID(ctx, user.ID, set); err != nil {
		log.Printf("sync homeLocation update error: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "Failed to update home location"})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "homeLocation": req.HomeLocation})
}

func orEmpty(items []model.ListItem) []model.ListItem {
	if items == nil {
		return []model.ListItem{}
	}
	return items
}
