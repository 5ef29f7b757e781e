package handler

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mindflow/companion-backend/internal/config"
	"github.com/mindflow/companion-backend/internal/model"
	"github.com/mindflow/companion-backend/internal/notify"
	"github.com/mindflow/companion-backend/internal/repository"
	"github.com/mindflow/companion-backend/internal/service"
	"github.com/mindflow/companion-backend/internal/utils"
	"github.com/mindflow/companion-backend/internal/verification"
)

// CaregiverHandler bundles dependencies for caregiver account and
// connection endpoints.
type CaregiverHandler struct {
	Cfg        *config.Config
	Caregivers *repository.CaregiverRepo
	Users      *repository.UserRepo
	Codes      verification.Store
	Mailer     *notify.Mailer
	Conns      *service.ConnectionManager
}

func NewCaregiverHandler(cfg *config.Config, cg *repository.CaregiverRepo, u *repository.UserRepo, codes verification.Store, mailer *notify.Mailer, conns *service.ConnectionManager) *CaregiverHandler {
	return &CaregiverHandler{Cfg: cfg, Caregivers: cg, Users: u, Codes: codes, Mailer: mailer, Conns: conns}
}

// caregiverIDParam parses a caregiver object id from a path or body
// value. A malformed id is treated like a missing caregiver.
func caregiverIDParam(raw string) (primitive.ObjectID, bool) {
	oid, err := primitive.ObjectIDFromHex(raw)
	return oid, err == nil
}

func normalizeParamEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Signup registers a caregiver account. Unlike patients, any email
// domain is accepted.
func (h *CaregiverHandler) Signup(c echo.Context) error {
	var req struct {
		Name        string `json:"name"`
		Email       string `json:"email"`
		Password    string `json:"password"`
		PhoneNumber string `json:"phoneNumber"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "All fields are required"})
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "All fields are required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	cg := model.Caregiver{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.PhoneNumber,
	}
	if _, err := h.Caregivers.Create(ctx, &cg); err != nil {
		if err == repository.ErrEmailExists {
			return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Email already exists"})
		}
		log.Printf("caregiver signup error: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "Registration failed"})
	}

	token, err := utils.SignToken(h.Cfg.JWTSecret, cg.ID.Hex())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "Registration failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"success": true,
		"token":   token,
		"caregiver": echo.Map{
			"id":    cg.ID.Hex(),
			"name":  cg.Name,
			"email": cg.Email,
			"phone": cg.Phone,
		},
	})
}

// Login authenticates a caregiver. Before answering, the stored patient
// connection is re-validated so a stale reference to a deleted patient
// never reaches the client.
func (h *CaregiverHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Please provide email and password"})
	}
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Please provide email and password"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	cg, err := h.Caregivers.GetByEmail(ctx, req.Email)
	if err != nil || !utils.VerifyPassword(cg.Password, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "Invalid credentials"})
	}

	cg, _, err = h.Conns.EnsurePrimaryValid(ctx, cg)
	if err != nil {
		log.Printf("caregiver login: connection check failed for %s: %v", cg.Email, err)
	}

	token, err := utils.SignToken(h.Cfg.JWTSecret, cg.ID.Hex())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "Login failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"token":   token,
		"caregiver": echo.Map{
			"id":           cg.ID.Hex(),
			"name":         cg.Name,
			"email":        cg.Email,
			"phone":        cg.Phone,
			"patientEmail": cg.PatientEmail,
		},
	})
}

// CheckEmail answers whether a caregiver account exists for an email.
func (h *CaregiverHandler) CheckEmail(c echo.Context) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.Bind(&req); err != nil || req.Email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Email is required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if _, err := h.Caregivers.GetByEmail(ctx, req.Email); err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "Email not found"})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Email exists"})
}

// ForgotPassword issues a reset code for a caregiver account and emails
// it. Unknown addresses get the generic success answer.
func (h *CaregiverHandler) ForgotPassword(c echo.Context) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.Bind(&req); err != nil || req.Email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Email is required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if _, err := h.Caregivers.GetByEmail(ctx, req.Email); err != nil {
		log.Printf("caregiver forgot-password: email not found: %s", req.Email)
		return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "If the email exists, a reset code has been sent"})
	}

	code, err := h.Codes.Issue(ctx, verification.ResetKey("caregiver", req.Email))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "Password reset failed"})
	}
	if err := h.Mailer.SendCaregiverResetCode(req.Email, code); err != nil {
		log.Printf("caregiver forgot-password: email sending error: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "Failed to send reset code email, please try again"})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Reset code sent to email"})
}

// ResetPassword consumes a reset code and sets the caregiver's new
// password, returning a fresh token.
func (h *CaregiverHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "All fields are required"})
	}
	if req.Email == "" || req.Code == "" || req.NewPassword == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "All fields are required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Codes.Consume(ctx, verification.ResetKey("caregiver", req.Email), req.Code); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Invalid or expired reset code"})
	}

	cg, err := h.Caregivers.GetByEmail(ctx, req.Email)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "Caregiver not found"})
	}
	if err := h.Caregivers.UpdatePassword(ctx, cg.ID, req.NewPassword); err != nil {
		log.Printf("caregiver reset-password: update failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "Password reset failed"})
	}

	token, err := utils.SignToken(h.Cfg.JWTSecret, cg.ID.Hex())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "Password reset failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"token":   token,
		"message": "Password updated successfully",
	})
}

// SendEmailVerification issues a 6-digit code and emails it. The code is
// echoed back only outside production.
func (h *CaregiverHandler) SendEmailVerification(c echo.Context) error {
	var req struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := c.Bind(&req); err != nil || req.Email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Email is required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	code := req.Code
	if code == "" {
		var err error
		if code, err = verification.NewCode(); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "Email verification failed"})
		}
	}
	if err := h.Codes.IssueWith(ctx, verification.VerifyKey("caregiver", req.Email), code); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "Email verification failed"})
	}
	log.Printf("generated caregiver email verification code for %s", req.Email)

	if err := h.Mailer.SendCaregiverVerificationCode(req.Email, code); err != nil {
		log.Printf("caregiver verification email sending error: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "Failed to send verification code email, please try again"})
	}

	resp := echo.Map{"success": true, "message": "Verification code sent to email"}
	if h.Cfg.Env == "development" {
		resp["verificationCode"] = code
	}
	return c.JSON(http.StatusOK, resp)
}

// VerifyCode validates an email verification code. Codes are one-time
// use; a successful check consumes the code.
func (h *CaregiverHandler) VerifyCode(c echo.Context) error {
	var req struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := c.Bind(&req); err != nil || req.Email == "" || req.Code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Email and verification code are required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Codes.Consume(ctx, verification.VerifyKey("caregiver", req.Email), req.Code); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Invalid or expired verification code"})
	}
	log.Printf("verification code validated successfully for: %s", req.Email)
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Verification code validated successfully"})
}

// Connect links the caregiver to a patient account by email.
func (h *CaregiverHandler) Connect(c echo.Context) error {
	var req struct {
		CaregiverID  string `json:"caregiverId"`
		PatientEmail string `json:"patientEmail"`
	}
	if err := c.Bind(&req); err != nil || req.PatientEmail == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Patient email is required"})
	}
	oid, ok := caregiverIDParam(req.CaregiverID)
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "Caregiver not found"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	cg, err := h.Conns.Connect(ctx, oid, req.PatientEmail)
	if err != nil {
		if err == repository.ErrNotFound {
			// Distinguish which side is missing for the client message.
			if _, cgErr := h.Caregivers.GetByID(ctx, oid); cgErr != nil {
				return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "Caregiver not found"})
			}
			return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "Patient not found. This account may have been deleted or does not exist."})
		}
		log.Printf("caregiver connect error: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "Failed to connect to patient"})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Connected to patient successfully", "caregiver": cg})
}

// Disconnect removes the caregiver's primary patient connection.
func (h *CaregiverHandler) Disconnect(c echo.Context) error {
	var req struct {
		CaregiverID  string `json:"caregiverId"`
		PatientEmail string `json:"patientEmail"`
	}
	if err := c.Bind(&req); err != nil || req.CaregiverID == "" || req.PatientEmail == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Caregiver ID and patient email are required"})
	}
	oid, ok := caregiverIDParam(req.CaregiverID)
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "Caregiver not found"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	switch err := h.Conns.Disconnect(ctx, oid, req.PatientEmail); err {
	case nil:
		return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Caregiver disconnected from patient successfully"})
	case repository.ErrNotFound:
		return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "Caregiver not found"})
	case service.ErrNotConnected:
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Caregiver is not connected to this patient"})
	default:
		log.Printf("caregiver disconnect error: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "Server error disconnecting from patient"})
	}
}

// CheckPatient reports whether a patient account exists for the email.
// No patient data is returned.
func (h *CaregiverHandler) CheckPatient(c echo.Context) error {
	email := c.Param("email")
	if email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Email is required", "exists": false})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	_, err := h.Users.GetByEmail(ctx, email)
	if err != nil && err != repository.ErrNotFound {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "Database error checking patient", "exists": false})
	}
	exists := err == nil
	msg := "Patient found"
	if !exists {
		msg = "Patient not found or account deleted"
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "exists": exists, "message": msg})
}

// VerifyConnections re-validates the caregiver's stored patient
// connection, clearing it if the patient account is gone.
func (h *CaregiverHandler) VerifyConnections(c echo.Context) error {
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

	hadPrimary := cg.PatientEmail != nil && *cg.PatientEmail != ""
	_, valid, err := h.Conns.EnsurePrimaryValid(ctx, cg)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "Server error verifying connections"})
	}
	if hadPrimary && !valid {
		return c.JSON(http.StatusOK, echo.Map{"success": true, "valid": false, "message": "Removed connection to non-existent patient"})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "valid": true, "message": "All connections are valid"})
}

// VerifyConnection checks a specific caregiver–patient pair, healing the
// stored reference if the patient account no longer exists.
func (h *CaregiverHandler) VerifyConnection(c echo.Context) error {
	oid, ok := caregiverIDParam(c.Param("caregiverId"))
	patientEmail := c.Param("patientEmail")
	if !ok || patientEmail == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Caregiver ID and patient email are required", "connected": false})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	cg, err := h.Caregivers.GetByID(ctx, oid)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "Caregiver not found", "connected": false})
	}

	connected := cg.PatientEmail != nil && *cg.PatientEmail == normalizeParamEmail(patientEmail)
	if connected {
		_, valid, err := h.Conns.EnsurePrimaryValid(ctx, cg)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "Server error verifying connection", "connected": false})
		}
		if !valid {
			return c.JSON(http.StatusOK, echo.Map{"success": true, "connected": false, "message": "Patient account no longer exists. Connection removed."})
		}
		return c.JSON(http.StatusOK, echo.Map{"success": true, "connected": true, "message": "Connected to patient"})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "connected": false, "message": "Not connected to this patient"})
}

// VerifyPatientConnection reports whether the caregiver's primary
// connection references a live patient, healing it when it does not.
func (h *CaregiverHandler) VerifyPatientConnection(c echo.Context) error {
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
	if cg.PatientEmail == nil || *cg.PatientEmail == "" {
		return c.JSON(http.StatusOK, echo.Map{"success": true, "hasValidPatient": false, "message": "No patient connected"})
	}

	cg, valid, err := h.Conns.EnsurePrimaryValid(ctx, cg)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "Failed to verify patient connection"})
	}
	if !valid {
		return c.JSON(http.StatusOK, echo.Map{"success": true, "hasValidPatient": false, "message": "Connected patient no longer exists and has been removed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":         true,
		"hasValidPatient": true,
		"patientEmail":    cg.PatientEmail,
		"message":         "Connected patient exists",
	})
}

// DeleteAccount removes a caregiver by id or email and clears every
// patient back-reference. Cleanup failures never block the delete.
func (h *CaregiverHandler) DeleteAccount(c echo.Context) error {
	var req struct {
		CaregiverID    string `json:"caregiverId"`
		CaregiverEmail string `json:"caregiverEmail"`
	}
	if err := c.Bind(&req); err != nil || (req.CaregiverID == "" && req.CaregiverEmail == "") {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Either caregiver ID or email is required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	var deleted model.Caregiver
	var err error = repository.ErrNotFound
	if req.CaregiverID != "" {
		if oid, ok := caregiverIDParam(req.CaregiverID); ok {
			deleted, err = h.Caregivers.Delete(ctx, oid)
		}
	}
	if err != nil && req.CaregiverEmail != "" {
		deleted, err = h.Caregivers.DeleteByEmail(ctx, req.CaregiverEmail)
	}
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "Caregiver not found. Please ensure the account exists."})
	}

	if err := h.Conns.CascadeCaregiverDelete(ctx, deleted); err != nil {
		log.Printf("caregiver delete: cleanup incomplete for %s: %v", deleted.Email, err)
	}

	log.Printf("caregiver account deleted: %s", deleted.Email)
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Caregiver account deleted successfully"})
}

// Info returns the minimal caregiver identity used for emergency alerts.
func (h *CaregiverHandler) Info(c echo.Context) error {
	email := c.Param("email")
	if email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Email is required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	cg, err := h.Caregivers.GetByEmail(ctx, email)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "Caregiver not found"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"caregiver": echo.Map{
			"name":  cg.Name,
			"email": cg.Email,
		},
	})
}
