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
	"github.com/mindflow/companion-backend/internal/middleware"
	"github.com/mindflow/companion-backend/internal/model"
	"github.com/mindflow/companion-backend/internal/notify"
	"github.com/mindflow/companion-backend/internal/repository"
	"github.com/mindflow/companion-backend/internal/service"
	"github.com/mindflow/companion-backend/internal/utils"
	"github.com/mindflow/companion-backend/internal/verification"
)

const dbTimeout = 5 * time.Second

// AuthHandler bundles dependencies for patient auth endpoints.
type AuthHandler struct {
	Cfg    *config.Config
	Users  *repository.UserRepo
	Codes  verification.Store
	Mailer *notify.Mailer
	Conns  *service.ConnectionManager
}

func NewAuthHandler(cfg *config.Config, u *repository.UserRepo, codes verification.Store, mailer *notify.Mailer, conns *service.ConnectionManager) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Codes: codes, Mailer: mailer, Conns: conns}
}

// ----- DTOs -----

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signupReq struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
}

type resetPasswordReq struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"newPassword"`
}

// userPayload is the account shape returned by login/signup. Optional
// fields collapse to "" / null so clients always get a full object.
func userPayload(u model.User) echo.Map {
	return echo.Map{
		"id":           u.ID.Hex(),
		"name":         u.Name,
		"email":        u.Email,
		"profileImage": u.ProfileImage,
		"phone":        u.Phone,
		"address":      u.Address,
		"age":          u.Age,
		"medicalInfo":  u.MedicalInfo,
		"homeLocation": u.HomeLocation,
	}
}

// Login authenticates a patient. A missing account and a wrong password
// produce different messages: clients route the first to the signup
// screen.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Please provide email and password"})
	}
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Please provide email and password"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	user, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if err == repository.ErrNotFound {
			log.Printf("login failed: user not found for email %s", req.Email)
			return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "Account not found. Please sign up to create an account."})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "Login failed"})
	}
	if !utils.VerifyPassword(user.Password, req.Password) {
		log.Printf("login failed: invalid password for email %s", req.Email)
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "Invalid credentials"})
	}

	token, err := utils.SignToken(h.Cfg.JWTSecret, user.ID.Hex())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "Login failed"})
	}

	log.Printf("login successful for user: %s (%s)", user.Name, user.Email)
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"token":   token,
		"user":    userPayload(user),
	})
}

// Signup registers a patient account. Only Gmail addresses are accepted.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "All fields are required"})
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "All fields are required"})
	}
	if !strings.HasSuffix(strings.ToLower(req.Email), "@gmail.com") {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Only Gmail addresses are allowed"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	user := model.User{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
	}
	if _, err := h.Users.Create(ctx, &user); err != nil {
		if err == repository.ErrEmailExists {
			return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Email already exists"})
		}
		log.Printf("registration error: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "Registration failed"})
	}

	token, err := utils.SignToken(h.Cfg.JWTSecret, user.ID.Hex())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "Registration failed"})
	}

	log.Printf("new user account created successfully: %s", user.Email)
	return c.JSON(http.StatusCreated, echo.Map{
		"success": true,
		"token":   token,
		"message": "User registered successfully",
		"user":    userPayload(user),
	})
}

// ForgotPassword issues a reset code and emails it. Unknown addresses
// get the same success answer so the endpoint cannot be used to probe
// which emails have accounts.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.Bind(&req); err != nil || req.Email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Email is required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if _, err := h.Users.GetByEmail(ctx, req.Email); err != nil {
		log.Printf("forgot-password: email not found: %s", req.Email)
		return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "If the email exists, a reset code has been sent"})
	}

	code, err := h.Codes.Issue(ctx, verification.ResetKey("user", req.Email))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "Failed to process your request"})
	}
	if err := h.Mailer.SendResetCode(req.Email, code); err != nil {
		log.Printf("forgot-password: sending reset code email failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "Failed to send reset code. Please try again later."})
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "If the email exists, a reset code has been sent"})
}

// ResetPassword consumes a previously issued code and sets the new
// password. A fresh login token comes back with the confirmation.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "All fields are required"})
	}
	if req.Email == "" || req.Code == "" || req.NewPassword == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "All fields are required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Codes.Consume(ctx, verification.ResetKey("user", req.Email), req.Code); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Invalid or expired reset code"})
	}

	user, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "User not found"})
	}
	if err := h.Users.UpdatePassword(ctx, user.ID, req.NewPassword); err != nil {
		log.Printf("reset-password: update failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "Password reset failed"})
	}

	token, err := utils.SignToken(h.Cfg.JWTSecret, user.ID.Hex())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "Password reset failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"token":   token,
		"message": "Password updated successfully",
	})
}

// SendEmailVerification issues (or echoes) a 6-digit code and emails it.
// The code comes back in the response for client-side flows that verify
// without a follow-up endpoint.
func (h *AuthHandler) SendEmailVerification(c echo.Context) error {
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
	if err := h.Codes.IssueWith(ctx, verification.VerifyKey("user", req.Email), code); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "Email verification failed"})
	}
	log.Printf("generated email verification code for %s", req.Email)

	if err := h.Mailer.SendVerificationCode(req.Email, code); err != nil {
		log.Printf("verification email sending error: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "Failed to send verification code email, please try again"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success":          true,
		"message":          "Verification code sent to email",
		"verificationCode": code,
	})
}

// DeleteAccount removes a patient account by id (taken from the body,
// not the token) and clears every caregiver reference to it. Cascade
// failures are logged but never block the delete.
func (h *AuthHandler) DeleteAccount(c echo.Context) error {
	var req struct {
		UserID string `json:"userId"`
	}
	if err := c.Bind(&req); err != nil || req.UserID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "User ID is required"})
	}
	oid, err := primitive.ObjectIDFromHex(req.UserID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "User ID is required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	user, err := h.Users.GetByID(ctx, oid)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "User not found"})
	}

	if err := h.Conns.CascadePatientDelete(ctx, user.Email); err != nil {
		log.Printf("delete account: caregiver cleanup incomplete for %s: %v", user.Email, err)
		// Continue with deletion even if cleanup fails.
	}

	if _, err := h.Users.Delete(ctx, oid); err != nil {
		log.Printf("delete account: failed to delete user %s: %v", user.Email, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "Failed to delete account"})
	}

	log.Printf("user account deleted: %s (ID: %s)", user.Email, req.UserID)
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Account deleted successfully"})
}

// VerifyToken answers whether the presented token maps to a live
// account. The Protect middleware has already done both checks.
func (h *AuthHandler) VerifyToken(c echo.Context) error {
	if _, ok := middleware.UserFrom(c); !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "User not found"})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Token is valid and user exists"})
}
