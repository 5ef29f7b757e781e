// Package middleware contains reusable Echo middleware. The two auth
// guards verify a Bearer token and load the authenticated account from
// the database, so handlers can trust that `c.Get("user")` (or
// `c.Get("caregiver")`) holds a live, current document rather than just
// token claims.
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mindflow/companion-backend/internal/model"
	"github.com/mindflow/companion-backend/internal/repository"
	"github.com/mindflow/companion-backend/internal/utils"
)

// Context keys under which the guards store the loaded account.
const (
	CtxUser      = "user"
	CtxCaregiver = "caregiver"
)

// bearerToken pulls the raw token out of the Authorization header.
func bearerToken(c echo.Context) (string, bool) {
	auth := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", false
	}
	return strings.TrimPrefix(auth, "Bearer "), true
}

// Protect guards user routes. It validates the Bearer token, resolves
// the subject against the users collection, and stores the full user
// document in the context. A token whose account has since been deleted
// yields 404, not 401; clients distinguish "log in again" from "account
// gone".
func Protect(secret string, users *repository.UserRepo) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "Not authorized, no token"})
			}
			id, err := utils.VerifyToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "Not authorized, token failed"})
			}
			oid, err := primitive.ObjectIDFromHex(id)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "Not authorized, token failed"})
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
			defer cancel()
			user, err := users.GetByID(ctx, oid)
			if err != nil {
				return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": fmt.Sprintf("User not found for id: %s", id)})
			}

			c.Set(CtxUser, user)
			return next(c)
		}
	}
}

// ProtectCaregiver guards caregiver routes the same way, against the
// caregivers collection.
func ProtectCaregiver(secret string, caregivers *repository.CaregiverRepo) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "Not authorized, no token"})
			}
			id, err := utils.VerifyToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "Not authorized, token failed"})
			}
			oid, err := primitive.ObjectIDFromHex(id)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "Not authorized, token failed"})
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
			defer cancel()
			cg, err := caregivers.GetByID(ctx, oid)
			if err != nil {
				return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "Caregiver not found"})
			}

			c.Set(CtxCaregiver, cg)
			return next(c)
		}
	}
}

// UserFrom retrieves the account stored by Protect.
func UserFrom(c echo.Context) (model.User, bool) {
	u, ok := c.Get(CtxUser).(model.User)
	return u, ok
}

// CaregiverFrom retrieves the account stored by ProtectCaregiver.
func CaregiverFrom(c echo.Context) (model.Caregiver, bool) {
	cg, ok := c.Get(CtxCaregiver).(model.Caregiver)
	return cg, ok
}
