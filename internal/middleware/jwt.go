package middleware // reusable HTTP middleware for the staff API

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-ordering/internal/model"
)

// Context keys set by StaffAuth.
const (
	ctxUserID = "user_id"
	ctxRole   = "role"
)

// StaffAuth accepts either a Bearer token issued by PIN login or HTTP Basic
// credentials carrying the admin password. Basic authenticates as the owner
// and is disabled when adminPassword is empty. On success the token subject
// and role are stored under "user_id" and "role".
func StaffAuth(secret, adminPassword string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			switch {
			case strings.HasPrefix(auth, "Bearer "):
				sub, role, ok := parseStaffToken(strings.TrimPrefix(auth, "Bearer "), secret)
				if !ok {
					return unauthorized(c, "invalid_token")
				}
				c.Set(ctxUserID, sub)
				c.Set(ctxRole, role)
				return next(c)
			case strings.HasPrefix(auth, "Basic ") && adminPassword != "":
				_, pass, ok := c.Request().BasicAuth()
				if !ok || subtle.ConstantTimeCompare([]byte(pass), []byte(adminPassword)) != 1 {
					return unauthorized(c, "invalid_credentials")
				}
				c.Set(ctxUserID, "admin")
				c.Set(ctxRole, model.RoleOwner)
				return next(c)
			}
			return unauthorized(c, "unauthorized")
		}
	}
}

// parseStaffToken verifies an HS256 token and returns its subject and role.
func parseStaffToken(raw, secret string) (string, string, bool) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, echo.ErrUnauthorized
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tok.Valid {
		return "", "", false
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", false
	}
	sub, _ := claims["sub"].(string)
	role, _ := claims["role"].(string)
	if role == "" {
		return "", "", false
	}
	return sub, role, true
}

func unauthorized(c echo.Context, code string) error {
	c.Response().Header().Set(echo.HeaderWWWAuthenticate, `Basic realm="staff"`)
	return c.JSON(http.StatusUnauthorized, echo.Map{"ok": false, "error": code})
}
