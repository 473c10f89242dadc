package middleware

// identity.go reads what StaffAuth stored in the echo context. Public
// routes have no identity and fall back to "guest".

import "github.com/labstack/echo/v4"

// Role returns the authenticated staff role, or "" on public routes.
func Role(c echo.Context) string {
	role, _ := c.Get(ctxRole).(string)
	return role
}

// userID returns the token subject ("staff:waiter", "admin") or "guest".
func userID(c echo.Context) string {
	if s, ok := c.Get(ctxUserID).(string); ok && s != "" {
		return s
	}
	return "guest"
}
