package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-ordering/internal/utils"
)

// Authenticator exchanges a staff PIN for a role token.
type Authenticator interface {
	Login(ctx context.Context, pin string) (string, utils.AccessToken, error)
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Auth Authenticator
}

func NewAuthHandler(a Authenticator) *AuthHandler {
	return &AuthHandler{Auth: a}
}

// ----- DTOs -----

type pinReq struct {
	PIN string `json:"pin" validate:"max=32"`
}

type pinResp struct {
	OK      bool      `json:"ok"`
	Role    string    `json:"role"`
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

// PIN handles POST /api/auth/pin. The returned token carries the role the
// PIN unlocks and is sent back as a Bearer token on staff routes.
func (h *AuthHandler) PIN(c echo.Context) error {
	var req pinReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	role, tok, err := h.Auth.Login(ctx, strings.TrimSpace(req.PIN))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, pinResp{OK: true, Role: role, Token: tok.Token, Expires: tok.Exp})
}
