package service

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"

	"github.com/iliyamo/restaurant-ordering/internal/model"
	"github.com/iliyamo/restaurant-ordering/internal/utils"
)

// PINSource yields the configured role → PIN map. *SettingsService
// satisfies it.
type PINSource interface {
	StaffPINs(ctx context.Context) (map[string]string, error)
}

// AuthService exchanges a staff PIN for a role token.
type AuthService struct {
	pins        PINSource
	fallbackPIN string
	secret      string
	ttlMin      int
	now         func() time.Time
}

// NewAuthService returns an AuthService. fallbackPIN unlocks the waiter role
// when no staff_pins setting assigns one.
func NewAuthService(pins PINSource, fallbackPIN, secret string, ttlMin int) *AuthService {
	if ttlMin <= 0 {
		ttlMin = 720
	}
	return &AuthService{pins: pins, fallbackPIN: fallbackPIN, secret: secret, ttlMin: ttlMin, now: time.Now}
}

// roleOrder decides which role wins when two roles share a PIN.
var roleOrder = []string{model.RoleOwner, model.RoleCashier, model.RoleWaiter}

// Login compares pin against every configured role and signs a token for
// the first match.
func (s *AuthService) Login(ctx context.Context, pin string) (string, utils.AccessToken, error) {
	pin = strings.TrimSpace(pin)
	if pin == "" {
		return "", utils.AccessToken{}, invalid("pin_required", "pin is required")
	}
	pins, err := s.pins.StaffPINs(ctx)
	if err != nil {
		return "", utils.AccessToken{}, err
	}
	if _, ok := pins[model.RoleWaiter]; !ok && s.fallbackPIN != "" {
		pins[model.RoleWaiter] = s.fallbackPIN
	}
	for _, role := range roleOrder {
		want, ok := pins[role]
		if !ok {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(want), []byte(pin)) == 1 {
			tok, err := utils.NewStaffToken(s.secret, role, s.ttlMin, s.now())
			if err != nil {
				return "", utils.AccessToken{}, err
			}
			return role, tok, nil
		}
	}
	return "", utils.AccessToken{}, ErrInvalidPIN
}
