package model

import (
	"encoding/json"
	"time"
)

// Well-known settings keys. Any other key is stored as given.
const (
	SettingSound       = "sound"
	SettingAutorefresh = "autorefresh"
	SettingRestaurant  = "restaurant"
	SettingStaffPINs   = "staff_pins"
)

// Setting is one key of the flat settings store. Value holds raw JSON.
type Setting struct {
	Key       string          // settings.setting_key
	Value     json.RawMessage // settings.value
	UpdatedAt time.Time       // settings.updated_at
}

// Staff roles issued by PIN login.
const (
	RoleWaiter  = "waiter"
	RoleCashier = "cashier"
	RoleOwner   = "owner"
)
