package houses

import (
	"time"

	"github.com/cohaus/cohaus/internal/perm"
)

// House is a co-owned vacation home.
type House struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Address      string    `json:"address"`
	Description  string    `json:"description"`
	ArrivalNotes string    `json:"arrival_notes"`
	WifiName     string    `json:"wifi_name"`
	WifiPassword string    `json:"wifi_password"`
	HouseRules   string    `json:"house_rules"`
	HideFinances bool      `json:"hide_finances"`
	CreatedBy    string    `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Member is a user holding a role in a house, joined with profile data for
// display.
type Member struct {
	UserID    string         `json:"user_id"`
	Email     string         `json:"email"`
	Name      string         `json:"name"`
	Role      perm.HouseRole `json:"role"`
	GrantedAt time.Time      `json:"granted_at"`
	GrantedBy string         `json:"granted_by"`
}
