package audit

import "time"

// Event is one append-only audit record. Role grants and revocations,
// house deletion, and impersonation all land here; the current role state
// lives in user_roles, history lives in this log.
type Event struct {
	ID         int64     `json:"id"`
	ActorID    string    `json:"actor_id"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Well-known audit actions.
const (
	ActionRoleGranted        = "role.granted"
	ActionRoleRevoked        = "role.revoked"
	ActionSystemRoleChanged  = "role.system_changed"
	ActionOwnershipTransfer  = "house.ownership_transferred"
	ActionHouseDeleted       = "house.deleted"
	ActionImpersonationStart = "admin.impersonation_started"
	ActionImpersonationStop  = "admin.impersonation_stopped"
)
