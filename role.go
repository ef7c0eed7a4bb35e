package fleetacl

import (
	"context"
	"strings"
	"time"
)

// SystemRolePrefix marks role IDs in the reserved system-role namespace.
// System roles are owned by the system-admin account but readable from any
// account.
const SystemRolePrefix = "!"

// Role is a per-account named role. The key is (AccountID, RoleID), both
// lower-cased.
type Role struct {
	AccountID   string    `json:"account_id" yaml:"account"`
	RoleID      string    `json:"role_id" yaml:"role"`
	DisplayName string    `json:"display_name" yaml:"display_name"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Notes       string    `json:"notes,omitempty" yaml:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at" yaml:"-"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"-"`
}

// NewRole builds an in-memory, unsaved Role with normalized key components.
func NewRole(accountID, roleID string) *Role {
	return &Role{
		AccountID: NormalizeID(accountID),
		RoleID:    NormalizeID(roleID),
	}
}

// IsSystemRole reports whether the role ID falls in the reserved namespace.
func (r *Role) IsSystemRole() bool {
	return r != nil && IsSystemRoleID(r.RoleID)
}

// IsSystemRoleID reports whether roleID starts with SystemRolePrefix.
func IsSystemRoleID(roleID string) bool {
	return strings.HasPrefix(roleID, SystemRolePrefix)
}

// RoleStore is the persistence substrate for Role rows. Implementations are
// plain CRUD; the namespace redirection and get-or-create semantics live on
// the Engine.
type RoleStore interface {
	ExistsRole(ctx context.Context, accountID, roleID string) (bool, error)
	// LoadRole returns ErrNotFound when the row is missing.
	LoadRole(ctx context.Context, accountID, roleID string) (*Role, error)
	// SaveRole inserts or updates the row.
	SaveRole(ctx context.Context, r *Role) error
	// DeleteRole removes the row. Dependent RoleAcl rows are removed by the
	// Engine before this call; SQL implementations may additionally cascade.
	DeleteRole(ctx context.Context, accountID, roleID string) error
	// ListRoleIDs returns all role IDs owned by the account, sorted.
	ListRoleIDs(ctx context.Context, accountID string) ([]string, error)
}
