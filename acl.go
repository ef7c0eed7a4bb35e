package fleetacl

import (
	"context"
	"time"
)

// RoleAclEntry maps (account, role, acl) to an access level. Rows are owned
// by the Role and cascade-deleted with it.
type RoleAclEntry struct {
	AccountID   string      `json:"account_id" yaml:"account"`
	RoleID      string      `json:"role_id" yaml:"role"`
	AclID       string      `json:"acl_id" yaml:"acl"`
	AccessLevel AccessLevel `json:"access_level" yaml:"level"`
	CreatedAt   time.Time   `json:"created_at" yaml:"-"`
	UpdatedAt   time.Time   `json:"updated_at" yaml:"-"`
}

// NewRoleAclEntry builds an unsaved entry with normalized key components.
func NewRoleAclEntry(accountID, roleID, aclID string) *RoleAclEntry {
	return &RoleAclEntry{
		AccountID: NormalizeID(accountID),
		RoleID:    NormalizeID(roleID),
		AclID:     NormalizeID(aclID),
	}
}

// UserAclEntry maps (account, user, acl) to an access level. A user-level
// entry overrides the role-derived level for the same acl ID.
type UserAclEntry struct {
	AccountID   string      `json:"account_id" yaml:"account"`
	UserID      string      `json:"user_id" yaml:"user"`
	AclID       string      `json:"acl_id" yaml:"acl"`
	AccessLevel AccessLevel `json:"access_level" yaml:"level"`
	CreatedAt   time.Time   `json:"created_at" yaml:"-"`
	UpdatedAt   time.Time   `json:"updated_at" yaml:"-"`
}

// NewUserAclEntry builds an unsaved entry with normalized key components.
func NewUserAclEntry(accountID, userID, aclID string) *UserAclEntry {
	return &UserAclEntry{
		AccountID: NormalizeID(accountID),
		UserID:    NormalizeID(userID),
		AclID:     NormalizeID(aclID),
	}
}

// RoleAclStore persists RoleAclEntry rows.
type RoleAclStore interface {
	ExistsRoleAcl(ctx context.Context, accountID, roleID, aclID string) (bool, error)
	// LoadRoleAcl returns ErrNotFound when the row is missing.
	LoadRoleAcl(ctx context.Context, accountID, roleID, aclID string) (*RoleAclEntry, error)
	SaveRoleAcl(ctx context.Context, e *RoleAclEntry) error
	DeleteRoleAcl(ctx context.Context, accountID, roleID, aclID string) error
	// DeleteRoleAcls removes every row for (accountID, roleID); used for the
	// Role cascade.
	DeleteRoleAcls(ctx context.Context, accountID, roleID string) error
	// ListRoleAclIDs returns the acl IDs for the role, sorted.
	ListRoleAclIDs(ctx context.Context, accountID, roleID string) ([]string, error)
}

// UserAclStore persists UserAclEntry rows.
type UserAclStore interface {
	ExistsUserAcl(ctx context.Context, accountID, userID, aclID string) (bool, error)
	// LoadUserAcl returns ErrNotFound when the row is missing.
	LoadUserAcl(ctx context.Context, accountID, userID, aclID string) (*UserAclEntry, error)
	SaveUserAcl(ctx context.Context, e *UserAclEntry) error
	DeleteUserAcl(ctx context.Context, accountID, userID, aclID string) error
	// ListUserAclIDs returns the acl IDs for the user, sorted.
	ListUserAclIDs(ctx context.Context, accountID, userID string) ([]string, error)
}
