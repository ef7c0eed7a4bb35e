package fleetacl

import "context"

// User identifies a platform user for access-level resolution. RoleID is the
// user's assigned role (may be blank, may be a system role).
type User struct {
	AccountID string `json:"account_id" yaml:"account"`
	UserID    string `json:"user_id" yaml:"user"`
	RoleID    string `json:"role_id,omitempty" yaml:"role,omitempty"`
}

// AdminUserID is the distinguished administrator identity. It is a sentinel
// user ID, not a role: a user with this ID bypasses ACL resolution entirely.
const AdminUserID = "admin"

// NewUser builds a User reference with normalized components.
func NewUser(accountID, userID, roleID string) *User {
	return &User{
		AccountID: NormalizeID(accountID),
		UserID:    NormalizeID(userID),
		RoleID:    NormalizeID(roleID),
	}
}

// IsAdmin reports whether u is the distinguished administrator identity.
// A nil user is not an administrator; resolution fails closed for it.
func (u *User) IsAdmin() bool {
	return u != nil && u.UserID == AdminUserID
}

// DeviceProvider is the external Device collaborator: device existence,
// active status, and per-account enumeration.
type DeviceProvider interface {
	DeviceExists(ctx context.Context, accountID, deviceID string) (bool, error)
	DeviceIsActive(ctx context.Context, accountID, deviceID string) (bool, error)
	// ListDeviceIDs returns every device ID on the account, sorted.
	ListDeviceIDs(ctx context.Context, accountID string) ([]string, error)
}

// UserProvider is the external User collaborator: user existence and reverse
// lookups from roles to the users referencing them.
type UserProvider interface {
	UserExists(ctx context.Context, accountID, userID string) (bool, error)
	// CountUsersForRole returns how many users on the account reference the
	// role.
	CountUsersForRole(ctx context.Context, accountID, roleID string) (int, error)
}

// AccountProvider resolves the designated system-admin account, which owns
// the reserved system-role namespace.
type AccountProvider interface {
	SystemAdminAccountID(ctx context.Context) (string, error)
}

// AccountLimits is an optional capability an AccountProvider may implement
// to cap the access level an account permits. Providers without it default
// to AccessAll. Supplied at configuration time; never probed per call.
type AccountLimits interface {
	MaxAccessLevel(ctx context.Context, accountID string) AccessLevel
}

// DeviceFilter restricts device listings to devices the caller is authorized
// to see. A nil filter admits everything.
type DeviceFilter func(deviceID string) bool

// staticAccountProvider is the default AccountProvider: a fixed system-admin
// account ID.
type staticAccountProvider struct {
	systemID string
}

func (p staticAccountProvider) SystemAdminAccountID(ctx context.Context) (string, error) {
	return p.systemID, nil
}

// StaticAccountProvider returns an AccountProvider with a fixed system-admin
// account ID.
func StaticAccountProvider(systemAccountID string) AccountProvider {
	return staticAccountProvider{systemID: NormalizeID(systemAccountID)}
}

// DefaultSystemAccountID is used when no AccountProvider is configured.
const DefaultSystemAccountID = "sysadmin"
