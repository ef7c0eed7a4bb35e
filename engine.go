package fleetacl

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto"
)

// Engine ties the record stores and external collaborators together and
// implements the role, ACL, membership and resolution operations on top of
// them. Stores stay plain CRUD; all namespace, cascade and get-or-create
// semantics live here.
//
// The Engine holds no application-level locks: concurrency safety is
// delegated to the backing store, and a get-or-create race between two
// callers may surface as ErrAlreadyExists on one of them.
type Engine struct {
	roles      RoleStore
	roleAcls   RoleAclStore
	userAcls   UserAclStore
	membership MembershipStore

	devices  DeviceProvider
	users    UserProvider
	accounts AccountProvider
	limits   AccountLimits // optional capability, resolved at construction

	logger Logger

	decisionCache *ristretto.Cache
	decisionTTL   time.Duration
}

// EngineOption configures an Engine.
type EngineOption func(e *Engine) error

// WithLogger installs a Logger on the Engine.
func WithLogger(l Logger) EngineOption {
	return func(e *Engine) error {
		e.logger = l
		return nil
	}
}

// WithDeviceProvider installs the external Device collaborator.
func WithDeviceProvider(p DeviceProvider) EngineOption {
	return func(e *Engine) error {
		e.devices = p
		return nil
	}
}

// WithUserProvider installs the external User collaborator.
func WithUserProvider(p UserProvider) EngineOption {
	return func(e *Engine) error {
		e.users = p
		return nil
	}
}

// WithAccountProvider installs the external Account collaborator. If the
// provider also implements AccountLimits, per-account access-level caps are
// applied during resolution.
func WithAccountProvider(p AccountProvider) EngineOption {
	return func(e *Engine) error {
		e.accounts = p
		if lim, ok := p.(AccountLimits); ok {
			e.limits = lim
		}
		return nil
	}
}

// WithDecisionCache enables a ristretto-backed cache of resolved access
// levels with the given TTL. The cache is cleared whenever an ACL row is
// written or deleted.
func WithDecisionCache(numCounters, maxCost int64, ttl time.Duration) EngineOption {
	return func(e *Engine) error {
		c, err := ristretto.NewCache(&ristretto.Config{
			NumCounters: numCounters,
			MaxCost:     maxCost,
			BufferItems: 64,
		})
		if err != nil {
			return fmt.Errorf("decision cache: %w", err)
		}
		e.decisionCache = c
		e.decisionTTL = ttl
		return nil
	}
}

// NewEngine builds an Engine over the given stores.
func NewEngine(roles RoleStore, roleAcls RoleAclStore, userAcls UserAclStore, membership MembershipStore, opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		roles:      roles,
		roleAcls:   roleAcls,
		userAcls:   userAcls,
		membership: membership,
		accounts:   StaticAccountProvider(DefaultSystemAccountID),
		logger:     NewNullLogger(),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (e *Engine) systemAccountID(ctx context.Context) (string, error) {
	id, err := e.accounts.SystemAdminAccountID(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve system account: %w", err)
	}
	return NormalizeID(id), nil
}

// roleOwnerAccount maps a (caller account, role ID) pair to the account that
// owns the role row: system-role IDs always live under the system-admin
// account.
func (e *Engine) roleOwnerAccount(ctx context.Context, accountID, roleID string) (string, error) {
	if !IsSystemRoleID(roleID) {
		return accountID, nil
	}
	return e.systemAccountID(ctx)
}

func (e *Engine) invalidateDecisions() {
	if e.decisionCache != nil {
		e.decisionCache.Clear()
	}
}

// ----------------------------------------------------------------------------
// Roles
// ----------------------------------------------------------------------------

// RoleExists reports whether the role exists. System-role IDs are checked
// under the system-admin account. Blank identifiers report false.
func (e *Engine) RoleExists(ctx context.Context, accountID, roleID string) (bool, error) {
	accountID, roleID = NormalizeID(accountID), NormalizeID(roleID)
	if accountID == "" || roleID == "" {
		return false, nil
	}
	owner, err := e.roleOwnerAccount(ctx, accountID, roleID)
	if err != nil {
		return false, err
	}
	return e.roles.ExistsRole(ctx, owner, roleID)
}

// GetRole loads a role. Lookups of system-role IDs are redirected to the
// system-admin account's row so any account can read them.
func (e *Engine) GetRole(ctx context.Context, accountID, roleID string) (*Role, error) {
	accountID, roleID = NormalizeID(accountID), NormalizeID(roleID)
	if accountID == "" || roleID == "" {
		return nil, fmt.Errorf("%w: blank account/role id", ErrInvalidArgument)
	}
	owner, err := e.roleOwnerAccount(ctx, accountID, roleID)
	if err != nil {
		return nil, err
	}
	return e.roles.LoadRole(ctx, owner, roleID)
}

// GetOrCreateRole implements the strict get-or-create contract: with create
// set, an existing row is ErrAlreadyExists and a missing row yields an
// in-memory unsaved Role with defaults populated; without it, a missing row
// is ErrNotFound. Only the system-admin account may own system-role IDs.
func (e *Engine) GetOrCreateRole(ctx context.Context, accountID, roleID string, create bool) (*Role, error) {
	accountID, roleID = NormalizeID(accountID), NormalizeID(roleID)
	if accountID == "" || roleID == "" {
		return nil, fmt.Errorf("%w: blank account/role id", ErrInvalidArgument)
	}
	owner, err := e.roleOwnerAccount(ctx, accountID, roleID)
	if err != nil {
		return nil, err
	}
	if create && IsSystemRoleID(roleID) && accountID != owner {
		return nil, fmt.Errorf("%w: account %q cannot own system role %q", ErrInvalidArgument, accountID, roleID)
	}
	exists, err := e.roles.ExistsRole(ctx, owner, roleID)
	if err != nil {
		return nil, err
	}
	if exists {
		if create {
			return nil, fmt.Errorf("%w: role %s/%s", ErrAlreadyExists, owner, roleID)
		}
		return e.roles.LoadRole(ctx, owner, roleID)
	}
	if !create {
		return nil, fmt.Errorf("%w: role %s/%s", ErrNotFound, owner, roleID)
	}
	r := NewRole(owner, roleID)
	r.DisplayName = strings.TrimPrefix(roleID, SystemRolePrefix)
	return r, nil
}

// CreateRole creates and persists a new role in one step.
func (e *Engine) CreateRole(ctx context.Context, accountID, roleID string) (*Role, error) {
	r, err := e.GetOrCreateRole(ctx, accountID, roleID, true)
	if err != nil {
		return nil, err
	}
	if err := e.SaveRole(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// SaveRole persists the role (insert or update).
func (e *Engine) SaveRole(ctx context.Context, r *Role) error {
	if r == nil {
		return fmt.Errorf("%w: nil role", ErrInvalidArgument)
	}
	r.AccountID, r.RoleID = NormalizeID(r.AccountID), NormalizeID(r.RoleID)
	if r.AccountID == "" || r.RoleID == "" {
		return fmt.Errorf("%w: blank account/role id", ErrInvalidArgument)
	}
	now := time.Now()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	return e.roles.SaveRole(ctx, r)
}

// DeleteRole removes the role and cascade-deletes its RoleAcl rows. System
// roles may only be deleted by the system-admin account; other accounts hold
// read-only references to them.
func (e *Engine) DeleteRole(ctx context.Context, accountID, roleID string) error {
	accountID, roleID = NormalizeID(accountID), NormalizeID(roleID)
	if accountID == "" || roleID == "" {
		return fmt.Errorf("%w: blank account/role id", ErrInvalidArgument)
	}
	owner, err := e.roleOwnerAccount(ctx, accountID, roleID)
	if err != nil {
		return err
	}
	if IsSystemRoleID(roleID) && accountID != owner {
		return fmt.Errorf("%w: account %q cannot delete system role %q", ErrInvalidArgument, accountID, roleID)
	}
	if err := e.roleAcls.DeleteRoleAcls(ctx, owner, roleID); err != nil {
		return fmt.Errorf("cascade role acls: %w", err)
	}
	if err := e.roles.DeleteRole(ctx, owner, roleID); err != nil {
		return err
	}
	e.invalidateDecisions()
	return nil
}

// ListRoleIDs returns the account's role IDs sorted lexicographically. With
// includeSystemRoles set and a non-system account, the system-admin
// account's system-role IDs are appended (sorted within their own block;
// the two ID spaces are disjoint so no deduplication happens).
func (e *Engine) ListRoleIDs(ctx context.Context, accountID string, includeSystemRoles bool) ([]string, error) {
	accountID = NormalizeID(accountID)
	if accountID == "" {
		return nil, nil
	}
	own, err := e.roles.ListRoleIDs(ctx, accountID)
	if err != nil {
		return nil, err
	}
	sort.Strings(own)
	if !includeSystemRoles {
		return own, nil
	}
	sysAcct, err := e.systemAccountID(ctx)
	if err != nil {
		return nil, err
	}
	if accountID == sysAcct {
		return own, nil
	}
	sysIDs, err := e.roles.ListRoleIDs(ctx, sysAcct)
	if err != nil {
		return nil, err
	}
	sort.Strings(sysIDs)
	for _, id := range sysIDs {
		if IsSystemRoleID(id) {
			own = append(own, id)
		}
	}
	return own, nil
}

// RoleHasUsers reports whether any user references the role. This is a
// best-effort query backing UI listings: a missing UserProvider or a lookup
// failure reports false rather than an error.
func (e *Engine) RoleHasUsers(ctx context.Context, r *Role) bool {
	return e.RoleUserCount(ctx, r) > 0
}

// RoleUserCount returns how many users reference the role, or -1 when the
// count cannot be determined.
func (e *Engine) RoleUserCount(ctx context.Context, r *Role) int {
	if r == nil || e.users == nil {
		return -1
	}
	n, err := e.users.CountUsersForRole(ctx, r.AccountID, r.RoleID)
	if err != nil {
		e.logger.Error("role user count failed", "account", r.AccountID, "role", r.RoleID, "error", err)
		return -1
	}
	return n
}

// ----------------------------------------------------------------------------
// Role ACLs
// ----------------------------------------------------------------------------

// GetRoleAcl returns the role's override for aclID, or nil when no override
// row exists (the caller applies its own default). A nil role or blank acl
// ID also yields nil.
func (e *Engine) GetRoleAcl(ctx context.Context, r *Role, aclID string) (*RoleAclEntry, error) {
	aclID = NormalizeID(aclID)
	if r == nil || aclID == "" {
		return nil, nil
	}
	entry, err := e.roleAcls.LoadRoleAcl(ctx, r.AccountID, r.RoleID, aclID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return entry, err
}

// GetOrCreateRoleAcl implements the strict get-or-create contract for a
// role ACL row. The owning role must exist.
func (e *Engine) GetOrCreateRoleAcl(ctx context.Context, r *Role, aclID string, create bool) (*RoleAclEntry, error) {
	aclID = NormalizeID(aclID)
	if r == nil || aclID == "" {
		return nil, fmt.Errorf("%w: nil role or blank acl id", ErrInvalidArgument)
	}
	if ok, err := e.roles.ExistsRole(ctx, r.AccountID, r.RoleID); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("%w: role %s/%s", ErrNotFound, r.AccountID, r.RoleID)
	}
	exists, err := e.roleAcls.ExistsRoleAcl(ctx, r.AccountID, r.RoleID, aclID)
	if err != nil {
		return nil, err
	}
	if exists {
		if create {
			return nil, fmt.Errorf("%w: role acl %s/%s/%s", ErrAlreadyExists, r.AccountID, r.RoleID, aclID)
		}
		return e.roleAcls.LoadRoleAcl(ctx, r.AccountID, r.RoleID, aclID)
	}
	if !create {
		return nil, fmt.Errorf("%w: role acl %s/%s/%s", ErrNotFound, r.AccountID, r.RoleID, aclID)
	}
	return NewRoleAclEntry(r.AccountID, r.RoleID, aclID), nil
}

// SetRoleAccessLevel upserts the role's access level for aclID. Unlike the
// strict get-or-create this is idempotent.
func (e *Engine) SetRoleAccessLevel(ctx context.Context, r *Role, aclID string, level AccessLevel) error {
	aclID = NormalizeID(aclID)
	if r == nil || aclID == "" {
		return fmt.Errorf("%w: nil role or blank acl id", ErrInvalidArgument)
	}
	entry, err := e.roleAcls.LoadRoleAcl(ctx, r.AccountID, r.RoleID, aclID)
	if errors.Is(err, ErrNotFound) {
		entry = NewRoleAclEntry(r.AccountID, r.RoleID, aclID)
	} else if err != nil {
		return err
	}
	entry.AccessLevel = level
	now := time.Now()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now
	if err := e.roleAcls.SaveRoleAcl(ctx, entry); err != nil {
		return err
	}
	e.invalidateDecisions()
	return nil
}

// DeleteRoleAccessLevel removes the role's override for aclID. Returns false
// quietly when the role is nil, the acl ID is blank, or no row exists.
func (e *Engine) DeleteRoleAccessLevel(ctx context.Context, r *Role, aclID string) bool {
	aclID = NormalizeID(aclID)
	if r == nil || aclID == "" {
		return false
	}
	exists, err := e.roleAcls.ExistsRoleAcl(ctx, r.AccountID, r.RoleID, aclID)
	if err != nil || !exists {
		if err != nil {
			e.logger.Error("role acl exists check failed", "account", r.AccountID, "role", r.RoleID, "acl", aclID, "error", err)
		}
		return false
	}
	if err := e.roleAcls.DeleteRoleAcl(ctx, r.AccountID, r.RoleID, aclID); err != nil {
		e.logger.Error("role acl delete failed", "account", r.AccountID, "role", r.RoleID, "acl", aclID, "error", err)
		return false
	}
	e.invalidateDecisions()
	return true
}

// ListRoleAclIDs returns the role's acl IDs sorted lexicographically. Backs
// UI listings: failures are logged and yield an empty slice.
func (e *Engine) ListRoleAclIDs(ctx context.Context, r *Role) []string {
	if r == nil {
		return nil
	}
	ids, err := e.roleAcls.ListRoleAclIDs(ctx, r.AccountID, r.RoleID)
	if err != nil {
		e.logger.Error("list role acls failed", "account", r.AccountID, "role", r.RoleID, "error", err)
		return nil
	}
	sort.Strings(ids)
	return ids
}

// ----------------------------------------------------------------------------
// User ACLs
// ----------------------------------------------------------------------------

// GetUserAcl returns the user's override for aclID, or nil when no override
// row exists.
func (e *Engine) GetUserAcl(ctx context.Context, u *User, aclID string) (*UserAclEntry, error) {
	aclID = NormalizeID(aclID)
	if u == nil || aclID == "" {
		return nil, nil
	}
	entry, err := e.userAcls.LoadUserAcl(ctx, u.AccountID, u.UserID, aclID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return entry, err
}

// GetOrCreateUserAcl implements the strict get-or-create contract for a
// user ACL row. The owning user must exist when a UserProvider is wired.
func (e *Engine) GetOrCreateUserAcl(ctx context.Context, u *User, aclID string, create bool) (*UserAclEntry, error) {
	aclID = NormalizeID(aclID)
	if u == nil || aclID == "" {
		return nil, fmt.Errorf("%w: nil user or blank acl id", ErrInvalidArgument)
	}
	if e.users != nil {
		if ok, err := e.users.UserExists(ctx, u.AccountID, u.UserID); err != nil {
			return nil, err
		} else if !ok {
			return nil, fmt.Errorf("%w: user %s/%s", ErrNotFound, u.AccountID, u.UserID)
		}
	}
	exists, err := e.userAcls.ExistsUserAcl(ctx, u.AccountID, u.UserID, aclID)
	if err != nil {
		return nil, err
	}
	if exists {
		if create {
			return nil, fmt.Errorf("%w: user acl %s/%s/%s", ErrAlreadyExists, u.AccountID, u.UserID, aclID)
		}
		return e.userAcls.LoadUserAcl(ctx, u.AccountID, u.UserID, aclID)
	}
	if !create {
		return nil, fmt.Errorf("%w: user acl %s/%s/%s", ErrNotFound, u.AccountID, u.UserID, aclID)
	}
	return NewUserAclEntry(u.AccountID, u.UserID, aclID), nil
}

// SetUserAccessLevel upserts the user's access level for aclID.
func (e *Engine) SetUserAccessLevel(ctx context.Context, u *User, aclID string, level AccessLevel) error {
	aclID = NormalizeID(aclID)
	if u == nil || aclID == "" {
		return fmt.Errorf("%w: nil user or blank acl id", ErrInvalidArgument)
	}
	entry, err := e.userAcls.LoadUserAcl(ctx, u.AccountID, u.UserID, aclID)
	if errors.Is(err, ErrNotFound) {
		entry = NewUserAclEntry(u.AccountID, u.UserID, aclID)
	} else if err != nil {
		return err
	}
	entry.AccessLevel = level
	now := time.Now()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now
	if err := e.userAcls.SaveUserAcl(ctx, entry); err != nil {
		return err
	}
	e.invalidateDecisions()
	return nil
}

// DeleteUserAccessLevel removes the user's override for aclID. Returns false
// quietly when the user is nil, the acl ID is blank, or no row exists.
func (e *Engine) DeleteUserAccessLevel(ctx context.Context, u *User, aclID string) bool {
	aclID = NormalizeID(aclID)
	if u == nil || aclID == "" {
		return false
	}
	exists, err := e.userAcls.ExistsUserAcl(ctx, u.AccountID, u.UserID, aclID)
	if err != nil || !exists {
		if err != nil {
			e.logger.Error("user acl exists check failed", "account", u.AccountID, "user", u.UserID, "acl", aclID, "error", err)
		}
		return false
	}
	if err := e.userAcls.DeleteUserAcl(ctx, u.AccountID, u.UserID, aclID); err != nil {
		e.logger.Error("user acl delete failed", "account", u.AccountID, "user", u.UserID, "acl", aclID, "error", err)
		return false
	}
	e.invalidateDecisions()
	return true
}

// ListUserAclIDs returns the user's acl IDs sorted lexicographically.
// Failures are logged and yield an empty slice.
func (e *Engine) ListUserAclIDs(ctx context.Context, u *User) []string {
	if u == nil {
		return nil
	}
	ids, err := e.userAcls.ListUserAclIDs(ctx, u.AccountID, u.UserID)
	if err != nil {
		e.logger.Error("list user acls failed", "account", u.AccountID, "user", u.UserID, "error", err)
		return nil
	}
	sort.Strings(ids)
	return ids
}
