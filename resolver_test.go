package fleetacl

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"
)

// fakeDeviceProvider is a map-backed Device collaborator for tests.
type fakeDeviceProvider struct {
	devices map[string]bool // deviceID -> active
}

func (f *fakeDeviceProvider) DeviceExists(ctx context.Context, accountID, deviceID string) (bool, error) {
	_, ok := f.devices[deviceID]
	return ok, nil
}

func (f *fakeDeviceProvider) DeviceIsActive(ctx context.Context, accountID, deviceID string) (bool, error) {
	return f.devices[deviceID], nil
}

func (f *fakeDeviceProvider) ListDeviceIDs(ctx context.Context, accountID string) ([]string, error) {
	out := make([]string, 0, len(f.devices))
	for id := range f.devices {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// fakeUserProvider is a map-backed User collaborator for tests.
type fakeUserProvider struct {
	users     map[string]string // userID -> roleID
	countErr  error
	existsErr error
}

func (f *fakeUserProvider) UserExists(ctx context.Context, accountID, userID string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	_, ok := f.users[userID]
	return ok, nil
}

func (f *fakeUserProvider) CountUsersForRole(ctx context.Context, accountID, roleID string) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	n := 0
	for _, r := range f.users {
		if r == roleID {
			n++
		}
	}
	return n, nil
}

// failingUserAclStore simulates a backing-store outage on load.
type failingUserAclStore struct {
	UserAclStore
}

func (failingUserAclStore) LoadUserAcl(ctx context.Context, accountID, userID, aclID string) (*UserAclEntry, error) {
	return nil, errors.New("connection refused")
}

// cappedAccounts limits every account to read access.
type cappedAccounts struct{}

func (cappedAccounts) SystemAdminAccountID(ctx context.Context) (string, error) {
	return DefaultSystemAccountID, nil
}

func (cappedAccounts) MaxAccessLevel(ctx context.Context, accountID string) AccessLevel {
	return AccessRead
}

func newTestEngine(t *testing.T, opts ...EngineOption) *Engine {
	t.Helper()
	e, err := NewEngine(
		NewMemoryRoleStore(),
		NewMemoryRoleAclStore(),
		NewMemoryUserAclStore(),
		NewMemoryMembershipStore(),
		opts...,
	)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e
}

func TestResolveAdminBypass(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	admin := NewUser("acme", AdminUserID, "")

	// overrides must not matter for the administrator identity
	if err := e.SetUserAccessLevel(ctx, admin, "device.edit", AccessNone); err != nil {
		t.Fatalf("set user acl: %v", err)
	}
	if got := e.ResolveAccessLevel(ctx, admin, "device.edit", AccessNone); got != AccessAll {
		t.Fatalf("expected all for admin, got %v", got)
	}
	if got := e.ResolveAccessLevel(ctx, admin, "anything.else", AccessNone); got != AccessAll {
		t.Fatalf("expected all for admin on unknown acl, got %v", got)
	}
}

func TestResolveNilUserFailsClosed(t *testing.T) {
	e := newTestEngine(t)
	if got := e.ResolveAccessLevel(context.Background(), nil, "device.edit", AccessAll); got != AccessNone {
		t.Fatalf("expected none for nil user, got %v", got)
	}
}

func TestResolveUserOverrideWinsOverRole(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	role := mustCreateRole(t, e, "acme", "dispatcher")
	if err := e.SetRoleAccessLevel(ctx, role, "device.edit", AccessAll); err != nil {
		t.Fatalf("set role acl: %v", err)
	}
	bob := NewUser("acme", "bob", "dispatcher")
	if err := e.SetUserAccessLevel(ctx, bob, "device.edit", AccessRead); err != nil {
		t.Fatalf("set user acl: %v", err)
	}

	if got := e.ResolveAccessLevel(ctx, bob, "device.edit", AccessNone); got != AccessRead {
		t.Fatalf("expected user override (read) to win, got %v", got)
	}
}

func TestResolveRoleFallback(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	role := mustCreateRole(t, e, "acme", "dispatcher")
	if err := e.SetRoleAccessLevel(ctx, role, "device.edit", AccessWrite); err != nil {
		t.Fatalf("set role acl: %v", err)
	}
	bob := NewUser("acme", "bob", "dispatcher")

	if got := e.ResolveAccessLevel(ctx, bob, "device.edit", AccessNone); got != AccessWrite {
		t.Fatalf("expected role level write, got %v", got)
	}
}

func TestResolveDefaultWhenNoOverrides(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	bob := NewUser("acme", "bob", "")

	if got := e.ResolveAccessLevel(ctx, bob, "device.edit", AccessWrite); got != AccessWrite {
		t.Fatalf("expected supplied default, got %v", got)
	}
	// blank acl also yields the default
	if got := e.ResolveAccessLevel(ctx, bob, "", AccessRead); got != AccessRead {
		t.Fatalf("expected default for blank acl, got %v", got)
	}
}

func TestResolveDefaultClampedToAccountMax(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, WithAccountProvider(cappedAccounts{}))
	bob := NewUser("acme", "bob", "")

	if got := e.ResolveAccessLevel(ctx, bob, "device.edit", AccessAll); got != AccessRead {
		t.Fatalf("expected default clamped to read, got %v", got)
	}
}

func TestResolveUserLevelClampedToAccountMax(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, WithAccountProvider(cappedAccounts{}))
	bob := NewUser("acme", "bob", "")

	if err := e.SetUserAccessLevel(ctx, bob, "device.edit", AccessAll); err != nil {
		t.Fatalf("set user acl: %v", err)
	}
	if got := e.ResolveAccessLevel(ctx, bob, "device.edit", AccessNone); got != AccessRead {
		t.Fatalf("expected user level clamped to read, got %v", got)
	}
}

// Role-path grants are not clamped against the account max. This pins the
// historical behavior; see the resolver doc comment.
func TestResolveRoleLevelNotClamped(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, WithAccountProvider(cappedAccounts{}))

	role := mustCreateRole(t, e, "acme", "dispatcher")
	if err := e.SetRoleAccessLevel(ctx, role, "device.edit", AccessAll); err != nil {
		t.Fatalf("set role acl: %v", err)
	}
	bob := NewUser("acme", "bob", "dispatcher")

	if got := e.ResolveAccessLevel(ctx, bob, "device.edit", AccessNone); got != AccessAll {
		t.Fatalf("expected unclamped role level all, got %v", got)
	}
}

func TestResolveStoreFailureFailsClosed(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	e.userAcls = failingUserAclStore{}
	bob := NewUser("acme", "bob", "")

	if got := e.ResolveAccessLevel(ctx, bob, "device.edit", AccessAll); got != AccessNone {
		t.Fatalf("expected none on store failure, got %v", got)
	}
	if _, err := e.ResolveAccessLevelStrict(ctx, bob, "device.edit", AccessAll); err == nil {
		t.Fatalf("expected strict resolver to propagate the failure")
	}
}

// A role grant applies until a per-user override narrows it.
func TestResolveDispatcherScenario(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, WithDecisionCache(1000, 1<<20, time.Minute))

	role := mustCreateRole(t, e, "acme", "dispatcher")
	if err := e.SetRoleAccessLevel(ctx, role, "device.edit", AccessWrite); err != nil {
		t.Fatalf("set role acl: %v", err)
	}
	bob := NewUser("acme", "bob", "dispatcher")

	if got := e.ResolveAccessLevel(ctx, bob, "device.edit", AccessNone); got != AccessWrite {
		t.Fatalf("expected write via role, got %v", got)
	}
	if err := e.SetUserAccessLevel(ctx, bob, "device.edit", AccessRead); err != nil {
		t.Fatalf("set user acl: %v", err)
	}
	// the override write cleared the decision cache
	if got := e.ResolveAccessLevel(ctx, bob, "device.edit", AccessNone); got != AccessRead {
		t.Fatalf("expected read after user override, got %v", got)
	}
	if !e.HasReadAccess(ctx, bob, "device.edit", AccessNone) {
		t.Fatalf("expected read access")
	}
	if e.HasWriteAccess(ctx, bob, "device.edit", AccessNone) {
		t.Fatalf("expected no write access after override")
	}
}

func TestResolveSystemRoleGrant(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	// system role owned by the system-admin account
	sysRole := mustCreateRole(t, e, DefaultSystemAccountID, "!support")
	if err := e.SetRoleAccessLevel(ctx, sysRole, "device.view", AccessRead); err != nil {
		t.Fatalf("set role acl: %v", err)
	}

	// a user on another account referencing the system role picks it up
	carol := NewUser("acme", "carol", "!support")
	if got := e.ResolveAccessLevel(ctx, carol, "device.view", AccessNone); got != AccessRead {
		t.Fatalf("expected read via system role, got %v", got)
	}
}

func mustCreateRole(t *testing.T, e *Engine, accountID, roleID string) *Role {
	t.Helper()
	r, err := e.CreateRole(context.Background(), accountID, roleID)
	if err != nil {
		t.Fatalf("create role %s/%s: %v", accountID, roleID, err)
	}
	return r
}
