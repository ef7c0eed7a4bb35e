package fleetacl

import (
	"context"
	"errors"
	"testing"
)

func TestRoleLifecycle(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	ok, err := e.RoleExists(ctx, "acme", "dispatcher")
	if err != nil || ok {
		t.Fatalf("expected role missing before create, got ok=%v err=%v", ok, err)
	}

	r := mustCreateRole(t, e, "acme", "dispatcher")
	if r.CreatedAt.IsZero() || r.UpdatedAt.IsZero() {
		t.Fatalf("expected timestamps stamped on save")
	}
	if r.DisplayName != "dispatcher" {
		t.Fatalf("expected display name default, got %q", r.DisplayName)
	}

	ok, err = e.RoleExists(ctx, "ACME", "Dispatcher")
	if err != nil || !ok {
		t.Fatalf("expected normalized lookup to find the role, got ok=%v err=%v", ok, err)
	}

	if err := e.DeleteRole(ctx, "acme", "dispatcher"); err != nil {
		t.Fatalf("delete role: %v", err)
	}
	ok, err = e.RoleExists(ctx, "acme", "dispatcher")
	if err != nil || ok {
		t.Fatalf("expected role gone after delete, got ok=%v err=%v", ok, err)
	}
}

func TestGetOrCreateRoleContract(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	if _, err := e.GetOrCreateRole(ctx, "acme", "dispatcher", false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not-found for missing role without create, got %v", err)
	}

	mustCreateRole(t, e, "acme", "dispatcher")

	if _, err := e.CreateRole(ctx, "acme", "dispatcher"); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected already-exists for duplicate create, got %v", err)
	}
	got, err := e.GetOrCreateRole(ctx, "acme", "dispatcher", false)
	if err != nil {
		t.Fatalf("get existing role: %v", err)
	}
	if got.RoleID != "dispatcher" {
		t.Fatalf("unexpected role loaded: %+v", got)
	}

	if _, err := e.GetOrCreateRole(ctx, "", "dispatcher", true); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid-argument for blank account, got %v", err)
	}
}

func TestSystemRoleOwnership(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	// only the system-admin account may own system-role identifiers
	if _, err := e.CreateRole(ctx, "acme", "!support"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid-argument creating system role on acme, got %v", err)
	}

	sys := mustCreateRole(t, e, DefaultSystemAccountID, "!support")
	if sys.AccountID != DefaultSystemAccountID {
		t.Fatalf("expected system role under %s, got %s", DefaultSystemAccountID, sys.AccountID)
	}
	if sys.DisplayName != "support" {
		t.Fatalf("expected prefix stripped from display name, got %q", sys.DisplayName)
	}

	// reads of system-role IDs redirect to the system account from anywhere
	got, err := e.GetRole(ctx, "acme", "!support")
	if err != nil {
		t.Fatalf("get system role from acme: %v", err)
	}
	if got.AccountID != DefaultSystemAccountID {
		t.Fatalf("expected redirected load, got account %s", got.AccountID)
	}
}

func TestDeleteSystemRoleRequiresOwnership(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	sys := mustCreateRole(t, e, DefaultSystemAccountID, "!support")
	if err := e.SetRoleAccessLevel(ctx, sys, "device.view", AccessRead); err != nil {
		t.Fatalf("set role acl: %v", err)
	}

	// a tenant account must not be able to delete the shared system role
	if err := e.DeleteRole(ctx, "acme", "!support"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid-argument deleting system role from acme, got %v", err)
	}
	ok, err := e.RoleExists(ctx, DefaultSystemAccountID, "!support")
	if err != nil || !ok {
		t.Fatalf("expected system role to survive, got ok=%v err=%v", ok, err)
	}
	entry, err := e.GetRoleAcl(ctx, sys, "device.view")
	if err != nil || entry == nil {
		t.Fatalf("expected system role acl to survive, got entry=%v err=%v", entry, err)
	}

	// the owning account deletes it normally
	if err := e.DeleteRole(ctx, DefaultSystemAccountID, "!support"); err != nil {
		t.Fatalf("delete system role as owner: %v", err)
	}
	ok, err = e.RoleExists(ctx, DefaultSystemAccountID, "!support")
	if err != nil || ok {
		t.Fatalf("expected system role gone, got ok=%v err=%v", ok, err)
	}
}

func TestListRoleIDs(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	mustCreateRole(t, e, "acme", "viewer")
	mustCreateRole(t, e, "acme", "dispatcher")
	mustCreateRole(t, e, DefaultSystemAccountID, "!support")

	ids, err := e.ListRoleIDs(ctx, "acme", false)
	if err != nil {
		t.Fatalf("list roles: %v", err)
	}
	if len(ids) != 2 || ids[0] != "dispatcher" || ids[1] != "viewer" {
		t.Fatalf("expected sorted own roles, got %v", ids)
	}

	ids, err = e.ListRoleIDs(ctx, "acme", true)
	if err != nil {
		t.Fatalf("list roles with system: %v", err)
	}
	if len(ids) != 3 || ids[2] != "!support" {
		t.Fatalf("expected system roles appended, got %v", ids)
	}
}

func TestDeleteRoleCascadesAcls(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	role := mustCreateRole(t, e, "acme", "dispatcher")
	if err := e.SetRoleAccessLevel(ctx, role, "device.edit", AccessWrite); err != nil {
		t.Fatalf("set role acl: %v", err)
	}
	if err := e.DeleteRole(ctx, "acme", "dispatcher"); err != nil {
		t.Fatalf("delete role: %v", err)
	}

	entry, err := e.GetRoleAcl(ctx, role, "device.edit")
	if err != nil {
		t.Fatalf("get role acl: %v", err)
	}
	if entry != nil {
		t.Fatalf("expected acl row cascade-deleted, got %+v", entry)
	}
}

func TestSetRoleAccessLevelUpserts(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	role := mustCreateRole(t, e, "acme", "dispatcher")

	if err := e.SetRoleAccessLevel(ctx, role, "device.edit", AccessRead); err != nil {
		t.Fatalf("first set: %v", err)
	}
	if err := e.SetRoleAccessLevel(ctx, role, "device.edit", AccessWrite); err != nil {
		t.Fatalf("second set: %v", err)
	}

	entry, err := e.GetRoleAcl(ctx, role, "device.edit")
	if err != nil || entry == nil {
		t.Fatalf("get role acl: entry=%v err=%v", entry, err)
	}
	if entry.AccessLevel != AccessWrite {
		t.Fatalf("expected write after upsert, got %v", entry.AccessLevel)
	}
	if ids := e.ListRoleAclIDs(ctx, role); len(ids) != 1 {
		t.Fatalf("expected exactly one acl row, got %v", ids)
	}
}

func TestGetOrCreateRoleAclRequiresRole(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	ghost := NewRole("acme", "ghost")
	if _, err := e.GetOrCreateRoleAcl(ctx, ghost, "device.edit", true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not-found for missing parent role, got %v", err)
	}
}

func TestDeleteAccessLevelQuiet(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	role := mustCreateRole(t, e, "acme", "dispatcher")

	if e.DeleteRoleAccessLevel(ctx, role, "device.edit") {
		t.Fatalf("expected false for missing row")
	}
	if e.DeleteRoleAccessLevel(ctx, nil, "device.edit") {
		t.Fatalf("expected false for nil role")
	}
	if err := e.SetRoleAccessLevel(ctx, role, "device.edit", AccessRead); err != nil {
		t.Fatalf("set role acl: %v", err)
	}
	if !e.DeleteRoleAccessLevel(ctx, role, "device.edit") {
		t.Fatalf("expected true after delete of existing row")
	}
}

func TestListAclIDsSorted(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	role := mustCreateRole(t, e, "acme", "dispatcher")

	for _, acl := range []string{"zone.edit", "device.edit", "report.view"} {
		if err := e.SetRoleAccessLevel(ctx, role, acl, AccessRead); err != nil {
			t.Fatalf("set %s: %v", acl, err)
		}
	}
	ids := e.ListRoleAclIDs(ctx, role)
	want := []string{"device.edit", "report.view", "zone.edit"}
	if len(ids) != len(want) {
		t.Fatalf("expected %v, got %v", want, ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, ids)
		}
	}
}

func TestGetOrCreateUserAclChecksProvider(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, WithUserProvider(&fakeUserProvider{users: map[string]string{"bob": "dispatcher"}}))

	ghost := NewUser("acme", "ghost", "")
	if _, err := e.GetOrCreateUserAcl(ctx, ghost, "device.edit", true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not-found for unknown user, got %v", err)
	}

	bob := NewUser("acme", "bob", "dispatcher")
	entry, err := e.GetOrCreateUserAcl(ctx, bob, "device.edit", true)
	if err != nil {
		t.Fatalf("get-or-create user acl: %v", err)
	}
	if entry.UserID != "bob" || entry.AclID != "device.edit" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
}

func TestRoleUserCount(t *testing.T) {
	ctx := context.Background()
	provider := &fakeUserProvider{users: map[string]string{"bob": "dispatcher", "carol": "dispatcher", "dan": "viewer"}}
	e := newTestEngine(t, WithUserProvider(provider))
	role := mustCreateRole(t, e, "acme", "dispatcher")

	if n := e.RoleUserCount(ctx, role); n != 2 {
		t.Fatalf("expected 2 users on role, got %d", n)
	}
	if !e.RoleHasUsers(ctx, role) {
		t.Fatalf("expected role to have users")
	}

	provider.countErr = errors.New("directory down")
	if n := e.RoleUserCount(ctx, role); n != -1 {
		t.Fatalf("expected -1 on provider failure, got %d", n)
	}
	if e.RoleHasUsers(ctx, role) {
		t.Fatalf("expected has-users false on provider failure")
	}
}

func TestRoleUserCountWithoutProvider(t *testing.T) {
	e := newTestEngine(t)
	role := mustCreateRole(t, e, "acme", "dispatcher")
	if n := e.RoleUserCount(context.Background(), role); n != -1 {
		t.Fatalf("expected -1 without a user provider, got %d", n)
	}
}
