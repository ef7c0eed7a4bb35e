package fleetacl

import (
	"context"
	"testing"
)

const seedYAML = `
roles:
  - account: acme
    role: dispatcher
    display_name: Dispatcher
groups:
  - account: acme
    group: east-fleet
    display_name: East Fleet
role_acls:
  - account: acme
    role: dispatcher
    acl: device.edit
    level: write
user_acls:
  - account: acme
    user: bob
    acl: report.view
    level: read
device_lists:
  - account: acme
    group: east-fleet
    device: truck-01
group_lists:
  - account: acme
    user: bob
    group: east-fleet
`

func TestApplyConfigFromYAML(t *testing.T) {
	ctx := context.Background()
	e := newMembershipEngine(t, map[string]bool{"truck-01": true})

	cfg, err := NewConfigLoader().LoadYAML([]byte(seedYAML))
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}
	if err := e.ApplyConfig(ctx, cfg); err != nil {
		t.Fatalf("apply config: %v", err)
	}

	role, err := e.GetRole(ctx, "acme", "dispatcher")
	if err != nil {
		t.Fatalf("get role: %v", err)
	}
	if role.DisplayName != "Dispatcher" {
		t.Fatalf("expected seeded display name, got %q", role.DisplayName)
	}

	bob := NewUser("acme", "bob", "dispatcher")
	if got := e.ResolveAccessLevel(ctx, bob, "device.edit", AccessNone); got != AccessWrite {
		t.Fatalf("expected write via seeded role acl, got %v", got)
	}
	if got := e.ResolveAccessLevel(ctx, bob, "report.view", AccessNone); got != AccessRead {
		t.Fatalf("expected read via seeded user acl, got %v", got)
	}

	ok, err := e.DeviceInGroup(ctx, "acme", "east-fleet", "truck-01")
	if err != nil || !ok {
		t.Fatalf("expected seeded device edge, got ok=%v err=%v", ok, err)
	}
	ok, err = e.UserInGroup(ctx, "acme", "bob", "east-fleet")
	if err != nil || !ok {
		t.Fatalf("expected seeded user edge, got ok=%v err=%v", ok, err)
	}
}

func TestApplyConfigIdempotent(t *testing.T) {
	ctx := context.Background()
	e := newMembershipEngine(t, map[string]bool{"truck-01": true})

	cfg, err := NewConfigLoader().LoadYAML([]byte(seedYAML))
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}
	if err := e.ApplyConfig(ctx, cfg); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if err := e.ApplyConfig(ctx, cfg); err != nil {
		t.Fatalf("second apply: %v", err)
	}

	ids, err := e.ListDeviceIDsForGroup(ctx, "acme", "east-fleet", nil, true, -1)
	if err != nil {
		t.Fatalf("list devices: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("expected a single edge after re-apply, got %v", ids)
	}
}

func TestConfigJSONRoundTrip(t *testing.T) {
	cfg := &Config{
		Roles:    []*Role{NewRole("acme", "dispatcher")},
		RoleAcls: []*RoleAclEntry{{AccountID: "acme", RoleID: "dispatcher", AclID: "device.edit", AccessLevel: AccessWrite}},
	}
	data, err := cfg.ToJSON()
	if err != nil {
		t.Fatalf("to json: %v", err)
	}
	got, err := NewConfigLoader().LoadJSON(data)
	if err != nil {
		t.Fatalf("load json: %v", err)
	}
	if len(got.Roles) != 1 || got.Roles[0].RoleID != "dispatcher" {
		t.Fatalf("unexpected roles: %+v", got.Roles)
	}
	if len(got.RoleAcls) != 1 || got.RoleAcls[0].AccessLevel != AccessWrite {
		t.Fatalf("unexpected role acls: %+v", got.RoleAcls)
	}
}
