package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/oarkflow/fleetacl"
	"github.com/oarkflow/fleetacl/stores"
	"github.com/oarkflow/squealx"
	_ "modernc.org/sqlite"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	eng, closeDB, err := openEngine()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer closeDB()

	ctx := context.Background()
	cmd := os.Args[1]
	args := os.Args[2:]

	var cmdErr error
	switch cmd {
	case "role":
		cmdErr = handleRole(ctx, eng, args)
	case "acl":
		cmdErr = handleAcl(ctx, eng, args)
	case "group":
		cmdErr = handleGroup(ctx, eng, args)
	case "resolve":
		cmdErr = handleResolve(ctx, eng, args)
	case "apply":
		cmdErr = handleApply(ctx, eng, args)
	default:
		fmt.Printf("Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if cmdErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", cmdErr)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("fleetacl-admin - role/ACL/group administration")
	fmt.Println()
	fmt.Println("Usage (database file from FLEETACL_DB, default fleetacl.db):")
	fmt.Println("  fleetacl-admin role create <account> <role>")
	fmt.Println("  fleetacl-admin role delete <account> <role>")
	fmt.Println("  fleetacl-admin role list <account> [-sys]")
	fmt.Println("  fleetacl-admin acl set-role <account> <role> <acl> <level>")
	fmt.Println("  fleetacl-admin acl set-user <account> <user> <acl> <level>")
	fmt.Println("  fleetacl-admin acl delete-role <account> <role> <acl>")
	fmt.Println("  fleetacl-admin acl delete-user <account> <user> <acl>")
	fmt.Println("  fleetacl-admin acl list-role <account> <role>")
	fmt.Println("  fleetacl-admin acl list-user <account> <user>")
	fmt.Println("  fleetacl-admin group create <account> <group>")
	fmt.Println("  fleetacl-admin group delete <account> <group>")
	fmt.Println("  fleetacl-admin group list <account>")
	fmt.Println("  fleetacl-admin group add-device <account> <group> <device>")
	fmt.Println("  fleetacl-admin group rm-device <account> <group> <device>")
	fmt.Println("  fleetacl-admin group devices <account> <group>")
	fmt.Println("  fleetacl-admin group add-user <account> <group> <user>")
	fmt.Println("  fleetacl-admin group users <account> <group>")
	fmt.Println("  fleetacl-admin resolve <account> <user> <role> <acl> [default-level]")
	fmt.Println("  fleetacl-admin apply <config.yaml|config.json>")
	fmt.Println()
	fmt.Println("Levels: none, read, write, all")
}

func openEngine() (*fleetacl.Engine, func(), error) {
	path := os.Getenv("FLEETACL_DB")
	if path == "" {
		path = "fleetacl.db"
	}
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	db := squealx.NewDb(sqlDB, "sqlite", "fleetacl")
	if err := stores.Migrate(db); err != nil {
		sqlDB.Close()
		return nil, nil, err
	}
	eng, err := fleetacl.NewEngine(
		stores.NewSQLRoleStore(db),
		stores.NewSQLRoleAclStore(db),
		stores.NewSQLUserAclStore(db),
		stores.NewSQLMembershipStore(db),
		fleetacl.WithLogger(fleetacl.NewPhusluLogger()),
	)
	if err != nil {
		sqlDB.Close()
		return nil, nil, err
	}
	return eng, func() { sqlDB.Close() }, nil
}

func handleRole(ctx context.Context, eng *fleetacl.Engine, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("role: missing arguments")
	}
	switch args[0] {
	case "create":
		if len(args) < 3 {
			return fmt.Errorf("role create: need <account> <role>")
		}
		r, err := eng.CreateRole(ctx, args[1], args[2])
		if err != nil {
			return err
		}
		fmt.Printf("created role %s/%s\n", r.AccountID, r.RoleID)
	case "delete":
		if len(args) < 3 {
			return fmt.Errorf("role delete: need <account> <role>")
		}
		if err := eng.DeleteRole(ctx, args[1], args[2]); err != nil {
			return err
		}
		fmt.Println("deleted")
	case "list":
		includeSys := len(args) > 2 && args[2] == "-sys"
		ids, err := eng.ListRoleIDs(ctx, args[1], includeSys)
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Println(id)
		}
	default:
		return fmt.Errorf("role: unknown subcommand %q", args[0])
	}
	return nil
}

func handleAcl(ctx context.Context, eng *fleetacl.Engine, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("acl: missing arguments")
	}
	switch args[0] {
	case "set-role", "set-user":
		if len(args) < 5 {
			return fmt.Errorf("acl %s: need <account> <owner> <acl> <level>", args[0])
		}
		level, err := fleetacl.ParseAccessLevel(args[4])
		if err != nil {
			return err
		}
		if args[0] == "set-role" {
			return eng.SetRoleAccessLevel(ctx, fleetacl.NewRole(args[1], args[2]), args[3], level)
		}
		return eng.SetUserAccessLevel(ctx, fleetacl.NewUser(args[1], args[2], ""), args[3], level)
	case "delete-role":
		if len(args) < 4 {
			return fmt.Errorf("acl delete-role: need <account> <role> <acl>")
		}
		if eng.DeleteRoleAccessLevel(ctx, fleetacl.NewRole(args[1], args[2]), args[3]) {
			fmt.Println("deleted")
		} else {
			fmt.Println("no such entry")
		}
	case "delete-user":
		if len(args) < 4 {
			return fmt.Errorf("acl delete-user: need <account> <user> <acl>")
		}
		if eng.DeleteUserAccessLevel(ctx, fleetacl.NewUser(args[1], args[2], ""), args[3]) {
			fmt.Println("deleted")
		} else {
			fmt.Println("no such entry")
		}
	case "list-role":
		role := fleetacl.NewRole(args[1], args[2])
		for _, id := range eng.ListRoleAclIDs(ctx, role) {
			entry, err := eng.GetRoleAcl(ctx, role, id)
			if err != nil || entry == nil {
				continue
			}
			fmt.Printf("%s\t%s\n", id, entry.AccessLevel)
		}
	case "list-user":
		user := fleetacl.NewUser(args[1], args[2], "")
		for _, id := range eng.ListUserAclIDs(ctx, user) {
			entry, err := eng.GetUserAcl(ctx, user, id)
			if err != nil || entry == nil {
				continue
			}
			fmt.Printf("%s\t%s\n", id, entry.AccessLevel)
		}
	default:
		return fmt.Errorf("acl: unknown subcommand %q", args[0])
	}
	return nil
}

func handleGroup(ctx context.Context, eng *fleetacl.Engine, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("group: missing arguments")
	}
	switch args[0] {
	case "create":
		if len(args) < 3 {
			return fmt.Errorf("group create: need <account> <group>")
		}
		g, err := eng.CreateGroup(ctx, args[1], args[2])
		if err != nil {
			return err
		}
		fmt.Printf("created group %s/%s\n", g.AccountID, g.GroupID)
	case "delete":
		if len(args) < 3 {
			return fmt.Errorf("group delete: need <account> <group>")
		}
		return eng.DeleteGroup(ctx, args[1], args[2])
	case "list":
		ids, err := eng.ListGroupIDsForAccount(ctx, args[1], true)
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Println(id)
		}
	case "add-device":
		if len(args) < 4 {
			return fmt.Errorf("group add-device: need <account> <group> <device>")
		}
		return eng.AddDeviceToGroup(ctx, args[1], args[2], args[3])
	case "rm-device":
		if len(args) < 4 {
			return fmt.Errorf("group rm-device: need <account> <group> <device>")
		}
		return eng.RemoveDeviceFromGroup(ctx, args[1], args[2], args[3])
	case "devices":
		if len(args) < 3 {
			return fmt.Errorf("group devices: need <account> <group>")
		}
		ids, err := eng.ListDeviceIDsForGroup(ctx, args[1], args[2], nil, true, -1)
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Println(id)
		}
	case "add-user":
		if len(args) < 4 {
			return fmt.Errorf("group add-user: need <account> <group> <user>")
		}
		return eng.AddUserToGroup(ctx, args[1], args[3], args[2])
	case "users":
		if len(args) < 3 {
			return fmt.Errorf("group users: need <account> <group>")
		}
		ids, err := eng.ListUserIDsForGroup(ctx, args[1], args[2])
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Println(id)
		}
	default:
		return fmt.Errorf("group: unknown subcommand %q", args[0])
	}
	return nil
}

func handleResolve(ctx context.Context, eng *fleetacl.Engine, args []string) error {
	if len(args) < 4 {
		return fmt.Errorf("resolve: need <account> <user> <role> <acl> [default-level]")
	}
	dft := fleetacl.AccessNone
	if len(args) > 4 {
		var err error
		dft, err = fleetacl.ParseAccessLevel(args[4])
		if err != nil {
			return err
		}
	}
	user := fleetacl.NewUser(args[0], args[1], args[2])
	level, err := eng.ResolveAccessLevelStrict(ctx, user, args[3], dft)
	if err != nil {
		return err
	}
	fmt.Println(level)
	return nil
}

func handleApply(ctx context.Context, eng *fleetacl.Engine, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("apply: need <config file>")
	}
	cfg, err := fleetacl.NewConfigLoader().LoadFile(args[0])
	if err != nil {
		return err
	}
	if err := eng.ApplyConfig(ctx, cfg); err != nil {
		return err
	}
	fmt.Printf("applied %d roles, %d role acls, %d user acls, %d groups\n",
		len(cfg.Roles), len(cfg.RoleAcls), len(cfg.UserAcls), len(cfg.Groups))
	return nil
}
