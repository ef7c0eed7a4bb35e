package stores

import (
	"context"
	"fmt"

	"github.com/oarkflow/fleetacl"
	"github.com/oarkflow/squealx"
)

// SQLRoleAclStore persists role ACL rows in SQL (squealx)
type SQLRoleAclStore struct {
	db *squealx.DB
}

func NewSQLRoleAclStore(db *squealx.DB) *SQLRoleAclStore {
	return &SQLRoleAclStore{db: db}
}

func (s *SQLRoleAclStore) ExistsRoleAcl(ctx context.Context, accountID, roleID, aclID string) (bool, error) {
	q := `SELECT 1 FROM role_acls WHERE account_id = :account_id AND role_id = :role_id AND acl_id = :acl_id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"account_id": accountID, "role_id": roleID, "acl_id": aclID})
	if err != nil {
		return false, err
	}
	defer r.Close()
	return r.Next(), nil
}

func (s *SQLRoleAclStore) LoadRoleAcl(ctx context.Context, accountID, roleID, aclID string) (*fleetacl.RoleAclEntry, error) {
	q := `SELECT account_id, role_id, acl_id, access_level, created_at, updated_at
	      FROM role_acls WHERE account_id = :account_id AND role_id = :role_id AND acl_id = :acl_id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"account_id": accountID, "role_id": roleID, "acl_id": aclID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, fmt.Errorf("%w: role acl %s/%s/%s", fleetacl.ErrNotFound, accountID, roleID, aclID)
	}
	e := &fleetacl.RoleAclEntry{}
	var level int
	var createdRaw, updatedRaw any
	if err := r.Scan(&e.AccountID, &e.RoleID, &e.AclID, &level, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	e.AccessLevel = fleetacl.AccessLevelOf(level)
	e.CreatedAt = scanTime(createdRaw)
	e.UpdatedAt = scanTime(updatedRaw)
	return e, nil
}

func (s *SQLRoleAclStore) SaveRoleAcl(ctx context.Context, e *fleetacl.RoleAclEntry) error {
	q := `INSERT INTO role_acls(account_id, role_id, acl_id, access_level, created_at, updated_at)
	      VALUES(:account_id, :role_id, :acl_id, :access_level, :created_at, :updated_at)
	      ON CONFLICT(account_id, role_id, acl_id) DO UPDATE SET
	          access_level = excluded.access_level,
	          updated_at   = excluded.updated_at`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"account_id":   e.AccountID,
		"role_id":      e.RoleID,
		"acl_id":       e.AclID,
		"access_level": int(e.AccessLevel),
		"created_at":   e.CreatedAt,
		"updated_at":   e.UpdatedAt,
	})
	return err
}

func (s *SQLRoleAclStore) DeleteRoleAcl(ctx context.Context, accountID, roleID, aclID string) error {
	q := `DELETE FROM role_acls WHERE account_id = :account_id AND role_id = :role_id AND acl_id = :acl_id`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"account_id": accountID, "role_id": roleID, "acl_id": aclID})
	return err
}

func (s *SQLRoleAclStore) DeleteRoleAcls(ctx context.Context, accountID, roleID string) error {
	q := `DELETE FROM role_acls WHERE account_id = :account_id AND role_id = :role_id`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"account_id": accountID, "role_id": roleID})
	return err
}

func (s *SQLRoleAclStore) ListRoleAclIDs(ctx context.Context, accountID, roleID string) ([]string, error) {
	q := `SELECT acl_id FROM role_acls WHERE account_id = :account_id AND role_id = :role_id ORDER BY acl_id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"account_id": accountID, "role_id": roleID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]string, 0)
	for r.Next() {
		var id string
		if err := r.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

// SQLUserAclStore persists user ACL rows in SQL (squealx)
type SQLUserAclStore struct {
	db *squealx.DB
}

func NewSQLUserAclStore(db *squealx.DB) *SQLUserAclStore {
	return &SQLUserAclStore{db: db}
}

func (s *SQLUserAclStore) ExistsUserAcl(ctx context.Context, accountID, userID, aclID string) (bool, error) {
	q := `SELECT 1 FROM user_acls WHERE account_id = :account_id AND user_id = :user_id AND acl_id = :acl_id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"account_id": accountID, "user_id": userID, "acl_id": aclID})
	if err != nil {
		return false, err
	}
	defer r.Close()
	return r.Next(), nil
}

func (s *SQLUserAclStore) LoadUserAcl(ctx context.Context, accountID, userID, aclID string) (*fleetacl.UserAclEntry, error) {
	q := `SELECT account_id, user_id, acl_id, access_level, created_at, updated_at
	      FROM user_acls WHERE account_id = :account_id AND user_id = :user_id AND acl_id = :acl_id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"account_id": accountID, "user_id": userID, "acl_id": aclID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, fmt.Errorf("%w: user acl %s/%s/%s", fleetacl.ErrNotFound, accountID, userID, aclID)
	}
	e := &fleetacl.UserAclEntry{}
	var level int
	var createdRaw, updatedRaw any
	if err := r.Scan(&e.AccountID, &e.UserID, &e.AclID, &level, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	e.AccessLevel = fleetacl.AccessLevelOf(level)
	e.CreatedAt = scanTime(createdRaw)
	e.UpdatedAt = scanTime(updatedRaw)
	return e, nil
}

func (s *SQLUserAclStore) SaveUserAcl(ctx context.Context, e *fleetacl.UserAclEntry) error {
	q := `INSERT INTO user_acls(account_id, user_id, acl_id, access_level, created_at, updated_at)
	      VALUES(:account_id, :user_id, :acl_id, :access_level, :created_at, :updated_at)
	      ON CONFLICT(account_id, user_id, acl_id) DO UPDATE SET
	          access_level = excluded.access_level,
	          updated_at   = excluded.updated_at`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"account_id":   e.AccountID,
		"user_id":      e.UserID,
		"acl_id":       e.AclID,
		"access_level": int(e.AccessLevel),
		"created_at":   e.CreatedAt,
		"updated_at":   e.UpdatedAt,
	})
	return err
}

func (s *SQLUserAclStore) DeleteUserAcl(ctx context.Context, accountID, userID, aclID string) error {
	q := `DELETE FROM user_acls WHERE account_id = :account_id AND user_id = :user_id AND acl_id = :acl_id`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"account_id": accountID, "user_id": userID, "acl_id": aclID})
	return err
}

func (s *SQLUserAclStore) ListUserAclIDs(ctx context.Context, accountID, userID string) ([]string, error) {
	q := `SELECT acl_id FROM user_acls WHERE account_id = :account_id AND user_id = :user_id ORDER BY acl_id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"account_id": accountID, "user_id": userID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]string, 0)
	for r.Next() {
		var id string
		if err := r.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}
