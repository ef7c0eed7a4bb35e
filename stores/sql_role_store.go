package stores

import (
	"context"
	"fmt"

	"github.com/oarkflow/fleetacl"
	"github.com/oarkflow/squealx"
)

// SQLRoleStore persists roles in SQL (squealx)
type SQLRoleStore struct {
	db *squealx.DB
}

func NewSQLRoleStore(db *squealx.DB) *SQLRoleStore {
	return &SQLRoleStore{db: db}
}

func (s *SQLRoleStore) ExistsRole(ctx context.Context, accountID, roleID string) (bool, error) {
	q := `SELECT 1 FROM roles WHERE account_id = :account_id AND role_id = :role_id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"account_id": accountID, "role_id": roleID})
	if err != nil {
		return false, err
	}
	defer r.Close()
	return r.Next(), nil
}

func (s *SQLRoleStore) LoadRole(ctx context.Context, accountID, roleID string) (*fleetacl.Role, error) {
	q := `SELECT account_id, role_id, display_name, description, notes, created_at, updated_at
	      FROM roles WHERE account_id = :account_id AND role_id = :role_id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"account_id": accountID, "role_id": roleID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, fmt.Errorf("%w: role %s/%s", fleetacl.ErrNotFound, accountID, roleID)
	}
	role := &fleetacl.Role{}
	var createdRaw, updatedRaw any
	if err := r.Scan(&role.AccountID, &role.RoleID, &role.DisplayName, &role.Description, &role.Notes, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	role.CreatedAt = scanTime(createdRaw)
	role.UpdatedAt = scanTime(updatedRaw)
	return role, nil
}

func (s *SQLRoleStore) SaveRole(ctx context.Context, role *fleetacl.Role) error {
	q := `INSERT INTO roles(account_id, role_id, display_name, description, notes, created_at, updated_at)
	      VALUES(:account_id, :role_id, :display_name, :description, :notes, :created_at, :updated_at)
	      ON CONFLICT(account_id, role_id) DO UPDATE SET
	          display_name = excluded.display_name,
	          description  = excluded.description,
	          notes        = excluded.notes,
	          updated_at   = excluded.updated_at`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"account_id":   role.AccountID,
		"role_id":      role.RoleID,
		"display_name": role.DisplayName,
		"description":  role.Description,
		"notes":        role.Notes,
		"created_at":   role.CreatedAt,
		"updated_at":   role.UpdatedAt,
	})
	return err
}

func (s *SQLRoleStore) DeleteRole(ctx context.Context, accountID, roleID string) error {
	q := `DELETE FROM roles WHERE account_id = :account_id AND role_id = :role_id`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"account_id": accountID, "role_id": roleID})
	return err
}

func (s *SQLRoleStore) ListRoleIDs(ctx context.Context, accountID string) ([]string, error) {
	q := `SELECT role_id FROM roles WHERE account_id = :account_id ORDER BY role_id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"account_id": accountID})
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
