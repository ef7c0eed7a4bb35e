package stores

import (
	"context"
	"fmt"

	"github.com/oarkflow/fleetacl"
	"github.com/oarkflow/squealx"
)

// SQLMembershipStore persists device groups and the device/user membership
// edges in SQL (squealx). The virtual "all" group never reaches this store.
type SQLMembershipStore struct {
	db *squealx.DB
}

func NewSQLMembershipStore(db *squealx.DB) *SQLMembershipStore {
	return &SQLMembershipStore{db: db}
}

func (s *SQLMembershipStore) ExistsGroup(ctx context.Context, accountID, groupID string) (bool, error) {
	q := `SELECT 1 FROM device_groups WHERE account_id = :account_id AND group_id = :group_id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"account_id": accountID, "group_id": groupID})
	if err != nil {
		return false, err
	}
	defer r.Close()
	return r.Next(), nil
}

func (s *SQLMembershipStore) LoadGroup(ctx context.Context, accountID, groupID string) (*fleetacl.DeviceGroup, error) {
	q := `SELECT account_id, group_id, display_name, description, notes, created_at, updated_at
	      FROM device_groups WHERE account_id = :account_id AND group_id = :group_id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"account_id": accountID, "group_id": groupID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, fmt.Errorf("%w: group %s/%s", fleetacl.ErrNotFound, accountID, groupID)
	}
	g := &fleetacl.DeviceGroup{}
	var createdRaw, updatedRaw any
	if err := r.Scan(&g.AccountID, &g.GroupID, &g.DisplayName, &g.Description, &g.Notes, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	g.CreatedAt = scanTime(createdRaw)
	g.UpdatedAt = scanTime(updatedRaw)
	return g, nil
}

func (s *SQLMembershipStore) SaveGroup(ctx context.Context, g *fleetacl.DeviceGroup) error {
	q := `INSERT INTO device_groups(account_id, group_id, display_name, description, notes, created_at, updated_at)
	      VALUES(:account_id, :group_id, :display_name, :description, :notes, :created_at, :updated_at)
	      ON CONFLICT(account_id, group_id) DO UPDATE SET
	          display_name = excluded.display_name,
	          description  = excluded.description,
	          notes        = excluded.notes,
	          updated_at   = excluded.updated_at`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"account_id":   g.AccountID,
		"group_id":     g.GroupID,
		"display_name": g.DisplayName,
		"description":  g.Description,
		"notes":        g.Notes,
		"created_at":   g.CreatedAt,
		"updated_at":   g.UpdatedAt,
	})
	return err
}

// DeleteGroup removes the group row and cascades to its device_lists edges.
func (s *SQLMembershipStore) DeleteGroup(ctx context.Context, accountID, groupID string) error {
	args := map[string]any{"account_id": accountID, "group_id": groupID}
	if _, err := s.db.NamedExecContext(ctx, `DELETE FROM device_lists WHERE account_id = :account_id AND group_id = :group_id`, args); err != nil {
		return fmt.Errorf("cascade device lists: %w", err)
	}
	_, err := s.db.NamedExecContext(ctx, `DELETE FROM device_groups WHERE account_id = :account_id AND group_id = :group_id`, args)
	return err
}

func (s *SQLMembershipStore) ListGroupIDs(ctx context.Context, accountID string) ([]string, error) {
	q := `SELECT group_id FROM device_groups WHERE account_id = :account_id ORDER BY group_id`
	return s.listIDs(ctx, q, map[string]any{"account_id": accountID})
}

func (s *SQLMembershipStore) ExistsDeviceEntry(ctx context.Context, accountID, groupID, deviceID string) (bool, error) {
	q := `SELECT 1 FROM device_lists WHERE account_id = :account_id AND group_id = :group_id AND device_id = :device_id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"account_id": accountID, "group_id": groupID, "device_id": deviceID})
	if err != nil {
		return false, err
	}
	defer r.Close()
	return r.Next(), nil
}

func (s *SQLMembershipStore) AddDeviceEntry(ctx context.Context, accountID, groupID, deviceID string) error {
	q := `INSERT OR IGNORE INTO device_lists(account_id, group_id, device_id) VALUES(:account_id, :group_id, :device_id)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"account_id": accountID, "group_id": groupID, "device_id": deviceID})
	return err
}

func (s *SQLMembershipStore) DeleteDeviceEntry(ctx context.Context, accountID, groupID, deviceID string) error {
	q := `DELETE FROM device_lists WHERE account_id = :account_id AND group_id = :group_id AND device_id = :device_id`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"account_id": accountID, "group_id": groupID, "device_id": deviceID})
	return err
}

func (s *SQLMembershipStore) ListDeviceIDs(ctx context.Context, accountID, groupID string) ([]string, error) {
	q := `SELECT device_id FROM device_lists WHERE account_id = :account_id AND group_id = :group_id ORDER BY device_id`
	return s.listIDs(ctx, q, map[string]any{"account_id": accountID, "group_id": groupID})
}

func (s *SQLMembershipStore) ListGroupIDsForDevice(ctx context.Context, accountID, deviceID string) ([]string, error) {
	// rowid order preserves edge insertion order
	q := `SELECT group_id FROM device_lists WHERE account_id = :account_id AND device_id = :device_id ORDER BY rowid`
	return s.listIDs(ctx, q, map[string]any{"account_id": accountID, "device_id": deviceID})
}

func (s *SQLMembershipStore) ExistsUserEntry(ctx context.Context, accountID, userID, groupID string) (bool, error) {
	q := `SELECT 1 FROM group_lists WHERE account_id = :account_id AND user_id = :user_id AND group_id = :group_id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"account_id": accountID, "user_id": userID, "group_id": groupID})
	if err != nil {
		return false, err
	}
	defer r.Close()
	return r.Next(), nil
}

func (s *SQLMembershipStore) AddUserEntry(ctx context.Context, accountID, userID, groupID string) error {
	q := `INSERT OR IGNORE INTO group_lists(account_id, user_id, group_id) VALUES(:account_id, :user_id, :group_id)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"account_id": accountID, "user_id": userID, "group_id": groupID})
	return err
}

func (s *SQLMembershipStore) DeleteUserEntry(ctx context.Context, accountID, userID, groupID string) error {
	q := `DELETE FROM group_lists WHERE account_id = :account_id AND user_id = :user_id AND group_id = :group_id`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"account_id": accountID, "user_id": userID, "group_id": groupID})
	return err
}

func (s *SQLMembershipStore) ListUserIDs(ctx context.Context, accountID, groupID string) ([]string, error) {
	q := `SELECT user_id FROM group_lists WHERE account_id = :account_id AND group_id = :group_id ORDER BY user_id`
	return s.listIDs(ctx, q, map[string]any{"account_id": accountID, "group_id": groupID})
}

func (s *SQLMembershipStore) ListGroupIDsForUser(ctx context.Context, accountID, userID string) ([]string, error) {
	q := `SELECT group_id FROM group_lists WHERE account_id = :account_id AND user_id = :user_id ORDER BY group_id`
	return s.listIDs(ctx, q, map[string]any{"account_id": accountID, "user_id": userID})
}

func (s *SQLMembershipStore) listIDs(ctx context.Context, q string, args map[string]any) ([]string, error) {
	r, err := s.db.NamedQueryContext(ctx, q, args)
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
