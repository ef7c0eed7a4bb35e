package fleetacl

import (
	"context"
	"time"
)

// DeviceGroupAll is the reserved virtual group: it always exists, contains
// every device on the account, and is never persisted.
const DeviceGroupAll = "all"

// DeviceGroup is a per-account named collection of devices, keyed by
// (AccountID, GroupID).
type DeviceGroup struct {
	AccountID   string    `json:"account_id" yaml:"account"`
	GroupID     string    `json:"group_id" yaml:"group"`
	DisplayName string    `json:"display_name" yaml:"display_name"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Notes       string    `json:"notes,omitempty" yaml:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at" yaml:"-"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"-"`
}

// NewDeviceGroup builds an in-memory, unsaved DeviceGroup with normalized
// key components.
func NewDeviceGroup(accountID, groupID string) *DeviceGroup {
	return &DeviceGroup{
		AccountID: NormalizeID(accountID),
		GroupID:   NormalizeID(groupID),
	}
}

// IsAllGroup reports whether the group is the reserved virtual group.
func (g *DeviceGroup) IsAllGroup() bool {
	return g != nil && g.GroupID == DeviceGroupAll
}

// DeviceListEntry is a pure membership edge between a DeviceGroup and a
// Device. Rows cascade-delete with the owning group.
type DeviceListEntry struct {
	AccountID string `json:"account_id" yaml:"account"`
	GroupID   string `json:"group_id" yaml:"group"`
	DeviceID  string `json:"device_id" yaml:"device"`
}

// GroupListEntry is a pure membership edge between a User and a DeviceGroup.
type GroupListEntry struct {
	AccountID string `json:"account_id" yaml:"account"`
	UserID    string `json:"user_id" yaml:"user"`
	GroupID   string `json:"group_id" yaml:"group"`
}

// MembershipStore persists DeviceGroup rows and the DeviceList/GroupList
// membership edges. The virtual "all" group never reaches this interface;
// the Engine short-circuits it.
type MembershipStore interface {
	ExistsGroup(ctx context.Context, accountID, groupID string) (bool, error)
	// LoadGroup returns ErrNotFound when the row is missing.
	LoadGroup(ctx context.Context, accountID, groupID string) (*DeviceGroup, error)
	SaveGroup(ctx context.Context, g *DeviceGroup) error
	// DeleteGroup removes the group row and every DeviceList edge under it.
	DeleteGroup(ctx context.Context, accountID, groupID string) error
	// ListGroupIDs returns all group IDs owned by the account, sorted.
	ListGroupIDs(ctx context.Context, accountID string) ([]string, error)

	ExistsDeviceEntry(ctx context.Context, accountID, groupID, deviceID string) (bool, error)
	// AddDeviceEntry inserts the edge; inserting an existing edge is a no-op.
	AddDeviceEntry(ctx context.Context, accountID, groupID, deviceID string) error
	// DeleteDeviceEntry removes the edge; deleting a missing edge is a no-op.
	DeleteDeviceEntry(ctx context.Context, accountID, groupID, deviceID string) error
	// ListDeviceIDs returns device IDs in the group, sorted.
	ListDeviceIDs(ctx context.Context, accountID, groupID string) ([]string, error)
	// ListGroupIDsForDevice returns the group IDs a device belongs to, in
	// insertion order.
	ListGroupIDsForDevice(ctx context.Context, accountID, deviceID string) ([]string, error)

	ExistsUserEntry(ctx context.Context, accountID, userID, groupID string) (bool, error)
	AddUserEntry(ctx context.Context, accountID, userID, groupID string) error
	DeleteUserEntry(ctx context.Context, accountID, userID, groupID string) error
	// ListUserIDs returns user IDs assigned to the group, sorted.
	ListUserIDs(ctx context.Context, accountID, groupID string) ([]string, error)
	// ListGroupIDsForUser returns the group IDs assigned to a user, sorted.
	ListGroupIDsForUser(ctx context.Context, accountID, userID string) ([]string, error)
}
