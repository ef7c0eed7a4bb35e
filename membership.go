package fleetacl

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Membership operations over DeviceGroup / DeviceList / GroupList. These are
// administrative listings over small sets; blank identifiers yield empty
// results rather than errors, and only backing-store failures are raised.

// GroupExists reports whether the group exists. The virtual "all" group
// always exists without a backing row.
func (e *Engine) GroupExists(ctx context.Context, accountID, groupID string) (bool, error) {
	accountID, groupID = NormalizeID(accountID), NormalizeID(groupID)
	if accountID == "" || groupID == "" {
		return false, nil
	}
	if groupID == DeviceGroupAll {
		return true, nil
	}
	return e.membership.ExistsGroup(ctx, accountID, groupID)
}

// GetGroup loads a device group. The virtual "all" group yields a
// synthesized, never-persisted instance.
func (e *Engine) GetGroup(ctx context.Context, accountID, groupID string) (*DeviceGroup, error) {
	accountID, groupID = NormalizeID(accountID), NormalizeID(groupID)
	if accountID == "" || groupID == "" {
		return nil, fmt.Errorf("%w: blank account/group id", ErrInvalidArgument)
	}
	if groupID == DeviceGroupAll {
		g := NewDeviceGroup(accountID, DeviceGroupAll)
		g.DisplayName = "All"
		return g, nil
	}
	return e.membership.LoadGroup(ctx, accountID, groupID)
}

// GetOrCreateGroup implements the strict get-or-create contract for a
// device group. The virtual "all" group always exists, so creating it is
// ErrAlreadyExists.
func (e *Engine) GetOrCreateGroup(ctx context.Context, accountID, groupID string, create bool) (*DeviceGroup, error) {
	accountID, groupID = NormalizeID(accountID), NormalizeID(groupID)
	if accountID == "" || groupID == "" {
		return nil, fmt.Errorf("%w: blank account/group id", ErrInvalidArgument)
	}
	if groupID == DeviceGroupAll {
		if create {
			return nil, fmt.Errorf("%w: group %s/%s is reserved", ErrAlreadyExists, accountID, groupID)
		}
		return e.GetGroup(ctx, accountID, groupID)
	}
	exists, err := e.membership.ExistsGroup(ctx, accountID, groupID)
	if err != nil {
		return nil, err
	}
	if exists {
		if create {
			return nil, fmt.Errorf("%w: group %s/%s", ErrAlreadyExists, accountID, groupID)
		}
		return e.membership.LoadGroup(ctx, accountID, groupID)
	}
	if !create {
		return nil, fmt.Errorf("%w: group %s/%s", ErrNotFound, accountID, groupID)
	}
	g := NewDeviceGroup(accountID, groupID)
	g.DisplayName = groupID
	return g, nil
}

// CreateGroup creates and persists a new device group in one step.
func (e *Engine) CreateGroup(ctx context.Context, accountID, groupID string) (*DeviceGroup, error) {
	g, err := e.GetOrCreateGroup(ctx, accountID, groupID, true)
	if err != nil {
		return nil, err
	}
	if err := e.SaveGroup(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

// SaveGroup persists the group (insert or update). The virtual "all" group
// is never persisted.
func (e *Engine) SaveGroup(ctx context.Context, g *DeviceGroup) error {
	if g == nil {
		return fmt.Errorf("%w: nil group", ErrInvalidArgument)
	}
	g.AccountID, g.GroupID = NormalizeID(g.AccountID), NormalizeID(g.GroupID)
	if g.AccountID == "" || g.GroupID == "" {
		return fmt.Errorf("%w: blank account/group id", ErrInvalidArgument)
	}
	if g.GroupID == DeviceGroupAll {
		return fmt.Errorf("%w: group %q is virtual", ErrInvalidArgument, DeviceGroupAll)
	}
	now := time.Now()
	if g.CreatedAt.IsZero() {
		g.CreatedAt = now
	}
	g.UpdatedAt = now
	return e.membership.SaveGroup(ctx, g)
}

// DeleteGroup removes the group and cascade-deletes its DeviceList edges.
func (e *Engine) DeleteGroup(ctx context.Context, accountID, groupID string) error {
	accountID, groupID = NormalizeID(accountID), NormalizeID(groupID)
	if accountID == "" || groupID == "" {
		return fmt.Errorf("%w: blank account/group id", ErrInvalidArgument)
	}
	if groupID == DeviceGroupAll {
		return fmt.Errorf("%w: group %q is virtual", ErrInvalidArgument, DeviceGroupAll)
	}
	return e.membership.DeleteGroup(ctx, accountID, groupID)
}

// DeviceInGroup reports whether the device is a member of the group. The
// virtual "all" group contains every device.
func (e *Engine) DeviceInGroup(ctx context.Context, accountID, groupID, deviceID string) (bool, error) {
	accountID, groupID, deviceID = NormalizeID(accountID), NormalizeID(groupID), NormalizeID(deviceID)
	if accountID == "" || groupID == "" || deviceID == "" {
		return false, nil
	}
	if groupID == DeviceGroupAll {
		return true, nil
	}
	return e.membership.ExistsDeviceEntry(ctx, accountID, groupID, deviceID)
}

// AddDeviceToGroup inserts a DeviceList edge. Both the device and the group
// must already exist; adding an existing edge is a no-op.
func (e *Engine) AddDeviceToGroup(ctx context.Context, accountID, groupID, deviceID string) error {
	accountID, groupID, deviceID = NormalizeID(accountID), NormalizeID(groupID), NormalizeID(deviceID)
	if accountID == "" || groupID == "" || deviceID == "" {
		return fmt.Errorf("%w: blank account/group/device id", ErrInvalidArgument)
	}
	if groupID == DeviceGroupAll {
		return fmt.Errorf("%w: group %q is virtual", ErrInvalidArgument, DeviceGroupAll)
	}
	if err := e.requireDevice(ctx, accountID, deviceID); err != nil {
		return err
	}
	if ok, err := e.membership.ExistsGroup(ctx, accountID, groupID); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("%w: group %s/%s", ErrNotFound, accountID, groupID)
	}
	return e.membership.AddDeviceEntry(ctx, accountID, groupID, deviceID)
}

// RemoveDeviceFromGroup deletes a DeviceList edge. Both the device and the
// group must exist; a missing edge deletes cleanly.
func (e *Engine) RemoveDeviceFromGroup(ctx context.Context, accountID, groupID, deviceID string) error {
	accountID, groupID, deviceID = NormalizeID(accountID), NormalizeID(groupID), NormalizeID(deviceID)
	if accountID == "" || groupID == "" || deviceID == "" {
		return fmt.Errorf("%w: blank account/group/device id", ErrInvalidArgument)
	}
	if groupID == DeviceGroupAll {
		return fmt.Errorf("%w: group %q is virtual", ErrInvalidArgument, DeviceGroupAll)
	}
	if err := e.requireDevice(ctx, accountID, deviceID); err != nil {
		return err
	}
	if ok, err := e.membership.ExistsGroup(ctx, accountID, groupID); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("%w: group %s/%s", ErrNotFound, accountID, groupID)
	}
	return e.membership.DeleteDeviceEntry(ctx, accountID, groupID, deviceID)
}

func (e *Engine) requireDevice(ctx context.Context, accountID, deviceID string) error {
	if e.devices == nil {
		return nil
	}
	ok, err := e.devices.DeviceExists(ctx, accountID, deviceID)
	if err != nil {
		return fmt.Errorf("device lookup: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: device %s/%s", ErrNotFound, accountID, deviceID)
	}
	return nil
}

// ListDeviceIDsForGroup returns the device IDs in the group ordered by
// device ID. The virtual "all" group delegates to the full per-account
// device enumeration. Inactive devices are skipped unless includeInactive is
// set, a non-nil filter drops unauthorized devices, and a limit <= 0 means
// unbounded. Device-status lookups that fail are logged and the device
// skipped, so a partial provider outage degrades the listing instead of
// aborting it.
func (e *Engine) ListDeviceIDsForGroup(ctx context.Context, accountID, groupID string, filter DeviceFilter, includeInactive bool, limit int) ([]string, error) {
	accountID, groupID = NormalizeID(accountID), NormalizeID(groupID)
	if accountID == "" || groupID == "" {
		return nil, nil
	}
	var candidates []string
	var err error
	if groupID == DeviceGroupAll {
		if e.devices == nil {
			return nil, nil
		}
		candidates, err = e.devices.ListDeviceIDs(ctx, accountID)
	} else {
		candidates, err = e.membership.ListDeviceIDs(ctx, accountID, groupID)
	}
	if err != nil {
		return nil, err
	}
	sort.Strings(candidates)

	out := make([]string, 0, len(candidates))
	for _, devID := range candidates {
		if filter != nil && !filter(devID) {
			continue
		}
		if !includeInactive && e.devices != nil {
			active, aerr := e.devices.DeviceIsActive(ctx, accountID, devID)
			if aerr != nil {
				e.logger.Error("device active check failed", "account", accountID, "device", devID, "error", aerr)
				continue
			}
			if !active {
				continue
			}
		}
		out = append(out, devID)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// ListGroupIDsForAccount returns the account's group IDs sorted, with the
// virtual "all" prepended when includeAll is set.
func (e *Engine) ListGroupIDsForAccount(ctx context.Context, accountID string, includeAll bool) ([]string, error) {
	accountID = NormalizeID(accountID)
	if accountID == "" {
		return nil, nil
	}
	ids, err := e.membership.ListGroupIDs(ctx, accountID)
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	if includeAll {
		ids = append([]string{DeviceGroupAll}, ids...)
	}
	return ids, nil
}

// ListGroupIDsForDevice returns the groups a device belongs to: nil when the
// device does not exist on the account, otherwise the virtual "all" (when
// requested) followed by each DeviceList edge's group ID in insertion order.
func (e *Engine) ListGroupIDsForDevice(ctx context.Context, accountID, deviceID string, includeAll bool) ([]string, error) {
	accountID, deviceID = NormalizeID(accountID), NormalizeID(deviceID)
	if accountID == "" || deviceID == "" {
		return nil, nil
	}
	if e.devices != nil {
		ok, err := e.devices.DeviceExists(ctx, accountID, deviceID)
		if err != nil {
			return nil, fmt.Errorf("device lookup: %w", err)
		}
		if !ok {
			return nil, nil
		}
	}
	edges, err := e.membership.ListGroupIDsForDevice(ctx, accountID, deviceID)
	if err != nil {
		return nil, err
	}
	if includeAll {
		return append([]string{DeviceGroupAll}, edges...), nil
	}
	return edges, nil
}

// UserInGroup reports whether a GroupList edge exists for (user, group).
func (e *Engine) UserInGroup(ctx context.Context, accountID, userID, groupID string) (bool, error) {
	accountID, userID, groupID = NormalizeID(accountID), NormalizeID(userID), NormalizeID(groupID)
	if accountID == "" || userID == "" || groupID == "" {
		return false, nil
	}
	return e.membership.ExistsUserEntry(ctx, accountID, userID, groupID)
}

// AddUserToGroup inserts a GroupList edge. The group must already exist;
// the virtual "all" group may be referenced.
func (e *Engine) AddUserToGroup(ctx context.Context, accountID, userID, groupID string) error {
	accountID, userID, groupID = NormalizeID(accountID), NormalizeID(userID), NormalizeID(groupID)
	if accountID == "" || userID == "" || groupID == "" {
		return fmt.Errorf("%w: blank account/user/group id", ErrInvalidArgument)
	}
	if ok, err := e.GroupExists(ctx, accountID, groupID); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("%w: group %s/%s", ErrNotFound, accountID, groupID)
	}
	return e.membership.AddUserEntry(ctx, accountID, userID, groupID)
}

// RemoveUserFromGroup deletes a GroupList edge; a missing edge deletes
// cleanly.
func (e *Engine) RemoveUserFromGroup(ctx context.Context, accountID, userID, groupID string) error {
	accountID, userID, groupID = NormalizeID(accountID), NormalizeID(userID), NormalizeID(groupID)
	if accountID == "" || userID == "" || groupID == "" {
		return fmt.Errorf("%w: blank account/user/group id", ErrInvalidArgument)
	}
	return e.membership.DeleteUserEntry(ctx, accountID, userID, groupID)
}

// ListUserIDsForGroup returns the user IDs assigned to the group ordered by
// user ID.
func (e *Engine) ListUserIDsForGroup(ctx context.Context, accountID, groupID string) ([]string, error) {
	accountID, groupID = NormalizeID(accountID), NormalizeID(groupID)
	if accountID == "" || groupID == "" {
		return nil, nil
	}
	ids, err := e.membership.ListUserIDs(ctx, accountID, groupID)
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

// ListGroupIDsForUser returns the group IDs assigned to the user, sorted.
func (e *Engine) ListGroupIDsForUser(ctx context.Context, accountID, userID string) ([]string, error) {
	accountID, userID = NormalizeID(accountID), NormalizeID(userID)
	if accountID == "" || userID == "" {
		return nil, nil
	}
	ids, err := e.membership.ListGroupIDsForUser(ctx, accountID, userID)
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}
