package fleetacl

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// In-memory store implementations. Used by tests and small deployments; the
// stores package has the SQL-backed equivalents.

type roleKey struct{ account, role string }
type aclKey struct{ account, owner, acl string }
type edgeKey struct{ account, a, b string }

// MemoryRoleStore implements RoleStore in process memory.
type MemoryRoleStore struct {
	mu    sync.RWMutex
	roles map[roleKey]*Role
}

func NewMemoryRoleStore() *MemoryRoleStore {
	return &MemoryRoleStore{roles: make(map[roleKey]*Role)}
}

func (s *MemoryRoleStore) ExistsRole(ctx context.Context, accountID, roleID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.roles[roleKey{accountID, roleID}]
	return ok, nil
}

func (s *MemoryRoleStore) LoadRole(ctx context.Context, accountID, roleID string) (*Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.roles[roleKey{accountID, roleID}]
	if !ok {
		return nil, fmt.Errorf("%w: role %s/%s", ErrNotFound, accountID, roleID)
	}
	dup := *r
	return &dup, nil
}

func (s *MemoryRoleStore) SaveRole(ctx context.Context, r *Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dup := *r
	s.roles[roleKey{r.AccountID, r.RoleID}] = &dup
	return nil
}

func (s *MemoryRoleStore) DeleteRole(ctx context.Context, accountID, roleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.roles, roleKey{accountID, roleID})
	return nil
}

func (s *MemoryRoleStore) ListRoleIDs(ctx context.Context, accountID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0)
	for k := range s.roles {
		if k.account == accountID {
			out = append(out, k.role)
		}
	}
	sort.Strings(out)
	return out, nil
}

// MemoryRoleAclStore implements RoleAclStore in process memory.
type MemoryRoleAclStore struct {
	mu      sync.RWMutex
	entries map[aclKey]*RoleAclEntry
}

func NewMemoryRoleAclStore() *MemoryRoleAclStore {
	return &MemoryRoleAclStore{entries: make(map[aclKey]*RoleAclEntry)}
}

func (s *MemoryRoleAclStore) ExistsRoleAcl(ctx context.Context, accountID, roleID, aclID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[aclKey{accountID, roleID, aclID}]
	return ok, nil
}

func (s *MemoryRoleAclStore) LoadRoleAcl(ctx context.Context, accountID, roleID, aclID string) (*RoleAclEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[aclKey{accountID, roleID, aclID}]
	if !ok {
		return nil, fmt.Errorf("%w: role acl %s/%s/%s", ErrNotFound, accountID, roleID, aclID)
	}
	dup := *e
	return &dup, nil
}

func (s *MemoryRoleAclStore) SaveRoleAcl(ctx context.Context, e *RoleAclEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dup := *e
	s.entries[aclKey{e.AccountID, e.RoleID, e.AclID}] = &dup
	return nil
}

func (s *MemoryRoleAclStore) DeleteRoleAcl(ctx context.Context, accountID, roleID, aclID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, aclKey{accountID, roleID, aclID})
	return nil
}

func (s *MemoryRoleAclStore) DeleteRoleAcls(ctx context.Context, accountID, roleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.entries {
		if k.account == accountID && k.owner == roleID {
			delete(s.entries, k)
		}
	}
	return nil
}

func (s *MemoryRoleAclStore) ListRoleAclIDs(ctx context.Context, accountID, roleID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0)
	for k := range s.entries {
		if k.account == accountID && k.owner == roleID {
			out = append(out, k.acl)
		}
	}
	sort.Strings(out)
	return out, nil
}

// MemoryUserAclStore implements UserAclStore in process memory.
type MemoryUserAclStore struct {
	mu      sync.RWMutex
	entries map[aclKey]*UserAclEntry
}

func NewMemoryUserAclStore() *MemoryUserAclStore {
	return &MemoryUserAclStore{entries: make(map[aclKey]*UserAclEntry)}
}

func (s *MemoryUserAclStore) ExistsUserAcl(ctx context.Context, accountID, userID, aclID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[aclKey{accountID, userID, aclID}]
	return ok, nil
}

func (s *MemoryUserAclStore) LoadUserAcl(ctx context.Context, accountID, userID, aclID string) (*UserAclEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[aclKey{accountID, userID, aclID}]
	if !ok {
		return nil, fmt.Errorf("%w: user acl %s/%s/%s", ErrNotFound, accountID, userID, aclID)
	}
	dup := *e
	return &dup, nil
}

func (s *MemoryUserAclStore) SaveUserAcl(ctx context.Context, e *UserAclEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dup := *e
	s.entries[aclKey{e.AccountID, e.UserID, e.AclID}] = &dup
	return nil
}

func (s *MemoryUserAclStore) DeleteUserAcl(ctx context.Context, accountID, userID, aclID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, aclKey{accountID, userID, aclID})
	return nil
}

func (s *MemoryUserAclStore) ListUserAclIDs(ctx context.Context, accountID, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0)
	for k := range s.entries {
		if k.account == accountID && k.owner == userID {
			out = append(out, k.acl)
		}
	}
	sort.Strings(out)
	return out, nil
}

// MemoryMembershipStore implements MembershipStore in process memory.
// Device edges remember insertion order so ListGroupIDsForDevice matches the
// SQL stores' rowid ordering.
type MemoryMembershipStore struct {
	mu          sync.RWMutex
	groups      map[roleKey]*DeviceGroup
	deviceEdges map[edgeKey]int // (account, group, device) -> insertion seq
	userEdges   map[edgeKey]struct{}
	seq         int
}

func NewMemoryMembershipStore() *MemoryMembershipStore {
	return &MemoryMembershipStore{
		groups:      make(map[roleKey]*DeviceGroup),
		deviceEdges: make(map[edgeKey]int),
		userEdges:   make(map[edgeKey]struct{}),
	}
}

func (s *MemoryMembershipStore) ExistsGroup(ctx context.Context, accountID, groupID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.groups[roleKey{accountID, groupID}]
	return ok, nil
}

func (s *MemoryMembershipStore) LoadGroup(ctx context.Context, accountID, groupID string) (*DeviceGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[roleKey{accountID, groupID}]
	if !ok {
		return nil, fmt.Errorf("%w: group %s/%s", ErrNotFound, accountID, groupID)
	}
	dup := *g
	return &dup, nil
}

func (s *MemoryMembershipStore) SaveGroup(ctx context.Context, g *DeviceGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dup := *g
	s.groups[roleKey{g.AccountID, g.GroupID}] = &dup
	return nil
}

func (s *MemoryMembershipStore) DeleteGroup(ctx context.Context, accountID, groupID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.groups, roleKey{accountID, groupID})
	for k := range s.deviceEdges {
		if k.account == accountID && k.a == groupID {
			delete(s.deviceEdges, k)
		}
	}
	return nil
}

func (s *MemoryMembershipStore) ListGroupIDs(ctx context.Context, accountID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0)
	for k := range s.groups {
		if k.account == accountID {
			out = append(out, k.role)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryMembershipStore) ExistsDeviceEntry(ctx context.Context, accountID, groupID, deviceID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.deviceEdges[edgeKey{accountID, groupID, deviceID}]
	return ok, nil
}

func (s *MemoryMembershipStore) AddDeviceEntry(ctx context.Context, accountID, groupID, deviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := edgeKey{accountID, groupID, deviceID}
	if _, ok := s.deviceEdges[k]; !ok {
		s.seq++
		s.deviceEdges[k] = s.seq
	}
	return nil
}

func (s *MemoryMembershipStore) DeleteDeviceEntry(ctx context.Context, accountID, groupID, deviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.deviceEdges, edgeKey{accountID, groupID, deviceID})
	return nil
}

func (s *MemoryMembershipStore) ListDeviceIDs(ctx context.Context, accountID, groupID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0)
	for k := range s.deviceEdges {
		if k.account == accountID && k.a == groupID {
			out = append(out, k.b)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryMembershipStore) ListGroupIDsForDevice(ctx context.Context, accountID, deviceID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	type hit struct {
		group string
		seq   int
	}
	hits := make([]hit, 0)
	for k, seq := range s.deviceEdges {
		if k.account == accountID && k.b == deviceID {
			hits = append(hits, hit{k.a, seq})
		}
	}
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].seq < hits[j-1].seq; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.group)
	}
	return out, nil
}

func (s *MemoryMembershipStore) ExistsUserEntry(ctx context.Context, accountID, userID, groupID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.userEdges[edgeKey{accountID, userID, groupID}]
	return ok, nil
}

func (s *MemoryMembershipStore) AddUserEntry(ctx context.Context, accountID, userID, groupID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userEdges[edgeKey{accountID, userID, groupID}] = struct{}{}
	return nil
}

func (s *MemoryMembershipStore) DeleteUserEntry(ctx context.Context, accountID, userID, groupID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.userEdges, edgeKey{accountID, userID, groupID})
	return nil
}

func (s *MemoryMembershipStore) ListUserIDs(ctx context.Context, accountID, groupID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0)
	for k := range s.userEdges {
		if k.account == accountID && k.b == groupID {
			out = append(out, k.a)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryMembershipStore) ListGroupIDsForUser(ctx context.Context, accountID, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0)
	for k := range s.userEdges {
		if k.account == accountID && k.a == userID {
			out = append(out, k.b)
		}
	}
	sort.Strings(out)
	return out, nil
}
