package stores

import (
	"context"
	"fmt"

	"github.com/oarkflow/fleetacl"
	"github.com/redis/go-redis/v9"
)

// RedisGroupCache is a write-through fleetacl.MembershipStore decorator that
// mirrors device-membership edges into Redis sets (key: grpdev:{account}:{group})
// so hot-path membership checks skip SQL. Group rows, user edges and all
// listings pass straight through to the inner store, which stays the source
// of truth; a cache miss falls back to it as well.
type RedisGroupCache struct {
	inner  fleetacl.MembershipStore
	client *redis.Client
}

func NewRedisGroupCache(inner fleetacl.MembershipStore, client *redis.Client) *RedisGroupCache {
	return &RedisGroupCache{inner: inner, client: client}
}

func (c *RedisGroupCache) key(accountID, groupID string) string {
	return fmt.Sprintf("grpdev:%s:%s", accountID, groupID)
}

func (c *RedisGroupCache) ExistsGroup(ctx context.Context, accountID, groupID string) (bool, error) {
	return c.inner.ExistsGroup(ctx, accountID, groupID)
}

func (c *RedisGroupCache) LoadGroup(ctx context.Context, accountID, groupID string) (*fleetacl.DeviceGroup, error) {
	return c.inner.LoadGroup(ctx, accountID, groupID)
}

func (c *RedisGroupCache) SaveGroup(ctx context.Context, g *fleetacl.DeviceGroup) error {
	return c.inner.SaveGroup(ctx, g)
}

func (c *RedisGroupCache) DeleteGroup(ctx context.Context, accountID, groupID string) error {
	if err := c.inner.DeleteGroup(ctx, accountID, groupID); err != nil {
		return err
	}
	return c.client.Del(ctx, c.key(accountID, groupID)).Err()
}

func (c *RedisGroupCache) ListGroupIDs(ctx context.Context, accountID string) ([]string, error) {
	return c.inner.ListGroupIDs(ctx, accountID)
}

func (c *RedisGroupCache) ExistsDeviceEntry(ctx context.Context, accountID, groupID, deviceID string) (bool, error) {
	ok, err := c.client.SIsMember(ctx, c.key(accountID, groupID), deviceID).Result()
	if err == nil && ok {
		return true, nil
	}
	// miss or redis outage: the inner store decides
	return c.inner.ExistsDeviceEntry(ctx, accountID, groupID, deviceID)
}

func (c *RedisGroupCache) AddDeviceEntry(ctx context.Context, accountID, groupID, deviceID string) error {
	if err := c.inner.AddDeviceEntry(ctx, accountID, groupID, deviceID); err != nil {
		return err
	}
	return c.client.SAdd(ctx, c.key(accountID, groupID), deviceID).Err()
}

func (c *RedisGroupCache) DeleteDeviceEntry(ctx context.Context, accountID, groupID, deviceID string) error {
	if err := c.inner.DeleteDeviceEntry(ctx, accountID, groupID, deviceID); err != nil {
		return err
	}
	return c.client.SRem(ctx, c.key(accountID, groupID), deviceID).Err()
}

func (c *RedisGroupCache) ListDeviceIDs(ctx context.Context, accountID, groupID string) ([]string, error) {
	return c.inner.ListDeviceIDs(ctx, accountID, groupID)
}

func (c *RedisGroupCache) ListGroupIDsForDevice(ctx context.Context, accountID, deviceID string) ([]string, error) {
	return c.inner.ListGroupIDsForDevice(ctx, accountID, deviceID)
}

func (c *RedisGroupCache) ExistsUserEntry(ctx context.Context, accountID, userID, groupID string) (bool, error) {
	return c.inner.ExistsUserEntry(ctx, accountID, userID, groupID)
}

func (c *RedisGroupCache) AddUserEntry(ctx context.Context, accountID, userID, groupID string) error {
	return c.inner.AddUserEntry(ctx, accountID, userID, groupID)
}

func (c *RedisGroupCache) DeleteUserEntry(ctx context.Context, accountID, userID, groupID string) error {
	return c.inner.DeleteUserEntry(ctx, accountID, userID, groupID)
}

func (c *RedisGroupCache) ListUserIDs(ctx context.Context, accountID, groupID string) ([]string, error) {
	return c.inner.ListUserIDs(ctx, accountID, groupID)
}

func (c *RedisGroupCache) ListGroupIDsForUser(ctx context.Context, accountID, userID string) ([]string, error) {
	return c.inner.ListGroupIDsForUser(ctx, accountID, userID)
}
