package fleetacl

import (
	"context"
	"errors"
	"fmt"
)

// maxAccessLevelFor returns the upper bound the account permits. Without an
// AccountLimits capability every account is capped at AccessAll.
func (e *Engine) maxAccessLevelFor(ctx context.Context, accountID string) AccessLevel {
	if e.limits == nil {
		return AccessAll
	}
	return e.limits.MaxAccessLevel(ctx, accountID)
}

// ResolveAccessLevel computes the effective access level for user and aclID:
//
//  1. the administrator identity bypasses resolution and gets AccessAll
//  2. a nil user fails closed to AccessNone
//  3. the supplied default is clamped to the account's maximum level
//  4. a blank aclID yields the (clamped) default
//  5. a UserAcl override wins, clamped to the account maximum
//  6. otherwise the user's role's RoleAcl entry applies; the role path does
//     NOT clamp against the account maximum (matches the original behavior;
//     see TestResolveRoleLevelNotClamped)
//  7. with neither override, the (clamped) default applies
//
// Any store failure yields AccessNone. Use ResolveAccessLevelStrict to
// observe the failure instead.
func (e *Engine) ResolveAccessLevel(ctx context.Context, u *User, aclID string, dft AccessLevel) AccessLevel {
	level, err := e.ResolveAccessLevelStrict(ctx, u, aclID, dft)
	if err != nil {
		e.logger.Error("access level resolution failed", "acl", aclID, "error", err)
		return AccessNone
	}
	return level
}

// ResolveAccessLevelStrict is ResolveAccessLevel with store failures
// propagated. The returned level is AccessNone whenever err is non-nil.
func (e *Engine) ResolveAccessLevelStrict(ctx context.Context, u *User, aclID string, dft AccessLevel) (AccessLevel, error) {
	if u.IsAdmin() {
		return AccessAll, nil
	}
	if u == nil {
		return AccessNone, nil
	}

	max := e.maxAccessLevelFor(ctx, u.AccountID)
	dft = dft.Clamp(max)

	aclID = NormalizeID(aclID)
	if aclID == "" {
		return dft, nil
	}

	cacheKey := ""
	if e.decisionCache != nil {
		cacheKey = fmt.Sprintf("%s|%s|%s|%s|%d", u.AccountID, u.UserID, u.RoleID, aclID, dft)
		if v, ok := e.decisionCache.Get(cacheKey); ok {
			if lvl, ok := v.(AccessLevel); ok {
				return lvl, nil
			}
		}
	}

	level, err := e.resolveUncached(ctx, u, aclID, dft, max)
	if err != nil {
		return AccessNone, err
	}
	if e.decisionCache != nil {
		e.decisionCache.SetWithTTL(cacheKey, level, 1, e.decisionTTL)
	}
	return level, nil
}

func (e *Engine) resolveUncached(ctx context.Context, u *User, aclID string, dft, max AccessLevel) (AccessLevel, error) {
	// per-user override wins over any role grant
	ua, err := e.userAcls.LoadUserAcl(ctx, u.AccountID, u.UserID, aclID)
	switch {
	case err == nil:
		return ua.AccessLevel.Clamp(max), nil
	case !errors.Is(err, ErrNotFound):
		return AccessNone, fmt.Errorf("user acl lookup: %w", err)
	}

	if u.RoleID == "" {
		return dft, nil
	}
	roleAcct, err := e.roleOwnerAccount(ctx, u.AccountID, u.RoleID)
	if err != nil {
		return AccessNone, err
	}
	ra, err := e.roleAcls.LoadRoleAcl(ctx, roleAcct, u.RoleID, aclID)
	switch {
	case err == nil:
		// role grants are deliberately not clamped against the account max
		return AccessLevelOf(int(ra.AccessLevel)), nil
	case !errors.Is(err, ErrNotFound):
		return AccessNone, fmt.Errorf("role acl lookup: %w", err)
	}

	return dft, nil
}

// HasReadAccess reports whether the resolved level permits viewing. Never
// raises; store failures fail closed.
func (e *Engine) HasReadAccess(ctx context.Context, u *User, aclID string, dft AccessLevel) bool {
	return e.ResolveAccessLevel(ctx, u, aclID, dft).OkRead()
}

// HasWriteAccess reports whether the resolved level permits editing.
func (e *Engine) HasWriteAccess(ctx context.Context, u *User, aclID string, dft AccessLevel) bool {
	return e.ResolveAccessLevel(ctx, u, aclID, dft).OkWrite()
}

// HasAllAccess reports whether the resolved level permits create/delete.
func (e *Engine) HasAllAccess(ctx context.Context, u *User, aclID string, dft AccessLevel) bool {
	return e.ResolveAccessLevel(ctx, u, aclID, dft).OkAll()
}
