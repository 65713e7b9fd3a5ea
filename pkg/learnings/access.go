package learnings

import (
	"fmt"

	"github.com/reelforge/reelforge/pkg/faults"
)

// Role is the caller's authority for access checks.
type Role int

// Roles in increasing authority.
const (
	RoleActor Role = iota
	RoleOrgAdmin
	RolePlatformAdmin
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleActor:
		return "actor"
	case RoleOrgAdmin:
		return "org-admin"
	case RolePlatformAdmin:
		return "platform-admin"
	default:
		return "unknown"
	}
}

// CanRead reports whether the scope may read the namespace. Platform
// namespaces are readable by everyone; org namespaces by members of the org;
// actor and session namespaces by the owning actor or an org admin.
func CanRead(ns Namespace, scope Scope, role Role) bool {
	if role == RolePlatformAdmin || ns.Level == LevelPlatform {
		return true
	}
	if ns.OrgID != scope.OrgID {
		return false
	}
	if ns.Level == LevelOrg {
		return true
	}
	return role == RoleOrgAdmin || ns.ActorID == scope.ActorID
}

// CanWrite reports whether the scope may write the namespace. Platform writes
// require a platform admin, org writes an org admin of that org, and actor or
// session writes the owning actor (or an admin of the org).
func CanWrite(ns Namespace, scope Scope, role Role) bool {
	if role == RolePlatformAdmin {
		return true
	}
	switch ns.Level {
	case LevelPlatform:
		return false
	case LevelOrg:
		return role == RoleOrgAdmin && ns.OrgID == scope.OrgID
	default:
		if ns.OrgID != scope.OrgID {
			return false
		}
		return role == RoleOrgAdmin || ns.ActorID == scope.ActorID
	}
}

func accessFault(op, path string, scope Scope) error {
	return faults.New(faults.InputInvalid,
		fmt.Sprintf("%s denied for namespace %s (org=%s actor=%s)", op, path, scope.OrgID, scope.ActorID))
}
