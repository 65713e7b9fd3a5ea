package learnings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, path string) Namespace {
	t.Helper()
	ns, err := ParseNamespace(path)
	require.NoError(t, err)
	return ns
}

func TestAccessControl(t *testing.T) {
	acmeU1 := Scope{OrgID: "acme", ActorID: "u1"}
	acmeU2 := Scope{OrgID: "acme", ActorID: "u2"}
	otherOrg := Scope{OrgID: "globex", ActorID: "u1"}

	platform := mustParse(t, "/platform/globals")
	org := mustParse(t, "/org/acme/globals")
	actor := mustParse(t, "/org/acme/actor/u1/globals")
	session := mustParse(t, "/org/acme/actor/u1/sessions/s9")

	// Platform: world-readable, platform-admin writable.
	assert.True(t, CanRead(platform, otherOrg, RoleActor))
	assert.False(t, CanWrite(platform, acmeU1, RoleOrgAdmin))
	assert.True(t, CanWrite(platform, acmeU1, RolePlatformAdmin))

	// Org: readable by members, writable by org admins of that org.
	assert.True(t, CanRead(org, acmeU2, RoleActor))
	assert.False(t, CanRead(org, otherOrg, RoleActor))
	assert.False(t, CanWrite(org, acmeU1, RoleActor))
	assert.True(t, CanWrite(org, acmeU1, RoleOrgAdmin))
	assert.False(t, CanWrite(org, otherOrg, RoleOrgAdmin))

	// Actor and session: own actor or an org admin.
	assert.True(t, CanRead(actor, acmeU1, RoleActor))
	assert.False(t, CanRead(actor, acmeU2, RoleActor))
	assert.True(t, CanRead(actor, acmeU2, RoleOrgAdmin))
	assert.True(t, CanWrite(session, acmeU1, RoleActor))
	assert.False(t, CanWrite(session, acmeU2, RoleActor))
	assert.False(t, CanWrite(session, otherOrg, RoleOrgAdmin))
}
