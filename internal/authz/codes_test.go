package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCandidates(t *testing.T) {
	assert.Equal(t, []string{"roles:create", "ROLES_CREATE"}, Candidates("roles", ActionCreate))
	assert.Equal(t, []string{"roles:update", "ROLES_UPDATE"}, Candidates("Roles", ActionUpdate))
	assert.Equal(t, []string{"users:delete", "USERS_DELETE"}, Candidates("users", ActionDelete))
}

func TestCandidatesReadMapsToView(t *testing.T) {
	// Legacy convention: read is spelled VIEW in the underscore form.
	assert.Equal(t, []string{"items:read", "ITEMS_VIEW"}, Candidates("items", ActionRead))
}

func TestCandidatesUnknownAction(t *testing.T) {
	assert.Nil(t, Candidates("roles", Action("approve")))
}

func TestCandidatesEmptyResource(t *testing.T) {
	assert.Nil(t, Candidates("", ActionCreate))
	assert.Nil(t, Candidates("   ", ActionRead))
}

func TestPageCandidates(t *testing.T) {
	assert.Equal(t, []string{"permissions:read", "PERMISSIONS_VIEW"}, PageCandidates("permissions"))
}
