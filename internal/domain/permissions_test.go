package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRole_Valid(t *testing.T) {
	assert.True(t, RoleAdmin.Valid())
	assert.True(t, RoleViewer.Valid())
	assert.False(t, Role("superuser").Valid())
	assert.False(t, Role("").Valid())
}

func TestRole_Can(t *testing.T) {
	cases := []struct {
		role       Role
		capability Capability
		want       bool
	}{
		{RoleAdmin, CapPRSync, true},
		{RoleAdmin, CapUserManage, true},
		{RoleQALead, CapPRMerge, true},
		{RoleQALead, CapPRSync, false},
		{RoleQALead, CapUserManage, false},
		{RoleQAEngineer, CapTestExecute, true},
		{RoleQAEngineer, CapPRMerge, false},
		{RoleQAEngineer, CapIssueEscalate, false},
		{RoleDeveloper, CapPRApprove, true},
		{RoleDeveloper, CapTestAuthor, false},
		{RoleViewer, CapIssueReport, false},
		{Role("superuser"), CapPRSync, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.role.Can(tc.capability),
			"%s / %s", tc.role, tc.capability)
	}
}

func TestRole_Senior(t *testing.T) {
	assert.True(t, RoleAdmin.Senior())
	assert.True(t, RoleQALead.Senior())
	assert.False(t, RoleQAEngineer.Senior())
	assert.False(t, RoleDeveloper.Senior())
	assert.False(t, RoleViewer.Senior())
	assert.False(t, Role("superuser").Senior())
}

func TestStatus_Terminal(t *testing.T) {
	assert.True(t, PRStatusFullyMerged.Terminal())
	assert.True(t, PRStatusClosed.Terminal())
	assert.False(t, PRStatusBlocked.Terminal())
	assert.False(t, PRStatusQATestsMerged.Terminal())

	assert.True(t, AssignmentCompleted.Terminal())
	assert.True(t, AssignmentFailed.Terminal())
	assert.False(t, AssignmentBlocked.Terminal())
	assert.False(t, AssignmentAssigned.Terminal())
}
