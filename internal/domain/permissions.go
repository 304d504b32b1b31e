package domain

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleQALead     Role = "qa_lead"
	RoleQAEngineer Role = "qa_engineer"
	RoleDeveloper  Role = "developer"
	RoleViewer     Role = "viewer"
)

type Capability string

const (
	CapTestAuthor    Capability = "test_author"
	CapTestAssign    Capability = "test_assign"
	CapTestExecute   Capability = "test_execute"
	CapPRSync        Capability = "pr_sync"
	CapPRApprove     Capability = "pr_approve"
	CapPRMerge       Capability = "pr_merge"
	CapPRBlock       Capability = "pr_block"
	CapIssueReport   Capability = "issue_report"
	CapIssueEscalate Capability = "issue_escalate"
	CapUserManage    Capability = "user_manage"
)

// roleCapabilities is the closed role→capability table. Roles outside
// this table resolve to no capabilities at all.
var roleCapabilities = map[Role][]Capability{
	RoleAdmin: {
		CapTestAuthor, CapTestAssign, CapTestExecute,
		CapPRSync, CapPRApprove, CapPRMerge, CapPRBlock,
		CapIssueReport, CapIssueEscalate, CapUserManage,
	},
	RoleQALead: {
		CapTestAuthor, CapTestAssign, CapTestExecute,
		CapPRApprove, CapPRMerge, CapPRBlock,
		CapIssueReport, CapIssueEscalate,
	},
	RoleQAEngineer: {
		CapTestAuthor, CapTestAssign, CapTestExecute,
		CapIssueReport,
	},
	RoleDeveloper: {
		CapPRApprove, CapIssueReport,
	},
	RoleViewer: {},
}

func (r Role) Valid() bool {
	_, ok := roleCapabilities[r]
	return ok
}

// Senior reports whether the role may act on work owned by another
// user, such as driving someone else's assignment.
func (r Role) Senior() bool {
	return r == RoleAdmin || r == RoleQALead
}

// Can reports whether the role carries the given capability.
func (r Role) Can(capability Capability) bool {
	for _, c := range roleCapabilities[r] {
		if c == capability {
			return true
		}
	}
	return false
}
