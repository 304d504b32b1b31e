package domain

// AssignmentStats are the derived counters stored in the assignment
// document's metadata. They are always recomputed from a full scan of
// the items, never patched incrementally.
type AssignmentStats struct {
	ByStatus   map[string]int `json:"by_status"`
	ByAssignee map[string]int `json:"by_assignee"`
	Overdue    int            `json:"overdue"`
}

// PullRequestStats are the derived counters stored in the pull-request
// document's metadata.
type PullRequestStats struct {
	ByStatus map[string]int `json:"by_status"`
}
