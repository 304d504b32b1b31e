package service

// Derived counters are always recomputed from a full scan of the
// collection that owns them. The collections are small bounded blobs,
// so the O(n) pass per write is cheap, and a full recompute cannot
// drift from the items the way incremental patching can.

import (
	"time"

	"qaflow/internal/domain"
)

func recomputeAssignmentStats(items []domain.TestAssignment, now time.Time) domain.AssignmentStats {
	stats := domain.AssignmentStats{
		ByStatus:   make(map[string]int),
		ByAssignee: make(map[string]int),
	}
	for _, a := range items {
		stats.ByStatus[string(a.Status)]++
		stats.ByAssignee[a.AssignedTo]++
		if a.DueDate != nil && a.DueDate.Before(now) && !a.Status.Terminal() {
			stats.Overdue++
		}
	}
	return stats
}

func recomputePullRequestStats(items []domain.PullRequest) domain.PullRequestStats {
	stats := domain.PullRequestStats{
		ByStatus: make(map[string]int),
	}
	for _, pr := range items {
		stats.ByStatus[string(pr.Status)]++
	}
	return stats
}
