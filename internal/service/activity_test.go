package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qaflow/internal/domain"
	"qaflow/internal/storage/docs"
	"qaflow/internal/testutil"
)

func TestService_LogActivity_HeadInsertWithCap(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMemStore()
	seedUsers(t, store)

	old := make([]domain.ActivityRecord, activityCap)
	for i := range old {
		old[i] = domain.ActivityRecord{
			ID:        fmt.Sprintf("old-%d", i),
			Type:      "test_case",
			Action:    "create",
			Actor:     "lead",
			Timestamp: fixedNow.Add(-time.Duration(i) * time.Minute),
		}
	}
	seedDoc(t, store, docs.PathActivity, old)

	svc, _ := newTestService(t, store)
	_, err := svc.CreateTestCase(ctx, "lead", TestCaseInput{ID: "tc1", Name: "login"})
	require.NoError(t, err)

	records, err := svc.ListActivity(ctx)
	require.NoError(t, err)
	require.Len(t, records, activityCap)

	// Newest at the head, oldest fell off the tail.
	assert.Equal(t, "create", records[0].Action)
	assert.Equal(t, "tc1", records[0].Details["test_case_id"])
	assert.Equal(t, "old-0", records[1].ID)
	assert.Equal(t, fmt.Sprintf("old-%d", activityCap-2), records[activityCap-1].ID)
}

func TestService_LogActivity_FailureDoesNotFailOperation(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMemStore()
	seedUsers(t, store)
	store.FailWritesWith(docs.PathActivity, errors.New("backend down"))

	svc, _ := newTestService(t, store)
	tc, err := svc.CreateTestCase(ctx, "lead", TestCaseInput{ID: "tc1", Name: "login"})
	require.NoError(t, err)
	assert.Equal(t, "tc1", tc.ID)
}

func TestService_LogActivity_RereadsOnConflict(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMemStore()
	seedUsers(t, store)
	seedDoc(t, store, docs.PathActivity, []domain.ActivityRecord{{ID: "seed", Action: "noop"}})

	store.BeforeWrite = func(path string) {
		if path != docs.PathActivity {
			return
		}
		content, err := json.Marshal(docs.Document[domain.ActivityRecord]{
			Items: []domain.ActivityRecord{{ID: "rival", Action: "noop"}, {ID: "seed", Action: "noop"}},
		})
		require.NoError(t, err)
		store.Overwrite(docs.PathActivity, content)
	}

	svc, _ := newTestService(t, store)
	svc.logActivity(ctx, "test_case", "create", "lead", "created", nil)

	records, err := svc.ListActivity(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "create", records[0].Action)
	assert.Equal(t, "rival", records[1].ID)
}
