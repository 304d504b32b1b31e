package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qaflow/internal/domain"
	"qaflow/internal/storage/docs"
	"qaflow/internal/testutil"
)

func TestService_CreateTestCase(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMemStore()
	seedUsers(t, store)
	svc, _ := newTestService(t, store)

	tc, err := svc.CreateTestCase(ctx, "lead", TestCaseInput{
		ID:     "tc-login",
		Name:   "login with valid credentials",
		Tags:   []string{"Smoke", " auth ", "smoke"},
		Intent: "verify the happy path",
		Steps: []domain.BDDStep{
			{Keyword: "Given", Text: "a registered user"},
			{Keyword: "When", Text: "they submit valid credentials"},
			{Keyword: "Then", Text: "they land on the dashboard"},
		},
		ExpectedDuration: 5,
	})
	require.NoError(t, err)

	assert.Equal(t, "tc-login", tc.ID)
	assert.Equal(t, "lead", tc.Author)
	assert.Equal(t, []string{"auth", "smoke"}, tc.Tags)
	assert.Len(t, tc.Steps, 3)

	// Same id again.
	_, err = svc.CreateTestCase(ctx, "lead", TestCaseInput{ID: "tc-login", Name: "dup"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.CreateTestCase(ctx, "lead", TestCaseInput{})
	assert.ErrorIs(t, err, domain.ErrValidation)

	// Ids are generated when the author does not pick one.
	generated, err := svc.CreateTestCase(ctx, "alice", TestCaseInput{Name: "search by tag", Custom: true})
	require.NoError(t, err)
	assert.NotEmpty(t, generated.ID)
	assert.True(t, generated.Custom)
}

func TestService_UpdateTestCase_PartialFields(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMemStore()
	seedUsers(t, store)
	svc, _ := newTestService(t, store)

	_, err := svc.CreateTestCase(ctx, "lead", TestCaseInput{
		ID: "tc1", Name: "original", Tags: []string{"smoke"}, Intent: "check it", ExpectedDuration: 10,
	})
	require.NoError(t, err)

	tc, err := svc.UpdateTestCase(ctx, "lead", "tc1", TestCaseInput{Name: "renamed"})
	require.NoError(t, err)
	assert.Equal(t, "renamed", tc.Name)
	assert.Equal(t, []string{"smoke"}, tc.Tags)
	assert.Equal(t, "check it", tc.Intent)
	assert.Equal(t, 10, tc.ExpectedDuration)

	_, err = svc.UpdateTestCase(ctx, "lead", "missing", TestCaseInput{Name: "x"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestService_DeleteTestCase_RefusedWhileActive(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMemStore()
	seedUsers(t, store)
	seedDoc(t, store, docs.PathTestCases, []domain.TestCase{{ID: "tc1", Name: "login"}})
	seedDoc(t, store, docs.PathAssignments, []domain.TestAssignment{
		{ID: "a1", PRID: "pr1", TestCaseID: "tc1", AssignedTo: "alice", Status: domain.AssignmentInProgress},
	})
	svc, _ := newTestService(t, store)

	err := svc.DeleteTestCase(ctx, "lead", "tc1")
	assert.ErrorIs(t, err, domain.ErrActiveAssignments)

	// Once the assignment reaches a terminal state the delete goes through.
	seedDoc(t, store, docs.PathAssignments, []domain.TestAssignment{
		{ID: "a1", PRID: "pr1", TestCaseID: "tc1", AssignedTo: "alice", Status: domain.AssignmentCompleted},
	})
	require.NoError(t, svc.DeleteTestCase(ctx, "lead", "tc1"))

	testCases, err := svc.ListTestCases(ctx)
	require.NoError(t, err)
	assert.Empty(t, testCases)

	err = svc.DeleteTestCase(ctx, "lead", "tc1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestNormalizeTags(t *testing.T) {
	cases := []struct {
		name string
		in   []string
		want []string
	}{
		{name: "nil", in: nil, want: []string{}},
		{name: "dedupe and sort", in: []string{"Smoke", "regression", "smoke"}, want: []string{"regression", "smoke"}},
		{name: "trims and drops empty", in: []string{"  auth  ", "", "   "}, want: []string{"auth"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, normalizeTags(tc.in))
		})
	}
}
