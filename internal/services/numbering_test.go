package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opendatahq/issues-backend/internal/dto"
	"github.com/opendatahq/issues-backend/internal/models"
)

func TestIssueNumbersAreSequentialPerDataset(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := seedUser(t, env.db, "reporter")
	org := seedOrg(t, env.db, "parks", nil)
	datasetA := seedDataset(t, env.db, org, user, "dataset-a")
	datasetB := seedDataset(t, env.db, org, user, "dataset-b")

	for i := 1; i <= 3; i++ {
		issue, err := env.issues.Create(ctx, user.ID, datasetA.Name, &dto.CreateIssueRequest{
			Title: fmt.Sprintf("issue %d", i),
		})
		require.NoError(t, err)
		assert.Equal(t, i, issue.Number)
	}

	// Numbering is independent per dataset.
	issue, err := env.issues.Create(ctx, user.ID, datasetB.Name, &dto.CreateIssueRequest{
		Title: "first on b",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, issue.Number)
}

func TestIssueNumbersSurviveConcurrentCreation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := seedUser(t, env.db, "reporter")
	org := seedOrg(t, env.db, "parks", nil)
	dataset := seedDataset(t, env.db, org, user, "contended")

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.issues.Create(ctx, user.ID, dataset.Name, &dto.CreateIssueRequest{
				Title: fmt.Sprintf("concurrent %d", i),
			})
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	var numbers []int
	require.NoError(t, env.db.Model(&models.Issue{}).
		Where("dataset_id = ?", dataset.ID).
		Pluck("number", &numbers).Error)
	sort.Ints(numbers)

	// Gap-free and duplicate-free: exactly 1..n.
	require.Len(t, numbers, n)
	for i, number := range numbers {
		assert.Equal(t, i+1, number)
	}
}

func TestIssueNumbersReuseAfterDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := seedUser(t, env.db, "owner")
	org := seedOrg(t, env.db, "parks", nil)
	dataset := seedDataset(t, env.db, org, user, "reuse")
	seedMember(t, env.db, org, user, "editor")

	first, err := env.issues.Create(ctx, user.ID, dataset.Name, &dto.CreateIssueRequest{Title: "one"})
	require.NoError(t, err)
	second, err := env.issues.Create(ctx, user.ID, dataset.Name, &dto.CreateIssueRequest{Title: "two"})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Number)
	assert.Equal(t, 2, second.Number)

	// Numbers come from MAX+1, so deleting the latest issue frees its
	// number for the next creation.
	require.NoError(t, env.issues.Delete(ctx, user.ID, dataset.Name, second.Number))

	third, err := env.issues.Create(ctx, user.ID, dataset.Name, &dto.CreateIssueRequest{Title: "three"})
	require.NoError(t, err)
	assert.Equal(t, 2, third.Number)
}
