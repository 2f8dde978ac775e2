package job_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postcast/features/job"
	"postcast/internal/testutils"
)

func TestJobRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := testutils.NewIntegrationSuite(t)
	s.Setup()
	defer s.Teardown()

	repo := job.NewPostgresRepo(s.DB)
	ctx := context.Background()

	first, err := repo.Record(ctx, "post-a", "error 1")
	require.NoError(t, err)
	assert.Equal(t, 0, first.Retries)

	time.Sleep(50 * time.Millisecond)

	again, err := repo.Record(ctx, "post-a", "error 2")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, 1, again.Retries)
	assert.Equal(t, "error 2", again.Error)

	time.Sleep(50 * time.Millisecond)

	_, err = repo.Record(ctx, "post-b", "error 3")
	require.NoError(t, err)

	jobs, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "post-b", jobs[0].PostID)

	got, err := repo.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "post-a", got.PostID)

	require.NoError(t, repo.DeleteByPost(ctx, "post-a"))
	require.NoError(t, repo.Delete(ctx, jobs[0].ID))

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
