package shopdb

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaimDueJobOrderingAndExclusivity(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	now := time.Now().Unix()

	_, err := client.Queries.EnqueueJob(ctx, EnqueueJobParams{
		ID: "job-later", Kind: "order.close_expired", Payload: "{}", RunAt: now - 10,
	})
	require.NoError(t, err)
	_, err = client.Queries.EnqueueJob(ctx, EnqueueJobParams{
		ID: "job-earlier", Kind: "order.close_expired", Payload: "{}", RunAt: now - 60,
	})
	require.NoError(t, err)
	_, err = client.Queries.EnqueueJob(ctx, EnqueueJobParams{
		ID: "job-future", Kind: "order.close_expired", Payload: "{}", RunAt: now + 3600,
	})
	require.NoError(t, err)

	first, err := client.Queries.ClaimDueJob(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, "job-earlier", first.ID)
	assert.Equal(t, JobStatusRunning, first.Status)
	assert.EqualValues(t, 1, first.Attempts)

	second, err := client.Queries.ClaimDueJob(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, "job-later", second.ID)

	// The future job is not due; nothing left to claim.
	_, err = client.Queries.ClaimDueJob(ctx, now)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestJobRetryAndFailure(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	now := time.Now().Unix()

	_, err := client.Queries.EnqueueJob(ctx, EnqueueJobParams{
		ID: "flaky", Kind: "order.close_expired", Payload: "{}", RunAt: now - 1, MaxAttempts: 2,
	})
	require.NoError(t, err)

	claimed, err := client.Queries.ClaimDueJob(ctx, now)
	require.NoError(t, err)

	require.NoError(t, client.Queries.RetryJob(ctx, claimed.ID, now, "boom"))
	requeued, err := client.Queries.GetJob(ctx, claimed.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusPending, requeued.Status)
	assert.Equal(t, "boom", requeued.LastError.String)

	claimed, err = client.Queries.ClaimDueJob(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 2, claimed.Attempts)

	require.NoError(t, client.Queries.MarkJobFailed(ctx, claimed.ID, "boom again"))
	failed, err := client.Queries.GetJob(ctx, claimed.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusFailed, failed.Status)
	assert.True(t, failed.FinishedAt.Valid)
}

func TestReclaimStuckJobs(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	now := time.Now().Unix()

	_, err := client.Queries.EnqueueJob(ctx, EnqueueJobParams{
		ID: "stuck", Kind: "order.close_expired", Payload: "{}", RunAt: now - 120,
	})
	require.NoError(t, err)

	_, err = client.Queries.ClaimDueJob(ctx, now-100)
	require.NoError(t, err)

	// Within the visibility window: nothing reclaimed.
	n, err := client.Queries.ReclaimStuckJobs(ctx, now-110)
	require.NoError(t, err)
	assert.Zero(t, n)

	// Past the window: the claim is released.
	n, err = client.Queries.ReclaimStuckJobs(ctx, now-50)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	reclaimed, err := client.Queries.GetJob(ctx, "stuck")
	require.NoError(t, err)
	assert.Equal(t, JobStatusPending, reclaimed.Status)
	assert.False(t, reclaimed.ClaimedAt.Valid)
}

func TestPurgeFinishedJobs(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	now := time.Now().Unix()

	_, err := client.Queries.EnqueueJob(ctx, EnqueueJobParams{
		ID: "done-job", Kind: "jobs.purge_finished", Payload: "{}", RunAt: now - 1,
	})
	require.NoError(t, err)
	claimed, err := client.Queries.ClaimDueJob(ctx, now)
	require.NoError(t, err)
	require.NoError(t, client.Queries.MarkJobDone(ctx, claimed.ID))

	n, err := client.Queries.PurgeFinishedJobs(ctx, now+1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = client.Queries.GetJob(ctx, "done-job")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
