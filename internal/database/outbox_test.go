package database

import (
	"context"
	"testing"
	"time"

	"sparkclean/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutboxOperations(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	task := &models.OutboxTask{TaskType: "send_email", ReferenceID: 1, Payload: `{"to":"a@b.c"}`}
	require.NoError(t, db.CreateOutboxTask(ctx, task))
	assert.NotZero(t, task.ID)
	assert.Equal(t, models.OutboxPending, task.Status)

	pending, err := db.GetPendingOutboxTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Nil(t, pending[0].LastError)

	// Scheduled in the future: not picked up yet
	next := time.Now().Add(time.Hour)
	require.NoError(t, db.UpdateOutboxTaskStatus(ctx, task.ID, models.OutboxRetry, "smtp down", &next))
	pending, err = db.GetPendingOutboxTasks(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	past := time.Now().Add(-time.Minute)
	require.NoError(t, db.UpdateOutboxTaskStatus(ctx, task.ID, models.OutboxRetry, "smtp down", &past))
	pending, err = db.GetPendingOutboxTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 2, pending[0].RetryCount)
	require.NotNil(t, pending[0].LastError)
	assert.Equal(t, "smtp down", *pending[0].LastError)

	require.NoError(t, db.UpdateOutboxTaskStatus(ctx, task.ID, models.OutboxFailed, "gave up", nil))
	failed, err := db.GetFailedOutboxTasks(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.NotNil(t, failed[0].ProcessedAt)

	assert.ErrorIs(t, db.UpdateOutboxTaskStatus(ctx, 999, models.OutboxCompleted, "", nil), ErrNotFound)
}
