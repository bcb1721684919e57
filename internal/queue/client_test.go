package queue_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-beaute/internal/notify"
	"github.com/noah-isme/backend-beaute/internal/queue"
)

type recordingEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (r *recordingEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.tasks = append(r.tasks, task)
	return &asynq.TaskInfo{ID: "task-1", Type: task.Type()}, nil
}

func TestEnqueueRedemption(t *testing.T) {
	rec := &recordingEnqueuer{}
	c := queue.Client{Tasks: rec}
	require.NoError(t, c.EnqueueRedemption(context.Background(), uuid.New()))
	require.Len(t, rec.tasks, 1)
	require.Equal(t, queue.TypeDiscountRedeem, rec.tasks[0].Type())

	require.Error(t, c.EnqueueRedemption(context.Background(), uuid.Nil))
}

func TestEnqueueRedemptionIgnoresPendingDuplicate(t *testing.T) {
	c := queue.Client{Tasks: &recordingEnqueuer{err: asynq.ErrTaskIDConflict}}
	require.NoError(t, c.EnqueueRedemption(context.Background(), uuid.New()))
}

func TestEnqueueBroadcast(t *testing.T) {
	rec := &recordingEnqueuer{}
	c := queue.Client{Tasks: rec}
	id, err := c.EnqueueBroadcast(context.Background(), notify.Campaign{ID: "spring", Recipients: []string{"a@example.com"}})
	require.NoError(t, err)
	require.Equal(t, "task-1", id)
	require.Equal(t, queue.TypeEmailBroadcast, rec.tasks[0].Type())

	_, err = queue.Client{}.EnqueueBroadcast(context.Background(), notify.Campaign{ID: "x"})
	require.Error(t, err)
}
