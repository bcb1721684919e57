package queue

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/noah-isme/backend-beaute/internal/notify"
)

// Enqueuer is the subset of *asynq.Client used by Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Client schedules background work.
type Client struct {
	Tasks            Enqueuer
	RedeemMaxRetry   int
	BroadcastRetries int
}

// EnqueueRedemption implements payment.RedemptionRetrier. A task already pending
// for the same order is not an error.
func (c Client) EnqueueRedemption(ctx context.Context, orderID uuid.UUID) error {
	if c.Tasks == nil {
		return errors.New("queue: task client not configured")
	}
	retries := c.RedeemMaxRetry
	if retries <= 0 {
		retries = 10
	}
	task, err := NewRedeemTask(orderID, retries)
	if err != nil {
		return err
	}
	_, err = c.Tasks.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

// EnqueueBroadcast implements notify.BroadcastEnqueuer.
func (c Client) EnqueueBroadcast(ctx context.Context, campaign notify.Campaign) (string, error) {
	if c.Tasks == nil {
		return "", errors.New("queue: task client not configured")
	}
	retries := c.BroadcastRetries
	if retries <= 0 {
		retries = 3
	}
	task, err := NewBroadcastTask(campaign, retries)
	if err != nil {
		return "", err
	}
	info, err := c.Tasks.EnqueueContext(ctx, task)
	if err != nil {
		return "", err
	}
	return info.ID, nil
}
