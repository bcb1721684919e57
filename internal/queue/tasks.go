package queue

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/noah-isme/backend-beaute/internal/notify"
)

// Task types.
const (
	TypeDiscountRedeem = "discount:redeem"
	TypeEmailBroadcast = "email:broadcast"
)

// Queue names and their processing weights.
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
)

// Queues returns the weighted queue configuration for the worker.
func Queues() map[string]int {
	return map[string]int{QueueCritical: 6, QueueDefault: 3}
}

// RedeemPayload identifies the paid order whose discount must be redeemed.
type RedeemPayload struct {
	OrderID uuid.UUID `json:"orderId"`
}

// NewRedeemTask builds a discount redemption task. The task id is derived from the
// order so duplicate enqueues collapse while a task is pending.
func NewRedeemTask(orderID uuid.UUID, maxRetry int) (*asynq.Task, error) {
	if orderID == uuid.Nil {
		return nil, fmt.Errorf("queue: order id is required")
	}
	raw, err := json.Marshal(RedeemPayload{OrderID: orderID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeDiscountRedeem, raw,
		asynq.TaskID("redeem:"+orderID.String()),
		asynq.Queue(QueueCritical),
		asynq.MaxRetry(maxRetry),
	), nil
}

// NewBroadcastTask builds a bulk email task for c.
func NewBroadcastTask(c notify.Campaign, maxRetry int) (*asynq.Task, error) {
	if c.ID == "" {
		return nil, fmt.Errorf("queue: campaign id is required")
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeEmailBroadcast, raw,
		asynq.TaskID("broadcast:"+c.ID),
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(maxRetry),
	), nil
}
