package queue_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-beaute/internal/discount"
	"github.com/noah-isme/backend-beaute/internal/notify"
	"github.com/noah-isme/backend-beaute/internal/order"
	"github.com/noah-isme/backend-beaute/internal/queue"
)

type stubRedeemer struct {
	calls []uuid.UUID
	err   error
}

func (s *stubRedeemer) RedeemDiscountForOrder(_ context.Context, id uuid.UUID) error {
	s.calls = append(s.calls, id)
	return s.err
}

type stubBroadcaster struct {
	got []notify.Campaign
	err error
}

func (s *stubBroadcaster) Send(_ context.Context, c notify.Campaign) (notify.Report, error) {
	s.got = append(s.got, c)
	return notify.Report{CampaignID: c.ID, Sent: len(c.Recipients)}, s.err
}

func redeemTask(t *testing.T, id uuid.UUID) *asynq.Task {
	t.Helper()
	task, err := queue.NewRedeemTask(id, 5)
	require.NoError(t, err)
	return task
}

func TestRedeemTaskRunsSettlement(t *testing.T) {
	r := &stubRedeemer{}
	h := queue.Handlers{Redeemer: r}
	id := uuid.New()

	require.NoError(t, h.Mux().ProcessTask(context.Background(), redeemTask(t, id)))
	require.Equal(t, []uuid.UUID{id}, r.calls)
}

func TestRedeemTaskRuleFailureSkipsRetry(t *testing.T) {
	for _, cause := range []error{
		fmt.Errorf("redeem: %w", discount.ErrUsageLimitReached),
		order.ErrNotFound,
	} {
		h := queue.Handlers{Redeemer: &stubRedeemer{err: cause}}
		err := h.Redeem(context.Background(), redeemTask(t, uuid.New()))
		require.ErrorIs(t, err, asynq.SkipRetry)
	}
}

func TestRedeemTaskTransientFailureRetries(t *testing.T) {
	h := queue.Handlers{Redeemer: &stubRedeemer{err: errors.New("connection reset")}}
	err := h.Redeem(context.Background(), redeemTask(t, uuid.New()))
	require.Error(t, err)
	require.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestRedeemTaskBadPayload(t *testing.T) {
	h := queue.Handlers{Redeemer: &stubRedeemer{}}
	err := h.Redeem(context.Background(), asynq.NewTask(queue.TypeDiscountRedeem, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestBroadcastTaskRunsCampaign(t *testing.T) {
	b := &stubBroadcaster{}
	h := queue.Handlers{Broadcaster: b}
	task, err := queue.NewBroadcastTask(notify.Campaign{ID: "spring", Subject: "New in", Recipients: []string{"a@example.com"}}, 3)
	require.NoError(t, err)

	require.NoError(t, h.Mux().ProcessTask(context.Background(), task))
	require.Len(t, b.got, 1)
	require.Equal(t, "spring", b.got[0].ID)

	b.err = notify.ErrCampaignRunning
	require.ErrorIs(t, h.Broadcast(context.Background(), task), notify.ErrCampaignRunning)
}

func TestNewBroadcastTaskRequiresID(t *testing.T) {
	_, err := queue.NewBroadcastTask(notify.Campaign{}, 3)
	require.Error(t, err)
}

func TestRetryDelayGrowsAndIsCapped(t *testing.T) {
	delay := queue.RetryDelay(time.Second)
	first := delay(0, nil, nil)
	require.InDelta(t, float64(time.Second), float64(first), float64(200*time.Millisecond))
	third := delay(2, nil, nil)
	require.InDelta(t, float64(4*time.Second), float64(third), float64(800*time.Millisecond))
	require.LessOrEqual(t, delay(40, nil, nil), 30*time.Minute)
}

func TestRedeemPayloadShape(t *testing.T) {
	id := uuid.New()
	task := redeemTask(t, id)
	require.Equal(t, queue.TypeDiscountRedeem, task.Type())
	var p map[string]string
	require.NoError(t, json.Unmarshal(task.Payload(), &p))
	require.Equal(t, id.String(), p["orderId"])
}
