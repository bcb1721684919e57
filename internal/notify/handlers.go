package notify

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-beaute/internal/common"
)

// BroadcastEnqueuer schedules a campaign for background delivery and returns the task id.
type BroadcastEnqueuer interface {
	EnqueueBroadcast(ctx context.Context, c Campaign) (string, error)
}

// AdminHandler exposes bulk email endpoints.
type AdminHandler struct {
	Queue         BroadcastEnqueuer
	MaxRecipients int
	Logger        zerolog.Logger
}

type broadcastRequest struct {
	CampaignID string   `json:"campaignId" validate:"omitempty,max=64"`
	Subject    string   `json:"subject" validate:"required,max=200"`
	HTML       string   `json:"html" validate:"required"`
	Recipients []string `json:"recipients" validate:"required,min=1"`
}

// Broadcast handles POST /api/v1/admin/emails/broadcast.
func (h *AdminHandler) Broadcast(w http.ResponseWriter, r *http.Request) {
	if h.Queue == nil {
		common.JSONError(w, http.StatusServiceUnavailable, "QUEUE_UNAVAILABLE", "background queue not configured", nil)
		return
	}
	var req broadcastRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	max := h.MaxRecipients
	if max <= 0 {
		max = 10000
	}
	valid, invalid := NormalizeRecipients(req.Recipients)
	if len(valid) == 0 {
		common.JSONError(w, http.StatusBadRequest, "NO_RECIPIENTS", "no valid recipients", map[string]any{"invalid": invalid})
		return
	}
	if len(valid) > max {
		common.JSONError(w, http.StatusBadRequest, "TOO_MANY_RECIPIENTS", "too many recipients", map[string]int{"max": max})
		return
	}
	campaign := Campaign{
		ID:         strings.TrimSpace(req.CampaignID),
		Subject:    req.Subject,
		HTML:       req.HTML,
		Recipients: valid,
	}
	if campaign.ID == "" {
		campaign.ID = uuid.NewString()
	}
	taskID, err := h.Queue.EnqueueBroadcast(r.Context(), campaign)
	if err != nil {
		h.Logger.Error().Err(err).Str("campaign_id", campaign.ID).Msg("enqueue broadcast failed")
		common.JSONError(w, http.StatusServiceUnavailable, "QUEUE_UNAVAILABLE", "failed to schedule broadcast", nil)
		return
	}
	actor, _ := common.Subject(r.Context())
	h.Logger.Info().Str("campaign_id", campaign.ID).Str("actor", actor).Int("recipients", len(valid)).Msg("broadcast scheduled")
	common.JSON(w, http.StatusAccepted, map[string]any{"data": map[string]any{
		"campaignId": campaign.ID,
		"taskId":     taskID,
		"recipients": len(valid),
		"invalid":    invalid,
	}})
}
