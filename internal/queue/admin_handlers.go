package queue

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-beaute/internal/common"
)

// Inspector is the subset of *asynq.Inspector used by AdminHandler.
type Inspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	ListArchivedTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	RunTask(queue, id string) error
}

// AdminHandler exposes archived (dead-lettered) tasks and queue statistics.
type AdminHandler struct {
	Inspector Inspector
	PageSize  int
	Logger    zerolog.Logger
}

type archivedItem struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	Queue        string    `json:"queue"`
	Retried      int       `json:"retried"`
	MaxRetry     int       `json:"maxRetry"`
	LastError    string    `json:"lastError,omitempty"`
	LastFailedAt time.Time `json:"lastFailedAt"`
	Payload      []byte    `json:"payload"`
}

// ListArchived handles GET /api/v1/admin/queue/archived?queue=&page=.
func (h *AdminHandler) ListArchived(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Inspector == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "queue inspector unavailable", nil)
		return
	}
	queue := queueParam(r)
	page := 1
	if v := strings.TrimSpace(r.URL.Query().Get("page")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "page must be a positive integer", nil)
			return
		}
		page = parsed
	}
	tasks, err := h.Inspector.ListArchivedTasks(queue, asynq.PageSize(h.pageSize()), asynq.Page(page))
	if err != nil {
		if errors.Is(err, asynq.ErrQueueNotFound) {
			common.JSON(w, http.StatusOK, map[string]any{"data": []archivedItem{}, "queue": queue})
			return
		}
		h.Logger.Error().Err(err).Str("queue", queue).Msg("list archived tasks failed")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list archived tasks", nil)
		return
	}
	items := make([]archivedItem, 0, len(tasks))
	for _, t := range tasks {
		items = append(items, archivedItem{
			ID:           t.ID,
			Type:         t.Type,
			Queue:        t.Queue,
			Retried:      t.Retried,
			MaxRetry:     t.MaxRetry,
			LastError:    t.LastErr,
			LastFailedAt: t.LastFailedAt,
			Payload:      t.Payload,
		})
	}
	if info, err := h.Inspector.GetQueueInfo(queue); err == nil {
		QueueArchivedSize.WithLabelValues(queue).Set(float64(info.Archived))
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": items, "queue": queue, "page": page})
}

// Replay handles POST /api/v1/admin/queue/archived/{id}/run?queue=.
func (h *AdminHandler) Replay(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Inspector == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "queue inspector unavailable", nil)
		return
	}
	queue := queueParam(r)
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "task id is required", nil)
		return
	}
	if err := h.Inspector.RunTask(queue, id); err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "task not found", nil)
			return
		}
		h.Logger.Error().Err(err).Str("queue", queue).Str("task_id", id).Msg("replay task failed")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to replay task", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"replayed": id, "queue": queue})
}

// Stats handles GET /api/v1/admin/queue/stats?queue=.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Inspector == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "queue inspector unavailable", nil)
		return
	}
	queue := queueParam(r)
	info, err := h.Inspector.GetQueueInfo(queue)
	if err != nil {
		if errors.Is(err, asynq.ErrQueueNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "queue not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to read queue stats", nil)
		return
	}
	QueueArchivedSize.WithLabelValues(queue).Set(float64(info.Archived))
	common.JSON(w, http.StatusOK, map[string]any{
		"queue":      info.Queue,
		"pending":    info.Pending,
		"active":     info.Active,
		"scheduled":  info.Scheduled,
		"retry":      info.Retry,
		"archived":   info.Archived,
		"latency_ms": info.Latency.Milliseconds(),
		"paused":     info.Paused,
	})
}

func (h *AdminHandler) pageSize() int {
	if h.PageSize <= 0 || h.PageSize > 200 {
		return 50
	}
	return h.PageSize
}

func queueParam(r *http.Request) string {
	if q := strings.TrimSpace(r.URL.Query().Get("queue")); q != "" {
		return q
	}
	return QueueCritical
}
