package audit

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/noah-isme/backend-beaute/internal/common"
	dbgen "github.com/noah-isme/backend-beaute/internal/db/gen"
	"github.com/noah-isme/backend-beaute/internal/db/pgconv"
)

// Handler exposes the audit trail to administrators.
type Handler struct {
	Store Store
}

type logResponse struct {
	ID           string          `json:"id"`
	Actor        string          `json:"actor"`
	Action       string          `json:"action"`
	ResourceType string          `json:"resourceType"`
	ResourceID   string          `json:"resourceId,omitempty"`
	Method       string          `json:"method"`
	Route        string          `json:"route"`
	Status       int32           `json:"status"`
	IP           string          `json:"ip,omitempty"`
	RequestID    string          `json:"requestId,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// List handles GET /api/v1/admin/audit-logs.
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "AUDIT_NOT_CONFIGURED", "audit store not configured", nil)
		return
	}
	page := common.ParsePagination(r, 50, 200)
	rows, err := h.Store.ListAdminAuditLogs(r.Context(), dbgen.ListAdminAuditLogsParams{Limit: page.Limit(), Offset: page.Offset()})
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "AUDIT_QUERY_FAILED", "unable to fetch audit logs", nil)
		return
	}
	data := make([]logResponse, 0, len(rows))
	for _, row := range rows {
		data = append(data, logResponse{
			ID:           pgconv.FromUUID(row.ID).String(),
			Actor:        row.Actor,
			Action:       row.Action,
			ResourceType: row.ResourceType,
			ResourceID:   row.ResourceID.String,
			Method:       row.Method,
			Route:        row.Route,
			Status:       row.Status,
			IP:           row.Ip.String,
			RequestID:    row.RequestID.String,
			Metadata:     row.Metadata,
			CreatedAt:    row.CreatedAt.Time,
		})
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": data, "pagination": page})
}
