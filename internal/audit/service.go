// Package audit keeps a trail of administrative changes.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-beaute/internal/common"
	dbgen "github.com/noah-isme/backend-beaute/internal/db/gen"
	"github.com/noah-isme/backend-beaute/internal/obs"
)

// SystemActor is recorded when no token subject is attached to the request.
const SystemActor = "system"

// Store defines the database operations required for auditing.
type Store interface {
	InsertAdminAuditLog(ctx context.Context, arg dbgen.InsertAdminAuditLogParams) (dbgen.AdminAuditLog, error)
	ListAdminAuditLogs(ctx context.Context, arg dbgen.ListAdminAuditLogsParams) ([]dbgen.AdminAuditLog, error)
}

// Entry describes one audited action.
type Entry struct {
	Action       string
	ResourceType string
	ResourceID   string
	Status       int
	Metadata     map[string]any
}

// Service persists audit entries.
type Service struct {
	Store Store
}

// Record stores e for req. The actor is the authenticated subject on the request context.
func (s Service) Record(ctx context.Context, req *http.Request, e Entry) error {
	if req == nil {
		return errors.New("audit: request is required")
	}
	if s.Store == nil {
		return errors.New("audit: store not configured")
	}
	actor, ok := common.Subject(req.Context())
	if !ok {
		actor = SystemActor
	}
	route := obs.Route(req)
	if route == "unknown" {
		route = req.URL.Path
	}
	status := e.Status
	if status == 0 {
		status = http.StatusOK
	}
	var metadata []byte
	if len(e.Metadata) > 0 {
		data, err := json.Marshal(e.Metadata)
		if err != nil {
			return err
		}
		metadata = data
	}

	_, err := s.Store.InsertAdminAuditLog(ctx, dbgen.InsertAdminAuditLogParams{
		Actor:        actor,
		Action:       action(e.Action, req.Method, route),
		ResourceType: resource(e.ResourceType, route),
		ResourceID:   text(e.ResourceID),
		Method:       req.Method,
		Route:        route,
		Status:       int32(status),
		Ip:           text(common.ClientIP(req)),
		RequestID:    text(middleware.GetReqID(req.Context())),
		Metadata:     metadata,
	})
	return err
}

func action(explicit, method, route string) string {
	if a := strings.TrimSpace(explicit); a != "" {
		return a
	}
	return method + " " + route
}

// resource derives "discount-codes" from "/api/v1/admin/discount-codes/{code}".
func resource(explicit, route string) string {
	if r := strings.TrimSpace(explicit); r != "" {
		return r
	}
	segments := strings.Split(strings.Trim(route, "/"), "/")
	for i, seg := range segments {
		if seg == "admin" && i+1 < len(segments) {
			return segments[i+1]
		}
	}
	if len(segments) == 0 || segments[0] == "" {
		return "unknown"
	}
	return segments[len(segments)-1]
}

func text(v string) pgtype.Text {
	v = strings.TrimSpace(v)
	if v == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: v, Valid: true}
}
