package dbgen

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const insertAdminAuditLog = `-- name: InsertAdminAuditLog :one
INSERT INTO admin_audit_logs (actor, action, resource_type, resource_id, method, route, status, ip, request_id, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING id, actor, action, resource_type, resource_id, method, route, status, ip, request_id, metadata, created_at
`

type InsertAdminAuditLogParams struct {
	Actor        string      `json:"actor"`
	Action       string      `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   pgtype.Text `json:"resource_id"`
	Method       string      `json:"method"`
	Route        string      `json:"route"`
	Status       int32       `json:"status"`
	Ip           pgtype.Text `json:"ip"`
	RequestID    pgtype.Text `json:"request_id"`
	Metadata     []byte      `json:"metadata"`
}

func (q *Queries) InsertAdminAuditLog(ctx context.Context, arg InsertAdminAuditLogParams) (AdminAuditLog, error) {
	row := q.db.QueryRow(ctx, insertAdminAuditLog,
		arg.Actor,
		arg.Action,
		arg.ResourceType,
		arg.ResourceID,
		arg.Method,
		arg.Route,
		arg.Status,
		arg.Ip,
		arg.RequestID,
		arg.Metadata,
	)
	var i AdminAuditLog
	err := row.Scan(
		&i.ID,
		&i.Actor,
		&i.Action,
		&i.ResourceType,
		&i.ResourceID,
		&i.Method,
		&i.Route,
		&i.Status,
		&i.Ip,
		&i.RequestID,
		&i.Metadata,
		&i.CreatedAt,
	)
	return i, err
}

const listAdminAuditLogs = `-- name: ListAdminAuditLogs :many
SELECT id, actor, action, resource_type, resource_id, method, route, status, ip, request_id, metadata, created_at
FROM admin_audit_logs
ORDER BY created_at DESC
LIMIT $1 OFFSET $2
`

type ListAdminAuditLogsParams struct {
	Limit  int32 `json:"limit"`
	Offset int32 `json:"offset"`
}

func (q *Queries) ListAdminAuditLogs(ctx context.Context, arg ListAdminAuditLogsParams) ([]AdminAuditLog, error) {
	rows, err := q.db.Query(ctx, listAdminAuditLogs, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []AdminAuditLog
	for rows.Next() {
		var i AdminAuditLog
		if err := rows.Scan(
			&i.ID,
			&i.Actor,
			&i.Action,
			&i.ResourceType,
			&i.ResourceID,
			&i.Method,
			&i.Route,
			&i.Status,
			&i.Ip,
			&i.RequestID,
			&i.Metadata,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
