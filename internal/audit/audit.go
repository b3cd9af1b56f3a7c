package audit

import (
	"context"

	"github.com/flenzi/company-service/pkg/log"
)

// Audit actions.
const (
	ActionCreateProduct = "product.create"
	ActionUpdateProduct = "product.update"
	ActionUpdateStock   = "product.update_stock"
	ActionDeleteProduct = "product.delete"
	ActionCreateUser    = "user.create"
	ActionUpdateUser    = "user.update"
	ActionDeleteUser    = "user.delete"
)

// Field constants for audit entries.
const (
	FieldAction   = "action"
	FieldTargetID = "target_id"
	FieldDetail   = "detail"
)

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action string, targetID string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(FieldTargetID, targetID).
		Msg(msg)
}

// LogWithDetail emits an audit log with extra detail field.
func LogWithDetail(ctx context.Context, action string, targetID string, detail string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(FieldTargetID, targetID).
		Str(FieldDetail, detail).
		Msg(msg)
}
