package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"groupdesk/internal/model"
)

type AuditLogEventType string

const (
	AuditLogEventTypeUserUpsert         AuditLogEventType = "user.upsert"
	AuditLogEventTypeUserSettingsUpdate AuditLogEventType = "user.settings_update"
	AuditLogEventTypeGroupCreate        AuditLogEventType = "group.create"
	AuditLogEventTypeGroupMemberAdd     AuditLogEventType = "group.member_add"
	AuditLogEventTypeAuthLogin          AuditLogEventType = "auth.login"
	AuditLogEventTypeAuthLogout         AuditLogEventType = "auth.logout"
)

type Store interface {
	RecordAudit(ctx context.Context, event model.AuditEvent) error
}

type Auditor struct {
	logger *slog.Logger
	store  Store
}

func NewAuditor(logger *slog.Logger, store Store) *Auditor {
	return &Auditor{logger: logger, store: store}
}

type LogEventParam struct {
	Actor string
	Type  AuditLogEventType
	Data  map[string]any
}

func (a *Auditor) LogEvent(ctx context.Context, params LogEventParam) error {
	event := model.AuditEvent{
		Actor:     params.Actor,
		Type:      string(params.Type),
		Data:      params.Data,
		CreatedAt: time.Now().UTC(),
	}

	if err := a.store.RecordAudit(ctx, event); err != nil {
		return fmt.Errorf("failed to create audit log event: %w", err)
	}

	a.logger.DebugContext(ctx, "Audit event recorded", "type", params.Type, "actor", params.Actor)
	return nil
}

// Record logs the event and reports a failure without returning it, for
// callers whose own operation already succeeded.
func (a *Auditor) Record(ctx context.Context, params LogEventParam) {
	if err := a.LogEvent(ctx, params); err != nil {
		a.logger.ErrorContext(ctx, "Failed to record audit event", "type", params.Type, "error", err)
	}
}
