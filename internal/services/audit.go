package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/baharkarakas/tender-backend/internal/models"
	repo "github.com/baharkarakas/tender-backend/internal/repository"
	"github.com/baharkarakas/tender-backend/internal/worker"
)

type actorKey struct{}

// WithActor tags ctx with the authenticated user id for audit rows.
func WithActor(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, actorKey{}, userID)
}

func ActorFrom(ctx context.Context) string {
	v, _ := ctx.Value(actorKey{}).(string)
	return v
}

// Auditor queues audit rows on the worker pool. With a nil pool the write
// happens inline, which tests rely on.
type Auditor struct {
	logs repo.AuditLogs
	wp   *worker.Pool
}

func NewAuditor(logs repo.AuditLogs, wp *worker.Pool) *Auditor {
	return &Auditor{logs: logs, wp: wp}
}

func (a *Auditor) Record(ctx context.Context, entityType, entityID, action string, details map[string]any) {
	if a == nil || a.logs == nil {
		return
	}
	l := models.AuditLog{
		EntityType: entityType,
		EntityID:   &entityID,
		Action:     action,
		ActorID:    ActorFrom(ctx),
		Details:    details,
	}
	write := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.logs.Create(ctx, l); err != nil {
			slog.Error("audit write failed", "entity", entityType, "id", entityID, "action", action, "err", err)
		}
	}
	if a.wp == nil {
		write()
		return
	}
	a.wp.Submit(write)
}

func (a *Auditor) History(ctx context.Context, entityType, entityID string, limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return a.logs.ListByEntity(ctx, entityType, entityID, limit)
}
