package repository

import (
	"context"
	"log/slog"
	"strings"

	"github.com/lumenflow/portal/internal/realtime"
)

// Tables with a change feed
const (
	TableProjects       = "projects"
	TableProjectMembers = "project_members"
	TableTasks          = "tasks"
	TableAssets         = "assets"
	TableArticles       = "articles"
	TableArticleAccess  = "article_access"
)

// isUniqueViolation works for both SQLite and PostgreSQL
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") || strings.Contains(errStr, "duplicate key value")
}

// notify publishes a change after a committed write. The write already
// succeeded, so a failed publish is only logged.
func notify(ctx context.Context, pub realtime.Publisher, table string, typ realtime.EventType, record, old any) {
	if pub == nil {
		return
	}
	ev, err := realtime.NewEvent(table, typ, record, old)
	if err != nil {
		slog.Warn("failed to build change event", "error", err, "table", table)
		return
	}
	err = pub.Publish(ctx, ev)
	if err != nil {
		slog.Warn("failed to publish change event", "error", err, "table", table, "type", typ)
	}
}
