package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lumenflow/portal/internal/model"
	"github.com/lumenflow/portal/internal/realtime"
)

var ErrTaskNotFound = errors.New("task not found")

type TaskRepository interface {
	Create(ctx context.Context, task *model.Task) error
	SetStatus(ctx context.Context, id, status string) error
	Delete(ctx context.Context, id string) error
	ByID(ctx context.Context, id string) (*model.Task, error)
	ByProjectIDs(ctx context.Context, projectIDs []string) ([]*model.Task, error)
}

type taskRepository struct {
	db  *sqlx.DB
	pub realtime.Publisher
}

func NewTaskRepository(db *sqlx.DB, pub realtime.Publisher) TaskRepository {
	return &taskRepository{db: db, pub: pub}
}

func (r *taskRepository) Create(ctx context.Context, t *model.Task) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Status == "" {
		t.Status = model.TaskStatusTodo
	}
	if t.Priority == "" {
		t.Priority = model.TaskPriorityMedium
	}
	now := time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tasks (id, project_id, title, status, priority, due_date, position, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, t.ID, t.ProjectID, t.Title, t.Status, t.Priority, t.DueDate, t.Position, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return err
	}

	notify(ctx, r.pub, TableTasks, realtime.Insert, t, nil)
	return nil
}

func (r *taskRepository) SetStatus(ctx context.Context, id, status string) error {
	old, err := r.ByID(ctx, id)
	if err != nil {
		return err
	}

	updated := *old
	updated.Status = status
	updated.UpdatedAt = time.Now()

	_, err = r.db.ExecContext(ctx,
		`UPDATE tasks SET status = $1, updated_at = $2 WHERE id = $3`,
		updated.Status, updated.UpdatedAt, id)
	if err != nil {
		return err
	}

	notify(ctx, r.pub, TableTasks, realtime.Update, &updated, old)
	return nil
}

func (r *taskRepository) Delete(ctx context.Context, id string) error {
	old, err := r.ByID(ctx, id)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return err
	}

	notify(ctx, r.pub, TableTasks, realtime.Delete, nil, old)
	return nil
}

func (r *taskRepository) ByID(ctx context.Context, id string) (*model.Task, error) {
	var t model.Task
	err := r.db.GetContext(ctx, &t, `SELECT * FROM tasks WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *taskRepository) ByProjectIDs(ctx context.Context, projectIDs []string) ([]*model.Task, error) {
	tasks := []*model.Task{}
	if len(projectIDs) == 0 {
		return tasks, nil
	}

	query, args, err := sqlx.In(`
		SELECT * FROM tasks
		WHERE project_id IN (?)
		ORDER BY position, created_at
	`, projectIDs)
	if err != nil {
		return nil, err
	}

	err = r.db.SelectContext(ctx, &tasks, r.db.Rebind(query), args...)
	return tasks, err
}
