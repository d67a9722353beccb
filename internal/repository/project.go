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

var (
	ErrProjectNotFound = errors.New("project not found")
	ErrAlreadyMember   = errors.New("user is already a project member")
)

// ProjectScope selects the projects one identity may see within a brand.
// Staff see every project of the brand, clients only those they are members of.
type ProjectScope struct {
	Brand  string
	UserID string
	Staff  bool
}

type ProjectRepository interface {
	Create(ctx context.Context, project *model.Project) error
	Update(ctx context.Context, project *model.Project) error
	Delete(ctx context.Context, id string) error
	ByID(ctx context.Context, id string) (*model.Project, error)
	Visible(ctx context.Context, scope ProjectScope) ([]*model.Project, error)
	VisibleByID(ctx context.Context, scope ProjectScope, id string) (*model.Project, error)
	AddMember(ctx context.Context, projectID, userID string) error
	RemoveMember(ctx context.Context, projectID, userID string) error
}

type projectRepository struct {
	db  *sqlx.DB
	pub realtime.Publisher
}

func NewProjectRepository(db *sqlx.DB, pub realtime.Publisher) ProjectRepository {
	return &projectRepository{db: db, pub: pub}
}

func (r *projectRepository) Create(ctx context.Context, p *model.Project) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Status == "" {
		p.Status = model.ProjectStatusPlanning
	}
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO projects (id, brand, name, description, status, progress, deadline, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, p.ID, p.Brand, p.Name, p.Description, p.Status, p.Progress, p.Deadline, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return err
	}

	notify(ctx, r.pub, TableProjects, realtime.Insert, p, nil)
	return nil
}

func (r *projectRepository) Update(ctx context.Context, p *model.Project) error {
	old, err := r.ByID(ctx, p.ID)
	if err != nil {
		return err
	}

	p.UpdatedAt = time.Now()
	_, err = r.db.ExecContext(ctx, `
		UPDATE projects
		SET name = $1, description = $2, status = $3, progress = $4, deadline = $5, updated_at = $6
		WHERE id = $7
	`, p.Name, p.Description, p.Status, p.Progress, p.Deadline, p.UpdatedAt, p.ID)
	if err != nil {
		return err
	}

	p.Brand = old.Brand
	p.CreatedAt = old.CreatedAt
	notify(ctx, r.pub, TableProjects, realtime.Update, p, old)
	return nil
}

func (r *projectRepository) Delete(ctx context.Context, id string) error {
	old, err := r.ByID(ctx, id)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return err
	}

	notify(ctx, r.pub, TableProjects, realtime.Delete, nil, old)
	return nil
}

func (r *projectRepository) ByID(ctx context.Context, id string) (*model.Project, error) {
	var p model.Project
	err := r.db.GetContext(ctx, &p, `SELECT * FROM projects WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *projectRepository) Visible(ctx context.Context, scope ProjectScope) ([]*model.Project, error) {
	projects := []*model.Project{}

	if scope.Staff {
		err := r.db.SelectContext(ctx, &projects,
			`SELECT * FROM projects WHERE brand = $1 ORDER BY created_at DESC`, scope.Brand)
		return projects, err
	}

	err := r.db.SelectContext(ctx, &projects, `
		SELECT p.* FROM projects p
		JOIN project_members m ON m.project_id = p.id
		WHERE p.brand = $1 AND m.user_id = $2
		ORDER BY p.created_at DESC
	`, scope.Brand, scope.UserID)
	return projects, err
}

// VisibleByID returns ErrProjectNotFound both for unknown ids and for
// projects outside the scope.
func (r *projectRepository) VisibleByID(ctx context.Context, scope ProjectScope, id string) (*model.Project, error) {
	var p model.Project
	var err error

	if scope.Staff {
		err = r.db.GetContext(ctx, &p,
			`SELECT * FROM projects WHERE id = $1 AND brand = $2`, id, scope.Brand)
	} else {
		err = r.db.GetContext(ctx, &p, `
			SELECT p.* FROM projects p
			JOIN project_members m ON m.project_id = p.id
			WHERE p.id = $1 AND p.brand = $2 AND m.user_id = $3
		`, id, scope.Brand, scope.UserID)
	}

	if err == sql.ErrNoRows {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *projectRepository) AddMember(ctx context.Context, projectID, userID string) error {
	member := map[string]any{"project_id": projectID, "user_id": userID}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO project_members (project_id, user_id, created_at) VALUES ($1, $2, $3)`,
		projectID, userID, time.Now())
	if isUniqueViolation(err) {
		return ErrAlreadyMember
	}
	if err != nil {
		return err
	}

	notify(ctx, r.pub, TableProjectMembers, realtime.Insert, member, nil)
	return nil
}

func (r *projectRepository) RemoveMember(ctx context.Context, projectID, userID string) error {
	member := map[string]any{"project_id": projectID, "user_id": userID}

	result, err := r.db.ExecContext(ctx,
		`DELETE FROM project_members WHERE project_id = $1 AND user_id = $2`, projectID, userID)
	if err != nil {
		return err
	}
	err = expectRow(result, ErrProjectNotFound)
	if err != nil {
		return err
	}

	notify(ctx, r.pub, TableProjectMembers, realtime.Delete, nil, member)
	return nil
}
