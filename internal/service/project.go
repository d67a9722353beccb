package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/lumenflow/portal/internal/live"
	"github.com/lumenflow/portal/internal/model"
	"github.com/lumenflow/portal/internal/realtime"
	"github.com/lumenflow/portal/internal/repository"
)

// Viewer is the identity a view is loaded for.
type Viewer struct {
	UserID string
	Staff  bool
}

// ViewerOf returns the viewer for a profile. A nil profile is an anonymous
// client and sees nothing but public content.
func ViewerOf(profile *model.Profile) Viewer {
	if profile == nil {
		return Viewer{}
	}
	return Viewer{UserID: profile.UserID, Staff: profile.IsStaff()}
}

type ProjectService struct {
	projectRepo repository.ProjectRepository
	taskRepo    repository.TaskRepository
	assetRepo   repository.AssetRepository
	brand       string
}

func NewProjectService(
	projectRepo repository.ProjectRepository,
	taskRepo repository.TaskRepository,
	assetRepo repository.AssetRepository,
	brand string,
) *ProjectService {
	return &ProjectService{
		projectRepo: projectRepo,
		taskRepo:    taskRepo,
		assetRepo:   assetRepo,
		brand:       brand,
	}
}

func (s *ProjectService) scope(v Viewer) repository.ProjectScope {
	return repository.ProjectScope{Brand: s.brand, UserID: v.UserID, Staff: v.Staff}
}

// Dashboard loads the viewer's projects with task and asset numbers. Only the
// project query can fail the load; tasks and asset counts fall back to empty.
func (s *ProjectService) Dashboard(ctx context.Context, v Viewer) (*model.Dashboard, error) {
	projects, err := s.projectRepo.Visible(ctx, s.scope(v))
	if err != nil {
		return nil, fmt.Errorf("failed to load projects: %w", err)
	}

	ids := make([]string, 0, len(projects))
	for _, p := range projects {
		ids = append(ids, p.ID)
	}

	tasks, err := s.taskRepo.ByProjectIDs(ctx, ids)
	if err != nil {
		slog.Warn("failed to load dashboard tasks", "error", err, "user_id", v.UserID)
		tasks = nil
	}
	assetCounts, err := s.assetRepo.CountByProjectIDs(ctx, ids)
	if err != nil {
		slog.Warn("failed to count dashboard assets", "error", err, "user_id", v.UserID)
		assetCounts = map[string]int{}
	}

	grouped := model.GroupTasks(tasks)
	dashboard := &model.Dashboard{Projects: make([]*model.ProjectSummary, 0, len(projects))}
	for _, p := range projects {
		projectTasks := grouped[p.ID]
		dashboard.Projects = append(dashboard.Projects, &model.ProjectSummary{
			Project:    p,
			Progress:   model.ProjectProgress(p, projectTasks),
			TaskCount:  len(projectTasks),
			DoneCount:  model.CountDone(projectTasks),
			AssetCount: assetCounts[p.ID],
		})
	}
	return dashboard, nil
}

// Detail loads one project the viewer may see. Unknown and invisible
// projects are both repository.ErrProjectNotFound.
func (s *ProjectService) Detail(ctx context.Context, v Viewer, projectID string) (*model.ProjectDetail, error) {
	project, err := s.projectRepo.VisibleByID(ctx, s.scope(v), projectID)
	if err != nil {
		return nil, err
	}

	ids := []string{project.ID}
	tasks, err := s.taskRepo.ByProjectIDs(ctx, ids)
	if err != nil {
		slog.Warn("failed to load project tasks", "error", err, "project_id", project.ID)
		tasks = []*model.Task{}
	}
	assets, err := s.assetRepo.ByProjectIDs(ctx, ids)
	if err != nil {
		slog.Warn("failed to load project assets", "error", err, "project_id", project.ID)
		assets = []*model.Asset{}
	}

	return &model.ProjectDetail{
		Project:  project,
		Tasks:    tasks,
		Assets:   assets,
		Progress: model.ProjectProgress(project, tasks),
	}, nil
}

// Library lists the assets of every project the viewer may see, newest first,
// with the project name joined in.
func (s *ProjectService) Library(ctx context.Context, v Viewer) (*model.Library, error) {
	projects, err := s.projectRepo.Visible(ctx, s.scope(v))
	if err != nil {
		return nil, fmt.Errorf("failed to load projects: %w", err)
	}

	ids := make([]string, 0, len(projects))
	for _, p := range projects {
		ids = append(ids, p.ID)
	}

	assets, err := s.assetRepo.ByProjectIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load assets: %w", err)
	}
	return &model.Library{Assets: assets, ProjectIDs: ids}, nil
}

// Asset returns an asset when the viewer may see its project.
func (s *ProjectService) Asset(ctx context.Context, v Viewer, assetID string) (*model.Asset, error) {
	asset, err := s.assetRepo.ByID(ctx, assetID)
	if err != nil {
		return nil, err
	}
	_, err = s.projectRepo.VisibleByID(ctx, s.scope(v), asset.ProjectID)
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return nil, repository.ErrAssetNotFound
		}
		return nil, err
	}
	return asset, nil
}

// DashboardWatch is the live configuration of the dashboard.
func (s *ProjectService) DashboardWatch(v Viewer) live.Config[*model.Dashboard] {
	return live.Config[*model.Dashboard]{
		Name:   "dashboard",
		Tables: []string{repository.TableProjects, repository.TableProjectMembers, repository.TableTasks, repository.TableAssets},
		Load: func(ctx context.Context) (*model.Dashboard, error) {
			return s.Dashboard(ctx, v)
		},
		Match: func(ev realtime.Event, current *model.Dashboard) bool {
			return s.matchProjects(ev, v, current.ProjectIDs())
		},
	}
}

// DetailWatch is the live configuration of one project page.
func (s *ProjectService) DetailWatch(v Viewer, projectID string) live.Config[*model.ProjectDetail] {
	return live.Config[*model.ProjectDetail]{
		Name:   "project",
		Tables: []string{repository.TableProjects, repository.TableProjectMembers, repository.TableTasks, repository.TableAssets},
		Load: func(ctx context.Context) (*model.ProjectDetail, error) {
			return s.Detail(ctx, v, projectID)
		},
		Match: func(ev realtime.Event, _ *model.ProjectDetail) bool {
			if ev.Table == repository.TableProjects {
				return ev.Field("id") == projectID
			}
			return ev.Field("project_id") == projectID
		},
		Fatal: IsNotFound,
	}
}

// LibraryWatch is the live configuration of the asset library.
func (s *ProjectService) LibraryWatch(v Viewer) live.Config[*model.Library] {
	return live.Config[*model.Library]{
		Name:   "assets",
		Tables: []string{repository.TableProjects, repository.TableProjectMembers, repository.TableAssets},
		Load: func(ctx context.Context) (*model.Library, error) {
			return s.Library(ctx, v)
		},
		Match: func(ev realtime.Event, current *model.Library) bool {
			return s.matchProjects(ev, v, current.ProjectIDs)
		},
	}
}

// matchProjects decides whether a change touches a view built from the
// projects in ids.
func (s *ProjectService) matchProjects(ev realtime.Event, v Viewer, ids []string) bool {
	switch ev.Table {
	case repository.TableProjects:
		if slices.Contains(ids, ev.Field("id")) {
			return true
		}
		// A new project of the brand is only visible to staff right away;
		// clients learn about it through their membership row.
		return v.Staff && ev.Field("brand") == s.brand
	case repository.TableProjectMembers:
		return ev.Field("user_id") == v.UserID
	default:
		return slices.Contains(ids, ev.Field("project_id"))
	}
}
