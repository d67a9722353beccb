package service

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lumenflow/portal/internal/db/dbtest"
	"github.com/lumenflow/portal/internal/model"
	"github.com/lumenflow/portal/internal/realtime"
	"github.com/lumenflow/portal/internal/repository"
)

const testBrand = "lumenflow"

type testEnv struct {
	db        *sqlx.DB
	broker    *realtime.Broker
	users     repository.UserRepository
	profiles  repository.ProfileRepository
	tokens    repository.TokenRepository
	projects  repository.ProjectRepository
	tasks     repository.TaskRepository
	assets    repository.AssetRepository
	articles  repository.ArticleRepository
	auth      *AuthService
	project   *ProjectService
	knowledge *KnowledgeService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	conn := dbtest.New(t)
	broker := realtime.NewBroker(realtime.DefaultBuffer)
	t.Cleanup(broker.Close)

	env := &testEnv{
		db:       conn,
		broker:   broker,
		users:    repository.NewUserRepository(conn),
		profiles: repository.NewProfileRepository(conn),
		tokens:   repository.NewTokenRepository(conn),
		projects: repository.NewProjectRepository(conn, broker),
		tasks:    repository.NewTaskRepository(conn, broker),
		assets:   repository.NewAssetRepository(conn, broker),
		articles: repository.NewArticleRepository(conn, broker),
	}
	env.auth = NewAuthService(env.users, env.profiles, env.tokens, env.projects,
		NewEmailService("", "noreply@example.com", "Lumenflow", true),
		"test-secret-test-secret-test-secret", "https://portal.example.com/",
		AuthTokenExpiry{Access: time.Hour, Refresh: 24 * time.Hour, Invite: time.Hour, Recovery: time.Hour},
	)
	env.project = NewProjectService(env.projects, env.tasks, env.assets, testBrand)
	env.knowledge = NewKnowledgeService(env.articles)
	return env
}

func (e *testEnv) client(t *testing.T, email, role string) *model.User {
	t.Helper()
	ctx := context.Background()
	u := &model.User{Email: email}
	if err := e.users.Create(ctx, u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := e.profiles.Create(ctx, &model.Profile{UserID: u.ID, Name: email, Role: role}); err != nil {
		t.Fatalf("create profile: %v", err)
	}
	return u
}

func (e *testEnv) newProject(t *testing.T, name string, members ...*model.User) *model.Project {
	t.Helper()
	ctx := context.Background()
	p := &model.Project{Brand: testBrand, Name: name, Status: model.ProjectStatusActive}
	if err := e.projects.Create(ctx, p); err != nil {
		t.Fatalf("create project: %v", err)
	}
	for _, m := range members {
		if err := e.projects.AddMember(ctx, p.ID, m.ID); err != nil {
			t.Fatalf("add member: %v", err)
		}
	}
	return p
}

func (e *testEnv) newTask(t *testing.T, projectID, status string) {
	t.Helper()
	err := e.tasks.Create(context.Background(), &model.Task{ProjectID: projectID, Title: "task", Status: status})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
}

// linkToken returns the newest unused token of the given type for a user.
func (e *testEnv) linkToken(t *testing.T, userID, tokenType string) string {
	t.Helper()
	var token string
	err := e.db.Get(&token, `
		SELECT token FROM tokens
		WHERE user_id = $1 AND type = $2 AND used_at IS NULL
		ORDER BY created_at DESC LIMIT 1
	`, userID, tokenType)
	if err != nil {
		t.Fatalf("find %s token: %v", tokenType, err)
	}
	return token
}
