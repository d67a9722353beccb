package repository

import (
	"context"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/lumenflow/portal/internal/db/dbtest"
	"github.com/lumenflow/portal/internal/model"
	"github.com/lumenflow/portal/internal/realtime"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev realtime.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) last() realtime.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return realtime.Event{}
	}
	return p.events[len(p.events)-1]
}

type fixture struct {
	db       *sqlx.DB
	pub      *recordingPublisher
	users    UserRepository
	projects ProjectRepository
	tasks    TaskRepository
	assets   AssetRepository
	articles ArticleRepository
}

func setupTestDB(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.New(t)
	pub := &recordingPublisher{}
	return &fixture{
		db:       conn,
		pub:      pub,
		users:    NewUserRepository(conn),
		projects: NewProjectRepository(conn, pub),
		tasks:    NewTaskRepository(conn, pub),
		assets:   NewAssetRepository(conn, pub),
		articles: NewArticleRepository(conn, pub),
	}
}

func (f *fixture) user(t *testing.T, email string) *model.User {
	t.Helper()
	u := &model.User{Email: email}
	if err := f.users.Create(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func (f *fixture) project(t *testing.T, brand, name string) *model.Project {
	t.Helper()
	p := &model.Project{Brand: brand, Name: name}
	if err := f.projects.Create(context.Background(), p); err != nil {
		t.Fatalf("create project: %v", err)
	}
	return p
}
