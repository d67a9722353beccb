package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lumenflow/portal/internal/model"
	"github.com/lumenflow/portal/internal/realtime"
)

var projectColumns = []string{"id", "brand", "name", "description", "status", "progress", "deadline", "created_at", "updated_at"}

func TestProjectVisibleQueries(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer mockDB.Close()

	repo := NewProjectRepository(sqlx.NewDb(mockDB, "sqlmock"), nil)
	now := time.Now()

	t.Run("client sees member projects of the brand", func(t *testing.T) {
		mock.ExpectQuery(`SELECT p\.\* FROM projects p\s+JOIN project_members m`).
			WithArgs("lumenflow", "u1").
			WillReturnRows(sqlmock.NewRows(projectColumns).
				AddRow("p1", "lumenflow", "Website", "", "active", nil, nil, now, now))

		projects, err := repo.Visible(context.Background(), ProjectScope{Brand: "lumenflow", UserID: "u1"})
		if err != nil {
			t.Fatalf("Visible() error = %v", err)
		}
		if len(projects) != 1 || projects[0].ID != "p1" {
			t.Errorf("unexpected projects %+v", projects)
		}
	})

	t.Run("staff sees every project of the brand", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM projects WHERE brand = $1`)).
			WithArgs("lumenflow").
			WillReturnRows(sqlmock.NewRows(projectColumns).
				AddRow("p1", "lumenflow", "Website", "", "active", nil, nil, now, now).
				AddRow("p2", "lumenflow", "CRM", "", "done", 100, nil, now, now))

		projects, err := repo.Visible(context.Background(), ProjectScope{Brand: "lumenflow", UserID: "u1", Staff: true})
		if err != nil {
			t.Fatalf("Visible() error = %v", err)
		}
		if len(projects) != 2 {
			t.Fatalf("expected 2 projects, got %d", len(projects))
		}
		if projects[1].Progress == nil || *projects[1].Progress != 100 {
			t.Errorf("expected explicit progress on p2, got %v", projects[1].Progress)
		}
	})

	t.Run("not visible maps to not found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT p\.\* FROM projects p`).
			WithArgs("p9", "lumenflow", "u1").
			WillReturnRows(sqlmock.NewRows(projectColumns))

		_, err := repo.VisibleByID(context.Background(), ProjectScope{Brand: "lumenflow", UserID: "u1"}, "p9")
		if !errors.Is(err, ErrProjectNotFound) {
			t.Errorf("expected ErrProjectNotFound, got %v", err)
		}
	})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestProjectScopeAndEvents(t *testing.T) {
	f := setupTestDB(t)
	ctx := context.Background()

	client := f.user(t, "client@example.com")
	other := f.user(t, "other@example.com")
	mine := f.project(t, "lumenflow", "Mine")
	f.project(t, "lumenflow", "Theirs")
	foreign := f.project(t, "otherbrand", "Foreign")

	if ev := f.pub.last(); ev.Table != TableProjects || ev.Type != realtime.Insert || ev.Field("brand") != "otherbrand" {
		t.Errorf("unexpected insert event %+v", ev)
	}

	for _, p := range []*model.Project{mine, foreign} {
		if err := f.projects.AddMember(ctx, p.ID, client.ID); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.projects.AddMember(ctx, mine.ID, client.ID); !errors.Is(err, ErrAlreadyMember) {
		t.Errorf("expected ErrAlreadyMember, got %v", err)
	}
	if ev := f.pub.last(); ev.Table != TableProjectMembers || ev.Field("user_id") != client.ID {
		t.Errorf("unexpected member event %+v", ev)
	}

	visible, err := f.projects.Visible(ctx, ProjectScope{Brand: "lumenflow", UserID: client.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(visible) != 1 || visible[0].ID != mine.ID {
		t.Errorf("client should only see %s, got %+v", mine.ID, visible)
	}

	staff, err := f.projects.Visible(ctx, ProjectScope{Brand: "lumenflow", UserID: other.ID, Staff: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(staff) != 2 {
		t.Errorf("staff should see 2 brand projects, got %d", len(staff))
	}

	_, err = f.projects.VisibleByID(ctx, ProjectScope{Brand: "lumenflow", UserID: other.ID}, mine.ID)
	if !errors.Is(err, ErrProjectNotFound) {
		t.Errorf("non-member lookup: expected ErrProjectNotFound, got %v", err)
	}

	full := 100
	mine.Progress = &full
	mine.Status = model.ProjectStatusDone
	if err := f.projects.Update(ctx, mine); err != nil {
		t.Fatal(err)
	}
	ev := f.pub.last()
	if ev.Type != realtime.Update || ev.OldRecord["status"] != model.ProjectStatusPlanning || ev.Record["status"] != model.ProjectStatusDone {
		t.Errorf("unexpected update event %+v", ev)
	}

	if err := f.projects.RemoveMember(ctx, mine.ID, client.ID); err != nil {
		t.Fatal(err)
	}
	if ev := f.pub.last(); ev.Type != realtime.Delete || ev.Field("project_id") != mine.ID {
		t.Errorf("unexpected member removal event %+v", ev)
	}
}
